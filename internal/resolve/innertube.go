package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kapu/untranslate-go/internal/constants"
	"github.com/kapu/untranslate-go/internal/domain"
	"github.com/kapu/untranslate-go/internal/util"
	"github.com/kapu/untranslate-go/pkg/errors"
)

// InnertubeClient reads the same endpoints the host's own frontend calls.
// No credential is involved; the mobile-web client context is enough. Being
// the safety net under the official API, it is rate limited and runs behind
// a circuit breaker so a broken upstream degrades restoration to a no-op
// instead of hammering.
type InnertubeClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *util.CircuitBreaker
	baseURL    string
	logger     *zap.Logger
}

func NewInnertubeClient(logger *zap.Logger) *InnertubeClient {
	return &InnertubeClient{
		httpClient: &http.Client{Timeout: constants.InnertubeConfig.Timeout},
		limiter: rate.NewLimiter(
			rate.Every(constants.InnertubeConfig.RateInterval),
			constants.InnertubeConfig.RateBurst,
		),
		breaker: util.NewCircuitBreaker(
			constants.CircuitBreakerConfig.FailureThreshold,
			constants.CircuitBreakerConfig.ResetTimeout,
			constants.CircuitBreakerConfig.HealthCheckInterval,
			nil,
			logger,
		),
		baseURL: constants.InnertubeConfig.BaseURL,
		logger:  logger,
	}
}

type innertubeContext struct {
	Client innertubeClientInfo `json:"client"`
}

type innertubeClientInfo struct {
	HL            string `json:"hl"`
	GL            string `json:"gl"`
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
}

func defaultContext() innertubeContext {
	return innertubeContext{Client: innertubeClientInfo{
		HL:            constants.InnertubeConfig.HL,
		GL:            constants.InnertubeConfig.GL,
		ClientName:    constants.InnertubeConfig.ClientName,
		ClientVersion: constants.InnertubeConfig.ClientVersion,
	}}
}

type playerRequest struct {
	Context innertubeContext `json:"context"`
	VideoID string           `json:"videoId"`
}

type browseRequest struct {
	Context  innertubeContext `json:"context"`
	BrowseID string           `json:"browseId"`
}

type resolveURLRequest struct {
	Context innertubeContext `json:"context"`
	URL     string           `json:"url"`
}

type playerResponse struct {
	VideoDetails struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		ShortDescription string `json:"shortDescription"`
		ChannelID        string `json:"channelId"`
	} `json:"videoDetails"`
	PlayabilityStatus struct {
		Status string `json:"status"`
	} `json:"playabilityStatus"`
}

type browseResponse struct {
	Metadata struct {
		ChannelMetadataRenderer struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			ExternalID  string `json:"externalId"`
		} `json:"channelMetadataRenderer"`
	} `json:"metadata"`
}

type resolveURLResponse struct {
	Endpoint struct {
		BrowseEndpoint struct {
			BrowseID string `json:"browseId"`
		} `json:"browseEndpoint"`
	} `json:"endpoint"`
}

// computeDelay computes exponential backoff delay with jitter
func computeDelay(attempt int) time.Duration {
	jitter := time.Duration(rand.Float64() * float64(constants.RetryConfig.Jitter))
	base := constants.RetryConfig.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	return base + jitter
}

// post performs one innertube call with retry, rate limiting and the
// circuit breaker. Client errors (4xx) are not retried.
func (ic *InnertubeClient) post(ctx context.Context, endpoint string, body any, out any) error {
	if !ic.breaker.CanExecute() {
		return errors.NewFetchError("internal API circuit open", "innertube", endpoint, 503, nil)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.NewFetchError("request encoding failed", "innertube", endpoint, 0, err)
	}

	var lastErr error
	for attempt := 0; attempt < constants.RetryConfig.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := computeDelay(attempt - 1)
			ic.logger.Warn("Internal API request failed, retrying",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := ic.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			ic.baseURL+"/"+endpoint+"?prettyPrint=false", bytes.NewReader(payload))
		if err != nil {
			return errors.NewFetchError("request build failed", "innertube", endpoint, 0, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", constants.InnertubeConfig.UserAgent)

		resp, err := ic.httpClient.Do(req)
		if err != nil {
			lastErr = err
			ic.breaker.RecordFailure(0)
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			ic.breaker.RecordFailure(constants.CircuitBreakerConfig.RateLimitTimeout)
			return errors.NewFetchError("internal API rate limited", "innertube", endpoint, resp.StatusCode, nil)
		case resp.StatusCode >= 500:
			lastErr = errors.NewFetchError("internal API server error", "innertube", endpoint, resp.StatusCode, nil)
			ic.breaker.RecordFailure(0)
			continue
		case resp.StatusCode != http.StatusOK:
			ic.breaker.RecordFailure(0)
			return errors.NewFetchError("internal API request rejected", "innertube", endpoint, resp.StatusCode, nil)
		}

		if readErr != nil {
			lastErr = readErr
			ic.breaker.RecordFailure(0)
			continue
		}

		if err := json.Unmarshal(data, out); err != nil {
			ic.breaker.RecordFailure(0)
			return errors.NewFetchError("internal API response parse failed", "innertube", endpoint,
				resp.StatusCode, err)
		}

		ic.breaker.RecordSuccess()
		return nil
	}

	return errors.NewFetchError("internal API unreachable", "innertube", endpoint, 0, lastErr)
}

// Video fetches a video's untranslated title and description.
func (ic *InnertubeClient) Video(ctx context.Context, id domain.VideoID) (*VideoText, error) {
	var resp playerResponse
	if err := ic.post(ctx, "player", playerRequest{
		Context: defaultContext(),
		VideoID: id.String(),
	}, &resp); err != nil {
		return nil, err
	}

	if resp.VideoDetails.Title == "" && resp.VideoDetails.VideoID == "" {
		return nil, errors.NewNotFoundError("video", id.String())
	}

	ic.logger.Debug("Internal API video resolved",
		zap.String("video", id.String()),
		zap.String("title", util.TruncateString(resp.VideoDetails.Title, constants.LogLimits.TextPreview)))

	return &VideoText{
		ID:          id,
		Title:       resp.VideoDetails.Title,
		Description: resp.VideoDetails.ShortDescription,
		ChannelID:   domain.ChannelID(resp.VideoDetails.ChannelID),
	}, nil
}

// ResolveHandle discovers the channel id behind a handle. This is the
// discovery call of the two-step fallback contract.
func (ic *InnertubeClient) ResolveHandle(ctx context.Context, handle domain.ChannelHandle) (domain.ChannelID, error) {
	var resp resolveURLResponse
	if err := ic.post(ctx, "navigation/resolve_url", resolveURLRequest{
		Context: defaultContext(),
		URL:     handle.URL(),
	}, &resp); err != nil {
		return "", err
	}

	browseID := resp.Endpoint.BrowseEndpoint.BrowseID
	if browseID == "" {
		return "", errors.NewNotFoundError("channel", handle.String())
	}
	return domain.ChannelID(browseID), nil
}

// ChannelByID fetches a channel's untranslated name and description.
func (ic *InnertubeClient) ChannelByID(ctx context.Context, id domain.ChannelID) (*ChannelText, error) {
	var resp browseResponse
	if err := ic.post(ctx, "browse", browseRequest{
		Context:  defaultContext(),
		BrowseID: id.String(),
	}, &resp); err != nil {
		return nil, err
	}

	meta := resp.Metadata.ChannelMetadataRenderer
	if meta.Title == "" && meta.Description == "" {
		return nil, errors.NewNotFoundError("channel", id.String())
	}

	resolved := domain.ChannelID(meta.ExternalID)
	if resolved.IsZero() {
		resolved = id
	}

	return &ChannelText{
		ID:          resolved,
		Name:        meta.Title,
		Description: meta.Description,
	}, nil
}
