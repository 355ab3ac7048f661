package resolve

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/kapu/untranslate-go/internal/constants"
	"github.com/kapu/untranslate-go/internal/domain"
	"github.com/kapu/untranslate-go/pkg/errors"
)

// OfficialClient reads video and channel text via the official Data API.
// The API is credentialed and quota-limited, so the client accounts for
// every unit it spends and refuses to start calls that would cut into the
// safety margin; the resolver treats that refusal like any other failure
// and falls through to the internal API.
type OfficialClient struct {
	service    *youtube.Service
	logger     *zap.Logger
	quotaUsed  int
	quotaMu    sync.Mutex
	quotaReset time.Time
}

// Credentials selects how the official API is authorized. Exactly one of
// the fields is expected to be set.
type Credentials struct {
	APIKey     string
	OAuthToken string
}

func NewOfficialClient(ctx context.Context, creds Credentials, logger *zap.Logger, extra ...option.ClientOption) (*OfficialClient, error) {
	var opts []option.ClientOption
	switch {
	case creds.APIKey != "":
		opts = append(opts, option.WithAPIKey(creds.APIKey))
	case creds.OAuthToken != "":
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.OAuthToken})
		opts = append(opts, option.WithTokenSource(src))
	default:
		return nil, fmt.Errorf("official API credential is required")
	}
	opts = append(opts, extra...)

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create official API client: %w", err)
	}

	oc := &OfficialClient{
		service:    service,
		logger:     logger,
		quotaReset: getNextQuotaReset(),
	}

	logger.Info("Official API client initialized",
		zap.Time("quota_reset", oc.quotaReset))

	return oc, nil
}

// getNextQuotaReset calculates next quota reset time (midnight Pacific Time)
func getNextQuotaReset() time.Time {
	pt, _ := time.LoadLocation("America/Los_Angeles")
	now := time.Now().In(pt)
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, pt)
}

// checkQuota verifies if we have enough quota for the operation
func (oc *OfficialClient) checkQuota(cost int) error {
	oc.quotaMu.Lock()
	defer oc.quotaMu.Unlock()

	now := time.Now()
	if now.After(oc.quotaReset) {
		oc.quotaUsed = 0
		oc.quotaReset = getNextQuotaReset()
		oc.logger.Info("Official API quota auto-reset",
			zap.Time("next_reset", oc.quotaReset))
	}

	limit := constants.OfficialAPIConfig.DailyQuotaLimit - constants.OfficialAPIConfig.QuotaSafetyMargin
	if oc.quotaUsed+cost > limit {
		return &QuotaExceededError{
			Used:      oc.quotaUsed,
			Limit:     constants.OfficialAPIConfig.DailyQuotaLimit,
			Requested: cost,
			ResetTime: oc.quotaReset,
		}
	}

	return nil
}

// consumeQuota marks quota as used after a successful API call
func (oc *OfficialClient) consumeQuota(cost int) {
	oc.quotaMu.Lock()
	defer oc.quotaMu.Unlock()

	oc.quotaUsed += cost
	remaining := constants.OfficialAPIConfig.DailyQuotaLimit - oc.quotaUsed

	oc.logger.Debug("Official API quota consumed",
		zap.Int("cost", cost),
		zap.Int("used", oc.quotaUsed),
		zap.Int("remaining", remaining))

	if remaining < constants.OfficialAPIConfig.QuotaSafetyMargin {
		oc.logger.Warn("Official API quota running low",
			zap.Int("remaining", remaining),
			zap.Time("reset_time", oc.quotaReset))
	}
}

// QuotaStatus returns current quota usage information.
func (oc *OfficialClient) QuotaStatus() (used int, remaining int, resetTime time.Time) {
	oc.quotaMu.Lock()
	defer oc.quotaMu.Unlock()

	if time.Now().After(oc.quotaReset) {
		return 0, constants.OfficialAPIConfig.DailyQuotaLimit, getNextQuotaReset()
	}

	return oc.quotaUsed, constants.OfficialAPIConfig.DailyQuotaLimit - oc.quotaUsed, oc.quotaReset
}

// Video fetches a video's untranslated title and description (1 unit).
func (oc *OfficialClient) Video(ctx context.Context, id domain.VideoID) (*VideoText, error) {
	if err := oc.checkQuota(constants.OfficialAPIConfig.ListCost); err != nil {
		return nil, err
	}

	call := oc.service.Videos.List([]string{"snippet"}).Id(id.String())
	response, err := call.Context(ctx).Do()
	if err != nil {
		return nil, oc.wrapCallError("videos.list", err)
	}
	oc.consumeQuota(constants.OfficialAPIConfig.ListCost)

	if len(response.Items) == 0 {
		return nil, errors.NewNotFoundError("video", id.String())
	}

	item := response.Items[0]
	return &VideoText{
		ID:          id,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		ChannelID:   domain.ChannelID(item.Snippet.ChannelId),
	}, nil
}

// ChannelByHandle fetches a channel's id, name and description in one call
// (1 unit). The id in the result lets callers skip handle discovery later.
func (oc *OfficialClient) ChannelByHandle(ctx context.Context, handle domain.ChannelHandle) (*ChannelText, error) {
	if err := oc.checkQuota(constants.OfficialAPIConfig.ListCost); err != nil {
		return nil, err
	}

	call := oc.service.Channels.List([]string{"snippet"}).ForHandle(handle.String())
	response, err := call.Context(ctx).Do()
	if err != nil {
		return nil, oc.wrapCallError("channels.list", err)
	}
	oc.consumeQuota(constants.OfficialAPIConfig.ListCost)

	if len(response.Items) == 0 {
		return nil, errors.NewNotFoundError("channel", handle.String())
	}

	item := response.Items[0]
	return &ChannelText{
		ID:          domain.ChannelID(item.Id),
		Name:        item.Snippet.Title,
		Description: item.Snippet.Description,
	}, nil
}

// ChannelByID fetches a channel's name and description by its id (1 unit).
func (oc *OfficialClient) ChannelByID(ctx context.Context, id domain.ChannelID) (*ChannelText, error) {
	if err := oc.checkQuota(constants.OfficialAPIConfig.ListCost); err != nil {
		return nil, err
	}

	call := oc.service.Channels.List([]string{"snippet"}).Id(id.String())
	response, err := call.Context(ctx).Do()
	if err != nil {
		return nil, oc.wrapCallError("channels.list", err)
	}
	oc.consumeQuota(constants.OfficialAPIConfig.ListCost)

	if len(response.Items) == 0 {
		return nil, errors.NewNotFoundError("channel", id.String())
	}

	item := response.Items[0]
	return &ChannelText{
		ID:          domain.ChannelID(item.Id),
		Name:        item.Snippet.Title,
		Description: item.Snippet.Description,
	}, nil
}

func (oc *OfficialClient) wrapCallError(operation string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		if apiErr.Code == 403 {
			oc.quotaMu.Lock()
			defer oc.quotaMu.Unlock()
			return &QuotaExceededError{
				Used:      oc.quotaUsed,
				Limit:     constants.OfficialAPIConfig.DailyQuotaLimit,
				Requested: constants.OfficialAPIConfig.ListCost,
				ResetTime: oc.quotaReset,
			}
		}
		return errors.NewFetchError("official API call failed", "official", operation, apiErr.Code, err)
	}
	return errors.NewFetchError("official API call failed", "official", operation, 0, err)
}

// QuotaExceededError represents a quota limit error
type QuotaExceededError struct {
	Used      int
	Limit     int
	Requested int
	ResetTime time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("official API quota exceeded: used %d/%d (requested %d more), resets at %s",
		e.Used, e.Limit, e.Requested, e.ResetTime.Format(time.RFC3339))
}
