package resolve

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/constants"
	"github.com/kapu/untranslate-go/internal/domain"
	"github.com/kapu/untranslate-go/pkg/errors"
)

// ScraperClient reads original text straight off the public page markup.
// The og: meta tags are rendered server-side from the untranslated record,
// so they survive when both APIs fail. Strictly the last tier: one GET per
// lookup and the least structured of the three sources.
type ScraperClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewScraperClient(logger *zap.Logger) *ScraperClient {
	return &ScraperClient{
		httpClient: &http.Client{Timeout: constants.ScraperConfig.Timeout},
		baseURL:    constants.ScraperConfig.BaseURL,
		logger:     logger,
	}
}

// Video scrapes a watch page for the original title and description.
func (sc *ScraperClient) Video(ctx context.Context, id domain.VideoID) (*VideoText, error) {
	doc, err := sc.fetch(ctx, "/watch?v="+id.String())
	if err != nil {
		return nil, err
	}

	title := metaContent(doc, `meta[property="og:title"]`)
	if title == "" {
		return nil, errors.NewNotFoundError("video", id.String())
	}

	sc.logger.Debug("Video scraped from page markup", zap.String("video", id.String()))

	return &VideoText{
		ID:          id,
		Title:       title,
		Description: metaContent(doc, `meta[property="og:description"]`),
		ChannelID:   domain.ChannelID(metaContent(doc, `meta[itemprop="channelId"]`)),
	}, nil
}

// Channel scrapes a channel page for the original name and description.
// Handles resolve directly through their page URL, so this tier needs no
// separate discovery call.
func (sc *ScraperClient) Channel(ctx context.Context, ref domain.ChannelRef) (*ChannelText, error) {
	path := "/" + ref.Handle.String()
	if ref.HasID() {
		path = "/channel/" + ref.ID.String()
	}

	doc, err := sc.fetch(ctx, path)
	if err != nil {
		return nil, err
	}

	name := metaContent(doc, `meta[property="og:title"]`)
	if name == "" {
		return nil, errors.NewNotFoundError("channel", ref.Key())
	}

	id := ref.ID
	if id.IsZero() {
		if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
			if _, after, found := strings.Cut(canonical, "/channel/"); found {
				id = domain.ChannelID(strings.TrimSuffix(after, "/"))
			}
		}
	}

	sc.logger.Debug("Channel scraped from page markup", zap.String("channel", ref.Key()))

	return &ChannelText{
		ID:          id,
		Name:        name,
		Description: metaContent(doc, `meta[property="og:description"]`),
	}, nil
}

func (sc *ScraperClient) fetch(ctx context.Context, path string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.baseURL+path, nil)
	if err != nil {
		return nil, errors.NewFetchError("request build failed", "scraper", path, 0, err)
	}
	req.Header.Set("User-Agent", constants.InnertubeConfig.UserAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewFetchError("page fetch failed", "scraper", path, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFetchError("page fetch rejected", "scraper", path, resp.StatusCode, nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.NewFetchError("page parse failed", "scraper", path, resp.StatusCode, err)
	}
	return doc, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).Attr("content")
	return strings.TrimSpace(content)
}
