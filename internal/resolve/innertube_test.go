package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/constants"
	apperrors "github.com/kapu/untranslate-go/pkg/errors"
)

func newTestInnertube(srvURL string) *InnertubeClient {
	ic := NewInnertubeClient(zap.NewNop())
	ic.baseURL = srvURL
	return ic
}

func TestInnertubeVideo(t *testing.T) {
	var gotBody string
	var gotUA string
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		json.NewEncoder(w).Encode(map[string]any{
			"videoDetails": map[string]any{
				"videoId":          "vid1",
				"title":            "Original Title",
				"shortDescription": "Original description",
				"channelId":        "UCabc",
			},
		})
	}))
	defer srv.Close()

	ic := newTestInnertube(srv.URL)
	text, err := ic.Video(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if text.Title != "Original Title" || text.Description != "Original description" {
		t.Fatalf("unexpected video text: %+v", text)
	}
	if text.ChannelID != "UCabc" {
		t.Fatalf("expected channel id from player response, got %q", text.ChannelID)
	}
	if !strings.Contains(gotBody, `"clientName":"MWEB"`) {
		t.Fatalf("expected mobile-web client context, got body %s", gotBody)
	}
	if gotUA != constants.InnertubeConfig.UserAgent {
		t.Fatalf("unexpected user agent %q", gotUA)
	}
	if gotQuery != "prettyPrint=false" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
}

func TestInnertubeVideoNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ic := newTestInnertube(srv.URL)
	_, err := ic.Video(context.Background(), "missing")
	var notFound *apperrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestInnertubeClientErrorNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ic := newTestInnertube(srv.URL)
	_, err := ic.Video(context.Background(), "vid1")
	var fetchErr *apperrors.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != 404 {
		t.Fatalf("expected status 404, got %d", fetchErr.StatusCode)
	}
	if n := requests.Load(); n != 1 {
		t.Fatalf("expected single request for client error, got %d", n)
	}
}

func TestInnertubeRetriesServerError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"videoDetails": map[string]any{"videoId": "vid1", "title": "Recovered"},
		})
	}))
	defer srv.Close()

	ic := newTestInnertube(srv.URL)
	text, err := ic.Video(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("expected recovery after retry, got %v", err)
	}
	if text.Title != "Recovered" {
		t.Fatalf("unexpected title %q", text.Title)
	}
	if n := requests.Load(); n != 2 {
		t.Fatalf("expected one retry, got %d requests", n)
	}
}

func TestInnertubeRateLimitOpensBreaker(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ic := newTestInnertube(srv.URL)
	for i := 0; i < constants.CircuitBreakerConfig.FailureThreshold; i++ {
		if _, err := ic.Video(context.Background(), "vid1"); err == nil {
			t.Fatal("expected rate limit error")
		}
	}
	before := requests.Load()

	_, err := ic.Video(context.Background(), "vid1")
	if err == nil {
		t.Fatal("expected circuit-open error")
	}
	if requests.Load() != before {
		t.Fatal("expected no request while circuit is open")
	}
}

func TestInnertubeResolveHandle(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/navigation/resolve_url" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		json.NewEncoder(w).Encode(map[string]any{
			"endpoint": map[string]any{
				"browseEndpoint": map[string]any{"browseId": "UCabc"},
			},
		})
	}))
	defer srv.Close()

	ic := newTestInnertube(srv.URL)
	id, err := ic.ResolveHandle(context.Background(), "@someone")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id != "UCabc" {
		t.Fatalf("expected resolved id, got %q", id)
	}
	if !strings.Contains(gotBody, "https://www.youtube.com/@someone") {
		t.Fatalf("expected handle URL in request, got %s", gotBody)
	}
}

func TestInnertubeResolveHandleNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ic := newTestInnertube(srv.URL)
	_, err := ic.ResolveHandle(context.Background(), "@ghost")
	var notFound *apperrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestInnertubeChannelByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/browse" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"metadata": map[string]any{
				"channelMetadataRenderer": map[string]any{
					"title":       "Original Channel",
					"description": "Original about text",
					"externalId":  "UCcanonical",
				},
			},
		})
	}))
	defer srv.Close()

	ic := newTestInnertube(srv.URL)
	text, err := ic.ChannelByID(context.Background(), "UCalias")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if text.Name != "Original Channel" || text.Description != "Original about text" {
		t.Fatalf("unexpected channel text: %+v", text)
	}
	if text.ID != "UCcanonical" {
		t.Fatalf("expected canonical id from metadata, got %q", text.ID)
	}
}
