package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"starlit.dev/newsflow/internal/cache"
	"starlit.dev/newsflow/internal/feed"
	"starlit.dev/newsflow/internal/pipeline"
	"starlit.dev/newsflow/internal/reader"
	"starlit.dev/newsflow/internal/upstream"
)

type fakeFetcher struct {
	calls  int
	params upstream.Params
	page   *upstream.FeedPage
	err    error
}

func (f *fakeFetcher) Fetch(_ context.Context, params upstream.Params) (*upstream.FeedPage, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func rawArticle(id, title, source, pubDate string) feed.RawArticle {
	return feed.RawArticle{
		ArticleID: id,
		Title:     title,
		SourceID:  source,
		PubDate:   pubDate,
		Link:      "https://news.example/" + id,
	}
}

func newTestServer(fetcher Fetcher) *Server {
	aggregator := pipeline.New(zerolog.Nop(), pipeline.DefaultOptions())
	return NewServer(fetcher, aggregator, cache.New(time.Minute), reader.NewExtractor(reader.Options{}), zerolog.Nop(), Options{})
}

func doRequest(t *testing.T, server *Server, target string) (*httptest.ResponseRecorder, jsendResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	server.buildEcho().ServeHTTP(rec, req)

	var body jsendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	return rec, body
}

func TestHandleNews_BrowseSuccess(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{page: &upstream.FeedPage{
		Results: []feed.RawArticle{
			rawArticle("a1", "Older story", "alpha", "2026-02-13 08:00:00"),
			rawArticle("a2", "Newer story", "alpha", "2026-02-13 10:00:00"),
		},
		NextPage: "tok-2",
	}}
	server := newTestServer(fetcher)

	rec, body := doRequest(t, server, "/api/v1/news")
	if rec.Code != http.StatusOK || body.Status != "success" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, body.Status)
	}

	data, ok := body.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data payload: %T", body.Data)
	}
	articles, ok := data["articles"].([]any)
	if !ok || len(articles) != 2 {
		t.Fatalf("unexpected articles payload: %v", data["articles"])
	}
	first, _ := articles[0].(map[string]any)
	if first["title"] != "Newer story" {
		t.Fatalf("expected newest article first, got %v", first["title"])
	}
	if data["next_page"] != "tok-2" {
		t.Fatalf("expected next page token in response, got %v", data["next_page"])
	}
}

func TestHandleNews_CachesAggregatedPage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{page: &upstream.FeedPage{
		Results: []feed.RawArticle{rawArticle("a1", "Cached story", "alpha", "2026-02-13 08:00:00")},
	}}
	server := newTestServer(fetcher)

	doRequest(t, server, "/api/v1/news")
	doRequest(t, server, "/api/v1/news")

	if fetcher.calls != 1 {
		t.Fatalf("expected second request served from cache, fetcher called %d times", fetcher.calls)
	}
}

func TestHandleNews_ShortQueryFallsBackToBrowse(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{page: &upstream.FeedPage{
		Results: []feed.RawArticle{rawArticle("a1", "Story", "alpha", "2026-02-13 08:00:00")},
	}}
	server := newTestServer(fetcher)

	rec, _ := doRequest(t, server, "/api/v1/news?q=x")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if fetcher.params.Query != "" {
		t.Fatalf("expected short query to be dropped, upstream got %q", fetcher.params.Query)
	}
}

func TestHandleNews_SearchWithoutMatches(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{page: &upstream.FeedPage{
		Results: []feed.RawArticle{rawArticle("a1", "Unrelated story", "alpha", "2026-02-13 08:00:00")},
	}}
	server := newTestServer(fetcher)

	rec, body := doRequest(t, server, "/api/v1/news?q=quantum")
	if rec.Code != http.StatusNotFound || body.Status != "fail" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, body.Status)
	}
	if body.Message == "" {
		t.Fatalf("expected a user-facing message")
	}
}

func TestHandleNews_UpstreamTimeout(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: upstream.ErrTimeout}
	server := newTestServer(fetcher)

	rec, body := doRequest(t, server, "/api/v1/news")
	if rec.Code != http.StatusGatewayTimeout || body.Status != "error" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, body.Status)
	}
}

func TestHandleNews_UpstreamFailureForwardsStatusAndDetail(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: &upstream.Error{StatusCode: http.StatusTooManyRequests, Detail: "rate limited"}}
	server := newTestServer(fetcher)

	rec, body := doRequest(t, server, "/api/v1/news")
	if rec.Code != http.StatusTooManyRequests || body.Status != "error" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, body.Status)
	}
	if body.Message != "rate limited" {
		t.Fatalf("expected provider detail in response, got %q", body.Message)
	}
	if body.Code != http.StatusTooManyRequests {
		t.Fatalf("expected provider status in envelope, got %d", body.Code)
	}
}

func TestHandleNews_UpstreamFailureWithoutStatusIsBadGateway(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: &upstream.Error{Detail: "connection refused"}}
	server := newTestServer(fetcher)

	rec, body := doRequest(t, server, "/api/v1/news")
	if rec.Code != http.StatusBadGateway || body.Status != "error" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, body.Status)
	}
	if body.Message != "connection refused" {
		t.Fatalf("expected provider detail in response, got %q", body.Message)
	}
}

func TestHandleNews_CallerCancellationWritesNoErrorEnvelope(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: fmt.Errorf("fetch feed page: %w", context.Canceled)}
	server := newTestServer(fetcher)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/news", nil)
	server.buildEcho().ServeHTTP(rec, req)

	if rec.Body.Len() != 0 {
		t.Fatalf("expected no error envelope for a canceled request, got %q", rec.Body.String())
	}
}

func TestHandleArticlePreview_Validation(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeFetcher{})

	rec, body := doRequest(t, server, "/api/v1/articles/preview")
	if rec.Code != http.StatusBadRequest || body.Status != "fail" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, body.Status)
	}

	rec, _ = doRequest(t, server, "/api/v1/articles/preview?url=not-a-url")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected relative URL to be rejected, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeFetcher{})
	rec, body := doRequest(t, server, "/api/v1/health")
	if rec.Code != http.StatusOK || body.Status != "success" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, body.Status)
	}
}
