package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"starlit.dev/newsflow/internal/cache"
	"starlit.dev/newsflow/internal/feed"
	"starlit.dev/newsflow/internal/upstream"
)

// Queries shorter than this fall back to the plain headline feed.
const minQueryLength = 2

type articleItem struct {
	ArticleID   *string `json:"article_id"`
	Title       string  `json:"title"`
	SourceID    string  `json:"source_id"`
	PublishedAt string  `json:"published_at"`
	Link        string  `json:"link"`
	ImageURL    *string `json:"image_url,omitempty"`
	Description *string `json:"description,omitempty"`
}

type newsResponse struct {
	Articles []articleItem `json:"articles"`
	NextPage *string       `json:"next_page"`
	Query    string        `json:"query,omitempty"`
}

func (s *Server) handleNews(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if len([]rune(query)) < minQueryLength {
		query = ""
	}
	pageToken := strings.TrimSpace(c.QueryParam("page"))

	key := cache.Key(query, pageToken)
	if cached, ok := s.pages.Get(key); ok {
		return success(c, buildNewsResponse(cached.Articles, cached.NextPage, query))
	}

	page, err := s.fetcher.Fetch(c.Request().Context(), upstream.Params{
		Query:     query,
		PageToken: pageToken,
	})
	if err != nil {
		return s.respondUpstreamError(c, err)
	}

	articles, err := s.aggregator.Aggregate(page.Results, query)
	if err != nil {
		if errors.Is(err, feed.ErrNoResults) {
			return failNotFound(c, "No articles found. Try a different search term.")
		}
		s.logger.Error().Err(err).Str("query", query).Msg("aggregate news page failed")
		return internalError(c, "Failed to load news")
	}

	s.pages.Set(key, cache.Page{Articles: articles, NextPage: page.NextPage})

	return success(c, buildNewsResponse(articles, page.NextPage, query))
}

func (s *Server) respondUpstreamError(c echo.Context, err error) error {
	if errors.Is(err, upstream.ErrTimeout) {
		s.logger.Warn().Err(err).Msg("news provider timed out")
		return errorWithStatus(c, http.StatusGatewayTimeout, "News provider timed out. Try again shortly.")
	}

	if errors.Is(err, context.Canceled) {
		// Caller went away mid-fetch; there is nobody left to answer.
		s.logger.Debug().Err(err).Msg("news fetch canceled by caller")
		return nil
	}

	var providerErr *upstream.Error
	if errors.As(err, &providerErr) {
		status := providerErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		message := "News provider request failed"
		if strings.TrimSpace(providerErr.Detail) != "" {
			message = providerErr.Detail
		}
		s.logger.Error().Err(err).Int("provider_status", providerErr.StatusCode).Msg("news provider request failed")
		return errorWithStatus(c, status, message)
	}

	s.logger.Error().Err(err).Msg("news fetch failed")
	return internalError(c, "Failed to load news")
}

func buildNewsResponse(articles []feed.Article, nextPage, query string) newsResponse {
	items := make([]articleItem, 0, len(articles))
	for _, article := range articles {
		items = append(items, articleItem{
			ArticleID:   article.ProviderID,
			Title:       article.Title,
			SourceID:    article.SourceID,
			PublishedAt: article.PublishedAt.UTC().Format(time.RFC3339),
			Link:        article.Link,
			ImageURL:    article.ImageURL,
			Description: article.Description,
		})
	}

	resp := newsResponse{Articles: items, Query: query}
	if strings.TrimSpace(nextPage) != "" {
		token := nextPage
		resp.NextPage = &token
	}
	return resp
}
