package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"starlit.dev/newsflow/internal/reader"
)

const (
	defaultPreviewMaxChars = 1000
	minPreviewMaxChars     = 200
	maxPreviewMaxChars     = 4000
)

type articlePreview struct {
	Link        string `json:"link"`
	PreviewText string `json:"preview_text"`
	CharCount   int    `json:"char_count"`
	Truncated   bool   `json:"truncated"`
}

func (s *Server) handleArticlePreview(c echo.Context) error {
	link := strings.TrimSpace(c.QueryParam("url"))
	if link == "" {
		return failValidation(c, map[string]string{"url": "is required"})
	}
	parsed, err := url.Parse(link)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return failValidation(c, map[string]string{"url": "must be an absolute URL"})
	}

	maxChars, err := parsePositiveInt(c.QueryParam("max_chars"), defaultPreviewMaxChars, minPreviewMaxChars, maxPreviewMaxChars)
	if err != nil {
		return failValidation(c, map[string]string{"max_chars": err.Error()})
	}

	text, err := s.extractor.Extract(c.Request().Context(), link, c.QueryParam("title"))
	if err != nil {
		s.logger.Warn().Err(err).Str("link", link).Msg("article preview extraction failed")
		return failNotFound(c, "No readable content at that URL")
	}

	previewText, truncated := reader.TruncateText(text, maxChars)

	return success(c, articlePreview{
		Link:        link,
		PreviewText: previewText,
		CharCount:   utf8.RuneCountInString(previewText),
		Truncated:   truncated,
	})
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
