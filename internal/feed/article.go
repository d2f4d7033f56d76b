package feed

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// providerNullID is the literal string the upstream provider sends when an
// article has no assigned identifier.
const providerNullID = "null"

// ErrNoResults signals that aggregation legitimately produced an empty
// result set. It is not a transport failure.
var ErrNoResults = errors.New("no articles found")

// RawArticle is the wire shape of one item in the upstream feed body.
type RawArticle struct {
	ArticleID   string  `json:"article_id"`
	Title       string  `json:"title"`
	SourceID    string  `json:"source_id"`
	PubDate     string  `json:"pubDate"`
	Link        string  `json:"link"`
	ImageURL    *string `json:"image_url,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Article is a validated feed entry.
type Article struct {
	ProviderID  *string   `json:"article_id,omitempty"`
	Title       string    `json:"title"`
	SourceID    string    `json:"source_id"`
	PublishedAt time.Time `json:"published_at"`
	Link        string    `json:"link"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// Key returns the identity key used to decide whether two entries represent
// the same article: the provider id when assigned, otherwise the link.
func (a Article) Key() string {
	if a.ProviderID != nil {
		return *a.ProviderID
	}
	return a.Link
}

// ParseArticle validates one raw feed item. Items missing any of title,
// source_id, pubDate or link are invalid and excluded from aggregation.
func ParseArticle(raw RawArticle) (Article, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return Article{}, fmt.Errorf("article title is empty")
	}

	sourceID := strings.TrimSpace(raw.SourceID)
	if sourceID == "" {
		return Article{}, fmt.Errorf("article source_id is empty")
	}

	link := strings.TrimSpace(raw.Link)
	if link == "" {
		return Article{}, fmt.Errorf("article link is empty")
	}

	publishedAt, err := parsePubDate(raw.PubDate)
	if err != nil {
		return Article{}, fmt.Errorf("article pubDate: %w", err)
	}

	article := Article{
		Title:       title,
		SourceID:    sourceID,
		PublishedAt: publishedAt,
		Link:        link,
		Description: normalizeOptionalText(raw.Description),
		ImageURL:    normalizeOptionalText(raw.ImageURL),
	}

	if id := strings.TrimSpace(raw.ArticleID); id != "" && id != providerNullID {
		article.ProviderID = &id
	}

	return article, nil
}

// parsePubDate accepts the timestamp formats the provider is known to emit.
func parsePubDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("is empty")
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", trimmed)
}

func normalizeOptionalText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
