package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"starlit.dev/newsflow/internal/session"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func truncateForTable(value string, maxLen int) string {
	trimmed := strings.TrimSpace(value)
	if maxLen <= 0 {
		return trimmed
	}
	if utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}

	runes := []rune(trimmed)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func printSnapshotTable(snapshot session.Snapshot) error {
	rows := make([][]string, 0, len(snapshot.Articles))
	for _, article := range snapshot.Articles {
		marker := ""
		if _, isNew := snapshot.NewKeys[article.Key()]; isNew {
			marker = "NEW"
		}
		rows = append(rows, []string{
			marker,
			article.PublishedAt.UTC().Format(time.RFC3339),
			article.SourceID,
			truncateForTable(article.Title, 80),
		})
	}
	return writeTable([]string{"", "PUBLISHED", "SOURCE", "TITLE"}, rows)
}

type snapshotArticleJSON struct {
	ArticleID   *string `json:"article_id"`
	Title       string  `json:"title"`
	SourceID    string  `json:"source_id"`
	PublishedAt string  `json:"published_at"`
	Link        string  `json:"link"`
	New         bool    `json:"new"`
}

func printSnapshotJSON(snapshot session.Snapshot) error {
	items := make([]snapshotArticleJSON, 0, len(snapshot.Articles))
	for _, article := range snapshot.Articles {
		_, isNew := snapshot.NewKeys[article.Key()]
		items = append(items, snapshotArticleJSON{
			ArticleID:   article.ProviderID,
			Title:       article.Title,
			SourceID:    article.SourceID,
			PublishedAt: article.PublishedAt.UTC().Format(time.RFC3339),
			Link:        article.Link,
			New:         isNew,
		})
	}

	payload := map[string]any{"articles": items}
	if snapshot.NextPage != "" {
		payload["next_page"] = snapshot.NextPage
	}
	return printJSON(payload)
}
