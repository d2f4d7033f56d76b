package pipeline

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"starlit.dev/newsflow/internal/feed"
)

func newTestAggregator(opts Options) *Aggregator {
	return New(zerolog.Nop(), opts)
}

func rawItem(id, title, source, pubDate, link string) feed.RawArticle {
	return feed.RawArticle{
		ArticleID: id,
		Title:     title,
		SourceID:  source,
		PubDate:   pubDate,
		Link:      link,
	}
}

func TestAggregate_DropsInvalidItems(t *testing.T) {
	t.Parallel()

	raw := []feed.RawArticle{
		rawItem("a1", "Valid item", "src", "2026-02-13 10:00:00", "https://x.example/1"),
		rawItem("a2", "", "src", "2026-02-13 09:00:00", "https://x.example/2"),
		rawItem("a3", "No link", "src", "2026-02-13 08:00:00", ""),
		rawItem("a4", "No date", "src", "", "https://x.example/4"),
	}

	out, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Key() != "a1" {
		t.Fatalf("expected only the valid item to survive, got %+v", out)
	}
}

func TestAggregate_SortsNewestFirst(t *testing.T) {
	t.Parallel()

	raw := []feed.RawArticle{
		rawItem("old", "Older story", "src", "2026-02-11 10:00:00", "https://x.example/old"),
		rawItem("new", "Newer story", "src", "2026-02-13 10:00:00", "https://x.example/new"),
		rawItem("mid", "Middle story", "src", "2026-02-12 10:00:00", "https://x.example/mid"),
	}

	out, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].PublishedAt.Before(out[i].PublishedAt) {
			t.Fatalf("expected descending publish order, got %+v", out)
		}
	}
	if out[0].Key() != "new" {
		t.Fatalf("expected newest first, got %q", out[0].Key())
	}
}

func TestAggregate_ExactDedupeKeepsFirstAfterSort(t *testing.T) {
	t.Parallel()

	raw := []feed.RawArticle{
		rawItem("a1", "X", "src", "2026-01-02 00:00:00", "http://x"),
		rawItem("a1", "X dup", "src", "2026-01-01 00:00:00", "http://x"),
	}

	out, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(out))
	}
	if out[0].Title != "X" {
		t.Fatalf("expected the more recent duplicate to win, got %q", out[0].Title)
	}
}

func TestAggregate_ExactDedupeIdempotent(t *testing.T) {
	t.Parallel()

	agg := newTestAggregator(DefaultOptions())
	articles := agg.validate([]feed.RawArticle{
		rawItem("a1", "First", "src", "2026-02-13 10:00:00", "https://x.example/1"),
		rawItem("a1", "First again", "src", "2026-02-13 09:00:00", "https://x.example/1b"),
		rawItem("a2", "Second", "src", "2026-02-13 08:00:00", "https://x.example/2"),
	})

	once := agg.dedupeExact(articles)
	onceCopy := append([]feed.Article(nil), once...)
	twice := agg.dedupeExact(onceCopy)
	if len(once) != len(twice) {
		t.Fatalf("expected exact dedupe to be idempotent: %d vs %d", len(once), len(twice))
	}
}

func TestAggregate_FuzzySuppressionSameSource(t *testing.T) {
	t.Parallel()

	raw := []feed.RawArticle{
		rawItem("b1", "Market rallies as stocks surge today", "bbc", "2026-02-13 10:00:00", "https://bbc.example/1"),
		rawItem("b2", "Market rallies as stocks surge", "bbc", "2026-02-13 09:00:00", "https://bbc.example/2"),
	}

	out, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected near-duplicate to be suppressed, got %+v", out)
	}
	if out[0].Key() != "b1" {
		t.Fatalf("expected the earlier sorted entry to win, got %q", out[0].Key())
	}
}

func TestAggregate_SourceScopingRetainsCrossPublisherDuplicates(t *testing.T) {
	t.Parallel()

	raw := []feed.RawArticle{
		rawItem("b1", "Market rallies as stocks surge today", "bbc", "2026-02-13 10:00:00", "https://bbc.example/1"),
		rawItem("r1", "Market rallies as stocks surge", "reuters", "2026-02-13 09:00:00", "https://reuters.example/1"),
	}

	scoped, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("expected source scoping to retain both publishers, got %+v", scoped)
	}

	opts := DefaultOptions()
	opts.SourceScopedFuzzy = false
	unscoped, err := newTestAggregator(opts).Aggregate(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(unscoped) != 1 {
		t.Fatalf("expected unscoped fuzzy matching to keep only the first, got %+v", unscoped)
	}
}

func TestAggregate_FuzzyThresholdInclusive(t *testing.T) {
	t.Parallel()

	// Token Jaccard of these titles is exactly 3/4.
	raw := []feed.RawArticle{
		rawItem("c1", "alpha beta gamma delta", "src", "2026-02-13 10:00:00", "https://x.example/1"),
		rawItem("c2", "alpha beta gamma", "src", "2026-02-13 09:00:00", "https://x.example/2"),
	}

	out, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected a score of exactly 0.75 to suppress, got %+v", out)
	}

	// Below the threshold (3/6 = 0.5) both survive.
	raw[1] = rawItem("c2", "alpha beta gamma epsilon zeta", "src", "2026-02-13 09:00:00", "https://x.example/2")
	out, err = newTestAggregator(DefaultOptions()).Aggregate(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected sub-threshold titles to both survive, got %+v", out)
	}
}

func TestAggregate_SearchModeKeywordFilter(t *testing.T) {
	t.Parallel()

	desc := "central bank holds interest rates steady"
	raw := []feed.RawArticle{
		rawItem("d1", "Rates decision due", "src", "2026-02-13 10:00:00", "https://x.example/1"),
		rawItem("d2", "Sports roundup", "src", "2026-02-13 09:00:00", "https://x.example/2"),
	}
	raw[0].Description = &desc

	out, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "interest rates")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Key() != "d1" {
		t.Fatalf("expected strict AND keyword match, got %+v", out)
	}

	// One matching term is not enough.
	if _, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "interest cricket"); !errors.Is(err, feed.ErrNoResults) {
		t.Fatalf("expected no results for partially matching terms, got %v", err)
	}
}

func TestAggregate_FuzzyInSearchToggle(t *testing.T) {
	t.Parallel()

	raw := []feed.RawArticle{
		rawItem("e1", "Rates rally pushes markets higher", "src", "2026-02-13 10:00:00", "https://x.example/1"),
		rawItem("e2", "Rates rally pushes markets", "src", "2026-02-13 09:00:00", "https://x.example/2"),
	}

	out, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "rates")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected fuzzy dedupe in search mode by default, got %+v", out)
	}

	opts := DefaultOptions()
	opts.FuzzyInSearch = false
	out, err = newTestAggregator(opts).Aggregate(raw, "rates")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected fuzzy dedupe disabled in search mode, got %+v", out)
	}
}

func TestAggregate_EmptyResultSignalsNoResults(t *testing.T) {
	t.Parallel()

	raw := []feed.RawArticle{
		rawItem("", "", "", "", ""),
		rawItem("f1", "No date either", "src", "", "https://x.example/1"),
	}

	_, err := newTestAggregator(DefaultOptions()).Aggregate(raw, "")
	if !errors.Is(err, feed.ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestAggregate_MaxResultsCap(t *testing.T) {
	t.Parallel()

	raw := make([]feed.RawArticle, 0, 15)
	for i := 0; i < 15; i++ {
		raw = append(raw, rawItem(
			string(rune('a'+i)),
			"Story number "+string(rune('a'+i)),
			"src",
			"2026-02-13 10:00:00",
			"https://x.example/"+string(rune('a'+i)),
		))
	}

	opts := DefaultOptions()
	opts.FuzzyInSearch = false
	opts.SourceScopedFuzzy = false
	opts.FuzzyThreshold = 1
	out, err := newTestAggregator(opts).Aggregate(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != DefaultMaxResults {
		t.Fatalf("expected cap at %d results, got %d", DefaultMaxResults, len(out))
	}
}
