package pipeline

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"starlit.dev/newsflow/internal/feed"
	"starlit.dev/newsflow/internal/langdetect"
)

const (
	// DefaultFuzzyThreshold is the inclusive token-Jaccard score at or above
	// which two titles are treated as near-duplicates.
	DefaultFuzzyThreshold = 0.75

	// DefaultMaxResults matches the provider page contract.
	DefaultMaxResults = 10
)

// Options fixes the aggregation policy for an Aggregator. The dedupe policy
// flags are explicit because both historical behaviors (fuzzy dedupe limited
// to browse mode, fuzzy matching across publishers) are defensible; the
// defaults apply fuzzy dedupe in both modes, scoped by source.
type Options struct {
	FuzzyThreshold    float64
	FuzzyInSearch     bool
	SourceScopedFuzzy bool
	MaxResults        int
	LanguageGuard     *langdetect.Guard
}

// DefaultOptions returns the default aggregation policy.
func DefaultOptions() Options {
	return Options{
		FuzzyThreshold:    DefaultFuzzyThreshold,
		FuzzyInSearch:     true,
		SourceScopedFuzzy: true,
		MaxResults:        DefaultMaxResults,
	}
}

// Aggregator turns raw feed batches into validated, sorted, deduplicated
// article lists.
type Aggregator struct {
	opts   Options
	logger zerolog.Logger
}

func New(logger zerolog.Logger, opts Options) *Aggregator {
	if opts.FuzzyThreshold <= 0 || opts.FuzzyThreshold > 1 {
		opts.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if opts.MaxResults < 0 {
		opts.MaxResults = 0
	}
	return &Aggregator{
		opts:   opts,
		logger: logger,
	}
}

// Aggregate runs the pipeline stages in fixed order: validate, sort by
// publication time descending, exact dedupe by identity key, keyword filter
// (search mode only), fuzzy near-duplicate suppression. A non-empty query
// selects search mode. An empty final list yields feed.ErrNoResults.
func (a *Aggregator) Aggregate(raw []feed.RawArticle, query string) ([]feed.Article, error) {
	articles := a.validate(raw)
	articles = a.sortByPublished(articles)
	articles = a.dedupeExact(articles)

	query = strings.TrimSpace(query)
	if query != "" {
		articles = filterByQuery(articles, query)
	}

	if query == "" || a.opts.FuzzyInSearch {
		articles = a.suppressNearDuplicates(articles)
	}

	if a.opts.MaxResults > 0 && len(articles) > a.opts.MaxResults {
		articles = articles[:a.opts.MaxResults]
	}

	if len(articles) == 0 {
		return nil, feed.ErrNoResults
	}
	return articles, nil
}

func (a *Aggregator) validate(raw []feed.RawArticle) []feed.Article {
	articles := make([]feed.Article, 0, len(raw))
	dropped := 0
	offLanguage := 0
	for _, item := range raw {
		article, err := feed.ParseArticle(item)
		if err != nil {
			dropped++
			continue
		}
		if !a.opts.LanguageGuard.Allows(article.Title) {
			offLanguage++
			continue
		}
		articles = append(articles, article)
	}

	if dropped > 0 || offLanguage > 0 {
		a.logger.Debug().
			Int("invalid", dropped).
			Int("off_language", offLanguage).
			Int("kept", len(articles)).
			Msg("validation dropped raw feed items")
	}
	return articles
}

// sortByPublished orders newest first; the stable sort preserves input order
// for equal timestamps.
func (a *Aggregator) sortByPublished(articles []feed.Article) []feed.Article {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	return articles
}

// dedupeExact keeps the first occurrence per identity key in sorted order.
func (a *Aggregator) dedupeExact(articles []feed.Article) []feed.Article {
	seen := make(map[string]struct{}, len(articles))
	unique := articles[:0]
	for _, article := range articles {
		key := article.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, article)
	}
	return unique
}

// filterByQuery requires every whitespace-split lowercase query term to
// appear as a substring of the title plus description. This is a strict AND
// substring match, not token-set matching.
func filterByQuery(articles []feed.Article, query string) []feed.Article {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return articles
	}

	matched := articles[:0]
	for _, article := range articles {
		haystack := strings.ToLower(article.Title)
		if article.Description != nil {
			haystack += " " + strings.ToLower(*article.Description)
		}

		keep := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				keep = false
				break
			}
		}
		if keep {
			matched = append(matched, article)
		}
	}
	return matched
}

// suppressNearDuplicates walks the exact-deduplicated list in order and
// drops any candidate whose title Jaccard score against an already accepted
// article reaches the threshold. Earlier entries win, so after the sort the
// most recent near-duplicate survives. With source scoping on, only entries
// from the same publisher suppress each other.
func (a *Aggregator) suppressNearDuplicates(articles []feed.Article) []feed.Article {
	if len(articles) < 2 {
		return articles
	}

	accepted := make([]feed.Article, 0, len(articles))
	acceptedTokens := make([][]string, 0, len(articles))
	suppressed := 0

	for _, candidate := range articles {
		tokens := feed.TokenizeTitle(candidate.Title)

		duplicate := false
		for i, existing := range accepted {
			if a.opts.SourceScopedFuzzy && existing.SourceID != candidate.SourceID {
				continue
			}
			if feed.TitleJaccard(tokens, acceptedTokens[i]) >= a.opts.FuzzyThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			suppressed++
			continue
		}

		accepted = append(accepted, candidate)
		acceptedTokens = append(acceptedTokens, tokens)
	}

	if suppressed > 0 {
		a.logger.Debug().
			Int("suppressed", suppressed).
			Int("kept", len(accepted)).
			Msg("fuzzy dedupe suppressed near-duplicate titles")
	}
	return accepted
}
