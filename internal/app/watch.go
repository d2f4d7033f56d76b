package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"starlit.dev/newsflow/internal/cli"
	"starlit.dev/newsflow/internal/feed"
	"starlit.dev/newsflow/internal/session"
	"starlit.dev/newsflow/internal/upstream"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	query := fs.String("query", "", "Keyword search query (blank for the plain headline feed)")
	interval := fs.Duration("interval", time.Minute, "Poll interval")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *interval < time.Second {
		fmt.Fprintln(os.Stderr, "--interval must be >= 1s")
		return 2
	}

	parts, err := bootstrap(envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}

	effectiveQuery := strings.TrimSpace(*query)
	if len([]rune(effectiveQuery)) < 2 {
		effectiveQuery = ""
	}
	searchMode := effectiveQuery != ""

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	store := session.NewStore()
	firstCycle := true

	parts.logger.Info().Str("query", effectiveQuery).Dur("interval", *interval).Msg("watch started")

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		pollOnce(ctx, parts, store, effectiveQuery, searchMode, firstCycle)
		firstCycle = false

		select {
		case <-ctx.Done():
			parts.logger.Info().Msg("watch stopped")
			return 0
		case <-ticker.C:
		}
	}
}

func pollOnce(ctx context.Context, parts *components, store *session.Store, query string, searchMode, firstCycle bool) {
	token := store.Begin()

	page, err := parts.client.Fetch(ctx, upstream.Params{Query: query})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		parts.logger.Warn().Err(err).Msg("poll fetch failed; keeping previous state")
		return
	}

	articles, err := parts.aggregator.Aggregate(page.Results, query)
	if err != nil {
		if errors.Is(err, feed.ErrNoResults) {
			parts.logger.Debug().Msg("poll returned no articles")
			return
		}
		parts.logger.Warn().Err(err).Msg("poll aggregation failed; keeping previous state")
		return
	}

	// Only the first poll establishes the search view; later polls of the
	// same query are refreshes and merge additively.
	replaceWholesale := searchMode && firstCycle
	if !store.HydrateIfLatest(token, session.Result{Articles: articles, NextPage: page.NextPage}, replaceWholesale) {
		return
	}

	snapshot := store.Snapshot()
	if firstCycle {
		fmt.Printf("Tracking %d articles.\n", len(snapshot.Articles))
		store.ClearNewMarkers()
		return
	}

	announced := 0
	for _, article := range snapshot.Articles {
		if _, isNew := snapshot.NewKeys[article.Key()]; !isNew {
			continue
		}
		fmt.Printf("NEW  %s  %s  %s\n",
			article.PublishedAt.UTC().Format(time.RFC3339),
			article.SourceID,
			article.Title,
		)
		announced++
	}
	if announced > 0 {
		parts.logger.Info().Int("count", announced).Msg("new articles arrived")
	}
	store.ClearNewMarkers()
}
