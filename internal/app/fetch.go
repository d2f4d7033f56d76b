package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"starlit.dev/newsflow/internal/cli"
	"starlit.dev/newsflow/internal/feed"
	"starlit.dev/newsflow/internal/session"
	"starlit.dev/newsflow/internal/upstream"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	query := fs.String("query", "", "Keyword search query (blank for the plain headline feed)")
	pages := fs.Int("pages", 1, "Number of feed pages to fetch and merge")
	timeout := fs.Duration("timeout", 60*time.Second, "Overall deadline for all page fetches")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *pages < 1 {
		fmt.Fprintln(os.Stderr, "--pages must be >= 1")
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store := session.NewStore()
	pageToken := ""
	for fetched := 0; fetched < *pages; fetched++ {
		page, fetchErr := parts.client.Fetch(ctx, upstream.Params{Query: effectiveQuery, PageToken: pageToken})
		if fetchErr != nil {
			fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", fetchErr)
			return 1
		}

		articles, aggErr := parts.aggregator.Aggregate(page.Results, effectiveQuery)
		if aggErr != nil {
			if errors.Is(aggErr, feed.ErrNoResults) {
				if fetched == 0 {
					fmt.Fprintln(os.Stderr, "No articles found. Try a different search term.")
					return 1
				}
				break
			}
			fmt.Fprintf(os.Stderr, "Aggregation failed: %v\n", aggErr)
			return 1
		}

		result := session.Result{Articles: articles, NextPage: page.NextPage}
		if fetched == 0 {
			// The first page is the baseline; markers only flag later pages.
			store.Hydrate(result, searchMode)
			store.ClearNewMarkers()
		} else {
			store.MergeNextPage(result)
		}

		if page.NextPage == "" {
			break
		}
		pageToken = page.NextPage
	}

	snapshot := store.Snapshot()
	if outputFormat == outputFormatJSON {
		if err := printSnapshotJSON(snapshot); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	if err := printSnapshotTable(snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}
