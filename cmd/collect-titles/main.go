// Command collect-titles fetches raw release titles from configured
// scrapers, for use in building test fixtures for pkg/release's parser.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/arrflow/arrflow/internal/config"
	"github.com/arrflow/arrflow/internal/scraper"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to config file")
	output := flag.String("output", "testdata/releases.csv", "Output CSV file")
	query := flag.String("query", "", "Search query; empty searches each indexer's default feed")
	flag.Parse()

	if err := run(*configPath, *output, *query); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, output, query string) error {
	cfg, err := config.LoadWithoutValidation(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(cfg.Scrapers) == 0 {
		return fmt.Errorf("no scrapers configured")
	}

	indexers := make([]scraper.IndexerAPI, 0, len(cfg.Scrapers))
	for _, sc := range cfg.Scrapers {
		indexers = append(indexers, scraper.NewProwlarrClient(sc.URL, sc.APIKey))
	}
	pool := scraper.NewPool(indexers, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	seen := make(map[string]bool)
	var results []record

	for _, isSeries := range []bool{false, true} {
		releases, errs := pool.Search(ctx, query, isSeries)
		for _, e := range errs {
			fmt.Printf("  indexer error: %v\n", e)
		}

		kind := "movie"
		if isSeries {
			kind = "series"
		}
		newCount := 0
		for _, rel := range releases {
			if seen[rel.Title] {
				continue
			}
			seen[rel.Title] = true
			newCount++
			results = append(results, record{
				Title:    rel.Title,
				Size:     rel.Size,
				Category: kind,
				Indexer:  rel.Indexer,
			})
		}
		fmt.Printf("%s: %d results, %d new\n", kind, len(releases), newCount)
	}

	fmt.Printf("\nTotal unique titles: %d\n", len(results))

	if err := writeCSV(output, results); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	fmt.Printf("Written to %s\n", output)
	return nil
}

type record struct {
	Title    string
	Size     int64
	Category string
	Indexer  string
}

func writeCSV(path string, records []record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"title", "size", "category", "indexer"}); err != nil {
		return err
	}

	for _, r := range records {
		if err := w.Write([]string{
			r.Title,
			fmt.Sprintf("%d", r.Size),
			r.Category,
			r.Indexer,
		}); err != nil {
			return err
		}
	}

	return w.Error()
}
