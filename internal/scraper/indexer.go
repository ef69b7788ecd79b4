// Package scraper implements the Scraping capability (SPEC_FULL.md §6):
// it queries a pool of torrent indexers, parses and quality-scores each
// result, extracts its infohash, and attaches the ranked candidates to an
// item as mediaitem.Stream values for the selector to evaluate.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNoIndexers is returned when no indexer clients are configured.
var ErrNoIndexers = errors.New("scraper: no indexers configured")

// Release is one raw search result from a torrent indexer.
type Release struct {
	Title       string
	GUID        string
	Indexer     string
	DownloadURL string // magnet URI or .torrent URL
	Size        int64
	PublishDate time.Time
}

// IndexerAPI is a single torrent indexer backend (e.g. a Prowlarr/Jackett
// instance aggregating trackers).
type IndexerAPI interface {
	Name() string
	Search(ctx context.Context, query string, categories []int) ([]Release, error)
}

// Pool fans a query out to every configured indexer in parallel and
// merges the results, in the same pattern as the teacher's newznab
// indexer pool.
type Pool struct {
	indexers []IndexerAPI
	log      *slog.Logger
}

func NewPool(indexers []IndexerAPI, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{indexers: indexers, log: log.With("component", "scraper_pool")}
}

// movieCategories/seriesCategories follow the Newznab/Torznab category
// convention Prowlarr and Jackett both speak.
var (
	movieCategories  = []int{2000, 2010, 2020, 2030, 2040, 2045, 2050}
	seriesCategories = []int{5000, 5010, 5020, 5030, 5040, 5045, 5050, 5070}
)

func (p *Pool) Search(ctx context.Context, query string, isSeries bool) ([]Release, []error) {
	if len(p.indexers) == 0 {
		return nil, []error{ErrNoIndexers}
	}

	categories := movieCategories
	if isSeries {
		categories = seriesCategories
	}

	type result struct {
		releases []Release
		err      error
	}

	results := make(chan result, len(p.indexers))
	var wg sync.WaitGroup

	for _, indexer := range p.indexers {
		wg.Add(1)
		go func(idx IndexerAPI) {
			defer wg.Done()
			start := time.Now()
			releases, err := idx.Search(ctx, query, categories)
			if err != nil {
				p.log.Warn("indexer failed", "indexer", idx.Name(), "error", err, "duration_ms", time.Since(start).Milliseconds())
			} else {
				p.log.Debug("indexer returned", "indexer", idx.Name(), "results", len(releases), "duration_ms", time.Since(start).Milliseconds())
			}
			results <- result{releases: releases, err: err}
		}(indexer)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []Release
	var errs []error
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		all = append(all, r.releases...)
	}
	return all, errs
}
