// Package pipeline orchestrates the ingestion run (fetch, dedup, persist)
// and the decoupled analysis batch loop.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/threatwire/threatwire/internal/analysis"
	"github.com/threatwire/threatwire/internal/collect"
	"github.com/threatwire/threatwire/internal/config"
	"github.com/threatwire/threatwire/internal/database"
	"github.com/threatwire/threatwire/internal/dedupe"
)

// Stats summarizes one ingestion run.
type Stats struct {
	ItemsFetched   int
	ItemsNew       int
	ItemsDuplicate int
	ItemsFailed    int
}

// Fetcher is the feed-fetch surface the pipeline needs.
type Fetcher interface {
	FetchAll(ctx context.Context) []collect.Item
}

// Analyzer is the enrichment surface the pipeline needs.
type Analyzer interface {
	Analyze(ctx context.Context, title, text string) (*analysis.Payload, error)
}

// Pipeline drives feed items through dedup and persistence, and stored
// incidents through analysis.
type Pipeline struct {
	db       *database.DB
	fetcher  Fetcher
	checker  *dedupe.Checker
	enricher Analyzer
	limiter  *rate.Limiter
}

// New builds a pipeline from configuration.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	sources := make([]collect.Source, len(cfg.Sources.Feeds))
	for i, f := range cfg.Sources.Feeds {
		sources[i] = collect.Source{Name: f.Name, URL: f.URL, Enabled: f.IsEnabled()}
	}

	client := analysis.NewHTTPClient(
		cfg.Analysis.BaseURL,
		os.Getenv(cfg.Analysis.APIKeyEnv),
		cfg.Analysis.MaxTokens,
	)

	delay := time.Duration(cfg.Analysis.BatchDelaySeconds) * time.Second
	if delay <= 0 {
		delay = 5 * time.Second
	}

	return &Pipeline{
		db:       db,
		fetcher:  collect.NewFetcher(sources, 0),
		checker:  dedupe.NewChecker(db),
		enricher: analysis.NewEnricher(client, cfg.Analysis.Models()),
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
	}
}

// RunIngestion executes one end-to-end fetch/dedup/persist run. A run log
// row tracks the execution; any error escaping the run is recorded there
// with failed status before being returned.
func (p *Pipeline) RunIngestion(ctx context.Context, sourceLabel string) (*Stats, error) {
	var src *string
	if sourceLabel != "" {
		src = &sourceLabel
	}
	run, err := p.db.CreateRun(src)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}

	stats, err := p.ingest(ctx, run.ID)
	if err != nil {
		msg := err.Error()
		status := database.RunFailed
		done := database.FormatTime(time.Now())
		if updErr := p.db.UpdateRun(run.ID, database.RunUpdate{
			Status: &status, ErrorMessage: &msg, CompletedAt: &done,
		}); updErr != nil {
			log.Printf("Error marking run %s failed: %v", run.ID, updErr)
		}
		return nil, err
	}
	return stats, nil
}

func (p *Pipeline) ingest(ctx context.Context, runID string) (*Stats, error) {
	items := p.fetcher.FetchAll(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &Stats{ItemsFetched: len(items)}
	if err := p.db.UpdateRun(runID, database.RunUpdate{ItemsFetched: &stats.ItemsFetched}); err != nil {
		return nil, fmt.Errorf("recording fetch count: %w", err)
	}

	if len(items) == 0 {
		log.Println("No items fetched, nothing to ingest")
		return stats, p.completeRun(runID, stats)
	}

	checkItems := make([]dedupe.Item, len(items))
	for i, item := range items {
		checkItems[i] = dedupe.Item{URL: item.URL, Title: item.Title, Description: item.Description}
	}
	verdicts := p.checker.CheckBatch(ctx, checkItems)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := range items {
		wg.Add(1)
		go func(item collect.Item, verdict dedupe.Verdict) {
			defer wg.Done()
			if verdict.Duplicate {
				mu.Lock()
				stats.ItemsDuplicate++
				mu.Unlock()
				return
			}

			_, err := p.db.InsertIncident(newIncident(item))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stats.ItemsNew++
			case errors.Is(err, database.ErrDuplicate):
				// Lost a check-then-insert race; the constraint is the arbiter.
				stats.ItemsFailed++
				log.Printf("Insert conflict for %s, treating as duplicate-on-race", item.URL)
			default:
				stats.ItemsFailed++
				log.Printf("Failed to insert %s: %v", item.URL, err)
			}
		}(items[i], verdicts[i])
	}
	wg.Wait()

	log.Printf("Ingestion complete: %d fetched, %d new, %d duplicate, %d failed",
		stats.ItemsFetched, stats.ItemsNew, stats.ItemsDuplicate, stats.ItemsFailed)
	return stats, p.completeRun(runID, stats)
}

func (p *Pipeline) completeRun(runID string, stats *Stats) error {
	status := database.RunCompleted
	done := database.FormatTime(time.Now())
	err := p.db.UpdateRun(runID, database.RunUpdate{
		Status:         &status,
		CompletedAt:    &done,
		ItemsFetched:   &stats.ItemsFetched,
		ItemsNew:       &stats.ItemsNew,
		ItemsDuplicate: &stats.ItemsDuplicate,
		ItemsFailed:    &stats.ItemsFailed,
	})
	if err != nil {
		return fmt.Errorf("completing run log: %w", err)
	}
	return nil
}

func newIncident(item collect.Item) database.NewIncident {
	in := database.NewIncident{
		Title:       item.Title,
		URL:         dedupe.NormalizeURL(item.URL),
		Source:      item.Source,
		PublishedAt: database.FormatTime(item.PublishedAt),
		Fingerprint: dedupe.Fingerprint(item.Title, item.Description),
	}
	if item.Description != "" {
		in.Description = &item.Description
	}
	if item.Content != "" {
		in.Content = &item.Content
	}
	return in
}

// AnalyzeBatch drives up to limit unanalyzed incidents through the
// enricher, sequentially with inter-item pacing. A per-item failure marks
// that record failed and continues; a quota-exhausted signal aborts the
// remainder. Returns the number of successfully analyzed incidents.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, limit int) (int, error) {
	incidents, err := p.db.ListUnanalyzed(limit)
	if err != nil {
		return 0, fmt.Errorf("selecting unanalyzed incidents: %w", err)
	}
	if len(incidents) == 0 {
		log.Println("No incidents pending analysis")
		return 0, nil
	}

	success := 0
	for _, inc := range incidents {
		if err := p.limiter.Wait(ctx); err != nil {
			return success, err
		}

		if err := p.db.SetStatus(inc.ID, database.StatusAnalyzing); err != nil {
			log.Printf("Error marking incident %d analyzing: %v", inc.ID, err)
			continue
		}

		payload, err := p.enricher.Analyze(ctx, inc.Title, analysisText(inc))
		if err != nil {
			if stErr := p.db.SetStatus(inc.ID, database.StatusFailed); stErr != nil {
				log.Printf("Error marking incident %d failed: %v", inc.ID, stErr)
			}
			if errors.Is(err, analysis.ErrQuotaExhausted) {
				log.Printf("Quota exhausted, aborting analysis batch after %d successes", success)
			}
			return success, err
		}
		if payload == nil {
			log.Printf("All models failed for incident %d, marking failed", inc.ID)
			if stErr := p.db.SetStatus(inc.ID, database.StatusFailed); stErr != nil {
				log.Printf("Error marking incident %d failed: %v", inc.ID, stErr)
			}
			continue
		}

		score := analysis.DeriveRiskScore(payload)
		severity := analysis.SeverityForScore(score)
		data, err := json.Marshal(payload)
		if err != nil {
			return success, fmt.Errorf("serializing payload for incident %d: %w", inc.ID, err)
		}
		if _, err := p.db.UpdateAnalysis(inc.ID, string(data), &severity, &payload.AttackType, &score); err != nil {
			log.Printf("Error storing analysis for incident %d: %v", inc.ID, err)
			if stErr := p.db.SetStatus(inc.ID, database.StatusFailed); stErr != nil {
				log.Printf("Error marking incident %d failed: %v", inc.ID, stErr)
			}
			continue
		}
		success++
		log.Printf("Analyzed [%s %d]: %s", severity, score, inc.Title)
	}

	return success, nil
}

// analysisText picks the richest available text for the enricher.
func analysisText(inc database.Incident) string {
	if inc.Content != nil && *inc.Content != "" {
		return *inc.Content
	}
	if inc.Description != nil && *inc.Description != "" {
		return *inc.Description
	}
	return inc.Title
}
