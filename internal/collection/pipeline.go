package collection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pokedan/cardwatch/backend/internal/metrics"
	"github.com/pokedan/cardwatch/backend/internal/models"
	"github.com/pokedan/cardwatch/backend/internal/scrape"
)

// ListingFetcher is the listing page source.
type ListingFetcher interface {
	FetchDocument(ctx context.Context) (string, error)
	FetchFragment(ctx context.Context, page int) (string, error)
}

// RateCache is the slice of the currency rate cache the pipeline needs.
type RateCache interface {
	RateSource
	RefreshIfStale(ctx context.Context)
}

// Pipeline runs one listing scrape end to end: fetch, extract, aggregate,
// resolve images, convert prices, assemble. A run either returns a fatal
// error or a usable snapshot; every other condition is absorbed into the
// snapshot's diagnostics and null fields.
type Pipeline struct {
	listing   ListingFetcher
	extractor *scrape.Extractor
	rates     RateCache
	images    ImageResolver
	maxPages  int
	workers   int
	logger    zerolog.Logger
}

// NewPipeline wires the pipeline. images may be nil, in which case entities
// keep nil image URLs. workers bounds concurrent detail-page fetches.
func NewPipeline(listing ListingFetcher, extractor *scrape.Extractor, rates RateCache, images ImageResolver, maxPages, workers int, logger zerolog.Logger) *Pipeline {
	if maxPages <= 0 {
		maxPages = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		listing:   listing,
		extractor: extractor,
		rates:     rates,
		images:    images,
		maxPages:  maxPages,
		workers:   workers,
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one pipeline pass and returns a new snapshot. A cancelled
// context abandons the run; no partial snapshot is ever returned.
func (p *Pipeline) Run(ctx context.Context) (*models.CollectionSnapshot, error) {
	start := time.Now()

	snapshot, err := p.run(ctx)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("fatal").Inc()
		return nil, err
	}

	result := "success"
	if snapshot.CardCount == nil {
		result = "degraded"
	}
	metrics.PipelineRunsTotal.WithLabelValues(result).Inc()
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	p.observeSnapshot(snapshot)

	p.logger.Info().
		Int("cards", len(snapshot.Cards)).
		Int("diagnostics", len(snapshot.Diagnostics)).
		Str("result", result).
		Dur("took", time.Since(start)).
		Msg("pipeline run complete")

	return snapshot, nil
}

func (p *Pipeline) run(ctx context.Context) (*models.CollectionSnapshot, error) {
	document, err := p.listing.FetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	records, diags, err := p.extractor.Extract(document)
	if err != nil {
		return nil, err
	}

	// The source serves overflow rows through paged fragments; keep going
	// until a page comes back empty. rowOffset counts every row seen, skipped
	// ones included, so diagnostics stay attributable across pages.
	rowOffset := len(records) + len(diags)
	for page := 1; page < p.maxPages; page++ {
		fragment, err := p.listing.FetchFragment(ctx, page)
		if err != nil {
			return nil, err
		}
		more, moreDiags, err := p.extractor.ExtractRows(fragment, rowOffset)
		if err != nil {
			return nil, err
		}
		diags = append(diags, moreDiags...)
		if len(more) == 0 {
			break
		}
		records = append(records, more...)
		rowOffset += len(more) + len(moreDiags)
	}

	summary := p.extractor.ExtractSummary(document)
	if summary == nil {
		diags = append(diags, models.Diagnostic{
			Kind:   models.DiagnosticSummaryMissing,
			Detail: "summary region not found or unparseable, totals degraded to null",
		})
	}

	entities := Aggregate(records)
	diags = append(diags, p.resolveImages(ctx, entities)...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.rates.RefreshIfStale(ctx)
	if _, ok := p.rates.GetRate("USD", "AUD"); !ok {
		diags = append(diags, models.Diagnostic{
			Kind:   models.DiagnosticRatesUnavailable,
			Detail: "no exchange rates available, converted amounts degraded to null",
		})
	}

	return Assemble(entities, p.rates, summary, diags), nil
}

// resolveImages fans out detail-page fetches across independent entities,
// bounded by the worker limit. Results are written back by index so entity
// order is preserved regardless of completion order.
func (p *Pipeline) resolveImages(ctx context.Context, entities []models.CardEntity) []models.Diagnostic {
	if p.images == nil {
		return nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		diags  []models.Diagnostic
		tokens = make(chan struct{}, p.workers)
	)

	for i := range entities {
		if entities[i].DetailRef == "" {
			continue
		}

		wg.Add(1)
		tokens <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-tokens }()

			url, err := p.images.Resolve(ctx, entities[i].DetailRef)
			if err != nil {
				mu.Lock()
				diags = append(diags, models.Diagnostic{
					Kind:   models.DiagnosticImageUnresolved,
					Field:  entities[i].Name,
					Detail: fmt.Sprintf("image resolution failed: %v", err),
				})
				mu.Unlock()
				return
			}
			entities[i].ImageURL = url
		}(i)
	}

	wg.Wait()
	return diags
}

func (p *Pipeline) observeSnapshot(snapshot *models.CollectionSnapshot) {
	gradings := 0
	for _, card := range snapshot.Cards {
		gradings += len(card.Gradings)
	}

	metrics.SnapshotCardCount.Set(float64(len(snapshot.Cards)))
	metrics.SnapshotGradingCount.Set(float64(gradings))
	if snapshot.TotalValueUSD != nil {
		metrics.SnapshotTotalValueUSD.Set(snapshot.TotalValueUSD.InexactFloat64())
	}
}
