// src/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/username/salespipe/src/logger"
	"github.com/username/salespipe/src/models"
	"github.com/username/salespipe/src/processors"
	"github.com/username/salespipe/src/validation"
)

// ErrThresholdExceeded is the batch-fatal verdict: the quarantine fraction
// crossed the configured threshold and no output may be committed.
var ErrThresholdExceeded = errors.New("quarantine threshold exceeded")

// Config holds the orchestrator's runtime settings.
type Config struct {
	ThresholdFraction float64
	// Concurrency bounds the parallel enrichment stage. Values below 1 are
	// treated as 1.
	Concurrency int
	// FailFast enables the advisory mid-batch abort check after the
	// validation phase, so a clearly poisoned batch skips enrichment.
	FailFast bool
}

// Result is everything a completed (or aborted) run produced. On abort only
// RunID, Counts and Aborted are meaningful; all provisional output is
// discarded before it can reach a sink.
type Result struct {
	RunID          string
	ProcessingDate time.Time
	Orders         []models.Order
	Lines          []models.OrderProduct
	Quarantine     []models.QuarantineRecord
	Counts         processors.ThresholdCounts
	Aborted        bool
}

// Pipeline sequences validation, threshold monitoring, currency enrichment
// and schema mapping over one input batch.
type Pipeline struct {
	cfg       Config
	rates     processors.RateProvider
	validator *validation.RecordValidator
	mapper    *processors.SchemaMapper
}

// New builds a pipeline for a single run. The rate provider is injected so
// tests can substitute a deterministic fake.
func New(cfg Config, rates processors.RateProvider) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		cfg:       cfg,
		rates:     rates,
		validator: validation.NewRecordValidator(),
		mapper:    processors.NewSchemaMapper(),
	}
}

// Run processes the whole batch. Per-record failures route to quarantine and
// never stop the batch; only the threshold verdict is fatal. Every input
// record ends up either valid (and eventually committed by the caller) or
// quarantined with reasons, unless the run aborts, in which case nothing is
// committed at all.
func (p *Pipeline) Run(ctx context.Context, raws []models.RawSaleRecord, processingDate time.Time) (*Result, error) {
	runID := uuid.NewString()
	monitor := processors.NewThresholdMonitor(p.cfg.ThresholdFraction)
	enricher := processors.NewCurrencyEnricher(p.rates, processingDate)

	log := logger.L.With("runID", runID)
	log.Info("Pipeline run starting",
		"records", len(raws),
		"processingDate", processingDate.Format("2006-01-02"),
		"threshold", p.cfg.ThresholdFraction)

	// Phase 1: validation. Single-writer discipline over the seen-keys set;
	// duplicate detection is global, not partition-local.
	var valid []models.ValidatedRecord
	var quarantine []models.QuarantineRecord
	for _, raw := range raws {
		outcome := p.validator.Validate(raw)
		if outcome.IsValid() {
			valid = append(valid, *outcome.Valid)
		} else {
			quarantine = append(quarantine, *outcome.Quarantined)
			monitor.Record(true)
		}
	}

	if p.cfg.FailFast && monitor.ShouldAbort() && allValidCannotRecover(monitor, len(valid)) {
		// Even if every remaining record enriched cleanly the batch would
		// still abort, so skip the enrichment phase entirely.
		return p.abort(runID, log, monitor)
	}

	// Phase 2: enrichment, bounded parallel. Results land in per-index
	// slots, so output order stays deterministic regardless of scheduling.
	type slot struct {
		enriched    *models.EnrichedRecord
		quarantined *models.QuarantineRecord
	}
	slots := make([]slot, len(valid))

	sem := semaphore.NewWeighted(int64(p.cfg.Concurrency))
	var wg sync.WaitGroup
	for i := range valid {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("pipeline run %s: enrichment canceled: %w", runID, err)
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			enriched, q := enricher.Enrich(ctx, valid[i])
			if q != nil {
				slots[i] = slot{quarantined: q}
				monitor.Record(true)
				return
			}
			slots[i] = slot{enriched: &enriched}
			monitor.Record(false)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline run %s: %w", runID, err)
	}

	var enriched []models.EnrichedRecord
	for _, s := range slots {
		if s.quarantined != nil {
			quarantine = append(quarantine, *s.quarantined)
		} else if s.enriched != nil {
			enriched = append(enriched, *s.enriched)
		}
	}

	// End-of-batch check is authoritative: all-or-nothing at batch level.
	if monitor.ShouldAbort() {
		return p.abort(runID, log, monitor)
	}

	// Phase 3: schema mapping. Integrity mismatches quarantine whole order
	// groups; by this point the abort verdict has already been settled.
	mapped := p.mapper.Map(enriched)
	quarantine = append(quarantine, mapped.Quarantined...)

	counts := monitor.Counts()
	log.Info("Pipeline run completed",
		"orders", len(mapped.Orders),
		"lines", len(mapped.Lines),
		"quarantined", len(quarantine),
		"processed", counts.Processed,
		"fraction", counts.Fraction)

	return &Result{
		RunID:          runID,
		ProcessingDate: processingDate,
		Orders:         mapped.Orders,
		Lines:          mapped.Lines,
		Quarantine:     quarantine,
		Counts:         counts,
	}, nil
}

func (p *Pipeline) abort(runID string, log *slog.Logger, monitor *processors.ThresholdMonitor) (*Result, error) {
	counts := monitor.Counts()
	log.Error("Pipeline run aborted: quarantine threshold exceeded",
		"processed", counts.Processed,
		"quarantined", counts.Quarantined,
		"fraction", counts.Fraction,
		"threshold", counts.Threshold)
	result := &Result{
		RunID:   runID,
		Counts:  counts,
		Aborted: true,
	}
	return result, fmt.Errorf("%w: %d of %d records quarantined (%.2f > %.2f)",
		ErrThresholdExceeded, counts.Quarantined, counts.Processed, counts.Fraction, counts.Threshold)
}

// allValidCannotRecover reports whether the abort verdict is already sealed:
// even if every pending valid record passes enrichment, the final fraction
// still exceeds the threshold.
func allValidCannotRecover(monitor *processors.ThresholdMonitor, pendingValid int) bool {
	c := monitor.Counts()
	finalProcessed := c.Processed + pendingValid
	if finalProcessed == 0 {
		return false
	}
	return float64(c.Quarantined)/float64(finalProcessed) > c.Threshold
}
