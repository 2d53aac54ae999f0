// Package ingest drives the ingestion pipeline: discover taxa, list assets,
// fetch, normalize, dedup-check, persist, with per-source run logging.
package ingest

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/verdantlab/orchidnet-go/internal/adapter"
	"github.com/verdantlab/orchidnet-go/internal/datastore"
	"github.com/verdantlab/orchidnet-go/internal/logging"
	"github.com/verdantlab/orchidnet-go/internal/observability/metrics"
)

// Package-level logger for the ingest service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "ingest.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "ingest", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize ingest file logger at %s: %v. Falling back to discard logger.", logFilePath, err)
		logger = logging.NewDiscardLogger("ingest", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

// DefaultAssetDelay is the polite delay between per-asset fetches, applied
// on top of the fetcher's own domain throttling to bound the total request
// rate against any one source.
const DefaultAssetDelay = 1 * time.Second

// RunResult summarizes one source's run within an orchestration invocation.
type RunResult struct {
	Processed      int    `json:"processed"`
	Errors         int    `json:"errors"`
	Skipped        int    `json:"skipped"`
	TaxaDiscovered int    `json:"taxa_discovered"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
}

// Config wires the orchestrator's collaborators. Everything is injected
// explicitly; there are no process-wide singletons.
type Config struct {
	Registry *adapter.Registry
	Store    datastore.Interface
	Metrics  *metrics.IngestionMetrics // optional

	// AssetDelay is the per-asset polite delay; DefaultAssetDelay when zero.
	AssetDelay time.Duration

	// SourceLimits caps taxa discovery per source id; zero or absent means
	// no cap beyond maxRecordsPerSource.
	SourceLimits map[string]int
}

// Orchestrator drives the pipeline for each requested source, strictly
// sequentially. Sources, taxa, and assets are processed in order; a broken
// source marks only its own run as errored and the next source proceeds.
type Orchestrator struct {
	registry     *adapter.Registry
	store        datastore.Interface
	metrics      *metrics.IngestionMetrics
	dedup        *DeduplicationGate
	assetDelay   time.Duration
	sourceLimits map[string]int

	stopRequested atomic.Bool

	// Injectable for tests
	sleep func(time.Duration)
}

// NewOrchestrator creates an orchestrator from explicit collaborators.
func NewOrchestrator(config Config) *Orchestrator {
	assetDelay := config.AssetDelay
	if assetDelay == 0 {
		assetDelay = DefaultAssetDelay
	}
	return &Orchestrator{
		registry:     config.Registry,
		store:        config.Store,
		metrics:      config.Metrics,
		dedup:        NewDeduplicationGate(config.Store),
		assetDelay:   assetDelay,
		sourceLimits: config.SourceLimits,
		sleep:        time.Sleep,
	}
}

// Stop requests a best-effort stop of a running collection. The flag is
// checked between taxa only; an in-flight asset fetch completes first.
func (o *Orchestrator) Stop() {
	o.stopRequested.Store(true)
}

// RunCollection is the sole externally invoked entry point into the
// ingestion core. It runs each requested source to its own terminal state
// and returns per-source results; it never propagates an exception to the
// caller.
func (o *Orchestrator) RunCollection(ctx context.Context, sourceIDs []string, maxRecordsPerSource int) map[string]RunResult {
	o.stopRequested.Store(false)
	runID := uuid.New().String()

	logger.Info("Collection run starting",
		"run_id", runID,
		"sources", sourceIDs,
		"max_records_per_source", maxRecordsPerSource)

	results := make(map[string]RunResult, len(sourceIDs))
	for _, sourceID := range sourceIDs {
		results[sourceID] = o.runSource(ctx, runID, sourceID, maxRecordsPerSource)
	}

	logger.Info("Collection run finished", "run_id", runID)
	return results
}

// runSource runs one source to completion. States: pending → processing →
// completed|error. Only here do unexpected panics surface; they mark this
// source's run as errored and the orchestration continues.
func (o *Orchestrator) runSource(ctx context.Context, runID, sourceID string, maxRecords int) (result RunResult) {
	start := time.Now()
	result = RunResult{Status: datastore.RunStatusPending}

	src, ok := o.registry.Get(sourceID)
	if !ok {
		result.Status = datastore.RunStatusError
		result.Message = fmt.Sprintf("unknown source: %s", sourceID)
		logger.Error("Unknown source requested", "run_id", runID, "source", sourceID)
		return result
	}
	meta := src.SourceInfo()

	runRow := &datastore.CollectionRun{
		RunID:     runID,
		Source:    sourceID,
		URL:       meta.BaseURL,
		Status:    datastore.RunStatusProcessing,
		StartedAt: start,
	}
	if err := o.store.CreateCollectionRun(runRow); err != nil {
		logger.Error("Failed to create run log row", "source", sourceID, "error", err)
		// The run proceeds; the log row is advisory
	}

	defer func() {
		if r := recover(); r != nil {
			result.Status = datastore.RunStatusError
			result.Message = fmt.Sprintf("unexpected failure: %v", r)
			logger.Error("Source run panicked", "run_id", runID, "source", sourceID, "panic", r)
		}
		o.finishRun(runRow, &result, time.Since(start))
	}()

	result.Status = datastore.RunStatusProcessing

	discoverLimit := maxRecords
	if limit, ok := o.sourceLimits[sourceID]; ok && limit > 0 && limit < discoverLimit {
		discoverLimit = limit
	}
	taxa := src.DiscoverTaxa(ctx, discoverLimit)
	result.TaxaDiscovered = len(taxa)
	runRow.ItemsFound = len(taxa)
	if o.metrics != nil {
		o.metrics.RecordTaxaDiscovered(sourceID, len(taxa))
	}
	logger.Info("Taxa discovered", "run_id", runID, "source", sourceID, "count", len(taxa))

taxaLoop:
	for _, taxon := range taxa {
		if o.stopRequested.Load() {
			logger.Info("Stop requested, ending source run", "run_id", runID, "source", sourceID)
			break
		}
		if ctx.Err() != nil {
			logger.Info("Context cancelled, ending source run", "run_id", runID, "source", sourceID)
			break
		}

		assets := src.ListAssets(ctx, taxon)
		for i := range assets {
			if result.Processed >= maxRecords {
				break taxaLoop
			}

			o.processAsset(ctx, src, &meta, &assets[i], &result)

			// Polite delay between per-asset fetches, independent of the
			// fetcher's own domain throttling
			if i < len(assets)-1 {
				o.sleep(o.assetDelay)
			}
		}
	}

	result.Status = datastore.RunStatusCompleted
	return result
}

// processAsset runs one asset through fetch → normalize → dedup → persist,
// updating counters. Failures affect only this asset.
func (o *Orchestrator) processAsset(ctx context.Context, src adapter.Adapter, meta *adapter.SourceMetadata, asset *adapter.OrchidAsset, result *RunResult) {
	sourceID := meta.ID

	raw := src.FetchRecord(ctx, asset)
	if raw == nil {
		// Fetch failures and policy blocks degrade to nil; skip the item
		result.Errors++
		if o.metrics != nil {
			o.metrics.RecordError(sourceID, "fetch")
		}
		return
	}

	record, err := adapter.NormalizeToDarwinCore(raw, meta)
	if err != nil {
		logger.Warn("Record failed normalization",
			"source", sourceID, "image_url", raw.ImageURL, "error", err)
		result.Errors++
		if o.metrics != nil {
			o.metrics.RecordError(sourceID, "normalize")
		}
		return
	}

	dup, err := o.dedup.IsDuplicate(record)
	if err != nil {
		logger.Warn("Dedup lookup failed", "source", sourceID, "error", err)
		result.Errors++
		if o.metrics != nil {
			o.metrics.RecordError(sourceID, "persist")
		}
		return
	}
	if dup {
		result.Skipped++
		if o.metrics != nil {
			o.metrics.RecordSkipped(sourceID)
		}
		logger.Debug("Duplicate record skipped",
			"source", sourceID, "scientific_name", record.ScientificName)
		return
	}

	if err := o.store.SaveRecord(toStoredRecord(record)); err != nil {
		// Includes duplicate-insert races caught by the unique index
		logger.Warn("Failed to persist record",
			"source", sourceID, "scientific_name", record.ScientificName, "error", err)
		result.Errors++
		if o.metrics != nil {
			o.metrics.RecordError(sourceID, "persist")
		}
		return
	}

	result.Processed++
	if o.metrics != nil {
		o.metrics.RecordProcessed(sourceID)
	}
}

// finishRun writes the run row's terminal state and run metrics.
func (o *Orchestrator) finishRun(runRow *datastore.CollectionRun, result *RunResult, elapsed time.Duration) {
	now := time.Now()
	runRow.Status = result.Status
	runRow.ItemsProcessed = result.Processed
	runRow.ItemsSkipped = result.Skipped
	runRow.ErrorCount = result.Errors
	runRow.ErrorMessage = result.Message
	runRow.FinishedAt = &now

	if err := o.store.UpdateCollectionRun(runRow); err != nil {
		logger.Error("Failed to update run log row", "source", runRow.Source, "error", err)
	}

	if o.metrics != nil {
		o.metrics.RecordRun(runRow.Source, result.Status)
		o.metrics.RecordRunDuration(runRow.Source, elapsed.Seconds())
	}

	logger.Info("Source run finished",
		"source", runRow.Source,
		"status", result.Status,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errors", result.Errors)
}

// toStoredRecord maps a normalized record onto the persistence model.
func toStoredRecord(record *adapter.NormalizedRecord) *datastore.OrchidRecord {
	return &datastore.OrchidRecord{
		ScientificName:  record.ScientificName,
		IngestionSource: record.SourceID,
		SourceName:      record.SourceName,
		SourceURL:       record.SourceURL,
		License:         record.License,
		RightsHolder:    record.RightsHolder,
		Country:         record.Country,
		Locality:        record.Locality,
		Genus:           record.Genus,
		Species:         record.Species,
		ImageURL:        record.ImageURL,
		Description:     record.Description,
		CollectionDate:  record.CollectionDate,
		Collector:       record.Collector,
		IngestionDate:   record.IngestionDate,
	}
}

// SetSleepFunc replaces the polite-delay sleep. Intended for tests.
func (o *Orchestrator) SetSleepFunc(fn func(time.Duration)) {
	o.sleep = fn
}

// CloseLogger closes the ingest package's file logger during shutdown.
func CloseLogger() error {
	if closeLogger != nil {
		return closeLogger()
	}
	return nil
}
