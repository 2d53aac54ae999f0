// Package adapter defines the per-source discovery/fetch/normalize contract
// and the concrete adapters for each orchid data source.
package adapter

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/verdantlab/orchidnet-go/internal/logging"
)

// Package-level logger shared by all adapters
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "adapter.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "adapter", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize adapter file logger at %s: %v. Falling back to discard logger.", logFilePath, err)
		logger = logging.NewDiscardLogger("adapter", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

// CloseLogger closes the adapter package's file logger during shutdown.
func CloseLogger() error {
	if closeLogger != nil {
		return closeLogger()
	}
	return nil
}

// SourceMetadata identifies a data source. One immutable instance exists per
// adapter; its attribution fields (License, RightsHolder) are hard licensing
// requirements and must be non-empty.
type SourceMetadata struct {
	ID             string // Stable source identifier, e.g. "iospe"
	Name           string // Display name
	BaseURL        string
	License        string
	RightsHolder   string
	Country        string
	Locality       string
	Collector      string
	CollectionDate string
}

// OrchidAsset is a discovered candidate (image plus minimal descriptive
// text) prior to the full record fetch. Assets are ephemeral; they are
// consumed by FetchRecord and never persisted directly.
type OrchidAsset struct {
	ImageURL       string
	Description    string
	ScientificName string // Best-effort, may be empty
	Genus          string
	Species        string
	License        string            // Source-record-level license override
	Metadata       map[string]string // Adapter-specific bag (detail URLs, API keys)
}

// RawRecord is the source-specific result of fetching one asset's detail
// page, before normalization into the canonical schema.
type RawRecord struct {
	ScientificName string
	NameCertain    bool // false when the name came from a failed/heuristic extraction
	Genus          string
	Species        string
	ImageURL       string
	Description    string
	SourceURL      string // Page or API URL this record came from

	// Optional per-record overrides of the source-level metadata
	License        string
	RightsHolder   string
	Country        string
	Locality       string
	Collector      string
	CollectionDate string
}

// Adapter is the per-source capability set. Every method that performs I/O
// degrades to an empty or nil result instead of returning an error: a single
// broken page must not abort an ingestion run. The orchestrator is the only
// place where failures surface as run state.
type Adapter interface {
	// SourceInfo returns the source's immutable metadata. No I/O.
	SourceInfo() SourceMetadata

	// DiscoverTaxa crawls the source's index and returns up to limit taxon
	// identifiers in source-native form. Returns an empty slice on any
	// fetch failure.
	DiscoverTaxa(ctx context.Context, limit int) []string

	// ListAssets returns candidate assets found for one taxon. Malformed
	// entries (missing src, absent alt text) are skipped, not fatal.
	ListAssets(ctx context.Context, taxon string) []OrchidAsset

	// FetchRecord fetches the asset's detail page and returns a raw record,
	// or nil on fetch failure.
	FetchRecord(ctx context.Context, asset *OrchidAsset) *RawRecord
}

// Registry maps source ids to adapter instances. New sources register here
// instead of being hard-coded into the orchestrator.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its source id, replacing any previous
// registration for the same id.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := a.SourceInfo().ID
	r.adapters[id] = a
	logger.Debug("Registered source adapter", "source", id)
}

// Get returns the adapter for a source id.
func (r *Registry) Get(id string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns all registered source ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
