package ingest

import (
	"github.com/verdantlab/orchidnet-go/internal/adapter"
	"github.com/verdantlab/orchidnet-go/internal/datastore"
)

// DeduplicationGate decides whether a normalized record already exists
// before insertion. The check is a cheap exact match on
// (scientific name, ingestion source); fuzzy matching is a separate
// enrichment concern and deliberately absent here.
type DeduplicationGate struct {
	store datastore.Interface
}

// NewDeduplicationGate creates a gate over the given store.
func NewDeduplicationGate(store datastore.Interface) *DeduplicationGate {
	return &DeduplicationGate{store: store}
}

// IsDuplicate reports whether a record with the same scientific name and
// source is already persisted. An empty scientific name never matches; such
// records proceed to the persist attempt and rely on downstream validation.
func (g *DeduplicationGate) IsDuplicate(record *adapter.NormalizedRecord) (bool, error) {
	if record.ScientificName == "" {
		return false, nil
	}
	return g.store.RecordExists(record.ScientificName, record.SourceID)
}
