package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/verdantlab/orchidnet-go/internal/adapter"
	"github.com/verdantlab/orchidnet-go/internal/datastore"
)

func TestMain(m *testing.M) {
	// The package file logger keeps a lumberjack rotation goroutine alive
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"))
}

// memStore is an in-memory datastore.Interface for orchestrator tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]datastore.OrchidRecord
	runs    []*datastore.CollectionRun
	nextID  uint

	saveErr   error
	existsErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]datastore.OrchidRecord)}
}

func dedupKey(name, source string) string {
	return name + "|" + source
}

func (s *memStore) Open() error  { return nil }
func (s *memStore) Close() error { return nil }

func (s *memStore) SaveRecord(record *datastore.OrchidRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	key := dedupKey(record.ScientificName, record.IngestionSource)
	if _, exists := s.records[key]; exists {
		return fmt.Errorf("unique constraint violation: %s", key)
	}
	s.records[key] = *record
	return nil
}

func (s *memStore) RecordExists(scientificName, ingestionSource string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.records[dedupKey(scientificName, ingestionSource)]
	return ok, nil
}

func (s *memStore) CountRecords(ingestionSource string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, rec := range s.records {
		if ingestionSource == "" || rec.IngestionSource == ingestionSource {
			count++
		}
	}
	return count, nil
}

func (s *memStore) GetRecordsBySource(ingestionSource string, limit, offset int) ([]datastore.OrchidRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []datastore.OrchidRecord
	for _, rec := range s.records {
		if rec.IngestionSource == ingestionSource {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *memStore) CreateCollectionRun(run *datastore.CollectionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	run.ID = s.nextID
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	s.runs = append(s.runs, run)
	return nil
}

func (s *memStore) UpdateCollectionRun(run *datastore.CollectionRun) error {
	return nil
}

func (s *memStore) GetRecentRuns(limit int) ([]datastore.CollectionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := make([]datastore.CollectionRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, *run)
	}
	return runs, nil
}

func (s *memStore) seed(name, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[dedupKey(name, source)] = datastore.OrchidRecord{
		ScientificName:  name,
		IngestionSource: source,
	}
}

// stubAdapter is a scriptable in-memory source.
type stubAdapter struct {
	meta    adapter.SourceMetadata
	taxa    []string
	assets  map[string][]adapter.OrchidAsset
	records map[string]*adapter.RawRecord // keyed by asset image URL

	panicOnListAssets bool
	onListAssets      func(taxon string)
}

func newStubAdapter() *stubAdapter {
	return &stubAdapter{
		meta: adapter.SourceMetadata{
			ID:           "stub",
			Name:         "Stub Source",
			BaseURL:      "http://stub.example.org",
			License:      "CC BY 4.0",
			RightsHolder: "Stub Holder",
		},
		assets:  make(map[string][]adapter.OrchidAsset),
		records: make(map[string]*adapter.RawRecord),
	}
}

// addTaxon registers a taxon with n fetchable assets. Each asset carries a
// distinct scientific name so persisting one does not shadow its siblings
// behind the dedup gate.
func (s *stubAdapter) addTaxon(taxon string, n int) {
	s.taxa = append(s.taxa, taxon)
	for i := 0; i < n; i++ {
		name := taxon
		if i > 0 {
			name = fmt.Sprintf("%s var. %d", taxon, i)
		}
		imageURL := fmt.Sprintf("http://stub.example.org/%s/%d.jpg", taxon, i)
		s.assets[taxon] = append(s.assets[taxon], adapter.OrchidAsset{
			ImageURL:       imageURL,
			ScientificName: name,
		})
		s.records[imageURL] = &adapter.RawRecord{
			ScientificName: name,
			NameCertain:    true,
			ImageURL:       imageURL,
			SourceURL:      "http://stub.example.org/" + taxon,
		}
	}
}

func (s *stubAdapter) SourceInfo() adapter.SourceMetadata { return s.meta }

func (s *stubAdapter) DiscoverTaxa(ctx context.Context, limit int) []string {
	if len(s.taxa) > limit {
		return s.taxa[:limit]
	}
	return s.taxa
}

func (s *stubAdapter) ListAssets(ctx context.Context, taxon string) []adapter.OrchidAsset {
	if s.panicOnListAssets {
		panic("stub adapter exploded")
	}
	if s.onListAssets != nil {
		s.onListAssets(taxon)
	}
	return s.assets[taxon]
}

func (s *stubAdapter) FetchRecord(ctx context.Context, asset *adapter.OrchidAsset) *adapter.RawRecord {
	return s.records[asset.ImageURL]
}

func newTestOrchestrator(tb testing.TB, store datastore.Interface, adapters ...adapter.Adapter) *Orchestrator {
	tb.Helper()

	registry := adapter.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}

	o := NewOrchestrator(Config{Registry: registry, Store: store})
	o.SetSleepFunc(func(time.Duration) {})
	return o
}

func TestRunCollectionEndToEnd(t *testing.T) {
	store := newMemStore()
	stub := newStubAdapter()
	// Two taxa, three fetchable assets total
	stub.addTaxon("Cattleya labiata", 2)
	stub.addTaxon("Dendrobium nobile", 1)

	o := newTestOrchestrator(t, store, stub)
	results := o.RunCollection(context.Background(), []string{"stub"}, 25)

	require.Contains(t, results, "stub")
	got := results["stub"]
	assert.Equal(t, RunResult{
		Processed:      3,
		Errors:         0,
		Skipped:        0,
		TaxaDiscovered: 2,
		Status:         datastore.RunStatusCompleted,
	}, got)

	count, err := store.CountRecords("stub")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRunCollectionSkipsDuplicates(t *testing.T) {
	store := newMemStore()
	store.seed("Cattleya labiata", "stub")

	stub := newStubAdapter()
	stub.addTaxon("Cattleya labiata", 1)
	stub.addTaxon("Dendrobium nobile", 1)

	o := newTestOrchestrator(t, store, stub)
	results := o.RunCollection(context.Background(), []string{"stub"}, 25)

	got := results["stub"]
	assert.Equal(t, 1, got.Processed)
	assert.Equal(t, 1, got.Skipped)
	assert.Zero(t, got.Errors)
	assert.Equal(t, datastore.RunStatusCompleted, got.Status)
}

func TestRunCollectionCountsFetchFailures(t *testing.T) {
	store := newMemStore()
	stub := newStubAdapter()
	stub.addTaxon("Cattleya labiata", 2)
	// One asset has no backing record, so its fetch degrades to nil
	delete(stub.records, stub.assets["Cattleya labiata"][1].ImageURL)

	o := newTestOrchestrator(t, store, stub)
	got := o.RunCollection(context.Background(), []string{"stub"}, 25)["stub"]

	assert.Equal(t, 1, got.Processed)
	assert.Equal(t, 1, got.Errors)
	assert.Equal(t, datastore.RunStatusCompleted, got.Status,
		"per-asset failures must not fail the run")
}

func TestRunCollectionDiscoveryFailureCompletesEmpty(t *testing.T) {
	store := newMemStore()
	stub := newStubAdapter() // no taxa: discovery degraded to empty

	o := newTestOrchestrator(t, store, stub)
	got := o.RunCollection(context.Background(), []string{"stub"}, 25)["stub"]

	assert.Equal(t, RunResult{Status: datastore.RunStatusCompleted}, got)
}

func TestRunCollectionRespectsMaxRecords(t *testing.T) {
	store := newMemStore()
	stub := newStubAdapter()
	stub.addTaxon("Cattleya labiata", 5)
	stub.addTaxon("Dendrobium nobile", 5)

	o := newTestOrchestrator(t, store, stub)
	got := o.RunCollection(context.Background(), []string{"stub"}, 4)["stub"]

	assert.Equal(t, 4, got.Processed)
	assert.Equal(t, datastore.RunStatusCompleted, got.Status)
}

func TestRunCollectionHonorsSourceTaxaLimit(t *testing.T) {
	store := newMemStore()
	stub := newStubAdapter()
	stub.addTaxon("Cattleya labiata", 1)
	stub.addTaxon("Dendrobium nobile", 1)
	stub.addTaxon("Vanda coerulea", 1)

	registry := adapter.NewRegistry()
	registry.Register(stub)
	o := NewOrchestrator(Config{
		Registry:     registry,
		Store:        store,
		SourceLimits: map[string]int{"stub": 2},
	})
	o.SetSleepFunc(func(time.Duration) {})

	got := o.RunCollection(context.Background(), []string{"stub"}, 25)["stub"]

	// The configured per-source cap bounds discovery below max-records
	assert.Equal(t, 2, got.TaxaDiscovered)
	assert.Equal(t, 2, got.Processed)
	assert.Equal(t, datastore.RunStatusCompleted, got.Status)
}

func TestRunCollectionUnknownSource(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(t, store)

	got := o.RunCollection(context.Background(), []string{"nonesuch"}, 25)["nonesuch"]

	assert.Equal(t, datastore.RunStatusError, got.Status)
	assert.Contains(t, got.Message, "nonesuch")
}

func TestRunCollectionPanicIsolatedPerSource(t *testing.T) {
	store := newMemStore()

	broken := newStubAdapter()
	broken.meta.ID = "broken"
	broken.addTaxon("Vanda coerulea", 1)
	broken.panicOnListAssets = true

	healthy := newStubAdapter()
	healthy.addTaxon("Cattleya labiata", 1)

	o := newTestOrchestrator(t, store, broken, healthy)
	results := o.RunCollection(context.Background(), []string{"broken", "stub"}, 25)

	assert.Equal(t, datastore.RunStatusError, results["broken"].Status)
	assert.Contains(t, results["broken"].Message, "unexpected failure")

	// The healthy source is unaffected by its predecessor's failure
	assert.Equal(t, datastore.RunStatusCompleted, results["stub"].Status)
	assert.Equal(t, 1, results["stub"].Processed)
}

func TestStopEndsRunBetweenTaxa(t *testing.T) {
	store := newMemStore()
	stub := newStubAdapter()
	stub.addTaxon("Cattleya labiata", 1)
	stub.addTaxon("Dendrobium nobile", 1)
	stub.addTaxon("Vanda coerulea", 1)

	o := newTestOrchestrator(t, store, stub)
	stub.onListAssets = func(string) { o.Stop() }

	got := o.RunCollection(context.Background(), []string{"stub"}, 25)["stub"]

	// Stop lands after the first taxon's assets are in flight
	assert.Equal(t, 1, got.Processed)
	assert.Equal(t, datastore.RunStatusCompleted, got.Status)
}

func TestRunCollectionContextCancellation(t *testing.T) {
	store := newMemStore()
	stub := newStubAdapter()
	stub.addTaxon("Cattleya labiata", 1)
	stub.addTaxon("Dendrobium nobile", 1)

	ctx, cancel := context.WithCancel(context.Background())
	o := newTestOrchestrator(t, store, stub)
	stub.onListAssets = func(string) { cancel() }

	got := o.RunCollection(ctx, []string{"stub"}, 25)["stub"]
	assert.Equal(t, 1, got.Processed)
	assert.Equal(t, datastore.RunStatusCompleted, got.Status)
}

func TestRunCollectionPersistErrorCounts(t *testing.T) {
	store := newMemStore()
	store.saveErr = fmt.Errorf("disk full")

	stub := newStubAdapter()
	stub.addTaxon("Cattleya labiata", 2)

	o := newTestOrchestrator(t, store, stub)
	got := o.RunCollection(context.Background(), []string{"stub"}, 25)["stub"]

	assert.Zero(t, got.Processed)
	assert.Equal(t, 2, got.Errors)
	assert.Equal(t, datastore.RunStatusCompleted, got.Status)
}

func TestRunCollectionLogsRunRows(t *testing.T) {
	store := newMemStore()
	stub := newStubAdapter()
	stub.addTaxon("Cattleya labiata", 1)

	o := newTestOrchestrator(t, store, stub)
	o.RunCollection(context.Background(), []string{"stub"}, 25)

	runs, err := store.GetRecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "stub", runs[0].Source)
	assert.NotEmpty(t, runs[0].RunID)
}

func TestDeduplicationGateEmptyNameNeverMatches(t *testing.T) {
	store := newMemStore()
	store.seed("", "stub")
	gate := NewDeduplicationGate(store)

	dup, err := gate.IsDuplicate(&adapter.NormalizedRecord{SourceID: "stub"})
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestDeduplicationGateMatchesNameAndSource(t *testing.T) {
	store := newMemStore()
	store.seed("Cattleya labiata", "iospe")
	gate := NewDeduplicationGate(store)

	dup, err := gate.IsDuplicate(&adapter.NormalizedRecord{
		ScientificName: "Cattleya labiata",
		SourceID:       "iospe",
	})
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = gate.IsDuplicate(&adapter.NormalizedRecord{
		ScientificName: "Cattleya labiata",
		SourceID:       "singapore_botanic",
	})
	require.NoError(t, err)
	assert.False(t, dup)
}
