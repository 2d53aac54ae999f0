package datastore

import (
	"time"
)

// OrchidRecord is a persisted normalized record in the canonical
// Darwin-Core-like schema. The (ScientificName, IngestionSource) pair is the
// dedup key; the unique index backs the gate and catches insert races.
type OrchidRecord struct {
	ID              uint   `gorm:"primaryKey"`
	ScientificName  string `gorm:"index:idx_records_name_source,unique;index:idx_records_sciname"`
	IngestionSource string `gorm:"index:idx_records_name_source,unique"`
	SourceName      string
	SourceURL       string
	License         string
	RightsHolder    string
	Country         string
	Locality        string
	Genus           string `gorm:"index:idx_records_genus"`
	Species         string
	ImageURL        string
	Description     string
	CollectionDate  string
	Collector       string
	IngestionDate   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Run states for a collection run.
const (
	RunStatusPending    = "pending"
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusError      = "error"
)

// CollectionRun is the run log: one row per source per orchestration run,
// created at run start and updated at run end.
type CollectionRun struct {
	ID             uint   `gorm:"primaryKey"`
	RunID          string `gorm:"index:idx_runs_runid"` // Orchestration run this row belongs to
	Source         string `gorm:"index:idx_runs_source"`
	URL            string
	Status         string `gorm:"index:idx_runs_status"`
	ItemsFound     int    // Taxa discovered
	ItemsProcessed int
	ItemsSkipped   int
	ErrorCount     int
	ErrorMessage   string
	StartedAt      time.Time
	FinishedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
