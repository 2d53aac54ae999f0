// interfaces.go: defines the interface for record and run-log persistence
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/verdantlab/orchidnet-go/internal/conf"
	"github.com/verdantlab/orchidnet-go/internal/errors"
)

// Interface abstracts the underlying database implementation. The ingestion
// core treats persistence as an opaque collaborator: it hands over
// normalized records and run-log entries, storage assigns durable identity.
type Interface interface {
	Open() error
	Close() error

	// Records
	SaveRecord(record *OrchidRecord) error
	RecordExists(scientificName, ingestionSource string) (bool, error)
	CountRecords(ingestionSource string) (int64, error)
	GetRecordsBySource(ingestionSource string, limit, offset int) ([]OrchidRecord, error)

	// Run log
	CreateCollectionRun(run *CollectionRun) error
	UpdateCollectionRun(run *CollectionRun) error
	GetRecentRuns(limit int) ([]CollectionRun, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a datastore based on the configured output.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// createGormLogger returns the GORM logger matching the debug setting.
func createGormLogger(debug bool) gormlogger.Interface {
	if debug {
		return gormlogger.Default.LogMode(gormlogger.Info)
	}
	return gormlogger.Default.LogMode(gormlogger.Silent)
}

// performAutoMigration migrates the schema for both models.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&OrchidRecord{}, &CollectionRun{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}
	if debug {
		fmt.Printf("%s database connection initialized: %s\n", dbType, connectionInfo)
	}
	return nil
}

// SaveRecord inserts a normalized record. A unique-index violation from a
// concurrent insert of the same (name, source) pair surfaces as a conflict
// error for the orchestrator to count.
func (ds *DataStore) SaveRecord(record *OrchidRecord) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}

	if err := ds.DB.Create(record).Error; err != nil {
		return errors.New(err).
			Category(errors.CategoryConflict).
			Component("datastore").
			Context("scientific_name", record.ScientificName).
			Context("source", record.IngestionSource).
			Build()
	}
	return nil
}

// RecordExists reports whether a record with the given dedup key exists.
func (ds *DataStore) RecordExists(scientificName, ingestionSource string) (bool, error) {
	if ds.DB == nil {
		return false, errors.Newf("database connection is not initialized").
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}

	var count int64
	err := ds.DB.Model(&OrchidRecord{}).
		Where("scientific_name = ? AND ingestion_source = ?", scientificName, ingestionSource).
		Count(&count).Error
	if err != nil {
		return false, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return count > 0, nil
}

// CountRecords counts persisted records, optionally filtered by source.
func (ds *DataStore) CountRecords(ingestionSource string) (int64, error) {
	var count int64
	query := ds.DB.Model(&OrchidRecord{})
	if ingestionSource != "" {
		query = query.Where("ingestion_source = ?", ingestionSource)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return count, nil
}

// GetRecordsBySource returns persisted records for one source, newest first.
func (ds *DataStore) GetRecordsBySource(ingestionSource string, limit, offset int) ([]OrchidRecord, error) {
	var records []OrchidRecord
	err := ds.DB.
		Where("ingestion_source = ?", ingestionSource).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return records, nil
}

// CreateCollectionRun inserts a run-log row at run start.
func (ds *DataStore) CreateCollectionRun(run *CollectionRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if err := ds.DB.Create(run).Error; err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("source", run.Source).
			Build()
	}
	return nil
}

// UpdateCollectionRun saves the run-log row's terminal state.
func (ds *DataStore) UpdateCollectionRun(run *CollectionRun) error {
	if err := ds.DB.Save(run).Error; err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("source", run.Source).
			Build()
	}
	return nil
}

// GetRecentRuns returns the most recent run-log rows.
func (ds *DataStore) GetRecentRuns(limit int) ([]CollectionRun, error) {
	var runs []CollectionRun
	err := ds.DB.Order("started_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return runs, nil
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
