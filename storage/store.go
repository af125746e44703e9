// Package storage hands validated product records to the persistent store.
package storage

import (
	"context"
	"fmt"

	"catalog-crawler/internal/config"
	"catalog-crawler/internal/types"
)

// Rejection describes one record the store refused
type Rejection struct {
	Index  int
	Reason string
}

// BatchResult is the outcome of an unordered batch insert
type BatchResult struct {
	InsertedCount int
	Rejected      []Rejection
}

// Store accepts batches of product records. Individual record failures are
// reported in BatchResult; the returned error is reserved for failures of
// the whole batch.
type Store interface {
	InsertBatch(ctx context.Context, collection string, records []types.ProductRecord) (BatchResult, error)
	Close(ctx context.Context) error
}

// Open connects the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.Storage, logger types.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverMongoDB:
		return NewMongoStore(ctx, cfg, logger)
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}
