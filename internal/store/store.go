// Package store persists finished benchmark tables keyed by their input
// fingerprint, and a log of build runs.
package store

import (
	"context"
	"time"

	"github.com/sells-group/comp-benchmark/internal/model"
)

// RunFilter holds filtering options for ListRuns.
type RunFilter struct {
	Fingerprint string `json:"fingerprint,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// Store is the result cache and run log. A cache miss is never an error:
// callers rebuild and store the fresh table.
type Store interface {
	// Result cache
	GetCachedBuild(ctx context.Context, fingerprint string) (*model.CachedBuild, error)
	SetCachedBuild(ctx context.Context, fingerprint string, rows []model.BenchmarkRow, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)

	// Run log
	RecordRun(ctx context.Context, run model.BuildRun) (*model.BuildRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.BuildRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100
