// Package store defines the storage collaborators of the pipelines: the
// object store that stages artifacts, the warehouse that owns daily bars, and
// the Parquet artifact codec that moves bars between them.
package store

import (
	"context"
	"errors"
	"io"
	"time"

	"stockperf/internal/domain"
)

// ErrObjectNotFound is returned by ObjectStore.Open for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore stages artifacts before they are loaded into the warehouse.
type ObjectStore interface {
	// Upload copies the local file at localPath to key, replacing any object
	// already there.
	Upload(ctx context.Context, localPath, key string) error

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Open returns a reader for the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// URI returns the fully qualified URI of key, as handed to the warehouse.
	URI(key string) string
}

// Warehouse is the append-only table that owns DailyBar rows.
type Warehouse interface {
	// MaxDate returns the latest bar date in table. ok is false when the
	// table has no rows.
	MaxDate(ctx context.Context, table string) (max time.Time, ok bool, err error)

	// QueryBars returns the bars of the given codes with start <= date <= end,
	// ordered by date and then load order.
	QueryBars(ctx context.Context, table string, codes []string, start, end time.Time) ([]domain.DailyBar, error)

	// LoadAppend starts an append-only load of the Parquet artifact at
	// sourceURI into table.
	LoadAppend(ctx context.Context, sourceURI, table string) (LoadJob, error)
}

// LoadJob is a handle on a running warehouse load.
type LoadJob interface {
	// ID returns the job identifier recorded in the load ledger.
	ID() string

	// Wait blocks until the job reaches a terminal state and returns the
	// number of appended rows.
	Wait(ctx context.Context) (int64, error)
}
