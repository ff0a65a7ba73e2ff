// Package marketdata provides daily bar sources for the ingestion pipeline.
package marketdata

import (
	"context"
	"time"

	"stockperf/internal/domain"
)

// Source fetches historical daily bars.
type Source interface {
	// Name returns the provider identifier.
	Name() string

	// FetchDaily returns the daily bars of symbol with start <= date < end.
	// An empty slice with a nil error means the source has no data for the
	// window. Returned bars carry no StockCode; the caller assigns it.
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyBar, error)
}
