// Package domain defines the core data types shared by the ingestion and
// comparison pipelines: ticker reference records, daily bars, normalized
// series, and the error taxonomy both pipelines report through.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar-date layout used on the wire, in artifacts,
// and in the warehouse.
const DateLayout = "2006-01-02"

// TickerRecord is one entry of the ticker universe.
type TickerRecord struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market,omitempty"` // listing segment, empty when the source has none
}

// DailyBar is one daily OHLCV bar. (StockCode, Date) is the natural key.
type DailyBar struct {
	Date          time.Time
	StockCode     string
	Open          decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	Close         decimal.Decimal
	AdjustedClose decimal.Decimal
	Volume        int64

	// Seq is the warehouse load order of the row. Zero for bars that have not
	// been read back from a warehouse.
	Seq int64
}

// NormalizedPoint is a single base-100 observation of one ticker.
type NormalizedPoint struct {
	Date            time.Time `json:"-"`
	Close           float64   `json:"close"`
	NormalizedClose float64   `json:"normalizedClose"`
}

// NormalizedRow is the flat row shape of a normalized series, as exported.
type NormalizedRow struct {
	Date            time.Time
	StockCode       string
	StockName       string
	NormalizedClose float64
}

// ---------------------------------------------------------------------------
// Outcome variants
// ---------------------------------------------------------------------------

// Outcome classifies a per-ticker fetch.
type Outcome int

const (
	// OutcomeOK means the source returned at least one bar.
	OutcomeOK Outcome = iota
	// OutcomeEmpty means the source had no data for the ticker and window.
	OutcomeEmpty
	// OutcomeFailed means the request itself failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunStatus is the terminal state of a successful ingestion run.
type RunStatus string

const (
	// StatusLoaded means an artifact was uploaded and appended to the warehouse.
	StatusLoaded RunStatus = "loaded"
	// StatusNoNewData means the warehouse is already current; nothing was fetched.
	StatusNoNewData RunStatus = "no_new_data"
	// StatusNoData means every ticker came back empty; nothing was written.
	StatusNoData RunStatus = "no_data"
)
