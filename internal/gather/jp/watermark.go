// Package jp implements the incremental daily-bar ingestion pipeline for
// Japanese equities: watermark, universe, paced fetch, assembly, artifact
// staging and the warehouse append.
package jp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stockperf/internal/domain"
	"stockperf/internal/gather"
	"stockperf/internal/store"
	"stockperf/internal/util"
)

// Watermark is the outcome of resolving the ingestion window.
type Watermark struct {
	// Latest is the max bar date already in the warehouse. Zero when the
	// table is empty.
	Latest time.Time
	// Window is the half-open fetch window [Latest+1d or default, today).
	Window gather.DateRange
}

// HasData reports whether the warehouse table held any rows.
func (w Watermark) HasData() bool { return !w.Latest.IsZero() }

// WatermarkResolver derives the next ingestion window from the warehouse.
type WatermarkResolver struct {
	warehouse    store.Warehouse
	table        string
	defaultStart time.Time
	calendar     *util.TradingCalendar
	log          *slog.Logger
}

// NewWatermarkResolver creates a resolver for table. defaultStart bounds the
// window when the table is empty.
func NewWatermarkResolver(wh store.Warehouse, table string, defaultStart time.Time, cal *util.TradingCalendar) *WatermarkResolver {
	return &WatermarkResolver{
		warehouse:    wh,
		table:        table,
		defaultStart: domain.Date(defaultStart),
		calendar:     cal,
		log:          slog.Default().With("component", "watermark"),
	}
}

// Resolve reads the table's max date once. Query failures are returned
// wrapped in domain.ErrWatermarkQuery and are not retried.
func (r *WatermarkResolver) Resolve(ctx context.Context) (Watermark, error) {
	latest, ok, err := r.warehouse.MaxDate(ctx, r.table)
	if err != nil {
		return Watermark{}, fmt.Errorf("%w: %s: %w", domain.ErrWatermarkQuery, r.table, err)
	}

	wm := Watermark{Window: gather.DateRange{Start: r.defaultStart, End: r.calendar.Today()}}
	if ok {
		wm.Latest = domain.Date(latest)
		wm.Window.Start = wm.Latest.AddDate(0, 0, 1)
	}

	r.log.Info("resolved watermark",
		"table", r.table,
		"latest", formatOptional(wm.Latest),
		"window", wm.Window.String(),
	)
	return wm, nil
}

func formatOptional(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return domain.FormatDate(t)
}
