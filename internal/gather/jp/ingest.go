package jp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stockperf/internal/domain"
	"stockperf/internal/gather"
)

var _ gather.Gatherer = (*Ingester)(nil)

// Report summarizes one ingestion run.
type Report struct {
	RunID  string
	Status domain.RunStatus

	Latest time.Time // warehouse watermark before the run, zero if empty
	Window gather.DateRange

	Tickers int      // universe size
	Fetched int      // tickers that returned bars
	Empty   int      // tickers with no data in the window
	Failed  int      // tickers whose request failed
	Skipped []string // codes of empty and failed tickers

	Rows          int64
	ArtifactURI   string
	JobID         string
	OrphanRemoved bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Ingester runs the incremental pipeline: watermark, universe, paced fetch,
// assembly, artifact staging and warehouse append. Runs are sequential; one
// Ingester must not run concurrently against the same table.
type Ingester struct {
	watermark *WatermarkResolver
	universe  *UniverseLoader
	fetcher   *PriceFetcher
	writer    *ArtifactWriter
	loader    *WarehouseLoader
	log       *slog.Logger
}

// NewIngester wires the pipeline stages.
func NewIngester(wm *WatermarkResolver, u *UniverseLoader, f *PriceFetcher, w *ArtifactWriter, l *WarehouseLoader) *Ingester {
	return &Ingester{
		watermark: wm,
		universe:  u,
		fetcher:   f,
		writer:    w,
		loader:    l,
		log:       slog.Default().With("gatherer", "jp-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *Ingester) Name() string { return "jp-daily" }

// Run performs one ingestion pass.
func (g *Ingester) Run(ctx context.Context) error {
	_, err := g.Ingest(ctx)
	return err
}

// Ingest performs one ingestion pass and reports what it did. A run that
// finds the warehouse current or assembles nothing succeeds with
// StatusNoNewData or StatusNoData. Failures of the watermark, universe,
// artifact and load stages abort the run.
func (g *Ingester) Ingest(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := g.log.With("run", rep.RunID)
	defer func() { rep.FinishedAt = time.Now() }()

	// 1. Watermark.
	wm, err := g.watermark.Resolve(ctx)
	if err != nil {
		return rep, err
	}
	rep.Latest = wm.Latest
	rep.Window = wm.Window
	log.Info("starting run", "window", wm.Window.String(), "days", wm.Window.Days(), "first_load", !wm.HasData())

	if wm.Window.Empty() {
		rep.Status = domain.StatusNoNewData
		log.Info("warehouse is current, no new data", "window", wm.Window.String())
		return rep, nil
	}

	// 2. Clear any artifact a failed load left behind. Its window is still
	// above the watermark and is about to be refetched.
	rep.OrphanRemoved, err = g.writer.Reconcile(ctx)
	if err != nil {
		return rep, err
	}

	// 3. Universe.
	tickers, err := g.universe.Load(ctx)
	if err != nil {
		return rep, err
	}
	rep.Tickers = len(tickers)

	// 4. Sequential paced fetch.
	var asm DatasetAssembler
	for i, t := range tickers {
		res, err := g.fetcher.Fetch(ctx, t, wm.Window)
		if err != nil {
			return rep, fmt.Errorf("fetching %s: %w", t.Code, err)
		}
		switch res.Outcome {
		case domain.OutcomeOK:
			rep.Fetched++
		case domain.OutcomeEmpty:
			rep.Empty++
			rep.Skipped = append(rep.Skipped, t.Code)
		case domain.OutcomeFailed:
			rep.Failed++
			rep.Skipped = append(rep.Skipped, t.Code)
		}
		asm.Add(res)

		if (i+1)%100 == 0 {
			log.Info("fetch progress", "done", i+1, "total", len(tickers), "rows", asm.Rows())
		}
	}

	// 5. Assemble.
	if asm.Empty() {
		rep.Status = domain.StatusNoData
		log.Warn("no data assembled, nothing written",
			"tickers", rep.Tickers, "empty", rep.Empty, "failed", rep.Failed)
		return rep, nil
	}

	// 6. Stage and load.
	rep.ArtifactURI, err = g.writer.Write(ctx, asm.Dataset())
	if err != nil {
		return rep, err
	}
	rep.JobID, rep.Rows, err = g.loader.Load(ctx, rep.ArtifactURI)
	if err != nil {
		return rep, err
	}
	g.writer.Release(ctx)

	rep.Status = domain.StatusLoaded
	log.Info("ingestion complete",
		"window", wm.Window.String(),
		"days", wm.Window.Days(),
		"tickers", rep.Tickers,
		"fetched", rep.Fetched,
		"skipped", len(rep.Skipped),
		"rows", rep.Rows,
		"uri", rep.ArtifactURI,
	)
	return rep, nil
}
