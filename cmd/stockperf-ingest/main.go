// Incremental ingestion of Japanese daily bars into the warehouse.
//
// Usage:
//
//	go run cmd/stockperf-ingest/main.go [-cron "30 18 * * MON-FRI"]
//
// Without a schedule it performs one run and exits: status 0 when the run
// loads data, finds the warehouse current or assembles nothing, non-zero on
// any stage failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stockperf/internal/app"
	"stockperf/internal/config"
	"stockperf/internal/domain"
	"stockperf/internal/scheduler"
	"stockperf/internal/util"
)

func main() {
	schedule := flag.String("cron", "", "run as a daemon on this cron schedule (overrides ingest.schedule)")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *schedule != "" {
		cfg.Ingest.Schedule = *schedule
	}
	if cfg.Ingest.Schedule != "" {
		if err := scheduler.Validate(cfg.Ingest.Schedule); err != nil {
			log.Fatalf("invalid schedule %q: %v", cfg.Ingest.Schedule, err)
		}
	}

	// Dual logger: stdout + dated log file under the work dir.
	if err := os.MkdirAll(cfg.Ingest.WorkDir, 0o755); err != nil {
		log.Fatalf("failed to create work dir: %v", err)
	}
	logFileName := filepath.Join(cfg.Ingest.WorkDir, fmt.Sprintf("stockperf-ingest-%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	util.SetDefault(util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, cfg.Logging.Format))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open: %v", err)
	}
	defer a.Close()

	ingester, err := a.Ingester()
	if err != nil {
		log.Fatalf("failed to build ingester: %v", err)
	}

	if cfg.Ingest.Schedule == "" {
		slog.Info("starting ingestion", "logFile", logFileName)
		rep, err := ingester.Ingest(ctx)
		if err != nil {
			slog.Error("ingestion failed", "error", err)
			a.Close()
			log.Fatalf("ingestion error: %v", err)
		}
		switch rep.Status {
		case domain.StatusNoNewData:
			fmt.Println("no new data: warehouse is current")
		case domain.StatusNoData:
			fmt.Printf("no data assembled for %s (%d tickers skipped)\n", rep.Window, len(rep.Skipped))
		default:
			fmt.Printf("loaded %d rows for %s from %d tickers (%d skipped)\n",
				rep.Rows, rep.Window, rep.Fetched, len(rep.Skipped))
		}
		return
	}

	sched := scheduler.New(a.Calendar.Location())
	if err := sched.Add(cfg.Ingest.Schedule, ingester); err != nil {
		log.Fatalf("invalid schedule %q: %v", cfg.Ingest.Schedule, err)
	}
	sched.Start()
	slog.Info("ingestion daemon started", "schedule", cfg.Ingest.Schedule, "next", sched.Next(), "logFile", logFileName)

	<-ctx.Done()
	slog.Info("shutting down")
	sched.Stop()
}
