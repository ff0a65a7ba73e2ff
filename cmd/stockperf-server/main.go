// HTTP API for comparing the relative performance of Japanese equities.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stockperf/internal/app"
	"stockperf/internal/config"
	"stockperf/internal/httpapi"
	"stockperf/internal/util"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open: %v", err)
	}
	defer a.Close()

	comparer, err := a.Comparer(ctx)
	if err != nil {
		log.Fatalf("failed to load ticker universe: %v", err)
	}

	srv := httpapi.NewServer(cfg.Server.Addr(), comparer, a.Warehouse, cfg.Warehouse.Table)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
