package jp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"stockperf/internal/domain"
	"stockperf/internal/store"
)

// ArtifactWriter serializes the assembled dataset to Parquet and stages it in
// the object store under a fixed key.
type ArtifactWriter struct {
	objects store.ObjectStore
	workDir string
	key     string
	log     *slog.Logger
}

// NewArtifactWriter creates a writer staging artifacts at key. The local
// file is written under workDir first.
func NewArtifactWriter(objects store.ObjectStore, workDir, key string) *ArtifactWriter {
	return &ArtifactWriter{
		objects: objects,
		workDir: workDir,
		key:     key,
		log:     slog.Default().With("component", "artifact"),
	}
}

// Reconcile deletes an artifact left at the key by a previous run whose
// warehouse load never completed. It reports whether one was found.
func (w *ArtifactWriter) Reconcile(ctx context.Context) (bool, error) {
	exists, err := w.objects.Exists(ctx, w.key)
	if err != nil {
		return false, fmt.Errorf("%w: checking %s: %w", domain.ErrArtifactWrite, w.objects.URI(w.key), err)
	}
	if !exists {
		return false, nil
	}
	w.log.Warn("orphaned artifact from an earlier run, deleting", "uri", w.objects.URI(w.key))
	if err := w.objects.Delete(ctx, w.key); err != nil {
		return true, fmt.Errorf("%w: deleting orphan %s: %w", domain.ErrArtifactWrite, w.objects.URI(w.key), err)
	}
	return true, nil
}

// Write stages bars and returns the artifact URI. Any object already at the
// key is deleted before the upload so exactly one artifact remains.
func (w *ArtifactWriter) Write(ctx context.Context, bars []domain.DailyBar) (string, error) {
	if len(bars) == 0 {
		return "", fmt.Errorf("%w: refusing to write an empty artifact", domain.ErrArtifactWrite)
	}

	if err := os.MkdirAll(w.workDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating work dir: %w", domain.ErrArtifactWrite, err)
	}
	local := filepath.Join(w.workDir, filepath.Base(w.key))
	if err := store.WriteArtifactFile(local, bars); err != nil {
		return "", fmt.Errorf("%w: serializing %s: %w", domain.ErrArtifactWrite, local, err)
	}

	uri := w.objects.URI(w.key)
	if err := w.objects.Delete(ctx, w.key); err != nil {
		return "", fmt.Errorf("%w: deleting stale %s: %w", domain.ErrArtifactWrite, uri, err)
	}
	if err := w.objects.Upload(ctx, local, w.key); err != nil {
		return "", fmt.Errorf("%w: uploading %s: %w", domain.ErrArtifactWrite, uri, err)
	}

	w.log.Info("artifact staged", "uri", uri, "rows", len(bars))
	return uri, nil
}

// Release removes the staged artifact once the warehouse holds its rows, so
// an object found at the key on a later run is always an orphan. Failures
// are logged only.
func (w *ArtifactWriter) Release(ctx context.Context) {
	if err := w.objects.Delete(ctx, w.key); err != nil {
		w.log.Warn("failed to release staged artifact", "uri", w.objects.URI(w.key), "error", err)
	}
}

// WarehouseLoader appends a staged artifact to the warehouse table.
type WarehouseLoader struct {
	warehouse store.Warehouse
	table     string
	log       *slog.Logger
}

// NewWarehouseLoader creates a loader targeting table.
func NewWarehouseLoader(wh store.Warehouse, table string) *WarehouseLoader {
	return &WarehouseLoader{
		warehouse: wh,
		table:     table,
		log:       slog.Default().With("component", "loader"),
	}
}

// Load issues the append job and waits for it. The staged artifact is left in
// place on failure.
func (l *WarehouseLoader) Load(ctx context.Context, uri string) (jobID string, rows int64, err error) {
	job, err := l.warehouse.LoadAppend(ctx, uri, l.table)
	if err != nil {
		return "", 0, fmt.Errorf("%w: starting load of %s: %w", domain.ErrWarehouseLoad, uri, err)
	}
	l.log.Info("load job started", "job", job.ID(), "uri", uri, "table", l.table)

	rows, err = job.Wait(ctx)
	if err != nil {
		return job.ID(), 0, fmt.Errorf("%w: job %s: %w", domain.ErrWarehouseLoad, job.ID(), err)
	}
	l.log.Info("load job finished", "job", job.ID(), "rows", rows)
	return job.ID(), rows, nil
}
