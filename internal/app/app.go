// Package app builds the pipelines from configuration. Binaries open an App
// once at startup and hand its service handles to the stages explicitly.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"stockperf/internal/compare"
	"stockperf/internal/config"
	"stockperf/internal/credentials"
	"stockperf/internal/domain"
	"stockperf/internal/gather/jp"
	"stockperf/internal/marketdata"
	"stockperf/internal/store"
	"stockperf/internal/util"
)

// App holds the service handles shared by the pipelines.
type App struct {
	Config    *config.Config
	Creds     *credentials.Credentials
	Objects   store.ObjectStore
	Warehouse *store.SQLiteWarehouse
	Calendar  *util.TradingCalendar
	log       *slog.Logger
}

// Open resolves credentials and connects the object store and warehouse.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	provider, err := credentials.New(cfg.Credentials.Provider, cfg.Credentials.Path)
	if err != nil {
		return nil, err
	}
	creds, err := provider.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials (%s): %w", provider.Name(), err)
	}

	objects, err := openObjectStore(ctx, cfg.ObjectStore, creds.ObjectStore)
	if err != nil {
		return nil, err
	}

	wh, err := store.NewSQLiteWarehouse(cfg.Warehouse.SQLitePath, objects)
	if err != nil {
		return nil, fmt.Errorf("opening warehouse: %w", err)
	}

	cal, err := util.NewTradingCalendar(cfg.Ingest.Timezone)
	if err != nil {
		wh.Close()
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	a := &App{
		Config:    cfg,
		Creds:     creds,
		Objects:   objects,
		Warehouse: wh,
		Calendar:  cal,
		log:       slog.Default().With("component", "app"),
	}
	a.log.Info("opened",
		"credentials", provider.Name(),
		"object_store", objects.URI(""),
		"warehouse", cfg.Warehouse.SQLitePath,
		"table", cfg.Warehouse.Table,
	)
	return a, nil
}

// Close releases the warehouse connection.
func (a *App) Close() error {
	return a.Warehouse.Close()
}

func openObjectStore(ctx context.Context, cfg config.ObjectStore, creds credentials.ObjectStore) (store.ObjectStore, error) {
	switch cfg.Kind {
	case "s3":
		s, err := store.NewS3Store(ctx, store.S3Options{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		}, creds)
		if err != nil {
			return nil, fmt.Errorf("opening s3 store: %w", err)
		}
		return s, nil
	case "local":
		s, err := store.NewLocalStore(cfg.LocalDir, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("opening local store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown object store kind %q", cfg.Kind)
	}
}

// UniverseLoader builds the configured ticker universe loader.
func (a *App) UniverseLoader() (*jp.UniverseLoader, error) {
	u := a.Config.Universe
	var src jp.UniverseSource
	switch u.Source {
	case "csv":
		src = &jp.CSVUniverse{Path: u.Path}
	case "spreadsheet":
		src = jp.NewSpreadsheetUniverse(u.Path, u.URL, a.Config.MarketData.Timeout)
	case "parquet":
		src = &jp.ParquetUniverse{Objects: a.Objects, Key: u.ObjectKey}
	default:
		return nil, fmt.Errorf("unknown universe source %q", u.Source)
	}
	return jp.NewUniverseLoader(src, u.Segments), nil
}

// MarketData builds the configured bar source.
func (a *App) MarketData() (marketdata.Source, error) {
	md := a.Config.MarketData
	switch md.Provider {
	case "yahoo":
		return marketdata.NewYahooSource(md.BaseURL, md.Timeout, md.MaxAttempts), nil
	case "alpaca":
		src, err := marketdata.NewAlpacaSource(a.Creds.MarketData.APIKey, a.Creds.MarketData.APISecret, md.BaseURL)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", md.Provider)
	}
}

// Ingester wires the incremental ingestion pipeline.
func (a *App) Ingester() (*jp.Ingester, error) {
	cfg := a.Config
	start, err := domain.ParseDate(cfg.Ingest.DefaultStartDate)
	if err != nil {
		return nil, fmt.Errorf("ingest.default_start_date: %w", err)
	}
	universe, err := a.UniverseLoader()
	if err != nil {
		return nil, err
	}
	source, err := a.MarketData()
	if err != nil {
		return nil, err
	}

	return jp.NewIngester(
		jp.NewWatermarkResolver(a.Warehouse, cfg.Warehouse.Table, start, a.Calendar),
		universe,
		jp.NewPriceFetcher(source, util.NewPacer(cfg.Ingest.RequestInterval), cfg.MarketData.SymbolSuffix),
		jp.NewArtifactWriter(a.Objects, cfg.Ingest.WorkDir, cfg.Ingest.ArtifactName),
		jp.NewWarehouseLoader(a.Warehouse, cfg.Warehouse.Table),
	), nil
}

// Comparer loads the universe once and wires the comparison pipeline.
func (a *App) Comparer(ctx context.Context) (*compare.Comparer, error) {
	cfg := a.Config
	loader, err := a.UniverseLoader()
	if err != nil {
		return nil, err
	}
	tickers, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	defaultStart, err := domain.ParseDate(cfg.Compare.DefaultStartDate)
	if err != nil {
		return nil, fmt.Errorf("compare.default_start_date: %w", err)
	}
	minStart, err := domain.ParseDate(cfg.Compare.MinStartDate)
	if err != nil {
		return nil, fmt.Errorf("compare.min_start_date: %w", err)
	}

	return compare.NewComparer(a.Warehouse, cfg.Warehouse.Table, compare.NewDirectory(tickers), a.Calendar, compare.Options{
		DefaultStart: defaultStart,
		MinStart:     minStart,
		DefaultName:  cfg.Compare.DefaultName,
	}), nil
}
