package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stockperf.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "debug"
  format: "text"
warehouse:
  sqlite_path: "/tmp/stockperf/warehouse.db"
  table: "fct_stock_data"
object_store:
  kind: "s3"
  bucket: "stock-data-bucket"
  region: "ap-northeast-1"
universe:
  source: "spreadsheet"
  url: "https://example.com/data_j.xlsx"
  segments: ["プライム", "グロース"]
market_data:
  provider: "yahoo"
  timeout: 10s
ingest:
  default_start_date: "2024-01-01"
  request_interval: 2s
  artifact_name: "combined.parquet"
server:
  host: "0.0.0.0"
  port: 9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Warehouse.Table != "fct_stock_data" {
		t.Errorf("Warehouse.Table = %q, want %q", cfg.Warehouse.Table, "fct_stock_data")
	}
	if cfg.ObjectStore.Bucket != "stock-data-bucket" {
		t.Errorf("ObjectStore.Bucket = %q, want %q", cfg.ObjectStore.Bucket, "stock-data-bucket")
	}
	if len(cfg.Universe.Segments) != 2 || cfg.Universe.Segments[1] != "グロース" {
		t.Errorf("Universe.Segments = %v, want [プライム グロース]", cfg.Universe.Segments)
	}
	if cfg.MarketData.Timeout != 10*time.Second {
		t.Errorf("MarketData.Timeout = %s, want 10s", cfg.MarketData.Timeout)
	}
	if cfg.MarketData.SymbolSuffix != ".T" {
		t.Errorf("MarketData.SymbolSuffix = %q, want %q", cfg.MarketData.SymbolSuffix, ".T")
	}
	if cfg.Ingest.RequestInterval != 2*time.Second {
		t.Errorf("Ingest.RequestInterval = %s, want 2s", cfg.Ingest.RequestInterval)
	}
	if cfg.Server.Addr() != "0.0.0.0:9000" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "0.0.0.0:9000")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Ingest.DefaultStartDate != "2024-01-01" {
		t.Errorf("Ingest.DefaultStartDate = %q, want %q", cfg.Ingest.DefaultStartDate, "2024-01-01")
	}
	if cfg.Ingest.RequestInterval != time.Second {
		t.Errorf("Ingest.RequestInterval = %s, want 1s", cfg.Ingest.RequestInterval)
	}
	if cfg.Ingest.ArtifactName != "combined_stock_data.parquet" {
		t.Errorf("Ingest.ArtifactName = %q", cfg.Ingest.ArtifactName)
	}
	if cfg.Warehouse.Table != "stock_data" {
		t.Errorf("Warehouse.Table = %q, want %q", cfg.Warehouse.Table, "stock_data")
	}
	if cfg.ObjectStore.Kind != "local" {
		t.Errorf("ObjectStore.Kind = %q, want %q", cfg.ObjectStore.Kind, "local")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
warehouse:
  table: "yaml_table"
  sqlite_path: "/original/warehouse.db"
`)

	t.Setenv("WAREHOUSE_TABLE", "env_table")
	t.Setenv("UNIVERSE_SEGMENTS", "Prime, Growth ,")
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Warehouse.Table != "env_table" {
		t.Errorf("Warehouse.Table = %q, want %q (env override)", cfg.Warehouse.Table, "env_table")
	}
	// sqlite_path should remain from YAML since no env override was set.
	if cfg.Warehouse.SQLitePath != "/original/warehouse.db" {
		t.Errorf("Warehouse.SQLitePath = %q, want %q (from YAML)", cfg.Warehouse.SQLitePath, "/original/warehouse.db")
	}
	if len(cfg.Universe.Segments) != 2 || cfg.Universe.Segments[0] != "Prime" || cfg.Universe.Segments[1] != "Growth" {
		t.Errorf("Universe.Segments = %v, want [Prime Growth]", cfg.Universe.Segments)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"s3 without bucket": func(c *Config) { c.ObjectStore.Kind = "s3"; c.ObjectStore.Bucket = "" },
		"bad start date":    func(c *Config) { c.Ingest.DefaultStartDate = "01/01/2024" },
		"fast interval":     func(c *Config) { c.Ingest.RequestInterval = 100 * time.Millisecond },
		"unknown provider":  func(c *Config) { c.MarketData.Provider = "bloomberg" },
		"unknown universe":  func(c *Config) { c.Universe.Source = "ftp" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			if err != nil {
				t.Fatalf("Load() returned error: %v", err)
			}
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
