package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stockperf/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the stockperf tools.
type Config struct {
	Logging     Logging     `yaml:"logging"`
	Credentials Credentials `yaml:"credentials"`
	Warehouse   Warehouse   `yaml:"warehouse"`
	ObjectStore ObjectStore `yaml:"object_store"`
	Universe    Universe    `yaml:"universe"`
	MarketData  MarketData  `yaml:"market_data"`
	Ingest      Ingest      `yaml:"ingest"`
	Compare     Compare     `yaml:"compare"`
	Server      Server      `yaml:"server"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Credentials selects the credentials provider: "env" reads the process
// environment (plus an optional .env file), "file" reads a YAML secrets file.
type Credentials struct {
	Provider string `yaml:"provider"`
	Path     string `yaml:"path"`
}

// Warehouse locates the bar table.
type Warehouse struct {
	SQLitePath string `yaml:"sqlite_path"`
	Table      string `yaml:"table"`
}

// ObjectStore configures artifact staging. Kind is "s3" or "local".
type ObjectStore struct {
	Kind     string `yaml:"kind"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	LocalDir string `yaml:"local_dir"`
}

// Universe configures where the ticker list comes from. Source is one of
// "csv", "spreadsheet" or "parquet".
type Universe struct {
	Source    string   `yaml:"source"`
	Path      string   `yaml:"path"`
	URL       string   `yaml:"url"`
	ObjectKey string   `yaml:"object_key"`
	Segments  []string `yaml:"segments"`
}

// MarketData selects the bar source. Provider is "yahoo" or "alpaca".
type MarketData struct {
	Provider     string        `yaml:"provider"`
	BaseURL      string        `yaml:"base_url"`
	SymbolSuffix string        `yaml:"symbol_suffix"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// Ingest holds parameters for the incremental ingestion job.
type Ingest struct {
	DefaultStartDate string        `yaml:"default_start_date"`
	RequestInterval  time.Duration `yaml:"request_interval"`
	ArtifactName     string        `yaml:"artifact_name"`
	WorkDir          string        `yaml:"work_dir"`
	Timezone         string        `yaml:"timezone"`
	Schedule         string        `yaml:"schedule"`
}

// Compare holds defaults for the comparison pipeline.
type Compare struct {
	DefaultStartDate string `yaml:"default_start_date"`
	MinStartDate     string `yaml:"min_start_date"`
	DefaultName      string `yaml:"default_name"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// DefaultPath is the configuration file used when STOCKPERF_CONFIG is unset.
const DefaultPath = "config/stockperf.yaml"

// Path returns the configuration file path from STOCKPERF_CONFIG, falling
// back to DefaultPath.
func Path() string {
	if p := os.Getenv("STOCKPERF_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and fills defaults.
// A missing file is not an error: defaults and the environment still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("CREDENTIALS_PROVIDER"); v != "" {
		cfg.Credentials.Provider = v
	}
	if v := os.Getenv("CREDENTIALS_PATH"); v != "" {
		cfg.Credentials.Path = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Warehouse.SQLitePath = v
	}
	if v := os.Getenv("WAREHOUSE_TABLE"); v != "" {
		cfg.Warehouse.Table = v
	}

	if v := os.Getenv("OBJECT_STORE_KIND"); v != "" {
		cfg.ObjectStore.Kind = v
	}
	if v := os.Getenv("OBJECT_STORE_BUCKET"); v != "" {
		cfg.ObjectStore.Bucket = v
	}
	if v := os.Getenv("OBJECT_STORE_ENDPOINT"); v != "" {
		cfg.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.ObjectStore.Region = v
	}

	if v := os.Getenv("UNIVERSE_SOURCE"); v != "" {
		cfg.Universe.Source = v
	}
	if v := os.Getenv("UNIVERSE_PATH"); v != "" {
		cfg.Universe.Path = v
	}
	if v := os.Getenv("UNIVERSE_SEGMENTS"); v != "" {
		cfg.Universe.Segments = splitList(v)
	}

	if v := os.Getenv("MARKET_DATA_PROVIDER"); v != "" {
		cfg.MarketData.Provider = v
	}

	if v := os.Getenv("INGEST_START_DATE"); v != "" {
		cfg.Ingest.DefaultStartDate = v
	}
	if v := os.Getenv("INGEST_SCHEDULE"); v != "" {
		cfg.Ingest.Schedule = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Credentials.Provider == "" {
		cfg.Credentials.Provider = "env"
	}
	if cfg.Warehouse.SQLitePath == "" {
		cfg.Warehouse.SQLitePath = "data/warehouse.db"
	}
	if cfg.Warehouse.Table == "" {
		cfg.Warehouse.Table = "stock_data"
	}
	if cfg.ObjectStore.Kind == "" {
		cfg.ObjectStore.Kind = "local"
	}
	if cfg.ObjectStore.LocalDir == "" {
		cfg.ObjectStore.LocalDir = "data/objects"
	}
	if cfg.Universe.Source == "" {
		cfg.Universe.Source = "csv"
	}
	if cfg.Universe.Path == "" && cfg.Universe.Source == "csv" {
		cfg.Universe.Path = "stock_code_name_mapping.csv"
	}
	if cfg.Universe.ObjectKey == "" {
		cfg.Universe.ObjectKey = "stocklist.parquet"
	}
	if cfg.MarketData.Provider == "" {
		cfg.MarketData.Provider = "yahoo"
	}
	if cfg.MarketData.Provider == "yahoo" && cfg.MarketData.SymbolSuffix == "" {
		cfg.MarketData.SymbolSuffix = ".T"
	}
	if cfg.MarketData.Timeout == 0 {
		cfg.MarketData.Timeout = 30 * time.Second
	}
	if cfg.MarketData.MaxAttempts == 0 {
		cfg.MarketData.MaxAttempts = 3
	}
	if cfg.Ingest.DefaultStartDate == "" {
		cfg.Ingest.DefaultStartDate = "2024-01-01"
	}
	if cfg.Ingest.RequestInterval == 0 {
		cfg.Ingest.RequestInterval = time.Second
	}
	if cfg.Ingest.ArtifactName == "" {
		cfg.Ingest.ArtifactName = "combined_stock_data.parquet"
	}
	if cfg.Ingest.WorkDir == "" {
		cfg.Ingest.WorkDir = "output"
	}
	if cfg.Ingest.Timezone == "" {
		cfg.Ingest.Timezone = "Asia/Tokyo"
	}
	if cfg.Compare.DefaultStartDate == "" {
		cfg.Compare.DefaultStartDate = "2024-01-01"
	}
	if cfg.Compare.MinStartDate == "" {
		cfg.Compare.MinStartDate = "2023-01-01"
	}
	if cfg.Compare.DefaultName == "" {
		cfg.Compare.DefaultName = "トヨタ自動車"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"ingest.default_start_date":  c.Ingest.DefaultStartDate,
		"compare.default_start_date": c.Compare.DefaultStartDate,
		"compare.min_start_date":     c.Compare.MinStartDate,
	} {
		if _, err := domain.ParseDate(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	switch c.ObjectStore.Kind {
	case "local":
	case "s3":
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("object_store.bucket is required for kind s3")
		}
	default:
		return fmt.Errorf("object_store.kind %q: want s3 or local", c.ObjectStore.Kind)
	}

	switch c.Universe.Source {
	case "csv":
		if c.Universe.Path == "" {
			return fmt.Errorf("universe.path is required for source csv")
		}
	case "spreadsheet":
		if c.Universe.Path == "" && c.Universe.URL == "" {
			return fmt.Errorf("universe.path or universe.url is required for source spreadsheet")
		}
	case "parquet":
	default:
		return fmt.Errorf("universe.source %q: want csv, spreadsheet or parquet", c.Universe.Source)
	}

	switch c.MarketData.Provider {
	case "yahoo", "alpaca":
	default:
		return fmt.Errorf("market_data.provider %q: want yahoo or alpaca", c.MarketData.Provider)
	}

	switch c.Credentials.Provider {
	case "env", "file":
	default:
		return fmt.Errorf("credentials.provider %q: want env or file", c.Credentials.Provider)
	}

	if c.Ingest.RequestInterval < time.Second {
		return fmt.Errorf("ingest.request_interval %s is below the 1s upstream limit", c.Ingest.RequestInterval)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
