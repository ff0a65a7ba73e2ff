// Package credentials supplies object-store and market-data credentials to
// the pipelines. The provider is chosen once at startup; pipeline stages only
// ever see the resulting Credentials record.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credentials is the structured record handed to client constructors.
type Credentials struct {
	ObjectStore ObjectStore `yaml:"object_store"`
	MarketData  MarketData  `yaml:"market_data"`
}

// ObjectStore holds static S3-compatible keys. Empty keys mean the SDK's
// default credential chain.
type ObjectStore struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// MarketData holds API keys for providers that need them.
type MarketData struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Provider resolves Credentials.
type Provider interface {
	Name() string
	Credentials(ctx context.Context) (*Credentials, error)
}

// New returns the provider for kind ("env" or "file"). For "env", path is an
// optional .env file; for "file" it is the YAML secrets file.
func New(kind, path string) (Provider, error) {
	switch kind {
	case "", "env":
		return &EnvProvider{DotEnvPath: path}, nil
	case "file":
		if path == "" {
			return nil, fmt.Errorf("credentials: file provider needs a path")
		}
		return &FileProvider{Path: path}, nil
	default:
		return nil, fmt.Errorf("credentials: unknown provider %q", kind)
	}
}

// ---------------------------------------------------------------------------
// EnvProvider
// ---------------------------------------------------------------------------

// EnvProvider reads credentials from the environment after loading an
// optional .env file. Variables already set in the environment win over the
// file.
type EnvProvider struct {
	DotEnvPath string
}

// Name returns the provider identifier.
func (p *EnvProvider) Name() string { return "env" }

// Credentials implements Provider.
func (p *EnvProvider) Credentials(_ context.Context) (*Credentials, error) {
	if p.DotEnvPath != "" {
		if err := godotenv.Load(p.DotEnvPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", p.DotEnvPath, err)
		}
	} else {
		_ = godotenv.Load()
	}

	return &Credentials{
		ObjectStore: ObjectStore{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: unescapeNewlines(os.Getenv("AWS_SECRET_ACCESS_KEY")),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		},
		MarketData: MarketData{
			APIKey:    firstEnv("MARKET_DATA_API_KEY", "APCA_API_KEY_ID"),
			APISecret: firstEnv("MARKET_DATA_API_SECRET", "APCA_API_SECRET_KEY"),
		},
	}, nil
}

// ---------------------------------------------------------------------------
// FileProvider
// ---------------------------------------------------------------------------

// FileProvider reads credentials from a YAML secrets file mounted by the
// secret store.
type FileProvider struct {
	Path string
}

// Name returns the provider identifier.
func (p *FileProvider) Name() string { return "file" }

// Credentials implements Provider.
func (p *FileProvider) Credentials(_ context.Context) (*Credentials, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	creds := &Credentials{}
	if err := yaml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing secrets file %s: %w", p.Path, err)
	}
	creds.ObjectStore.SecretAccessKey = unescapeNewlines(creds.ObjectStore.SecretAccessKey)
	return creds, nil
}

// unescapeNewlines turns literal "\n" sequences back into newlines. Secret
// stores commonly flatten multi-line values this way.
func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
