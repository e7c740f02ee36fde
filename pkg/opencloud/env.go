package opencloud

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"

	"github.com/roblox-open-cloud/datastores/internal/devseed"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore/mock"
)

// Runtime modes accepted by OPENCLOUD_RUNTIME_MODE.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// mockUniverseID is used in mock mode when no universe is configured.
const mockUniverseID int64 = 1

// Config is the environment contract read by NewFromEnv.
type Config struct {
	RuntimeMode string        `env:"OPENCLOUD_RUNTIME_MODE" envDefault:"auto"`
	APIKey      string        `env:"OPENCLOUD_API_KEY"`
	UniverseID  int64         `env:"OPENCLOUD_UNIVERSE_ID"`
	BaseURL     string        `env:"OPENCLOUD_BASE_URL" envDefault:"https://apis.roblox.com"`
	Timeout     time.Duration `env:"OPENCLOUD_TIMEOUT" envDefault:"10s"`
	MaxRetries  int           `env:"OPENCLOUD_MAX_RETRIES" envDefault:"0"`
	MockSeed    string        `env:"OPENCLOUD_MOCK_SEED"`
}

// LoadConfig parses Config from the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("opencloud: parse environment: %w", err)
	}
	return cfg, nil
}

// NewFromEnv initialises a DataStoreService from OPENCLOUD_* variables and
// returns the resolved mode ("http" or "mock"). In auto mode the HTTP client
// is used when an API key is set.
func NewFromEnv(opts ...Option) (*DataStoreService, string, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, "", err
	}
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig is NewFromEnv for an already parsed Config. Options are
// applied after the values taken from cfg.
func NewFromConfig(cfg Config, opts ...Option) (*DataStoreService, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.RuntimeMode))
	apiKey := strings.TrimSpace(cfg.APIKey)

	switch mode {
	case "", ModeAuto:
		if apiKey != "" {
			return newHTTPService(cfg, apiKey, opts)
		}
		return newMockService(cfg, opts)
	case ModeHTTP:
		if apiKey == "" {
			return nil, "", fmt.Errorf("opencloud: HTTP mode requires OPENCLOUD_API_KEY")
		}
		return newHTTPService(cfg, apiKey, opts)
	case ModeMock:
		return newMockService(cfg, opts)
	default:
		return nil, "", fmt.Errorf("opencloud: unsupported OPENCLOUD_RUNTIME_MODE value %q", cfg.RuntimeMode)
	}
}

func newHTTPService(cfg Config, apiKey string, opts []Option) (*DataStoreService, string, error) {
	all := append([]Option{
		WithBaseURL(cfg.BaseURL),
		WithTimeout(cfg.Timeout),
		WithMaxRetries(cfg.MaxRetries),
	}, opts...)
	svc, err := New(apiKey, cfg.UniverseID, all...)
	if err != nil {
		return nil, "", err
	}
	return svc, ModeHTTP, nil
}

func newMockService(cfg Config, opts []Option) (*DataStoreService, string, error) {
	universe := cfg.UniverseID
	if universe <= 0 {
		universe = mockUniverseID
	}
	logger := newConfig(opts).logger

	store := mock.New(mock.WithLogger(logger))
	if path := strings.TrimSpace(cfg.MockSeed); path != "" {
		entries, err := devseed.LoadOrderedSeed(path)
		if err != nil {
			return nil, "", fmt.Errorf("opencloud: load mock seed: %w", err)
		}
		if err := store.Seed(universe, entries); err != nil {
			return nil, "", fmt.Errorf("opencloud: apply mock seed: %w", err)
		}
		logger.Info("loaded mock seed", zap.String("path", path), zap.Int("entries", len(entries)))
	}

	svc, err := NewWithTransport(mock.NewTransport(store), universe, opts...)
	if err != nil {
		return nil, "", err
	}
	return svc, ModeMock, nil
}
