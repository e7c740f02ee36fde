package opencloud

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roblox-open-cloud/datastores/internal/httpx"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
)

// DefaultBaseURL is the Open Cloud API host.
const DefaultBaseURL = "https://apis.roblox.com"

var (
	// ErrMissingAPIKey is returned by New when no API key is given.
	ErrMissingAPIKey = errors.New("opencloud: api key is required")
	// ErrInvalidUniverse is returned for a non-positive universe id.
	ErrInvalidUniverse = errors.New("opencloud: universe id must be positive")
)

// Option configures a DataStoreService.
type Option func(*config)

type config struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	maxRetries     int
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithBaseURL points the client at another host, such as a local sandbox.
func WithBaseURL(u string) Option {
	return func(c *config) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *config) { c.httpClient = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxRetries enables retries of transient failures (429, 5xx). The
// default is 0.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithLogger sets the logger shared by the transport and the stores.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for requests.
func WithTracerProvider(p trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = p }
}

// WithMeterProvider sets the OpenTelemetry meter provider for requests.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(c *config) { c.meterProvider = p }
}

func newConfig(opts []Option) config {
	c := config{
		baseURL: DefaultBaseURL,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// DataStoreService hands out ordered data store views for one universe.
type DataStoreService struct {
	universeID int64
	transport  ordereddatastore.Transport
	logger     *zap.Logger
}

// New returns a service that talks to the Open Cloud API with apiKey.
func New(apiKey string, universeID int64, opts ...Option) (*DataStoreService, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if universeID <= 0 {
		return nil, ErrInvalidUniverse
	}
	cfg := newConfig(opts)

	httpOpts := []httpx.Option{
		httpx.WithHTTPClient(cfg.httpClient),
		httpx.WithTimeout(cfg.timeout),
		httpx.WithAPIKey(apiKey),
		httpx.WithLogger(cfg.logger),
		httpx.WithTracerProvider(cfg.tracerProvider),
		httpx.WithMeterProvider(cfg.meterProvider),
	}
	if cfg.maxRetries > 0 {
		policy := httpx.DefaultRetryPolicy
		policy.MaxRetries = cfg.maxRetries
		httpOpts = append(httpOpts, httpx.WithRetryPolicy(policy))
	}

	client, err := httpx.NewClient(cfg.baseURL, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("opencloud: init HTTP client: %w", err)
	}
	return &DataStoreService{
		universeID: universeID,
		transport:  ordereddatastore.NewHTTPTransport(client),
		logger:     cfg.logger,
	}, nil
}

// NewWithTransport returns a service backed by a custom transport. Only
// WithLogger applies.
func NewWithTransport(transport ordereddatastore.Transport, universeID int64, opts ...Option) (*DataStoreService, error) {
	if transport == nil {
		return nil, errors.New("opencloud: transport is required")
	}
	if universeID <= 0 {
		return nil, ErrInvalidUniverse
	}
	cfg := newConfig(opts)
	return &DataStoreService{
		universeID: universeID,
		transport:  transport,
		logger:     cfg.logger,
	}, nil
}

// UniverseID returns the universe the service is bound to.
func (s *DataStoreService) UniverseID() int64 { return s.universeID }

// GetOrderedDataStore returns a fresh view over name/scope. params may be nil
// and an empty scope means "global". No request is made until the first
// FetchNextPage or entry operation.
func (s *DataStoreService) GetOrderedDataStore(name string, params *ordereddatastore.ListParameters, scope string) (*ordereddatastore.OrderedDataStore, error) {
	return ordereddatastore.New(s.transport, s.universeID, name, scope, params,
		ordereddatastore.WithLogger(s.logger))
}
