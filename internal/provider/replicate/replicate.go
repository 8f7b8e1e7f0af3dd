// Package replicate implements the benchmark provider for models hosted on
// Replicate. Token counts are obtained either through the REST predictions
// API (create, then poll) or through the replicate-go SDK; time to first
// token is measured on an SDK stream.
package replicate

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"replibench/internal/models"
	"replibench/internal/provider"

	r8 "github.com/replicate/replicate-go"
	"go.uber.org/zap"
)

const (
	// Name selects this provider in configuration and results.
	Name = "replicate"
	// DefaultBaseURL is the Replicate REST API root.
	DefaultBaseURL = "https://api.replicate.com/v1"
	// DefaultTTFTMaxTokens is the token budget used when measuring time to first token.
	DefaultTTFTMaxTokens = 5
)

// DefaultModels returns the built-in model table.
func DefaultModels() []models.ModelEntry {
	return []models.ModelEntry{
		{
			Name:           "llama-2-70b-chat",
			Identifier:     "meta/llama-2-70b-chat",
			PredictionsURL: DefaultBaseURL + "/models/meta/llama-2-70b-chat/predictions",
		},
		{
			Name:           "mixtral-8x7b",
			Identifier:     "mistralai/mixtral-8x7b-instruct-v0.1",
			PredictionsURL: DefaultBaseURL + "/models/mistralai/mixtral-8x7b-instruct-v0.1/predictions",
		},
	}
}

// DefaultPollPolicy returns the polling bounds used when none are configured.
func DefaultPollPolicy() models.PollPolicy {
	return models.PollPolicy{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		Jitter:          0.5,
		MaxAttempts:     240,
		Timeout:         10 * time.Minute,
	}
}

// ValidateModels checks that every entry names both transport identifiers
// and that logical names are unique.
func ValidateModels(entries []models.ModelEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	seen := make(map[string]bool, len(entries))
	for i, m := range entries {
		if m.Name == "" {
			return fmt.Errorf("model %d: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("model %s: duplicate name", m.Name)
		}
		seen[m.Name] = true
		if m.Identifier == "" {
			return fmt.Errorf("model %s: identifier is required", m.Name)
		}
		if strings.Count(m.Identifier, "/") != 1 {
			return fmt.Errorf("model %s: identifier %q must be owner/name", m.Name, m.Identifier)
		}
		if m.PredictionsURL == "" {
			return fmt.Errorf("model %s: predictions_url is required", m.Name)
		}
	}
	return nil
}

// Config holds everything the provider needs; the credential is injected by
// the caller rather than read from the environment.
type Config struct {
	APIKey  string
	BaseURL string
	Models  []models.ModelEntry
	Poll    models.PollPolicy
}

// Option customizes a Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used for REST calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithRunner replaces the SDK-backed runner.
func WithRunner(r Runner) Option {
	return func(p *Provider) {
		p.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// Provider talks to Replicate over REST and through the SDK.
type Provider struct {
	apiKey     string
	baseURL    string
	models     map[string]models.ModelEntry
	names      []string
	poll       models.PollPolicy
	httpClient *http.Client
	runner     Runner
	logger     *zap.Logger
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.Pinger = (*Provider)(nil)

// New creates a Replicate provider. It fails with provider.ErrMissingCredential
// when cfg.APIKey is empty and with a validation error for a bad model table.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", Name, provider.ErrMissingCredential)
	}

	entries := cfg.Models
	if len(entries) == 0 {
		entries = DefaultModels()
	}
	if err := ValidateModels(entries); err != nil {
		return nil, fmt.Errorf("%s: invalid model table: %w", Name, err)
	}

	p := &Provider{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		models:     make(map[string]models.ModelEntry, len(entries)),
		poll:       withPollDefaults(cfg.Poll),
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	if p.baseURL == "" {
		p.baseURL = DefaultBaseURL
	}
	for _, m := range entries {
		p.models[m.Name] = m
		p.names = append(p.names, m.Name)
	}
	sort.Strings(p.names)

	for _, opt := range opts {
		opt(p)
	}

	if p.runner == nil {
		client, err := r8.NewClient(r8.WithToken(p.apiKey), r8.WithBaseURL(p.baseURL))
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create sdk client: %w", Name, err)
		}
		p.runner = &sdkRunner{client: client}
	}

	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return Name
}

// Models returns the supported logical model names, sorted.
func (p *Provider) Models() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

func (p *Provider) lookup(model string) (models.ModelEntry, error) {
	entry, ok := p.models[model]
	if !ok {
		return models.ModelEntry{}, &provider.UnsupportedModelError{Provider: Name, Model: model}
	}
	return entry, nil
}

func withPollDefaults(pp models.PollPolicy) models.PollPolicy {
	def := DefaultPollPolicy()
	if pp.InitialInterval <= 0 {
		pp.InitialInterval = def.InitialInterval
	}
	if pp.MaxInterval <= 0 {
		pp.MaxInterval = def.MaxInterval
	}
	if pp.Multiplier < 1 {
		pp.Multiplier = def.Multiplier
	}
	if pp.Jitter < 0 || pp.Jitter > 1 {
		pp.Jitter = def.Jitter
	}
	if pp.MaxAttempts <= 0 {
		pp.MaxAttempts = def.MaxAttempts
	}
	if pp.Timeout <= 0 {
		pp.Timeout = def.Timeout
	}
	return pp
}
