package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"replibench/internal/models"
	"replibench/internal/provider/replicate"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Replicate models.ReplicateConfig `mapstructure:"replicate"`
	Benchmark models.BenchmarkConfig `mapstructure:"benchmark"`
}

// ValidationError reports an invalid configuration value
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Manager handles configuration loading and management
type Manager struct {
	config *Config
	viper  *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	v := viper.New()
	return &Manager{
		viper: v,
	}
}

// Load loads configuration from file and environment variables
func (m *Manager) Load(configPath string) error {
	m.setDefaults()

	if configPath != "" {
		m.viper.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		m.viper.SetConfigName("replibench")
		m.viper.SetConfigType("yaml")
		m.viper.AddConfigPath(".")
		m.viper.AddConfigPath(filepath.Join(home, ".config", "replibench"))
		m.viper.AddConfigPath("/etc/replibench")
	}

	m.viper.SetEnvPrefix("REPLIBENCH")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	// The credential keeps the variable name Replicate documents.
	if err := m.viper.BindEnv("replicate.api_key", "REPLIBENCH_REPLICATE_API_KEY", "REPLICATE_API_KEY"); err != nil {
		return fmt.Errorf("failed to bind credential env: %w", err)
	}

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	m.config = &Config{}
	if err := m.viper.Unmarshal(m.config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(m.config.Replicate.Models) == 0 {
		m.config.Replicate.Models = replicate.DefaultModels()
	}

	return m.validate()
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	poll := replicate.DefaultPollPolicy()

	m.viper.SetDefault("replicate.base_url", replicate.DefaultBaseURL)
	m.viper.SetDefault("replicate.api_key", "")
	m.viper.SetDefault("replicate.poll.initial_interval", poll.InitialInterval)
	m.viper.SetDefault("replicate.poll.max_interval", poll.MaxInterval)
	m.viper.SetDefault("replicate.poll.multiplier", poll.Multiplier)
	m.viper.SetDefault("replicate.poll.jitter", poll.Jitter)
	m.viper.SetDefault("replicate.poll.max_attempts", poll.MaxAttempts)
	m.viper.SetDefault("replicate.poll.timeout", poll.Timeout)

	m.viper.SetDefault("benchmark.concurrency", 1)
	m.viper.SetDefault("benchmark.requests", 10)
	m.viper.SetDefault("benchmark.timeout", "15m")
	m.viper.SetDefault("benchmark.max_tokens", 128)
	m.viper.SetDefault("benchmark.ttft_max_tokens", replicate.DefaultTTFTMaxTokens)
}

// validate validates the loaded configuration. A missing API key is not a
// validation failure; the provider constructor rejects it.
func (m *Manager) validate() error {
	r := m.config.Replicate
	if r.BaseURL == "" {
		return &ValidationError{Field: "replicate.base_url", Reason: "is required"}
	}
	if err := replicate.ValidateModels(r.Models); err != nil {
		return &ValidationError{Field: "replicate.models", Reason: err.Error()}
	}
	if r.Poll.MaxAttempts <= 0 {
		return &ValidationError{Field: "replicate.poll.max_attempts", Reason: "must be greater than 0"}
	}
	if r.Poll.Multiplier < 1 {
		return &ValidationError{Field: "replicate.poll.multiplier", Reason: "must be at least 1"}
	}
	if r.Poll.Jitter < 0 || r.Poll.Jitter > 1 {
		return &ValidationError{Field: "replicate.poll.jitter", Reason: "must be between 0 and 1"}
	}
	if r.Poll.Timeout <= 0 {
		return &ValidationError{Field: "replicate.poll.timeout", Reason: "must be positive"}
	}

	b := m.config.Benchmark
	if b.Concurrency <= 0 {
		return &ValidationError{Field: "benchmark.concurrency", Reason: "must be greater than 0"}
	}
	if b.Requests <= 0 {
		return &ValidationError{Field: "benchmark.requests", Reason: "must be greater than 0"}
	}
	if _, err := time.ParseDuration(b.Timeout); err != nil {
		return &ValidationError{Field: "benchmark.timeout", Reason: err.Error()}
	}

	return nil
}

// GetConfig returns the loaded configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// GetReplicateConfig returns the provider configuration
func (m *Manager) GetReplicateConfig() models.ReplicateConfig {
	if m.config == nil {
		return models.ReplicateConfig{}
	}
	return m.config.Replicate
}

// GetBenchmarkConfig returns the benchmark configuration
func (m *Manager) GetBenchmarkConfig() models.BenchmarkConfig {
	if m.config == nil {
		return models.BenchmarkConfig{}
	}
	return m.config.Benchmark
}

// CreateSampleConfig creates a sample configuration file
func (m *Manager) CreateSampleConfig(path string) error {
	yamlContent := `replicate:
  # api_key may be omitted and supplied through REPLICATE_API_KEY
  api_key: your-replicate-api-key
  base_url: https://api.replicate.com/v1
  models:
    - name: llama-2-70b-chat
      identifier: meta/llama-2-70b-chat
      predictions_url: https://api.replicate.com/v1/models/meta/llama-2-70b-chat/predictions
    - name: mixtral-8x7b
      identifier: mistralai/mixtral-8x7b-instruct-v0.1
      predictions_url: https://api.replicate.com/v1/models/mistralai/mixtral-8x7b-instruct-v0.1/predictions
  poll:
    initial_interval: 250ms
    max_interval: 5s
    multiplier: 2
    jitter: 0.5
    max_attempts: 240
    timeout: 10m
benchmark:
  concurrency: 1
  requests: 10
  timeout: 15m
  max_tokens: 128
  ttft_max_tokens: 5
`

	return os.WriteFile(path, []byte(yamlContent), 0644)
}
