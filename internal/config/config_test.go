package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"replibench/internal/provider/replicate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replibench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_SampleConfig(t *testing.T) {
	t.Setenv("REPLICATE_API_KEY", "")
	path := filepath.Join(t.TempDir(), "replibench.yaml")

	m := NewManager()
	require.NoError(t, m.CreateSampleConfig(path))
	require.NoError(t, m.Load(path))

	cfg := m.GetConfig()
	assert.Equal(t, "your-replicate-api-key", cfg.Replicate.APIKey)
	assert.Equal(t, replicate.DefaultModels(), cfg.Replicate.Models)
	assert.Equal(t, 250*time.Millisecond, cfg.Replicate.Poll.InitialInterval)
	assert.Equal(t, 10*time.Minute, cfg.Replicate.Poll.Timeout)
	assert.Equal(t, 240, cfg.Replicate.Poll.MaxAttempts)
	assert.Equal(t, 10, cfg.Benchmark.Requests)
	assert.Equal(t, 5, cfg.Benchmark.TTFTMaxTokens)
}

func TestLoad_DefaultsWhenSparse(t *testing.T) {
	t.Setenv("REPLICATE_API_KEY", "")
	path := writeConfig(t, "benchmark:\n  requests: 3\n")

	m := NewManager()
	require.NoError(t, m.Load(path))

	r := m.GetReplicateConfig()
	assert.Equal(t, replicate.DefaultBaseURL, r.BaseURL)
	assert.Equal(t, replicate.DefaultModels(), r.Models)
	assert.Equal(t, replicate.DefaultPollPolicy(), r.Poll)
	assert.Empty(t, r.APIKey)

	b := m.GetBenchmarkConfig()
	assert.Equal(t, 3, b.Requests)
	assert.Equal(t, 1, b.Concurrency)
	assert.Equal(t, "15m", b.Timeout)
}

func TestLoad_CredentialFromEnvironment(t *testing.T) {
	path := writeConfig(t, "replicate:\n  base_url: https://example.test/v1\n")

	t.Run("replicate variable", func(t *testing.T) {
		t.Setenv("REPLIBENCH_REPLICATE_API_KEY", "")
		t.Setenv("REPLICATE_API_KEY", "r8_env")
		m := NewManager()
		require.NoError(t, m.Load(path))
		assert.Equal(t, "r8_env", m.GetReplicateConfig().APIKey)
	})

	t.Run("prefixed variable wins", func(t *testing.T) {
		t.Setenv("REPLIBENCH_REPLICATE_API_KEY", "r8_prefixed")
		t.Setenv("REPLICATE_API_KEY", "r8_env")
		m := NewManager()
		require.NoError(t, m.Load(path))
		assert.Equal(t, "r8_prefixed", m.GetReplicateConfig().APIKey)
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name: "model missing sdk identifier",
			content: `replicate:
  models:
    - name: llama
      predictions_url: https://api.replicate.com/v1/models/meta/llama/predictions
`,
			field: "replicate.models",
		},
		{
			name: "model missing predictions url",
			content: `replicate:
  models:
    - name: llama
      identifier: meta/llama
`,
			field: "replicate.models",
		},
		{
			name:    "bad jitter",
			content: "replicate:\n  poll:\n    jitter: 3\n",
			field:   "replicate.poll.jitter",
		},
		{
			name:    "zero requests",
			content: "benchmark:\n  requests: 0\n",
			field:   "benchmark.requests",
		},
		{
			name:    "bad timeout",
			content: "benchmark:\n  timeout: soon\n",
			field:   "benchmark.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			err := m.Load(writeConfig(t, tt.content))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestGettersBeforeLoad(t *testing.T) {
	m := NewManager()
	assert.Nil(t, m.GetConfig())
	assert.Empty(t, m.GetReplicateConfig().Models)
	assert.Zero(t, m.GetBenchmarkConfig().Requests)
}
