package models

import "time"

// Transport names the mechanism used to reach the inference service
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportSDK  Transport = "sdk"
	TransportTTFT Transport = "ttft"
)

// AllTransports lists every transport in benchmark order
var AllTransports = []Transport{TransportHTTP, TransportSDK, TransportTTFT}

// ModelEntry maps a logical model name to both transport identifiers
type ModelEntry struct {
	Name           string `mapstructure:"name" yaml:"name"`
	Identifier     string `mapstructure:"identifier" yaml:"identifier"`
	PredictionsURL string `mapstructure:"predictions_url" yaml:"predictions_url"`
}

// PollPolicy bounds the prediction polling loop
type PollPolicy struct {
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier" yaml:"multiplier"`
	Jitter          float64       `mapstructure:"jitter" yaml:"jitter"`
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ReplicateConfig represents the Replicate provider configuration
type ReplicateConfig struct {
	APIKey  string       `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string       `mapstructure:"base_url" yaml:"base_url"`
	Models  []ModelEntry `mapstructure:"models" yaml:"models"`
	Poll    PollPolicy   `mapstructure:"poll" yaml:"poll"`
}

// BenchmarkConfig represents the benchmark configuration
type BenchmarkConfig struct {
	Concurrency   int    `mapstructure:"concurrency" yaml:"concurrency"`
	Requests      int    `mapstructure:"requests" yaml:"requests"`
	Timeout       string `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens     int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	TTFTMaxTokens int    `mapstructure:"ttft_max_tokens" yaml:"ttft_max_tokens"`
}

// BenchmarkRequest represents the workload sent to the provider
type BenchmarkRequest struct {
	Prompt        string      `json:"prompt" yaml:"prompt"`
	Models        []string    `json:"models" yaml:"models"`
	Transports    []Transport `json:"transports" yaml:"transports"`
	MaxTokens     int         `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TTFTMaxTokens int         `json:"ttft_max_tokens,omitempty" yaml:"ttft_max_tokens,omitempty"`
}

// BenchmarkResult represents the result of a single provider call
type BenchmarkResult struct {
	Provider     string        `json:"provider" yaml:"provider"`
	ModelName    string        `json:"model_name" yaml:"model_name"`
	Transport    Transport     `json:"transport" yaml:"transport"`
	Success      bool          `json:"success" yaml:"success"`
	ResponseTime time.Duration `json:"response_time" yaml:"response_time"`
	TokensUsed   int           `json:"tokens_used,omitempty" yaml:"tokens_used,omitempty"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`

	TimeToFirstToken time.Duration `json:"time_to_first_token,omitempty" yaml:"time_to_first_token,omitempty"`
	TokenThroughput  float64       `json:"token_throughput,omitempty" yaml:"token_throughput,omitempty"` // tokens per second
}

// BenchmarkSummary represents the summary of all results for one model and transport
type BenchmarkSummary struct {
	Provider        string        `json:"provider" yaml:"provider"`
	ModelName       string        `json:"model_name" yaml:"model_name"`
	Transport       Transport     `json:"transport" yaml:"transport"`
	TotalRequests   int           `json:"total_requests" yaml:"total_requests"`
	SuccessfulReqs  int           `json:"successful_requests" yaml:"successful_requests"`
	FailedRequests  int           `json:"failed_requests" yaml:"failed_requests"`
	AvgResponseTime time.Duration `json:"avg_response_time" yaml:"avg_response_time"`
	MinResponseTime time.Duration `json:"min_response_time" yaml:"min_response_time"`
	MaxResponseTime time.Duration `json:"max_response_time" yaml:"max_response_time"`
	TotalTokens     int           `json:"total_tokens" yaml:"total_tokens"`
	ErrorRate       float64       `json:"error_rate" yaml:"error_rate"`

	AvgTimeToFirstToken time.Duration `json:"avg_time_to_first_token,omitempty" yaml:"avg_time_to_first_token,omitempty"`
	MinTimeToFirstToken time.Duration `json:"min_time_to_first_token,omitempty" yaml:"min_time_to_first_token,omitempty"`
	MaxTimeToFirstToken time.Duration `json:"max_time_to_first_token,omitempty" yaml:"max_time_to_first_token,omitempty"`
	AvgTokenThroughput  float64       `json:"avg_token_throughput,omitempty" yaml:"avg_token_throughput,omitempty"`
	MinTokenThroughput  float64       `json:"min_token_throughput,omitempty" yaml:"min_token_throughput,omitempty"`
	MaxTokenThroughput  float64       `json:"max_token_throughput,omitempty" yaml:"max_token_throughput,omitempty"`
}

// ResultKey identifies the results of one model over one transport
func ResultKey(model string, transport Transport) string {
	return model + "/" + string(transport)
}
