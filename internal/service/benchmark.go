package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"replibench/internal/metrics"
	"replibench/internal/models"
	"replibench/internal/provider"

	"go.uber.org/zap"
)

// BenchmarkService drives a provider across models and transports
type BenchmarkService struct {
	provider provider.Provider
	config   models.BenchmarkConfig
	timeout  time.Duration
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// Option customizes a BenchmarkService
type Option func(*BenchmarkService)

// WithMetrics records every result in c
func WithMetrics(c *metrics.Collector) Option {
	return func(bs *BenchmarkService) {
		bs.metrics = c
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(bs *BenchmarkService) {
		bs.logger = l
	}
}

// NewBenchmarkService creates a new benchmark service
func NewBenchmarkService(p provider.Provider, config models.BenchmarkConfig, opts ...Option) (*BenchmarkService, error) {
	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration: %w", err)
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Requests <= 0 {
		config.Requests = 1
	}

	bs := &BenchmarkService{
		provider: p,
		config:   config,
		timeout:  timeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(bs)
	}
	return bs, nil
}

// TestConnections checks connectivity for the configured provider
func (bs *BenchmarkService) TestConnections(ctx context.Context) map[string]error {
	results := make(map[string]error)

	timeoutCtx, cancel := context.WithTimeout(ctx, bs.timeout)
	defer cancel()

	pinger, ok := bs.provider.(provider.Pinger)
	if !ok {
		results[bs.provider.Name()] = nil
		return results
	}
	results[bs.provider.Name()] = pinger.Ping(timeoutCtx)
	return results
}

// RunBenchmark executes the configured number of calls for every requested
// model and transport. Results are keyed by models.ResultKey.
func (bs *BenchmarkService) RunBenchmark(ctx context.Context, request models.BenchmarkRequest, progressCallback func(string, int, int)) (map[string][]models.BenchmarkResult, error) {
	modelNames := request.Models
	if len(modelNames) == 0 {
		modelNames = bs.provider.Models()
	}
	for _, m := range modelNames {
		if !provider.Supports(bs.provider, m) {
			return nil, &provider.UnsupportedModelError{Provider: bs.provider.Name(), Model: m}
		}
	}

	transports := request.Transports
	if len(transports) == 0 {
		transports = models.AllTransports
	}
	for _, tr := range transports {
		switch tr {
		case models.TransportHTTP, models.TransportSDK, models.TransportTTFT:
		default:
			return nil, fmt.Errorf("unknown transport %q", tr)
		}
	}

	results := make(map[string][]models.BenchmarkResult)
	for _, m := range modelNames {
		for _, tr := range transports {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			key := models.ResultKey(m, tr)
			results[key] = bs.runKey(ctx, key, m, tr, request, progressCallback)
		}
	}
	return results, nil
}

// runKey runs all requests for one model and transport
func (bs *BenchmarkService) runKey(ctx context.Context, key, model string, transport models.Transport, request models.BenchmarkRequest, progressCallback func(string, int, int)) []models.BenchmarkResult {
	results := make([]models.BenchmarkResult, 0, bs.config.Requests)

	semaphore := make(chan struct{}, bs.config.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < bs.config.Requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			result := bs.runOne(ctx, model, transport, request)
			if bs.metrics != nil {
				bs.metrics.Observe(result)
			}

			mu.Lock()
			results = append(results, result)
			if progressCallback != nil {
				progressCallback(key, len(results), bs.config.Requests)
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

// runOne performs a single provider call and measures it
func (bs *BenchmarkService) runOne(ctx context.Context, model string, transport models.Transport, request models.BenchmarkRequest) models.BenchmarkResult {
	result := models.BenchmarkResult{
		Provider:  bs.provider.Name(),
		ModelName: model,
		Transport: transport,
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, bs.timeout)
	defer cancel()

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = bs.config.MaxTokens
	}

	start := time.Now()
	var err error
	switch transport {
	case models.TransportHTTP:
		result.TokensUsed, err = bs.provider.CallHTTP(timeoutCtx, model, request.Prompt, maxTokens)
	case models.TransportSDK:
		result.TokensUsed, err = bs.provider.CallSDK(timeoutCtx, model, request.Prompt, maxTokens)
	case models.TransportTTFT:
		ttftTokens := request.TTFTMaxTokens
		if ttftTokens <= 0 {
			ttftTokens = bs.config.TTFTMaxTokens
		}
		result.TimeToFirstToken, err = bs.provider.TimeToFirstToken(timeoutCtx, model, request.Prompt, ttftTokens)
	}
	result.ResponseTime = time.Since(start)

	if err != nil {
		bs.logger.Warn("provider call failed",
			zap.String("model", model),
			zap.String("transport", string(transport)),
			zap.Error(err),
		)
		result.Success = false
		result.Error = err.Error()
		return result
	}

	result.Success = true
	if transport != models.TransportTTFT && result.ResponseTime.Seconds() > 0 {
		result.TokenThroughput = float64(result.TokensUsed) / result.ResponseTime.Seconds()
	}
	return result
}

// GenerateSummary creates a summary of benchmark results
func (bs *BenchmarkService) GenerateSummary(results map[string][]models.BenchmarkResult) map[string]models.BenchmarkSummary {
	summaries := make(map[string]models.BenchmarkSummary)

	for key, keyResults := range results {
		summary := models.BenchmarkSummary{
			Provider:      bs.provider.Name(),
			TotalRequests: len(keyResults),
		}

		var totalResponseTime time.Duration
		var minTime, maxTime time.Duration
		var successCount int

		var totalTTFT, minTTFT, maxTTFT time.Duration
		var ttftCount int
		var totalThroughput, minThroughput, maxThroughput float64
		var throughputCount int

		for i, result := range keyResults {
			if i == 0 {
				summary.ModelName = result.ModelName
				summary.Transport = result.Transport
			}

			totalResponseTime += result.ResponseTime
			if i == 0 || result.ResponseTime < minTime {
				minTime = result.ResponseTime
			}
			if i == 0 || result.ResponseTime > maxTime {
				maxTime = result.ResponseTime
			}

			if !result.Success {
				continue
			}
			successCount++
			summary.TotalTokens += result.TokensUsed

			if result.Transport == models.TransportTTFT && result.TimeToFirstToken > 0 {
				ttftCount++
				totalTTFT += result.TimeToFirstToken
				if ttftCount == 1 || result.TimeToFirstToken < minTTFT {
					minTTFT = result.TimeToFirstToken
				}
				if ttftCount == 1 || result.TimeToFirstToken > maxTTFT {
					maxTTFT = result.TimeToFirstToken
				}
			}

			if result.TokenThroughput > 0 {
				throughputCount++
				totalThroughput += result.TokenThroughput
				if throughputCount == 1 || result.TokenThroughput < minThroughput {
					minThroughput = result.TokenThroughput
				}
				if throughputCount == 1 || result.TokenThroughput > maxThroughput {
					maxThroughput = result.TokenThroughput
				}
			}
		}

		summary.SuccessfulReqs = successCount
		summary.FailedRequests = summary.TotalRequests - successCount
		if summary.TotalRequests > 0 {
			summary.AvgResponseTime = totalResponseTime / time.Duration(summary.TotalRequests)
			summary.ErrorRate = float64(summary.FailedRequests) / float64(summary.TotalRequests) * 100
		}
		summary.MinResponseTime = minTime
		summary.MaxResponseTime = maxTime

		if ttftCount > 0 {
			summary.AvgTimeToFirstToken = totalTTFT / time.Duration(ttftCount)
			summary.MinTimeToFirstToken = minTTFT
			summary.MaxTimeToFirstToken = maxTTFT
		}
		if throughputCount > 0 {
			summary.AvgTokenThroughput = totalThroughput / float64(throughputCount)
			summary.MinTokenThroughput = minThroughput
			summary.MaxTokenThroughput = maxThroughput
		}

		summaries[key] = summary
	}

	return summaries
}

// GetProvider returns the provider under test
func (bs *BenchmarkService) GetProvider() provider.Provider {
	return bs.provider
}

// GetConfig returns the effective benchmark configuration
func (bs *BenchmarkService) GetConfig() models.BenchmarkConfig {
	return bs.config
}

// SortedKeys returns summary keys in a stable order
func SortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
