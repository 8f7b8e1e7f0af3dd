// Package metrics records benchmark observations as prometheus metrics
package metrics

import (
	"context"
	"fmt"

	"replibench/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Collector owns a private registry so several benchmark runs never share state
type Collector struct {
	registry *prometheus.Registry

	RequestDuration  *prometheus.HistogramVec
	TimeToFirstToken *prometheus.HistogramVec
	OutputTokens     *prometheus.CounterVec
	TokensPerSecond  *prometheus.HistogramVec
	RequestCount     *prometheus.CounterVec
}

// New creates a collector with all metrics registered
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replibench_request_duration_seconds",
				Help:    "Time taken for provider calls in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120, 180, 300, 600},
			},
			[]string{"model", "transport"},
		),
		TimeToFirstToken: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replibench_time_to_first_token_seconds",
				Help:    "Time to first token in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60, 120},
			},
			[]string{"model"},
		),
		OutputTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replibench_output_tokens_total",
				Help: "Total number of output tokens reported",
			},
			[]string{"model", "transport"},
		),
		TokensPerSecond: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replibench_tokens_per_second",
				Help:    "Output tokens per second of response time",
				Buckets: []float64{1, 5, 10, 15, 20, 25, 30, 40, 50, 60, 80, 100, 150},
			},
			[]string{"model", "transport"},
		),
		RequestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replibench_requests_total",
				Help: "Total number of provider calls",
			},
			[]string{"model", "transport", "status"},
		),
	}
}

// Observe records a single benchmark result
func (c *Collector) Observe(r models.BenchmarkResult) {
	transport := string(r.Transport)

	status := "success"
	if !r.Success {
		status = "error"
	}
	c.RequestCount.WithLabelValues(r.ModelName, transport, status).Inc()
	c.RequestDuration.WithLabelValues(r.ModelName, transport).Observe(r.ResponseTime.Seconds())

	if !r.Success {
		return
	}

	if r.Transport == models.TransportTTFT {
		c.TimeToFirstToken.WithLabelValues(r.ModelName).Observe(r.TimeToFirstToken.Seconds())
		return
	}

	c.OutputTokens.WithLabelValues(r.ModelName, transport).Add(float64(r.TokensUsed))
	if r.TokenThroughput > 0 {
		c.TokensPerSecond.WithLabelValues(r.ModelName, transport).Observe(r.TokenThroughput)
	}
}

// Registry exposes the underlying registry as a gatherer
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Push sends all collected metrics to a Pushgateway under the given job name
func (c *Collector) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(c.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
