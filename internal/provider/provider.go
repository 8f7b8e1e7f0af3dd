// Package provider defines the contract every benchmarked inference provider
// satisfies, together with the error values the harness inspects.
package provider

import (
	"context"
	"time"
)

// Provider is implemented by every inference backend the harness can drive.
//
// CallHTTP and CallSDK return the number of output tokens produced for the
// prompt; TimeToFirstToken returns the latency until the first streamed
// output chunk. All three fail with an *UnsupportedModelError before touching
// the network when model is not one of Models().
type Provider interface {
	Name() string
	Models() []string
	CallHTTP(ctx context.Context, model, prompt string, maxTokens int) (int, error)
	CallSDK(ctx context.Context, model, prompt string, maxTokens int) (int, error)
	TimeToFirstToken(ctx context.Context, model, prompt string, maxTokens int) (time.Duration, error)
}

// Pinger is implemented by providers that can cheaply verify connectivity
// and credentials.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Supports reports whether p accepts the logical model name.
func Supports(p Provider, model string) bool {
	for _, m := range p.Models() {
		if m == model {
			return true
		}
	}
	return false
}
