package replicate

import (
	"context"
	"fmt"

	r8 "github.com/replicate/replicate-go"
	"go.uber.org/zap"
)

// Runner is the subset of the replicate-go client the provider uses.
type Runner interface {
	Run(ctx context.Context, identifier string, input r8.PredictionInput) (r8.PredictionOutput, error)
	Stream(ctx context.Context, identifier string, input r8.PredictionInput) (<-chan r8.SSEEvent, <-chan error)
}

type sdkRunner struct {
	client *r8.Client
}

func (s *sdkRunner) Run(ctx context.Context, identifier string, input r8.PredictionInput) (r8.PredictionOutput, error) {
	return s.client.Run(ctx, identifier, input, nil)
}

func (s *sdkRunner) Stream(ctx context.Context, identifier string, input r8.PredictionInput) (<-chan r8.SSEEvent, <-chan error) {
	return s.client.Stream(ctx, identifier, input, nil)
}

func sdkInput(prompt string, maxTokens int) r8.PredictionInput {
	return r8.PredictionInput{
		"prompt":         prompt,
		"max_new_tokens": maxTokens,
	}
}

// CallSDK runs the model through the SDK and returns the number of output
// chunks, which approximates the output token count.
func (p *Provider) CallSDK(ctx context.Context, model, prompt string, maxTokens int) (int, error) {
	entry, err := p.lookup(model)
	if err != nil {
		return 0, err
	}

	output, err := p.runner.Run(ctx, entry.Identifier, sdkInput(prompt, maxTokens))
	if err != nil {
		return 0, fmt.Errorf("run %s: %w", entry.Identifier, err)
	}

	n, err := countOutput(output)
	if err != nil {
		return 0, fmt.Errorf("run %s: %w", entry.Identifier, err)
	}

	p.logger.Debug("sdk run finished",
		zap.String("model", model),
		zap.Int("chunks", n),
	)
	return n, nil
}

func countOutput(output r8.PredictionOutput) (int, error) {
	switch v := output.(type) {
	case nil:
		return 0, nil
	case []any:
		return len(v), nil
	case []string:
		return len(v), nil
	case string:
		if v == "" {
			return 0, nil
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("unexpected output type %T", output)
	}
}
