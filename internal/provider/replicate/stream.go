package replicate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	eventError = "error"
	eventDone  = "done"
)

// TimeToFirstToken streams a prediction and returns the elapsed time until
// the first event carrying data. The stream is cancelled on return.
func (p *Provider) TimeToFirstToken(ctx context.Context, model, prompt string, maxTokens int) (time.Duration, error) {
	entry, err := p.lookup(model)
	if err != nil {
		return 0, err
	}
	if maxTokens <= 0 {
		maxTokens = DefaultTTFTMaxTokens
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	events, errs := p.runner.Stream(ctx, entry.Identifier, sdkInput(prompt, maxTokens))

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return 0, fmt.Errorf("stream %s: %w", entry.Identifier, err)
			}

		case ev, ok := <-events:
			if !ok {
				return 0, ErrNoOutput
			}
			switch ev.Type {
			case eventError:
				return 0, &StreamError{Data: ev.Data}
			case eventDone:
				return 0, ErrNoOutput
			}
			if ev.Data == "" {
				continue
			}

			ttft := time.Since(start)
			p.logger.Debug("first token received",
				zap.String("model", model),
				zap.Duration("ttft", ttft),
			)
			return ttft, nil
		}
	}
}
