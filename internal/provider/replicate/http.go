package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"replibench/internal/provider"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
	statusCanceled  = "canceled"
	statusAborted   = "aborted"
)

var errStillRunning = errors.New("prediction still running")

type predictionInput struct {
	Prompt       string `json:"prompt"`
	MaxNewTokens int    `json:"max_new_tokens"`
}

type createPredictionRequest struct {
	Input predictionInput `json:"input"`
}

// CallHTTP creates a prediction through the REST API, polls it until it
// succeeds and returns the reported output token count.
func (p *Provider) CallHTTP(ctx context.Context, model, prompt string, maxTokens int) (int, error) {
	entry, err := p.lookup(model)
	if err != nil {
		return 0, err
	}

	id, err := p.createPrediction(ctx, entry.PredictionsURL, prompt, maxTokens)
	if err != nil {
		return 0, err
	}

	p.logger.Debug("prediction created",
		zap.String("model", model),
		zap.String("prediction_id", id),
	)

	return p.pollPrediction(ctx, id)
}

// createPrediction starts a prediction and returns its id. Only 201 counts as success.
func (p *Provider) createPrediction(ctx context.Context, url, prompt string, maxTokens int) (string, error) {
	payload, err := json.Marshal(createPredictionRequest{
		Input: predictionInput{Prompt: prompt, MaxNewTokens: maxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := p.do(req)
	if err != nil {
		return "", fmt.Errorf("create prediction: %w", err)
	}
	if status != http.StatusCreated {
		return "", &provider.RemoteError{Op: "start prediction", StatusCode: status, Body: string(body)}
	}

	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return "", &provider.RemoteError{Op: "read prediction id", StatusCode: status, Body: string(body)}
	}
	return id, nil
}

// pollPrediction polls the prediction with exponential backoff until it
// succeeds, reaches another terminal status, or exhausts the poll policy.
func (p *Provider) pollPrediction(ctx context.Context, id string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.poll.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.poll.InitialInterval
	b.MaxInterval = p.poll.MaxInterval
	b.Multiplier = p.poll.Multiplier
	b.RandomizationFactor = p.poll.Jitter
	b.MaxElapsedTime = 0
	b.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.poll.MaxAttempts-1)), ctx)

	start := time.Now()
	attempts := 0
	var tokens int

	operation := func() error {
		attempts++
		n, err := p.fetchPrediction(ctx, id)
		if err != nil {
			if errors.Is(err, errStillRunning) {
				return err
			}
			return backoff.Permanent(err)
		}
		tokens = n
		return nil
	}

	notify := func(err error, wait time.Duration) {
		p.logger.Debug("prediction not ready",
			zap.String("prediction_id", id),
			zap.Int("attempt", attempts),
			zap.Duration("next_poll", wait),
		)
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return tokens, nil
	}

	if errors.Is(err, errStillRunning) || errors.Is(err, context.DeadlineExceeded) {
		p.logger.Warn("prediction polling exhausted",
			zap.String("prediction_id", id),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", time.Since(start)),
		)
		return 0, &provider.TimeoutError{
			Op:       "poll prediction " + id,
			Attempts: attempts,
			Elapsed:  time.Since(start),
			Cause:    err,
		}
	}
	return 0, err
}

// fetchPrediction performs one status request. It returns errStillRunning
// for non-terminal statuses.
func (p *Provider) fetchPrediction(ctx context.Context, id string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return 0, fmt.Errorf("build poll request: %w", err)
	}

	status, body, err := p.do(req)
	if err != nil {
		return 0, fmt.Errorf("poll prediction: %w", err)
	}
	if status != http.StatusOK {
		return 0, &provider.RemoteError{Op: "poll prediction results", StatusCode: status, Body: string(body)}
	}

	result := gjson.ParseBytes(body)
	switch s := result.Get("status").String(); s {
	case statusSucceeded:
		count := result.Get("metrics.output_token_count")
		if !count.Exists() {
			return 0, fmt.Errorf("prediction %s: response has no output_token_count metric", id)
		}
		return int(count.Int()), nil
	case statusFailed, statusCanceled, statusAborted:
		return 0, &PredictionError{ID: id, Status: s, Detail: result.Get("error").String()}
	default:
		return 0, errStillRunning
	}
}

// Ping verifies the credential against the account endpoint.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/account", nil)
	if err != nil {
		return fmt.Errorf("build account request: %w", err)
	}
	status, body, err := p.do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if status != http.StatusOK {
		return &provider.RemoteError{Op: "fetch account", StatusCode: status, Body: string(body)}
	}
	return nil
}

// do sends an authenticated request and returns the status code and body.
func (p *Provider) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("Authorization", "Token "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
