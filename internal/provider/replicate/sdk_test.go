package replicate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"replibench/internal/models"

	r8 "github.com/replicate/replicate-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records SDK calls. stream, when set, drives the event channel
// and receives the stream context so tests can observe cancellation.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []string
	inputs []r8.PredictionInput

	output r8.PredictionOutput
	runErr error
	stream func(ctx context.Context, events chan<- r8.SSEEvent, errs chan<- error)
}

func (f *fakeRunner) record(identifier string, input r8.PredictionInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, identifier)
	f.inputs = append(f.inputs, input)
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) Run(ctx context.Context, identifier string, input r8.PredictionInput) (r8.PredictionOutput, error) {
	f.record(identifier, input)
	return f.output, f.runErr
}

func (f *fakeRunner) Stream(ctx context.Context, identifier string, input r8.PredictionInput) (<-chan r8.SSEEvent, <-chan error) {
	f.record(identifier, input)
	events := make(chan r8.SSEEvent)
	errs := make(chan error, 1)
	go func() {
		if f.stream != nil {
			f.stream(ctx, events, errs)
		}
	}()
	return events, errs
}

func newSDKProvider(t *testing.T, runner *fakeRunner) *Provider {
	t.Helper()
	p, err := New(Config{APIKey: "test-key"}, WithRunner(runner))
	require.NoError(t, err)
	return p
}

func TestCallSDK_CountsChunks(t *testing.T) {
	chunks := make([]any, 10)
	for i := range chunks {
		chunks[i] = "tok"
	}
	runner := &fakeRunner{output: chunks}
	p := newSDKProvider(t, runner)

	n, err := p.CallSDK(context.Background(), "mixtral-8x7b", "hello", 32)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "mistralai/mixtral-8x7b-instruct-v0.1", runner.calls[0])
	assert.Equal(t, r8.PredictionInput{"prompt": "hello", "max_new_tokens": 32}, runner.inputs[0])
}

func TestCallSDK_OutputShapes(t *testing.T) {
	tests := []struct {
		name    string
		output  r8.PredictionOutput
		want    int
		wantErr bool
	}{
		{name: "nil", output: nil, want: 0},
		{name: "strings", output: []string{"a", "b", "c"}, want: 3},
		{name: "single string", output: "done", want: 1},
		{name: "empty string", output: "", want: 0},
		{name: "map", output: map[string]any{"text": "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newSDKProvider(t, &fakeRunner{output: tt.output})
			n, err := p.CallSDK(context.Background(), "llama-2-70b-chat", "hello", 8)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestCallSDK_RunError(t *testing.T) {
	boom := errors.New("boom")
	p := newSDKProvider(t, &fakeRunner{runErr: boom})

	_, err := p.CallSDK(context.Background(), "llama-2-70b-chat", "hello", 8)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "meta/llama-2-70b-chat")
}

func TestTimeToFirstToken_SkipsEmptyEvents(t *testing.T) {
	runner := &fakeRunner{
		stream: func(ctx context.Context, events chan<- r8.SSEEvent, errs chan<- error) {
			select {
			case events <- r8.SSEEvent{Type: "output", Data: ""}:
			case <-ctx.Done():
				return
			}
			time.Sleep(300 * time.Millisecond)
			select {
			case events <- r8.SSEEvent{Type: "output", Data: "hi"}:
			case <-ctx.Done():
			}
		},
	}
	p := newSDKProvider(t, runner)

	ttft, err := p.TimeToFirstToken(context.Background(), "llama-2-70b-chat", "hello", 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, ttft.Seconds(), 0.15)

	require.Len(t, runner.inputs, 1)
	assert.Equal(t, DefaultTTFTMaxTokens, runner.inputs[0]["max_new_tokens"])
}

func TestTimeToFirstToken_CancelsStream(t *testing.T) {
	released := make(chan struct{})
	runner := &fakeRunner{
		stream: func(ctx context.Context, events chan<- r8.SSEEvent, errs chan<- error) {
			events <- r8.SSEEvent{Type: "output", Data: "first"}
			<-ctx.Done()
			close(released)
		},
	}
	p := newSDKProvider(t, runner)

	_, err := p.TimeToFirstToken(context.Background(), "llama-2-70b-chat", "hello", 5)
	require.NoError(t, err)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("stream context was not cancelled after first token")
	}
}

func TestTimeToFirstToken_NoOutput(t *testing.T) {
	tests := []struct {
		name   string
		stream func(ctx context.Context, events chan<- r8.SSEEvent, errs chan<- error)
	}{
		{
			name: "closed",
			stream: func(ctx context.Context, events chan<- r8.SSEEvent, errs chan<- error) {
				events <- r8.SSEEvent{Type: "output"}
				close(events)
			},
		},
		{
			name: "done event",
			stream: func(ctx context.Context, events chan<- r8.SSEEvent, errs chan<- error) {
				events <- r8.SSEEvent{Type: "done", Data: "{}"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newSDKProvider(t, &fakeRunner{stream: tt.stream})
			_, err := p.TimeToFirstToken(context.Background(), "llama-2-70b-chat", "hello", 5)
			require.ErrorIs(t, err, ErrNoOutput)
		})
	}
}

func TestTimeToFirstToken_Errors(t *testing.T) {
	t.Run("error event", func(t *testing.T) {
		p := newSDKProvider(t, &fakeRunner{
			stream: func(ctx context.Context, events chan<- r8.SSEEvent, errs chan<- error) {
				events <- r8.SSEEvent{Type: "error", Data: "model crashed"}
			},
		})
		_, err := p.TimeToFirstToken(context.Background(), "llama-2-70b-chat", "hello", 5)

		var streamErr *StreamError
		require.ErrorAs(t, err, &streamErr)
		assert.Equal(t, "model crashed", streamErr.Data)
	})

	t.Run("transport error", func(t *testing.T) {
		boom := errors.New("connection reset")
		p := newSDKProvider(t, &fakeRunner{
			stream: func(ctx context.Context, events chan<- r8.SSEEvent, errs chan<- error) {
				errs <- boom
			},
		})
		_, err := p.TimeToFirstToken(context.Background(), "llama-2-70b-chat", "hello", 5)
		require.ErrorIs(t, err, boom)
	})

	t.Run("caller deadline", func(t *testing.T) {
		p := newSDKProvider(t, &fakeRunner{})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := p.TimeToFirstToken(ctx, "llama-2-70b-chat", "hello", 5)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSDKModelsMatchHTTPModels(t *testing.T) {
	for _, m := range DefaultModels() {
		assert.NotEmpty(t, m.Identifier, m.Name)
		assert.NotEmpty(t, m.PredictionsURL, m.Name)
	}
	assert.NoError(t, ValidateModels(DefaultModels()))
	assert.Error(t, ValidateModels([]models.ModelEntry{{Name: "x", Identifier: "a/b"}}))
}
