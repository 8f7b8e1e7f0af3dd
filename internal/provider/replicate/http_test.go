package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"replibench/internal/models"
	"replibench/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI mimics the predictions endpoints. pollBodies are served in order;
// the last one repeats.
type fakeAPI struct {
	createStatus int
	createBody   string
	pollStatus   int
	pollBodies   []string

	creates atomic.Int32
	polls   atomic.Int32
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /models/{owner}/{name}/predictions", func(w http.ResponseWriter, r *http.Request) {
		f.creates.Add(1)
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body createPredictionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body.Input.Prompt)
		assert.Equal(t, 64, body.Input.MaxNewTokens)

		w.WriteHeader(f.createStatus)
		_, _ = w.Write([]byte(f.createBody))
	})
	mux.HandleFunc("GET /predictions/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.polls.Add(1))
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "pred-1", r.PathValue("id"))

		idx := n - 1
		if idx >= len(f.pollBodies) {
			idx = len(f.pollBodies) - 1
		}
		status := f.pollStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(f.pollBodies[idx]))
	})
	mux.HandleFunc("GET /account", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
			return
		}
		_, _ = w.Write([]byte(`{"type":"user","username":"bench"}`))
	})
	return mux
}

func newTestProvider(t *testing.T, srv *httptest.Server, poll models.PollPolicy) *Provider {
	t.Helper()
	p, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Models: []models.ModelEntry{
			{Name: "llama-2-70b-chat", Identifier: "meta/llama-2-70b-chat", PredictionsURL: srv.URL + "/models/meta/llama-2-70b-chat/predictions"},
			{Name: "mixtral-8x7b", Identifier: "mistralai/mixtral-8x7b-instruct-v0.1", PredictionsURL: srv.URL + "/models/mistralai/mixtral-8x7b-instruct-v0.1/predictions"},
		},
		Poll: poll,
	}, WithHTTPClient(srv.Client()), WithRunner(&fakeRunner{}))
	require.NoError(t, err)
	return p
}

func fastPoll() models.PollPolicy {
	return models.PollPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
		MaxAttempts:     10,
		Timeout:         5 * time.Second,
	}
}

func TestCallHTTP_Succeeded(t *testing.T) {
	api := &fakeAPI{
		createStatus: http.StatusCreated,
		createBody:   `{"id":"pred-1","status":"starting"}`,
		pollBodies:   []string{`{"id":"pred-1","status":"succeeded","metrics":{"output_token_count":42}}`},
	}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, fastPoll())
	tokens, err := p.CallHTTP(context.Background(), "llama-2-70b-chat", "hello", 64)
	require.NoError(t, err)
	assert.Equal(t, 42, tokens)
	assert.EqualValues(t, 1, api.creates.Load())
	assert.EqualValues(t, 1, api.polls.Load())
}

func TestCallHTTP_PollsUntilSucceeded(t *testing.T) {
	api := &fakeAPI{
		createStatus: http.StatusCreated,
		createBody:   `{"id":"pred-1"}`,
		pollBodies: []string{
			`{"id":"pred-1","status":"processing"}`,
			`{"id":"pred-1","status":"succeeded","metrics":{"output_token_count":7}}`,
		},
	}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, fastPoll())
	tokens, err := p.CallHTTP(context.Background(), "mixtral-8x7b", "hello", 64)
	require.NoError(t, err)
	assert.Equal(t, 7, tokens)
	assert.EqualValues(t, 2, api.polls.Load())
}

func TestCallHTTP_CreateFailure(t *testing.T) {
	api := &fakeAPI{
		createStatus: http.StatusInternalServerError,
		createBody:   `{"detail":"boom"}`,
		pollBodies:   []string{`{}`},
	}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, fastPoll())
	_, err := p.CallHTTP(context.Background(), "llama-2-70b-chat", "hello", 64)

	var remote *provider.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
	assert.Contains(t, remote.Body, "boom")
	assert.EqualValues(t, 0, api.polls.Load())
}

func TestCallHTTP_CreateRequires201(t *testing.T) {
	api := &fakeAPI{
		createStatus: http.StatusOK,
		createBody:   `{"id":"pred-1"}`,
		pollBodies:   []string{`{}`},
	}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, fastPoll())
	_, err := p.CallHTTP(context.Background(), "llama-2-70b-chat", "hello", 64)

	var remote *provider.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusOK, remote.StatusCode)
	assert.EqualValues(t, 0, api.polls.Load())
}

func TestCallHTTP_PollFailure(t *testing.T) {
	api := &fakeAPI{
		createStatus: http.StatusCreated,
		createBody:   `{"id":"pred-1"}`,
		pollStatus:   http.StatusBadGateway,
		pollBodies:   []string{`bad gateway`},
	}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, fastPoll())
	_, err := p.CallHTTP(context.Background(), "llama-2-70b-chat", "hello", 64)

	var remote *provider.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadGateway, remote.StatusCode)
	assert.EqualValues(t, 1, api.polls.Load())
}

func TestCallHTTP_TerminalFailure(t *testing.T) {
	for _, status := range []string{"failed", "canceled", "aborted"} {
		t.Run(status, func(t *testing.T) {
			api := &fakeAPI{
				createStatus: http.StatusCreated,
				createBody:   `{"id":"pred-1"}`,
				pollBodies: []string{
					`{"id":"pred-1","status":"processing"}`,
					`{"id":"pred-1","status":"` + status + `","error":"CUDA out of memory"}`,
				},
			}
			srv := httptest.NewServer(api.handler(t))
			defer srv.Close()

			p := newTestProvider(t, srv, fastPoll())
			_, err := p.CallHTTP(context.Background(), "llama-2-70b-chat", "hello", 64)

			var predErr *PredictionError
			require.ErrorAs(t, err, &predErr)
			assert.Equal(t, status, predErr.Status)
			assert.Equal(t, "pred-1", predErr.ID)
			assert.Equal(t, "CUDA out of memory", predErr.Detail)
			assert.EqualValues(t, 2, api.polls.Load())
		})
	}
}

func TestCallHTTP_MaxAttemptsExhausted(t *testing.T) {
	api := &fakeAPI{
		createStatus: http.StatusCreated,
		createBody:   `{"id":"pred-1"}`,
		pollBodies:   []string{`{"id":"pred-1","status":"processing"}`},
	}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	poll := fastPoll()
	poll.MaxAttempts = 3
	p := newTestProvider(t, srv, poll)
	_, err := p.CallHTTP(context.Background(), "llama-2-70b-chat", "hello", 64)

	var timeout *provider.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.Attempts)
	assert.EqualValues(t, 3, api.polls.Load())

	var remote *provider.RemoteError
	assert.False(t, errors.As(err, &remote))
}

func TestCallHTTP_DeadlineExceeded(t *testing.T) {
	api := &fakeAPI{
		createStatus: http.StatusCreated,
		createBody:   `{"id":"pred-1"}`,
		pollBodies:   []string{`{"id":"pred-1","status":"starting"}`},
	}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	poll := models.PollPolicy{
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Multiplier:      1,
		MaxAttempts:     1000,
		Timeout:         100 * time.Millisecond,
	}
	p := newTestProvider(t, srv, poll)
	_, err := p.CallHTTP(context.Background(), "llama-2-70b-chat", "hello", 64)

	var timeout *provider.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Less(t, int(api.polls.Load()), 1000)
}

func TestCallHTTP_MissingMetric(t *testing.T) {
	api := &fakeAPI{
		createStatus: http.StatusCreated,
		createBody:   `{"id":"pred-1"}`,
		pollBodies:   []string{`{"id":"pred-1","status":"succeeded","metrics":{}}`},
	}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, fastPoll())
	_, err := p.CallHTTP(context.Background(), "llama-2-70b-chat", "hello", 64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_token_count")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, fastPoll())
	require.NoError(t, p.Ping(context.Background()))

	bad, err := New(Config{APIKey: "wrong", BaseURL: srv.URL}, WithHTTPClient(srv.Client()), WithRunner(&fakeRunner{}))
	require.NoError(t, err)

	var remote *provider.RemoteError
	require.ErrorAs(t, bad.Ping(context.Background()), &remote)
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
}
