package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynotion/internal/apperr"
	"studynotion/internal/logging"
)

func newTestClient(url, key string) *Client {
	return New(Options{URL: url, APIKey: key, Model: "test-model", MaxTokens: 400, Timeout: 2 * time.Second}, nil, logging.Discard())
}

func TestCompleteSendsChatRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var req completionRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 400, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "What is Go?", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"A language."}}]}`))
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL, "k").Complete(context.Background(), "What is Go?")
	require.NoError(t, err)
	answer, ok := reply.Answer()
	assert.True(t, ok)
	assert.Equal(t, "A language.", answer)
	assert.Equal(t, "A language.", reply.Content())
}

func TestCompleteWithoutKeyMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, apperr.ErrConfig)
	assert.Zero(t, calls.Load())
}

func TestCompleteNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, "k").Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestCompleteHonoursContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL, "k").Complete(ctx, "hi")
	close(release)
	srv.CloseClientConnections()

	assert.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestErrorStatusIsAReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL, "k").Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, reply.Status)
	_, ok := reply.Answer()
	assert.False(t, ok)
	assert.JSONEq(t, `{"error":{"message":"slow down"}}`, string(reply.Detail().(json.RawMessage)))
}

func TestReplyDecoding(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantOK     bool
		wantAnswer string
		content    string
	}{
		{"answer", 200, `{"choices":[{"message":{"content":"hi"}}]}`, true, "hi", "hi"},
		{"empty content", 200, `{"choices":[{"message":{"content":""}}]}`, true, "", ""},
		{"no message", 200, `{"choices":[{}]}`, true, "", `{"choices":[{}]}`},
		{"empty choices", 200, `{"choices":[]}`, false, "", `{"choices":[]}`},
		{"no choices key", 200, `{"id": "x"}`, false, "", `{"id":"x"}`},
		{"plain text", 200, `Service Unavailable`, false, "", "Service Unavailable"},
		{"error status with choices", 500, `{"choices":[{"message":{"content":"x"}}]}`, false, "", "x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReply(tc.status, []byte(tc.body))
			answer, ok := r.Answer()
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantAnswer, answer)
			assert.Equal(t, tc.content, r.Content())
		})
	}
}

func TestReplyDetail(t *testing.T) {
	assert.Equal(t, "no choices", NewReply(200, nil).Detail())
	assert.Equal(t, "bad gateway", NewReply(502, []byte("bad gateway")).Detail())
	assert.Equal(t, json.RawMessage(`{"a":1}`), NewReply(200, []byte(`{"a":1}`)).Detail())
}
