// ABOUTME: Tests for the backend HTTP client
// ABOUTME: Uses httptest servers for stream open, session fetch, and session delete

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlab/playground/internal/protocol"
)

func TestClient_OpenStream(t *testing.T) {
	var gotReq protocol.StreamRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/prompt/run", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Accept"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"type":"content","content":"Hi"}`+"\n")
		io.WriteString(w, `{"type":"end"}`+"\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	body, err := client.OpenStream(context.Background(), &protocol.StreamRequest{
		Message:    "hello",
		NewSession: true,
		Variables:  "{}",
	})
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "hello", gotReq.Message)
	assert.True(t, gotReq.NewSession)

	scanner := bufio.NewScanner(body)
	require.True(t, scanner.Scan())
	assert.Equal(t, `{"type":"content","content":"Hi"}`, scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, `{"type":"end"}`, scanner.Text())
}

func TestClient_OpenStreamNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "prompt not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	_, err := client.OpenStream(context.Background(), &protocol.StreamRequest{Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "prompt not found")
}

func TestClient_OpenStreamHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, 0, nil)
	_, err := client.OpenStream(ctx, &protocol.StreamRequest{Message: "hi"})
	assert.Error(t, err)
}

func TestClient_GetSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/prompt/session", r.URL.Path)
		assert.Equal(t, "sess-1", r.URL.Query().Get("sessionId"))

		json.NewEncoder(w).Encode(map[string]any{
			"code":    200,
			"message": "success",
			"data": map[string]any{
				"sessionId": "sess-1",
				"messages": []map[string]any{
					{"role": "user", "content": "hi", "timestamp": 1700000000000},
					{"role": "assistant", "content": "hello", "model": "qwen-max", "timestamp": 1700000001000},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	data, err := client.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", data.SessionID)
	require.Len(t, data.Messages, 2)
	assert.Equal(t, "user", data.Messages[0].Role)
	assert.Equal(t, "hi", data.Messages[0].Content)
	assert.Equal(t, "qwen-max", data.Messages[1].Model)
	assert.Equal(t, int64(1700000001000), data.Messages[1].Timestamp)
}

func TestClient_GetSessionEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// HTTP 200 with an error code inside the envelope.
		json.NewEncoder(w).Encode(map[string]any{
			"code":    500,
			"message": "session expired",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	_, err := client.GetSession(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
}

func TestClient_DeleteSession(t *testing.T) {
	var deleted string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/prompt/session", r.URL.Path)
		deleted = r.URL.Query().Get("sessionId")

		json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "success"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	require.NoError(t, client.DeleteSession(context.Background(), "sess-9"))
	assert.Equal(t, "sess-9", deleted)
}

func TestClient_DeleteSessionBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	err := client.DeleteSession(context.Background(), "sess-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/prompt/session", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"code": 200, "data": map[string]any{"sessionId": "s"}})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 0, nil)
	_, err := client.GetSession(context.Background(), "s")
	assert.NoError(t, err)
}
