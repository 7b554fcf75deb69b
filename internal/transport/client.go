// ABOUTME: HTTP client for the prompt-run NDJSON stream and session CRUD endpoints
// ABOUTME: Streams honor context cancellation; session calls use a bounded timeout

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/promptlab/playground/internal/protocol"
)

// Streamer opens the event stream for one prompt run. The returned reader
// delivers newline-terminated JSON records; closing it releases the
// underlying transport.
type Streamer interface {
	OpenStream(ctx context.Context, req *protocol.StreamRequest) (io.ReadCloser, error)
}

// SessionAPI covers the opaque session CRUD collaborators used by restore
// and delete. Both are plain request/response calls, not streams.
type SessionAPI interface {
	GetSession(ctx context.Context, sessionID string) (*SessionData, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// SessionMessage is one history entry returned by the session-fetch
// endpoint.
type SessionMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Model     string `json:"model"`
	Timestamp int64  `json:"timestamp"`
}

// SessionData is the server-held state of one session.
type SessionData struct {
	SessionID   string           `json:"sessionId"`
	Messages    []SessionMessage `json:"messages"`
	ModelConfig string           `json:"modelConfig"`
	Variables   string           `json:"variables"`
}

// envelope is the backend's uniform response wrapper for non-streaming
// calls.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the playground backend over HTTP. It implements both
// Streamer and SessionAPI.
type Client struct {
	baseURL string
	timeout time.Duration
	// stream requests must not carry a client-wide timeout: a healthy run
	// can stay open for minutes. Cancellation rides on the request context.
	streamClient *http.Client
	crudClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a backend client. timeout bounds the session CRUD
// calls only; zero means 30 seconds.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      timeout,
		streamClient: &http.Client{},
		crudClient:   &http.Client{Timeout: timeout},
		logger:       logger.With("component", "transport"),
	}
}

// OpenStream POSTs the run request and returns the NDJSON response body.
// The caller owns the reader and must close it on every exit path.
func (c *Client) OpenStream(ctx context.Context, req *protocol.StreamRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding run request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/prompt/run", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building run request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("opening prompt stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("prompt stream returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Debug("prompt stream opened", "session_id", req.SessionID, "new_session", req.NewSession)
	return resp.Body, nil
}

// GetSession fetches the server-held history for a session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionData, error) {
	endpoint := c.baseURL + "/api/prompt/session?sessionId=" + url.QueryEscape(sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building session request: %w", err)
	}

	var data SessionData
	if err := c.doEnvelope(httpReq, &data); err != nil {
		return nil, fmt.Errorf("fetching session %s: %w", sessionID, err)
	}
	return &data, nil
}

// DeleteSession removes a session on the server.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	endpoint := c.baseURL + "/api/prompt/session?sessionId=" + url.QueryEscape(sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building session delete: %w", err)
	}

	if err := c.doEnvelope(httpReq, nil); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// doEnvelope executes a CRUD request and unwraps the {code, message, data}
// envelope, decoding data into out when non-nil.
func (c *Client) doEnvelope(req *http.Request, out any) error {
	resp, err := c.crudClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if env.Code != http.StatusOK {
		return fmt.Errorf("backend error %d: %s", env.Code, env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}
