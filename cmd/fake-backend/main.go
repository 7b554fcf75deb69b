// ABOUTME: Minimal fake playground backend for local development and E2E testing
// ABOUTME: Usage: fake-backend [-addr localhost:8940] [-delay 20ms]

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/playground/internal/protocol"
	"github.com/promptlab/playground/internal/transport"
)

func main() {
	addr := flag.String("addr", "localhost:8940", "HTTP listen address")
	delay := flag.Duration("delay", 20*time.Millisecond, "Delay between content records")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	backend := &backend{
		delay:    *delay,
		logger:   logger,
		sessions: make(map[string]*sessionState),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/prompt/run", backend.handleRun)
	mux.HandleFunc("GET /api/prompt/session", backend.handleGetSession)
	mux.HandleFunc("DELETE /api/prompt/session", backend.handleDeleteSession)

	srv := &http.Server{Addr: *addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("fake backend listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

type sessionState struct {
	messages    []transport.SessionMessage
	modelConfig string
	variables   string
}

type backend struct {
	delay  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// handleRun streams an echo reply as NDJSON records: session_info, content
// deltas, metrics, end.
func (b *backend) handleRun(w http.ResponseWriter, r *http.Request) {
	var req protocol.StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" || req.NewSession {
		sessionID = uuid.New().String()
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	writeRecord := func(rec map[string]any) bool {
		line, err := json.Marshal(rec)
		if err != nil {
			return false
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	writeRecord(map[string]any{"type": "session_info", "sessionId": sessionID})

	reply := echoReply(req.Message)
	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(b.delay):
		}
		if !writeRecord(map[string]any{"type": "content", "content": word}) {
			return
		}
	}

	writeRecord(map[string]any{
		"type": "metrics",
		"metrics": map[string]any{
			"usage": map[string]any{
				"promptTokens":     len(req.Message),
				"completionTokens": len(reply),
			},
			"traceId": uuid.New().String(),
		},
	})
	writeRecord(map[string]any{"type": "end"})

	now := time.Now().UnixMilli()
	b.mu.Lock()
	state, ok := b.sessions[sessionID]
	if !ok {
		state = &sessionState{modelConfig: req.ModelConfig, variables: req.Variables}
		b.sessions[sessionID] = state
	}
	state.messages = append(state.messages,
		transport.SessionMessage{Role: "user", Content: req.Message, Timestamp: now},
		transport.SessionMessage{Role: "assistant", Content: reply, Timestamp: now},
	)
	b.mu.Unlock()

	b.logger.Info("run served", "session_id", sessionID, "message_len", len(req.Message))
}

func (b *backend) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	b.mu.Lock()
	state, ok := b.sessions[sessionID]
	b.mu.Unlock()

	if !ok {
		writeEnvelope(w, http.StatusNotFound, "session not found", nil)
		return
	}

	writeEnvelope(w, http.StatusOK, "success", transport.SessionData{
		SessionID:   sessionID,
		Messages:    state.messages,
		ModelConfig: state.modelConfig,
		Variables:   state.variables,
	})
}

func (b *backend) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	b.mu.Lock()
	delete(b.sessions, sessionID)
	b.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "success", nil)
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"data":    data,
	})
}

func echoReply(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n"
	}
	return fmt.Sprintf("Echo: %s. I received your message and am responding with a streamed reply.", input)
}
