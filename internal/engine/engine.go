// ABOUTME: Engine drives one prompt run end-to-end per instance, up to a bounded set of instances
// ABOUTME: Builds the request, consumes the event stream, and guarantees cleanup on every exit path

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/playground/internal/conversation"
	"github.com/promptlab/playground/internal/protocol"
	"github.com/promptlab/playground/internal/session"
	"github.com/promptlab/playground/internal/store"
	"github.com/promptlab/playground/internal/transport"
)

// DefaultMaxInstances bounds how many conversation panels may exist at once.
const DefaultMaxInstances = 3

var (
	// ErrEmptyMessage indicates Run was called with blank input. No state
	// is mutated and no transport call is made.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrInstanceNotFound indicates the instance id is unknown.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrTooManyInstances indicates the instance cap was reached. The
	// request is rejected, not queued.
	ErrTooManyInstances = errors.New("maximum number of instances reached")

	// ErrInstanceExists indicates the instance id is already taken.
	ErrInstanceExists = errors.New("instance already exists")

	// ErrNoRestorableSession indicates the restore slot is empty.
	ErrNoRestorableSession = errors.New("no session available to restore")

	// ErrNoActiveSession indicates the instance has no bound session.
	ErrNoActiveSession = errors.New("no active session")
)

// transportErrorText is shown in place of the assistant reply when the
// stream fails at the network level. Transport failures are not retried.
const transportErrorText = "Connection error, please try again later"

// InstanceConfig is the prompt and model setup for one instance. Run
// snapshots it when the turn starts, so edits made mid-stream apply to the
// next turn only.
type InstanceConfig struct {
	PromptKey   string
	Version     string
	Template    string
	Variables   map[string]any
	ModelID     string
	ModelParams map[string]any

	// ForceNewSession discards the remembered session before each run so
	// every turn starts a fresh server-side conversation.
	ForceNewSession bool

	MockTools []protocol.MockTool
}

// Params configures a new Engine.
type Params struct {
	Streamer   transport.Streamer
	SessionAPI transport.SessionAPI

	// Recorder persists completed turns locally. Nil disables persistence.
	Recorder store.Recorder

	// OnUpdate is forwarded to every instance.
	OnUpdate conversation.UpdateFunc

	// PublishDelay is the scheduler throttle window; zero means the
	// conversation package default.
	PublishDelay time.Duration

	// MaxInstances caps concurrently existing instances; zero means
	// DefaultMaxInstances.
	MaxInstances int

	Logger *slog.Logger
}

// Engine coordinates all conversation instances and their streams.
type Engine struct {
	streamer     transport.Streamer
	sessionAPI   transport.SessionAPI
	recorder     store.Recorder
	sessions     *session.Registry
	handles      *supervisor
	onUpdate     conversation.UpdateFunc
	publishDelay time.Duration
	maxInstances int
	logger       *slog.Logger

	mu        sync.Mutex
	instances map[string]*conversation.Instance
	configs   map[string]InstanceConfig
}

// New creates an Engine. Streamer is required; SessionAPI may be nil when
// restore/delete are not needed.
func New(p Params) *Engine {
	if p.MaxInstances <= 0 {
		p.MaxInstances = DefaultMaxInstances
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Engine{
		streamer:     p.Streamer,
		sessionAPI:   p.SessionAPI,
		recorder:     p.Recorder,
		sessions:     session.NewRegistry(),
		handles:      newSupervisor(),
		onUpdate:     p.OnUpdate,
		publishDelay: p.PublishDelay,
		maxInstances: p.MaxInstances,
		logger:       p.Logger.With("component", "engine"),
		instances:    make(map[string]*conversation.Instance),
		configs:      make(map[string]InstanceConfig),
	}
}

// AddInstance creates a new conversation instance. Creation beyond the cap
// is rejected with ErrTooManyInstances.
func (e *Engine) AddInstance(instanceID string, cfg InstanceConfig) (*conversation.Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.instances[instanceID]; exists {
		return nil, ErrInstanceExists
	}
	if len(e.instances) >= e.maxInstances {
		return nil, fmt.Errorf("%w (max %d)", ErrTooManyInstances, e.maxInstances)
	}

	inst := conversation.NewInstance(instanceID, e.onUpdate)
	e.instances[instanceID] = inst
	e.configs[instanceID] = cfg
	e.logger.Debug("instance added", "instance", instanceID, "total", len(e.instances))
	return inst, nil
}

// RemoveInstance cancels any in-flight stream and forgets the instance.
func (e *Engine) RemoveInstance(instanceID string) {
	e.handles.stop(instanceID)
	e.sessions.Forget(instanceID)

	e.mu.Lock()
	delete(e.instances, instanceID)
	delete(e.configs, instanceID)
	e.mu.Unlock()
}

// Configure replaces the instance's prompt/model setup. Takes effect on the
// next turn.
func (e *Engine) Configure(instanceID string, cfg InstanceConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instances[instanceID]; !ok {
		return ErrInstanceNotFound
	}
	e.configs[instanceID] = cfg
	return nil
}

// Instance returns the conversation state for an id.
func (e *Engine) Instance(instanceID string) (*conversation.Instance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	return inst, ok
}

func (e *Engine) lookup(instanceID string) (*conversation.Instance, InstanceConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	return inst, e.configs[instanceID], ok
}

// Run submits one turn for an instance and returns once the stream
// goroutine is launched; the caller observes progress through the update
// callback. Validation failures are rejected synchronously with no state
// mutation and no transport call.
func (e *Engine) Run(ctx context.Context, instanceID, userText string) error {
	text := strings.TrimSpace(userText)
	if text == "" {
		return ErrEmptyMessage
	}

	inst, cfg, ok := e.lookup(instanceID)
	if !ok {
		return ErrInstanceNotFound
	}
	if inst.Busy() {
		return conversation.ErrTurnInFlight
	}

	if cfg.ForceNewSession {
		e.sessions.Clear(instanceID)
		inst.SetSessionID("")
	}
	sessionID, _ := e.sessions.Get(instanceID)

	variables, err := protocol.EncodeVariables(cfg.Variables)
	if err != nil {
		return err
	}
	modelConfig, err := protocol.EncodeModelConfig(cfg.ModelID, cfg.ModelParams)
	if err != nil {
		return err
	}

	version := cfg.Version
	if version == "" {
		version = "1.0"
	}
	req := &protocol.StreamRequest{
		SessionID:   sessionID,
		PromptKey:   cfg.PromptKey,
		Version:     version,
		Template:    cfg.Template,
		Variables:   variables,
		ModelConfig: modelConfig,
		Message:     text,
		NewSession:  sessionID == "",
		MockTools:   cfg.MockTools,
	}

	assistantID, err := inst.BeginTurn(text, cfg.ModelID)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.handles.register(instanceID, cancel)

	go e.runTurn(runCtx, inst, assistantID, req)
	return nil
}

// runTurn consumes one stream to its terminal state. Every exit path
// freezes the assistant message, clears busy, and releases the handle.
func (e *Engine) runTurn(ctx context.Context, inst *conversation.Instance, assistantID string, req *protocol.StreamRequest) {
	defer e.handles.release(inst.ID())

	body, err := e.streamer.OpenStream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			inst.FinishTurn(assistantID, "")
			return
		}
		e.logger.Error("opening prompt stream failed", "instance", inst.ID(), "error", err)
		inst.FinishTurn(assistantID, transportErrorText)
		return
	}
	defer body.Close()

	sched := conversation.NewScheduler(e.publishDelay, func(content string) {
		inst.SetContent(assistantID, content)
	})

	decoder := &protocol.FrameDecoder{}
	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			// Late-arriving buffered data after cancellation is discarded.
			if ctx.Err() != nil {
				inst.FinishTurn(assistantID, "")
				return
			}
			if done := e.applyFrames(ctx, inst, assistantID, sched, decoder.Feed(buf[:n])); done {
				return
			}
		}
		if readErr != nil {
			e.finishAfterRead(ctx, inst, assistantID, sched, decoder, readErr)
			return
		}
	}
}

// applyFrames interprets decoded records and applies their effects in
// arrival order. Returns true once a terminal event has been handled.
func (e *Engine) applyFrames(ctx context.Context, inst *conversation.Instance, assistantID string, sched *conversation.Scheduler, frames [][]byte) bool {
	for _, frame := range frames {
		ev, err := protocol.Interpret(frame)
		if err != nil {
			// A single malformed record never aborts the turn.
			e.logger.Warn("skipping malformed stream record", "instance", inst.ID(), "error", err)
			continue
		}
		if ev == nil {
			continue
		}

		switch ev := ev.(type) {
		case protocol.SessionEstablished:
			e.applySession(inst, ev.SessionID)

		case protocol.ContentDelta:
			sched.RecordDelta(ev.Text)

		case protocol.Metrics:
			inst.SetMetrics(assistantID, ev.Usage, ev.TraceID)

		case protocol.End:
			sched.FlushNow()
			inst.FinishTurn(assistantID, "")
			e.recordTurn(inst)
			return true

		case protocol.ErrorEvent:
			sched.FlushNow()
			message := ev.Message
			if message == "" {
				message = "Unknown error"
			}
			e.logger.Warn("prompt run failed", "instance", inst.ID(), "error", message)
			inst.FinishTurn(assistantID, "Error: "+message)
			return true
		}
	}
	return false
}

// finishAfterRead handles transport closure: clean EOF ends the turn with
// whatever content arrived, cancellation freezes silently, anything else
// surfaces the generic retry-later text.
func (e *Engine) finishAfterRead(ctx context.Context, inst *conversation.Instance, assistantID string, sched *conversation.Scheduler, decoder *protocol.FrameDecoder, readErr error) {
	if ctx.Err() != nil {
		inst.FinishTurn(assistantID, "")
		return
	}

	if errors.Is(readErr, io.EOF) {
		// The server terminates every record with a newline; a truncated
		// trailing record is dropped, not interpreted.
		if residual := decoder.Residual(); residual > 0 {
			e.logger.Warn("discarding truncated trailing record", "instance", inst.ID(), "bytes", residual)
		}
		sched.FlushNow()
		inst.FinishTurn(assistantID, "")
		return
	}

	e.logger.Error("reading prompt stream failed", "instance", inst.ID(), "error", readErr)
	inst.FinishTurn(assistantID, transportErrorText)
}

// applySession updates the registry when the server reports a session id
// that differs from the one currently bound.
func (e *Engine) applySession(inst *conversation.Instance, sessionID string) {
	if sessionID == "" {
		return
	}
	current, _ := e.sessions.Get(inst.ID())
	if sessionID == current {
		return
	}
	e.sessions.Set(inst.ID(), sessionID)
	inst.SetSessionID(sessionID)
	e.logger.Debug("session established", "instance", inst.ID(), "session_id", sessionID)
}

// recordTurn mirrors the just-completed turn into the local transcript
// store. Persistence failures are logged, never surfaced to the turn.
func (e *Engine) recordTurn(inst *conversation.Instance) {
	if e.recorder == nil {
		return
	}
	sessionID := inst.SessionID()
	if sessionID == "" {
		return
	}

	history := inst.History()
	if len(history) < 2 {
		return
	}
	turn := history[len(history)-2:]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.recorder.SaveSession(ctx, &store.Session{
		ID:       sessionID,
		Instance: inst.ID(),
		Model:    turn[len(turn)-1].Model,
	}); err != nil {
		e.logger.Warn("recording session failed", "session_id", sessionID, "error", err)
		return
	}

	rows := make([]*store.Message, 0, len(turn))
	for _, msg := range turn {
		rows = append(rows, &store.Message{
			ID:        msg.ID,
			SessionID: sessionID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			Model:     msg.Model,
			TraceID:   msg.TraceID,
			CreatedAt: msg.Timestamp,
		})
	}
	if err := e.recorder.SaveMessages(ctx, rows); err != nil {
		e.logger.Warn("recording turn failed", "session_id", sessionID, "error", err)
	}
}

// Stop cancels the instance's in-flight stream, if any. The frozen
// assistant message keeps whatever content was already published.
func (e *Engine) Stop(instanceID string) {
	e.handles.stop(instanceID)
}

// ClearHistory cancels any in-flight stream, drops the instance's history,
// and soft-clears its session so RestoreSession can re-attach later.
func (e *Engine) ClearHistory(instanceID string) error {
	inst, _, ok := e.lookup(instanceID)
	if !ok {
		return ErrInstanceNotFound
	}

	e.handles.stop(instanceID)
	e.sessions.Clear(instanceID)
	inst.Clear()
	return nil
}

// RestoreSession re-attaches the most recently cleared session: it fetches
// the server-held history, rebuilds the local transcript, and re-binds the
// session id. The restore slot is consumed only on success.
func (e *Engine) RestoreSession(ctx context.Context, instanceID string) error {
	inst, _, ok := e.lookup(instanceID)
	if !ok {
		return ErrInstanceNotFound
	}
	if inst.Busy() {
		return conversation.ErrTurnInFlight
	}
	if e.sessionAPI == nil {
		return ErrNoRestorableSession
	}

	sessionID, ok := e.sessions.RecentlyCleared(instanceID)
	if !ok {
		return ErrNoRestorableSession
	}

	data, err := e.sessionAPI.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	messages := make([]conversation.Message, 0, len(data.Messages))
	for _, msg := range data.Messages {
		role := conversation.RoleAssistant
		if msg.Role == string(conversation.RoleUser) {
			role = conversation.RoleUser
		}
		messages = append(messages, conversation.Message{
			ID:        uuid.New().String(),
			Role:      role,
			Content:   msg.Content,
			Timestamp: time.UnixMilli(msg.Timestamp),
			Model:     msg.Model,
		})
	}

	inst.RestoreHistory(messages, sessionID)
	e.sessions.Set(instanceID, sessionID)
	e.sessions.DropCleared(instanceID)
	e.logger.Info("session restored", "instance", instanceID, "session_id", sessionID, "messages", len(messages))
	return nil
}

// DeleteSession removes the instance's session on the server and locally.
// Unlike ClearHistory this is a hard delete; nothing remains to restore.
func (e *Engine) DeleteSession(ctx context.Context, instanceID string) error {
	inst, _, ok := e.lookup(instanceID)
	if !ok {
		return ErrInstanceNotFound
	}

	sessionID, ok := e.sessions.Get(instanceID)
	if !ok || sessionID == "" {
		return ErrNoActiveSession
	}

	if e.sessionAPI != nil {
		if err := e.sessionAPI.DeleteSession(ctx, sessionID); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
	}
	if e.recorder != nil {
		if err := e.recorder.DeleteSession(ctx, sessionID); err != nil {
			e.logger.Warn("deleting local transcript failed", "session_id", sessionID, "error", err)
		}
	}

	e.handles.stop(instanceID)
	e.sessions.Forget(instanceID)
	inst.Clear()
	return nil
}

// Close cancels every in-flight stream. Instances remain readable but no
// further turns should be submitted.
func (e *Engine) Close() {
	e.handles.closeAll()
}
