// Package relay drives chat turns end to end: it assembles the context
// briefing, opens the token stream, folds events into the transcript, and
// guards tool execution behind explicit confirmation.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"TaskChat/internal/briefing"
	"TaskChat/internal/gate"
	"TaskChat/internal/toolexec"
	"TaskChat/internal/transcript"
)

var (
	// ErrBusy is returned by Send while another reply is still streaming.
	ErrBusy = errors.New("a reply is already streaming")
	// ErrCancelled is returned when the user cancels an in-flight reply.
	ErrCancelled = errors.New("reply cancelled")
	// ErrStreamFailed is returned when both the stream and the fallback fail.
	ErrStreamFailed = errors.New("chat service unavailable")
)

// Options configures a Relay.
type Options struct {
	Agent     string
	Model     string
	Selection briefing.Selection
}

// Relay owns one conversation at a time and runs chat turns against the
// chat service. At most one reply streams at any moment.
type Relay struct {
	client  *ChatClient
	briefer *briefing.Builder
	gate    *gate.Gate
	store   *transcript.Store
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter

	// OnToken, OnToolCall, and OnNotice are invoked as stream events
	// arrive, on the goroutine running Send. Set them before the first
	// Send; they may be nil.
	OnToken    func(delta string)
	OnToolCall func(call gate.PendingToolCall)
	OnNotice   func(text string)

	mu        sync.Mutex
	conv      *transcript.Conversation
	selection briefing.Selection
	agent     string
	model     string
	active    *session
}

// New creates a Relay with a fresh conversation. store may be nil, in which
// case conversations are not persisted.
func New(client *ChatClient, briefer *briefing.Builder, g *gate.Gate, store *transcript.Store, opts Options, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) *Relay {
	return &Relay{
		client:    client,
		briefer:   briefer,
		gate:      g,
		store:     store,
		logger:    logger,
		tracer:    tracer,
		meter:     meter,
		conv:      transcript.NewConversation(opts.Agent, opts.Model),
		selection: opts.Selection,
		agent:     opts.Agent,
		model:     opts.Model,
	}
}

// Send runs one chat turn: append the user message, build the briefing,
// stream the reply into a fresh assistant message. If the stream dies
// before producing anything usable, the non-streaming endpoint is tried
// once; if it dies after, the partial reply stays and the transcript gets
// an interruption notice.
func (r *Relay) Send(ctx context.Context, text string) error {
	ctx, span := r.tracer.Start(ctx, "chat_turn")
	defer span.End()

	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return ErrBusy
	}
	conv := r.conv
	sel := r.selection
	agent, model := r.agent, r.model
	r.mu.Unlock()

	conv.Append(transcript.RoleUser, text)

	prompt := Prompt{
		Message: text,
		Agent:   agent,
		Model:   model,
		Context: r.briefer.Build(ctx, sel),
	}

	msg := conv.Append(transcript.RoleAssistant, "")

	start := time.Now()

	body, err := r.client.Stream(ctx, prompt)
	if err != nil {
		r.logger.Warn("failed to open stream, falling back", "error", err)
		return r.fallback(ctx, prompt, conv, msg.ID, err)
	}

	sess := newSession(body, conv, msg.ID, r.gate, r.logger)
	sess.onToken = r.OnToken
	sess.onToolCall = r.OnToolCall
	sess.onNotice = r.OnNotice

	r.mu.Lock()
	r.active = sess
	r.mu.Unlock()

	runErr := sess.run()

	r.mu.Lock()
	r.active = nil
	r.mu.Unlock()

	r.recordStreamMetrics(ctx, time.Since(start), sess)

	if runErr != nil {
		if errors.Is(runErr, ErrCancelled) {
			r.logger.Info("reply cancelled", "message_id", msg.ID)
			return ErrCancelled
		}
		if !sess.usable() {
			r.logger.Warn("stream failed before usable output, falling back", "error", runErr)
			return r.fallback(ctx, prompt, conv, msg.ID, runErr)
		}
		r.logger.Warn("stream interrupted after partial output", "error", runErr)
		conv.Append(transcript.RoleSystem, "reply interrupted: the stream ended unexpectedly")
		if r.OnNotice != nil {
			r.OnNotice("reply interrupted: the stream ended unexpectedly")
		}
		r.saveAsync()
		return nil
	}

	r.saveAsync()
	return nil
}

// fallback retries the turn once against the non-streaming endpoint and
// writes the whole reply into the assistant message.
func (r *Relay) fallback(ctx context.Context, p Prompt, conv *transcript.Conversation, msgID string, cause error) error {
	ctx, span := r.tracer.Start(ctx, "chat_fallback")
	defer span.End()

	r.addCounter(ctx, "taskchat.stream.fallbacks", "Chat turns that fell back to the non-streaming endpoint", 1)

	reply, err := r.client.Complete(ctx, p)
	if err != nil {
		r.logger.Error("fallback request failed", "error", err)
		conv.SetContent(msgID, fmt.Sprintf("error: %v", ErrStreamFailed))
		r.saveAsync()
		return fmt.Errorf("%w: %v", ErrStreamFailed, cause)
	}

	conv.SetContent(msgID, reply)
	if r.OnToken != nil {
		r.OnToken(reply)
	}
	r.saveAsync()
	return nil
}

// CancelStream stops the in-flight reply, if any. Text already written
// stays in the transcript; nothing mutates after the cancel. Reports
// whether a reply was actually streaming.
func (r *Relay) CancelStream() bool {
	r.mu.Lock()
	sess := r.active
	r.mu.Unlock()

	if sess == nil {
		return false
	}
	sess.cancel()
	return true
}

// ConfirmTool executes the pending tool call. Invalid argument JSON keeps
// the call pending; every execution outcome clears it and lands in the
// transcript as a system message.
func (r *Relay) ConfirmTool(ctx context.Context) (toolexec.Result, error) {
	pending, ok := r.gate.Pending()
	if !ok {
		return toolexec.Result{}, gate.ErrNoPending
	}

	res, err := r.gate.Confirm(ctx)
	if err != nil {
		if errors.Is(err, gate.ErrBadArgs) {
			return toolexec.Result{}, err
		}
		r.conversation().Append(transcript.RoleSystem, fmt.Sprintf("tool %s failed: %v", pending.Name, err))
		r.saveAsync()
		return toolexec.Result{}, err
	}

	if res.OK {
		r.conversation().Append(transcript.RoleSystem, fmt.Sprintf("tool %s succeeded: %s", pending.Name, res.Output))
	} else {
		r.conversation().Append(transcript.RoleSystem, fmt.Sprintf("tool %s failed: %s", pending.Name, res.Detail))
	}
	r.saveAsync()
	return res, nil
}

// CancelTool dismisses the pending tool call without executing it.
func (r *Relay) CancelTool() error {
	return r.gate.Cancel()
}

// EditToolArgs replaces the pending tool call's argument text.
func (r *Relay) EditToolArgs(text string) error {
	return r.gate.SetArgs(text)
}

// PendingTool returns the tool call awaiting confirmation, if any.
func (r *Relay) PendingTool() (gate.PendingToolCall, bool) {
	return r.gate.Pending()
}

// History returns a snapshot of the conversation so far.
func (r *Relay) History() []transcript.Message {
	return r.conversation().Messages()
}

// NewConversation saves the current conversation and starts a fresh one.
func (r *Relay) NewConversation() string {
	r.saveAsync()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conv = transcript.NewConversation(r.agent, r.model)
	r.logger.Info("started new conversation", "conversation_id", r.conv.ID)
	return r.conv.ID
}

// SetAgent changes the agent sent with future turns.
func (r *Relay) SetAgent(agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agent = agent
}

// SetModel changes the model sent with future turns.
func (r *Relay) SetModel(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.model = model
}

// Selection returns the current briefing selection.
func (r *Relay) Selection() briefing.Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection
}

// SetSelection replaces the briefing selection used for future turns.
func (r *Relay) SetSelection(sel briefing.Selection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection = sel
}

// Save persists the current conversation.
func (r *Relay) Save(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.Save(ctx, r.conversation())
}

func (r *Relay) conversation() *transcript.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conv
}

func (r *Relay) saveAsync() {
	if r.store == nil {
		return
	}
	conv := r.conversation()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.store.Save(ctx, conv); err != nil {
			r.logger.Error("failed to save conversation", "error", err)
		}
	}()
}

// recordStreamMetrics records OpenTelemetry metrics for one streamed turn.
func (r *Relay) recordStreamMetrics(ctx context.Context, d time.Duration, sess *session) {
	histogram, err := r.meter.Float64Histogram(
		"taskchat.stream.duration",
		metric.WithDescription("Streamed reply duration in milliseconds"),
	)
	if err != nil {
		r.logger.Warn("failed to create histogram", "error", err)
	} else {
		histogram.Record(ctx, float64(d.Milliseconds()))
	}

	tokens, toolCalls := sess.counts()
	r.addCounter(ctx, "taskchat.stream.tokens", "Tokens folded into streamed replies", tokens)
	r.addCounter(ctx, "taskchat.stream.toolcalls", "Tool calls offered during streamed replies", toolCalls)
}

func (r *Relay) addCounter(ctx context.Context, name, description string, value int64) {
	if value == 0 {
		return
	}
	counter, err := r.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		r.logger.Warn("failed to create counter", "name", name, "error", err)
		return
	}
	counter.Add(ctx, value)
}
