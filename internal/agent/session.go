// Package agent holds conversational sessions with the remote agent
// services. A Session runs one turn at a time: a user message followed by
// exactly one agent message.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ashureev/ops-console/internal/clock"
	"github.com/ashureev/ops-console/internal/domain"
)

var (
	// ErrEmptyQuery is returned for empty or whitespace-only input.
	ErrEmptyQuery = errors.New("agent: empty query")
	// ErrTurnInProgress is returned while a reply is awaited.
	ErrTurnInProgress = errors.New("agent: turn in progress")
	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("agent: session closed")
)

const (
	// ApologyText replaces a reply that carried neither a response nor an
	// error.
	ApologyText = "I apologize, but I encountered an issue processing your request. Please try again."
	// FallbackText is the reply when the backend could not be reached.
	FallbackText = "I'm currently unable to connect to the backend services. " +
		"Please make sure the API server is running and try again."
)

const (
	supportGreeting = "Hello! I'm your AI Support Agent. I can help you with client inquiries, " +
		"order status, payment information, course details and general support questions. " +
		"How can I assist you today?"
	analyticsGreeting = "Hello! I'm your AI Analytics Agent. I can provide business insights, " +
		"analytics and metrics based on your live data. What would you like to know about your business?"
)

// DefaultGreeting returns the built-in opening message for kind.
func DefaultGreeting(kind domain.AgentKind) string {
	if kind == domain.AnalyticsAgent {
		return analyticsGreeting
	}
	return supportGreeting
}

// Querier sends a query to an agent endpoint.
type Querier interface {
	QueryAgent(ctx context.Context, kind domain.AgentKind, q domain.AgentQuery) (domain.Reply, error)
}

// State is the turn state of a session.
type State int

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	if s == AwaitingResponse {
		return "awaiting_response"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is a consistent view of a session.
type Snapshot struct {
	Kind           domain.AgentKind `json:"kind"`
	ConversationID string           `json:"conversation_id"`
	State          State            `json:"state"`
	Typing         bool             `json:"typing"`
	Messages       []domain.Message `json:"messages"`
}

// ReplyText picks the agent message text for a reply: the answer, then a
// non-empty refusal message, then the apology.
func ReplyText(r domain.Reply) string {
	switch r := r.(type) {
	case domain.Answer:
		if r.Text != "" {
			return r.Text
		}
	case domain.Refusal:
		if r.Message != "" {
			return r.Message
		}
	}
	return ApologyText
}

func replyOutcome(r domain.Reply) string {
	switch r := r.(type) {
	case domain.Answer:
		if r.Text != "" {
			return "answer"
		}
	case domain.Refusal:
		if r.Message != "" {
			return "refusal"
		}
	}
	return "apology"
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithGreeting overrides the opening agent message. An empty text keeps the
// default.
func WithGreeting(text string) Option {
	return func(s *Session) {
		if text != "" {
			s.greeting = text
		}
	}
}

// WithQueryContext attaches ctx as the context object of every query.
func WithQueryContext(ctx map[string]any) Option {
	return func(s *Session) { s.queryContext = ctx }
}

// WithConversationLog records the conversation of operatorID to l.
func WithConversationLog(l ConversationLogger, operatorID string) Option {
	return func(s *Session) {
		s.convLog = l
		s.operatorID = operatorID
	}
}

// WithOnChange registers an observer. Observers receive snapshots in order
// and must not call back into the session synchronously.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *Session) { s.observers = append(s.observers, fn) }
}

// Session is one conversation with an agent, owned by a single view.
type Session struct {
	kind           domain.AgentKind
	querier        Querier
	clock          clock.Clock
	logger         *slog.Logger
	greeting       string
	queryContext   map[string]any
	convLog        ConversationLogger
	operatorID     string
	conversationID string
	observers      []func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	messages []domain.Message
	nextID   int
	state    State
	turn     chan struct{}
	closed   bool
	version  uint64

	notifyMu  sync.Mutex
	delivered uint64
}

// NewSession opens a session with the agent of the given kind. The
// transcript starts with the greeting.
func NewSession(kind domain.AgentKind, querier Querier, opts ...Option) *Session {
	s := &Session{
		kind:           kind,
		querier:        querier,
		clock:          clock.Real(),
		logger:         slog.Default(),
		greeting:       DefaultGreeting(kind),
		convLog:        noopConversationLogger{},
		conversationID: ulid.Make().String(),
		nextID:         1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.convLog == nil {
		s.convLog = noopConversationLogger{}
	}
	s.logger = s.logger.With("agent", string(kind), "conversation_id", s.conversationID)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.appendLocked(s.greeting, domain.SenderAgent)
	return s
}

// Send starts a turn. It appends the user message and dispatches the query
// in the background; the agent message is delivered on the returned channel,
// which is closed afterwards. The query outlives ctx's cancellation but not
// the session.
func (s *Session) Send(ctx context.Context, text string) (<-chan domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.state == AwaitingResponse {
		s.mu.Unlock()
		return nil, ErrTurnInProgress
	}
	userMsg := s.appendLocked(text, domain.SenderUser)
	s.state = AwaitingResponse
	turn := make(chan struct{})
	s.turn = turn
	snap, version := s.snapshotLocked(), s.bumpLocked()
	s.mu.Unlock()

	s.notify(snap, version)
	s.record("outbound", "agent_user_message", userMsg, nil)

	out := make(chan domain.Message, 1)
	tctx, release := s.turnContext(ctx)
	go func() {
		defer release()
		defer close(out)
		defer close(turn)
		if msg, ok := s.dispatch(tctx, text); ok {
			out <- msg
		}
	}()
	return out, nil
}

// turnContext keeps ctx's values but ties cancellation to the session.
func (s *Session) turnContext(ctx context.Context) (context.Context, func()) {
	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) dispatch(ctx context.Context, text string) (domain.Message, bool) {
	reply, err := s.querier.QueryAgent(ctx, s.kind, domain.AgentQuery{Query: text, Context: s.queryContext})

	var replyText, outcome string
	if err != nil {
		s.logger.Warn("agent query failed", "error", err)
		replyText, outcome = FallbackText, "fallback"
	} else {
		replyText, outcome = ReplyText(reply), replyOutcome(reply)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Message{}, false
	}
	msg := s.appendLocked(replyText, domain.SenderAgent)
	s.state = Idle
	snap, version := s.snapshotLocked(), s.bumpLocked()
	s.mu.Unlock()

	s.notify(snap, version)
	meta := map[string]any{"outcome": outcome}
	if err != nil {
		meta["error"] = err.Error()
	}
	s.record("inbound", "agent_reply", msg, meta)
	return msg, true
}

// Ask sends text and waits for the agent message.
func (s *Session) Ask(ctx context.Context, text string) (domain.Message, error) {
	ch, err := s.Send(ctx, text)
	if err != nil {
		return domain.Message{}, err
	}
	select {
	case msg, ok := <-ch:
		if !ok {
			return domain.Message{}, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

// Wait blocks until no turn is in progress or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	turn := s.turn
	s.mu.Unlock()
	if turn == nil {
		return nil
	}
	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transcript returns a copy of the messages in append order.
func (s *Session) Transcript() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

// State returns the turn state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the transcript and turn state together.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Kind returns the agent this session talks to.
func (s *Session) Kind() domain.AgentKind { return s.kind }

// Close ends the session. A reply still in flight is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) appendLocked(text string, sender domain.Sender) domain.Message {
	now := s.clock.Now()
	msg := domain.Message{
		ID:        s.nextID,
		Text:      text,
		Sender:    sender,
		Timestamp: now.Format("15:04"),
		CreatedAt: now,
	}
	s.nextID++
	s.messages = append(s.messages, msg)
	return msg
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Kind:           s.kind,
		ConversationID: s.conversationID,
		State:          s.state,
		Typing:         s.state == AwaitingResponse,
		Messages:       append([]domain.Message(nil), s.messages...),
	}
}

func (s *Session) bumpLocked() uint64 {
	s.version++
	return s.version
}

func (s *Session) notify(snap Snapshot, version uint64) {
	if len(s.observers) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version
	for _, fn := range s.observers {
		fn(snap)
	}
}

func (s *Session) record(direction, eventType string, msg domain.Message, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["message_id"] = msg.ID
	s.convLog.Log(ConversationLogEvent{
		Timestamp:      msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		OperatorID:     s.operatorID,
		ConversationID: s.conversationID,
		Agent:          string(s.kind),
		Channel:        "websocket",
		Direction:      direction,
		EventType:      eventType,
		ContentRaw:     msg.Text,
		Content:        cleanForReadability(msg.Text),
		Meta:           meta,
	})
}
