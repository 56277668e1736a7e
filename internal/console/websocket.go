package console

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ashureev/ops-console/internal/config"
	"github.com/ashureev/ops-console/internal/session"
)

const (
	writeTimeout = 10 * time.Second
	// commandQueueSize bounds commands waiting behind a slow one.
	commandQueueSize = 8
)

// WebSocketHandler bridges one mounted view to one websocket.
type WebSocketHandler struct {
	registry      *Registry
	hub           *Hub
	allowedOrigin string
	isDev         bool
	rateLimit     config.RateLimitConfig
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler. Commands on each
// socket are limited to rl.
func NewWebSocketHandler(registry *Registry, hub *Hub, allowedOrigin string, isDev bool, rl config.RateLimitConfig, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		registry:      registry,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		rateLimit:     rl,
		logger:        logger,
	}
}

// wsInbound is a message from the browser.
type wsInbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsOutbound is a message to the browser.
type wsOutbound struct {
	Type    string `json:"type"`
	View    string `json:"view,omitempty"`
	Data    any    `json:"data,omitempty"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"login required"}` + "\n"))
		return
	}
	name := chi.URLParam(r, "view")
	logger := h.logger.With("session_id", sess.ID, "view", name)
	logger.Info("WebSocket connection request", "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "view closed"); closeErr != nil {
			logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	changed := make(chan struct{}, 1)
	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	view, err := h.registry.Mount(ctx, MountRequest{
		Name:    name,
		Params:  params,
		Session: sess,
		OnChange: func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		logger.Warn("Failed to mount view", "error", err)
		if err := h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: err.Error()}); err != nil {
			logger.Debug("Failed to send mount error", "error", err)
		}
		return
	}
	defer view.Close()

	mountID := uuid.NewString()
	h.hub.Register(sess.ID, mountID, cancel)
	defer h.hub.Unregister(sess.ID, mountID)

	out := make(chan wsOutbound, 16)
	cmds := make(chan Command, commandQueueSize)
	var wg sync.WaitGroup
	wg.Add(3)

	// Input loop: WebSocket -> command queue.
	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, cmds, out, logger)
	}()

	// Command loop: command queue -> view.
	go func() {
		defer wg.Done()
		commandLoop(ctx, view, cmds, out, logger)
	}()

	// Output loop: view -> WebSocket.
	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, view, changed, out, logger)
	}()

	wg.Wait()
	logger.Info("View session ended")
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) newLimiter() *rate.Limiter {
	if h.rateLimit.RequestsPerMin <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(h.rateLimit.RequestsPerMin)), h.rateLimit.Burst)
}

// inputLoop keeps reading while commands run, so pings and close frames are
// seen even when a command waits on the backend.
func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, cmds chan<- Command, out chan<- wsOutbound, logger *slog.Logger) {
	limiter := h.newLimiter()
	send := func(msg wsOutbound) bool {
		select {
		case out <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				logger.Debug("WebSocket closed", "reason", err)
			} else {
				logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			if !send(wsOutbound{Type: "error", Error: "invalid message"}) {
				return
			}
			continue
		}

		if msg.Type == "ping" {
			if !send(wsOutbound{Type: "pong"}) {
				return
			}
			continue
		}

		if !limiter.Allow() {
			if !send(wsOutbound{Type: "error", Command: msg.Type, Error: "rate limit exceeded"}) {
				return
			}
			continue
		}

		select {
		case cmds <- Command(msg):
		default:
			if !send(wsOutbound{Type: "error", Command: msg.Type, Error: "too many pending commands"}) {
				return
			}
		}
	}
}

// commandLoop applies commands to the view one at a time, in arrival order.
func commandLoop(ctx context.Context, view View, cmds <-chan Command, out chan<- wsOutbound, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-cmds:
			err := view.Handle(ctx, cmd)
			if err == nil {
				continue
			}
			logger.Debug("View command failed", "command", cmd.Type, "error", err)
			select {
			case out <- wsOutbound{Type: "error", Command: cmd.Type, Error: err.Error()}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// outputLoop pushes a snapshot on every change signal. Signals raised while
// a write is in progress collapse into one snapshot.
func (h *WebSocketHandler) outputLoop(ctx context.Context, ws *websocket.Conn, view View, changed <-chan struct{}, out <-chan wsOutbound, logger *slog.Logger) {
	snapshot := func() error {
		return h.writeJSON(ctx, ws, wsOutbound{Type: "snapshot", View: view.Name(), Data: view.Snapshot()})
	}
	if err := snapshot(); err != nil {
		logger.Debug("WebSocket write error", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			if err := snapshot(); err != nil {
				logger.Debug("WebSocket write error", "error", err)
				return
			}
		case msg := <-out:
			if err := h.writeJSON(ctx, ws, msg); err != nil {
				logger.Debug("WebSocket write error", "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
