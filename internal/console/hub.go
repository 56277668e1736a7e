package console

import (
	"log/slog"
	"sync"
)

// Hub tracks the views mounted by each operator session.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]func()
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[string]func()),
	}
}

// Register records a mount. closeFn ends it; a mount already registered
// under the same ID is closed first.
func (h *Hub) Register(sessionID, mountID string, closeFn func()) {
	h.mu.Lock()
	if _, exists := h.active[sessionID]; !exists {
		h.active[sessionID] = make(map[string]func())
	}
	existing := h.active[sessionID][mountID]
	h.active[sessionID][mountID] = closeFn
	h.mu.Unlock()

	if existing != nil {
		existing()
	}
	slog.Info("View mounted", "session_id", sessionID, "mount_id", mountID)
}

// Unregister forgets a mount.
func (h *Hub) Unregister(sessionID, mountID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if mounts, ok := h.active[sessionID]; ok {
		if _, exists := mounts[mountID]; exists {
			delete(mounts, mountID)
			if len(mounts) == 0 {
				delete(h.active, sessionID)
			}
			slog.Info("View unmounted", "session_id", sessionID, "mount_id", mountID)
		}
	}
}

// Count returns the number of views mounted by a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[sessionID])
}

// CloseSession ends every mount of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	mounts := h.active[sessionID]
	delete(h.active, sessionID)
	h.mu.Unlock()

	for mountID, closeFn := range mounts {
		closeFn()
		slog.Info("View closed", "session_id", sessionID, "mount_id", mountID)
	}
}
