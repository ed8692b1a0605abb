// Package realtime is the in-process fanout bus and session registry.
package realtime

import (
	"log/slog"
	"sync"

	"cabride/internal/observability"
)

// Hub maps sessions to named groups and delivers events to group members.
// Publish never blocks: a session whose queue is full misses the event.
// Events published to one group from one goroutine reach each member in order.
type Hub struct {
	mu       sync.RWMutex
	groups   map[string]map[*Session]struct{}
	sessions map[*Session]map[string]struct{}
	logger   *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		groups:   make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]map[string]struct{}),
		logger:   logger,
	}
}

// Register adds s to the hub and joins the given groups.
func (h *Hub) Register(s *Session, groups ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		h.sessions[s] = make(map[string]struct{})
		observability.RealtimeSessions.Inc()
	}
	for _, g := range groups {
		h.joinLocked(s, g)
	}
}

// Subscribe registers a connectionless session in the given groups.
// The caller reads events from Messages and must Unregister it.
func (h *Hub) Subscribe(userID string, groups ...string) *Session {
	s := newSession("", userID, false, nil, 256)
	h.Register(s, groups...)
	return s
}

// Join adds a registered session to group. Unknown sessions are ignored.
func (h *Hub) Join(s *Session, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		return
	}
	h.joinLocked(s, group)
}

func (h *Hub) joinLocked(s *Session, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Session]struct{})
		h.groups[group] = members
	}
	members[s] = struct{}{}
	h.sessions[s][group] = struct{}{}
}

// Leave removes s from group.
func (h *Hub) Leave(s *Session, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(s, group)
}

func (h *Hub) leaveLocked(s *Session, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if joined, ok := h.sessions[s]; ok {
		delete(joined, group)
	}
}

// Restrict removes from group every session whose user is not in userIDs.
// It returns the number of sessions removed.
func (h *Hub) Restrict(group string, userIDs ...string) int {
	allowed := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			allowed[id] = struct{}{}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for s := range h.groups[group] {
		if _, ok := allowed[s.UserID]; ok {
			continue
		}
		h.leaveLocked(s, group)
		removed++
	}
	return removed
}

// Unregister drops every membership of s and closes its queue.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.sessions[s]
	if !ok {
		return
	}
	for g := range joined {
		h.leaveLocked(s, g)
	}
	delete(h.sessions, s)
	observability.RealtimeSessions.Dec()
	s.close()
}

// Publish delivers e to every current member of group.
func (h *Hub) Publish(group string, e Event) {
	msg, ok := h.encode(e)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.groups[group] {
		h.deliver(s, msg, group)
	}
}

// Broadcast delivers e to every registered session except the given one.
func (h *Hub) Broadcast(e Event, except *Session) {
	msg, ok := h.encode(e)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.sessions {
		if s == except {
			continue
		}
		h.deliver(s, msg, "*")
	}
}

// Send delivers e to one session.
func (h *Hub) Send(s *Session, e Event) {
	msg, ok := h.encode(e)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, registered := h.sessions[s]; registered {
		h.deliver(s, msg, "")
	}
}

// GroupSize returns the number of sessions currently in group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// SessionCount returns the number of registered sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) encode(e Event) (Message, bool) {
	data, err := Encode(e)
	if err != nil {
		h.logger.Error("encode event", "event", e.EventType(), "error", err)
		return Message{}, false
	}
	return Message{Type: e.EventType(), Data: data}, true
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(s *Session, msg Message, group string) {
	if s.enqueue(msg) {
		observability.FanoutDelivered.Inc()
		return
	}
	observability.FanoutDropped.Inc()
	h.logger.Warn("session queue full, event dropped",
		"session_id", s.ID,
		"user_id", s.UserID,
		"group", group,
		"event", msg.Type,
	)
}
