// Package confirm tracks destructive requests that wait for the user to type
// a confirmation phrase.
package confirm

import (
	"context"
	"sync"
	"time"
)

// Action names a destructive operation that needs confirming.
type Action string

const ActionDeleteAccount Action = "delete account"

// Request is what the user is asked to confirm.
type Request struct {
	Action Action
	// TargetID is the owner or entity id the action applies to.
	TargetID string
	// Phrase must be typed back verbatim.
	Phrase string
}

type pending struct {
	Request
	chatID    int64
	expiresAt time.Time
}

type Manager struct {
	mu      sync.Mutex
	pending map[int64]pending
	now     func() time.Time
}

func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		pending: make(map[int64]pending),
		now:     now,
	}
}

// Start asks userID to confirm req in chatID before now+timeout. A new
// request replaces any earlier one for the same user.
func (m *Manager) Start(userID, chatID int64, req Request, now time.Time, timeout time.Duration) {
	if m == nil || userID == 0 || chatID == 0 || req.Action == "" {
		return
	}
	if now.IsZero() {
		now = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[userID] = pending{
		Request:   req,
		chatID:    chatID,
		expiresAt: now.Add(timeout),
	}
}

// Consume closes the user's window and returns its request when it was
// still open for this chat. A message from another chat leaves the window
// untouched.
func (m *Manager) Consume(userID, chatID int64, now time.Time) (Request, bool) {
	if m == nil || userID == 0 || chatID == 0 {
		return Request{}, false
	}
	if now.IsZero() {
		now = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pending[userID]
	if !ok || entry.chatID != chatID {
		return Request{}, false
	}
	delete(m.pending, userID)
	if !now.Before(entry.expiresAt) {
		return Request{}, false
	}
	return entry.Request, true
}

// Confirms reports whether text is the request's phrase.
func (r Request) Confirms(text string) bool {
	return r.Phrase != "" && text == r.Phrase
}

func (m *Manager) SweepExpired(now time.Time) {
	if m == nil {
		return
	}
	if now.IsZero() {
		now = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, entry := range m.pending {
		if !now.Before(entry.expiresAt) {
			delete(m.pending, userID)
		}
	}
}

func (m *Manager) StartSweeper(ctx context.Context) {
	if m == nil || ctx == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepExpired(m.now())
		}
	}
}
