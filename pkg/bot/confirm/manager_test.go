package confirm

import (
	"testing"
	"time"
)

var deleteAccount = Request{Action: ActionDeleteAccount, TargetID: "1", Phrase: "DELETE MY ACCOUNT"}

func TestManagerStartReplacesRequest(t *testing.T) {
	manager := NewManager(nil)
	start := time.Date(2026, 1, 23, 12, 0, 0, 0, time.UTC)

	manager.Start(1, 10, Request{Action: "wipe hints", TargetID: "7", Phrase: "WIPE"}, start, 5*time.Minute)
	manager.Start(1, 10, deleteAccount, start.Add(time.Minute), 5*time.Minute)

	manager.mu.Lock()
	entry, ok := manager.pending[1]
	manager.mu.Unlock()
	if !ok {
		t.Fatalf("expected pending confirmation to exist")
	}
	if expected := start.Add(6 * time.Minute); !entry.expiresAt.Equal(expected) {
		t.Fatalf("expected expires at %v, got %v", expected, entry.expiresAt)
	}
	if entry.Request != deleteAccount {
		t.Fatalf("expected latest request to win, got %+v", entry.Request)
	}
}

func TestManagerConsume(t *testing.T) {
	start := time.Date(2026, 1, 23, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		chatID    int64
		at        time.Time
		want      bool
		stillOpen bool
	}{
		{"before expiration", 10, start.Add(time.Minute), true, false},
		{"at expiration", 10, start.Add(5 * time.Minute), false, false},
		{"other chat", 11, start.Add(time.Minute), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager(nil)
			manager.Start(1, 10, deleteAccount, start, 5*time.Minute)

			req, ok := manager.Consume(1, tt.chatID, tt.at)
			if ok != tt.want {
				t.Fatalf("expected consume %v, got %v", tt.want, ok)
			}
			if ok && req != deleteAccount {
				t.Fatalf("expected the started request back, got %+v", req)
			}
			if !ok && req != (Request{}) {
				t.Fatalf("expected zero request on failure, got %+v", req)
			}

			_, open := manager.Consume(1, 10, start.Add(time.Second))
			if open != tt.stillOpen {
				t.Fatalf("expected window open=%v after consume, got %v", tt.stillOpen, open)
			}
		})
	}
}

func TestManagerIgnoresRequestWithoutAction(t *testing.T) {
	manager := NewManager(nil)
	manager.Start(1, 10, Request{TargetID: "1"}, time.Time{}, time.Minute)
	if _, ok := manager.Consume(1, 10, time.Time{}); ok {
		t.Fatalf("expected request without action to be ignored")
	}
}

func TestRequestConfirms(t *testing.T) {
	if !deleteAccount.Confirms("DELETE MY ACCOUNT") {
		t.Fatalf("expected exact phrase to confirm")
	}
	if deleteAccount.Confirms("delete my account") {
		t.Fatalf("expected phrase match to be case sensitive")
	}
	if (Request{Action: ActionDeleteAccount}).Confirms("") {
		t.Fatalf("expected empty phrase to never confirm")
	}
}

func TestManagerSweepExpired(t *testing.T) {
	manager := NewManager(nil)
	start := time.Date(2026, 1, 23, 12, 0, 0, 0, time.UTC)

	manager.Start(1, 10, deleteAccount, start, time.Minute)
	manager.Start(2, 20, deleteAccount, start, 10*time.Minute)
	manager.SweepExpired(start.Add(2 * time.Minute))

	manager.mu.Lock()
	defer manager.mu.Unlock()
	if _, ok := manager.pending[1]; ok {
		t.Fatalf("expected expired entry to be swept")
	}
	if _, ok := manager.pending[2]; !ok {
		t.Fatalf("expected live entry to remain")
	}
}

func TestNilManagerIsSafe(t *testing.T) {
	var manager *Manager
	manager.Start(1, 10, deleteAccount, time.Time{}, time.Minute)
	if _, ok := manager.Consume(1, 10, time.Time{}); ok {
		t.Fatalf("expected nil manager to never confirm")
	}
	manager.SweepExpired(time.Time{})
}
