package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/store"
)

// Mock recoverable for testing
type mockRecoverable struct {
	recoverError  error
	recoverCalled bool
}

func (m *mockRecoverable) RecoverState(ctx context.Context, registry *RecoveryRegistry) error {
	m.recoverCalled = true
	return m.recoverError
}

func TestRecoveryRegistryTimerCallback(t *testing.T) {
	registry := NewRecoveryRegistry(store.NewInMemoryStore())
	if registry.GetStore() == nil {
		t.Fatal("expected registry to expose the store")
	}

	if _, err := registry.RecoverTimer(TimerRecoveryInfo{UserID: "51999"}); err == nil {
		t.Error("expected error without a registered timer recovery handler")
	}

	var got TimerRecoveryInfo
	registry.RegisterTimerRecovery(func(info TimerRecoveryInfo) (string, error) {
		got = info
		return "timer_1", nil
	})
	id, err := registry.RecoverTimer(TimerRecoveryInfo{UserID: "51999", Version: 4})
	if err != nil || id != "timer_1" {
		t.Fatalf("unexpected result %q (%v)", id, err)
	}
	if got.UserID != "51999" || got.Version != 4 {
		t.Errorf("callback received %+v", got)
	}
}

func TestRecoveryManagerRecoverAll(t *testing.T) {
	rm := NewRecoveryManager(store.NewInMemoryStore())
	ok := &mockRecoverable{}
	failing := &mockRecoverable{recoverError: errors.New("boom")}
	after := &mockRecoverable{}
	rm.RegisterRecoverable(ok)
	rm.RegisterRecoverable(failing)
	rm.RegisterRecoverable(after)

	if err := rm.RecoverAll(context.Background()); err == nil {
		t.Error("expected aggregated error from failing component")
	}
	if !ok.recoverCalled || !failing.recoverCalled || !after.recoverCalled {
		t.Error("expected every component to be recovered despite failures")
	}

	rm = NewRecoveryManager(store.NewInMemoryStore())
	rm.RegisterRecoverable(&mockRecoverable{})
	if err := rm.RecoverAll(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTimerRecoveryHandler(t *testing.T) {
	var gotDelay time.Duration
	handler := TimerRecoveryHandler(func(userID string, version int64, delay time.Duration) (string, error) {
		gotDelay = delay
		return "timer_x", nil
	})

	id, err := handler(TimerRecoveryInfo{UserID: "51999", Version: 2, Remaining: 90 * time.Second})
	if err != nil || id != "timer_x" || gotDelay != 90*time.Second {
		t.Errorf("unexpected result id=%q delay=%v err=%v", id, gotDelay, err)
	}

	if _, err := handler(TimerRecoveryInfo{UserID: "51999", Remaining: -time.Minute}); err != nil || gotDelay != 0 {
		t.Errorf("expected overdue timers to fire immediately, got delay=%v err=%v", gotDelay, err)
	}

	failing := TimerRecoveryHandler(func(string, int64, time.Duration) (string, error) {
		return "", errors.New("timer down")
	})
	if _, err := failing(TimerRecoveryInfo{UserID: "51999"}); err == nil {
		t.Error("expected scheduling error to propagate")
	}
	if _, err := TimerRecoveryHandler(nil)(TimerRecoveryInfo{}); err == nil {
		t.Error("expected error for nil scheduler")
	}
}
