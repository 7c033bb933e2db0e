package flow

import (
	"testing"
	"time"
)

func TestSimpleTimerRuns(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	done := make(chan struct{})
	if _, err := timer.ScheduleAfter(10*time.Millisecond, func() { close(done) }); err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if n := len(timer.ListActive()); n != 0 {
		t.Errorf("expected no active timers after firing, got %d", n)
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{}, 1)
	id, err := timer.ScheduleAfter(50*time.Millisecond, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	if n := len(timer.ListActive()); n != 1 {
		t.Fatalf("expected 1 active timer, got %d", n)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := timer.Cancel("missing"); err != nil {
		t.Errorf("cancelling an unknown timer should be a no-op, got %v", err)
	}

	select {
	case <-fired:
		t.Error("cancelled timer fired")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSimpleTimerRejectsNilCallback(t *testing.T) {
	timer := NewSimpleTimer()
	if _, err := timer.ScheduleAfter(time.Second, nil); err == nil {
		t.Error("expected error for nil callback")
	}
}
