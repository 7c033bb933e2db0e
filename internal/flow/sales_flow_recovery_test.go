package flow

import (
	"context"
	"testing"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/recovery"
	"github.com/BTreeMap/EnrollBot/internal/store"
	"github.com/BTreeMap/EnrollBot/internal/testutil"
)

func TestSalesFlowRecoveryRearmsFollowUps(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	st := store.NewInMemoryStore()
	seed := []models.ConversationState{
		{UserID: "waiting", Stage: models.StageAwaitingWebConfirmation, Version: 4, UpdatedAt: now.Add(-time.Minute)},
		{UserID: "overdue", Stage: models.StageAwaitingWebConfirmation, Version: 2, UpdatedAt: now.Add(-time.Hour)},
		{UserID: "menu", Stage: models.StageAwaitingDecision, Version: 1, UpdatedAt: now},
	}
	for _, s := range seed {
		if err := st.SaveConversation(ctx, s); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	got := map[string]time.Duration{}
	versions := map[string]int64{}
	rm := recovery.NewRecoveryManager(st)
	rm.RegisterTimerRecovery(recovery.TimerRecoveryHandler(func(userID string, version int64, delay time.Duration) (string, error) {
		got[userID] = delay
		versions[userID] = version
		return "t-" + userID, nil
	}))
	rm.RegisterRecoverable(NewSalesFlowRecovery(3*time.Minute, testutil.NewFixedClock(now)))

	if err := rm.RecoverAll(ctx); err != nil {
		t.Fatalf("RecoverAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 re-armed follow-ups, got %v", got)
	}
	if got["waiting"] != 2*time.Minute {
		t.Errorf("expected remaining 2m, got %v", got["waiting"])
	}
	if got["overdue"] != 0 {
		t.Errorf("overdue follow-up should fire immediately, got %v", got["overdue"])
	}
	if versions["waiting"] != 4 {
		t.Errorf("expected version 4, got %d", versions["waiting"])
	}
}

func TestRecoveredFollowUpSkippedAfterAnswer(t *testing.T) {
	h := newHarness(t)
	h.say(t, "info marketing")
	h.say(t, "1")
	h.say(t, "1")
	h.say(t, "web")
	version := h.state(t).Version
	h.say(t, "1")

	if _, err := h.flow.ScheduleFollowUp(customer, version, 0); err != nil {
		t.Fatalf("ScheduleFollowUp failed: %v", err)
	}
	before := len(h.sender.Messages())
	if n := h.timer.FireAll(); n != 2 {
		t.Fatalf("expected 2 timers to run, got %d", n)
	}
	if got := len(h.sender.Messages()); got != before {
		t.Errorf("no reminder expected once the customer answered, got %d new messages", got-before)
	}
}
