package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/recovery"
)

// SalesFlowRecovery re-arms web-payment follow-ups for conversations that
// were awaiting confirmation when the process stopped. Reminders already due
// fire right away.
type SalesFlowRecovery struct {
	delay time.Duration
	clock Clock
}

// NewSalesFlowRecovery creates the recovery handler for the sales flow.
func NewSalesFlowRecovery(delay time.Duration, clock Clock) *SalesFlowRecovery {
	if delay <= 0 {
		delay = DefaultFollowUpDelay
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SalesFlowRecovery{delay: delay, clock: clock}
}

// RecoverState implements recovery.Recoverable.
func (r *SalesFlowRecovery) RecoverState(ctx context.Context, registry *recovery.RecoveryRegistry) error {
	slog.Info("Starting sales flow recovery")

	states, err := registry.GetStore().ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	recovered, failed := 0, 0
	now := r.clock.Now()
	for _, s := range states {
		if s.Stage != models.StageAwaitingWebConfirmation {
			continue
		}
		info := recovery.TimerRecoveryInfo{
			UserID:    s.UserID,
			Stage:     s.Stage,
			Version:   s.Version,
			Remaining: r.delay - now.Sub(s.UpdatedAt),
		}
		if _, err := registry.RecoverTimer(info); err != nil {
			slog.Error("Failed to recover follow-up", "error", err, "userID", s.UserID)
			failed++
			continue
		}
		recovered++
	}

	slog.Info("Sales flow recovery completed", "recovered", recovered, "errors", failed, "total", len(states))
	if failed > 0 {
		return fmt.Errorf("failed to recover %d follow-ups", failed)
	}
	return nil
}
