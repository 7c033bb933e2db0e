package recovery

import (
	"fmt"
	"log/slog"
	"time"
)

// FollowUpScheduler re-arms a conversation's deferred follow-up.
type FollowUpScheduler func(userID string, version int64, delay time.Duration) (string, error)

// TimerRecoveryHandler adapts a FollowUpScheduler to the registry callback.
func TimerRecoveryHandler(schedule FollowUpScheduler) func(TimerRecoveryInfo) (string, error) {
	return func(info TimerRecoveryInfo) (string, error) {
		if schedule == nil {
			return "", fmt.Errorf("no follow-up scheduler provided")
		}
		delay := info.Remaining
		if delay < 0 {
			delay = 0
		}
		slog.Info("Recovering timer", "userID", info.UserID, "stage", info.Stage, "version", info.Version, "delay", delay)

		id, err := schedule(info.UserID, info.Version, delay)
		if err != nil {
			return "", fmt.Errorf("failed to schedule recovery timer: %w", err)
		}
		return id, nil
	}
}
