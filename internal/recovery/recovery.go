// Package recovery restores in-process work lost on restart. Components
// register as Recoverable and are replayed once at startup, after the store
// is open and before inbound messages are consumed.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/store"
)

// Recoverable defines the interface for components that can recover their state
type Recoverable interface {
	// RecoverState is called during application startup to restore component state
	RecoverState(ctx context.Context, registry *RecoveryRegistry) error
}

// TimerRecoveryInfo describes a deferred action to re-arm.
type TimerRecoveryInfo struct {
	UserID    string
	Stage     models.Stage
	Version   int64
	Remaining time.Duration
}

// RecoveryRegistry provides services that components can use during recovery
type RecoveryRegistry struct {
	store             store.Store
	timerRecoveryFunc func(TimerRecoveryInfo) (string, error)
}

// NewRecoveryRegistry creates a new recovery registry
func NewRecoveryRegistry(st store.Store) *RecoveryRegistry {
	return &RecoveryRegistry{store: st}
}

// RegisterTimerRecovery registers a callback for timer recovery
func (r *RecoveryRegistry) RegisterTimerRecovery(fn func(TimerRecoveryInfo) (string, error)) {
	r.timerRecoveryFunc = fn
}

// RecoverTimer requests recovery of a timer
func (r *RecoveryRegistry) RecoverTimer(info TimerRecoveryInfo) (string, error) {
	if r.timerRecoveryFunc == nil {
		return "", fmt.Errorf("no timer recovery handler registered")
	}
	return r.timerRecoveryFunc(info)
}

// GetStore provides access to the store for recovery operations
func (r *RecoveryRegistry) GetStore() store.Store {
	return r.store
}

// RecoveryManager orchestrates recovery of all registered components
type RecoveryManager struct {
	registry     *RecoveryRegistry
	recoverables []Recoverable
}

// NewRecoveryManager creates a new recovery manager
func NewRecoveryManager(st store.Store) *RecoveryManager {
	return &RecoveryManager{registry: NewRecoveryRegistry(st)}
}

// RegisterRecoverable adds a component that can be recovered
func (rm *RecoveryManager) RegisterRecoverable(r Recoverable) {
	rm.recoverables = append(rm.recoverables, r)
}

// RegisterTimerRecovery registers the timer recovery infrastructure
func (rm *RecoveryManager) RegisterTimerRecovery(fn func(TimerRecoveryInfo) (string, error)) {
	rm.registry.RegisterTimerRecovery(fn)
}

// RecoverAll performs recovery of all registered components. A failing
// component does not stop the others.
func (rm *RecoveryManager) RecoverAll(ctx context.Context) error {
	slog.Info("Starting application recovery", "components", len(rm.recoverables))

	errorCount := 0
	for _, recoverable := range rm.recoverables {
		if err := recoverable.RecoverState(ctx, rm.registry); err != nil {
			slog.Error("Component recovery failed", "error", err, "component", fmt.Sprintf("%T", recoverable))
			errorCount++
		}
	}

	slog.Info("Application recovery completed", "recovered", len(rm.recoverables)-errorCount, "errors", errorCount)
	if errorCount > 0 {
		return fmt.Errorf("recovery completed with %d errors out of %d components", errorCount, len(rm.recoverables))
	}
	return nil
}

// GetRegistry provides access to the recovery registry for infrastructure setup
func (rm *RecoveryManager) GetRegistry() *RecoveryRegistry {
	return rm.registry
}
