package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/store"
)

// StateManager owns the per-user conversation records.
type StateManager interface {
	// Get returns the active state, or nil when the user has no conversation.
	Get(ctx context.Context, userID string) (*models.ConversationState, error)
	// Put stores state with a fresh version and timestamp and returns what was stored.
	Put(ctx context.Context, state models.ConversationState) models.ConversationState
	// Clear ends the user's conversation.
	Clear(ctx context.Context, userID string)
	// List returns every active conversation.
	List(ctx context.Context) ([]models.ConversationState, error)
	// SweepIdle ends conversations not updated since cutoff.
	SweepIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// StoreBasedStateManager caches states in memory in front of a Store. The
// cache is authoritative between persists: a failed write is logged and the
// cached value is kept so the conversation can continue.
type StoreBasedStateManager struct {
	store store.Store
	clock Clock

	mu       sync.RWMutex
	cache    map[string]models.ConversationState
	versions map[string]int64
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store, clock Clock) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	if clock == nil {
		clock = SystemClock{}
	}
	return &StoreBasedStateManager{
		store:    st,
		clock:    clock,
		cache:    make(map[string]models.ConversationState),
		versions: make(map[string]int64),
	}
}

// Get implements StateManager.
func (sm *StoreBasedStateManager) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	sm.mu.RLock()
	cached, ok := sm.cache[userID]
	sm.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	state, err := sm.store.GetConversation(ctx, userID)
	if err != nil {
		slog.Error("StateManager Get failed", "error", err, "userID", userID)
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	if !state.Stage.IsValid() {
		slog.Warn("StateManager Get found invalid stage, discarding", "userID", userID, "stage", state.Stage)
		sm.Clear(ctx, userID)
		return nil, nil
	}

	sm.mu.Lock()
	sm.cache[userID] = *state
	if state.Version > sm.versions[userID] {
		sm.versions[userID] = state.Version
	}
	sm.mu.Unlock()
	return state, nil
}

// Put implements StateManager. Versions never repeat for a user within a
// process, even across Clear, so stale deferred actions cannot match a new
// conversation.
func (sm *StoreBasedStateManager) Put(ctx context.Context, state models.ConversationState) models.ConversationState {
	sm.mu.Lock()
	next := sm.versions[state.UserID]
	if state.Version > next {
		next = state.Version
	}
	next++
	state.Version = next
	state.UpdatedAt = sm.clock.Now()
	sm.versions[state.UserID] = next
	sm.cache[state.UserID] = state
	sm.mu.Unlock()

	if err := sm.store.SaveConversation(ctx, state); err != nil {
		slog.Error("StateManager Put persistence failed, keeping in-memory state", "error", err, "userID", state.UserID, "stage", state.Stage)
	} else {
		slog.Debug("StateManager Put succeeded", "userID", state.UserID, "stage", state.Stage, "version", state.Version)
	}
	return state
}

// Clear implements StateManager.
func (sm *StoreBasedStateManager) Clear(ctx context.Context, userID string) {
	sm.mu.Lock()
	delete(sm.cache, userID)
	sm.mu.Unlock()

	if err := sm.store.DeleteConversation(ctx, userID); err != nil {
		slog.Error("StateManager Clear persistence failed", "error", err, "userID", userID)
		return
	}
	slog.Debug("StateManager Clear succeeded", "userID", userID)
}

// List implements StateManager. Cached values win over stored ones.
func (sm *StoreBasedStateManager) List(ctx context.Context) ([]models.ConversationState, error) {
	stored, err := sm.store.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	seen := make(map[string]bool, len(stored))
	out := make([]models.ConversationState, 0, len(stored)+len(sm.cache))
	for _, s := range stored {
		if c, ok := sm.cache[s.UserID]; ok {
			s = c
		}
		seen[s.UserID] = true
		out = append(out, s)
	}
	for id, c := range sm.cache {
		if !seen[id] {
			out = append(out, c)
		}
	}
	return out, nil
}

// SweepIdle implements StateManager.
func (sm *StoreBasedStateManager) SweepIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	sm.mu.Lock()
	for id, c := range sm.cache {
		if c.UpdatedAt.Before(cutoff) {
			delete(sm.cache, id)
		}
	}
	sm.mu.Unlock()

	n, err := sm.store.DeleteConversationsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("StateManager SweepIdle failed", "error", err, "cutoff", cutoff)
		return 0, err
	}
	if n > 0 {
		slog.Info("StateManager SweepIdle removed idle conversations", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
