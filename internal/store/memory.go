package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// InMemoryStore keeps everything in process memory.
type InMemoryStore struct {
	mu            sync.RWMutex
	receipts      []models.Receipt
	conversations map[string]models.ConversationState
	metrics       *models.MetricsCounters
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]models.ConversationState)}
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out, nil
}

func (s *InMemoryStore) SaveConversation(ctx context.Context, state models.ConversationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[state.UserID] = state
	return nil
}

func (s *InMemoryStore) GetConversation(ctx context.Context, userID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.conversations[userID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) DeleteConversation(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, userID)
	return nil
}

func (s *InMemoryStore) ListConversations(ctx context.Context) ([]models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConversationState, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *InMemoryStore) DeleteConversationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.conversations {
		if c.UpdatedAt.Before(cutoff) {
			delete(s.conversations, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) LoadMetrics(ctx context.Context) (*models.MetricsCounters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.metrics == nil {
		return nil, nil
	}
	m := s.metrics.Clone()
	return &m, nil
}

func (s *InMemoryStore) SaveMetrics(ctx context.Context, m models.MetricsCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := m.Clone()
	s.metrics = &c
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
