// Package stats keeps the conversation counters shown on the dashboard and
// persists them after every change.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// MetricsStore is the persistence subset the recorder needs.
type MetricsStore interface {
	LoadMetrics(ctx context.Context) (*models.MetricsCounters, error)
	SaveMetrics(ctx context.Context, m models.MetricsCounters) error
}

// Recorder accumulates metrics events. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	store    MetricsStore
	counters models.MetricsCounters
}

// NewRecorder loads the persisted counters. Missing or unreadable counters
// start from zero; the problem is logged, never fatal.
func NewRecorder(ctx context.Context, store MetricsStore) *Recorder {
	r := &Recorder{store: store, counters: models.NewMetricsCounters()}
	if store == nil {
		return r
	}
	loaded, err := store.LoadMetrics(ctx)
	switch {
	case err != nil:
		slog.Error("Recorder failed to load metrics, starting from defaults", "error", err)
	case loaded == nil:
		slog.Debug("Recorder found no saved metrics, starting from defaults")
	default:
		loaded.Normalize()
		r.counters = *loaded
		slog.Info("Recorder loaded metrics", "received", loaded.TotalReceived, "responded", loaded.TotalResponded)
	}
	return r
}

// Record applies one event. keyword counts only for responded events and only
// when it belongs to the tracked vocabulary; program counts as an inquiry for
// any event kind. Counters are persisted before returning.
func (r *Recorder) Record(ctx context.Context, kind models.EventKind, keyword, program string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case models.EventReceived:
		r.counters.TotalReceived++
	case models.EventResponded:
		r.counters.TotalResponded++
		if k := strings.ToLower(strings.TrimSpace(keyword)); k != "" {
			if _, tracked := r.counters.Keywords[k]; tracked {
				r.counters.Keywords[k]++
			}
		}
	default:
		return fmt.Errorf("unknown metrics event %q", kind)
	}
	if key := models.ProgramInquiryKey(program); key != "" {
		r.counters.ProgramInquiries[key]++
	}
	return r.persistLocked(ctx)
}

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() models.MetricsCounters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters.Clone()
}

// Reset zeroes every counter and persists the result.
func (r *Recorder) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = models.NewMetricsCounters()
	slog.Info("Recorder metrics reset")
	return r.persistLocked(ctx)
}

func (r *Recorder) persistLocked(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveMetrics(ctx, r.counters); err != nil {
		slog.Error("Recorder failed to persist metrics", "error", err)
		return fmt.Errorf("persist metrics: %w", err)
	}
	return nil
}

// FirstKeyword returns the highest-priority tracked keyword contained in the
// normalized text, or "".
func FirstKeyword(normalized string) string {
	for _, k := range models.TrackedKeywords {
		if strings.Contains(normalized, k) {
			return k
		}
	}
	return ""
}
