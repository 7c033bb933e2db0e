// Package store provides storage backends for EnrollBot.
//
// It persists conversation states, the metrics counters and delivery receipts
// in memory, SQLite or PostgreSQL.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// ErrDSNNotSet is returned when a database-backed store is created without a DSN.
var ErrDSNNotSet = errors.New("database DSN not set")

// Store is the persistence contract shared by all backends.
// Get methods return (nil, nil) when the record is absent.
type Store interface {
	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)

	SaveConversation(ctx context.Context, state models.ConversationState) error
	GetConversation(ctx context.Context, userID string) (*models.ConversationState, error)
	DeleteConversation(ctx context.Context, userID string) error
	ListConversations(ctx context.Context) ([]models.ConversationState, error)
	// DeleteConversationsBefore removes states not updated since cutoff and returns how many were removed.
	DeleteConversationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	LoadMetrics(ctx context.Context) (*models.MetricsCounters, error)
	SaveMetrics(ctx context.Context, m models.MetricsCounters) error

	Close() error
}

// Opts holds configuration for database-backed stores.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DSN types recognized by DetectDSNType.
const (
	DSNTypeSQLite   = "sqlite3"
	DSNTypePostgres = "postgres"
)

// DetectDSNType reports whether dsn addresses PostgreSQL (URL or key=value form)
// or a SQLite file.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	lower := strings.ToLower(d)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DSNTypePostgres
	}
	if strings.Contains(d, "host=") || strings.Contains(d, "dbname=") || strings.Contains(d, "user=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// Open creates the backend matching the DSN. An empty DSN yields an in-memory store.
func Open(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(dsn) == DSNTypePostgres {
		return NewPostgresStore(WithPostgresDSN(dsn))
	}
	return NewSQLiteStore(WithSQLiteDSN(dsn))
}

// New applies opts and opens the matching backend.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return Open(cfg.DSN)
}
