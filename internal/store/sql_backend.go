package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/jmoiron/sqlx"
)

// sqlBackend holds the queries shared by the SQLite and PostgreSQL stores.
// Queries are written with '?' placeholders and rebound per driver.
type sqlBackend struct {
	db   *sqlx.DB
	name string
}

const conversationColumns = `user_id, stage, program_name, edition, is_student, category, version, updated_at`

func (s *sqlBackend) q(query string) string {
	return s.db.Rebind(query)
}

func (s *sqlBackend) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(s.q(`INSERT INTO receipts (recipient, status, time) VALUES (?, ?, ?)`), r.To, r.Status, r.Time)
	if err != nil {
		slog.Error(s.name+" AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	slog.Debug(s.name+" AddReceipt succeeded", "to", r.To, "status", r.Status)
	return nil
}

func (s *sqlBackend) GetReceipts() ([]models.Receipt, error) {
	var receipts []models.Receipt
	if err := s.db.Select(&receipts, `SELECT recipient, status, time FROM receipts ORDER BY id`); err != nil {
		slog.Error(s.name+" GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	slog.Debug(s.name+" GetReceipts succeeded", "count", len(receipts))
	return receipts, nil
}

// SaveConversation stores or updates the state of a conversation.
func (s *sqlBackend) SaveConversation(ctx context.Context, state models.ConversationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	state.UpdatedAt = state.UpdatedAt.UTC()
	query := s.q(`
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			stage = excluded.stage,
			program_name = excluded.program_name,
			edition = excluded.edition,
			is_student = excluded.is_student,
			category = excluded.category,
			version = excluded.version,
			updated_at = excluded.updated_at`)
	_, err := s.db.ExecContext(ctx, query, state.UserID, state.Stage, state.ProgramName, state.Edition,
		state.IsStudent, state.Category, state.Version, state.UpdatedAt)
	if err != nil {
		slog.Error(s.name+" SaveConversation failed", "error", err, "userID", state.UserID, "stage", state.Stage)
		return fmt.Errorf("failed to save conversation %s: %w", state.UserID, err)
	}
	slog.Debug(s.name+" SaveConversation succeeded", "userID", state.UserID, "stage", state.Stage, "version", state.Version)
	return nil
}

// GetConversation returns the stored state, or nil when the user has no active conversation.
func (s *sqlBackend) GetConversation(ctx context.Context, userID string) (*models.ConversationState, error) {
	var state models.ConversationState
	err := s.db.GetContext(ctx, &state, s.q(`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug(s.name+" GetConversation not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+" GetConversation failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get conversation %s: %w", userID, err)
	}
	return &state, nil
}

func (s *sqlBackend) DeleteConversation(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM conversations WHERE user_id = ?`), userID); err != nil {
		slog.Error(s.name+" DeleteConversation failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete conversation %s: %w", userID, err)
	}
	slog.Debug(s.name+" DeleteConversation succeeded", "userID", userID)
	return nil
}

func (s *sqlBackend) ListConversations(ctx context.Context) ([]models.ConversationState, error) {
	states := []models.ConversationState{}
	if err := s.db.SelectContext(ctx, &states, `SELECT `+conversationColumns+` FROM conversations ORDER BY user_id`); err != nil {
		slog.Error(s.name+" ListConversations failed", "error", err)
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return states, nil
}

func (s *sqlBackend) DeleteConversationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM conversations WHERE updated_at < ?`), cutoff.UTC())
	if err != nil {
		slog.Error(s.name+" DeleteConversationsBefore failed", "error", err, "cutoff", cutoff)
		return 0, fmt.Errorf("failed to delete idle conversations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted conversations: %w", err)
	}
	slog.Debug(s.name+" DeleteConversationsBefore succeeded", "cutoff", cutoff, "deleted", n)
	return n, nil
}

// LoadMetrics returns the persisted counters, or nil when none were saved yet.
func (s *sqlBackend) LoadMetrics(ctx context.Context) (*models.MetricsCounters, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM metrics WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+" LoadMetrics failed", "error", err)
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}
	var m models.MetricsCounters
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		slog.Error(s.name+" LoadMetrics JSON unmarshal failed", "error", err)
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	return &m, nil
}

func (s *sqlBackend) SaveMetrics(ctx context.Context, m models.MetricsCounters) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	query := s.q(`
		INSERT INTO metrics (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, string(payload), time.Now().UTC()); err != nil {
		slog.Error(s.name+" SaveMetrics failed", "error", err)
		return fmt.Errorf("failed to save metrics: %w", err)
	}
	slog.Debug(s.name+" SaveMetrics succeeded", "received", m.TotalReceived, "responded", m.TotalResponded)
	return nil
}

// Close closes the database connection.
func (s *sqlBackend) Close() error {
	slog.Debug("Closing " + s.name + " database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close "+s.name+" database", "error", err)
	}
	return err
}
