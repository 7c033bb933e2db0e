// Package models defines state management structures for EnrollBot conversations.
package models

import "time"

// Stage is a named state of the sales conversation.
type Stage string

// Stage constants. StageNone is never stored: an absent record means no active conversation.
const (
	StageNone                    Stage = ""
	StageAwaitingProfile         Stage = "AWAITING_PROFILE"
	StageAwaitingDecision        Stage = "AWAITING_DECISION"
	StageAwaitingPaymentMethod   Stage = "AWAITING_PAYMENT_METHOD"
	StageAwaitingWebConfirmation Stage = "AWAITING_WEB_CONFIRMATION"
)

// IsValid reports whether s is one of the stored stages.
func (s Stage) IsValid() bool {
	switch s {
	case StageAwaitingProfile, StageAwaitingDecision, StageAwaitingPaymentMethod, StageAwaitingWebConfirmation:
		return true
	default:
		return false
	}
}

// String returns the stage name, "NONE" for the absent stage.
func (s Stage) String() string {
	if s == StageNone {
		return "NONE"
	}
	return string(s)
}

// ConversationState is the per-customer record of an active conversation.
// It anchors catalog lookups by (ProgramName, Edition) and never caches the catalog row.
type ConversationState struct {
	UserID      string    `json:"user_id" db:"user_id"`
	Stage       Stage     `json:"stage" db:"stage"`
	ProgramName string    `json:"program_name" db:"program_name"`
	Edition     string    `json:"edition" db:"edition"`
	IsStudent   bool      `json:"is_student" db:"is_student"`
	Category    string    `json:"category" db:"category"`
	Version     int64     `json:"version" db:"version"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the invariants every stored record must satisfy.
func (c ConversationState) Validate() error {
	if c.UserID == "" {
		return ErrEmptyRecipient
	}
	if !c.Stage.IsValid() {
		return ErrInvalidStage
	}
	return nil
}

// TimerInfo describes a pending deferred action.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description"`
}
