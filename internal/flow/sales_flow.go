// Package flow implements the per-conversation sales state machine: it turns
// an inbound text and the customer's current stage into an ordered bundle of
// outbound messages, the next stage and any deferred follow-up.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/catalog"
	"github.com/BTreeMap/EnrollBot/internal/compose"
	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/stats"
	"github.com/BTreeMap/EnrollBot/internal/util"
)

// Defaults for SalesFlow options.
const (
	DefaultFollowUpDelay = 3 * time.Minute
)

// Errors returned by HandleMessage. Both leave the conversation state untouched.
var (
	ErrSendFailed         = errors.New("send failed")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Bank-transfer keywords accepted at the payment menu besides "2".
var transferKeywords = []string{"bcp", "deposito", "transferencia", "banco"}

// MessagingService is the outbound side of a channel.
type MessagingService interface {
	SendMessage(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to string, media models.MediaRef) error
}

// MetricsRecorder receives received/responded events.
type MetricsRecorder interface {
	Record(ctx context.Context, kind models.EventKind, keyword, program string) error
}

// Dependencies holds the collaborators injected into SalesFlow.
type Dependencies struct {
	Catalog      catalog.Store
	Synonyms     catalog.SynonymStore
	Content      catalog.ContentStore
	Composer     *compose.Composer
	StateManager StateManager
	Sender       MessagingService
	Metrics      MetricsRecorder
	Timer        Timer
}

// Opts holds tunables for SalesFlow.
type Opts struct {
	FollowUpDelay      time.Duration
	MaxScheduleOptions int
	TriggerPhrases     []string
	BusinessHours      BusinessHours
	Clock              Clock
}

// Option configures SalesFlow.
type Option func(*Opts)

// WithFollowUpDelay sets the delay before the web-payment follow-up.
func WithFollowUpDelay(d time.Duration) Option {
	return func(o *Opts) { o.FollowUpDelay = d }
}

// WithMaxScheduleOptions caps the cohorts listed in the schedule block.
func WithMaxScheduleOptions(n int) Option {
	return func(o *Opts) { o.MaxScheduleOptions = n }
}

// WithTriggerPhrases requires one of the phrases before a new conversation is matched.
func WithTriggerPhrases(phrases []string) Option {
	return func(o *Opts) { o.TriggerPhrases = phrases }
}

// WithBusinessHours sets the advisor availability window.
func WithBusinessHours(b BusinessHours) Option {
	return func(o *Opts) { o.BusinessHours = b }
}

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(o *Opts) { o.Clock = c }
}

// SalesFlow dispatches inbound messages through the conversation stages.
type SalesFlow struct {
	deps     Dependencies
	opts     Opts
	triggers []string
	locks    *keyedMutex
}

// NewSalesFlow creates a SalesFlow.
func NewSalesFlow(deps Dependencies, opts ...Option) *SalesFlow {
	cfg := Opts{
		FollowUpDelay:      DefaultFollowUpDelay,
		MaxScheduleOptions: catalog.DefaultMaxScheduleOptions,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.FollowUpDelay <= 0 {
		cfg.FollowUpDelay = DefaultFollowUpDelay
	}
	if cfg.MaxScheduleOptions <= 0 {
		cfg.MaxScheduleOptions = catalog.DefaultMaxScheduleOptions
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.BusinessHours.Location == nil {
		cfg.BusinessHours = DefaultBusinessHours(LoadLocation(DefaultTimezone))
	}
	if deps.Composer == nil {
		deps.Composer = compose.New(nil)
	}
	if deps.Content == nil {
		deps.Content = catalog.StaticContentStore{Content: catalog.DefaultContent()}
	}

	var triggers []string
	for _, p := range cfg.TriggerPhrases {
		if n := util.Normalize(p); n != "" {
			triggers = append(triggers, n)
		}
	}
	slog.Debug("Creating SalesFlow", "followUpDelay", cfg.FollowUpDelay, "triggers", len(triggers))
	return &SalesFlow{deps: deps, opts: cfg, triggers: triggers, locks: newKeyedMutex()}
}

// FollowUpDelay returns the configured web-payment reminder delay.
func (f *SalesFlow) FollowUpDelay() time.Duration {
	return f.opts.FollowUpDelay
}

// turn is the decision taken for one inbound message.
type turn struct {
	bundle   models.Bundle
	next     *models.ConversationState // nil with clear=false keeps the current state
	clear    bool
	keyword  string
	program  string
	followUp bool
}

// HandleInbound counts every inbound event and dispatches direct text messages.
// Group, broadcast, own, unroutable and non-text events are counted but never answered.
func (f *SalesFlow) HandleInbound(ctx context.Context, r models.Response) error {
	f.record(ctx, models.EventReceived, "", "")
	if !r.IsDirectText() {
		slog.Debug("SalesFlow HandleInbound ignoring non-direct message", "from", r.From, "group", r.IsGroup, "broadcast", r.IsBroadcast, "kind", r.Kind)
		return nil
	}
	return f.HandleMessage(ctx, r.From, r.Body)
}

// HandleMessage runs one conversation turn for userID. A send failure or a
// catalog read failure returns an error and leaves the state as it was.
func (f *SalesFlow) HandleMessage(ctx context.Context, userID, raw string) error {
	if strings.TrimSpace(userID) == "" {
		return models.ErrEmptyRecipient
	}
	text := util.Normalize(raw)

	unlock := f.locks.Lock(userID)
	defer unlock()

	state, err := f.deps.StateManager.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load state for %s: %w", userID, err)
	}

	var t turn
	if state == nil {
		t, err = f.handleNone(ctx, text)
	} else {
		slog.Debug("SalesFlow HandleMessage", "userID", userID, "stage", state.Stage, "text", text)
		switch state.Stage {
		case models.StageAwaitingProfile:
			t, err = f.handleProfile(ctx, *state, text)
		case models.StageAwaitingDecision:
			t = f.handleDecision(*state, text)
		case models.StageAwaitingPaymentMethod:
			t, err = f.handlePaymentMethod(ctx, *state, text)
		case models.StageAwaitingWebConfirmation:
			t, err = f.handleWebConfirmation(ctx, *state, text)
		default:
			slog.Warn("SalesFlow HandleMessage found unknown stage, resetting", "userID", userID, "stage", state.Stage)
			f.deps.StateManager.Clear(ctx, userID)
			return nil
		}
	}
	if err != nil {
		slog.Error("SalesFlow HandleMessage failed", "userID", userID, "error", err)
		return err
	}
	if len(t.bundle) == 0 {
		return nil
	}
	return f.commit(ctx, userID, state, t)
}

func (f *SalesFlow) commit(ctx context.Context, userID string, prev *models.ConversationState, t turn) error {
	if err := f.sendBundle(ctx, userID, t.bundle); err != nil {
		slog.Error("SalesFlow bundle delivery failed, state unchanged", "userID", userID, "error", err)
		return err
	}

	switch {
	case t.clear:
		f.deps.StateManager.Clear(ctx, userID)
		slog.Info("SalesFlow conversation ended", "userID", userID, "from", stageOf(prev))
	case t.next != nil:
		t.next.UserID = userID
		stored := f.deps.StateManager.Put(ctx, *t.next)
		slog.Info("SalesFlow transition", "userID", userID, "from", stageOf(prev), "to", stored.Stage)
		if t.followUp {
			f.ScheduleFollowUp(userID, stored.Version, f.opts.FollowUpDelay)
		}
	}

	f.record(ctx, models.EventResponded, t.keyword, t.program)
	return nil
}

func stageOf(s *models.ConversationState) models.Stage {
	if s == nil {
		return models.StageNone
	}
	return s.Stage
}

// sendBundle delivers messages in order and stops at the first failure.
func (f *SalesFlow) sendBundle(ctx context.Context, userID string, bundle models.Bundle) error {
	for i, msg := range bundle {
		var err error
		if msg.IsMedia() {
			err = f.deps.Sender.SendMedia(ctx, userID, *msg.Media)
		} else {
			err = f.deps.Sender.SendMessage(ctx, userID, msg.Text)
		}
		if err != nil {
			return fmt.Errorf("%w: message %d of %d: %v", ErrSendFailed, i+1, len(bundle), err)
		}
	}
	return nil
}

func (f *SalesFlow) record(ctx context.Context, kind models.EventKind, keyword, program string) {
	if f.deps.Metrics == nil {
		return
	}
	if err := f.deps.Metrics.Record(ctx, kind, keyword, program); err != nil {
		slog.Error("SalesFlow metrics record failed", "kind", kind, "error", err)
	}
}

func (f *SalesFlow) content(ctx context.Context) models.Content {
	c, err := f.deps.Content.Read(ctx)
	if err != nil {
		slog.Warn("SalesFlow content unavailable, using defaults", "error", err)
	}
	return c
}

func (f *SalesFlow) lookup(ctx context.Context, state models.ConversationState) (models.ProgramEntry, bool, error) {
	entry, ok, err := f.deps.Catalog.ReadOne(ctx, state.ProgramName, state.Edition)
	if err != nil {
		return models.ProgramEntry{}, false, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if !ok {
		slog.Warn("SalesFlow stale program reference", "userID", state.UserID, "program", state.ProgramName, "edition", state.Edition)
	}
	return entry, ok, nil
}

func (f *SalesFlow) handleNone(ctx context.Context, text string) (turn, error) {
	if text == "" {
		return turn{}, nil
	}
	if len(f.triggers) > 0 && !util.ContainsAny(text, f.triggers...) {
		return turn{}, nil
	}

	entries, err := f.deps.Catalog.ReadAll(ctx)
	if err != nil {
		return turn{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	synonyms, err := f.deps.Synonyms.ReadAll(ctx)
	if err != nil {
		return turn{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	entry, ok := catalog.Match(text, entries, synonyms)
	if !ok {
		slog.Debug("SalesFlow no program matched", "text", text)
		return turn{}, nil
	}

	today := f.opts.Clock.Now().In(f.opts.BusinessHours.Location)
	options := catalog.ResolveUpcoming(entry.ProgramName, entries, today, f.opts.MaxScheduleOptions)
	schedule := catalog.FormatSchedule(entry.ProgramName, options)

	return turn{
		bundle: f.deps.Composer.Info(entry, f.content(ctx), schedule),
		next: &models.ConversationState{
			Stage:       models.StageAwaitingProfile,
			ProgramName: entry.ProgramName,
			Edition:     entry.Edition,
			Category:    string(entry.Category()),
		},
		keyword: stats.FirstKeyword(text),
		program: entry.ProgramName,
	}, nil
}

// profileOption parses an exact menu choice between 1 and 5.
func profileOption(text string) (int, bool) {
	if len(text) != 1 || text[0] < '1' || text[0] > '5' {
		return 0, false
	}
	return int(text[0] - '0'), true
}

func (f *SalesFlow) handleProfile(ctx context.Context, state models.ConversationState, text string) (turn, error) {
	option, ok := profileOption(text)
	if !ok {
		return f.reprompt(state.Stage), nil
	}
	entry, found, err := f.lookup(ctx, state)
	if err != nil {
		return turn{}, err
	}
	if !found {
		return turn{bundle: f.deps.Composer.StaleReference(), clear: true}, nil
	}

	student := option == 3 || option == 4
	next := state
	next.Stage = models.StageAwaitingDecision
	next.ProgramName = entry.ProgramName
	next.Edition = entry.Edition
	next.IsStudent = student
	next.Category = string(entry.Category())
	return turn{
		bundle: f.deps.Composer.ProfileAnswer(entry, option, student, f.content(ctx)),
		next:   &next,
	}, nil
}

func (f *SalesFlow) handleDecision(state models.ConversationState, text string) turn {
	switch text {
	case "1", "2":
		next := state
		next.Stage = models.StageAwaitingPaymentMethod
		return turn{bundle: f.deps.Composer.PaymentMenu(), next: &next}
	case "3", "4":
		return turn{bundle: f.handoff(), clear: true}
	}
	return f.reprompt(state.Stage)
}

func (f *SalesFlow) handlePaymentMethod(ctx context.Context, state models.ConversationState, text string) (turn, error) {
	category := categoryOf(state)
	switch {
	case strings.Contains(text, "1") || strings.Contains(text, "yape"):
		return turn{bundle: f.deps.Composer.Yape(category, state.IsStudent), clear: true}, nil
	case strings.Contains(text, "2") || util.ContainsAny(text, transferKeywords...):
		return turn{bundle: f.deps.Composer.Transfer(category, state.IsStudent), clear: true}, nil
	case strings.Contains(text, "3") || strings.Contains(text, "web"):
		entry, found, err := f.lookup(ctx, state)
		if err != nil {
			return turn{}, err
		}
		if !found {
			return turn{bundle: f.deps.Composer.StaleReference(), clear: true}, nil
		}
		if strings.TrimSpace(entry.PaymentLink) == "" {
			return turn{bundle: f.deps.Composer.WebUnavailable(), clear: true}, nil
		}
		next := state
		next.Stage = models.StageAwaitingWebConfirmation
		return turn{bundle: f.deps.Composer.Web(entry.PaymentLink), next: &next, followUp: true}, nil
	}
	return f.reprompt(state.Stage), nil
}

func (f *SalesFlow) handleWebConfirmation(ctx context.Context, state models.ConversationState, text string) (turn, error) {
	switch text {
	case "1":
		return turn{bundle: f.deps.Composer.RegistrationConfirmed(f.content(ctx)), clear: true}, nil
	case "2":
		return turn{bundle: f.handoff(), clear: true}, nil
	}
	return f.reprompt(state.Stage), nil
}

func (f *SalesFlow) handoff() models.Bundle {
	return f.deps.Composer.Handoff(f.opts.BusinessHours.IsOpen(f.opts.Clock.Now()))
}

func (f *SalesFlow) reprompt(stage models.Stage) turn {
	return turn{bundle: f.deps.Composer.Reprompt(stage)}
}

func categoryOf(state models.ConversationState) models.Category {
	if state.Category == "" {
		return models.CategoryCourse
	}
	return models.Category(state.Category)
}

// ScheduleFollowUp arms the web-payment reminder for userID. It fires only if
// the conversation is still awaiting web confirmation at the same version.
func (f *SalesFlow) ScheduleFollowUp(userID string, version int64, delay time.Duration) (string, error) {
	if f.deps.Timer == nil {
		return "", fmt.Errorf("no timer configured")
	}
	id, err := f.deps.Timer.ScheduleAfter(delay, func() {
		f.fireFollowUp(context.Background(), userID, version)
	})
	if err != nil {
		slog.Error("SalesFlow failed to schedule follow-up", "userID", userID, "error", err)
		return "", err
	}
	slog.Debug("SalesFlow follow-up scheduled", "userID", userID, "version", version, "delay", delay, "timerID", id)
	return id, nil
}

func (f *SalesFlow) fireFollowUp(ctx context.Context, userID string, version int64) {
	unlock := f.locks.Lock(userID)
	defer unlock()

	state, err := f.deps.StateManager.Get(ctx, userID)
	if err != nil {
		slog.Error("SalesFlow follow-up state lookup failed", "userID", userID, "error", err)
		return
	}
	if state == nil || state.Stage != models.StageAwaitingWebConfirmation || state.Version != version {
		slog.Debug("SalesFlow follow-up skipped, conversation moved on", "userID", userID, "expectedVersion", version)
		return
	}
	if err := f.sendBundle(ctx, userID, f.deps.Composer.WebFollowUp()); err != nil {
		slog.Error("SalesFlow follow-up delivery failed", "userID", userID, "error", err)
		return
	}
	slog.Info("SalesFlow follow-up sent", "userID", userID)
}
