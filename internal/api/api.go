// Package api wires EnrollBot's modules together and serves its HTTP surface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/catalog"
	"github.com/BTreeMap/EnrollBot/internal/compose"
	"github.com/BTreeMap/EnrollBot/internal/flow"
	"github.com/BTreeMap/EnrollBot/internal/lockfile"
	"github.com/BTreeMap/EnrollBot/internal/messaging"
	"github.com/BTreeMap/EnrollBot/internal/recovery"
	"github.com/BTreeMap/EnrollBot/internal/scheduler"
	"github.com/BTreeMap/EnrollBot/internal/stats"
	"github.com/BTreeMap/EnrollBot/internal/store"
	"github.com/BTreeMap/EnrollBot/internal/twiliowhatsapp"
	"github.com/BTreeMap/EnrollBot/internal/whatsapp"
)

// Transports accepted by WithTransport.
const (
	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
)

// Defaults for API options.
const (
	DefaultAddr      = ":8080"
	DefaultStateDir  = "/var/lib/enrollbot"
	DefaultTransport = TransportWhatsApp
)

// Opts holds runtime configuration for the bot process.
type Opts struct {
	Addr            string
	Transport       string
	StateDir        string
	CatalogPath     string
	SynonymsPath    string
	ContentPath     string
	MediaDir        string
	MediaBaseURL    string
	WebhookURL      string
	TwilioAuthToken string
	IdleTTL         time.Duration
	SweepSpec       string
	Location        *time.Location
}

// Option configures Run.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option { return func(o *Opts) { o.Addr = addr } }

// WithTransport selects "whatsapp" or "twilio".
func WithTransport(t string) Option { return func(o *Opts) { o.Transport = t } }

// WithStateDir sets the directory guarded by the single-instance lock.
func WithStateDir(dir string) Option { return func(o *Opts) { o.StateDir = dir } }

// WithCatalogFiles sets the catalog, synonym and content file paths.
func WithCatalogFiles(catalogPath, synonymsPath, contentPath string) Option {
	return func(o *Opts) {
		o.CatalogPath = catalogPath
		o.SynonymsPath = synonymsPath
		o.ContentPath = contentPath
	}
}

// WithMedia sets the media library directory and, for Twilio, its public base URL.
func WithMedia(dir, baseURL string) Option {
	return func(o *Opts) {
		o.MediaDir = dir
		o.MediaBaseURL = baseURL
	}
}

// WithTwilioWebhookValidation enables X-Twilio-Signature checks for webhookURL.
func WithTwilioWebhookValidation(authToken, webhookURL string) Option {
	return func(o *Opts) {
		o.TwilioAuthToken = authToken
		o.WebhookURL = webhookURL
	}
}

// WithIdleSweep sets the idle TTL and the cron expression of the sweep job.
func WithIdleSweep(ttl time.Duration, spec string) Option {
	return func(o *Opts) {
		o.IdleTTL = ttl
		o.SweepSpec = spec
	}
}

// WithLocation sets the regional timezone used by the sweep schedule.
func WithLocation(loc *time.Location) Option { return func(o *Opts) { o.Location = loc } }

func (o *Opts) applyDefaults() {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.Transport == "" {
		o.Transport = DefaultTransport
	}
	if o.StateDir == "" {
		o.StateDir = DefaultStateDir
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = scheduler.DefaultIdleTTL
	}
	if o.SweepSpec == "" {
		o.SweepSpec = scheduler.DefaultSweepSpec
	}
	if o.Location == nil {
		o.Location = flow.LoadLocation(flow.DefaultTimezone)
	}
}

// Run bootstraps every module and blocks until SIGINT or SIGTERM.
// Startup faults are returned; the caller exits non-zero.
func Run(waOpts []whatsapp.Option, twOpts []twiliowhatsapp.Option, storeOpts []store.Option, flowOpts []flow.Option, apiOpts ...Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	cfg.applyDefaults()
	if cfg.Transport != TransportWhatsApp && cfg.Transport != TransportTwilio {
		return fmt.Errorf("unknown transport %q (want %q or %q)", cfg.Transport, TransportWhatsApp, TransportTwilio)
	}
	slog.Debug("API Run configuration", "addr", cfg.Addr, "transport", cfg.Transport, "state_dir", cfg.StateDir, "catalog", cfg.CatalogPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.AcquireLock(cfg.StateDir, cfg.Transport)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	catalogStore := catalog.NewFileStore(cfg.CatalogPath)
	synonymStore := catalog.NewSynonymFileStore(cfg.SynonymsPath)
	if err := checkCatalog(ctx, catalogStore, synonymStore); err != nil {
		return err
	}
	assets := compose.NewDirAssets(cfg.MediaDir)

	svc, webhook, err := buildMessaging(cfg, waOpts, twOpts, assets)
	if err != nil {
		return err
	}
	defer svc.Stop()

	recorder := stats.NewRecorder(ctx, st)
	states := flow.NewStoreBasedStateManager(st, nil)
	timer := flow.NewSimpleTimer()
	defer timer.Stop()

	sales := flow.NewSalesFlow(flow.Dependencies{
		Catalog:      catalogStore,
		Synonyms:     synonymStore,
		Content:      catalog.NewContentFileStore(cfg.ContentPath),
		Composer:     compose.New(assets),
		StateManager: states,
		Sender:       svc,
		Metrics:      recorder,
		Timer:        timer,
	}, flowOpts...)

	// Re-arm follow-ups before any inbound message is consumed.
	rm := recovery.NewRecoveryManager(st)
	rm.RegisterTimerRecovery(recovery.TimerRecoveryHandler(sales.ScheduleFollowUp))
	rm.RegisterRecoverable(flow.NewSalesFlowRecovery(sales.FollowUpDelay(), nil))
	if err := rm.RecoverAll(ctx); err != nil {
		slog.Warn("Recovery finished with errors", "error", err)
	}

	sched := scheduler.NewScheduler(scheduler.WithLocation(cfg.Location))
	defer sched.Stop()
	if err := sched.AddJob(cfg.SweepSpec, scheduler.IdleSweep(ctx, states, cfg.IdleTTL, nil)); err != nil {
		return fmt.Errorf("failed to schedule idle sweep: %w", err)
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s transport: %w", cfg.Transport, err)
	}
	messaging.NewResponseHandler(svc, sales, st).Start(ctx)

	server := NewServer(cfg.Transport, recorder, states, st, webhook)
	if err := server.Start(cfg.Addr); err != nil {
		return fmt.Errorf("failed to start API server on %s: %w", cfg.Addr, err)
	}
	slog.Info("EnrollBot running", "transport", cfg.Transport, "addr", cfg.Addr)

	<-ctx.Done()
	slog.Info("EnrollBot shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	return nil
}

// checkCatalog fails fast when the catalog or synonym files are unusable.
func checkCatalog(ctx context.Context, entries catalog.Store, synonyms catalog.SynonymStore) error {
	rows, err := entries.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("catalog check failed: %w", err)
	}
	index, err := synonyms.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("synonym check failed: %w", err)
	}
	if len(rows) == 0 {
		slog.Warn("Catalog has no valid entries; no conversation can start")
	}
	slog.Info("Catalog loaded", "entries", len(rows), "synonym_keys", len(index))
	return nil
}

// buildMessaging creates the selected transport and, for Twilio, its webhook handler.
func buildMessaging(cfg Opts, waOpts []whatsapp.Option, twOpts []twiliowhatsapp.Option, media messaging.MediaSource) (messaging.Service, http.HandlerFunc, error) {
	if cfg.Transport == TransportTwilio {
		client, err := twiliowhatsapp.NewClient(twOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		opts := []messaging.TwilioOption{messaging.WithMediaBaseURL(cfg.MediaBaseURL)}
		if cfg.TwilioAuthToken != "" && cfg.WebhookURL != "" {
			opts = append(opts, messaging.WithWebhookValidation(cfg.TwilioAuthToken, cfg.WebhookURL))
		}
		svc := messaging.NewTwilioService(client, opts...)
		return svc, svc.TwilioWebhookHandler, nil
	}

	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
	}
	return messaging.NewWhatsAppService(client, media), nil, nil
}
