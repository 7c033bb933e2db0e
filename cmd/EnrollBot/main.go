package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/api"
	"github.com/BTreeMap/EnrollBot/internal/flow"
	"github.com/BTreeMap/EnrollBot/internal/store"
	"github.com/BTreeMap/EnrollBot/internal/twiliowhatsapp"
	"github.com/BTreeMap/EnrollBot/internal/whatsapp"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Default file names inside the state directory.
const (
	DefaultAppDBFileName      = "enrollbot.db"
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	config, err := loadEnvironmentConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid environment configuration:", err)
		os.Exit(2)
	}

	flags := parseCommandLineFlags(flag.CommandLine, config, os.Args[1:])
	initializeLogger(*flags.logLevel)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	loc := flow.LoadLocation(*flags.timezone)
	waOpts := buildWhatsAppOptions(flags)
	twOpts := buildTwilioOptions(flags)
	storeOpts := buildStoreOptions(flags)
	flowOpts := buildFlowOptions(flags, loc)
	apiOpts := buildAPIOptions(flags, loc)

	slog.Info("Bootstrapping EnrollBot", "transport", *flags.transport)
	slog.Debug("Module options counts", "whatsapp", len(waOpts), "twilio", len(twOpts), "store", len(storeOpts), "flow", len(flowOpts), "api", len(apiOpts))
	if err := api.Run(waOpts, twOpts, storeOpts, flowOpts, apiOpts...); err != nil {
		slog.Error("EnrollBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("EnrollBot exited successfully")
}

// Config is decoded from ENROLLBOT_* environment variables.
type Config struct {
	StateDir    string `envconfig:"STATE_DIR" default:"/var/lib/enrollbot"`
	DatabaseDSN string `envconfig:"DATABASE_DSN"`
	WhatsAppDSN string `envconfig:"WHATSAPP_DB_DSN"`
	Transport   string `envconfig:"TRANSPORT" default:"whatsapp"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	TwilioAccountSID    string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken     string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFrom          string `envconfig:"TWILIO_FROM"`
	TwilioWebhookURL    string `envconfig:"TWILIO_WEBHOOK_URL"`
	TwilioValidateHooks bool   `envconfig:"TWILIO_VALIDATE_WEBHOOK" default:"true"`

	CatalogPath  string `envconfig:"CATALOG_PATH" default:"data/catalog.json"`
	SynonymsPath string `envconfig:"SYNONYMS_PATH" default:"data/synonyms.json"`
	ContentPath  string `envconfig:"CONTENT_PATH" default:"data/content.yaml"`
	MediaDir     string `envconfig:"MEDIA_DIR" default:"media"`
	MediaBaseURL string `envconfig:"MEDIA_BASE_URL"`

	APIAddr            string        `envconfig:"API_ADDR" default:":8080"`
	Timezone           string        `envconfig:"TIMEZONE" default:"America/Lima"`
	FollowUpDelay      time.Duration `envconfig:"FOLLOW_UP_DELAY" default:"3m"`
	MaxScheduleOptions int           `envconfig:"MAX_SCHEDULE_OPTIONS" default:"3"`
	IdleTTL            time.Duration `envconfig:"IDLE_TTL" default:"24h"`
	SweepSpec          string        `envconfig:"SWEEP_SPEC" default:"*/15 * * * *"`
	TriggerPhrases     []string      `envconfig:"TRIGGER_PHRASES"`
}

// Flags holds command line values; each defaults to its environment counterpart.
type Flags struct {
	qrOutput       *string
	numeric        *bool
	stateDir       *string
	dbDSN          *string
	waDSN          *string
	transport      *string
	logLevel       *string
	twilioSID      *string
	twilioToken    *string
	twilioFrom     *string
	webhookURL     *string
	validateHooks  *bool
	catalogPath    *string
	synonymsPath   *string
	contentPath    *string
	mediaDir       *string
	mediaBaseURL   *string
	apiAddr        *string
	timezone       *string
	followUpDelay  *time.Duration
	maxSchedule    *int
	idleTTL        *time.Duration
	sweepSpec      *string
	triggerPhrases *string
}

// initializeLogger installs the default text logger at the named level.
func initializeLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads .env (if present) and decodes ENROLLBOT_* variables.
func loadEnvironmentConfig() (Config, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	var config Config
	if err := envconfig.Process("enrollbot", &config); err != nil {
		return Config{}, err
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultAppDBFileName)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = "file:" + filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}
	return config, nil
}

// parseCommandLineFlags parses args on fs with environment defaults.
func parseCommandLineFlags(fs *flag.FlagSet, config Config, args []string) Flags {
	flags := Flags{
		qrOutput:       fs.String("qr-output", "", "path to write login QR code"),
		numeric:        fs.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:       fs.String("state-dir", config.StateDir, "state directory (overrides $ENROLLBOT_STATE_DIR)"),
		dbDSN:          fs.String("db-dsn", config.DatabaseDSN, "SQLite path or Postgres URL for conversation state (overrides $ENROLLBOT_DATABASE_DSN)"),
		waDSN:          fs.String("whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow session database DSN (overrides $ENROLLBOT_WHATSAPP_DB_DSN)"),
		transport:      fs.String("transport", config.Transport, "messaging transport: whatsapp or twilio (overrides $ENROLLBOT_TRANSPORT)"),
		logLevel:       fs.String("log-level", config.LogLevel, "log level: debug, info, warn, error (overrides $ENROLLBOT_LOG_LEVEL)"),
		twilioSID:      fs.String("twilio-account-sid", config.TwilioAccountSID, "Twilio account SID"),
		twilioToken:    fs.String("twilio-auth-token", config.TwilioAuthToken, "Twilio auth token"),
		twilioFrom:     fs.String("twilio-from", config.TwilioFrom, "Twilio WhatsApp sender number"),
		webhookURL:     fs.String("twilio-webhook-url", config.TwilioWebhookURL, "public URL of the Twilio webhook, used for signature checks"),
		validateHooks:  fs.Bool("twilio-validate-webhook", config.TwilioValidateHooks, "reject Twilio webhooks with a bad signature"),
		catalogPath:    fs.String("catalog", config.CatalogPath, "program catalog JSON file"),
		synonymsPath:   fs.String("synonyms", config.SynonymsPath, "program synonyms JSON file"),
		contentPath:    fs.String("content", config.ContentPath, "greeting and bonus texts YAML file"),
		mediaDir:       fs.String("media-dir", config.MediaDir, "media library directory"),
		mediaBaseURL:   fs.String("media-base-url", config.MediaBaseURL, "public base URL of the media library (Twilio)"),
		apiAddr:        fs.String("api-addr", config.APIAddr, "API server address (overrides $ENROLLBOT_API_ADDR)"),
		timezone:       fs.String("timezone", config.Timezone, "regional timezone for dates and business hours"),
		followUpDelay:  fs.Duration("follow-up-delay", config.FollowUpDelay, "delay before the web payment follow-up"),
		maxSchedule:    fs.Int("max-schedule-options", config.MaxScheduleOptions, "maximum upcoming start dates listed"),
		idleTTL:        fs.Duration("idle-ttl", config.IdleTTL, "idle time after which a conversation is discarded"),
		sweepSpec:      fs.String("sweep-spec", config.SweepSpec, "cron expression of the idle sweep"),
		triggerPhrases: fs.String("trigger-phrases", strings.Join(config.TriggerPhrases, ","), "comma separated phrases that start a conversation"),
	}

	// ExitOnError for the command line; tests use ContinueOnError sets.
	_ = fs.Parse(args)

	// Follow a moved state directory when the DSNs were left at their defaults.
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultAppDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultAppDBFileName)
		}
		if *flags.waDSN == "file:"+filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)+"?_foreign_keys=on" {
			*flags.waDSN = "file:" + filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
		}
	}
	return flags
}

// ensureDirectoriesExist creates the state directory and the parent of a file-based DSN.
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{*flags.stateDir}
	if store.DetectDSNType(*flags.dbDSN) != store.DSNTypePostgres {
		dirs = append(dirs, filepath.Dir(*flags.dbDSN))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options.
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var opts []whatsapp.Option
	if *flags.qrOutput != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	if *flags.waDSN != "" {
		opts = append(opts, whatsapp.WithDBDSN(*flags.waDSN))
	}
	return opts
}

// buildTwilioOptions constructs Twilio configuration options.
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	var opts []twiliowhatsapp.Option
	if *flags.twilioSID != "" {
		opts = append(opts, twiliowhatsapp.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		opts = append(opts, twiliowhatsapp.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		opts = append(opts, twiliowhatsapp.WithFromWhats(*flags.twilioFrom))
	}
	return opts
}

// buildStoreOptions picks the store backend from the DSN shape.
func buildStoreOptions(flags Flags) []store.Option {
	if *flags.dbDSN == "" {
		return nil
	}
	if store.DetectDSNType(*flags.dbDSN) == store.DSNTypePostgres {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return []store.Option{store.WithPostgresDSN(*flags.dbDSN)}
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return []store.Option{store.WithSQLiteDSN(*flags.dbDSN)}
}

// buildFlowOptions constructs sales flow tunables.
func buildFlowOptions(flags Flags, loc *time.Location) []flow.Option {
	opts := []flow.Option{
		flow.WithFollowUpDelay(*flags.followUpDelay),
		flow.WithMaxScheduleOptions(*flags.maxSchedule),
		flow.WithBusinessHours(flow.DefaultBusinessHours(loc)),
	}
	if phrases := splitList(*flags.triggerPhrases); len(phrases) > 0 {
		opts = append(opts, flow.WithTriggerPhrases(phrases))
	}
	return opts
}

// buildAPIOptions constructs bootstrap options.
func buildAPIOptions(flags Flags, loc *time.Location) []api.Option {
	opts := []api.Option{
		api.WithAddr(*flags.apiAddr),
		api.WithTransport(strings.ToLower(strings.TrimSpace(*flags.transport))),
		api.WithStateDir(*flags.stateDir),
		api.WithCatalogFiles(*flags.catalogPath, *flags.synonymsPath, *flags.contentPath),
		api.WithMedia(*flags.mediaDir, *flags.mediaBaseURL),
		api.WithIdleSweep(*flags.idleTTL, *flags.sweepSpec),
		api.WithLocation(loc),
	}
	if *flags.validateHooks && *flags.twilioToken != "" && *flags.webhookURL != "" {
		opts = append(opts, api.WithTwilioWebhookValidation(*flags.twilioToken, *flags.webhookURL))
	}
	return opts
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
