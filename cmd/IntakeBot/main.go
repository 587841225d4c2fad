package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gdcoding/IntakeBot/internal/api"
	"github.com/gdcoding/IntakeBot/internal/bitrix"
	"github.com/gdcoding/IntakeBot/internal/bot"
	"github.com/gdcoding/IntakeBot/internal/lockfile"
	"github.com/gdcoding/IntakeBot/internal/messaging"
	"github.com/gdcoding/IntakeBot/internal/models"
	"github.com/gdcoding/IntakeBot/internal/session"
	"github.com/gdcoding/IntakeBot/internal/store"
	"github.com/gdcoding/IntakeBot/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for IntakeBot state data
	DefaultStateDir = "/var/lib/intakebot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "intakebot.db"
	// DefaultSessionTTL is how long an idle form session survives
	DefaultSessionTTL = 30 * time.Minute
	// DefaultSweepInterval is how often expired sessions are collected
	DefaultSweepInterval = 5 * time.Minute
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	sink, err := buildSink(config)
	if err != nil {
		slog.Error("Failed to configure Bitrix24 sink", "error", err)
		os.Exit(1)
	}

	svc, err := buildMessagingService(flags)
	if err != nil {
		slog.Error("Failed to configure messaging service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := session.NewManager(config.SessionTTL)
	sessions.StartSweeper(ctx, DefaultSweepInterval)

	b := bot.New(svc, st, sessions, sink, bot.Config{
		AdminIDs:      config.AdminIDs,
		OwnerFullName: config.OwnerFullName,
	})

	// Twilio delivers inbound messages over HTTP, so run the webhook server
	// alongside the bot loop.
	if tw, ok := svc.(*messaging.TwilioService); ok {
		webhook := api.NewServer(tw, api.WithAddr(config.WebhookAddr))
		go func() {
			if err := webhook.Run(ctx); err != nil {
				slog.Error("Webhook server failed", "error", err)
				stop()
			}
		}()
	}

	slog.Info("Bootstrapping IntakeBot", "transport", *flags.transport, "admins", len(config.AdminIDs))
	if err := b.Run(ctx); err != nil {
		slog.Error("IntakeBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("IntakeBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken      string
	DatabaseURL   string
	StateDir      string
	Transport     string
	AdminIDs      []string
	OwnerFullName string
	SessionTTL    time.Duration
	WebhookAddr   string

	BitrixWebhookURL string
	BitrixUserAgent  string
	Routing          map[models.FormKind]bitrix.Routing

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	botToken  *string
	transport *string

	config Config
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:      os.Getenv("BOT_TOKEN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("INTAKEBOT_STATE_DIR"),
		Transport:     os.Getenv("TRANSPORT"),
		AdminIDs:      util.ParseStringListEnv("ADMIN_IDS"),
		OwnerFullName: os.Getenv("OWNER_FULLNAME"),
		SessionTTL:    util.ParseDurationEnv("SESSION_TTL", DefaultSessionTTL),
		WebhookAddr:   os.Getenv("WEBHOOK_ADDR"),

		BitrixWebhookURL: os.Getenv("BITRIX_WEBHOOK_URL"),
		BitrixUserAgent:  os.Getenv("BITRIX_USER_AGENT"),
		Routing:          loadRoutingConfig(),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No INTAKEBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Transport == "" {
		config.Transport = "telegram"
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"BOT_TOKEN_SET", config.BotToken != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"INTAKEBOT_STATE_DIR", config.StateDir,
		"TRANSPORT", config.Transport,
		"ADMIN_IDS", len(config.AdminIDs),
		"BITRIX_WEBHOOK_URL_SET", config.BitrixWebhookURL != "",
		"SESSION_TTL", config.SessionTTL)

	return config
}

// routingEnvPrefixes maps each form kind to its environment variable prefix.
var routingEnvPrefixes = map[models.FormKind]string{
	models.FormKindDelivery: "DELIVERY",
	models.FormKindRefund:   "RETURN_MATERIALS",
	models.FormKindPainting: "PAINTING",
	models.FormKindCheckin:  "CHECKIN",
}

// loadRoutingConfig reads per-kind task routing from the environment, e.g.
// DELIVERY_RESPONSIBLE_ID=7 and DELIVERY_AUDITORS=[1, 7].
func loadRoutingConfig() map[models.FormKind]bitrix.Routing {
	routing := make(map[models.FormKind]bitrix.Routing, len(routingEnvPrefixes))
	for kind, prefix := range routingEnvPrefixes {
		routing[kind] = bitrix.Routing{
			ResponsibleID: util.ParseIntEnv(prefix+"_RESPONSIBLE_ID", 0),
			Auditors:      util.ParseIntListEnv(prefix+"_AUDITORS", nil),
		}
	}
	return routing
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for IntakeBot data (overrides $INTAKEBOT_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		botToken:  flag.String("bot-token", config.BotToken, "Telegram bot token (overrides $BOT_TOKEN)"),
		transport: flag.String("transport", config.Transport, "messaging transport: telegram or twilio (overrides $TRANSPORT)"),
		config:    config,
	}

	flag.Parse()

	// Follow a moved state directory when the DSN was derived from it.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"botToken_set", *flags.botToken != "",
		"transport", *flags.transport)

	return flags
}

// openStore selects the backing store from the DSN.
func openStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		st, err := store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	if err != nil {
		return nil, err
	}
	return st, nil
}

// buildSink constructs the Bitrix24 task sink.
func buildSink(config Config) (*bitrix.Sink, error) {
	var opts []bitrix.Option
	opts = append(opts, bitrix.WithBaseURL(config.BitrixWebhookURL))
	if config.BitrixUserAgent != "" {
		opts = append(opts, bitrix.WithUserAgent(config.BitrixUserAgent))
	}
	client, err := bitrix.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return bitrix.NewSink(client, config.Routing, config.OwnerFullName, config.AdminIDs), nil
}

// buildMessagingService constructs the transport adapter.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.transport == "twilio" {
		svc, err := messaging.NewTwilioService(
			messaging.WithAccountSID(flags.config.TwilioAccountSID),
			messaging.WithAuthToken(flags.config.TwilioAuthToken),
			messaging.WithFrom(flags.config.TwilioFrom),
		)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	svc, err := messaging.NewTelegramService(
		messaging.WithToken(*flags.botToken),
		messaging.WithDebug(util.ParseBoolEnv("BOT_DEBUG", false)),
	)
	if err != nil {
		return nil, err
	}
	return svc, nil
}
