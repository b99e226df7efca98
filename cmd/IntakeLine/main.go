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

	"github.com/BTreeMap/IntakeLine/internal/airtable"
	"github.com/BTreeMap/IntakeLine/internal/api"
	"github.com/BTreeMap/IntakeLine/internal/completion"
	"github.com/BTreeMap/IntakeLine/internal/contractor"
	"github.com/BTreeMap/IntakeLine/internal/crm"
	"github.com/BTreeMap/IntakeLine/internal/flow"
	"github.com/BTreeMap/IntakeLine/internal/genai"
	"github.com/BTreeMap/IntakeLine/internal/lockfile"
	"github.com/BTreeMap/IntakeLine/internal/notify"
	"github.com/BTreeMap/IntakeLine/internal/store"
	"github.com/BTreeMap/IntakeLine/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir holds the SQLite outbox when no DATABASE_URL is set
	DefaultStateDir = "/var/lib/intakeline"
	// DefaultOutboxFileName is the SQLite outbox filename
	DefaultOutboxFileName = "outbox.db"
	// DefaultOutboxPollInterval is how often queued deliveries are retried
	DefaultOutboxPollInterval = 5 * time.Second
)

func main() {
	initializeLogger()
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, flags); err != nil {
		slog.Error("IntakeLine failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("IntakeLine exited successfully")
}

// Config holds environment configuration
type Config struct {
	RedisURL          string
	RedisPrefix       string
	SessionTTL        time.Duration
	APIAddr           string
	PublicBaseURL     string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	ValidateSignature bool
	AirtableToken     string
	AirtableBaseID    string
	AirtableTable     string
	ContractorsTable  string
	HeadlineField     string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	FromEmail         string
	ToEmail           string
	OpenAIKey         string
	StateDir          string
	DatabaseURL       string
	OutboxEnabled     bool
}

// Flags holds command line flag values
type Flags struct {
	apiAddr       *string
	redisURL      *string
	publicBaseURL *string
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	outbox        *bool
	validateSigs  *bool
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
		RedisURL:          os.Getenv("REDIS_URL"),
		RedisPrefix:       util.GetEnvDefault("REDIS_PREFIX", flow.DefaultSessionPrefix),
		SessionTTL:        time.Duration(util.ParseIntEnv("REDIS_TTL_SECONDS", int(flow.DefaultSessionTTL/time.Second))) * time.Second,
		APIAddr:           util.GetEnvDefault("API_ADDR", api.DefaultAddr),
		PublicBaseURL:     os.Getenv("PUBLIC_BASE_URL"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  os.Getenv("TWILIO_FROM_NUMBER"),
		ValidateSignature: util.ParseBoolEnv("TWILIO_VALIDATE_SIGNATURE", false),
		AirtableToken:     os.Getenv("AIRTABLE_TOKEN"),
		AirtableBaseID:    os.Getenv("AIRTABLE_BASE_ID"),
		AirtableTable:     util.GetEnvDefault("AIRTABLE_TABLE_NAME", crm.DefaultTable),
		ContractorsTable:  util.GetEnvDefault("AIRTABLE_CONTRACTORS_TABLE", contractor.DefaultTable),
		HeadlineField:     os.Getenv("AIRTABLE_HEADLINE_FIELD"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          util.ParseIntEnv("SMTP_PORT", notify.DefaultSMTPPort),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		FromEmail:         os.Getenv("FROM_EMAIL"),
		ToEmail:           os.Getenv("TO_EMAIL"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		StateDir:          util.GetEnvDefault("INTAKELINE_STATE_DIR", DefaultStateDir),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		OutboxEnabled:     util.ParseBoolEnv("OUTBOX_ENABLED", false),
	}

	slog.Debug("environment variables loaded",
		"REDIS_URL_SET", config.RedisURL != "",
		"REDIS_PREFIX", config.RedisPrefix,
		"SESSION_TTL", config.SessionTTL,
		"API_ADDR", config.APIAddr,
		"PUBLIC_BASE_URL", config.PublicBaseURL,
		"TWILIO_CREDENTIALS_SET", config.TwilioAccountSID != "" && config.TwilioAuthToken != "",
		"TWILIO_VALIDATE_SIGNATURE", config.ValidateSignature,
		"AIRTABLE_SET", config.AirtableToken != "" && config.AirtableBaseID != "",
		"SMTP_HOST", config.SMTPHost,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"INTAKELINE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OUTBOX_ENABLED", config.OutboxEnabled)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		redisURL:      flag.String("redis-url", config.RedisURL, "Redis URL for call state (overrides $REDIS_URL)"),
		publicBaseURL: flag.String("public-base-url", config.PublicBaseURL, "externally visible base URL (overrides $PUBLIC_BASE_URL)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for the SQLite outbox (overrides $INTAKELINE_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "outbox database DSN; empty uses SQLite in the state directory (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for lead headlines (overrides $OPENAI_API_KEY)"),
		outbox:        flag.Bool("outbox", config.OutboxEnabled, "queue completion deliveries in the outbox (overrides $OUTBOX_ENABLED)"),
		validateSigs:  flag.Bool("validate-signature", config.ValidateSignature, "reject unsigned webhooks (overrides $TWILIO_VALIDATE_SIGNATURE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"apiAddr", *flags.apiAddr,
		"redisURL_set", *flags.redisURL != "",
		"publicBaseURL", *flags.publicBaseURL,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"outbox", *flags.outbox,
		"validateSignature", *flags.validateSigs)

	return flags
}

// outboxStore is an outbox backend that owns a database handle.
type outboxStore interface {
	store.OutboxRepo
	Close() error
}

func run(ctx context.Context, config Config, flags Flags) error {
	kv, closeKV := buildKV(flags)
	defer closeKV()

	keys := flow.DefaultKeyspace()
	keys.SessionPrefix = config.RedisPrefix

	var at *airtable.Client
	if config.AirtableToken != "" && config.AirtableBaseID != "" {
		client, err := airtable.NewClient(airtable.WithToken(config.AirtableToken), airtable.WithBaseID(config.AirtableBaseID))
		if err != nil {
			return err
		}
		at = client
	}

	directory := buildDirectory(kv, at, keys, config)
	dispatcher := buildDispatcher(at, config, flags)

	var sink flow.CompletionSink = dispatcher
	if *flags.outbox {
		repo, release, err := openOutbox(flags)
		if err != nil {
			return err
		}
		defer release()
		sink = completion.NewOutboxSink(repo, dispatcher)

		sender := store.NewOutboxSender(repo, dispatcher.Deliver, DefaultOutboxPollInterval)
		if err := sender.RecoverStaleMessages(); err != nil {
			slog.Warn("Outbox stale recovery failed", "error", err)
		}
		go sender.Run(ctx)
	}

	machine := flow.NewMachine(kv,
		flow.WithKeyspace(keys),
		flow.WithSessionTTL(config.SessionTTL),
		flow.WithDirectory(directory),
		flow.WithCompletionSink(sink),
	)

	server, err := api.NewServer(machine, kv, buildAPIOptions(config, flags)...)
	if err != nil {
		return err
	}
	slog.Info("Bootstrapping IntakeLine with configured modules")
	return server.Run(ctx)
}

// buildKV connects the call-state store. Every backend is wrapped so that
// store outages degrade into fresh conversations instead of errors.
func buildKV(flags Flags) (*store.DegradedKV, func()) {
	if *flags.redisURL == "" {
		slog.Warn("No REDIS_URL set, call state is kept in process memory")
		return store.NewDegradedKV(store.NewInMemoryStore()), func() {}
	}
	rs, err := store.NewRedisStore(store.WithRedisURL(*flags.redisURL))
	if err != nil {
		slog.Error("Redis unavailable, running without call state", "error", err)
		return store.NewDegradedKV(nil), func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rs.Ping(ctx); err != nil {
		slog.Warn("Redis ping failed at startup, continuing in degraded mode", "error", err)
	}
	return store.NewDegradedKV(rs), func() { rs.Close() }
}

// buildDirectory constructs the contractor directory
func buildDirectory(kv store.KV, at *airtable.Client, keys flow.Keyspace, config Config) *contractor.Directory {
	opts := []contractor.DirectoryOption{contractor.WithKeyspace(keys), contractor.WithTable(config.ContractorsTable)}
	if at == nil {
		slog.Warn("Airtable not configured, contractor lookups use the cache only")
		return contractor.NewDirectory(kv, nil, opts...)
	}
	return contractor.NewDirectory(kv, at, opts...)
}

// buildDispatcher enables each delivery channel whose credentials are set
func buildDispatcher(at *airtable.Client, config Config, flags Flags) *completion.Dispatcher {
	var opts []completion.Option
	if at != nil {
		opts = append(opts, completion.WithCRM(crm.NewClient(at, config.AirtableTable, crm.WithHeadlineField(config.HeadlineField))))
	}
	if config.SMTPHost != "" && config.FromEmail != "" {
		email := notify.NewEmailNotifier(config.SMTPHost, config.SMTPPort, config.SMTPUsername, config.SMTPPassword, config.FromEmail)
		opts = append(opts, completion.WithEmail(email, config.ToEmail))
	}
	if config.TwilioFromNumber != "" {
		sms, err := notify.NewSMSNotifier(
			notify.WithAccountSID(config.TwilioAccountSID),
			notify.WithAuthToken(config.TwilioAuthToken),
			notify.WithFromNumber(config.TwilioFromNumber),
		)
		if err != nil {
			slog.Warn("SMS alerts disabled", "error", err)
		} else {
			opts = append(opts, completion.WithSMS(sms))
		}
	}
	if *flags.openaiKey != "" {
		client, err := genai.NewClient(buildGenAIOptions(flags)...)
		if err != nil {
			slog.Warn("Lead headlines disabled", "error", err)
		} else {
			opts = append(opts, completion.WithHeadliner(genai.NewHeadliner(client)))
		}
	}
	return completion.NewDispatcher(opts...)
}

// openOutbox opens PostgreSQL when a DSN is given, otherwise SQLite in the
// locked state directory.
func openOutbox(flags Flags) (outboxStore, func(), error) {
	if *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL outbox", "dsn_type", "postgresql")
		pg, err := store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	}

	dsn := *flags.dbDSN
	if dsn == "" {
		dsn = filepath.Join(*flags.stateDir, DefaultOutboxFileName)
	}
	lock, err := lockfile.AcquireLock(filepath.Dir(dsn))
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Configuring SQLite outbox", "dsn_type", "sqlite", "db_path", dsn)
	sq, err := store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	if err != nil {
		lock.Release()
		return nil, nil, err
	}
	return sq, func() {
		sq.Close()
		lock.Release()
	}, nil
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(config Config, flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.publicBaseURL != "" {
		apiOpts = append(apiOpts, api.WithPublicBaseURL(*flags.publicBaseURL))
	}
	if *flags.validateSigs {
		apiOpts = append(apiOpts, api.WithSignatureValidation(config.TwilioAuthToken))
	}
	return apiOpts
}
