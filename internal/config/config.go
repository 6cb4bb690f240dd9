package config // package config loads application configuration from environment variables

import (
	"os"      // os provides access to environment variables
	"strings"

	"github.com/joho/godotenv"  // optional .env file for local runs
	"github.com/rs/zerolog/log" // fatal configuration errors halt execution
)

// Store and sequence backends.
const (
	BackendMySQL  = "mysql"
	BackendMemory = "memory"

	SequenceStore = "store"
	SequenceRedis = "redis"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for sizes,
// counts and costs.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	StoreBackend string // mysql or memory

	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	DBAutoMigrate bool   // create missing tables at startup

	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time‑to‑live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	TicketNumberWidth   int    // zero padding of ticket numbers
	SequenceBackend     string // store (MySQL counter row) or redis (INCR)
	SequenceMaxAttempts int    // allocation attempts per issuance
	CheckinMaxAttempts  int    // read/compare-and-set rounds per validation

	QRSize  int    // credential image size in pixels
	QRLevel string // QR error correction level

	AMQPURL       string // RabbitMQ URL
	EventsEnabled bool   // publish ticket events and run the audit consumer
	EventsLogDir  string // directory the audit consumer writes to

	LogLevel  string // zerolog level
	LogFormat string // console or json
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when
// present; variables already set in the environment win.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		StoreBackend: strings.ToLower(envStr("STORE_BACKEND", BackendMySQL)),

		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:   envInt("BCRYPT_COST", 12),

		TicketNumberWidth:   envInt("TICKET_NUMBER_WIDTH", 4),
		SequenceBackend:     strings.ToLower(envStr("SEQUENCE_BACKEND", SequenceStore)),
		SequenceMaxAttempts: envInt("SEQUENCE_MAX_ATTEMPTS", 8),
		CheckinMaxAttempts:  envInt("CHECKIN_MAX_ATTEMPTS", 3),

		QRSize:  envInt("QR_SIZE", 256),
		QRLevel: envStr("QR_LEVEL", "medium"),

		AMQPURL:      firstEnv("RABBITMQ_URL", "AMQP_URL"),
		EventsLogDir: envStr("EVENTS_LOG_DIR", "logs"),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "console"),
	}
	cfg.EventsEnabled = envBool("EVENTS_ENABLED", cfg.AMQPURL != "")

	switch cfg.StoreBackend {
	case BackendMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
		cfg.DBAutoMigrate = envBool("DB_AUTO_MIGRATE", true)
	case BackendMemory:
	default:
		log.Fatal().Str("STORE_BACKEND", cfg.StoreBackend).Msg("unknown store backend")
	}
	if cfg.SequenceBackend != SequenceStore && cfg.SequenceBackend != SequenceRedis {
		log.Fatal().Str("SEQUENCE_BACKEND", cfg.SequenceBackend).Msg("unknown sequence backend")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Msgf("missing required env var: %s", key)
	}
	return v
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
