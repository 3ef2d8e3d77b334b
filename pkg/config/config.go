package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"
)

var ErrNoStore = errors.New("neither SPREADSHEET_ID nor FIREBASE_DATABASE_URL is set")

// Audit backends.
const (
	AuditFirestore = "firestore"
	AuditPostgres  = "postgres"
	AuditNone      = "none"
)

type Config struct {
	// Server
	Port            string
	CORSHosts       []string
	LogLevel        string
	LogPretty       bool
	AllowTie        bool
	DefaultDivision string

	// Auth
	AdminPassword      string
	SuperAdminPassword string
	SecretSalt         string

	// Firebase
	FirebaseProjectID       string
	FirebaseCredentialsJSON string
	FirebaseDatabaseURL     string
	FirebaseRoot            string

	// Spreadsheet
	SpreadsheetID         string
	GoogleCredentialsJSON string
	Layout                SheetLayout

	// Timing
	StoreTimeout      time.Duration
	LivePollInterval  time.Duration
	ClockSyncInterval time.Duration
	ReconcileInterval time.Duration
	ReconcileRepair   bool

	// Optional backends
	RedisURL     string
	CacheTTL     time.Duration
	AuditBackend string
	DatabaseURL  string

	// Alerts
	ResendKey      string
	AlertEmailTo   []string
	AlertEmailFrom string
}

// Load reads the environment, after loading a .env file if one exists.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8888"),
		CORSHosts:       splitList(getEnv("CORS_HOSTS", "")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnvBool("LOG_PRETTY", false),
		AllowTie:        getEnv("ALLOW_MATCH_TIE", "") == "true",
		DefaultDivision: getEnv("DEFAULT_DIVISION", "Sheet1"),

		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		SuperAdminPassword: os.Getenv("SUPERADMIN_PASSWORD"),
		SecretSalt:         getEnv("SECRET_SALT", "secret-salt"),

		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
		FirebaseDatabaseURL:     os.Getenv("FIREBASE_DATABASE_URL"),
		FirebaseRoot:            strings.Trim(getEnv("FIREBASE_ROOT", "dodgeball-tournament"), "/"),

		SpreadsheetID:         os.Getenv("SPREADSHEET_ID"),
		GoogleCredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		Layout:                DefaultLayout(),

		StoreTimeout:      getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		LivePollInterval:  getEnvDuration("LIVE_POLL_INTERVAL", 2*time.Second),
		ClockSyncInterval: getEnvDuration("CLOCK_SYNC_INTERVAL", 30*time.Second),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 0),
		ReconcileRepair:   getEnvBool("RECONCILE_REPAIR", false),

		RedisURL:     os.Getenv("REDIS_URL"),
		CacheTTL:     getEnvDuration("CACHE_TTL", 15*time.Second),
		AuditBackend: getEnv("AUDIT_BACKEND", AuditFirestore),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		ResendKey:      os.Getenv("RESEND_KEY"),
		AlertEmailTo:   splitList(os.Getenv("ALERT_EMAIL_TO")),
		AlertEmailFrom: getEnv("ALERT_EMAIL_FROM", "onboarding@resend.dev"),
	}

	if cfg.GoogleCredentialsJSON == "" {
		cfg.GoogleCredentialsJSON = cfg.FirebaseCredentialsJSON
	}

	if path := os.Getenv("SHEETS_LAYOUT_FILE"); path != "" {
		layout, err := LoadLayout(path)
		if err != nil {
			return nil, err
		}
		cfg.Layout = layout
	}
	if v := os.Getenv("STANDINGS_RANGE"); v != "" {
		cfg.Layout.StandingsRange = v
	}
	if v := getEnvInt("SCHEDULE_START_ROW", 0); v > 0 {
		cfg.Layout.ScheduleStartRow = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can run the server.
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" && c.FirebaseDatabaseURL == "" {
		return ErrNoStore
	}
	switch c.AuditBackend {
	case AuditFirestore, AuditNone:
	case AuditPostgres:
		if c.DatabaseURL == "" {
			return xerrors.Errorf("AUDIT_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return xerrors.Errorf("unknown AUDIT_BACKEND %q", c.AuditBackend)
	}
	if c.StoreTimeout <= 0 {
		return xerrors.Errorf("STORE_TIMEOUT must be positive")
	}
	return c.Layout.Validate()
}

func (c *Config) SheetsEnabled() bool { return c.SpreadsheetID != "" }

func (c *Config) RealtimeEnabled() bool { return c.FirebaseDatabaseURL != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts a Go duration ("15s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
