package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// Empty allows every browser origin.
	CORSAllowedOrigins []string

	StoreDriver   string
	DB            DBConfig
	AutoMigrateDB bool

	JWTSecret string
	TokenTTL  time.Duration

	LogFile  string
	LogLevel string

	NATSURL          string
	NATSFixSubject   string
	NATSPushSubject  string
	NATSEventSubject string
	LogNATSSubjects  bool

	FlightAPIURL     string
	FlightAPIKey     string
	FlightAPITimeout time.Duration

	MaxFixAccuracy       float64
	PushTimeout          time.Duration
	HousekeepingInterval time.Duration
	StaleAfter           time.Duration
	FixBuffer            int

	CheckpointTemplatesFile string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

// DSN builds a lib/pq keyword/value connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

// Load reads .env (if present) and the environment, applying defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "travel"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},
		JWTSecret:               os.Getenv("JWT_SECRET"),
		LogFile:                 getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		NATSURL:                 os.Getenv("NATS_URL"),
		NATSFixSubject:          getEnv("NATS_FIX_SUBJECT", "travel.fixes"),
		NATSPushSubject:         getEnv("NATS_PUSH_SUBJECT", "travel.push"),
		NATSEventSubject:        getEnv("NATS_EVENT_SUBJECT", "travel.events"),
		FlightAPIURL:            os.Getenv("FLIGHT_API_URL"),
		FlightAPIKey:            os.Getenv("FLIGHT_API_KEY"),
		CheckpointTemplatesFile: os.Getenv("CHECKPOINT_TEMPLATES_FILE"),
	}
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	switch cfg.StoreDriver {
	case StorePostgres, StoreMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	var err error
	if cfg.AutoMigrateDB, err = boolEnv("DB_AUTO_MIGRATE", true); err != nil {
		return nil, err
	}
	if cfg.LogNATSSubjects, err = boolEnv("LOG_NATS_SUBJECTS", false); err != nil {
		return nil, err
	}

	hours, err := positiveInt("TOKEN_TTL_HOURS", 72)
	if err != nil {
		return nil, err
	}
	cfg.TokenTTL = time.Duration(hours) * time.Hour

	sec, err := positiveInt("FLIGHT_API_TIMEOUT_SEC", 10)
	if err != nil {
		return nil, err
	}
	cfg.FlightAPITimeout = time.Duration(sec) * time.Second

	ms, err := positiveInt("PUSH_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}
	cfg.PushTimeout = time.Duration(ms) * time.Millisecond

	if sec, err = positiveInt("HOUSEKEEPING_INTERVAL_SEC", 30); err != nil {
		return nil, err
	}
	cfg.HousekeepingInterval = time.Duration(sec) * time.Second

	if sec, err = positiveInt("LOCATION_STALE_AFTER_SEC", 300); err != nil {
		return nil, err
	}
	cfg.StaleAfter = time.Duration(sec) * time.Second

	if cfg.FixBuffer, err = positiveInt("FIX_BUFFER", 32); err != nil {
		return nil, err
	}

	cfg.MaxFixAccuracy = 100
	if v := os.Getenv("MAX_FIX_ACCURACY_M"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid MAX_FIX_ACCURACY_M: %q", v)
		}
		cfg.MaxFixAccuracy = f
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return defaultValue
}

func positiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s: %q", key, v)
}
