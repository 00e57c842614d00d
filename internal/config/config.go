package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName           = "TokenWallet"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultLanguage          = "en"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultPushRetryDelay    = 2 * time.Second
	defaultPushSendTimeout   = 10 * time.Second
	defaultWSEPollInterval   = time.Second
	defaultReplenishSchedule = "@every 15m"
	defaultSimulatorFlow     = "green"
	defaultSimulatorDelay    = 300 * time.Millisecond
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Enrollment
	Language        string
	IssuerCertPath  string
	ReferenceKey    []byte
	WSEPollInterval time.Duration

	// Push token bridge
	PushRetryDelay  time.Duration
	PushSendTimeout time.Duration

	// Card list maintenance, cron spec
	ReplenishSchedule string

	SimulatorFlow  string
	SimulatorDelay time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		Language:          getEnv("ENROLLMENT_LANGUAGE", defaultLanguage),
		IssuerCertPath:    os.Getenv("ISSUER_CERT_PATH"),
		ReferenceKey:      []byte(os.Getenv("CARD_REFERENCE_KEY")),
		ReplenishSchedule: getEnv("REPLENISH_SCHEDULE", defaultReplenishSchedule),
		SimulatorFlow:     strings.ToLower(getEnv("SIMULATOR_FLOW", defaultSimulatorFlow)),
	}

	durations := []struct {
		target   *time.Duration
		name     string
		fallback time.Duration
	}{
		{&cfg.ShutdownPeriod, "SHUTDOWN_TIMEOUT", defaultShutdownDelay},
		{&cfg.IdempotencyTTL, "IDEMPOTENCY_TTL", defaultIdempotencyTTL},
		{&cfg.PushRetryDelay, "PUSH_RETRY_DELAY", defaultPushRetryDelay},
		{&cfg.PushSendTimeout, "PUSH_SEND_TIMEOUT", defaultPushSendTimeout},
		{&cfg.WSEPollInterval, "WSE_POLL_INTERVAL", defaultWSEPollInterval},
		{&cfg.SimulatorDelay, "SIMULATOR_DELAY", defaultSimulatorDelay},
	}
	for _, d := range durations {
		v, err := getDuration(d.name, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.target = v
	}

	if !cfg.IsDev() {
		switch {
		case cfg.DatabaseURL == "":
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		case cfg.RedisURL == "":
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		case cfg.IssuerCertPath == "":
			return Config{}, fmt.Errorf("ISSUER_CERT_PATH must be set")
		case len(cfg.ReferenceKey) == 0:
			return Config{}, fmt.Errorf("CARD_REFERENCE_KEY must be set")
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development environment, where
// memory backends and the SDK simulator are allowed.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getDuration reads NAME_SECONDS as whole seconds, then NAME as a Go duration.
func getDuration(name string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(name + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", name, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(name); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", name, err)
		}
		return d, nil
	}
	return fallback, nil
}
