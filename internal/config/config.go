package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/coindash/internal/netutil"
	"github.com/joho/godotenv"
)

// DefaultSoundURL is the alert sound played by the dashboard page.
const DefaultSoundURL = "https://www.soundjay.com/button/beep-07.mp3"

// Config holds all configuration for the dashboard service.
type Config struct {
	// Upstreams
	BackendURL     string
	MarketAPIURL   string
	PollInterval   time.Duration
	HTTPTimeout    time.Duration
	CaptureTimeout time.Duration

	// Listener
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Logging
	LogLevel string
	LogFile  string

	// Dashboard behavior
	DefaultCoin       string
	AlertCoin         string
	EnableCandlestick bool
	SoundURL          string
	CoinsFile         string

	// Local stores
	SnapshotDir string
	CDPURL      string
	JournalDir  string
	AlertDB     string

	// Fan-out and caching; empty disables
	NTFYEndpoint string
	KafkaBrokers string
	KafkaTopic   string
	RedisAddr    string
	RedisTTL     time.Duration
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BackendURL:        strings.TrimRight(getEnvOrDefault("DASHBOARD_BACKEND_URL", "http://127.0.0.1:5000"), "/"),
		MarketAPIURL:      strings.TrimRight(getEnvOrDefault("DASHBOARD_MARKET_API_URL", "https://api.coingecko.com/api/v3"), "/"),
		PollInterval:      time.Duration(getEnvIntOrDefault("DASHBOARD_POLL_INTERVAL_MS", 10000)) * time.Millisecond,
		HTTPTimeout:       time.Duration(getEnvIntOrDefault("DASHBOARD_HTTP_TIMEOUT_MS", 15000)) * time.Millisecond,
		CaptureTimeout:    time.Duration(getEnvIntOrDefault("DASHBOARD_CAPTURE_TIMEOUT_MS", 30000)) * time.Millisecond,
		BindAddr:          getEnvOrDefault("DASHBOARD_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:    netutil.SplitAddrs(getEnvOrDefault("DASHBOARD_PORT_CANDIDATES", "127.0.0.1:8191,127.0.0.1:8192")),
		PortAutoFallback:  getEnvBoolOrDefault("DASHBOARD_PORT_AUTO_FALLBACK", true),
		LogLevel:          strings.ToLower(getEnvOrDefault("DASHBOARD_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("DASHBOARD_LOG_FILE", "logs/dashboard.log"),
		DefaultCoin:       strings.ToLower(getEnvOrDefault("DASHBOARD_DEFAULT_COIN", "bitcoin")),
		AlertCoin:         strings.ToLower(getEnvOrDefault("DASHBOARD_ALERT_COIN", "bitcoin")),
		EnableCandlestick: getEnvBoolOrDefault("DASHBOARD_ENABLE_CANDLESTICK", true),
		SoundURL:          getEnvOrDefault("DASHBOARD_SOUND_URL", DefaultSoundURL),
		CoinsFile:         os.Getenv("DASHBOARD_COINS_FILE"),
		SnapshotDir:       getEnvOrDefault("DASHBOARD_SNAPSHOT_DIR", "./snapshots"),
		CDPURL:            os.Getenv("DASHBOARD_CDP_URL"),
		JournalDir:        getEnvOrDefault("DASHBOARD_JOURNAL_DIR", "./journal"),
		AlertDB:           getEnvOrDefault("DASHBOARD_ALERT_DB", "./data/alerts.db"),
		NTFYEndpoint:      os.Getenv("DASHBOARD_NTFY_ENDPOINT"),
		KafkaBrokers:      os.Getenv("DASHBOARD_KAFKA_BROKERS"),
		KafkaTopic:        getEnvOrDefault("DASHBOARD_KAFKA_TOPIC", "coindash.alerts"),
		RedisAddr:         os.Getenv("DASHBOARD_REDIS_ADDR"),
		RedisTTL:          time.Duration(getEnvIntOrDefault("DASHBOARD_REDIS_TTL_SEC", 60)) * time.Second,
	}
	if cfg.PollInterval < time.Second {
		cfg.PollInterval = time.Second
	}
	if cfg.HTTPTimeout < time.Second {
		cfg.HTTPTimeout = time.Second
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
