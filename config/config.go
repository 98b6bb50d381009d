package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mt4bridge/internal/adapters/logger" // Import the logger package for LogLevel
	"mt4bridge/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Terminal network settings
	Host        string
	Protocol    string
	CommandPort int // host PUSH -> terminal PULL
	ReplyPort   int // terminal PUSH -> host PULL
	FeedPort    int // terminal PUB -> host SUB

	// Session behaviour
	MaxRetries     int           // bounded retries for connect / reconnect / send
	RetryDelay     time.Duration // delay between retry attempts
	PollInterval   time.Duration // dispatcher poll timeout
	ReceiveTimeout time.Duration // default Receive wait
	JoinTimeout    time.Duration // shutdown goroutine join budget

	// Historical acquisition
	RequestTimeout      time.Duration // wait for one HIST reply
	RequestDelay        time.Duration // pause between consecutive requests
	HistoryStart        time.Time     // earliest date ever requested
	AnomalyWindow       time.Duration // trailing baseline window
	AnomalyThresholdPct float64       // deviation percentage that flags a row
	CalendarMIC         string        // trading calendar market identifier code

	// Paths
	DataDir     string // root of persisted series files
	TickDBPath  string // sqlite tick store
	CatalogPath string // symbol/timeframe catalog (YAML)

	// Live bridge
	HeartbeatInterval time.Duration

	// Logging
	LogLevel logger.LogLevel
}

// Endpoint renders one channel endpoint, e.g. "tcp://localhost:5555".
func (c *Config) Endpoint(port int) string {
	return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Host, port)
}

// CommandEndpoint is the endpoint of the command (PUSH) channel.
func (c *Config) CommandEndpoint() string { return c.Endpoint(c.CommandPort) }

// ReplyEndpoint is the endpoint of the reply (PULL) channel.
func (c *Config) ReplyEndpoint() string { return c.Endpoint(c.ReplyPort) }

// FeedEndpoint is the endpoint of the tick feed (SUB) channel.
func (c *Config) FeedEndpoint() string { return c.Endpoint(c.FeedPort) }

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.Host = getEnv("MT4_HOST", "localhost")
	cfg.Protocol = getEnv("MT4_PROTOCOL", "tcp")
	if cfg.Protocol != "tcp" && cfg.Protocol != "ipc" {
		errs = append(errs, fmt.Sprintf("unsupported MT4_PROTOCOL %q (tcp or ipc)", cfg.Protocol))
	}

	cfg.CommandPort = getEnvAsInt("MT4_COMMAND_PORT", 5555)
	cfg.ReplyPort = getEnvAsInt("MT4_REPLY_PORT", 5556)
	cfg.FeedPort = getEnvAsInt("MT4_FEED_PORT", 5557)
	for _, p := range []struct {
		name string
		val  int
	}{
		{"MT4_COMMAND_PORT", cfg.CommandPort},
		{"MT4_REPLY_PORT", cfg.ReplyPort},
		{"MT4_FEED_PORT", cfg.FeedPort},
	} {
		if p.val <= 0 || p.val > 65535 {
			errs = append(errs, fmt.Sprintf("invalid %s: %d", p.name, p.val))
		}
	}
	if cfg.CommandPort == cfg.ReplyPort || cfg.CommandPort == cfg.FeedPort || cfg.ReplyPort == cfg.FeedPort {
		errs = append(errs, "channel ports must be distinct")
	}

	cfg.MaxRetries, err = getEnvAsIntChecked("MT4_MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MT4_MAX_RETRIES: %v", err))
	} else if cfg.MaxRetries <= 0 {
		errs = append(errs, "MT4_MAX_RETRIES must be positive")
	}

	cfg.RetryDelay = getEnvAsDuration("MT4_RETRY_DELAY", time.Second, &errs)
	cfg.PollInterval = getEnvAsDuration("MT4_POLL_INTERVAL", time.Second, &errs)
	cfg.ReceiveTimeout = getEnvAsDuration("MT4_RECEIVE_TIMEOUT", 5*time.Second, &errs)
	cfg.JoinTimeout = getEnvAsDuration("MT4_JOIN_TIMEOUT", 2*time.Second, &errs)

	cfg.RequestTimeout = getEnvAsDuration("HIST_REQUEST_TIMEOUT", 30*time.Second, &errs)
	cfg.RequestDelay = getEnvAsDuration("HIST_REQUEST_DELAY", 3*time.Second, &errs)

	startStr := getEnv("HISTORY_START", "2015.01.01")
	cfg.HistoryStart, err = time.Parse(domain.DateLayout, startStr)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HISTORY_START %q: %v", startStr, err))
	}

	cfg.AnomalyWindow = getEnvAsDuration("ANOMALY_WINDOW", 72*time.Hour, &errs)
	cfg.AnomalyThresholdPct = getEnvAsFloat("ANOMALY_THRESHOLD_PCT", 50.0)
	if cfg.AnomalyThresholdPct <= 0 {
		errs = append(errs, "ANOMALY_THRESHOLD_PCT must be positive")
	}
	cfg.CalendarMIC = getEnv("CALENDAR_MIC", "xnys")

	cfg.DataDir = getEnv("DATA_DIR", "./data/historical")
	cfg.TickDBPath = getEnv("TICK_DB_PATH", "./data/ticks.db")
	cfg.CatalogPath = getEnv("CATALOG_PATH", "./config/catalog.yaml")

	cfg.HeartbeatInterval = getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second, &errs)

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Helper functions for reading environment variables ---

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsIntChecked(key string, defaultVal int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("value %q is not an integer", valueStr)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid %s %q: %v", key, valueStr, err))
		return defaultVal
	}
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be positive", key))
		return defaultVal
	}
	return value
}
