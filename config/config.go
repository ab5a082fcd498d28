package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the reference server settings.
type Config struct {
	Port          int
	DBDriver      string // "sqlite3" or "pgx"
	DBDSN         string
	ReadTimeout   int // seconds
	WriteTimeout  int // seconds
	SessionSecret string
	AllowedOrigin string
	HistoryLimit  int
	LogDir        string
	Debug         bool
}

// ClientConfig holds the chat client settings.
type ClientConfig struct {
	APIBaseURL        string
	ChatURL           string
	ReconnectDelay    time.Duration
	ReconnectAttempts int
	LogDir            string
	Debug             bool
}

// loadDotenv reads an optional .env file; real env vars win.
func loadDotenv() {
	path := ".env"
	if p := os.Getenv("DEVCONNECT_ENV_FILE"); p != "" {
		path = p
	}
	_ = godotenv.Load(path)
}

func Load() *Config {
	loadDotenv()

	cfg := &Config{
		Port:          3215,
		DBDriver:      "sqlite3",
		DBDSN:         "devconnect.db",
		ReadTimeout:   60,
		WriteTimeout:  10,
		SessionSecret: "devconnect-dev-secret-change-me",
		AllowedOrigin: "*",
		HistoryLimit:  200,
		LogDir:        "logs",
	}

	if port, ok := envInt("DEVCONNECT_PORT"); ok {
		cfg.Port = port
	}

	if dsn := os.Getenv("DEVCONNECT_DB_DSN"); dsn != "" {
		cfg.DBDSN = dsn
		cfg.DBDriver = DriverForDSN(dsn)
	}

	if driver := os.Getenv("DEVCONNECT_DB_DRIVER"); driver != "" {
		cfg.DBDriver = driver
	}

	if timeout, ok := envInt("DEVCONNECT_READ_TIMEOUT"); ok {
		cfg.ReadTimeout = timeout
	}

	if timeout, ok := envInt("DEVCONNECT_WRITE_TIMEOUT"); ok {
		cfg.WriteTimeout = timeout
	}

	if secret := os.Getenv("DEVCONNECT_SESSION_SECRET"); secret != "" {
		cfg.SessionSecret = secret
	}

	if origin := os.Getenv("DEVCONNECT_ALLOWED_ORIGIN"); origin != "" {
		cfg.AllowedOrigin = origin
	}

	if limit, ok := envInt("DEVCONNECT_HISTORY_LIMIT"); ok && limit > 0 {
		cfg.HistoryLimit = limit
	}

	if dir, ok := os.LookupEnv("DEVCONNECT_LOG_DIR"); ok {
		cfg.LogDir = dir
	}

	cfg.Debug = envBool("DEVCONNECT_DEBUG")

	return cfg
}

func LoadClient() *ClientConfig {
	loadDotenv()

	cfg := &ClientConfig{
		APIBaseURL:        "http://localhost:3215",
		ChatURL:           "ws://localhost:3215/ws",
		ReconnectDelay:    3 * time.Second,
		ReconnectAttempts: 10,
		LogDir:            "logs",
	}

	if url := os.Getenv("DEVCONNECT_API_URL"); url != "" {
		cfg.APIBaseURL = url
	}

	if url := os.Getenv("DEVCONNECT_CHAT_URL"); url != "" {
		cfg.ChatURL = url
	}

	if delay, ok := envInt("DEVCONNECT_RECONNECT_DELAY"); ok {
		cfg.ReconnectDelay = time.Duration(delay) * time.Second
	}

	if attempts, ok := envInt("DEVCONNECT_RECONNECT_ATTEMPTS"); ok {
		cfg.ReconnectAttempts = attempts
	}

	if dir, ok := os.LookupEnv("DEVCONNECT_LOG_DIR"); ok {
		cfg.LogDir = dir
	}

	cfg.Debug = envBool("DEVCONNECT_DEBUG")

	return cfg
}

// DriverForDSN picks the database/sql driver name from a DSN.
func DriverForDSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if len(dsn) >= len(prefix) && dsn[:len(prefix)] == prefix {
			return "pgx"
		}
	}
	return "sqlite3"
}

func envInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
