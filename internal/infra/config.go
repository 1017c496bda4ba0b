package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Host             string
	Port             string
	Public           bool
	StoragePath      string
	MetricsDBPath    string
	EngineBaseURL    string
	DeviceOverride   string
	FFmpegPath       string
	WebPassword      string
	GeoIPDBPath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	StageTimeout     time.Duration
	ArtifactTTL      time.Duration
	MaxUploadBytes   int64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Host:             getEnv("HOST", "127.0.0.1"),
		Port:             getEnv("PORT", "8080"),
		Public:           getEnvBool("PUBLIC", false),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		MetricsDBPath:    getEnv("METRICS_DB_PATH", "./storage/render_metrics.db"),
		EngineBaseURL:    os.Getenv("ENGINE_BASE_URL"),
		DeviceOverride:   os.Getenv("DEVICE_OVERRIDE"),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		StageTimeout:     time.Second * time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 600)),
		ArtifactTTL:      time.Second * time.Duration(getEnvInt("ARTIFACT_TTL_SECONDS", 1800)),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 64<<20)),
	}

	password, err := resolveWebPassword()
	if err != nil {
		return nil, err
	}
	cfg.WebPassword = password

	// Binding beyond loopback without a password hands the accelerator to
	// anyone who can reach the port; refuse outright.
	if cfg.Public && cfg.WebPassword == "" {
		return nil, fmt.Errorf("PUBLIC=true requires WEB_PASSWORD or WEB_PASSWORD_FILE")
	}
	if cfg.Public && cfg.Host == "127.0.0.1" {
		cfg.Host = "0.0.0.0"
	}

	if abs, err := filepath.Abs(cfg.StoragePath); err == nil {
		cfg.StoragePath = abs
	}

	return cfg, nil
}

// Addr returns the host:port pair the HTTP server binds to.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func resolveWebPassword() (string, error) {
	if v := strings.TrimSpace(os.Getenv("WEB_PASSWORD")); v != "" {
		return v, nil
	}
	path := strings.TrimSpace(os.Getenv("WEB_PASSWORD_FILE"))
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read WEB_PASSWORD_FILE: %w", err)
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return "", fmt.Errorf("password file is empty: %s", path)
	}
	return value, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
