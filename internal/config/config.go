package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	Feeds struct {
		DHMZURL       string
		PljusakURL    string
		DefaultSource string
		FetchTimeout  time.Duration
	}

	Refresh struct {
		Interval time.Duration
	}

	Map struct {
		ViewWidth       float64
		ViewHeight      float64
		WidthCorrection float64
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}

	CircuitBreaker struct {
		Timeout time.Duration
	}
}

// SourceSpec is the static per-source configuration surface the feed parser
// and station index key off of.
type SourceSpec struct {
	ID                  string
	URL                 string
	NameSeparator       string
	CityPrefixWhitelist []string // nil means "always split"
	DisplayLabel        string
}

// Sources returns the configured data-source table. The national feed names
// stations "City-Sublocation" and only splits on whitelisted cities; the
// amateur feed is uniformly "City, Sublocation" and always splits.
func (c *Config) Sources() []SourceSpec {
	return []SourceSpec{
		{
			ID:            "dhmz",
			URL:           c.Feeds.DHMZURL,
			NameSeparator: "-",
			CityPrefixWhitelist: []string{
				"Zagreb", "Split", "Rijeka", "Osijek", "Zadar", "Dubrovnik",
				"Šibenik", "Karlovac", "Varaždin", "Pula",
			},
			DisplayLabel: "DHMZ",
		},
		{
			ID:                  "pljusak",
			URL:                 c.Feeds.PljusakURL,
			NameSeparator:       ",",
			CityPrefixWhitelist: nil,
			DisplayLabel:        "Pljusak",
		},
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "10s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Feed configuration
	cfg.Feeds.DHMZURL = getEnv("DHMZ_FEED_URL", "https://vrijeme.hr/hrvatska1_n.xml")
	cfg.Feeds.PljusakURL = getEnv("PLJUSAK_FEED_URL", "https://pljusak.com/trenutni.php")
	cfg.Feeds.DefaultSource = getEnv("DEFAULT_SOURCE", "dhmz")
	cfg.Feeds.FetchTimeout = parseDuration(getEnv("FETCH_TIMEOUT", "30s"))

	// Refresh configuration
	cfg.Refresh.Interval = parseDuration(getEnv("REFRESH_INTERVAL", "10m"))

	// Map plane configuration
	cfg.Map.ViewWidth = parseFloat(getEnv("MAP_VIEW_WIDTH", "1000"))
	cfg.Map.ViewHeight = parseFloat(getEnv("MAP_VIEW_HEIGHT", "800"))
	cfg.Map.WidthCorrection = parseFloat(getEnv("MAP_WIDTH_CORRECTION", "1.3"))

	// Retry configuration
	cfg.Retry.MaxRetries = parseInt(getEnv("MAX_RETRIES", "3"))
	cfg.Retry.Delay = parseDuration(getEnv("RETRY_DELAY", "1s"))
	cfg.Retry.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))

	// Circuit breaker configuration
	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
