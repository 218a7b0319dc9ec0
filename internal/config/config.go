package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading API service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseURL          string
	RedisURL             string
	NATSURL              string
	JWTSecret            string
	StatsTimezone        string
	StatsLocation        *time.Location
	ProgressWindow       time.Duration
	AbandonFlagThreshold int
	RateLimitMax         int
	RateLimitWindow      time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Grading API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("stats.timezone", "UTC")
	v.SetDefault("progress.window", "1h")
	v.SetDefault("abandon.flag_threshold", 3)
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")

	window, err := time.ParseDuration(v.GetString("progress.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid progress window: %w", err)
	}

	rateWindow, err := time.ParseDuration(v.GetString("rate_limit.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	// Statistics windows (today/week/month) are computed against an
	// explicitly configured zone, never the host clock's.
	tzName := v.GetString("stats.timezone")
	location, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats timezone %q: %w", tzName, err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		StatsTimezone:        tzName,
		StatsLocation:        location,
		ProgressWindow:       window,
		AbandonFlagThreshold: v.GetInt("abandon.flag_threshold"),
		RateLimitMax:         v.GetInt("rate_limit.max"),
		RateLimitWindow:      rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ProgressWindow <= 0 {
		cfg.ProgressWindow = time.Hour
	}

	if cfg.AbandonFlagThreshold <= 0 {
		cfg.AbandonFlagThreshold = 3
	}

	return cfg, nil
}
