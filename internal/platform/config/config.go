package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/pscheid92/hearth/internal/hearth"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	InventoryUnlimited = "unlimited"
	InventoryRedis     = "redis"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	StorageBackend   string `env:"STORAGE_BACKEND" default:"memory"`
	InventoryBackend string `env:"INVENTORY_BACKEND" default:"unlimited"`
	Pool             string `env:"HEARTH_POOL" default:"default"`
	RedisURL         string `env:"REDIS_URL"`
	DatabaseURL      string `env:"DATABASE_URL"`

	OpenWeatherAPIKey string        `env:"OPENWEATHER_API_KEY"`
	WeatherLat        float64       `env:"WEATHER_LAT" default:"61.4991"`
	WeatherLon        float64       `env:"WEATHER_LON" default:"23.7871"`
	WeatherCacheTTL   time.Duration `env:"WEATHER_CACHE_TTL" default:"10m"`
	ModifierTimeout   time.Duration `env:"MODIFIER_TIMEOUT" default:"3s"`

	LogBonus         float64       `env:"LOG_BONUS" default:"8"`
	LogLifetime      time.Duration `env:"LOG_LIFETIME" default:"12h"`
	UserCooldown     time.Duration `env:"USER_COOLDOWN" default:"6h"`
	DecayInterval    time.Duration `env:"DECAY_INTERVAL" default:"30m"`
	BaseDecayRate    float64       `env:"BASE_DECAY_RATE" default:"1.5"`
	InitialIntensity float64       `env:"INITIAL_INTENSITY" default:"60"`
	DailyResetTZ     string        `env:"DAILY_RESET_TZ" default:"UTC"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"5"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"10"`
	AdminToken   string  `env:"ADMIN_TOKEN"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Settings returns the engine settings described by the configuration.
func (c *Config) Settings() hearth.Settings {
	s := hearth.DefaultSettings()
	s.LogBonus = c.LogBonus
	s.LogLifetime = c.LogLifetime
	s.UserCooldown = c.UserCooldown
	s.DecayInterval = c.DecayInterval
	s.BaseDecayRate = c.BaseDecayRate
	s.InitialIntensity = c.InitialIntensity
	s.ModifierTimeout = c.ModifierTimeout
	return s
}

// ResetLocation is the time zone whose midnight resets the daily counter.
func (c *Config) ResetLocation() *time.Location {
	loc, err := time.LoadLocation(c.DailyResetTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for STORAGE_BACKEND=%s", c.StorageBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORAGE_BACKEND=%s", c.StorageBackend)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of memory, redis, postgres, got %q", c.StorageBackend)
	}

	switch c.InventoryBackend {
	case InventoryUnlimited:
	case InventoryRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for INVENTORY_BACKEND=%s", c.InventoryBackend)
		}
	default:
		return fmt.Errorf("INVENTORY_BACKEND must be one of unlimited, redis, got %q", c.InventoryBackend)
	}

	if c.Pool == "" {
		return fmt.Errorf("HEARTH_POOL must not be empty")
	}

	if _, err := time.LoadLocation(c.DailyResetTZ); err != nil {
		return fmt.Errorf("DAILY_RESET_TZ is not a known time zone: %w", err)
	}

	if c.WeatherCacheTTL <= 0 {
		return fmt.Errorf("WEATHER_CACHE_TTL must be positive, got %s", c.WeatherCacheTTL)
	}
	if c.APIRateLimit <= 0 || c.APIRateBurst <= 0 {
		return fmt.Errorf("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}

	if err := c.Settings().Validate(); err != nil {
		return fmt.Errorf("invalid hearth settings: %w", err)
	}

	return nil
}
