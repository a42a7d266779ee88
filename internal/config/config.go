// Package config loads and validates all service settings from environment
// variables (optionally seeded from a .env file). The resulting Config is
// immutable after Load; invalid thresholds, weights, TTLs, or periods fail
// startup rather than surfacing during a running refresh.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/couchcryptid/dustcast-service/internal/domain"
)

// ErrInvalid marks configuration validation failures. Fatal at startup only.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	Location LocationConfig
	Provider ProviderConfig
	Risk     RiskConfig
	Refresh  RefreshConfig
	History  HistoryConfig
	Kafka    KafkaConfig
	Telegram TelegramConfig
}

// LocationConfig fixes the monitored point and composite region.
type LocationConfig struct {
	Name         string  `envconfig:"MONITOR_LOCATION_NAME" default:"Tashkent, Uzbekistan"`
	Lat          float64 `envconfig:"MONITOR_LAT" default:"41.2995"`
	Lon          float64 `envconfig:"MONITOR_LON" default:"69.2401"`
	RadiusMeters float64 `envconfig:"MONITOR_RADIUS_METERS" default:"50000"`
}

// ProviderConfig holds the satellite imagery statistics provider settings.
type ProviderConfig struct {
	BaseURL       string        `envconfig:"PROVIDER_BASE_URL" default:"https://earthengine.googleapis.com/v1"`
	Project       string        `envconfig:"PROVIDER_PROJECT"`
	Token         string        `envconfig:"PROVIDER_TOKEN"`
	Timeout       time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	WindowDays    int           `envconfig:"PROVIDER_WINDOW_DAYS" default:"60"`
	MaxCloudCover float64       `envconfig:"PROVIDER_MAX_CLOUD_COVER" default:"20"`
}

// RiskConfig holds the evaluator calibration. Threshold variable names match
// the historical deployment environment.
type RiskConfig struct {
	ModerateThreshold float64 `envconfig:"DUST_RISK_MODERATE_THRESHOLD" default:"0.3"`
	HighThreshold     float64 `envconfig:"DUST_RISK_HIGH_THRESHOLD" default:"0.6"`

	TemperatureWeight float64 `envconfig:"RISK_WEIGHT_TEMPERATURE" default:"0.3"`
	DustWeight        float64 `envconfig:"RISK_WEIGHT_DUST" default:"0.4"`
	VegetationWeight  float64 `envconfig:"RISK_WEIGHT_VEGETATION" default:"0.3"`

	TempNoRisk   float64 `envconfig:"RISK_TEMP_NO_RISK" default:"25"`
	TempHighRisk float64 `envconfig:"RISK_TEMP_HIGH_RISK" default:"45"`
	DustNoRisk   float64 `envconfig:"RISK_DUST_NO_RISK" default:"-0.10"`
	DustHighRisk float64 `envconfig:"RISK_DUST_HIGH_RISK" default:"0.90"`
	VegNoRisk    float64 `envconfig:"RISK_VEG_NO_RISK" default:"0.60"`
	VegHighRisk  float64 `envconfig:"RISK_VEG_HIGH_RISK" default:"0"`

	TempTrigger float64 `envconfig:"RISK_TRIGGER_TEMPERATURE" default:"0.7"`
	DustTrigger float64 `envconfig:"RISK_TRIGGER_DUST" default:"0.7"`
	VegTrigger  float64 `envconfig:"RISK_TRIGGER_VEGETATION" default:"0.7"`
}

// RefreshConfig holds the scheduler periods and cache TTLs.
type RefreshConfig struct {
	CurrentInterval  time.Duration `envconfig:"DATA_UPDATE_INTERVAL" default:"30m"`
	ForecastInterval time.Duration `envconfig:"FORECAST_UPDATE_INTERVAL" default:"6h"`
	CurrentTTL       time.Duration `envconfig:"CACHE_TTL_CURRENT" default:"30m"`
	ForecastTTL      time.Duration `envconfig:"CACHE_TTL_FORECAST" default:"2h"`
	ForecastDays     int           `envconfig:"FORECAST_DAYS" default:"7"`
}

// HistoryConfig holds the SQLite assessment archive settings.
type HistoryConfig struct {
	Enabled bool   `envconfig:"HISTORY_ENABLED" default:"true"`
	Path    string `envconfig:"HISTORY_DB_PATH" default:"dustcast-history.db"`
	MaxRows int    `envconfig:"HISTORY_MAX_ROWS" default:"10000"`
}

// KafkaConfig holds the optional assessment sink topic settings. Publishing
// is enabled when brokers are configured, overridable via KAFKA_ENABLED.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_SINK_TOPIC" default:"dust-risk-assessments"`
	Enabled bool     `envconfig:"-"`
}

// TelegramConfig holds the optional risk-change alert settings. Alerting is
// enabled when both token and chat are set, overridable via TELEGRAM_ENABLED.
type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
	Enabled  bool   `envconfig:"-"`
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg.Kafka.Enabled = len(cfg.Kafka.Brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true"
	}

	cfg.Telegram.Enabled = cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != ""
	if v := os.Getenv("TELEGRAM_ENABLED"); v != "" {
		cfg.Telegram.Enabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("%w: PROVIDER_TIMEOUT must be positive", ErrInvalid)
	}
	if c.Provider.WindowDays <= 0 {
		return fmt.Errorf("%w: PROVIDER_WINDOW_DAYS must be positive", ErrInvalid)
	}
	if c.Refresh.CurrentInterval <= 0 || c.Refresh.ForecastInterval <= 0 {
		return fmt.Errorf("%w: refresh intervals must be positive", ErrInvalid)
	}
	if c.Refresh.CurrentTTL <= 0 || c.Refresh.ForecastTTL <= 0 {
		return fmt.Errorf("%w: cache TTLs must be positive", ErrInvalid)
	}
	if c.Refresh.ForecastDays <= 0 {
		return fmt.Errorf("%w: FORECAST_DAYS must be positive", ErrInvalid)
	}
	if c.Location.RadiusMeters <= 0 {
		return fmt.Errorf("%w: MONITOR_RADIUS_METERS must be positive", ErrInvalid)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: KAFKA_ENABLED is true but KAFKA_BROKERS is not set", ErrInvalid)
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("%w: TELEGRAM_ENABLED is true but token or chat ID is not set", ErrInvalid)
	}
	if err := c.RiskParams().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// RiskParams assembles the validated evaluator parameter value object.
func (c *Config) RiskParams() domain.RiskParams {
	return domain.RiskParams{
		Temperature: domain.FactorBounds{NoRisk: c.Risk.TempNoRisk, HighRisk: c.Risk.TempHighRisk, Trigger: c.Risk.TempTrigger},
		Dust:        domain.FactorBounds{NoRisk: c.Risk.DustNoRisk, HighRisk: c.Risk.DustHighRisk, Trigger: c.Risk.DustTrigger},
		Vegetation:  domain.FactorBounds{NoRisk: c.Risk.VegNoRisk, HighRisk: c.Risk.VegHighRisk, Trigger: c.Risk.VegTrigger},

		TemperatureWeight: c.Risk.TemperatureWeight,
		DustWeight:        c.Risk.DustWeight,
		VegetationWeight:  c.Risk.VegetationWeight,

		ModerateThreshold: c.Risk.ModerateThreshold,
		HighThreshold:     c.Risk.HighThreshold,
	}
}

// Region assembles the provider query region for the monitored point.
func (c *Config) Region() domain.Region {
	return domain.Region{
		Lat:          c.Location.Lat,
		Lon:          c.Location.Lon,
		RadiusMeters: c.Location.RadiusMeters,
	}
}
