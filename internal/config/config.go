package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Planner    PlannerConfig    `yaml:"planner" mapstructure:"planner"`
	Simulation SimulationConfig `yaml:"simulation" mapstructure:"simulation"`
	Fixture    FixtureConfig    `yaml:"fixture" mapstructure:"fixture"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PlannerConfig groups the policy parameters used by scoring, compliance and
// recommendation.
type PlannerConfig struct {
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Compliance ComplianceConfig `yaml:"compliance" mapstructure:"compliance"`
	Recommend  RecommendConfig  `yaml:"recommend" mapstructure:"recommend"`

	// OvercrowdedRatio is the occupancy ratio at or above which an area is
	// flagged as overcrowded.
	OvercrowdedRatio float64 `yaml:"overcrowded_ratio" mapstructure:"overcrowded_ratio"`
	// HighAQI is the sensor reading at or above which a sensor is flagged.
	HighAQI int `yaml:"high_aqi" mapstructure:"high_aqi"`
	// ModerateAQI is the lower bound of the moderate display band.
	ModerateAQI int `yaml:"moderate_aqi" mapstructure:"moderate_aqi"`

	HotspotLimit int `yaml:"hotspot_limit" mapstructure:"hotspot_limit"`
	GapLimit     int `yaml:"gap_limit" mapstructure:"gap_limit"`
}

// ScorerConfig holds the density score weights, normalization constants and
// tier thresholds.
type ScorerConfig struct {
	OccupancyWeight  float64 `yaml:"occupancy_weight" mapstructure:"occupancy_weight"`
	AirQualityWeight float64 `yaml:"air_quality_weight" mapstructure:"air_quality_weight"`

	AQIBaseline float64 `yaml:"aqi_baseline" mapstructure:"aqi_baseline"`
	AQIScale    float64 `yaml:"aqi_scale" mapstructure:"aqi_scale"`
	AQINormMax  float64 `yaml:"aqi_norm_max" mapstructure:"aqi_norm_max"`

	OccupancyRatioMax float64 `yaml:"occupancy_ratio_max" mapstructure:"occupancy_ratio_max"`
	ScoreMax          float64 `yaml:"score_max" mapstructure:"score_max"`

	LowThreshold  float64 `yaml:"low_threshold" mapstructure:"low_threshold"`
	HighThreshold float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
}

// ComplianceConfig configures the protected-zone buffer rule.
type ComplianceConfig struct {
	BufferMeters float64 `yaml:"buffer_meters" mapstructure:"buffer_meters"`
}

// RecommendConfig configures the proposal recommendation heuristic.
type RecommendConfig struct {
	PressureBonus float64 `yaml:"pressure_bonus" mapstructure:"pressure_bonus"`
}

// SimulationConfig configures the live data simulation loop.
type SimulationConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	AutoStart    bool          `yaml:"auto_start" mapstructure:"auto_start"`

	OccupancyDelta int `yaml:"occupancy_delta" mapstructure:"occupancy_delta"`
	OverCapacity   int `yaml:"over_capacity" mapstructure:"over_capacity"`
	AQIDelta       int `yaml:"aqi_delta" mapstructure:"aqi_delta"`
	AQIMin         int `yaml:"aqi_min" mapstructure:"aqi_min"`
	AQIMax         int `yaml:"aqi_max" mapstructure:"aqi_max"`

	// Seed fixes the random source when non-zero.
	Seed uint64 `yaml:"seed" mapstructure:"seed"`
	// ResetSchedule is a cron spec that restores the sample dataset. Empty disables it.
	ResetSchedule string `yaml:"reset_schedule" mapstructure:"reset_schedule"`
}

// FixtureConfig selects the dataset loaded at startup.
type FixtureConfig struct {
	// Path to a YAML fixture. Empty uses the embedded sample dataset.
	Path string `yaml:"path" mapstructure:"path"`
}

// MonitoringConfig configures background alert checks.
type MonitoringConfig struct {
	CheckInterval time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	// WebhookURL receives newly raised alerts as JSON. Empty disables delivery.
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	// WebhookAttempts is the number of tries per alert on 429, 5xx or network errors.
	WebhookAttempts int           `yaml:"webhook_attempts" mapstructure:"webhook_attempts"`
	WebhookBackoff  time.Duration `yaml:"webhook_backoff" mapstructure:"webhook_backoff"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// RateLimit is the sustained rate (requests/sec) for mutating routes.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional .env file, config.yaml and the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)

	v.SetDefault("planner.scorer.occupancy_weight", 0.65)
	v.SetDefault("planner.scorer.air_quality_weight", 0.35)
	v.SetDefault("planner.scorer.aqi_baseline", 50.0)
	v.SetDefault("planner.scorer.aqi_scale", 80.0)
	v.SetDefault("planner.scorer.aqi_norm_max", 1.5)
	v.SetDefault("planner.scorer.occupancy_ratio_max", 2.0)
	v.SetDefault("planner.scorer.score_max", 2.0)
	v.SetDefault("planner.scorer.low_threshold", 0.45)
	v.SetDefault("planner.scorer.high_threshold", 0.75)
	v.SetDefault("planner.compliance.buffer_meters", 200.0)
	v.SetDefault("planner.recommend.pressure_bonus", 0.04)
	v.SetDefault("planner.overcrowded_ratio", 0.85)
	v.SetDefault("planner.high_aqi", 95)
	v.SetDefault("planner.moderate_aqi", 85)
	v.SetDefault("planner.hotspot_limit", 6)
	v.SetDefault("planner.gap_limit", 3)

	v.SetDefault("simulation.tick_interval", 3500*time.Millisecond)
	v.SetDefault("simulation.auto_start", true)
	v.SetDefault("simulation.occupancy_delta", 4)
	v.SetDefault("simulation.over_capacity", 10)
	v.SetDefault("simulation.aqi_delta", 5)
	v.SetDefault("simulation.aqi_min", 55)
	v.SetDefault("simulation.aqi_max", 115)

	v.SetDefault("monitoring.check_interval", time.Minute)
	v.SetDefault("monitoring.webhook_attempts", 3)
	v.SetDefault("monitoring.webhook_backoff", 500*time.Millisecond)
}

// Validate checks the parts of the configuration that are not owned by a
// domain package.
func (c *Config) Validate() error {
	var errs []string
	s := c.Simulation
	if s.TickInterval <= 0 {
		errs = append(errs, "simulation.tick_interval must be > 0")
	}
	if s.OccupancyDelta < 0 || s.AQIDelta < 0 {
		errs = append(errs, "simulation deltas must be >= 0")
	}
	if s.OverCapacity < 0 {
		errs = append(errs, "simulation.over_capacity must be >= 0")
	}
	if s.AQIMin > s.AQIMax {
		errs = append(errs, "simulation.aqi_min must be <= aqi_max")
	}
	if c.Monitoring.CheckInterval < 0 {
		errs = append(errs, "monitoring.check_interval must be >= 0")
	}
	if c.Planner.Compliance.BufferMeters < 0 {
		errs = append(errs, "planner.compliance.buffer_meters must be >= 0")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port out of range")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
