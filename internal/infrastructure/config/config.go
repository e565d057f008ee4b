package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Analytics AnalyticsConfig `koanf:"analytics"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	PoolSize int    `koanf:"pool_size"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SampleRate   float64 `koanf:"sample_rate"`
}

// AnalyticsConfig tunes the engine itself: risk weighting, reuse windows
// and per-metric target bands.
type AnalyticsConfig struct {
	RiskReuseWindow       time.Duration      `koanf:"risk_reuse_window"`
	PredictionReuseWindow time.Duration      `koanf:"prediction_reuse_window"`
	RiskWeights           map[string]float64 `koanf:"risk_weights"`

	MetricTargets map[string]TargetBands `koanf:"metric_targets"`
}

// TargetBands is the yaml shape of a metric's value bands.
type TargetBands struct {
	IdealMin    float64 `koanf:"ideal_min"`
	IdealMax    float64 `koanf:"ideal_max"`
	WarningMin  float64 `koanf:"warning_min"`
	WarningMax  float64 `koanf:"warning_max"`
	CriticalMin float64 `koanf:"critical_min"`
	CriticalMax float64 `koanf:"critical_max"`
}

// Load builds the configuration from defaults, an optional YAML file and
// HAB_ prefixed environment variables, in that precedence order. An empty
// path falls back to configs/config.yaml, which may be absent.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic: "health-notifications",
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			SampleRate:   0.1,
		},
		Analytics: AnalyticsConfig{
			RiskReuseWindow:       24 * time.Hour,
			PredictionReuseWindow: 6 * time.Hour,
			MetricTargets: map[string]TargetBands{
				"mood_score": {
					IdealMin: 6, IdealMax: 10,
					WarningMin: 4, WarningMax: 10,
					CriticalMin: 2, CriticalMax: 10,
				},
				"sleep_hours": {
					IdealMin: 7, IdealMax: 9,
					WarningMin: 5, WarningMax: 11,
					CriticalMin: 3, CriticalMax: 13,
				},
				"medication_adherence": {
					IdealMin: 0.9, IdealMax: 1,
					WarningMin: 0.7, WarningMax: 1,
					CriticalMin: 0.5, CriticalMax: 1,
				},
			},
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else {
		// The default config file is optional.
		_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())
	}

	if err := k.Load(env.Provider("HAB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "HAB_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Targets converts the configured bands for a metric into domain targets.
// Implements the trend target resolver used by the trend store.
func (c AnalyticsConfig) TargetsFor(metricName string) *trend.Targets {
	bands, ok := c.MetricTargets[strings.ToLower(metricName)]
	if !ok {
		return nil
	}
	return &trend.Targets{
		Ideal:    trend.Range{Min: bands.IdealMin, Max: bands.IdealMax},
		Warning:  trend.Range{Min: bands.WarningMin, Max: bands.WarningMax},
		Critical: trend.Range{Min: bands.CriticalMin, Max: bands.CriticalMax},
	}
}

// CategoryWeights converts configured risk weights onto domain categories,
// skipping unknown names.
func (c AnalyticsConfig) CategoryWeights() map[trend.Category]float64 {
	if len(c.RiskWeights) == 0 {
		return nil
	}
	weights := make(map[trend.Category]float64, len(c.RiskWeights))
	for name, w := range c.RiskWeights {
		category := trend.Category(strings.ToLower(name))
		if category.Valid() {
			weights[category] = w
		}
	}
	return weights
}
