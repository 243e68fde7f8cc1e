package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Events   EventsConfig   `yaml:"events"`
	Fuzzy    FuzzyConfig    `yaml:"fuzzy"`
	KNN      KNNConfig      `yaml:"knn"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port               int      `yaml:"port" validate:"min=1,max=65535"`
	MetricsPort        int      `yaml:"metrics_port" validate:"min=0,max=65535"`
	AdminToken         string   `yaml:"admin_token"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" validate:"min=0"`
	CORSOrigins        []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	// Driver is sqlite, postgres or none. With none, saved systems are
	// unavailable.
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres none"`
	URL    string `yaml:"url" validate:"required_if=Driver postgres"`
	Path   string `yaml:"path" validate:"required_if=Driver sqlite"`
}

type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`
}

type FuzzyConfig struct {
	DefaultMethod     string  `yaml:"default_method" validate:"oneof=centroid bisector mom som lom"`
	DefaultStep       float64 `yaml:"default_step" validate:"gt=0"`
	MaxUniversePoints int     `yaml:"max_universe_points" validate:"min=2"`
}

type KNNConfig struct {
	DefaultK        int    `yaml:"default_k" validate:"min=1"`
	DefaultMetric   string `yaml:"default_metric" validate:"oneof=euclidean manhattan chebyshev minkowski"`
	KRange          []int  `yaml:"k_range" validate:"len=2,dive,min=1"`
	CVFolds         int    `yaml:"cv_folds" validate:"min=2"`
	ParallelKSearch bool   `yaml:"parallel_k_search"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               5000,
			MetricsPort:        5001,
			RateLimitPerMinute: 120,
			CORSOrigins:        []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/rcount.db",
		},
		Events: EventsConfig{
			URL: "nats://localhost:4222",
		},
		Fuzzy: FuzzyConfig{
			DefaultMethod:     "centroid",
			DefaultStep:       1,
			MaxUniversePoints: 100000,
		},
		KNN: KNNConfig{
			DefaultK:        3,
			DefaultMetric:   "euclidean",
			KRange:          []int{1, 20},
			CVFolds:         5,
			ParallelKSearch: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the k range ordering.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.KNN.KRange[0] > c.KNN.KRange[1] {
		return fmt.Errorf("invalid config: knn.k_range [%d, %d] is decreasing", c.KNN.KRange[0], c.KNN.KRange[1])
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RCOUNT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("RCOUNT_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("RCOUNT_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("RCOUNT_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("RCOUNT_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.CORSOrigins = origins
	}
	if v := os.Getenv("RCOUNT_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("RCOUNT_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("RCOUNT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RCOUNT_NATS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("RCOUNT_EVENTS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Events.Enabled = b
		}
	}
	if v := os.Getenv("RCOUNT_FUZZY_METHOD"); v != "" {
		cfg.Fuzzy.DefaultMethod = v
	}
	if v := os.Getenv("RCOUNT_KNN_DEFAULT_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.KNN.DefaultK = n
		}
	}
	if v := os.Getenv("RCOUNT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RCOUNT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
