package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// SymbolConfig describes one tracked instrument.
type SymbolConfig struct {
	Name      string  `yaml:"name"`
	PipSize   float64 `yaml:"pip_size" default:"0.0001"`
	SpreadAvg float64 `yaml:"spread_avg"`
	Calendar  string  `yaml:"calendar"` // named calendar override, empty uses default
}

// SessionConfig is one weekly market-hours window.
type SessionConfig struct {
	Day   string `yaml:"day"`
	Open  string `yaml:"open" default:"00:00"`
	Close string `yaml:"close" default:"24:00"`
}

// CalendarConfig is a weekly schedule plus fully closed dates.
type CalendarConfig struct {
	Sessions []SessionConfig `yaml:"sessions"`
	Holidays []string        `yaml:"holidays"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Storage struct {
		Backend string `yaml:"backend" default:"clickhouse"` // clickhouse or memory
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"forex"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Bridge struct {
		BaseURL   string        `yaml:"base_url"`
		Timeout   time.Duration `yaml:"timeout" default:"30s"`
		RateLimit struct {
			RequestsPerSec float64 `yaml:"requests_per_sec" default:"10"`
			Burst          float64 `yaml:"burst" default:"20"`
		} `yaml:"rate_limit"`
	} `yaml:"bridge"`
	Symbols  []SymbolConfig `yaml:"symbols"`
	Calendar struct {
		Default CalendarConfig            `yaml:"default"`
		Named   map[string]CalendarConfig `yaml:"named"`
	} `yaml:"calendar"`
	Update struct {
		Cadence          time.Duration `yaml:"cadence" default:"1m"`
		Lookback         time.Duration `yaml:"lookback" default:"24h"`
		MaxGapAge        time.Duration `yaml:"max_gap_age" default:"720h"`
		MaxBarsPerFetch  int           `yaml:"max_bars_per_fetch" default:"5000"`
		Workers          int           `yaml:"workers" default:"4"`
		RetryAttempts    int           `yaml:"retry_attempts" default:"3"`
		RetryDelay       time.Duration `yaml:"retry_delay" default:"2s"`
		RetryExponential bool          `yaml:"retry_exponential"`
		FailureThreshold int           `yaml:"failure_threshold" default:"5"`
	} `yaml:"update"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		OutcomeTopic string   `yaml:"outcome_topic" default:"forex.update.outcomes"`
		RepairTopic  string   `yaml:"repair_topic" default:"forex.gap.repairs"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"forex-core"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl" default:"30s"`
		Redis   struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"forex"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BRIDGE_URL"); v != "" {
		c.Bridge.BaseURL = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = c.Symbols[:0]
		for _, name := range strings.Split(v, ",") {
			c.Symbols = append(c.Symbols, SymbolConfig{Name: strings.TrimSpace(name), PipSize: 0.0001})
		}
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
		c.Cache.Enabled = true
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Storage.Backend != "clickhouse" && c.Storage.Backend != "memory" {
		return fmt.Errorf("storage.backend must be 'clickhouse' or 'memory', got '%s'", c.Storage.Backend)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Symbols))
	for _, s := range c.Symbols {
		if s.Name == "" {
			return fmt.Errorf("symbols: name is required")
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("symbols: duplicate %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.PipSize <= 0 {
			return fmt.Errorf("symbols: %s pip_size must be positive", s.Name)
		}
		if s.Calendar != "" {
			if _, ok := c.Calendar.Named[s.Calendar]; !ok {
				return fmt.Errorf("symbols: %s references unknown calendar %q", s.Name, s.Calendar)
			}
		}
	}
	if c.Update.Cadence < time.Second {
		return fmt.Errorf("update.cadence must be at least 1s")
	}
	if c.Update.Lookback < time.Minute {
		return fmt.Errorf("update.lookback must be at least 1m")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
