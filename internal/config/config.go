package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"streakTracker/internal/worker"

	"github.com/spf13/viper"
)

const envPrefix = "STREAK"

type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Repository RepositoryConfig `yaml:"repository" mapstructure:"repository"`
	Streak     StreakConfig     `yaml:"streak" mapstructure:"streak"`
	Sweep      SweepConfig      `yaml:"sweep" mapstructure:"sweep"`
}

type ServerConfig struct {
	Port            string        `yaml:"port" mapstructure:"port"`
	Host            string        `yaml:"host" mapstructure:"host"`
	RateLimit       int           `yaml:"rate_limit" mapstructure:"rate_limit"`
	RequestTimeout  time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url" mapstructure:"url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinConnections int           `yaml:"min_connections" mapstructure:"min_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	SlowThreshold  time.Duration `yaml:"slow_threshold" mapstructure:"slow_threshold"`
}

type LoggingConfig struct {
	Development bool `yaml:"development" mapstructure:"development"`
}

type RepositoryConfig struct {
	// Type is one of "inmemory", "postgres", "sqlite".
	Type       string `yaml:"type" mapstructure:"type"`
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

type StreakConfig struct {
	DefaultTimezone string `yaml:"default_timezone" mapstructure:"default_timezone"`
}

type SweepConfig struct {
	Cadence      time.Duration `yaml:"cadence" mapstructure:"cadence"`
	WindowBefore time.Duration `yaml:"window_before" mapstructure:"window_before"`
	WindowAfter  time.Duration `yaml:"window_after" mapstructure:"window_after"`
	Parallelism  int           `yaml:"parallelism" mapstructure:"parallelism"`
	CronSecret   string        `yaml:"cron_secret" mapstructure:"cron_secret"`
	TargetURL    string        `yaml:"target_url" mapstructure:"target_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "")
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)

	v.SetDefault("logging.development", false)

	v.SetDefault("repository.type", "inmemory")
	v.SetDefault("repository.sqlite_path", "streak_tracker.db")

	v.SetDefault("streak.default_timezone", "UTC")

	v.SetDefault("sweep.cadence", 15*time.Minute)
	v.SetDefault("sweep.window_before", 7*time.Minute)
	v.SetDefault("sweep.window_after", 7*time.Minute)
	v.SetDefault("sweep.parallelism", 4)
	v.SetDefault("sweep.cron_secret", "")
	v.SetDefault("sweep.target_url", "http://localhost:8080/cron/check-streaks")
}

// Load reads the YAML file at path, or config.yml in the working directory
// when path is empty. A missing default file is fine; every key has a default
// and can be overridden through STREAK_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case "inmemory", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres repository")
		}
	default:
		return fmt.Errorf("unknown repository.type %q", c.Repository.Type)
	}

	if c.Sweep.Parallelism < 1 {
		return fmt.Errorf("sweep.parallelism must be at least 1, got %d", c.Sweep.Parallelism)
	}
	if err := c.Window().Validate(c.Sweep.Cadence); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database.min_connections (%d) exceeds max_connections (%d)",
			c.Database.MinConnections, c.Database.MaxConnections)
	}
	return nil
}

func (c *Config) Window() worker.Window {
	return worker.Window{
		Before: c.Sweep.WindowBefore,
		After:  c.Sweep.WindowAfter,
	}
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
