package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SourceConfig points at one upstream metric domain endpoint.
type SourceConfig struct {
	URL     string        `mapstructure:"url" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Host       string  `mapstructure:"host"`
	Port       string  `mapstructure:"port"`
	AuthSecret string  `mapstructure:"auth_secret" validate:"required"`
	RateLimit  float64 `mapstructure:"rate_limit"`
	RateBurst  int     `mapstructure:"rate_burst"`
}

type MailConfig struct {
	GatewayURL string `mapstructure:"gateway_url"`
	APIKey     string `mapstructure:"api_key"`
	From       string `mapstructure:"from"`
}

// ArtifactConfig selects the artifact backend: "fs" or "s3".
type ArtifactConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`

	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type SchedulerConfig struct {
	Tick time.Duration `mapstructure:"tick"`
}

type AppConfig struct {
	Server    ServerConfig            `mapstructure:"server"`
	Sources   map[string]SourceConfig `mapstructure:"sources"`
	Mail      MailConfig              `mapstructure:"mail"`
	Artifacts ArtifactConfig          `mapstructure:"artifacts"`
	Scheduler SchedulerConfig         `mapstructure:"scheduler"`
	// Groups maps stakeholder group names to member emails.
	Groups map[string][]string `mapstructure:"groups"`
	// AggregateDeadline bounds one whole fan-out aggregation.
	AggregateDeadline time.Duration `mapstructure:"aggregate_deadline"`
}

// LoadConfig loads the application configuration from the given file.
// Environment variables override file values.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("REPORTLINE")
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("artifacts.backend", "fs")
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("scheduler.tick", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Server.AuthSecret == "" {
		return nil, fmt.Errorf("server.auth_secret is required")
	}
	for name, src := range config.Sources {
		if src.URL == "" {
			return nil, fmt.Errorf("sources.%s.url is required", name)
		}
	}

	return &config, nil
}
