package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// APIPrefix is prepended to every versioned route; "/" stays unprefixed.
	APIPrefix string `mapstructure:"api_prefix"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type ShutdownConfig struct {
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

type MonitoringConfig struct {
	MetricsAddr    string `mapstructure:"metrics_addr"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
}

type Env string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

type Config struct {
	Env        Env              `mapstructure:"env"`
	App        AppConfig        `mapstructure:"app"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Shutdown   ShutdownConfig   `mapstructure:"shutdown"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

var ErrMissingKey = errors.New("missing required config key")

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// validate rejects configs lacking keys the host cannot start without.
func (c *Config) validate() error {
	if strings.Trim(c.HTTP.APIPrefix, "/") == "" {
		return fmt.Errorf("%w: http.api_prefix", ErrMissingKey)
	}
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("%w: http.port", ErrMissingKey)
	}
	if c.Shutdown.DrainTimeout <= 0 {
		return fmt.Errorf("%w: shutdown.drain_timeout must be positive", ErrMissingKey)
	}
	return nil
}

func New() (*Config, error) {
	v := viper.New()
	// Allow overriding config file via env:
	// - APP_CONFIG_FILE: absolute or relative file path (e.g., /etc/app/prod.yaml)
	// - APP_CONFIG_NAME: config base name without extension (default: "config")
	if file := os.Getenv("APP_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		cfgName := os.Getenv("APP_CONFIG_NAME")
		if cfgName == "" {
			cfgName = "config"
		}
		v.SetConfigName(cfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// an empty APP_MONITORING_METRICS_ADDR must be able to switch metrics off
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "dev")
	v.SetDefault("app.name", "apihost")
	v.SetDefault("app.version", "1.0")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.api_prefix", "api")
	v.SetDefault("shutdown.drain_timeout", "5s")
	v.SetDefault("monitoring.metrics_addr", ":9090")
	v.SetDefault("monitoring.pushgateway_url", "")
	v.SetDefault("monitoring.job", "apihost")
	v.SetDefault("monitoring.otlp_endpoint", "")
	v.SetDefault("monitoring.otlp_insecure", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
