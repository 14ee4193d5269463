package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Store      StoreConfig      `mapstructure:"store"`
	History    HistoryConfig    `mapstructure:"history"`
	WriteLimit WriteLimitConfig `mapstructure:"write_limit"`
	RTC        RTCConfig        `mapstructure:"rtc"`
	// MaxDropped is how many push frames in a row a slow client may lose
	// before its stream is closed.
	MaxDropped int `mapstructure:"max_dropped"`
}

type StoreConfig struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type WriteLimitConfig struct {
	Count  int           `mapstructure:"count"`
	Window time.Duration `mapstructure:"window"`
}

type RTCConfig struct {
	STUN []string `mapstructure:"stun"`
}

const envPrefix = "PLAYGROUND"

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName on top of the defaults. A missing file is not an
// error; PLAYGROUND_* variables override both, e.g. PLAYGROUND_STORE_DRIVER.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "playground")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "playground.db")
	v.SetDefault("write_limit.count", 20)
	v.SetDefault("write_limit.window", "1s")
	v.SetDefault("rtc.stun", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("max_dropped", 8)

	var notFound viper.ConfigFileNotFoundError
	switch err := v.ReadInConfig(); {
	case err == nil:
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Str("store", cfg.Store.Driver).
		Bool("history", cfg.History.Enabled).
		Msg("config")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Secret == "" {
		return fmt.Errorf("config: secret is required for the session cookie")
	}
	if c.Port <= 0 {
		return fmt.Errorf("config: bad port %d", c.Port)
	}
	return nil
}
