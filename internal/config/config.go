// Package config loads the bot configuration from markov.yaml and MARKOV_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/markov/internal/core/markov"
	"github.com/zeusync/markov/internal/core/observability/log"
)

var ErrInvalidConfig = errors.New("invalid config")

// DefaultPath is where the config is written when no file was found.
const DefaultPath = "markov.yaml"

// Config is the whole bot configuration. ResponseRates is a list rather than a
// map so that room ids keep their case.
type Config struct {
	Backend             string        `yaml:"backend" mapstructure:"backend"`
	BrainPath           string        `yaml:"brain_path" mapstructure:"brain_path"`
	SaveInterval        time.Duration `yaml:"save_interval" mapstructure:"save_interval"`
	Learning            bool          `yaml:"learning" mapstructure:"learning"`
	DisplayName         string        `yaml:"display_name" mapstructure:"display_name"`
	DefaultResponseRate float64       `yaml:"default_response_rate" mapstructure:"default_response_rate"`
	ResponseRates       []RoomRate    `yaml:"response_rates" mapstructure:"response_rates"`
	TrainWorkers        int           `yaml:"train_workers" mapstructure:"train_workers"`
	MaxReplyWords       int           `yaml:"max_reply_words" mapstructure:"max_reply_words"`
	Log                 LogConfig     `yaml:"log" mapstructure:"log"`
	Server              ServerConfig  `yaml:"server" mapstructure:"server"`

	mu   sync.RWMutex
	path string
}

type RoomRate struct {
	Room string  `yaml:"room" mapstructure:"room"`
	Rate float64 `yaml:"rate" mapstructure:"rate"`
}

type LogConfig struct {
	Level    string `yaml:"level" mapstructure:"level"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
	// Token, when set, must accompany every gateway request.
	Token      string `yaml:"token" mapstructure:"token"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:             markov.BackendMarkov,
		BrainPath:           "brain.txt",
		SaveInterval:        markov.DefaultSaveInterval,
		Learning:            true,
		DisplayName:         "Markov",
		DefaultResponseRate: 0.10,
		TrainWorkers:        4,
		MaxReplyWords:       markov.DefaultMaxWords,
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		path: DefaultPath,
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("backend", d.Backend)
	v.SetDefault("brain_path", d.BrainPath)
	v.SetDefault("save_interval", d.SaveInterval)
	v.SetDefault("learning", d.Learning)
	v.SetDefault("display_name", d.DisplayName)
	v.SetDefault("default_response_rate", d.DefaultResponseRate)
	v.SetDefault("train_workers", d.TrainWorkers)
	v.SetDefault("max_reply_words", d.MaxReplyWords)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.token", d.Server.Token)
}

// Load reads the config file at path, or searches for markov.yaml in the working
// directory and $XDG_CONFIG_HOME/markov when path is empty. A missing file is
// not an error; found reports whether one was read. Environment variables such
// as MARKOV_BRAIN_PATH or MARKOV_LOG_LEVEL override the file.
func Load(path string) (cfg *Config, found bool, err error) {
	cfg = DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		cfg.path = path
	} else {
		v.SetConfigName("markov")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "markov"))
		}
	}

	v.SetEnvPrefix("MARKOV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	found = true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("config: read: %w", err)
		}
		found = false
	}
	if used := v.ConfigFileUsed(); found && used != "" {
		cfg.path = used
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, false, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, found, nil
}

// Validate checks the configuration for errors. Failures match ErrInvalidConfig.
func (c *Config) Validate() error {
	if !slices.Contains(markov.Backends(), c.Backend) {
		return fmt.Errorf("%w: backend %q (must be one of %s)", ErrInvalidConfig, c.Backend, strings.Join(markov.Backends(), ", "))
	}
	if c.Backend != markov.BackendEcho && c.BrainPath == "" {
		return fmt.Errorf("%w: brain_path is required", ErrInvalidConfig)
	}
	if c.SaveInterval <= 0 {
		return fmt.Errorf("%w: save_interval must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.DisplayName) == "" {
		return fmt.Errorf("%w: display_name is required", ErrInvalidConfig)
	}
	if !validRate(c.DefaultResponseRate) {
		return fmt.Errorf("%w: default_response_rate %v is outside [0, 1]", ErrInvalidConfig, c.DefaultResponseRate)
	}
	for _, r := range c.ResponseRates {
		if r.Room == "" {
			return fmt.Errorf("%w: response rate without a room", ErrInvalidConfig)
		}
		if !validRate(r.Rate) {
			return fmt.Errorf("%w: response rate %v of room %q is outside [0, 1]", ErrInvalidConfig, r.Rate, r.Room)
		}
	}
	if c.TrainWorkers < 1 {
		return fmt.Errorf("%w: train_workers must be at least 1", ErrInvalidConfig)
	}
	if c.MaxReplyWords < 3 {
		return fmt.Errorf("%w: max_reply_words must be at least 3", ErrInvalidConfig)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return fmt.Errorf("%w: log.encoding %q (must be json or console)", ErrInvalidConfig, c.Log.Encoding)
	}
	return nil
}

func validRate(rate float64) bool {
	return rate >= 0 && rate <= 1
}

// Path is the file the config was loaded from, or DefaultPath.
func (c *Config) Path() string {
	return c.path
}

// ResponseRate returns the chance of an unprompted reply in room.
func (c *Config) ResponseRate(room string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.ResponseRates {
		if r.Room == room {
			return r.Rate
		}
	}
	return c.DefaultResponseRate
}

// SetResponseRate overrides the response rate of room.
func (c *Config) SetResponseRate(room string, rate float64) error {
	if !validRate(rate) {
		return fmt.Errorf("%w: response rate %v is outside [0, 1]", ErrInvalidConfig, rate)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range c.ResponseRates {
		if r.Room == room {
			c.ResponseRates[i].Rate = rate
			return nil
		}
	}
	c.ResponseRates = append(c.ResponseRates, RoomRate{Room: room, Rate: rate})
	return nil
}

// Write saves the config as YAML to path, or to Path when path is empty.
func (c *Config) Write(path string) error {
	if path == "" {
		path = c.path
	}

	c.mu.RLock()
	data, err := yaml.Marshal(c)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: write: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	return DefaultConfig().Write(path)
}
