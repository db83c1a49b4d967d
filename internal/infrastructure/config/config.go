package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/slowtty/internal/pacing"
)

// EnvPrefix prefixes every environment variable, e.g. SLOWTTY_RELAY_TICK.
const EnvPrefix = "SLOWTTY"

// FileEnv names the variable holding the configuration file path.
const FileEnv = "SLOWTTY_CONFIG"

// Buffer size limits.
const (
	MinBufferSize     = 2
	MaxBufferSize     = 1 << 20
	DefaultBufferSize = 1024
)

var (
	ErrInvalidTick   = errors.New("config: relay tick must be positive")
	ErrInvalidBuffer = fmt.Errorf("config: relay buffer size must be between %d and %d", MinBufferSize, MaxBufferSize)
	ErrInvalidDrain  = errors.New("config: relay drain ticks must be positive")
	ErrInvalidLag    = errors.New("config: relay max lag must not be negative")
	ErrInvalidRate   = errors.New("config: relay ticks per second must not be negative")
	ErrInvalidSpeed  = errors.New("config: terminal speed is not a supported line speed")
)

// Config holds all application configuration.
type Config struct {
	Relay    RelayConfig    `toml:"relay"`
	Terminal TerminalConfig `toml:"terminal"`
	Logging  LogConfig      `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// RelayConfig holds pacing configuration.
type RelayConfig struct {
	Tick           Duration `split_words:"true" toml:"tick"`
	TicksPerSecond int      `split_words:"true" toml:"ticks_per_second"`
	BufferSize     int      `split_words:"true" toml:"buffer_size"`
	DrainTicks     int      `split_words:"true" toml:"drain_ticks"`
	MaxLag         Duration `split_words:"true" toml:"max_lag"`
}

// TerminalConfig holds user terminal and child configuration.
type TerminalConfig struct {
	Raw   bool   `split_words:"true" toml:"raw"`
	Winch bool   `split_words:"true" toml:"winch"`
	Login bool   `split_words:"true" toml:"login"`
	Shell string `split_words:"true" toml:"shell"`
	// Speed sets the pty's line speed in bits per second. Zero keeps the
	// speed copied from the user's terminal.
	Speed int `split_words:"true" toml:"speed"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `split_words:"true" toml:"level"`
	Development bool   `split_words:"true" toml:"development"`
	File        string `split_words:"true" toml:"file"`
}

// MetricsConfig holds the status listener configuration.
type MetricsConfig struct {
	Address string `split_words:"true" toml:"address"`
}

// Duration is a time.Duration written as "40ms" in files and the
// environment.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load builds the configuration from the defaults, then the TOML file at
// path (or $SLOWTTY_CONFIG when path is empty; no file when both are
// empty), then SLOWTTY_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path. Unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the relay settings.
func (c *Config) Validate() error {
	r := c.Relay
	switch {
	case r.Tick.Duration <= 0:
		return ErrInvalidTick
	case r.BufferSize < MinBufferSize || r.BufferSize > MaxBufferSize:
		return ErrInvalidBuffer
	case r.DrainTicks <= 0:
		return ErrInvalidDrain
	case r.MaxLag.Duration < 0:
		return ErrInvalidLag
	case r.TicksPerSecond < 0:
		return ErrInvalidRate
	case c.Terminal.Speed < 0 || c.Terminal.Speed > 0 && !pacing.IsSupportedSpeed(c.Terminal.Speed):
		return fmt.Errorf("%w: %d", ErrInvalidSpeed, c.Terminal.Speed)
	}
	return nil
}

// Warnings describes valid settings that make pacing inexact. Quotas
// assume EffectiveTicksPerSecond ticks a second, so a tick that does not
// divide a second evenly runs the line fast or slow.
func (c *Config) Warnings() []string {
	r := c.Relay
	if r.Tick.Duration <= 0 {
		return nil
	}
	tps := r.EffectiveTicksPerSecond()
	covered := time.Duration(tps) * r.Tick.Duration
	if covered == time.Second {
		return nil
	}
	skew := (float64(time.Second)/float64(covered) - 1) * 100
	return []string{fmt.Sprintf("relay tick %s at %d ticks per second paces %+.1f%% off the line speed",
		r.Tick.Duration, tps, skew)}
}

// EffectiveTicksPerSecond returns the configured rate, derived from Tick
// when unset.
func (r RelayConfig) EffectiveTicksPerSecond() int {
	if r.TicksPerSecond > 0 {
		return r.TicksPerSecond
	}
	if r.Tick.Duration <= 0 {
		return 1
	}
	return max(int(time.Second/r.Tick.Duration), 1)
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			Tick:       Duration{40 * time.Millisecond},
			BufferSize: DefaultBufferSize,
			DrainTicks: 6,
			MaxLag:     Duration{time.Second},
		},
		Terminal: TerminalConfig{
			Raw:   true,
			Winch: true,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}
