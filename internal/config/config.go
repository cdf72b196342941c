package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"senseled/internal/device"
	"senseled/internal/frame"
	appLog "senseled/internal/log"
	"senseled/internal/scheduler"
)

// NOTE: This file provides the configuration model and YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// DeviceConfig selects the I2C bus and the LED controller on it.
type DeviceConfig struct {
	// Bus is the periph.io I2C bus name; "" picks the first bus.
	Bus string `yaml:"bus" json:"bus"`
	// Address is the 7-bit device address (0x46 for the Sense HAT).
	Address uint16 `yaml:"address" json:"address"`
	// SpeedKHz is the bus clock in kHz (100 = standard mode, 400 = fast).
	SpeedKHz int `yaml:"speed_khz" json:"speed_khz"`
}

// AnimationConfig controls the perimeter animation session.
type AnimationConfig struct {
	// PeriodMs is the time between ticks.
	PeriodMs int `yaml:"period_ms" json:"period_ms"`
	// Ticks is the tick budget of one session.
	Ticks int `yaml:"ticks" json:"ticks"`
}

// BitmapConfig describes the static image shown by the bitmap mode.
type BitmapConfig struct {
	// Color is the lit colour as "#rrggbb"; it is quantised to Depth.
	Color string `yaml:"color" json:"color"`
	// Rows are 8 strings of 8 cells, '#' lit and '.' dark.
	Rows []string `yaml:"rows" json:"rows"`
	// HoldMs is how long the bitmap stays up before the display is cleared.
	HoldMs int `yaml:"hold_ms" json:"hold_ms"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web API (serve mode).
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Device DeviceConfig `yaml:"device" json:"device"`

	// Layout is "planar" (three 64-byte planes) or "row" (24 bytes per row).
	Layout string `yaml:"layout" json:"layout"`

	// Depth is "rgb565" or "rgb888".
	Depth string `yaml:"depth" json:"depth"`

	Animation AnimationConfig `yaml:"animation" json:"animation"`

	Bitmap BitmapConfig `yaml:"bitmap" json:"bitmap"`

	// Schedule is a cron spec (e.g. "*/15 * * * *") that starts an animation
	// session in serve mode. Empty disables scheduled sessions.
	Schedule string `yaml:"schedule" json:"schedule"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// Defaults.
const (
	defaultListen   = "127.0.0.1:8080"
	defaultLogLevel = "info"
	defaultSpeedKHz = 100
	defaultLayout   = "planar"
	defaultDepth    = "rgb565"
	defaultPeriodMs = 50
	defaultTicks    = 1000
	defaultColor    = "#003c78"
	defaultHoldMs   = 2000
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		LogLevel: defaultLogLevel,
		Device: DeviceConfig{
			Bus:      "",
			Address:  device.DefaultAddr,
			SpeedKHz: defaultSpeedKHz,
		},
		Layout: defaultLayout,
		Depth:  defaultDepth,
		Animation: AnimationConfig{
			PeriodMs: defaultPeriodMs,
			Ticks:    defaultTicks,
		},
		Bitmap: BitmapConfig{
			Color:  defaultColor,
			Rows:   append([]string(nil), frame.DefaultMask...),
			HoldMs: defaultHoldMs,
		},
		Schedule:  "",
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Device.Address == 0 {
		c.Device.Address = device.DefaultAddr
	}
	if c.Device.SpeedKHz <= 0 {
		c.Device.SpeedKHz = defaultSpeedKHz
	}
	// Unknown layout/depth are left alone so Validate can report them.
	if c.Layout == "" {
		c.Layout = defaultLayout
	}
	if c.Depth == "" {
		c.Depth = defaultDepth
	}
	if c.Animation.PeriodMs <= 0 {
		c.Animation.PeriodMs = defaultPeriodMs
	}
	if c.Animation.Ticks <= 0 {
		c.Animation.Ticks = defaultTicks
	}
	if c.Bitmap.Color == "" {
		c.Bitmap.Color = defaultColor
	}
	if len(c.Bitmap.Rows) == 0 {
		c.Bitmap.Rows = append([]string(nil), frame.DefaultMask...)
	}
	if c.Bitmap.HoldMs < 0 {
		c.Bitmap.HoldMs = 0
	}
}

// Validate checks the values Normalize cannot fix.
func (c *Config) Validate() error {
	var errs []error
	if c.Device.Address > 0x7F {
		errs = append(errs, fmt.Errorf("config: device address 0x%x is not a 7-bit address", c.Device.Address))
	}
	if _, err := frame.ParseLayout(c.Layout); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	d, err := frame.ParseDepth(c.Depth)
	if err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if _, err := frame.ParseColor(c.Bitmap.Color, d); err != nil {
		errs = append(errs, fmt.Errorf("config: bitmap color: %w", err))
	}
	if _, err := frame.FromMask(c.Bitmap.Rows, frame.Color{}); err != nil {
		errs = append(errs, fmt.Errorf("config: bitmap rows: %w", err))
	}
	if c.Schedule != "" {
		if err := scheduler.ValidateSpec(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Encoder returns the frame encoder described by Layout and Depth.
func (c *Config) Encoder() (frame.Encoder, error) {
	l, err := frame.ParseLayout(c.Layout)
	if err != nil {
		return frame.Encoder{}, err
	}
	d, err := frame.ParseDepth(c.Depth)
	if err != nil {
		return frame.Encoder{}, err
	}
	return frame.Encoder{Depth: d, Layout: l}, nil
}

// DeviceOptions converts the device section for device.Open.
func (c *Config) DeviceOptions() device.Options {
	return device.Options{
		Bus:   c.Device.Bus,
		Addr:  c.Device.Address,
		Speed: physic.Frequency(c.Device.SpeedKHz) * physic.KiloHertz,
	}
}

// Period is the animation tick period.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Animation.PeriodMs) * time.Millisecond
}

// Hold is how long the bitmap stays up.
func (c *Config) Hold() time.Duration {
	return time.Duration(c.Bitmap.HoldMs) * time.Millisecond
}

// BitmapGrid builds the configured bitmap in the configured depth.
func (c *Config) BitmapGrid() (frame.Grid, error) {
	d, err := frame.ParseDepth(c.Depth)
	if err != nil {
		return frame.Grid{}, err
	}
	on, err := frame.ParseColor(c.Bitmap.Color, d)
	if err != nil {
		return frame.Grid{}, err
	}
	return frame.FromMask(c.Bitmap.Rows, on)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".senseled-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
