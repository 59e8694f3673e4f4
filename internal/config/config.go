package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/team997coders/hatchtracker/internal/logic/geometry"
	"github.com/team997coders/hatchtracker/internal/logic/motion"
)

// Mount transports.
const (
	TransportNone   = "none"
	TransportSerial = "serial"
	TransportSocket = "socket"
)

// CameraConfig selects the calibration.
type CameraConfig struct {
	Model    string  `yaml:"model"`     // lifecam3000, lifecam5000 or elp550
	WidthPx  float64 `yaml:"width_px"`  // 0 = 640
	HeightPx float64 `yaml:"height_px"` // 0 = 480
}

// MountConfig describes how to reach the pan/tilt mount.
type MountConfig struct {
	Transport     string `yaml:"transport"`       // none, serial or socket
	Port          string `yaml:"port"`            // serial device; empty scans every port
	Baud          int    `yaml:"baud"`            // serial baud rate
	Address       string `yaml:"address"`         // host:port for the socket transport
	ReadTimeoutMs int    `yaml:"read_timeout_ms"` // per-read reply timeout
	DialTimeoutMs int    `yaml:"dial_timeout_ms"` // socket connect timeout
}

// ControlConfig tunes the state machine and the tracking loop.
type ControlConfig struct {
	RetryBudget   int          `yaml:"retry_budget"`   // frames a target may go missing; 0 = 4
	LockThreshold float64      `yaml:"lock_threshold"` // normalized offset counted as aligned
	Signs         motion.Signs `yaml:"signs"`
	PID           motion.Gains `yaml:"pid"`
}

// CommandsConfig is the driver station command socket.
type CommandsConfig struct {
	Listen string `yaml:"listen"` // e.g. ":2222"; "off" disables
}

// VisionConfig is where rectangle frames come from.
type VisionConfig struct {
	Input string `yaml:"input"` // file path, "-" = stdin
}

// IndicatorConfig holds the BCM pins of the lights. 0 = not wired.
type IndicatorConfig struct {
	RingLightPin int `yaml:"ring_light_pin"`
	LockLEDPin   int `yaml:"lock_led_pin"`
}

// SnapshotsConfig is the snapshot database.
type SnapshotsConfig struct {
	Path string `yaml:"path"` // sqlite file; empty disables snapshots
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Mount     MountConfig     `yaml:"mount"`
	Control   ControlConfig   `yaml:"control"`
	Commands  CommandsConfig  `yaml:"commands"`
	Vision    VisionConfig    `yaml:"vision"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// ValidateConfigPath accepts only a .yaml file directly inside a directory
// named configs, with no parent references.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Camera.Model == "" {
		c.Camera.Model = "lifecam5000"
	}
	if c.Mount.Transport == "" {
		c.Mount.Transport = TransportSerial
	}
	if c.Mount.Baud == 0 {
		c.Mount.Baud = 57600
	}
	if c.Mount.ReadTimeoutMs == 0 {
		c.Mount.ReadTimeoutMs = 100
	}
	if c.Mount.DialTimeoutMs == 0 {
		c.Mount.DialTimeoutMs = 2000
	}
	if c.Control.RetryBudget == 0 {
		c.Control.RetryBudget = 4
	}
	if c.Control.LockThreshold == 0 {
		c.Control.LockThreshold = 0.05
	}
	if c.Control.Signs.Pan == 0 {
		c.Control.Signs.Pan = motion.DefaultSigns.Pan
	}
	if c.Control.Signs.Tilt == 0 {
		c.Control.Signs.Tilt = motion.DefaultSigns.Tilt
	}
	if c.Control.PID == (motion.Gains{}) {
		c.Control.PID = motion.DefaultGains
	}
	if c.Commands.Listen == "" {
		c.Commands.Listen = ":2222"
	}
	if c.Vision.Input == "" {
		c.Vision.Input = "-"
	}
}

// Validate checks ranges after defaults are filled.
func (c *Config) Validate() error {
	if _, err := geometry.ParseCameraModel(c.Camera.Model); err != nil {
		return fmt.Errorf("camera.model: %w", err)
	}
	if c.Camera.WidthPx < 0 || c.Camera.HeightPx < 0 {
		return fmt.Errorf("camera resolution must be >= 0, got %gx%g", c.Camera.WidthPx, c.Camera.HeightPx)
	}
	if (c.Camera.WidthPx == 0) != (c.Camera.HeightPx == 0) {
		return errors.New("camera.width_px and camera.height_px must be set together")
	}

	switch c.Mount.Transport {
	case TransportNone, TransportSerial:
	case TransportSocket:
		if c.Mount.Address == "" {
			return errors.New("mount.address is required for the socket transport")
		}
	default:
		return fmt.Errorf("mount.transport must be none, serial or socket, got %q", c.Mount.Transport)
	}
	if c.Mount.Baud <= 0 {
		return fmt.Errorf("mount.baud must be > 0, got %d", c.Mount.Baud)
	}
	if c.Mount.ReadTimeoutMs <= 0 || c.Mount.DialTimeoutMs <= 0 {
		return errors.New("mount timeouts must be > 0")
	}

	if c.Control.RetryBudget < 0 {
		return fmt.Errorf("control.retry_budget must be >= 0, got %d", c.Control.RetryBudget)
	}
	if !(c.Control.LockThreshold > 0 && c.Control.LockThreshold <= 1) {
		return fmt.Errorf("control.lock_threshold must be in (0, 1], got %g", c.Control.LockThreshold)
	}
	if err := c.Control.Signs.Validate(); err != nil {
		return fmt.Errorf("control.signs: %w", err)
	}
	for name, g := range map[string]float64{"kp": c.Control.PID.Kp, "ki": c.Control.PID.Ki, "kd": c.Control.PID.Kd} {
		if math.IsNaN(g) || math.IsInf(g, 0) || g < 0 {
			return fmt.Errorf("control.pid.%s must be a finite value >= 0, got %g", name, g)
		}
	}

	for name, pin := range map[string]int{"ring_light_pin": c.Indicator.RingLightPin, "lock_led_pin": c.Indicator.LockLEDPin} {
		if pin < 0 || pin > 27 {
			return fmt.Errorf("indicator.%s must be a BCM pin 0-27, got %d", name, pin)
		}
	}
	if c.Indicator.RingLightPin != 0 && c.Indicator.RingLightPin == c.Indicator.LockLEDPin {
		return errors.New("indicator pins must differ")
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be 0-4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// CommandsEnabled reports whether the command socket should be opened.
func (c *Config) CommandsEnabled() bool {
	return c.Commands.Listen != "off"
}

// ReadTimeout returns the mount reply timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Mount.ReadTimeoutMs) * time.Millisecond
}

// DialTimeout returns the mount socket connect timeout.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Mount.DialTimeoutMs) * time.Millisecond
}
