package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in capture.backend
const (
	BackendSHM    = "shm"
	BackendDMABuf = "dmabuf"
)

// CaptureConfig configures the screencopy engine
type CaptureConfig struct {
	// Backend is either "shm" or "dmabuf"
	Backend    string `json:"backend" yaml:"backend" mapstructure:"backend"`
	ShowCursor bool   `json:"show_cursor" yaml:"show_cursor" mapstructure:"show_cursor"`
	// Display is the Wayland socket name; empty uses $WAYLAND_DISPLAY
	Display string `json:"display" yaml:"display" mapstructure:"display"`
	// Output selects a wl_output by name; empty captures the first advertised output
	Output  string `json:"output" yaml:"output" mapstructure:"output"`
	DRMRoot string `json:"drm_root" yaml:"drm_root" mapstructure:"drm_root"`
}

// StreamConfig configures the frame pump driver and its outputs
type StreamConfig struct {
	FPS         int    `json:"fps" yaml:"fps" mapstructure:"fps"`
	JPEGQuality int    `json:"jpeg_quality" yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
	Pipeline    string `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
}

// Config represents the application configuration
type Config struct {
	Capture    CaptureConfig `json:"capture" yaml:"capture" mapstructure:"capture"`
	Stream     StreamConfig  `json:"stream" yaml:"stream" mapstructure:"stream"`
	ServerPort int           `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
	LogLevel   string        `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// Validate checks values a hand-edited file could get wrong
func (c *Config) Validate() error {
	switch c.Capture.Backend {
	case BackendSHM, BackendDMABuf:
	default:
		return fmt.Errorf("invalid capture.backend %q (use %s or %s)", c.Capture.Backend, BackendSHM, BackendDMABuf)
	}
	if c.Stream.FPS <= 0 {
		return fmt.Errorf("invalid stream.fps %d: must be positive", c.Stream.FPS)
	}
	if c.Stream.JPEGQuality < 1 || c.Stream.JPEGQuality > 100 {
		return fmt.Errorf("invalid stream.jpeg_quality %d: must be within 1-100", c.Stream.JPEGQuality)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port %d", c.ServerPort)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q (use: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Capture: CaptureConfig{
			Backend:    BackendSHM,
			ShowCursor: true,
			DRMRoot:    "/sys/class/drm",
		},
		Stream: StreamConfig{
			FPS:         30,
			JPEGQuality: 80,
		},
		ServerPort: 8080,
		LogLevel:   "info",
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	log        zerolog.Logger
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/wlrsrc/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "wlrsrc", "config.yaml"), nil
}

// NewManager creates a new configuration manager. An empty configFile selects
// DefaultPath. A missing file is created with defaults.
func NewManager(configFile string, log zerolog.Logger) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	m := &Manager{
		configPath: actualConfigPath,
		log:        log.With().Str("component", "config").Logger(),
	}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		m.log.Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	m.log.Debug().
		Str("path", m.configPath).
		Str("backend", m.config.Capture.Backend).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk, filling unset fields with defaults
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := *m.config
	return &cfg
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	m.log.Debug().Str("path", m.configPath).Msg("Config saved")
	return nil
}

// GetViper returns a viper instance loaded with the current configuration,
// for dotted-key access such as "capture.backend".
func (m *Manager) GetViper() (*viper.Viper, error) {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to load config into viper: %w", err)
	}
	return v, nil
}

// Lookup returns the value stored under a dotted key
func (m *Manager) Lookup(key string) (interface{}, error) {
	v, err := m.GetViper()
	if err != nil {
		return nil, err
	}
	if !v.IsSet(key) {
		return nil, fmt.Errorf("configuration key not found: %s", key)
	}
	return v.Get(key), nil
}

// Set parses value according to the type already stored under key,
// validates the result and saves it.
func (m *Manager) Set(key, value string) error {
	v, err := m.GetViper()
	if err != nil {
		return err
	}
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	switch v.Get(key).(type) {
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		v.Set(key, n)
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s (use: true or false)", key, value)
		}
		v.Set(key, b)
	default:
		v.Set(key, value)
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	return m.Save()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
