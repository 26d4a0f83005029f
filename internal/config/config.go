// Package config provides configuration management for the injection daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"hidject/internal/inject"
	"hidject/internal/keymap"
	"hidject/internal/protocol"
)

// Environment variables that override file values.
const (
	EnvTarget   = "HIDJECT_TARGET"
	EnvWorkMode = "HIDJECT_WORKMODE"
	EnvAPIToken = "HIDJECT_API_TOKEN"
	EnvBridge   = "HIDJECT_BRIDGE"
)

// Config represents the application configuration
type Config struct {
	// Target is the RF address of the receiver. Empty or all-zero selects USB injection.
	Target string `yaml:"target" json:"target"`

	// WorkMode selects the receiver family (unifying, lightspeed, g700, g305, all)
	WorkMode string `yaml:"workmode" json:"workmode"`

	// OnSuccess and OnFail are the post-script actions
	OnSuccess string `yaml:"on_success" json:"on_success"`
	OnFail    string `yaml:"on_fail" json:"on_fail"`

	// USBTrigger holds USB injection until the host writes the LED report
	USBTrigger      string        `yaml:"usb_trigger" json:"usb_trigger"`
	USBTriggerDelay time.Duration `yaml:"usb_trigger_delay" json:"usb_trigger_delay"`

	// Language is the default keyboard layout
	Language string `yaml:"language" json:"language"`

	Debug bool `yaml:"debug" json:"debug"`

	API   APIConfig   `yaml:"api" json:"api"`
	Radio RadioConfig `yaml:"radio" json:"radio"`
	USB   USBConfig   `yaml:"usb" json:"usb"`
	Store StoreConfig `yaml:"store" json:"store"`
}

// APIConfig contains the HTTP control API settings
type APIConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Port is the port for the API server (default: 18081)
	Port int `yaml:"port" json:"port"`

	// Token is an optional bearer token for API requests
	Token string `yaml:"token,omitempty" json:"token,omitempty"`
}

// RadioConfig points at the radio bridge daemon
type RadioConfig struct {
	BridgeAddr string `yaml:"bridge_addr" json:"bridge_addr"`
}

// USBConfig names the HID gadget device nodes
type USBConfig struct {
	KeyboardDevice string `yaml:"keyboard_device" json:"keyboard_device"`
	MouseDevice    string `yaml:"mouse_device" json:"mouse_device"`
}

// StoreConfig locates the task database
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		WorkMode:        string(protocol.WorkModeUnifying),
		OnSuccess:       string(inject.ActionContinue),
		OnFail:          string(inject.ActionContinue),
		USBTrigger:      string(inject.TriggerImmediate),
		USBTriggerDelay: inject.DefaultTriggerDelay,
		Language:        "us",
		API: APIConfig{
			Enabled: true,
			Port:    18081,
		},
		Radio: RadioConfig{BridgeAddr: "127.0.0.1:7700"},
		USB: USBConfig{
			KeyboardDevice: "/dev/hidg0",
			MouseDevice:    "/dev/hidg1",
		},
	}
}

// Validate rejects unknown enum values and malformed addresses.
func (c *Config) Validate() error {
	var errs []error
	if _, err := protocol.ParseAddress(c.Target); err != nil {
		errs = append(errs, err)
	}
	if _, err := protocol.ParseWorkMode(c.WorkMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := inject.ParseAction(c.OnSuccess); err != nil {
		errs = append(errs, fmt.Errorf("on_success: %w", err))
	}
	if _, err := inject.ParseAction(c.OnFail); err != nil {
		errs = append(errs, fmt.Errorf("on_fail: %w", err))
	}
	if _, err := inject.ParseTrigger(c.USBTrigger); err != nil {
		errs = append(errs, err)
	}
	if c.USBTriggerDelay < 0 {
		errs = append(errs, fmt.Errorf("usb_trigger_delay must not be negative"))
	}
	if c.Language != "" {
		if _, err := keymap.Get(c.Language); err != nil {
			errs = append(errs, err)
		}
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	return errors.Join(errs...)
}

// InjectOptions converts the configuration into processor options.
// The configuration must have passed Validate.
func (c *Config) InjectOptions() (inject.Options, error) {
	addr, err := protocol.ParseAddress(c.Target)
	if err != nil {
		return inject.Options{}, err
	}
	mode, err := protocol.ParseWorkMode(c.WorkMode)
	if err != nil {
		return inject.Options{}, err
	}
	onSuccess, err := inject.ParseAction(c.OnSuccess)
	if err != nil {
		return inject.Options{}, err
	}
	onFail, err := inject.ParseAction(c.OnFail)
	if err != nil {
		return inject.Options{}, err
	}
	trigger, err := inject.ParseTrigger(c.USBTrigger)
	if err != nil {
		return inject.Options{}, err
	}
	return inject.Options{
		Address:      addr,
		WorkMode:     mode,
		OnSuccess:    onSuccess,
		OnFail:       onFail,
		USBTrigger:   trigger,
		TriggerDelay: c.USBTriggerDelay,
		Language:     c.Language,
		Debug:        c.Debug,
	}, nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a new configuration manager. An empty path selects
// the per-user default location.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		p, err := getConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}, nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	configDir = filepath.Join(configDir, "hidject")

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.yaml"), nil
}

// Path returns the configuration file location.
func (m *Manager) Path() string {
	return m.configPath
}

// LoadEnvFiles loads .env files into the process environment. Missing files
// are skipped; existing variables are not overwritten.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from disk, applies environment overrides and
// validates the result.
func (m *Manager) Load() error {
	m.mu.Lock()

	cfg := DefaultConfig()
	data, err := os.ReadFile(m.configPath)
	switch {
	case os.IsNotExist(err):
		// No config file, use defaults
	case err != nil:
		m.mu.Unlock()
		return err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("config: parse %s: %w", m.configPath, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("config: %w", err)
	}
	m.config = cfg
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvTarget); ok {
		cfg.Target = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvWorkMode); ok {
		cfg.WorkMode = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvAPIToken); ok {
		cfg.API.Token = v
	}
	if v, ok := os.LookupEnv(EnvBridge); ok {
		cfg.Radio.BridgeAddr = strings.TrimSpace(v)
	}
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}
	log.Infof("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0600)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.config
}

// Set validates and replaces the configuration
func (m *Manager) Set(config Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	m.mu.Lock()
	m.config = &config
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
