// Package config handles configuration persistence for SignalTap.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	PollRate time.Duration  `yaml:"poll_rate"`
	Target   TargetConfig   `yaml:"target,omitempty"`
	UI       UIConfig       `yaml:"ui,omitempty"`
	MQTT     []MQTTConfig   `yaml:"mqtt,omitempty"`
	Valkey   []ValkeyConfig `yaml:"valkey,omitempty"`
	Kafka    []KafkaConfig  `yaml:"kafka,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`

	// dataMu protects all fields. Callers that modify config should Lock(),
	// modify, then call UnlockAndSave().
	dataMu sync.Mutex `yaml:"-"`
}

// APIConfig locates the backend HTTP API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// TargetConfig is the PLC preselected in the connect form.
type TargetConfig struct {
	Address string `yaml:"address,omitempty"`
	Slot    int    `yaml:"slot,omitempty"`
}

// IsZero reports whether no target is configured.
func (t TargetConfig) IsZero() bool {
	return t.Address == "" && t.Slot == 0
}

// Color modes for the terminal UI.
const (
	ColorDark  = "dark"
	ColorLight = "light"
	ColorMono  = "mono"
)

// ColorModes lists the color modes in the order F6 cycles through them.
var ColorModes = []string{ColorDark, ColorLight, ColorMono}

// UIConfig stores user interface preferences.
type UIConfig struct {
	ColorMode      string   `yaml:"color_mode,omitempty"`
	ASCIIMode      bool     `yaml:"ascii_mode,omitempty"` // ASCII borders for terminals without Unicode
	BoldHeaders    bool     `yaml:"bold_headers,omitempty"`
	TagTypes       []string `yaml:"tag_types,omitempty"` // type checkboxes shown in the tag table
	HideUnreadable bool     `yaml:"hide_unreadable,omitempty"`
}

// Payload formats understood by the republishers.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// MQTTConfig holds MQTT republisher configuration.
type MQTTConfig struct {
	Name      string `yaml:"name"`
	Enabled   bool   `yaml:"enabled"`
	Broker    string `yaml:"broker"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	ClientID  string `yaml:"client_id"`
	RootTopic string `yaml:"root_topic,omitempty"` // default "signaltap"
	UseTLS    bool   `yaml:"use_tls,omitempty"`
	Format    string `yaml:"format,omitempty"`
}

// ValkeyConfig holds Valkey/Redis republisher configuration.
type ValkeyConfig struct {
	Name           string        `yaml:"name"`
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address"` // host:port
	Password       string        `yaml:"password,omitempty"`
	Database       int           `yaml:"database"`
	KeyPrefix      string        `yaml:"key_prefix,omitempty"` // default "signaltap"
	UseTLS         bool          `yaml:"use_tls,omitempty"`
	KeyTTL         time.Duration `yaml:"key_ttl,omitempty"` // 0 = no expiry
	PublishChanges bool          `yaml:"publish_changes,omitempty"`
	Format         string        `yaml:"format,omitempty"`
}

// KafkaConfig holds Kafka cluster configuration.
type KafkaConfig struct {
	Name          string        `yaml:"name"`
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic,omitempty"` // default "signaltap-tags"
	UseTLS        bool          `yaml:"use_tls,omitempty"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify,omitempty"`
	SASLMechanism string        `yaml:"sasl_mechanism,omitempty"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string        `yaml:"username,omitempty"`
	Password      string        `yaml:"password,omitempty"`
	RequiredAcks  int           `yaml:"required_acks,omitempty"` // 0 or -1 = all replicas, 1 = leader
	BatchTimeout  time.Duration `yaml:"batch_timeout,omitempty"`
	Format        string        `yaml:"format,omitempty"`
}

// LogConfig configures the log files.
type LogConfig struct {
	File        string `yaml:"file,omitempty"`
	DebugFile   string `yaml:"debug_file,omitempty"`
	DebugFilter string `yaml:"debug_filter,omitempty"` // comma-separated components
}

// Defaults.
const (
	DefaultBaseURL  = "http://localhost:8000/api"
	DefaultTimeout  = 10 * time.Second
	DefaultPollRate = 2 * time.Second
)

// DefaultTagTypes are the types enabled in the tag table out of the box.
var DefaultTagTypes = []string{"BOOL", "INT", "DINT", "REAL", "TIMER", "STRING"}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		PollRate: DefaultPollRate,
		UI: UIConfig{
			ColorMode:   ColorDark,
			BoldHeaders: true,
			TagTypes:    append([]string(nil), DefaultTagTypes...),
		},
		MQTT:   []MQTTConfig{},
		Valkey: []ValkeyConfig{},
		Kafka:  []KafkaConfig{},
	}
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".signaltap", "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults restores defaults for fields an older or hand-written file left empty.
func (c *Config) fillDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = DefaultTimeout
	}
	if c.PollRate <= 0 {
		c.PollRate = DefaultPollRate
	}
	if c.UI.ColorMode == "" {
		c.UI.ColorMode = ColorDark
	}
	if len(c.UI.TagTypes) == 0 {
		c.UI.TagTypes = append([]string(nil), DefaultTagTypes...)
	}
}

// Lock acquires the config data mutex for exclusive access.
func (c *Config) Lock() { c.dataMu.Lock() }

// Unlock releases the config data mutex without saving.
func (c *Config) Unlock() { c.dataMu.Unlock() }

// Save acquires the lock, marshals and writes the file.
func (c *Config) Save(path string) error {
	c.dataMu.Lock()
	return c.saveLocked(path)
}

// UnlockAndSave marshals, releases the lock, then writes.
// The caller must already hold the lock via Lock().
func (c *Config) UnlockAndSave(path string) error {
	return c.saveLocked(path)
}

func (c *Config) saveLocked(path string) error {
	data, err := yaml.Marshal(c)
	c.dataMu.Unlock()

	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// NextColorMode returns the mode following current in ColorModes.
func NextColorMode(current string) string {
	for i, m := range ColorModes {
		if m == current {
			return ColorModes[(i+1)%len(ColorModes)]
		}
	}
	return ColorModes[0]
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base_url %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}
	if c.PollRate <= 0 {
		return fmt.Errorf("poll_rate must be positive")
	}
	if c.Target.Slot < 0 {
		return fmt.Errorf("target slot must be >= 0")
	}
	switch c.UI.ColorMode {
	case "", ColorDark, ColorLight, ColorMono:
	default:
		return fmt.Errorf("unknown color_mode %q", c.UI.ColorMode)
	}
	for _, m := range c.MQTT {
		if err := validateFormat("mqtt", m.Name, m.Format); err != nil {
			return err
		}
		if m.Enabled && m.Broker == "" {
			return fmt.Errorf("mqtt %q: broker is required", m.Name)
		}
	}
	for _, v := range c.Valkey {
		if err := validateFormat("valkey", v.Name, v.Format); err != nil {
			return err
		}
		if v.Enabled && v.Address == "" {
			return fmt.Errorf("valkey %q: address is required", v.Name)
		}
	}
	for _, k := range c.Kafka {
		if err := validateFormat("kafka", k.Name, k.Format); err != nil {
			return err
		}
		if k.Enabled && len(k.Brokers) == 0 {
			return fmt.Errorf("kafka %q: at least one broker is required", k.Name)
		}
	}
	return nil
}

func validateFormat(kind, name, format string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON, FormatMsgpack:
		return nil
	}
	return fmt.Errorf("%s %q: unknown format %q", kind, name, format)
}
