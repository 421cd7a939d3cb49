// Package config provides configuration loading and validation for the CLI
// and the HTTP server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvToken          = "VERCEL_TOKEN"
	EnvProjectPrefix  = "CVPUBLISH_PROJECT_PREFIX"
	EnvMonitorTimeout = "CVPUBLISH_MONITOR_TIMEOUT"
	EnvAPIBaseURL     = "CVPUBLISH_API_BASE_URL"
	EnvIncludePDF     = "CVPUBLISH_INCLUDE_PDF"
	EnvChromeTimeout  = "CVPUBLISH_CHROME_TIMEOUT"
)

// Defaults applied by MergeWithDefaults(Defaults()).
const (
	DefaultProjectPrefix  = "svp"
	DefaultAPIBaseURL     = "https://api.vercel.com"
	DefaultMonitorTimeout = 2 * time.Minute
	DefaultChromeTimeout  = 30 * time.Second
	DefaultListenAddr     = ":8080"
)

// Duration is a time.Duration written as "90s" or "2m" in config files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"90s\": %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config represents the configuration that can be loaded from a JSON or YAML
// file. All fields are optional; missing values use defaults or CLI flags.
type Config struct {
	// Provider
	Token         string `json:"token,omitempty" yaml:"token,omitempty"`                   // Provider bearer token; prefer VERCEL_TOKEN
	APIBaseURL    string `json:"api_base_url,omitempty" yaml:"api_base_url,omitempty"`     // Provider API root
	ProjectPrefix string `json:"project_prefix,omitempty" yaml:"project_prefix,omitempty"` // Prefix of created project names
	Project       string `json:"project,omitempty" yaml:"project,omitempty"`               // Project name override

	// Rendering
	Template   string `json:"template,omitempty" yaml:"template,omitempty"` // Template key override
	IncludePDF bool   `json:"include_pdf,omitempty" yaml:"include_pdf,omitempty"`
	DarkMode   bool   `json:"dark_mode,omitempty" yaml:"dark_mode,omitempty"` // dark: follows prefers-color-scheme

	// Timeouts
	MonitorTimeout Duration `json:"monitor_timeout,omitempty" yaml:"monitor_timeout,omitempty"`
	ChromeTimeout  Duration `json:"chrome_timeout,omitempty" yaml:"chrome_timeout,omitempty"`

	// Server
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"` // Print detailed debug information
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		APIBaseURL:     DefaultAPIBaseURL,
		ProjectPrefix:  DefaultProjectPrefix,
		MonitorTimeout: Duration(DefaultMonitorTimeout),
		ChromeTimeout:  Duration(DefaultChromeTimeout),
		ListenAddr:     DefaultListenAddr,
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by
// extension (.yaml and .yml are YAML, anything else is JSON).
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production; empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvToken); ok {
		c.Token = v
	}
	if v, ok := get(EnvProjectPrefix); ok {
		c.ProjectPrefix = v
	}
	if v, ok := get(EnvAPIBaseURL); ok {
		c.APIBaseURL = v
	}
	if v, ok := get(EnvIncludePDF); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config error: %s: %w", EnvIncludePDF, err)
		}
		c.IncludePDF = b
	}
	if v, ok := get(EnvMonitorTimeout); ok {
		if err := c.MonitorTimeout.parse(v); err != nil {
			return fmt.Errorf("config error: %s: %w", EnvMonitorTimeout, err)
		}
	}
	if v, ok := get(EnvChromeTimeout); ok {
		if err := c.ChromeTimeout.parse(v); err != nil {
			return fmt.Errorf("config error: %s: %w", EnvChromeTimeout, err)
		}
	}
	return nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for the token since commands that do not talk to
// the provider run without one.
func (c *Config) Validate() error {
	if c.MonitorTimeout < 0 {
		return fmt.Errorf("config error: 'monitor_timeout' must be non-negative")
	}
	if c.ChromeTimeout < 0 {
		return fmt.Errorf("config error: 'chrome_timeout' must be non-negative")
	}
	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("config error: 'api_base_url' must be an http(s) URL: %s", c.APIBaseURL)
	}
	for _, r := range c.ProjectPrefix {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return fmt.Errorf("config error: 'project_prefix' may only contain a-z, 0-9 and '-': %s", c.ProjectPrefix)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Token == "" {
		result.Token = defaults.Token
	}
	if result.APIBaseURL == "" {
		result.APIBaseURL = defaults.APIBaseURL
	}
	if result.ProjectPrefix == "" {
		result.ProjectPrefix = defaults.ProjectPrefix
	}
	if result.Project == "" {
		result.Project = defaults.Project
	}
	if result.Template == "" {
		result.Template = defaults.Template
	}
	if result.ListenAddr == "" {
		result.ListenAddr = defaults.ListenAddr
	}

	// Durations: use default if zero
	if result.MonitorTimeout == 0 {
		result.MonitorTimeout = defaults.MonitorTimeout
	}
	if result.ChromeTimeout == 0 {
		result.ChromeTimeout = defaults.ChromeTimeout
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Load reads path (optional), applies the environment, fills defaults and
// validates the result.
func Load(path string) (Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return Config{}, err
	}
	return merged, nil
}
