package courtfetch

import (
	"github.com/hazyhaar/hcbot/courtfetch/internal/config"
)

// Config is the top-level courtfetch configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome.
type BrowserConfig = config.BrowserConfig

// TimeoutConfig bounds every wait.
type TimeoutConfig = config.TimeoutConfig

// DelayConfig holds settle pauses.
type DelayConfig = config.DelayConfig

// Selectors are the portal's element selectors.
type Selectors = config.Selectors

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// Order selection policies.
const (
	PolicyLatest = config.PolicyLatest
	PolicyAll    = config.PolicyAll
)

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
