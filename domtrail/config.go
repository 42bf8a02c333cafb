package domtrail

import (
	"github.com/hazyhaar/domtrail/domtrail/internal/config"
)

// Config is the top-level domtrail configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome.
type BrowserConfig = config.BrowserConfig

// StoreConfig selects the anchor cache.
type StoreConfig = config.StoreConfig

// PollConfig bounds the polling loops.
type PollConfig = config.PollConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// JobConfig is one page to extract from.
type JobConfig = config.JobConfig

// LocateConfig describes a locate pass.
type LocateConfig = config.LocateConfig

// AnchorConfig is a known anchor.
type AnchorConfig = config.AnchorConfig

// ExtractConfig configures record extraction.
type ExtractConfig = config.ExtractConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}
