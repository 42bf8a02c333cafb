// Package config loads domtrail's YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/domtrail/domtrail/extract"
	"github.com/hazyhaar/domtrail/domtrail/tree"
)

// Default markers of the timeline flow: the page is seeded with two posts
// rendering these texts, the second one last.
const (
	MarkerUpper = "__________1__________"
	MarkerLower = "__________0__________"
)

// Config is the top-level configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Store   StoreConfig   `yaml:"store"`
	Poll    PollConfig    `yaml:"poll"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	Jobs    []JobConfig   `yaml:"jobs"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`            // DevTools WebSocket URL; empty launches Chrome
	Stealth          string        `yaml:"stealth"`           // plain | headless | headful
	ResourceBlocking []string      `yaml:"resource_blocking"` // images, fonts, media, stylesheets
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// StoreConfig selects the anchor cache.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory | sqlite
	DSN    string `yaml:"dsn"`
}

// PollConfig bounds the polling loops. MaxAttempts defaults to 30; a
// negative value and a zero Timeout mean "until cancelled".
type PollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type      string        `yaml:"type"`      // stdout | file | history
	Path      string        `yaml:"path"`      // file or SQLite path
	Retention time.Duration `yaml:"retention"` // history: drop older entries on open
}

// JobConfig is one page to extract from.
type JobConfig struct {
	Name    string         `yaml:"name"`
	URL     string         `yaml:"url"`
	Locate  LocateConfig   `yaml:"locate"`
	Anchors []AnchorConfig `yaml:"anchors"`
	Extract ExtractConfig  `yaml:"extract"`
	// Poll overrides the global poll settings for this job.
	Poll *PollConfig `yaml:"poll"`
}

// LocateConfig describes the locate pass that produces a fresh anchor.
type LocateConfig struct {
	Texts []string `yaml:"texts"`
	Await string   `yaml:"await"`
	// Strict rejects forks whose residual suffixes differ.
	Strict bool `yaml:"strict"`
}

// AnchorConfig is a known anchor, tried before any cached or located one.
type AnchorConfig struct {
	Upper tree.Path `yaml:"upper"`
	Lower tree.Path `yaml:"lower"`
}

// ExtractConfig configures record extraction.
type ExtractConfig struct {
	Tag       string `yaml:"tag"`
	IDPattern string `yaml:"id_pattern"`
	UnknownID string `yaml:"unknown_id"`
	Focus     string `yaml:"focus"`
	Mode      string `yaml:"mode"` // prefix | elements
}

// Extractor builds and validates the extractor for this job.
func (e ExtractConfig) Extractor() (*extract.Extractor, error) {
	ex := &extract.Extractor{
		Tag:       e.Tag,
		IDPattern: e.IDPattern,
		UnknownID: e.UnknownID,
		Focus:     e.Focus,
		Mode:      extract.Mode(e.Mode),
	}
	if err := ex.Compile(); err != nil {
		return nil, err
	}
	return ex, nil
}

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollFor returns the effective poll settings of job.
func (c *Config) PollFor(job JobConfig) PollConfig {
	p := c.Poll
	if job.Poll == nil {
		return p
	}
	if job.Poll.Interval > 0 {
		p.Interval = job.Poll.Interval
	}
	if job.Poll.MaxAttempts != 0 {
		p.MaxAttempts = job.Poll.MaxAttempts
	}
	if job.Poll.Timeout != 0 {
		p.Timeout = job.Poll.Timeout
	}
	return p
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: store.driver %q: want memory or sqlite", c.Store.Driver)
	}
	switch c.Browser.Stealth {
	case "plain", "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth %q: want plain, headless or headful", c.Browser.Stealth)
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "file", "history":
			if s.Path == "" {
				return fmt.Errorf("config: %s sink without path", s.Type)
			}
			if s.Retention < 0 {
				return fmt.Errorf("config: %s sink: negative retention", s.Type)
			}
		default:
			return fmt.Errorf("config: sink type %q: want stdout, file or history", s.Type)
		}
	}
	seen := make(map[string]bool, len(c.Jobs))
	for i, j := range c.Jobs {
		if j.Name == "" {
			return fmt.Errorf("config: jobs[%d]: name is required", i)
		}
		if err := CheckJobName(j.Name); err != nil {
			return err
		}
		if seen[j.Name] {
			return fmt.Errorf("config: job %q defined twice", j.Name)
		}
		seen[j.Name] = true
		if j.URL == "" {
			return fmt.Errorf("config: job %q: url is required", j.Name)
		}
		if n := len(j.Locate.Texts); n != 0 && n != 2 {
			return fmt.Errorf("config: job %q: locate.texts wants 2 texts, got %d", j.Name, n)
		}
		if _, err := j.Extract.Extractor(); err != nil {
			return fmt.Errorf("config: job %q: %w", j.Name, err)
		}
	}
	return nil
}

// TaskSep joins a job name to the suffix of its secondary poll tasks
// ("feed/locate"). Job names cannot contain it.
const TaskSep = "/"

// CheckJobName rejects names that could collide with another job's tasks.
func CheckJobName(name string) error {
	if name == "" {
		return fmt.Errorf("config: job name is required")
	}
	if strings.Contains(name, TaskSep) {
		return fmt.Errorf("config: job %q: name must not contain %q", name, TaskSep)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = ":memory:"
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = time.Second
	}
	if c.Poll.MaxAttempts == 0 {
		c.Poll.MaxAttempts = 30
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	for i := range c.Jobs {
		j := &c.Jobs[i]
		if len(j.Locate.Texts) == 0 && len(j.Anchors) == 0 {
			j.Locate.Texts = []string{MarkerUpper, MarkerLower}
		}
		if j.Locate.Await == "" && len(j.Locate.Texts) > 0 {
			j.Locate.Await = j.Locate.Texts[len(j.Locate.Texts)-1]
		}
		if j.Extract.Mode == "" {
			j.Extract.Mode = string(extract.ModePrefix)
		}
		if j.Extract.UnknownID == "" {
			j.Extract.UnknownID = extract.UnknownID
		}
	}
}
