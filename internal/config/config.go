package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "datez/internal/log"
	"datez/internal/report"
)

const (
	defaultData     = "data.json"
	defaultRefresh  = "@every 10s"
	defaultTimezone = "Local"
	defaultUpcoming = 3
)

// ICSConfig describes a calendar whose events are imported at startup.
type ICSConfig struct {
	// URL is an http(s) URL, a file:// URL or a plain path.
	URL string `yaml:"url" json:"url"`
	// ID is used in logs; defaults to the URL.
	ID string `yaml:"id" json:"id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Data is the path of the events file (.json, JSONC, .yaml or .yml).
	Data string `yaml:"data" json:"data"`

	// ICS lists additional calendars whose events are tracked too.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// ICSCacheDir mirrors remote calendars for offline startups.
	ICSCacheDir string `yaml:"ics_cache_dir" json:"ics_cache_dir"`

	// Refresh is a cron schedule (standard five fields or a descriptor
	// such as "@every 10s") for recomputing all events.
	Refresh string `yaml:"refresh" json:"refresh"`

	// Timezone is the IANA zone in which "today" is determined.
	// "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Report selects the line format: "days", "parts" or "both".
	Report string `yaml:"report" json:"report"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Listen is the HTTP listen address. Empty disables the HTTP API.
	Listen string `yaml:"listen" json:"listen"`

	// Upcoming is how many future occurrences the API lists for each
	// recurring event.
	Upcoming int `yaml:"upcoming" json:"upcoming"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Data:     defaultData,
		ICS:      []ICSConfig{},
		Refresh:  defaultRefresh,
		Timezone: defaultTimezone,
		Report:   string(report.ModeBoth),
		LogLevel: string(appLog.LevelInfo),
		Listen:   "",
		Upcoming: defaultUpcoming,
	}
}

// Normalize fills in missing or invalid values with defaults so that
// partially-filled configs still behave correctly. Invalid values are
// logged before being replaced.
func (c *Config) Normalize() {
	if c.Data == "" {
		c.Data = defaultData
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = c.ICS[i].URL
		}
	}

	if c.Refresh == "" {
		c.Refresh = defaultRefresh
	} else if _, err := cron.ParseStandard(c.Refresh); err != nil {
		appLog.Error("invalid refresh schedule; using default", err, "refresh", c.Refresh, "default", defaultRefresh)
		c.Refresh = defaultRefresh
	}

	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}

	mode, ok := report.ParseMode(c.Report)
	if !ok {
		appLog.Warn("unknown report mode; using default", "report", c.Report, "default", mode)
	}
	c.Report = string(mode)

	c.LogLevel = string(appLog.ParseLevel(c.LogLevel))

	if c.Upcoming < 0 {
		c.Upcoming = 0
	}
}

// Location resolves Timezone, falling back to time.Local when the zone is
// unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == defaultTimezone {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// ReportMode returns the normalized report mode.
func (c *Config) ReportMode() report.Mode {
	mode, _ := report.ParseMode(c.Report)
	return mode
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
//   - normalize defaults
//
// A relative Data path is resolved against the config file's directory.
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
			cfg.resolvePaths(path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.resolvePaths(path)

	return &cfg, nil
}

func (c *Config) resolvePaths(configPath string) {
	dir := filepath.Dir(configPath)
	if !filepath.IsAbs(c.Data) {
		c.Data = filepath.Join(dir, c.Data)
	}
	if c.ICSCacheDir != "" && !filepath.IsAbs(c.ICSCacheDir) {
		c.ICSCacheDir = filepath.Join(dir, c.ICSCacheDir)
	}
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

	tmp, err := os.CreateTemp(dir, ".datez-config-*.tmp")
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
