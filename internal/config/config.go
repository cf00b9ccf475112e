package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"jobwatch/internal/pattern"
	"jobwatch/internal/source"
)

// ErrInvalidConfig marks configuration mistakes. Such errors stop a run
// before any check is made.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultErrorSet names the built-in error pattern set.
const DefaultErrorSet = "default"

// Config represents the configuration of a jobwatch installation.
type Config struct {
	RootDir             string              `yaml:"root_dir"`
	DataDirectory       string              `yaml:"data_directory"`
	Title               string              `yaml:"title"`
	PublicURL           string              `yaml:"public_url"`
	MaxReportAgeDays    int                 `yaml:"max_report_age_days"`
	Concurrency         int                 `yaml:"concurrency"`
	CheckTimeoutSeconds int                 `yaml:"check_timeout_seconds"`
	IntervalMinutes     int                 `yaml:"interval_minutes"`
	AgeUnit             string              `yaml:"age_unit"`
	Mail                Mail                `yaml:"mail"`
	Databases           map[string]Database `yaml:"databases"`
	ErrorSets           map[string]ErrorSet `yaml:"error_sets"`
	Watches             []Watch             `yaml:"watches"`
}

// Mail configures delivery of the status page.
type Mail struct {
	Host    string   `yaml:"host"`
	Port    int      `yaml:"port"`
	From    string   `yaml:"from"`
	To      []string `yaml:"to"`
	Subject string   `yaml:"subject"`
}

// Database is a named connection shared by DB watches.
type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ErrorSet derives a list of error patterns from another set.
type ErrorSet struct {
	Base   string   `yaml:"base"`
	Remove []string `yaml:"remove"`
	Add    []string `yaml:"add"`
}

// Watch is the configuration of one monitored target.
type Watch struct {
	Task         string            `yaml:"task"`
	Type         string            `yaml:"type"`
	Locator      string            `yaml:"locator"`
	MaxAge       *float64          `yaml:"max_age"`
	MaxAgeHours  *float64          `yaml:"max_age_hours"`
	ExpectFuture bool              `yaml:"expect_future"`
	Errors       []string          `yaml:"errors"`
	ErrorSet     string            `yaml:"error_set"`
	Exclude      []string          `yaml:"exclude"`
	Requires     []string          `yaml:"requires"`
	Database     string            `yaml:"database"`
	Driver       string            `yaml:"driver"`
	DSN          string            `yaml:"dsn"`
	Query        string            `yaml:"query"`
	Fields       map[string]string `yaml:"fields"`
}

// DefaultConfig returns the settings used for keys a file leaves out.
func DefaultConfig() Config {
	return Config{
		RootDir:             filepath.Join(".dist", "reports"),
		DataDirectory:       filepath.Join(".dist", "data"),
		Title:               "Job status",
		MaxReportAgeDays:    30,
		Concurrency:         8,
		CheckTimeoutSeconds: 30,
		IntervalMinutes:     60,
		AgeUnit:             "days",
		Mail: Mail{
			Host: "localhost",
			Port: 25,
		},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, fmt.Errorf("%w: no configuration file given", ErrInvalidConfig)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(content)
}

// Parse decodes and validates configuration content.
func Parse(content []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fills zero values with defaults and checks the configuration
// for mistakes that do not need any watch to be built.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.RootDir == "" {
		c.RootDir = def.RootDir
	}
	if c.DataDirectory == "" {
		c.DataDirectory = def.DataDirectory
	}
	if c.MaxReportAgeDays <= 0 {
		c.MaxReportAgeDays = def.MaxReportAgeDays
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.CheckTimeoutSeconds <= 0 {
		c.CheckTimeoutSeconds = def.CheckTimeoutSeconds
	}
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = def.IntervalMinutes
	}
	if c.Mail.Port <= 0 {
		c.Mail.Port = def.Mail.Port
	}
	switch c.AgeUnit {
	case "":
		c.AgeUnit = def.AgeUnit
	case "days", "hours":
	default:
		return invalid("age_unit %q: want days or hours", c.AgeUnit)
	}

	for name, db := range c.Databases {
		if !knownDriver(db.Driver) {
			return invalid("database %s: unsupported driver %q", name, db.Driver)
		}
		if db.DSN == "" {
			return invalid("database %s: dsn is required", name)
		}
	}
	for name := range c.ErrorSets {
		if _, err := c.ResolveErrorSet(name); err != nil {
			return err
		}
	}

	if len(c.Watches) == 0 {
		return invalid("configuration must define at least one watch")
	}
	for i, w := range c.Watches {
		if err := c.validateWatch(w); err != nil {
			return fmt.Errorf("watch %d (%s): %w", i, w.Task, err)
		}
	}
	return nil
}

func (c *Config) validateWatch(w Watch) error {
	if strings.TrimSpace(w.Task) == "" {
		return invalid("task is required")
	}
	kind, ok := source.ParseKind(w.Type)
	if !ok {
		return invalid("unknown type %q", w.Type)
	}
	if w.MaxAge != nil && w.MaxAgeHours != nil {
		return invalid("set max_age or max_age_hours, not both")
	}
	if w.ErrorSet != "" && w.Errors != nil {
		return invalid("set errors or error_set, not both")
	}
	if w.ErrorSet != "" {
		if _, err := c.ResolveErrorSet(w.ErrorSet); err != nil {
			return err
		}
	}
	if kind == source.KindDB {
		if w.Database != "" {
			if _, ok := c.Databases[w.Database]; !ok {
				return invalid("unknown database %q", w.Database)
			}
		} else if w.Driver == "" || w.DSN == "" {
			return invalid("db watch needs database or driver and dsn")
		}
		if w.Driver != "" && !knownDriver(w.Driver) {
			return invalid("unsupported driver %q", w.Driver)
		}
	}
	return nil
}

// ResolveErrorSet expands a named error set, following base references.
func (c *Config) ResolveErrorSet(name string) ([]string, error) {
	return c.resolveErrorSet(name, map[string]bool{})
}

func (c *Config) resolveErrorSet(name string, seen map[string]bool) ([]string, error) {
	set, ok := c.ErrorSets[name]
	if !ok {
		if name == DefaultErrorSet {
			return append([]string(nil), pattern.DefaultErrors...), nil
		}
		return nil, invalid("unknown error set %q", name)
	}
	if seen[name] {
		return nil, invalid("error set %q refers to itself", name)
	}
	seen[name] = true

	var base []string
	if set.Base != "" {
		var err error
		if base, err = c.resolveErrorSet(set.Base, seen); err != nil {
			return nil, err
		}
	}
	return pattern.Derive(base, set.Remove, set.Add), nil
}

// MaxAgeDays returns the staleness threshold of w in days. Watches that set
// neither max_age nor max_age_hours get one day.
func (w Watch) MaxAgeDays() float64 {
	switch {
	case w.MaxAge != nil:
		return *w.MaxAge
	case w.MaxAgeHours != nil:
		return *w.MaxAgeHours / 24
	default:
		return 1
	}
}

func knownDriver(driver string) bool {
	switch driver {
	case "sqlite3", "postgres":
		return true
	}
	return false
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
