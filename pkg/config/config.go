// Package config handles loading and saving bplan configuration.
//
// Configuration follows the XDG Base Directory conventions:
//   - Config: ~/.config/bplan/config.yaml
//
// Environment variables override file values:
//   - BPLAN_WEIGHT_P0 .. BPLAN_WEIGHT_P3: priority weights
//   - BPLAN_REMAINING_ONLY: plan only open work (true/false)
//   - BPLAN_FORMAT: output format (json, text, mermaid)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vanderheijden86/beadplan/pkg/analysis"
	"github.com/vanderheijden86/beadplan/pkg/model"

	"gopkg.in/yaml.v3"
)

const (
	EnvWeightPrefix  = "BPLAN_WEIGHT_"
	EnvRemainingOnly = "BPLAN_REMAINING_ONLY"
	EnvFormat        = "BPLAN_FORMAT"
)

// Output formats understood by the CLI.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatMermaid = "mermaid"
)

// Color modes for text output.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// PlanConfig controls what the planner computes.
type PlanConfig struct {
	RemainingOnly bool `yaml:"remaining_only,omitempty"` // skip done/cancelled issues when grouping
	IncludeSlack  bool `yaml:"include_slack,omitempty"`
}

// OutputConfig controls how results are rendered.
type OutputConfig struct {
	Format string `yaml:"format,omitempty"`
	Color  string `yaml:"color,omitempty"`
}

// Config is the top-level configuration for bplan.
type Config struct {
	Weights analysis.PriorityWeights `yaml:"weights"`
	Plan    PlanConfig               `yaml:"plan,omitempty"`
	Output  OutputConfig             `yaml:"output,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Weights: analysis.DefaultPriorityWeights(),
		Output: OutputConfig{
			Format: FormatText,
			Color:  ColorAuto,
		},
	}
}

// ConfigDir returns the XDG config directory for bplan.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "bplan")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bplan")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		if err := cfg.ApplyEnvOverrides(); err != nil {
			return cfg, err
		}
		return cfg, cfg.Validate()
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path, then applies environment
// overrides and validates the result. A missing file is not an error.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadExplicit is LoadFrom for a path the user asked for by name, so a
// missing file is an error rather than a silent fallback to defaults.
func LoadExplicit(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), fmt.Errorf("config file %s does not exist", path)
		}
		return DefaultConfig(), fmt.Errorf("reading config: %w", err)
	}
	return LoadFrom(path)
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides replaces config values with any BPLAN_* variables that
// are set. Malformed values are reported rather than ignored.
func (c *Config) ApplyEnvOverrides() error {
	for _, p := range model.AllPriorities() {
		name := EnvWeightPrefix + string(p)
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		setWeight(&c.Weights, p, f)
	}

	if v := strings.TrimSpace(os.Getenv(EnvRemainingOnly)); v != "" {
		b, ok := parseBool(v)
		if !ok {
			return fmt.Errorf("%s: invalid boolean %q", EnvRemainingOnly, v)
		}
		c.Plan.RemainingOnly = b
	}

	if v := strings.TrimSpace(os.Getenv(EnvFormat)); v != "" {
		c.Output.Format = strings.ToLower(v)
	}
	return nil
}

// Validate checks weights, format and color mode.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	switch c.Output.Format {
	case "", FormatJSON, FormatText, FormatMermaid:
	default:
		return fmt.Errorf("unknown output format %q (want %s, %s or %s)", c.Output.Format, FormatJSON, FormatText, FormatMermaid)
	}
	switch c.Output.Color {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("unknown color mode %q", c.Output.Color)
	}
	return nil
}

// ParseWeights parses a weight override such as "4,3,2,1" (P0 first) or
// "p0=5,p3=0.5". Keys not mentioned keep their value from base.
func ParseWeights(s string, base analysis.PriorityWeights) (analysis.PriorityWeights, error) {
	w := base
	s = strings.TrimSpace(s)
	if s == "" {
		return w, nil
	}
	parts := strings.Split(s, ",")

	if !strings.Contains(s, "=") {
		prios := model.AllPriorities()
		if len(parts) != len(prios) {
			return base, fmt.Errorf("weights %q: want %d comma-separated values", s, len(prios))
		}
		for i, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return base, fmt.Errorf("weights %q: %w", s, err)
			}
			setWeight(&w, prios[i], f)
		}
		return w, w.Validate()
	}

	for _, part := range parts {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return base, fmt.Errorf("weights %q: expected key=value, got %q", s, part)
		}
		p, err := model.ParsePriority(key)
		if err != nil {
			return base, fmt.Errorf("weights %q: %w", s, err)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return base, fmt.Errorf("weights %q: %w", s, err)
		}
		setWeight(&w, p, f)
	}
	return w, w.Validate()
}

func setWeight(w *analysis.PriorityWeights, p model.Priority, v float64) {
	switch p {
	case model.PriorityP0:
		w.P0 = v
	case model.PriorityP1:
		w.P1 = v
	case model.PriorityP2:
		w.P2 = v
	case model.PriorityP3:
		w.P3 = v
	}
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	}
	return false, false
}
