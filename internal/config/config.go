// Package config holds the runtime configuration for the gate:
// active principles, blocking severity, impact cutoffs, health
// thresholds, recovery strategy order, and learner tuning.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/opgate/opgate/internal/model"
)

// Oversight configures policy evaluation.
type Oversight struct {
	Principles       []string `yaml:"principles"`
	BlockingSeverity string   `yaml:"blocking_severity"`
}

// Impact configures the risk score cutoffs.
type Impact struct {
	NoneMax     int `yaml:"none_max"`
	LowMax      int `yaml:"low_max"`
	ModerateMax int `yaml:"moderate_max"`
}

// Health configures the health monitor.
type Health struct {
	Window          int     `yaml:"window"`
	MinAvailability float64 `yaml:"min_availability"`
	MaxErrorRate    float64 `yaml:"max_error_rate"`
	SlopeCutoff     float64 `yaml:"slope_cutoff"`
}

// Resilience configures recovery.
type Resilience struct {
	Strategies []string `yaml:"strategies"`
}

// Learner configures adaptive learning.
type Learner struct {
	Window             int      `yaml:"window"`
	DegradeThreshold   float64  `yaml:"degrade_threshold"`
	StrategyCandidates []string `yaml:"strategy_candidates"`
}

// Ledger configures audit persistence.
type Ledger struct {
	// Backend is "file", "sqlite", or "memory".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Daemon configures the spool daemon.
type Daemon struct {
	InboxDir  string `yaml:"inbox_dir"`
	OutboxDir string `yaml:"outbox_dir"`
	Workers   int    `yaml:"workers"`
}

// Config holds all configurable parameters.
type Config struct {
	Oversight  Oversight  `yaml:"oversight"`
	Impact     Impact     `yaml:"impact"`
	Health     Health     `yaml:"health"`
	Resilience Resilience `yaml:"resilience"`
	Learner    Learner    `yaml:"learner"`
	Ledger     Ledger     `yaml:"ledger"`
	Daemon     Daemon     `yaml:"daemon"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".opgate")
	principles := make([]string, 0, len(model.AllPrinciples))
	for _, p := range model.AllPrinciples {
		principles = append(principles, string(p))
	}
	return &Config{
		Oversight: Oversight{
			Principles:       principles,
			BlockingSeverity: string(model.SeverityHigh),
		},
		Impact: Impact{NoneMax: 0, LowMax: 2, ModerateMax: 4},
		Health: Health{
			Window:          20,
			MinAvailability: 0.5,
			MaxErrorRate:    0.5,
			SlopeCutoff:     0.05,
		},
		Resilience: Resilience{
			Strategies: []string{"retry_with_backoff", "failover", "degrade_gracefully"},
		},
		Learner: Learner{
			Window:             50,
			DegradeThreshold:   0.1,
			StrategyCandidates: []string{"conservative", "balanced", "aggressive"},
		},
		Ledger: Ledger{
			Backend: "file",
			Path:    filepath.Join(base, "ledger.jsonl"),
		},
		Daemon: Daemon{
			InboxDir:  filepath.Join(base, "inbox"),
			OutboxDir: filepath.Join(base, "outbox"),
			Workers:   4,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "opgate.yaml"
	}
	return filepath.Join(home, ".opgate", "config.yaml")
}

// Load reads configuration from a YAML file. Empty path falls back to
// the default location. Missing file returns defaults. Invalid YAML
// returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns the SHA-256 of the raw
// bytes on disk. When no file exists, the hash covers empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return Default(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("read config: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults; YAML overwrites only specified fields.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

func (c *Config) validate() error {
	for _, p := range c.Oversight.Principles {
		if _, err := model.ParsePrinciple(p); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	switch model.Severity(c.Oversight.BlockingSeverity) {
	case model.SeverityLow, model.SeverityMedium, model.SeverityHigh:
	default:
		return fmt.Errorf("config: unknown blocking severity %q", c.Oversight.BlockingSeverity)
	}
	switch c.Ledger.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown ledger backend %q", c.Ledger.Backend)
	}
	return nil
}

// Principles returns the parsed active principle list.
func (c *Config) Principles() ([]model.Principle, error) {
	out := make([]model.Principle, 0, len(c.Oversight.Principles))
	for _, s := range c.Oversight.Principles {
		p, err := model.ParsePrinciple(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// DefaultYAML returns a commented YAML string for init-config.
func DefaultYAML() string {
	return `# opgate configuration
# Generated by: opgate init-config

# Oversight: which principles are checked, and the violation severity
# that blocks an operation.
oversight:
  principles:
    - transparency
    - fairness
    - privacy
    - accountability
    - beneficence
    - non_maleficence
    - autonomy
    - justice
  blocking_severity: high

# Impact score cutoffs.
# score <= none_max -> none
# score <= low_max -> low
# score <= moderate_max -> moderate
# above -> high
impact:
  none_max: 0
  low_max: 2
  moderate_max: 4

# Health monitor: sliding window size and classification thresholds.
health:
  window: 20
  min_availability: 0.5
  max_error_rate: 0.5
  slope_cutoff: 0.05

# Ordered recovery strategies; first success stops the walk.
resilience:
  strategies:
    - retry_with_backoff
    - failover
    - degrade_gracefully

# Adaptive learner window and strategy candidates.
learner:
  window: 50
  degrade_threshold: 0.1
  strategy_candidates:
    - conservative
    - balanced
    - aggressive

# Audit ledger persistence: file (JSONL), sqlite, or memory.
ledger:
  backend: file
  path: ~/.opgate/ledger.jsonl

# Spool daemon directories and worker pool size.
daemon:
  inbox_dir: ~/.opgate/inbox
  outbox_dir: ~/.opgate/outbox
  workers: 4
`
}
