package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600
)

// Config represents app config object.
type Config struct {
	Experiment Experiment `yaml:"experiment" json:"experiment"`
	Benchmarks Benchmarks `yaml:"benchmarks" json:"benchmarks"`
	Funnel     Funnel     `yaml:"funnel" json:"funnel"`
}

// Experiment holds the A/B test planning defaults.
type Experiment struct {
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Power float64 `yaml:"power" json:"power"`
	Ratio float64 `yaml:"ratio" json:"ratio"`
}

// Benchmarks are the market reference values the snapshot is compared against.
type Benchmarks struct {
	WonRatePct     float64 `yaml:"won_rate_pct" json:"won_rate_pct"`
	WonRateGoalPct float64 `yaml:"won_rate_goal_pct" json:"won_rate_goal_pct"`
	CPL            float64 `yaml:"cpl" json:"cpl"`
	CPLGoal        float64 `yaml:"cpl_goal" json:"cpl_goal"`
}

// Funnel holds the conversion funnel thresholds.
type Funnel struct {
	EngagedSessionSec float64 `yaml:"engaged_session_sec" json:"engaged_session_sec"`
}

// Default returns the config written on first run.
func Default() *Config {
	return &Config{
		Experiment: Experiment{
			Alpha: 0.05,
			Power: 0.80,
			Ratio: 1,
		},
		Benchmarks: Benchmarks{
			WonRatePct:     10,
			WonRateGoalPct: 15,
			CPL:            18,
			CPLGoal:        12,
		},
		Funnel: Funnel{
			EngagedSessionSec: 120,
		},
	}
}

// Validate checks the config values are usable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if !(c.Experiment.Alpha > 0 && c.Experiment.Alpha < 1) {
		return fmt.Errorf("experiment.alpha must be in (0, 1), got %v", c.Experiment.Alpha)
	}
	if !(c.Experiment.Power > 0 && c.Experiment.Power < 1) {
		return fmt.Errorf("experiment.power must be in (0, 1), got %v", c.Experiment.Power)
	}
	if !positive(c.Experiment.Ratio) {
		return fmt.Errorf("experiment.ratio must be positive, got %v", c.Experiment.Ratio)
	}
	if c.Benchmarks.WonRatePct < 0 || c.Benchmarks.WonRateGoalPct < 0 {
		return errors.New("benchmarks won rates must be non-negative")
	}
	if c.Benchmarks.CPL < 0 || c.Benchmarks.CPLGoal < 0 {
		return errors.New("benchmarks cpl values must be non-negative")
	}
	if !positive(c.Funnel.EngagedSessionSec) {
		return fmt.Errorf("funnel.engaged_session_sec must be positive, got %v", c.Funnel.EngagedSessionSec)
	}
	return nil
}

// positive reports whether v is a finite number above zero.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Save writes the config into the directory.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFileName, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
// Values missing from the file keep their defaults.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return c, nil
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
