// Package config loads runtime configuration for orbit. Values come from
// .orbit.yaml (cwd or $HOME), ORBIT_* environment variables, and CLI
// flags, with built-in defaults for anything unset. Scoring weights are
// validated at load time: a weight set that does not sum to 1.0 is a
// configuration error and the command fails fast before touching the
// store.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Weights are the seven priority sub-score weights. They must sum to 1.0.
type Weights struct {
	GoalPriority     float64 `mapstructure:"goal_priority"`
	ProjectPriority  float64 `mapstructure:"project_priority"`
	AgeUrgency       float64 `mapstructure:"age_urgency"`
	DeadlinePressure float64 `mapstructure:"deadline_pressure"`
	EffortValue      float64 `mapstructure:"effort_value"`
	GitActivity      float64 `mapstructure:"git_activity"`
	BlockingImpact   float64 `mapstructure:"blocking_impact"`
}

// Sum returns the total of all seven weights.
func (w Weights) Sum() float64 {
	return w.GoalPriority + w.ProjectPriority + w.AgeUrgency +
		w.DeadlinePressure + w.EffortValue + w.GitActivity + w.BlockingImpact
}

// Tuning holds the scoring curve parameters. The ramp ceilings and
// saturation points are configuration rather than hard-coded constants,
// matching the configurable-weights precedent.
type Tuning struct {
	DefaultPriority      int     `mapstructure:"default_priority"`       // goal fallback, 0-100
	AgeCeilingDays       float64 `mapstructure:"age_ceiling_days"`       // age urgency saturates here
	DeadlineHorizonDays  float64 `mapstructure:"deadline_horizon_days"`  // pressure reaches 0 here
	NoDueDatePressure    float64 `mapstructure:"no_due_date_pressure"`   // neutral pressure when undated
	GitLookbackDays      float64 `mapstructure:"git_lookback_days"`      // activity window
	BlockingImpactPoints float64 `mapstructure:"blocking_impact_points"` // per dependent todo
}

// Config holds all runtime configuration for an orbit invocation.
type Config struct {
	DBPath        string  `mapstructure:"db_path"`
	WorkspacePath string  `mapstructure:"workspace_path"`
	SyncLimit     int     `mapstructure:"sync_limit"` // max commits fetched per project
	Weights       Weights `mapstructure:"weights"`
	Tuning        Tuning  `mapstructure:"tuning"`
}

// Load reads configuration from viper, applying defaults, and validates
// the weight set.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	viper.SetDefault("db_path", filepath.Join(home, ".orbit", "orbit.db"))
	viper.SetDefault("workspace_path", filepath.Join(home, "src"))
	viper.SetDefault("sync_limit", 200)

	viper.SetDefault("weights.goal_priority", 0.25)
	viper.SetDefault("weights.project_priority", 0.15)
	viper.SetDefault("weights.age_urgency", 0.15)
	viper.SetDefault("weights.deadline_pressure", 0.20)
	viper.SetDefault("weights.effort_value", 0.10)
	viper.SetDefault("weights.git_activity", 0.10)
	viper.SetDefault("weights.blocking_impact", 0.05)

	viper.SetDefault("tuning.default_priority", 50)
	viper.SetDefault("tuning.age_ceiling_days", 90.0)
	viper.SetDefault("tuning.deadline_horizon_days", 30.0)
	viper.SetDefault("tuning.no_due_date_pressure", 30.0)
	viper.SetDefault("tuning.git_lookback_days", 7.0)
	viper.SetDefault("tuning.blocking_impact_points", 20.0)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that would silently corrupt scoring if left
// unchecked.
func (c Config) Validate() error {
	if err := ValidateWeights(c.Weights); err != nil {
		return err
	}
	if c.Tuning.DefaultPriority < 0 || c.Tuning.DefaultPriority > 100 {
		return fmt.Errorf("config: default_priority %d outside [0,100]", c.Tuning.DefaultPriority)
	}
	if c.Tuning.AgeCeilingDays <= 0 {
		return fmt.Errorf("config: age_ceiling_days must be positive, got %v", c.Tuning.AgeCeilingDays)
	}
	if c.Tuning.DeadlineHorizonDays <= 0 {
		return fmt.Errorf("config: deadline_horizon_days must be positive, got %v", c.Tuning.DeadlineHorizonDays)
	}
	if c.Tuning.GitLookbackDays <= 0 {
		return fmt.Errorf("config: git_lookback_days must be positive, got %v", c.Tuning.GitLookbackDays)
	}
	return nil
}

// weightTolerance absorbs float accumulation noise when checking the sum.
const weightTolerance = 1e-9

// ValidateWeights rejects weight sets that do not sum to 1.0.
func ValidateWeights(w Weights) error {
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("config: scoring weights sum to %v, want 1.0", w.Sum())
	}
	return nil
}

// DefaultWeights returns the documented default weight set.
func DefaultWeights() Weights {
	return Weights{
		GoalPriority:     0.25,
		ProjectPriority:  0.15,
		AgeUrgency:       0.15,
		DeadlinePressure: 0.20,
		EffortValue:      0.10,
		GitActivity:      0.10,
		BlockingImpact:   0.05,
	}
}

// DefaultTuning returns the documented default curve parameters.
func DefaultTuning() Tuning {
	return Tuning{
		DefaultPriority:      50,
		AgeCeilingDays:       90,
		DeadlineHorizonDays:  30,
		NoDueDatePressure:    30,
		GitLookbackDays:      7,
		BlockingImpactPoints: 20,
	}
}
