// Package config resolves the coord home directory and loads engine settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ankittk/coord/pkg/models"
)

// Settings holds engine configuration loaded from <home>/config.yaml.
// All fields are optional; zero values fall back to defaults.
type Settings struct {
	// Members is the fixed worker pool (bounded at models.DefaultMemberLimit).
	Members []string `yaml:"members"`
	// ConflictWindowHours is the recency window for coordination-conflict detection.
	ConflictWindowHours int `yaml:"conflict_window"`
	// Repo is the default working repository the checkpoint manager operates on.
	Repo string `yaml:"repo"`
	// SpecsDir overrides where per-feature spec artifacts are looked up.
	SpecsDir string `yaml:"specs_dir"`
}

// ConflictWindow returns the conflict recency window as a duration.
func (s *Settings) ConflictWindow() time.Duration {
	h := s.ConflictWindowHours
	if h <= 0 {
		h = models.DefaultConflictWindow
	}
	return time.Duration(h) * time.Hour
}

// SettingsPath returns <home>/config.yaml.
func SettingsPath(home string) string {
	return filepath.Join(home, "config.yaml")
}

// LoadSettings loads settings from <home>/config.yaml. A missing file returns
// defaults and nil error; a malformed file or an oversized member pool is an error.
func LoadSettings(home string) (*Settings, error) {
	var s Settings
	data, err := os.ReadFile(SettingsPath(home))
	if err != nil {
		if os.IsNotExist(err) {
			return &s, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", SettingsPath(home), err)
	}
	if len(s.Members) > models.DefaultMemberLimit {
		return nil, fmt.Errorf("config: member pool is bounded at %d, got %d", models.DefaultMemberLimit, len(s.Members))
	}
	return &s, nil
}

// SaveSettings writes settings to <home>/config.yaml.
func SaveSettings(home string, s *Settings) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsPath(home), data, 0o644)
}
