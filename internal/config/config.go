package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// BlockedDateOverride excludes recurring dates from generation on top of the
// excluded dates configured per period (e.g. public holidays every year).
// Shifts limits the exclusion to specific shifts; empty means the whole day.
type BlockedDateOverride struct {
	RRule  string   `yaml:"rrule" validate:"required"`
	Shifts []string `yaml:"shifts,omitempty" validate:"dive,oneof=morning afternoon"`
}

// Config represents the application configuration
type Config struct {
	DatabaseURL string `yaml:"databaseURL" validate:"required"`

	// MaxAttempts bounds the retry loop for full-month generation
	MaxAttempts int `yaml:"maxAttempts" validate:"min=1"`

	// SelectiveMaxAttempts bounds the retry loop when regenerating
	// individual weeks interactively
	SelectiveMaxAttempts int `yaml:"selectiveMaxAttempts" validate:"min=1"`

	// AcceptRotationFrom is the attempt number from which rotation-repeat
	// violations alone no longer block acceptance
	AcceptRotationFrom int `yaml:"acceptRotationFrom" validate:"min=1"`

	// AcceptRelaxableFrom is the attempt number from which any remaining
	// relaxable violation category is downgraded to a warning
	AcceptRelaxableFrom int `yaml:"acceptRelaxableFrom" validate:"min=1"`

	// WeeklyExternalTarget is the fairness target of external shifts per
	// broker per week; WeeklyExternalCap is the hard ceiling
	WeeklyExternalTarget int `yaml:"weeklyExternalTarget" validate:"min=1"`
	WeeklyExternalCap    int `yaml:"weeklyExternalCap" validate:"min=1"`

	// SmallTeamSize and SmallTeamExternalCap protect office coverage:
	// an internal location with at most SmallTeamSize linked brokers may
	// have at most SmallTeamExternalCap of them on external duty per weekday
	SmallTeamSize        int `yaml:"smallTeamSize" validate:"min=0"`
	SmallTeamExternalCap int `yaml:"smallTeamExternalCap" validate:"min=0"`

	BlockedDates []BlockedDateOverride `yaml:"blockedDates,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Defaults returns the configuration defaults applied before YAML decoding
func Defaults() Config {
	return Config{
		MaxAttempts:          100,
		SelectiveMaxAttempts: 50,
		AcceptRotationFrom:   20,
		AcceptRelaxableFrom:  30,
		WeeklyExternalTarget: 2,
		WeeklyExternalCap:    3,
		SmallTeamSize:        3,
		SmallTeamExternalCap: 2,
	}
}

// LoadWithEnv loads plantao_config.<env>.yaml from the current directory or
// the user's home directory
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(fmt.Sprintf("plantao_config.%s.yaml", env))
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.WeeklyExternalCap < cfg.WeeklyExternalTarget {
		return fmt.Errorf("weeklyExternalCap (%d) must be >= weeklyExternalTarget (%d)",
			cfg.WeeklyExternalCap, cfg.WeeklyExternalTarget)
	}

	for i, override := range cfg.BlockedDates {
		if _, err := rrule.StrToRRule(override.RRule); err != nil {
			return fmt.Errorf("invalid rrule in blockedDates[%d]: %w", i, err)
		}
	}

	return nil
}

// ExpandBlockedDates evaluates the blocked-date rules over a date range and
// returns the matching dates (YYYY-MM-DD) mapped to the excluded shifts.
// An empty shift list means the whole day is blocked.
func (c *Config) ExpandBlockedDates(start, end time.Time) (map[string][]string, error) {
	blocked := make(map[string][]string)

	for i, override := range c.BlockedDates {
		rule, err := rrule.StrToRRule(override.RRule)
		if err != nil {
			return nil, fmt.Errorf("invalid rrule in blockedDates[%d]: %w", i, err)
		}

		rule.DTStart(start.AddDate(0, 0, -7))
		occurrences := rule.Between(start.AddDate(0, 0, -7), end.AddDate(0, 0, 7), true)
		for _, occurrence := range occurrences {
			date := occurrence.Format("2006-01-02")
			if date < start.Format("2006-01-02") || date > end.Format("2006-01-02") {
				continue
			}
			if len(override.Shifts) == 0 {
				blocked[date] = nil
			} else if existing, seen := blocked[date]; !seen || existing != nil {
				blocked[date] = append(blocked[date], override.Shifts...)
			}
		}
	}

	return blocked, nil
}

// findConfigFile searches for the named file in the current directory and
// the home directory
func findConfigFile(configFileName string) (string, error) {
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}
