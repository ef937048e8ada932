package usage

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfolk/contacts-backend/internal/domain/contacts"
)

// Config holds the decayed-ranking bucket thresholds. Buckets partition rows
// by age of last use; a row older than the last threshold drops out of the
// ranking entirely.
type Config struct {
	ThresholdsDays []int `yaml:"thresholds_days"`
}

func DefaultConfig() Config {
	return Config{ThresholdsDays: []int{3, 7, 14, 30}}
}

// LoadConfig reads bucket thresholds from a yaml file. A missing path keeps
// the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, contacts.Wrap(contacts.CodeInternal, "usage.LoadConfig", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, contacts.Wrap(contacts.CodeValidation, "usage.LoadConfig", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.ThresholdsDays) == 0 {
		return contacts.NewError(contacts.CodeValidation, "usage.Config", "at least one bucket threshold required", nil)
	}
	prev := 0
	for _, d := range c.ThresholdsDays {
		if d <= prev {
			return contacts.NewError(contacts.CodeValidation, "usage.Config", "bucket thresholds must be strictly increasing and positive", nil)
		}
		prev = d
	}
	return nil
}

func (c Config) thresholds() []time.Duration {
	out := make([]time.Duration, len(c.ThresholdsDays))
	for i, d := range c.ThresholdsDays {
		out[i] = time.Duration(d) * 24 * time.Hour
	}
	return out
}
