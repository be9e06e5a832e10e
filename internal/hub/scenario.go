package hub

import (
	"fmt"
	"os"
	"time"

	"github.com/KevinKickass/PowerWatchdog/internal/power"
	"gopkg.in/yaml.v3"
)

// ScenarioStep is one timed status change in a simulation playback.
type ScenarioStep struct {
	After     time.Duration
	Status    string
	Simulated bool
}

// UnmarshalYAML parses the "after" offset from a duration string ("90s",
// "5m"), which yaml.v3 does not do for time.Duration on its own.
func (s *ScenarioStep) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		After     string `yaml:"after"`
		Status    string `yaml:"status"`
		Simulated bool   `yaml:"simulated"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.After != "" {
		d, err := time.ParseDuration(raw.After)
		if err != nil {
			return fmt.Errorf("invalid step offset %q: %w", raw.After, err)
		}
		s.After = d
	}
	s.Status = raw.Status
	s.Simulated = raw.Simulated
	return nil
}

// Scenario scripts the /upsc endpoint for test harness runs: the step whose
// offset has most recently passed determines the reported status.
type Scenario struct {
	Steps []ScenarioStep `yaml:"steps"`
}

func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario has no steps")
	}
	for i, step := range s.Steps {
		if step.Status == "" {
			return nil, fmt.Errorf("scenario step %d has no status", i)
		}
		if i > 0 && step.After < s.Steps[i-1].After {
			return nil, fmt.Errorf("scenario step %d is out of order (%s < %s)",
				i, step.After, s.Steps[i-1].After)
		}
	}

	return &s, nil
}

// At returns the reading in effect after the given elapsed playback time.
// Before the first step fires, ok is false and the caller falls back to its
// static status.
func (s *Scenario) At(elapsed time.Duration) (power.Reading, bool) {
	var (
		current power.Reading
		ok      bool
	)
	for _, step := range s.Steps {
		if step.After > elapsed {
			break
		}
		current = power.Reading{Status: step.Status, Simulated: step.Simulated}
		ok = true
	}
	return current, ok
}
