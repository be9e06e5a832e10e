package hub

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

const powerCutScenario = `steps:
  - after: 0s
    status: OL
  - after: 30s
    status: "OB DISCHRG"
  - after: 2m
    status: "OB LB"
    simulated: true
  - after: 5m
    status: "OL CHRG"
`

func TestLoadScenarioAndPlayback(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, powerCutScenario))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if len(s.Steps) != 4 {
		t.Fatalf("got %d steps, want 4", len(s.Steps))
	}

	cases := []struct {
		elapsed   time.Duration
		status    string
		simulated bool
	}{
		{0, "OL", false},
		{29 * time.Second, "OL", false},
		{30 * time.Second, "OB DISCHRG", false},
		{2 * time.Minute, "OB LB", true},
		{4 * time.Minute, "OB LB", true},
		{time.Hour, "OL CHRG", false}, // last step holds forever
	}
	for _, c := range cases {
		reading, ok := s.At(c.elapsed)
		if !ok {
			t.Errorf("At(%v): no reading", c.elapsed)
			continue
		}
		if reading.Status != c.status || reading.Simulated != c.simulated {
			t.Errorf("At(%v) = %q/%v, want %q/%v",
				c.elapsed, reading.Status, reading.Simulated, c.status, c.simulated)
		}
	}
}

func TestScenarioBeforeFirstStep(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, "steps:\n  - after: 10s\n    status: OL\n"))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if _, ok := s.At(5 * time.Second); ok {
		t.Error("no step should be in effect before the first offset")
	}
}

func TestLoadScenarioRejectsEmpty(t *testing.T) {
	if _, err := LoadScenario(writeScenario(t, "steps: []\n")); err == nil {
		t.Fatal("expected error for empty scenario")
	}
}

func TestLoadScenarioRejectsMissingStatus(t *testing.T) {
	if _, err := LoadScenario(writeScenario(t, "steps:\n  - after: 5s\n")); err == nil {
		t.Fatal("expected error for step without status")
	}
}

func TestLoadScenarioRejectsOutOfOrderSteps(t *testing.T) {
	content := "steps:\n  - after: 1m\n    status: OL\n  - after: 30s\n    status: OB\n"
	if _, err := LoadScenario(writeScenario(t, content)); err == nil {
		t.Fatal("expected error for out-of-order steps")
	}
}

func TestLoadScenarioRejectsBadOffset(t *testing.T) {
	content := "steps:\n  - after: tomorrow\n    status: OL\n"
	if _, err := LoadScenario(writeScenario(t, content)); err == nil {
		t.Fatal("expected error for unparsable offset")
	}
}
