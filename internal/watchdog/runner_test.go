package watchdog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/KevinKickass/PowerWatchdog/internal/config"
	"github.com/KevinKickass/PowerWatchdog/internal/hubclient"
	"github.com/KevinKickass/PowerWatchdog/internal/power"
	"go.uber.org/zap"
)

type haltRecorder struct {
	calls int
}

func (h *haltRecorder) halt(ctx context.Context) error {
	h.calls++
	return nil
}

type fakeReporter struct {
	reports []hubclient.StatusReport
}

func (f *fakeReporter) Report(ctx context.Context, report hubclient.StatusReport) error {
	f.reports = append(f.reports, report)
	return nil
}

func testConfig(t *testing.T, delayMinutes int) *config.Config {
	t.Helper()
	return &config.Config{
		UPSName:       "apc",
		ShutdownDelay: delayMinutes,
		FlagFile:      filepath.Join(t.TempDir(), "pw.flag"),
		LogTag:        "test",
	}
}

func writeFlag(t *testing.T, path string, startedAt time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strconv.FormatInt(startedAt.Unix(), 10)), 0o644); err != nil {
		t.Fatalf("write flag: %v", err)
	}
}

func TestRunFreshLowPowerCreatesFlag(t *testing.T) {
	cfg := testConfig(t, 1)
	halt := &haltRecorder{}
	reporter := &fakeReporter{}
	now := time.Unix(1700000000, 0)

	r := NewRunner(cfg, zap.NewNop(), &power.FakeSource{Reading: power.Reading{Status: "OB LB"}},
		halt.halt, reporter, "10.0.0.5")
	r.now = func() time.Time { return now }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, err := os.ReadFile(cfg.FlagFile)
	if err != nil {
		t.Fatalf("flag file not created: %v", err)
	}
	if string(raw) != strconv.FormatInt(now.Unix(), 10) {
		t.Errorf("flag content = %q, want %d", raw, now.Unix())
	}
	if halt.calls != 0 {
		t.Errorf("halt called %d times, want 0", halt.calls)
	}

	if len(reporter.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reporter.reports))
	}
	report := reporter.reports[0]
	if report.Status != PhaseShutdownPending {
		t.Errorf("reported phase = %q, want %q", report.Status, PhaseShutdownPending)
	}
	if report.RemainingSeconds != 60 {
		t.Errorf("remaining = %d, want 60", report.RemainingSeconds)
	}
	if report.IP != "10.0.0.5" {
		t.Errorf("ip = %q, want 10.0.0.5", report.IP)
	}
}

func TestRunElapsedDeadlineTriggersShutdown(t *testing.T) {
	cfg := testConfig(t, 1)
	halt := &haltRecorder{}
	reporter := &fakeReporter{}
	start := time.Unix(1700000000, 0)
	writeFlag(t, cfg.FlagFile, start)

	r := NewRunner(cfg, zap.NewNop(), &power.FakeSource{Reading: power.Reading{Status: "OB LB"}},
		halt.halt, reporter, "")
	r.now = func() time.Time { return start.Add(61 * time.Second) }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if halt.calls != 1 {
		t.Fatalf("halt called %d times, want 1", halt.calls)
	}
	if _, err := os.Stat(cfg.FlagFile); !errors.Is(err, os.ErrNotExist) {
		t.Error("flag file must be removed before the halt")
	}
	if len(reporter.reports) != 1 || reporter.reports[0].Status != PhaseShuttingDown {
		t.Errorf("reports = %+v, want one shutting_down", reporter.reports)
	}
}

func TestRunRestoredPowerCancelsWithoutShutdown(t *testing.T) {
	cfg := testConfig(t, 1)
	halt := &haltRecorder{}
	start := time.Unix(1700000000, 0)
	writeFlag(t, cfg.FlagFile, start)

	r := NewRunner(cfg, zap.NewNop(), &power.FakeSource{Reading: power.Reading{Status: "OL"}},
		halt.halt, nil, "")
	r.now = func() time.Time { return start.Add(30 * time.Second) }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if halt.calls != 0 {
		t.Errorf("halt called %d times, want 0", halt.calls)
	}
	if _, err := os.Stat(cfg.FlagFile); !errors.Is(err, os.ErrNotExist) {
		t.Error("flag file must be removed on cancellation")
	}
}

func TestRunStatusSourceFailureLeavesFlagUntouched(t *testing.T) {
	cfg := testConfig(t, 1)
	halt := &haltRecorder{}
	start := time.Unix(1700000000, 0)
	writeFlag(t, cfg.FlagFile, start)

	r := NewRunner(cfg, zap.NewNop(), &power.FakeSource{Err: errors.New("connection refused")},
		halt.halt, nil, "")

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error when the status source fails")
	}

	raw, err := os.ReadFile(cfg.FlagFile)
	if err != nil {
		t.Fatalf("flag file must survive a failed run: %v", err)
	}
	if string(raw) != strconv.FormatInt(start.Unix(), 10) {
		t.Errorf("flag content changed: %q", raw)
	}
	if halt.calls != 0 {
		t.Errorf("halt called %d times, want 0", halt.calls)
	}
}

func TestRunIgnoredSimulationCancelsActiveCountdown(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.IgnoreSimulated = true
	halt := &haltRecorder{}
	start := time.Unix(1700000000, 0)
	writeFlag(t, cfg.FlagFile, start)

	// Simulierter Stromausfall, der bereits die Deadline gerissen hätte
	r := NewRunner(cfg, zap.NewNop(),
		&power.FakeSource{Reading: power.Reading{Status: "OB LB", Simulated: true}},
		halt.halt, nil, "")
	r.now = func() time.Time { return start.Add(10 * time.Minute) }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if halt.calls != 0 {
		t.Errorf("halt called %d times, want 0", halt.calls)
	}
	if _, err := os.Stat(cfg.FlagFile); !errors.Is(err, os.ErrNotExist) {
		t.Error("ignored simulation must cancel the countdown")
	}
}

func TestRunIgnoredSimulationNeverStartsCountdown(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.IgnoreSimulated = true

	r := NewRunner(cfg, zap.NewNop(),
		&power.FakeSource{Reading: power.Reading{Status: "OB LB", Simulated: true}},
		(&haltRecorder{}).halt, nil, "")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(cfg.FlagFile); !errors.Is(err, os.ErrNotExist) {
		t.Error("ignored simulation must not start a countdown")
	}
}

func TestRunOnlineReportsOnline(t *testing.T) {
	cfg := testConfig(t, 5)
	reporter := &fakeReporter{}

	r := NewRunner(cfg, zap.NewNop(), &power.FakeSource{Reading: power.Reading{Status: "OL"}},
		(&haltRecorder{}).halt, reporter, "10.0.0.5")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(reporter.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reporter.reports))
	}
	report := reporter.reports[0]
	if report.Status != PhaseOnline {
		t.Errorf("phase = %q, want online", report.Status)
	}
	if report.ShutdownDelay != 5 {
		t.Errorf("shutdown_delay = %d, want 5", report.ShutdownDelay)
	}
}

func TestRunHaltFailurePropagates(t *testing.T) {
	cfg := testConfig(t, 1)
	start := time.Unix(1700000000, 0)
	writeFlag(t, cfg.FlagFile, start)

	haltErr := errors.New("shutdown command failed")
	r := NewRunner(cfg, zap.NewNop(), &power.FakeSource{Reading: power.Reading{Status: "OB LB"}},
		func(ctx context.Context) error { return haltErr }, nil, "")
	r.now = func() time.Time { return start.Add(2 * time.Minute) }

	if err := r.Run(context.Background()); !errors.Is(err, haltErr) {
		t.Fatalf("err = %v, want halt error", err)
	}
}

// TestRunReportsThroughRealHubClient wires the runner to a hubclient.Client
// against an httptest hub, covering the full report path.
func TestRunReportsThroughRealHubClient(t *testing.T) {
	received := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hub, err := hubclient.New(server.URL, "tok")
	if err != nil {
		t.Fatalf("hubclient.New: %v", err)
	}

	cfg := testConfig(t, 1)
	r := NewRunner(cfg, zap.NewNop(), &power.FakeSource{Reading: power.Reading{Status: "OL"}},
		(&haltRecorder{}).halt, hub, "10.0.0.5")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case body := <-received:
		if string(body) == "" {
			t.Error("empty report body")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub never received the report")
	}
}
