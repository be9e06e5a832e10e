package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/KevinKickass/PowerWatchdog/internal/config"
	"github.com/KevinKickass/PowerWatchdog/internal/countdown"
	"github.com/KevinKickass/PowerWatchdog/internal/hubclient"
	"github.com/KevinKickass/PowerWatchdog/internal/power"
	"github.com/KevinKickass/PowerWatchdog/internal/shutdown"
	"go.uber.org/zap"
)

// Lifecycle phases reported to the hub.
const (
	PhaseOnline          = "online"
	PhaseShutdownPending = "shutdown_pending"
	PhaseShuttingDown    = "shutting_down"
)

const (
	reportTimeout = 5 * time.Second
	reportGrace   = 3 * time.Second
)

// Reporter pushes a status report to the hub. Implemented by
// hubclient.Client; nil when no hub is configured.
type Reporter interface {
	Report(ctx context.Context, report hubclient.StatusReport) error
}

// Runner executes one watchdog invocation: read status, advance the
// countdown, trigger the halt when the delay has elapsed, report the phase.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	source   power.Source
	machine  *countdown.Machine
	halt     shutdown.Func
	reporter Reporter
	clientIP string

	now func() time.Time
}

func NewRunner(
	cfg *config.Config,
	logger *zap.Logger,
	source power.Source,
	halt shutdown.Func,
	reporter Reporter,
	clientIP string,
) *Runner {
	store := countdown.NewFlagStore(cfg.FlagFile)
	delay := time.Duration(cfg.ShutdownDelay) * time.Minute

	return &Runner{
		cfg:      cfg,
		logger:   logger,
		source:   source,
		machine:  countdown.NewMachine(store, delay, logger),
		halt:     halt,
		reporter: reporter,
		clientIP: clientIP,
		now:      time.Now,
	}
}

// Run performs one invocation. A returned error means this run could not
// decide safely (status source failure) and the process must exit non-zero,
// leaving the countdown state untouched for the next run.
func (r *Runner) Run(ctx context.Context) error {
	reading, err := r.source.Read(ctx)
	if err != nil {
		r.logger.Error("Failed to obtain power status", zap.Error(err))
		return fmt.Errorf("status source: %w", err)
	}

	lowPower := reading.EffectiveLowPower(r.cfg.IgnoreSimulated)
	r.logger.Info("Power status obtained",
		zap.String("status", reading.Status),
		zap.Bool("simulated", reading.Simulated),
		zap.Bool("low_power", lowPower))

	eval, err := r.machine.Evaluate(r.now(), lowPower)
	if err != nil {
		r.logger.Error("Countdown evaluation failed", zap.Error(err))
		return fmt.Errorf("countdown: %w", err)
	}

	// Fire-and-forget; Ergebnis wird verworfen
	done := r.dispatchReport(eval)

	if eval.State == countdown.StateTriggered {
		r.awaitReport(done)
		r.logger.Warn("Triggering system shutdown",
			zap.Duration("elapsed", eval.Elapsed),
			zap.Int("delay_minutes", r.cfg.ShutdownDelay))
		if err := r.halt(ctx); err != nil {
			r.logger.Error("Shutdown trigger failed", zap.Error(err))
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}

	r.awaitReport(done)
	return nil
}

// dispatchReport sends the phase report asynchronously. The returned channel
// closes when the attempt finished, successful or not.
func (r *Runner) dispatchReport(eval countdown.Evaluation) <-chan struct{} {
	done := make(chan struct{})
	if r.reporter == nil {
		close(done)
		return done
	}

	report := hubclient.StatusReport{
		IP:            r.clientIP,
		Status:        PhaseOnline,
		ShutdownDelay: r.cfg.ShutdownDelay,
	}
	switch eval.State {
	case countdown.StateCounting:
		report.Status = PhaseShutdownPending
		report.RemainingSeconds = int64(eval.Remaining / time.Second)
	case countdown.StateTriggered:
		report.Status = PhaseShuttingDown
	}

	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := r.reporter.Report(ctx, report); err != nil {
			// Best effort, nur Debug
			r.logger.Debug("Status report failed", zap.Error(err))
		}
	}()
	return done
}

// awaitReport gives the in-flight report a short bounded window before the
// process moves on (and possibly exits or halts the host).
func (r *Runner) awaitReport(done <-chan struct{}) {
	select {
	case <-done:
	case <-time.After(reportGrace):
	}
}
