package countdown

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

type State string

const (
	StateIdle      State = "idle"
	StateCounting  State = "counting"
	StateTriggered State = "triggered"
)

// Evaluation is the outcome of one run of the state machine.
type Evaluation struct {
	State     State
	StartedAt time.Time
	Elapsed   time.Duration
	Remaining time.Duration
}

// Machine advances the persisted countdown once per invocation. The flag
// file is the single source of truth; no state survives in memory between
// runs.
type Machine struct {
	store  *FlagStore
	delay  time.Duration
	logger *zap.Logger
}

func NewMachine(store *FlagStore, delay time.Duration, logger *zap.Logger) *Machine {
	return &Machine{
		store:  store,
		delay:  delay,
		logger: logger,
	}
}

// Evaluate applies the transition table against the observed condition.
// On StateTriggered the flag file has already been deleted, so the caller
// can hand over to the shutdown trigger without touching the store again.
func (m *Machine) Evaluate(now time.Time, lowPower bool) (Evaluation, error) {
	startedAt, err := m.store.StartedAt()

	switch {
	case err == nil:
		return m.advance(now, startedAt, lowPower)

	case errors.Is(err, ErrNoFlag):
		if !lowPower {
			return Evaluation{State: StateIdle}, nil
		}
		return m.arm(now)

	case errors.Is(err, ErrCorrupt):
		// Safety favours restarting the countdown over crashing.
		m.logger.Warn("Flag file unreadable, re-initializing countdown start time",
			zap.Error(err))
		if cerr := m.store.Clear(); cerr != nil {
			m.logger.Warn("Failed to remove broken flag file", zap.Error(cerr))
		}
		return m.arm(now)

	default:
		return Evaluation{}, err
	}
}

func (m *Machine) advance(now, startedAt time.Time, lowPower bool) (Evaluation, error) {
	if !lowPower {
		if err := m.store.Clear(); err != nil {
			return Evaluation{}, err
		}
		m.logger.Info("Power restored, countdown cancelled",
			zap.Time("started_at", startedAt))
		return Evaluation{State: StateIdle}, nil
	}

	// Ganze Sekunden, Vergleich inklusiv
	elapsed := time.Duration(now.Unix()-startedAt.Unix()) * time.Second
	if elapsed >= m.delay {
		if err := m.store.Clear(); err != nil {
			return Evaluation{}, err
		}
		m.logger.Warn("Shutdown delay elapsed",
			zap.Time("started_at", startedAt),
			zap.Duration("elapsed", elapsed),
			zap.Duration("delay", m.delay))
		return Evaluation{
			State:     StateTriggered,
			StartedAt: startedAt,
			Elapsed:   elapsed,
		}, nil
	}

	return Evaluation{
		State:     StateCounting,
		StartedAt: startedAt,
		Elapsed:   elapsed,
		Remaining: m.delay - elapsed,
	}, nil
}

func (m *Machine) arm(now time.Time) (Evaluation, error) {
	err := m.store.Start(now)
	if errors.Is(err, ErrAlreadyActive) {
		// Verloren gegen eine parallele Invocation: deren Startzeit gilt.
		startedAt, rerr := m.store.StartedAt()
		if rerr != nil {
			startedAt = now
		}
		return m.advance(now, startedAt, true)
	}
	if err != nil {
		return Evaluation{}, err
	}

	m.logger.Info("Low power detected, countdown started",
		zap.Time("started_at", now),
		zap.Duration("delay", m.delay))
	return Evaluation{
		State:     StateCounting,
		StartedAt: now,
		Remaining: m.delay,
	}, nil
}
