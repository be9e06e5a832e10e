package countdown

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoFlag means no countdown is active (flag file absent).
	ErrNoFlag = errors.New("no active countdown")
	// ErrCorrupt means the flag file cannot be read or does not hold a
	// timestamp.
	ErrCorrupt = errors.New("flag file corrupt")
	// ErrAlreadyActive means another invocation created the flag first.
	ErrAlreadyActive = errors.New("countdown already active")
)

// FlagStore persists the countdown start time as the sole content of one
// file: a decimal UNIX timestamp in seconds. Existence of the file encodes
// "countdown active". The timestamp is never mutated, only written once,
// read, or deleted.
type FlagStore struct {
	path string
}

func NewFlagStore(path string) *FlagStore {
	return &FlagStore{path: path}
}

func (s *FlagStore) Path() string {
	return s.path
}

// Start records the countdown start time. Creation is exclusive so that two
// overlapping invocations cannot both claim to have started the countdown;
// the loser gets ErrAlreadyActive and must re-read.
func (s *FlagStore) Start(now time.Time) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrAlreadyActive
		}
		return fmt.Errorf("failed to create flag file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.FormatInt(now.Unix(), 10)); err != nil {
		return fmt.Errorf("failed to write flag file: %w", err)
	}
	return nil
}

// StartedAt reads the recorded start time. A file vanishing between stat and
// read (delete racing a read) reports ErrNoFlag, not a failure. Any other
// read failure counts as ErrCorrupt: the flag exists but its content is
// unusable, and that must never abort a run.
func (s *FlagStore) StartedAt() (time.Time, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, ErrNoFlag
		}
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || ts < 0 {
		return time.Time{}, ErrCorrupt
	}
	return time.Unix(ts, 0), nil
}

// Clear cancels the countdown. Clearing an already absent flag is fine.
func (s *FlagStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove flag file: %w", err)
	}
	return nil
}
