package hub

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Report is one accepted client status push.
type Report struct {
	ID               uuid.UUID `json:"id"`
	IP               string    `json:"ip"`
	Status           string    `json:"status"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	ShutdownDelay    int       `json:"shutdown_delay"`
	ReceivedAt       time.Time `json:"received_at"`
}

// Store persists client reports. Postgres in deployments, memory otherwise.
type Store interface {
	SaveReport(ctx context.Context, report Report) error
	LatestByClient(ctx context.Context) ([]Report, error)
	Close()
}

const memoryHistoryLimit = 1000

// MemoryStore keeps reports in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	history []Report
	latest  map[string]Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{latest: make(map[string]Report)}
}

func (s *MemoryStore) SaveReport(ctx context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, report)
	if len(s.history) > memoryHistoryLimit {
		s.history = s.history[len(s.history)-memoryHistoryLimit:]
	}
	s.latest[report.IP] = report
	return nil
}

func (s *MemoryStore) LatestByClient(ctx context.Context) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]Report, 0, len(s.latest))
	for _, r := range s.latest {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].IP < reports[j].IP })
	return reports, nil
}

func (s *MemoryStore) Close() {}
