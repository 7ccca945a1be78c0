package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/surge-forecast/internal/forecast"
	"github.com/i474232898/surge-forecast/internal/scenario"
)

var (
	// ErrNotFound is returned when no run is available for a given session.
	ErrNotFound = errors.New("no forecast run for session")
)

// RunHistory holds a time-ordered list of runs for a session.
type RunHistory struct {
	Runs []forecast.Run
}

// MemoryStore is a concurrency-safe in-memory run store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: session key, value: history
	data map[string]*RunHistory

	maxHistory int           // max number of runs per session
	maxAge     time.Duration // optional max age for runs

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*RunHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveRun appends a run for its session and enforces retention.
// The newest run is always kept.
func (s *MemoryStore) SaveRun(run forecast.Run) {
	key := run.Params.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &RunHistory{}
		s.data[key] = history
	}

	history.Runs = append(history.Runs, run)

	if s.maxHistory > 0 && len(history.Runs) > s.maxHistory {
		over := len(history.Runs) - s.maxHistory
		history.Runs = history.Runs[over:]
	}

	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Runs)-1; i++ {
			if !history.Runs[i].GeneratedAt.Before(cutoff) {
				break
			}
		}
		history.Runs = history.Runs[i:]
	}
}

// GetLatest returns the most recent run for a session.
func (s *MemoryStore) GetLatest(params scenario.SessionParams) (forecast.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[params.Key()]
	if !ok || len(history.Runs) == 0 {
		return forecast.Run{}, ErrNotFound
	}
	return history.Runs[len(history.Runs)-1], nil
}

// History returns the retained runs for a session, oldest first.
func (s *MemoryStore) History(params scenario.SessionParams) ([]forecast.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[params.Key()]
	if !ok || len(history.Runs) == 0 {
		return nil, ErrNotFound
	}
	return append([]forecast.Run(nil), history.Runs...), nil
}
