// Package eventstore holds the in-memory security event store: an
// insertion-ordered slice with a hard capacity cap, oldest-first eviction,
// and explicit time-based pruning.
package eventstore

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/logger"
)

// MemoryStore implements service.EventStore. Events append in timestamp
// order; the cap is enforced immediately after each append by truncating
// from the front. Evicted events are offered to an optional archive sink on
// a goroutine before being dropped.
type MemoryStore struct {
	mu      sync.RWMutex
	events  []models.SecurityEvent
	index   map[string]int // event id -> slice position
	cap     int
	archive service.ArchiveSink
	logger  logger.Logger
}

var _ service.EventStore = (*MemoryStore)(nil)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithArchive sets the sink receiving evicted events.
func WithArchive(sink service.ArchiveSink) Option {
	return func(s *MemoryStore) { s.archive = sink }
}

// NewMemoryStore creates a store capped at maxEvents entries.
func NewMemoryStore(maxEvents int, log logger.Logger, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		index:  make(map[string]int),
		cap:    maxEvents,
		logger: log.WithComponent("eventstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores the event and enforces the cap. It never fails. The stored
// copy gets its own metadata map so the caller's record cannot mutate store
// state afterwards.
func (s *MemoryStore) Append(ctx context.Context, event *models.SecurityEvent) {
	var evicted []models.SecurityEvent

	stored := *event
	stored.Metadata = maps.Clone(event.Metadata)

	s.mu.Lock()
	s.events = append(s.events, stored)
	s.index[event.ID] = len(s.events) - 1
	if len(s.events) > s.cap {
		drop := len(s.events) - s.cap
		evicted = make([]models.SecurityEvent, drop)
		copy(evicted, s.events[:drop])
		s.dropFrontLocked(drop)
	}
	s.mu.Unlock()

	s.offerToArchive(evicted)
}

// dropFrontLocked removes the first n events and rebuilds the id index.
// Caller holds the write lock.
func (s *MemoryStore) dropFrontLocked(n int) {
	for i := 0; i < n; i++ {
		delete(s.index, s.events[i].ID)
	}
	s.events = append(s.events[:0], s.events[n:]...)
	for i := range s.events {
		s.index[s.events[i].ID] = i
	}
}

// Events returns matching events newest-first. The filter's limit applies
// after ordering. Returned copies carry their own metadata maps: only an
// explicit Resolve mutates stored events.
func (s *MemoryStore) Events(ctx context.Context, filter models.EventFilter) []models.SecurityEvent {
	s.mu.RLock()
	matched := make([]models.SecurityEvent, 0)
	for i := range s.events {
		if filter.Matches(&s.events[i]) {
			cp := s.events[i]
			cp.Metadata = maps.Clone(cp.Metadata)
			matched = append(matched, cp)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched
}

// Resolve flips the resolved flag. Only Resolved is mutable after creation.
func (s *MemoryStore) Resolve(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return false
	}
	s.events[pos].Resolved = true
	return true
}

// Prune removes events older than the cutoff and returns the count removed.
// Events are held in insertion order, which matches timestamp order for
// clock-driven appends, so pruning is a front truncation.
func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Time) int {
	var evicted []models.SecurityEvent

	s.mu.Lock()
	n := 0
	for n < len(s.events) && s.events[n].Timestamp.Before(olderThan) {
		n++
	}
	if n > 0 {
		evicted = make([]models.SecurityEvent, n)
		copy(evicted, s.events[:n])
		s.dropFrontLocked(n)
	}
	s.mu.Unlock()

	s.offerToArchive(evicted)
	return len(evicted)
}

// Len reports the current number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *MemoryStore) offerToArchive(evicted []models.SecurityEvent) {
	if s.archive == nil || len(evicted) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.archive.Archive(ctx, evicted); err != nil {
			s.logger.Warn(ctx, "event archive write failed",
				logger.Int("count", len(evicted)), logger.Error(err))
		}
	}()
}
