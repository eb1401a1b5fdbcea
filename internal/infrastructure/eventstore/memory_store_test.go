package eventstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/logger"
)

func newEvent(id string, ts time.Time) *models.SecurityEvent {
	return &models.SecurityEvent{
		ID:        id,
		Type:      constants.EventSuspiciousActivity,
		Severity:  constants.SeverityLow,
		Source:    "test",
		Timestamp: ts,
	}
}

func TestAppendAndOrdering(t *testing.T) {
	s := NewMemoryStore(100, logger.NewNopLogger())
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Append(ctx, newEvent(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	got := s.Events(ctx, models.EventFilter{})
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.After(got[i-1].Timestamp),
			"events must be in non-increasing timestamp order")
	}
	assert.Equal(t, "e4", got[0].ID)
}

func TestCapEvictsOldestFirst(t *testing.T) {
	s := NewMemoryStore(3, logger.NewNopLogger())
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		s.Append(ctx, newEvent(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Second)))
	}

	assert.Equal(t, 3, s.Len())
	got := s.Events(ctx, models.EventFilter{})
	require.Len(t, got, 3)
	assert.Equal(t, "e3", got[0].ID)
	assert.Equal(t, "e1", got[2].ID, "oldest event e0 must be gone")

	// The evicted id is also gone from the resolve index.
	assert.False(t, s.Resolve(ctx, "e0"))
	assert.True(t, s.Resolve(ctx, "e1"))
}

func TestFilters(t *testing.T) {
	s := NewMemoryStore(100, logger.NewNopLogger())
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	a := newEvent("a", base)
	a.Type = constants.EventBruteForceAttempt
	a.Severity = constants.SeverityHigh
	a.UserID = "u1"
	s.Append(ctx, a)

	b := newEvent("b", base.Add(time.Minute))
	b.OrganizationID = "org1"
	s.Append(ctx, b)

	c := newEvent("c", base.Add(2*time.Minute))
	c.Resolved = true
	s.Append(ctx, c)

	assert.Len(t, s.Events(ctx, models.EventFilter{Type: constants.EventBruteForceAttempt}), 1)
	assert.Len(t, s.Events(ctx, models.EventFilter{Severity: constants.SeverityHigh}), 1)
	assert.Len(t, s.Events(ctx, models.EventFilter{UserID: "u1"}), 1)
	assert.Len(t, s.Events(ctx, models.EventFilter{OrganizationID: "org1"}), 1)

	resolved := true
	assert.Len(t, s.Events(ctx, models.EventFilter{Resolved: &resolved}), 1)

	assert.Len(t, s.Events(ctx, models.EventFilter{Start: base.Add(30 * time.Second)}), 2)
	assert.Len(t, s.Events(ctx, models.EventFilter{End: base.Add(30 * time.Second)}), 1)

	limited := s.Events(ctx, models.EventFilter{Limit: 2})
	require.Len(t, limited, 2)
	assert.Equal(t, "c", limited[0].ID, "limit applies after descending sort")
}

func TestResolveUnknownIDMutatesNothing(t *testing.T) {
	s := NewMemoryStore(10, logger.NewNopLogger())
	ctx := context.Background()
	s.Append(ctx, newEvent("a", time.Now()))

	assert.False(t, s.Resolve(ctx, "missing"))

	got := s.Events(ctx, models.EventFilter{})
	require.Len(t, got, 1)
	assert.False(t, got[0].Resolved)
}

func TestResolveFlipsOnlyResolvedFlag(t *testing.T) {
	s := NewMemoryStore(10, logger.NewNopLogger())
	ctx := context.Background()
	e := newEvent("a", time.Now())
	s.Append(ctx, e)

	assert.True(t, s.Resolve(ctx, "a"))
	got := s.Events(ctx, models.EventFilter{})
	require.Len(t, got, 1)
	assert.True(t, got[0].Resolved)
	assert.Equal(t, e.ID, got[0].ID)
	assert.Equal(t, e.Timestamp, got[0].Timestamp)
}

func TestPruneRemovesOldEvents(t *testing.T) {
	s := NewMemoryStore(100, logger.NewNopLogger())
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		s.Append(ctx, newEvent(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Hour)))
	}

	removed := s.Prune(ctx, base.Add(5*time.Hour))
	assert.Equal(t, 5, removed)
	assert.Equal(t, 5, s.Len())

	got := s.Events(ctx, models.EventFilter{})
	assert.Equal(t, "e5", got[len(got)-1].ID)
}

type captureArchive struct {
	mu     sync.Mutex
	events []models.SecurityEvent
	done   chan struct{}
}

func (a *captureArchive) Archive(ctx context.Context, events []models.SecurityEvent) error {
	a.mu.Lock()
	a.events = append(a.events, events...)
	a.mu.Unlock()
	select {
	case a.done <- struct{}{}:
	default:
	}
	return nil
}

var _ service.ArchiveSink = (*captureArchive)(nil)

func TestEvictedEventsGoToArchive(t *testing.T) {
	arch := &captureArchive{done: make(chan struct{}, 1)}
	s := NewMemoryStore(2, logger.NewNopLogger(), WithArchive(arch))
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	s.Append(ctx, newEvent("e0", base))
	s.Append(ctx, newEvent("e1", base.Add(time.Second)))
	s.Append(ctx, newEvent("e2", base.Add(2*time.Second)))

	select {
	case <-arch.done:
	case <-time.After(2 * time.Second):
		t.Fatal("archive sink was not invoked")
	}

	arch.mu.Lock()
	defer arch.mu.Unlock()
	require.Len(t, arch.events, 1)
	assert.Equal(t, "e0", arch.events[0].ID)
}

func TestMetadataIsolatedFromCallers(t *testing.T) {
	s := NewMemoryStore(100, logger.NewNopLogger())
	ctx := context.Background()

	event := newEvent("e1", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	event.Metadata = map[string]interface{}{"ip": "203.0.113.7"}
	s.Append(ctx, event)

	// Mutating the appended record after the fact must not reach the store.
	event.Metadata["ip"] = "tampered"

	got := s.Events(ctx, models.EventFilter{})
	require.Len(t, got, 1)
	assert.Equal(t, "203.0.113.7", got[0].Metadata["ip"])

	// Nor may mutating a returned copy.
	got[0].Metadata["ip"] = "tampered"
	again := s.Events(ctx, models.EventFilter{})
	require.Len(t, again, 1)
	assert.Equal(t, "203.0.113.7", again[0].Metadata["ip"])
}
