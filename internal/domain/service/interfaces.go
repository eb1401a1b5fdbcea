// Package service defines the domain-level contracts implemented by the
// infrastructure layer and consumed by application services.
package service

import (
	"context"
	"time"

	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/pkg/constants"
)

// EventStore holds security events in insertion order with a hard capacity
// cap and explicit pruning. Implementations must be safe for concurrent use.
type EventStore interface {
	// Append stores the event, evicting the oldest entries if the store
	// would exceed its cap. It never fails.
	Append(ctx context.Context, event *models.SecurityEvent)

	// Events returns matching events in descending timestamp order, with
	// the filter's limit applied after ordering.
	Events(ctx context.Context, filter models.EventFilter) []models.SecurityEvent

	// Resolve marks the event resolved. Returns false on unknown id.
	Resolve(ctx context.Context, id string) bool

	// Prune removes events older than the cutoff and returns the count removed.
	Prune(ctx context.Context, olderThan time.Time) int

	// Len reports the current number of stored events.
	Len() int
}

// EventRecorder is the narrow surface other services use to report
// security-relevant occurrences. Recording is best-effort and never fails
// the caller.
type EventRecorder interface {
	LogEvent(
		ctx context.Context,
		eventType constants.EventType,
		severity constants.Severity,
		source string,
		description string,
		metadata map[string]interface{},
		reqCtx *models.RequestContext,
	) *models.SecurityEvent
}

// AlertSink receives high and critical events. Dispatch is called from a
// goroutine; failures are logged, never surfaced to the request path.
type AlertSink interface {
	Dispatch(ctx context.Context, event models.SecurityEvent) error
}

// ArchiveSink receives events evicted from the in-memory store (by cap or
// retention) before they are dropped. Best-effort.
type ArchiveSink interface {
	Archive(ctx context.Context, events []models.SecurityEvent) error
}

// Cache is the expiring key-value store. Operations never return errors:
// internal failures degrade to a miss or a no-op and are logged by the
// implementation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)

	// Clear removes all keys matching the glob pattern; an empty pattern
	// clears everything.
	Clear(ctx context.Context, pattern string)
}

// KeySnapshotStore persists API key definitions across restarts. The
// in-memory manager stays authoritative; snapshots are written through on
// mutation and loaded once at startup.
type KeySnapshotStore interface {
	Save(ctx context.Context, key *models.APIKey) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]*models.APIKey, error)
}

// KeyProvider generates data-encryption key material.
type KeyProvider interface {
	// GenerateDataKey returns new key material.
	GenerateDataKey(ctx context.Context, alias string) ([]byte, error)

	// Name identifies the backing provider ("local", "vault").
	Name() string
}
