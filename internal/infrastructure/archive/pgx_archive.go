// Package archive persists events evicted from the in-memory store so the
// 30-day in-memory window does not silently discard history.
package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/logger"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS security_event_archive (
    id          TEXT PRIMARY KEY,
    occurred_at TIMESTAMPTZ NOT NULL,
    event_type  TEXT NOT NULL,
    severity    TEXT NOT NULL,
    source      TEXT NOT NULL,
    description TEXT NOT NULL,
    resolved    BOOLEAN NOT NULL,
    payload     JSONB NOT NULL
)`

// PgxArchive writes evicted events to PostgreSQL in batches via COPY.
type PgxArchive struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

var _ service.ArchiveSink = (*PgxArchive)(nil)

// NewPgxArchive creates the archive writer and ensures its table exists.
func NewPgxArchive(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) (*PgxArchive, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create archive table: %w", err)
	}
	return &PgxArchive{
		pool:   pool,
		logger: log.WithComponent("event_archive"),
	}, nil
}

// Archive persists the events. Large batches use COPY; small batches use a
// plain batch insert so ON CONFLICT can drop duplicate ids.
func (a *PgxArchive) Archive(ctx context.Context, events []models.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(events))
	for i := range events {
		payload, err := json.Marshal(&events[i])
		if err != nil {
			a.logger.Warn(ctx, "skipping unmarshalable event",
				logger.String("event_id", events[i].ID), logger.Error(err))
			continue
		}
		rows = append(rows, []interface{}{
			events[i].ID,
			events[i].Timestamp,
			string(events[i].Type),
			string(events[i].Severity),
			events[i].Source,
			events[i].Description,
			events[i].Resolved,
			payload,
		})
	}

	if len(rows) >= 100 {
		return a.copyRows(ctx, rows)
	}
	return a.insertRows(ctx, rows)
}

func (a *PgxArchive) copyRows(ctx context.Context, rows [][]interface{}) error {
	_, err := a.pool.CopyFrom(ctx,
		pgx.Identifier{"security_event_archive"},
		[]string{"id", "occurred_at", "event_type", "severity", "source", "description", "resolved", "payload"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		a.logger.Error(ctx, "archive copy failed", err, logger.Int("events", len(rows)))
		return fmt.Errorf("failed to archive events: %w", err)
	}
	return nil
}

func (a *PgxArchive) insertRows(ctx context.Context, rows [][]interface{}) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`INSERT INTO security_event_archive
			(id, occurred_at, event_type, severity, source, description, resolved, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`, row...)
	}

	results := a.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			a.logger.Error(ctx, "archive insert failed", err)
			return fmt.Errorf("failed to archive events: %w", err)
		}
	}
	return nil
}

// Count returns the number of archived events, used by diagnostics.
func (a *PgxArchive) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.pool.QueryRow(ctx, "SELECT count(*) FROM security_event_archive").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count archived events: %w", err)
	}
	return n, nil
}
