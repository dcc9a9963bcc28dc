package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// GetRotationQueues retrieves the external-location rotation queue rows,
// ordered by location then position
func (d *DB) GetRotationQueues(ctx context.Context) ([]model.QueueEntry, error) {
	return d.queryQueue(ctx, "rotation_queue")
}

// GetSaturdayQueues retrieves the internal-location Saturday queue rows,
// ordered by location then position
func (d *DB) GetSaturdayQueues(ctx context.Context) ([]model.QueueEntry, error) {
	return d.queryQueue(ctx, "saturday_queue")
}

func (d *DB) queryQueue(ctx context.Context, table string) ([]model.QueueEntry, error) {
	rows, err := d.pool.Query(ctx, fmt.Sprintf(`
		SELECT location_id, broker_id, position, times_assigned, last_assigned
		FROM %s
		ORDER BY location_id, position
	`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var entries []model.QueueEntry
	for rows.Next() {
		var entry model.QueueEntry
		var lastAssigned *time.Time
		if err := rows.Scan(&entry.LocationID, &entry.BrokerID, &entry.Position,
			&entry.TimesAssigned, &lastAssigned); err != nil {
			return nil, fmt.Errorf("failed to scan %s entry: %w", table, err)
		}
		if lastAssigned != nil {
			entry.LastAssigned = lastAssigned.Format("2006-01-02")
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}
	return entries, nil
}

// ReplaceRotationQueue rewrites one location's rotation queue in a
// transaction so a failed write never leaves a half-renumbered queue
func (d *DB) ReplaceRotationQueue(ctx context.Context, locationID uuid.UUID, entries []model.QueueEntry) error {
	return d.replaceQueue(ctx, "rotation_queue", locationID, entries)
}

// ReplaceSaturdayQueue rewrites one internal location's Saturday queue
func (d *DB) ReplaceSaturdayQueue(ctx context.Context, locationID uuid.UUID, entries []model.QueueEntry) error {
	return d.replaceQueue(ctx, "saturday_queue", locationID, entries)
}

func (d *DB) replaceQueue(ctx context.Context, table string, locationID uuid.UUID, entries []model.QueueEntry) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin queue transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE location_id = $1`, table), locationID); err != nil {
		return fmt.Errorf("failed to clear %s for location %s: %w", table, locationID, err)
	}

	for _, entry := range entries {
		var lastAssigned *string
		if entry.LastAssigned != "" {
			lastAssigned = &entry.LastAssigned
		}
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (location_id, broker_id, position, times_assigned, last_assigned)
			VALUES ($1, $2, $3, $4, $5)
		`, table), locationID, entry.BrokerID, entry.Position, entry.TimesAssigned, lastAssigned)
		if err != nil {
			return fmt.Errorf("failed to insert %s entry: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s rewrite: %w", table, err)
	}
	return nil
}
