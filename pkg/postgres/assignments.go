package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/plantao/plantao/pkg/core/model"
	"github.com/plantao/plantao/pkg/db"
)

// GetAssignmentsBetween returns assignments with startDate <= date <= endDate
func (d *DB) GetAssignmentsBetween(ctx context.Context, startDate, endDate string) ([]*model.Assignment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, broker_id, location_id, date, shift, start_time, end_time, source
		FROM assignment
		WHERE date >= $1 AND date <= $2
		ORDER BY date, shift
	`, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*model.Assignment
	for rows.Next() {
		var a model.Assignment
		var date time.Time
		var shift, source string
		if err := rows.Scan(&a.ID, &a.BrokerID, &a.LocationID, &date,
			&shift, &a.StartTime, &a.EndTime, &source); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Date = date.Format("2006-01-02")
		a.Shift = model.Shift(shift)
		a.Source = model.AssignmentSource(source)
		assignments = append(assignments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return assignments, nil
}

// InsertAssignments persists a week's produced assignments
func (d *DB) InsertAssignments(ctx context.Context, assignments []*model.Assignment) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin assignment transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range assignments {
		_, err := tx.Exec(ctx, `
			INSERT INTO assignment (id, broker_id, location_id, date, shift, start_time, end_time, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, a.ID, a.BrokerID, a.LocationID, a.Date, string(a.Shift), a.StartTime, a.EndTime, string(a.Source))
		if err != nil {
			return fmt.Errorf("failed to insert assignment for broker %s on %s: %w", a.BrokerID, a.Date, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit assignments: %w", err)
	}
	return nil
}

// GetWeeklyStats retrieves the persisted per-broker stats for a week
func (d *DB) GetWeeklyStats(ctx context.Context, weekStart string) ([]model.WeeklyStat, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT broker_id, week_start, external_shifts, internal_shifts, saturday_shifts, sunday_shifts
		FROM weekly_stat
		WHERE week_start = $1
	`, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly stats: %w", err)
	}
	defer rows.Close()

	var stats []model.WeeklyStat
	for rows.Next() {
		var s model.WeeklyStat
		var week time.Time
		if err := rows.Scan(&s.BrokerID, &week, &s.ExternalShifts,
			&s.InternalShifts, &s.SaturdayShifts, &s.SundayShifts); err != nil {
			return nil, fmt.Errorf("failed to scan weekly stat: %w", err)
		}
		s.WeekStart = week.Format("2006-01-02")
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weekly stats: %w", err)
	}
	return stats, nil
}

// UpsertWeeklyStats writes the per-broker tallies for an accepted week
func (d *DB) UpsertWeeklyStats(ctx context.Context, stats []model.WeeklyStat) error {
	for _, s := range stats {
		_, err := d.pool.Exec(ctx, `
			INSERT INTO weekly_stat (broker_id, week_start, external_shifts, internal_shifts, saturday_shifts, sunday_shifts)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (broker_id, week_start) DO UPDATE SET
				external_shifts = EXCLUDED.external_shifts,
				internal_shifts = EXCLUDED.internal_shifts,
				saturday_shifts = EXCLUDED.saturday_shifts,
				sunday_shifts = EXCLUDED.sunday_shifts
		`, s.BrokerID, s.WeekStart, s.ExternalShifts, s.InternalShifts, s.SaturdayShifts, s.SundayShifts)
		if err != nil {
			return fmt.Errorf("failed to upsert weekly stat for broker %s: %w", s.BrokerID, err)
		}
	}
	return nil
}

// InsertValidationReport persists the audit report for a generation run
func (d *DB) InsertValidationReport(ctx context.Context, report *db.ValidationReport) error {
	violationsJSON, err := json.Marshal(report.Violations)
	if err != nil {
		return fmt.Errorf("failed to encode violations: %w", err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO validation_report (id, week_start, attempt, valid, violations)
		VALUES ($1, $2, $3, $4, $5)
	`, report.ID, report.WeekStart, report.Attempt, report.Valid, violationsJSON)
	if err != nil {
		return fmt.Errorf("failed to insert validation report: %w", err)
	}
	return nil
}
