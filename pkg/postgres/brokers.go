package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// GetActiveBrokers retrieves all active brokers with their global
// availability and the count of external locations that link them
func (d *DB) GetActiveBrokers(ctx context.Context) ([]*model.Broker, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT b.id, b.name, b.available_weekdays, b.global_shift_map,
		       b.home_location_id, b.externals_last_week, b.recent_saturdays,
		       (SELECT COUNT(*)
		        FROM location_broker_link lbl
		        JOIN location l ON l.id = lbl.location_id
		        WHERE lbl.broker_id = b.id AND l.type = 'external' AND l.active)
		FROM broker b
		WHERE b.active
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query brokers: %w", err)
	}
	defer rows.Close()

	var brokers []*model.Broker
	for rows.Next() {
		var (
			b             model.Broker
			weekdays      []int32
			shiftMapJSON  []byte
			homeLocation  *uuid.UUID
		)
		if err := rows.Scan(&b.ID, &b.Name, &weekdays, &shiftMapJSON,
			&homeLocation, &b.ExternalsLastWeek, &b.RecentSaturdays,
			&b.ConfiguredExternalCount); err != nil {
			return nil, fmt.Errorf("failed to scan broker: %w", err)
		}

		b.Active = true
		b.HomeLocationID = homeLocation
		b.AvailableWeekdays = make(map[time.Weekday]bool, len(weekdays))
		for _, wd := range weekdays {
			b.AvailableWeekdays[time.Weekday(wd)] = true
		}

		if shiftMapJSON != nil {
			shiftMap, err := decodeShiftMap(shiftMapJSON)
			if err != nil {
				return nil, fmt.Errorf("broker %s has invalid global_shift_map: %w", b.ID, err)
			}
			b.GlobalShiftMap = shiftMap
		}

		brokers = append(brokers, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brokers: %w", err)
	}

	return brokers, nil
}

// decodeShiftMap parses a JSONB weekday-to-shifts map keyed by the weekday
// number ("0" = Sunday, matching time.Weekday)
func decodeShiftMap(data []byte) (map[time.Weekday][]model.Shift, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	shiftMap := make(map[time.Weekday][]model.Shift, len(raw))
	for key, shifts := range raw {
		wd, err := strconv.Atoi(key)
		if err != nil || wd < 0 || wd > 6 {
			return nil, fmt.Errorf("invalid weekday key %q", key)
		}
		converted := make([]model.Shift, 0, len(shifts))
		for _, s := range shifts {
			shift := model.Shift(s)
			if !shift.IsValid() {
				return nil, fmt.Errorf("invalid shift %q for weekday %s", s, key)
			}
			converted = append(converted, shift)
		}
		shiftMap[time.Weekday(wd)] = converted
	}
	return shiftMap, nil
}
