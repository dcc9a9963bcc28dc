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

// dayConfigJSON mirrors model.DayConfig for JSONB storage
type dayConfigJSON struct {
	HasMorning     bool   `json:"has_morning"`
	HasAfternoon   bool   `json:"has_afternoon"`
	MorningStart   string `json:"morning_start,omitempty"`
	MorningEnd     string `json:"morning_end,omitempty"`
	AfternoonStart string `json:"afternoon_start,omitempty"`
	AfternoonEnd   string `json:"afternoon_end,omitempty"`
	MaxBrokers     int    `json:"max_brokers,omitempty"`
	MinBrokers     int    `json:"min_brokers,omitempty"`
}

func (j dayConfigJSON) toModel() model.DayConfig {
	return model.DayConfig{
		HasMorning:     j.HasMorning,
		HasAfternoon:   j.HasAfternoon,
		MorningStart:   j.MorningStart,
		MorningEnd:     j.MorningEnd,
		AfternoonStart: j.AfternoonStart,
		AfternoonEnd:   j.AfternoonEnd,
		MaxBrokers:     j.MaxBrokers,
		MinBrokers:     j.MinBrokers,
	}
}

// GetActiveLocations retrieves all active locations with their periods,
// day configs, excluded dates and broker links loaded
func (d *DB) GetActiveLocations(ctx context.Context) ([]*model.Location, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, type, builder_tag, config_mode
		FROM location
		WHERE active
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}

	locationsByID := make(map[uuid.UUID]*model.Location)
	var locations []*model.Location
	for rows.Next() {
		var loc model.Location
		var locType, configMode string
		if err := rows.Scan(&loc.ID, &loc.Name, &locType, &loc.BuilderTag, &configMode); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		loc.Type = model.LocationType(locType)
		loc.ConfigMode = model.ConfigMode(configMode)
		locationsByID[loc.ID] = &loc
		locations = append(locations, &loc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}

	if err := d.loadPeriods(ctx, locationsByID); err != nil {
		return nil, err
	}
	if err := d.loadLinks(ctx, locationsByID); err != nil {
		return nil, err
	}

	return locations, nil
}

func (d *DB) loadPeriods(ctx context.Context, locationsByID map[uuid.UUID]*model.Location) error {
	rows, err := d.pool.Query(ctx, `
		SELECT p.id, p.location_id, p.start_date, p.end_date,
		       p.day_templates, p.specific_dates
		FROM period p
		JOIN location l ON l.id = p.location_id
		WHERE l.active
	`)
	if err != nil {
		return fmt.Errorf("failed to query periods: %w", err)
	}

	periodIDs := make(map[uuid.UUID]struct {
		locationID uuid.UUID
		index      int
	})
	for rows.Next() {
		var (
			periodID          uuid.UUID
			locationID        uuid.UUID
			startDate         time.Time
			endDate           time.Time
			dayTemplatesJSON  []byte
			specificDatesJSON []byte
		)
		if err := rows.Scan(&periodID, &locationID, &startDate, &endDate,
			&dayTemplatesJSON, &specificDatesJSON); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan period: %w", err)
		}

		loc, ok := locationsByID[locationID]
		if !ok {
			continue
		}

		period := model.Period{
			LocationID: locationID,
			StartDate:  startDate.Format("2006-01-02"),
			EndDate:    endDate.Format("2006-01-02"),
		}

		if dayTemplatesJSON != nil {
			templates, err := decodeDayTemplates(dayTemplatesJSON)
			if err != nil {
				rows.Close()
				return fmt.Errorf("period %s has invalid day_templates: %w", periodID, err)
			}
			period.DayTemplates = templates
		}

		if specificDatesJSON != nil {
			var raw map[string]dayConfigJSON
			if err := json.Unmarshal(specificDatesJSON, &raw); err != nil {
				rows.Close()
				return fmt.Errorf("period %s has invalid specific_dates: %w", periodID, err)
			}
			period.SpecificDates = make(map[string]model.DayConfig, len(raw))
			for date, cfg := range raw {
				period.SpecificDates[date] = cfg.toModel()
			}
		}

		loc.Periods = append(loc.Periods, period)
		periodIDs[periodID] = struct {
			locationID uuid.UUID
			index      int
		}{locationID, len(loc.Periods) - 1}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating periods: %w", err)
	}

	return d.loadExcludedDates(ctx, locationsByID, periodIDs)
}

func (d *DB) loadExcludedDates(
	ctx context.Context,
	locationsByID map[uuid.UUID]*model.Location,
	periodIDs map[uuid.UUID]struct {
		locationID uuid.UUID
		index      int
	},
) error {
	rows, err := d.pool.Query(ctx, `
		SELECT period_id, date, excluded_shifts
		FROM excluded_date
	`)
	if err != nil {
		return fmt.Errorf("failed to query excluded dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			periodID uuid.UUID
			date     time.Time
			shifts   []string
		)
		if err := rows.Scan(&periodID, &date, &shifts); err != nil {
			return fmt.Errorf("failed to scan excluded date: %w", err)
		}

		ref, ok := periodIDs[periodID]
		if !ok {
			continue
		}
		loc := locationsByID[ref.locationID]

		excluded := model.ExcludedDate{Date: date.Format("2006-01-02")}
		// A NULL excluded_shifts column means the whole day is excluded
		if shifts != nil {
			excluded.ExcludedShifts = make([]model.Shift, 0, len(shifts))
			for _, s := range shifts {
				excluded.ExcludedShifts = append(excluded.ExcludedShifts, model.Shift(s))
			}
		}

		loc.Periods[ref.index].ExcludedDates = append(loc.Periods[ref.index].ExcludedDates, excluded)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating excluded dates: %w", err)
	}
	return nil
}

func (d *DB) loadLinks(ctx context.Context, locationsByID map[uuid.UUID]*model.Location) error {
	rows, err := d.pool.Query(ctx, `
		SELECT lbl.location_id, lbl.broker_id, lbl.shift_override, lbl.morning, lbl.afternoon
		FROM location_broker_link lbl
		JOIN location l ON l.id = lbl.location_id
		JOIN broker b ON b.id = lbl.broker_id
		WHERE l.active AND b.active
	`)
	if err != nil {
		return fmt.Errorf("failed to query broker links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link model.LocationBrokerLink
		var overrideJSON []byte
		if err := rows.Scan(&link.LocationID, &link.BrokerID, &overrideJSON,
			&link.Morning, &link.Afternoon); err != nil {
			return fmt.Errorf("failed to scan broker link: %w", err)
		}

		if overrideJSON != nil {
			override, err := decodeWeekdayShifts(overrideJSON)
			if err != nil {
				return fmt.Errorf("link %s/%s has invalid shift_override: %w",
					link.LocationID, link.BrokerID, err)
			}
			link.ShiftOverride = override
		}

		if loc, ok := locationsByID[link.LocationID]; ok {
			loc.Links = append(loc.Links, link)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating broker links: %w", err)
	}
	return nil
}

func decodeDayTemplates(data []byte) (map[time.Weekday]model.DayConfig, error) {
	var raw map[string]dayConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	templates := make(map[time.Weekday]model.DayConfig, len(raw))
	for key, cfg := range raw {
		wd, err := strconv.Atoi(key)
		if err != nil || wd < 0 || wd > 6 {
			return nil, fmt.Errorf("invalid weekday key %q", key)
		}
		templates[time.Weekday(wd)] = cfg.toModel()
	}
	return templates, nil
}

func decodeWeekdayShifts(data []byte) (map[time.Weekday][]model.Shift, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	result := make(map[time.Weekday][]model.Shift, len(raw))
	for key, shifts := range raw {
		wd, err := strconv.Atoi(key)
		if err != nil || wd < 0 || wd > 6 {
			return nil, fmt.Errorf("invalid weekday key %q", key)
		}
		converted := make([]model.Shift, 0, len(shifts))
		for _, s := range shifts {
			converted = append(converted, model.Shift(s))
		}
		result[time.Weekday(wd)] = converted
	}
	return result, nil
}
