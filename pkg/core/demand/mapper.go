package demand

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/model"
)

// ImpossibleDemand is a coverage slot no configured broker can fill. These
// indicate a configuration gap and are reported, never silently dropped.
type ImpossibleDemand struct {
	Demand model.Demand
	Reason string
}

// BuildInput carries everything the mapper needs for one week
type BuildInput struct {
	WeekStart string // YYYY-MM-DD, Monday
	WeekEnd   string // YYYY-MM-DD, Sunday
	Locations []*model.Location
	Brokers   map[uuid.UUID]*model.Broker

	// BlockedDates are config-level exclusions on top of the per-period
	// excluded dates. A nil shift list blocks the whole day.
	BlockedDates map[string][]model.Shift
}

// BuildDemands derives the week's concrete (location, date, shift) demands
// from the active external locations and their periods.
//
// Per-day config precedence: specific-date entry > weekly template. A
// location in specific-date mode never falls back to its template; dates
// without an entry produce no demands. Per-shift exclusions apply on top,
// so a day can lose only its morning or only its afternoon.
func BuildDemands(input BuildInput, logger *zap.Logger) ([]*model.Demand, []ImpossibleDemand, error) {
	start, err := time.Parse("2006-01-02", input.WeekStart)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid week start %q: %w", input.WeekStart, err)
	}
	end, err := time.Parse("2006-01-02", input.WeekEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid week end %q: %w", input.WeekEnd, err)
	}

	var demands []*model.Demand
	var impossible []ImpossibleDemand

	for _, loc := range input.Locations {
		if loc.Type != model.LocationExternal {
			continue
		}

		for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
			date := day.Format("2006-01-02")

			period := activePeriod(loc, date)
			if period == nil {
				continue
			}

			cfg, ok := resolveDayConfig(loc, period, date, day.Weekday())
			if !ok {
				continue
			}

			for _, shift := range []model.Shift{model.ShiftMorning, model.ShiftAfternoon} {
				if !shiftConfigured(cfg, shift) {
					continue
				}
				if shiftExcluded(period, date, shift) {
					logger.Debug("shift excluded by period configuration",
						zap.String("location", loc.Name),
						zap.String("date", date),
						zap.String("shift", string(shift)))
					continue
				}
				if shiftBlocked(input.BlockedDates, date, shift) {
					logger.Debug("shift blocked by config override",
						zap.String("location", loc.Name),
						zap.String("date", date),
						zap.String("shift", string(shift)))
					continue
				}

				d := &model.Demand{
					LocationID:   loc.ID,
					LocationName: loc.Name,
					Date:         date,
					Weekday:      day.Weekday(),
					Shift:        shift,
					BuilderTag:   loc.BuilderTag,
				}
				d.StartTime, d.EndTime = shiftTimes(cfg, shift)
				d.EligibleBrokerIDs = EligibleBrokers(loc, day.Weekday(), shift, input.Brokers)

				if len(d.EligibleBrokerIDs) == 0 {
					impossible = append(impossible, ImpossibleDemand{
						Demand: *d,
						Reason: "no configured broker is available for this weekday and shift",
					})
					logger.Warn("impossible demand: no eligible broker",
						zap.String("location", loc.Name),
						zap.String("date", date),
						zap.String("shift", string(shift)))
					continue
				}

				demands = append(demands, d)
			}
		}
	}

	logger.Info("demands built",
		zap.String("week_start", input.WeekStart),
		zap.Int("demands", len(demands)),
		zap.Int("impossible", len(impossible)))

	return demands, impossible, nil
}

// ResolveDay returns the effective day configuration of a location for a
// date, applying the same precedence the mapper uses. Used for internal
// locations, which carry periods and templates but produce no demands.
func ResolveDay(loc *model.Location, date string) (model.DayConfig, bool) {
	period := activePeriod(loc, date)
	if period == nil {
		return model.DayConfig{}, false
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return model.DayConfig{}, false
	}
	cfg, ok := resolveDayConfig(loc, period, date, day.Weekday())
	if !ok {
		return model.DayConfig{}, false
	}
	for _, shift := range []model.Shift{model.ShiftMorning, model.ShiftAfternoon} {
		if shiftConfigured(cfg, shift) && shiftExcluded(period, date, shift) {
			if shift == model.ShiftMorning {
				cfg.HasMorning = false
			} else {
				cfg.HasAfternoon = false
			}
		}
	}
	if !cfg.HasMorning && !cfg.HasAfternoon {
		return model.DayConfig{}, false
	}
	return cfg, true
}

// activePeriod returns the first period containing the date, or nil
func activePeriod(loc *model.Location, date string) *model.Period {
	for i := range loc.Periods {
		if loc.Periods[i].Contains(date) {
			return &loc.Periods[i]
		}
	}
	return nil
}

// resolveDayConfig applies the config precedence for one day
func resolveDayConfig(loc *model.Location, period *model.Period, date string, weekday time.Weekday) (model.DayConfig, bool) {
	if period.SpecificDates != nil {
		if cfg, ok := period.SpecificDates[date]; ok {
			return cfg, true
		}
	}
	// Specific-date-only locations never fall back to the template
	if loc.ConfigMode == model.ConfigSpecificDate {
		return model.DayConfig{}, false
	}
	if period.DayTemplates != nil {
		if cfg, ok := period.DayTemplates[weekday]; ok {
			return cfg, true
		}
	}
	return model.DayConfig{}, false
}

func shiftConfigured(cfg model.DayConfig, shift model.Shift) bool {
	if shift == model.ShiftMorning {
		return cfg.HasMorning
	}
	return cfg.HasAfternoon
}

func shiftExcluded(period *model.Period, date string, shift model.Shift) bool {
	for _, excluded := range period.ExcludedDates {
		if excluded.Date == date && excluded.Excludes(shift) {
			return true
		}
	}
	return false
}

func shiftBlocked(blocked map[string][]model.Shift, date string, shift model.Shift) bool {
	shifts, ok := blocked[date]
	if !ok {
		return false
	}
	if shifts == nil {
		return true
	}
	for _, s := range shifts {
		if s == shift {
			return true
		}
	}
	return false
}

func shiftTimes(cfg model.DayConfig, shift model.Shift) (string, string) {
	if shift == model.ShiftMorning {
		return cfg.MorningStart, cfg.MorningEnd
	}
	return cfg.AfternoonStart, cfg.AfternoonEnd
}
