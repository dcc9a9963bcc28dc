package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plantao/plantao/internal/config"
	"github.com/plantao/plantao/pkg/core/allocator"
	"github.com/plantao/plantao/pkg/core/model"
	"github.com/plantao/plantao/pkg/db"
)

const dateLayout = "2006-01-02"

// mondayOf returns the Monday of the week containing the date
func mondayOf(date string) (string, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(dateLayout), nil
}

// addDays shifts a YYYY-MM-DD date by n calendar days
func addDays(date string, n int) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, n).Format(dateLayout)
}

// weekStartsOfMonth returns the Mondays of every week that starts within the
// month ("2006-01")
func weekStartsOfMonth(month string) ([]string, error) {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q (want YYYY-MM): %w", month, err)
	}
	last := first.AddDate(0, 1, -1)

	monday, err := mondayOf(first.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	if monday < first.Format(dateLayout) {
		monday = addDays(monday, 7)
	}

	var weeks []string
	for ; monday <= last.Format(dateLayout); monday = addDays(monday, 7) {
		weeks = append(weeks, monday)
	}
	return weeks, nil
}

// convertBlockedDates maps the config's expanded blocked dates to model
// shifts. A nil list blocks the whole day.
func convertBlockedDates(blocked map[string][]string) map[string][]model.Shift {
	out := make(map[string][]model.Shift, len(blocked))
	for date, shifts := range blocked {
		if shifts == nil {
			out[date] = nil
			continue
		}
		converted := make([]model.Shift, 0, len(shifts))
		for _, s := range shifts {
			converted = append(converted, model.Shift(s))
		}
		out[date] = converted
	}
	return out
}

// expandBlockedDatesFor expands the config's blocked-date rules over one week
func expandBlockedDatesFor(cfg *config.Config, weekStart, weekEnd string) (map[string][]model.Shift, error) {
	start, err := time.Parse(dateLayout, weekStart)
	if err != nil {
		return nil, fmt.Errorf("invalid week start %q: %w", weekStart, err)
	}
	end, err := time.Parse(dateLayout, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid week end %q: %w", weekEnd, err)
	}
	blocked, err := cfg.ExpandBlockedDates(start, end)
	if err != nil {
		return nil, err
	}
	return convertBlockedDates(blocked), nil
}

func brokersByID(brokers []*model.Broker) map[uuid.UUID]*model.Broker {
	out := make(map[uuid.UUID]*model.Broker, len(brokers))
	for _, b := range brokers {
		out[b.ID] = b
	}
	return out
}

func locationsByID(locations []*model.Location) map[uuid.UUID]*model.Location {
	out := make(map[uuid.UUID]*model.Location, len(locations))
	for _, l := range locations {
		out[l.ID] = l
	}
	return out
}

func allocatorOptions(cfg *config.Config) allocator.Options {
	return allocator.Options{
		WeeklyTarget:         cfg.WeeklyExternalTarget,
		WeeklyCap:            cfg.WeeklyExternalCap,
		SmallTeamSize:        cfg.SmallTeamSize,
		SmallTeamExternalCap: cfg.SmallTeamExternalCap,
	}
}

// groupQueueEntries splits flat queue rows into per-location rotation queues
func groupQueueEntries(entries []model.QueueEntry) map[uuid.UUID]*allocator.RotationQueue {
	grouped := make(map[uuid.UUID][]model.QueueEntry)
	for _, e := range entries {
		grouped[e.LocationID] = append(grouped[e.LocationID], e)
	}
	queues := make(map[uuid.UUID]*allocator.RotationQueue, len(grouped))
	for locationID, locEntries := range grouped {
		queues[locationID] = allocator.NewRotationQueue(locationID, locEntries)
	}
	return queues
}

// primeAccumulator seeds a fresh accumulator from persisted state: the
// rotation queues, the previous week's assignments, and the external duty of
// the three days before the week under generation. When no prior week is
// stored, the counters carried on the roster stand in for the missing
// history; the rolling Saturday counts seed the monthly weekend spread
// either way.
func primeAccumulator(
	ctx context.Context,
	store db.GenerationStore,
	brokers map[uuid.UUID]*model.Broker,
	locations map[uuid.UUID]*model.Location,
	weekStart string,
) (*allocator.Accumulator, error) {
	acc := allocator.NewAccumulator()

	rotationEntries, err := store.GetRotationQueues(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rotation queues: %w", err)
	}
	acc.RotationQueues = groupQueueEntries(rotationEntries)

	saturdayEntries, err := store.GetSaturdayQueues(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch saturday queues: %w", err)
	}
	acc.SaturdayQueues = groupQueueEntries(saturdayEntries)

	priorStart := addDays(weekStart, -7)
	priorEnd := addDays(weekStart, -1)
	prior, err := store.GetAssignmentsBetween(ctx, priorStart, priorEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prior week assignments: %w", err)
	}

	lookbackFrom := addDays(weekStart, -3)
	priorExternals := 0
	for _, a := range prior {
		loc, ok := locations[a.LocationID]
		if !ok || loc.Type != model.LocationExternal {
			continue
		}
		priorExternals++
		acc.PriorWeekExternals[a.BrokerID]++
		if acc.PriorWeekLocations[a.BrokerID] == nil {
			acc.PriorWeekLocations[a.BrokerID] = make(map[uuid.UUID]bool)
		}
		acc.PriorWeekLocations[a.BrokerID][a.LocationID] = true
		if a.Date >= lookbackFrom {
			acc.PriorExternalDates[a.BrokerID] = appendDate(acc.PriorExternalDates[a.BrokerID], a.Date)
		}
	}

	for id, b := range brokers {
		if priorExternals == 0 && b.ExternalsLastWeek > 0 {
			acc.PriorWeekExternals[id] = b.ExternalsLastWeek
		}
		if b.RecentSaturdays > 0 {
			acc.MonthlySaturdays[id] = b.RecentSaturdays
		}
	}

	return acc, nil
}

func appendDate(dates []string, date string) []string {
	for _, d := range dates {
		if d == date {
			return dates
		}
	}
	return append(dates, date)
}

// advanceAccumulator replays an accepted week onto the accumulator so the
// next week's generation sees it as history
func advanceAccumulator(acc *allocator.Accumulator, weekCtx *allocator.WeekContext) {
	acc.RotationQueues = weekCtx.Queues
	acc.SaturdayQueues = weekCtx.SaturdayQueues

	acc.PriorExternalDates = make(map[uuid.UUID][]string)
	acc.PriorWeekLocations = make(map[uuid.UUID]map[uuid.UUID]bool)
	acc.PriorWeekExternals = make(map[uuid.UUID]int)

	lookbackFrom := addDays(weekCtx.WeekEnd, -2)
	saturday, sunday := weekCtx.SaturdayOf(), weekCtx.SundayOf()

	for _, a := range weekCtx.Assignments {
		if a.Date == saturday {
			acc.MonthlySaturdays[a.BrokerID]++
			bumpByLocation(acc.SaturdaysByLocation, a.BrokerID, a.LocationID)
		}
		if a.Date == sunday {
			acc.MonthlySundays[a.BrokerID]++
			bumpByLocation(acc.SundaysByLocation, a.BrokerID, a.LocationID)
		}

		if !weekCtx.IsExternal(a.LocationID) {
			continue
		}
		acc.PriorWeekExternals[a.BrokerID]++
		if acc.PriorWeekLocations[a.BrokerID] == nil {
			acc.PriorWeekLocations[a.BrokerID] = make(map[uuid.UUID]bool)
		}
		acc.PriorWeekLocations[a.BrokerID][a.LocationID] = true
		if a.Date >= lookbackFrom {
			acc.PriorExternalDates[a.BrokerID] = appendDate(acc.PriorExternalDates[a.BrokerID], a.Date)
		}
	}
}

func bumpByLocation(m map[uuid.UUID]map[uuid.UUID]int, brokerID, locationID uuid.UUID) {
	if m[brokerID] == nil {
		m[brokerID] = make(map[uuid.UUID]int)
	}
	m[brokerID][locationID]++
}

// weeklyStatsOf summarizes a generated week per broker
func weeklyStatsOf(weekCtx *allocator.WeekContext) []model.WeeklyStat {
	byBroker := make(map[uuid.UUID]*model.WeeklyStat)
	saturday, sunday := weekCtx.SaturdayOf(), weekCtx.SundayOf()

	for _, a := range weekCtx.Assignments {
		stat, ok := byBroker[a.BrokerID]
		if !ok {
			stat = &model.WeeklyStat{BrokerID: a.BrokerID, WeekStart: weekCtx.WeekStart}
			byBroker[a.BrokerID] = stat
		}
		if weekCtx.IsExternal(a.LocationID) {
			stat.ExternalShifts++
		} else {
			stat.InternalShifts++
		}
		if a.Date == saturday {
			stat.SaturdayShifts++
		}
		if a.Date == sunday {
			stat.SundayShifts++
		}
	}

	stats := make([]model.WeeklyStat, 0, len(byBroker))
	for _, stat := range byBroker {
		stats = append(stats, *stat)
	}
	return stats
}

// persistQueues writes every queue the week touched back to the store
func persistQueues(ctx context.Context, store db.QueueStore, weekCtx *allocator.WeekContext) error {
	for locationID, queue := range weekCtx.Queues {
		if err := store.ReplaceRotationQueue(ctx, locationID, queue.Entries()); err != nil {
			return fmt.Errorf("failed to persist rotation queue for location %s: %w", locationID, err)
		}
	}
	for locationID, queue := range weekCtx.SaturdayQueues {
		if err := store.ReplaceSaturdayQueue(ctx, locationID, queue.Entries()); err != nil {
			return fmt.Errorf("failed to persist saturday queue for location %s: %w", locationID, err)
		}
	}
	return nil
}
