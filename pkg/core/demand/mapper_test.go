package demand

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/model"
)

// Week under test: Monday 2026-03-02 through Sunday 2026-03-08
const (
	weekStart = "2026-03-02"
	weekEnd   = "2026-03-08"
)

func fullAvailability() map[time.Weekday]bool {
	days := make(map[time.Weekday]bool)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[d] = true
	}
	return days
}

func makeBroker(name string) *model.Broker {
	return &model.Broker{
		ID:                uuid.New(),
		Name:              name,
		Active:            true,
		AvailableWeekdays: fullAvailability(),
	}
}

func weekdayTemplate(days ...time.Weekday) map[time.Weekday]model.DayConfig {
	templates := make(map[time.Weekday]model.DayConfig)
	for _, d := range days {
		templates[d] = model.DayConfig{
			HasMorning:     true,
			HasAfternoon:   true,
			MorningStart:   "09:00",
			MorningEnd:     "13:00",
			AfternoonStart: "14:00",
			AfternoonEnd:   "18:00",
		}
	}
	return templates
}

func makeLocation(name string, brokers ...*model.Broker) *model.Location {
	loc := &model.Location{
		ID:         uuid.New(),
		Name:       name,
		Type:       model.LocationExternal,
		ConfigMode: model.ConfigWeekdayTemplate,
	}
	for _, b := range brokers {
		loc.Links = append(loc.Links, model.LocationBrokerLink{
			BrokerID:   b.ID,
			LocationID: loc.ID,
			Morning:    true,
			Afternoon:  true,
		})
	}
	return loc
}

func brokerMap(brokers ...*model.Broker) map[uuid.UUID]*model.Broker {
	m := make(map[uuid.UUID]*model.Broker)
	for _, b := range brokers {
		m[b.ID] = b
	}
	return m
}

func buildFor(t *testing.T, locations []*model.Location, brokers map[uuid.UUID]*model.Broker, blocked map[string][]model.Shift) ([]*model.Demand, []ImpossibleDemand) {
	t.Helper()
	demands, impossible, err := BuildDemands(BuildInput{
		WeekStart:    weekStart,
		WeekEnd:      weekEnd,
		Locations:    locations,
		Brokers:      brokers,
		BlockedDates: blocked,
	}, zap.NewNop())
	require.NoError(t, err)
	return demands, impossible
}

func TestBuildDemandsFromWeekdayTemplate(t *testing.T) {
	a := makeBroker("Ana")
	loc := makeLocation("Stand Norte", a)
	loc.Periods = []model.Period{{
		LocationID:   loc.ID,
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		DayTemplates: weekdayTemplate(time.Monday, time.Wednesday),
	}}

	demands, impossible := buildFor(t, []*model.Location{loc}, brokerMap(a), nil)

	assert.Empty(t, impossible)
	require.Len(t, demands, 4, "two configured days, two shifts each")
	for _, d := range demands {
		assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday}, d.Weekday)
		assert.Equal(t, []uuid.UUID{a.ID}, d.EligibleBrokerIDs)
	}
	assert.Equal(t, "09:00", demands[0].StartTime)
}

func TestBuildDemandsSpecificDateModeNoFallback(t *testing.T) {
	a := makeBroker("Ana")
	loc := makeLocation("Stand Feirao", a)
	loc.ConfigMode = model.ConfigSpecificDate
	loc.Periods = []model.Period{{
		LocationID:   loc.ID,
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		DayTemplates: weekdayTemplate(time.Monday, time.Tuesday, time.Wednesday),
		SpecificDates: map[string]model.DayConfig{
			"2026-03-05": {HasMorning: true, MorningStart: "10:00", MorningEnd: "14:00"},
		},
	}}

	demands, _ := buildFor(t, []*model.Location{loc}, brokerMap(a), nil)

	require.Len(t, demands, 1, "the template must not leak into specific-date mode")
	assert.Equal(t, "2026-03-05", demands[0].Date)
	assert.Equal(t, model.ShiftMorning, demands[0].Shift)
	assert.Equal(t, "10:00", demands[0].StartTime)
}

func TestBuildDemandsSpecificDateOverridesTemplate(t *testing.T) {
	a := makeBroker("Ana")
	loc := makeLocation("Stand Norte", a)
	loc.Periods = []model.Period{{
		LocationID:   loc.ID,
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		DayTemplates: weekdayTemplate(time.Monday),
		SpecificDates: map[string]model.DayConfig{
			// Monday of the test week loses its afternoon
			"2026-03-02": {HasMorning: true, MorningStart: "09:00", MorningEnd: "13:00"},
		},
	}}

	demands, _ := buildFor(t, []*model.Location{loc}, brokerMap(a), nil)

	require.Len(t, demands, 1)
	assert.Equal(t, model.ShiftMorning, demands[0].Shift)
}

func TestBuildDemandsExcludedDates(t *testing.T) {
	a := makeBroker("Ana")
	loc := makeLocation("Stand Norte", a)
	loc.Periods = []model.Period{{
		LocationID:   loc.ID,
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		DayTemplates: weekdayTemplate(time.Monday, time.Tuesday),
		ExcludedDates: []model.ExcludedDate{
			{Date: "2026-03-02"}, // whole day
			{Date: "2026-03-03", ExcludedShifts: []model.Shift{model.ShiftAfternoon}},
		},
	}}

	demands, _ := buildFor(t, []*model.Location{loc}, brokerMap(a), nil)

	require.Len(t, demands, 1)
	assert.Equal(t, "2026-03-03", demands[0].Date)
	assert.Equal(t, model.ShiftMorning, demands[0].Shift)
}

func TestBuildDemandsBlockedDates(t *testing.T) {
	a := makeBroker("Ana")
	loc := makeLocation("Stand Norte", a)
	loc.Periods = []model.Period{{
		LocationID:   loc.ID,
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		DayTemplates: weekdayTemplate(time.Monday, time.Tuesday),
	}}

	blocked := map[string][]model.Shift{
		"2026-03-02": nil, // whole day blocked
		"2026-03-03": {model.ShiftMorning},
	}
	demands, _ := buildFor(t, []*model.Location{loc}, brokerMap(a), blocked)

	require.Len(t, demands, 1)
	assert.Equal(t, "2026-03-03", demands[0].Date)
	assert.Equal(t, model.ShiftAfternoon, demands[0].Shift)
}

func TestBuildDemandsOutsidePeriod(t *testing.T) {
	a := makeBroker("Ana")
	loc := makeLocation("Stand Encerrado", a)
	loc.Periods = []model.Period{{
		LocationID:   loc.ID,
		StartDate:    "2026-01-01",
		EndDate:      "2026-02-28",
		DayTemplates: weekdayTemplate(time.Monday),
	}}

	demands, impossible := buildFor(t, []*model.Location{loc}, brokerMap(a), nil)
	assert.Empty(t, demands)
	assert.Empty(t, impossible)
}

func TestBuildDemandsImpossibleDemandReported(t *testing.T) {
	a := makeBroker("Ana")
	a.AvailableWeekdays[time.Monday] = false

	loc := makeLocation("Stand Norte", a)
	loc.Periods = []model.Period{{
		LocationID:   loc.ID,
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		DayTemplates: weekdayTemplate(time.Monday),
	}}

	demands, impossible := buildFor(t, []*model.Location{loc}, brokerMap(a), nil)

	assert.Empty(t, demands)
	require.Len(t, impossible, 2, "both Monday shifts are impossible")
	assert.Equal(t, "2026-03-02", impossible[0].Demand.Date)
	assert.NotEmpty(t, impossible[0].Reason)
}

func TestBuildDemandsInternalLocationsIgnored(t *testing.T) {
	a := makeBroker("Ana")
	office := makeLocation("Escritorio Centro", a)
	office.Type = model.LocationInternal
	office.Periods = []model.Period{{
		LocationID:   office.ID,
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		DayTemplates: weekdayTemplate(time.Monday),
	}}

	demands, _ := buildFor(t, []*model.Location{office}, brokerMap(a), nil)
	assert.Empty(t, demands)
}

func TestEligibleBrokersGlobalAvailabilityWins(t *testing.T) {
	a := makeBroker("Ana")
	a.AvailableWeekdays[time.Sunday] = false

	loc := makeLocation("Stand Norte", a)

	// The link says Sunday morning is fine, the global settings say no:
	// the override can narrow but never widen
	loc.Links[0].ShiftOverride = map[time.Weekday][]model.Shift{
		time.Sunday: {model.ShiftMorning},
	}

	eligible := EligibleBrokers(loc, time.Sunday, model.ShiftMorning, brokerMap(a))
	assert.Empty(t, eligible)
}

func TestEligibleBrokersLinkOverrideNarrows(t *testing.T) {
	a := makeBroker("Ana")
	loc := makeLocation("Stand Norte", a)
	loc.Links[0].ShiftOverride = map[time.Weekday][]model.Shift{
		time.Monday: {model.ShiftMorning},
	}

	assert.Len(t, EligibleBrokers(loc, time.Monday, model.ShiftMorning, brokerMap(a)), 1)
	assert.Empty(t, EligibleBrokers(loc, time.Monday, model.ShiftAfternoon, brokerMap(a)))
	assert.Empty(t, EligibleBrokers(loc, time.Tuesday, model.ShiftMorning, brokerMap(a)))
}

func TestEligibleBrokersGlobalShiftMap(t *testing.T) {
	a := makeBroker("Ana")
	a.GlobalShiftMap = map[time.Weekday][]model.Shift{
		time.Monday: {model.ShiftMorning},
	}
	loc := makeLocation("Stand Norte", a)

	assert.Len(t, EligibleBrokers(loc, time.Monday, model.ShiftMorning, brokerMap(a)), 1)
	assert.Empty(t, EligibleBrokers(loc, time.Monday, model.ShiftAfternoon, brokerMap(a)))
}

func TestEligibleBrokersInactiveSkipped(t *testing.T) {
	a := makeBroker("Ana")
	a.Active = false
	loc := makeLocation("Stand Norte", a)

	assert.Empty(t, EligibleBrokers(loc, time.Monday, model.ShiftMorning, brokerMap(a)))
}

func TestResolveDayAppliesExclusions(t *testing.T) {
	a := makeBroker("Ana")
	loc := makeLocation("Escritorio Centro", a)
	loc.Type = model.LocationInternal
	loc.Periods = []model.Period{{
		LocationID:   loc.ID,
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		DayTemplates: weekdayTemplate(time.Monday),
		ExcludedDates: []model.ExcludedDate{
			{Date: "2026-03-02", ExcludedShifts: []model.Shift{model.ShiftMorning}},
		},
	}}

	cfg, ok := ResolveDay(loc, "2026-03-02")
	require.True(t, ok)
	assert.False(t, cfg.HasMorning)
	assert.True(t, cfg.HasAfternoon)

	_, ok = ResolveDay(loc, "2026-03-03")
	assert.False(t, ok, "unconfigured weekday resolves to nothing")
}
