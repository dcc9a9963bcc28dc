package allocator

import (
	"time"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// Week under test: Monday 2026-03-02 through Sunday 2026-03-08
const (
	testWeekStart = "2026-03-02"
	testWeekEnd   = "2026-03-08"
	testSaturday  = "2026-03-07"
	testSunday    = "2026-03-08"
)

func testOptions() Options {
	return Options{
		WeeklyTarget:         2,
		WeeklyCap:            3,
		SmallTeamSize:        3,
		SmallTeamExternalCap: 2,
	}
}

func allWeekdays() map[time.Weekday]bool {
	days := make(map[time.Weekday]bool)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[d] = true
	}
	return days
}

func testBroker(name string) *model.Broker {
	return &model.Broker{
		ID:                uuid.New(),
		Name:              name,
		Active:            true,
		AvailableWeekdays: allWeekdays(),
	}
}

func testExternalLocation(name, builder string, brokers ...*model.Broker) *model.Location {
	loc := &model.Location{
		ID:         uuid.New(),
		Name:       name,
		Type:       model.LocationExternal,
		BuilderTag: builder,
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

// testInternalOffice builds an office whose template requires Saturday
// morning staffing with the given floor
func testInternalOffice(name string, minSaturday int, brokers ...*model.Broker) *model.Location {
	loc := &model.Location{
		ID:         uuid.New(),
		Name:       name,
		Type:       model.LocationInternal,
		ConfigMode: model.ConfigWeekdayTemplate,
	}
	loc.Periods = []model.Period{{
		LocationID: loc.ID,
		StartDate:  "2026-01-01",
		EndDate:    "2026-12-31",
		DayTemplates: map[time.Weekday]model.DayConfig{
			time.Saturday: {
				HasMorning:   true,
				MorningStart: "09:00",
				MorningEnd:   "13:00",
				MinBrokers:   minSaturday,
			},
		},
	}}
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

func testDemand(loc *model.Location, date string, shift model.Shift, eligible ...*model.Broker) *model.Demand {
	d := &model.Demand{
		LocationID:   loc.ID,
		LocationName: loc.Name,
		Date:         date,
		Weekday:      weekdayOf(date),
		Shift:        shift,
		StartTime:    "09:00",
		EndTime:      "13:00",
		BuilderTag:   loc.BuilderTag,
	}
	for _, b := range eligible {
		d.EligibleBrokerIDs = append(d.EligibleBrokerIDs, b.ID)
	}
	return d
}

func testContext(brokers []*model.Broker, locations []*model.Location, demands []*model.Demand) *WeekContext {
	brokerMap := make(map[uuid.UUID]*model.Broker)
	for _, b := range brokers {
		brokerMap[b.ID] = b
	}
	locationMap := make(map[uuid.UUID]*model.Location)
	for _, l := range locations {
		locationMap[l.ID] = l
	}

	queues := make(map[uuid.UUID]*RotationQueue)
	saturdayQueues := make(map[uuid.UUID]*RotationQueue)
	for _, l := range locations {
		q := NewRotationQueue(l.ID, nil)
		for _, link := range l.Links {
			q.EnsureBroker(link.BrokerID)
		}
		if l.Type == model.LocationExternal {
			queues[l.ID] = q
		} else {
			saturdayQueues[l.ID] = q
		}
	}

	return NewWeekContext(
		testWeekStart, testWeekEnd, testOptions(),
		brokerMap, locationMap, demands, queues, saturdayQueues, NewAccumulator())
}
