package allocator

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// ValidateWeek audits a fully assembled week independently of how it was
// produced. It is a pure function of the context state: running it twice
// yields the same violations, and it never mutates anything. Critical
// violations mean the week must be rejected; warnings are tolerable
// outcomes the engine accepts under pressure.
func ValidateWeek(c *WeekContext) []model.RuleViolation {
	var violations []model.RuleViolation

	byBroker := make(map[uuid.UUID][]*model.Assignment)
	for _, a := range c.Assignments {
		byBroker[a.BrokerID] = append(byBroker[a.BrokerID], a)
	}

	brokerIDs := make([]uuid.UUID, 0, len(byBroker))
	for id := range byBroker {
		brokerIDs = append(brokerIDs, id)
	}
	sort.Slice(brokerIDs, func(i, j int) bool { return brokerIDs[i].String() < brokerIDs[j].String() })

	for _, brokerID := range brokerIDs {
		assignments := byBroker[brokerID]
		sort.SliceStable(assignments, func(i, j int) bool {
			if assignments[i].Date != assignments[j].Date {
				return assignments[i].Date < assignments[j].Date
			}
			return shiftRank(assignments[i].Shift) < shiftRank(assignments[j].Shift)
		})

		violations = append(violations, c.checkBrokerWeek(brokerID, assignments)...)
	}

	return violations
}

// HasCritical reports whether any violation is severe enough to reject the
// week
func HasCritical(violations []model.RuleViolation) bool {
	for _, v := range violations {
		if v.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

func (c *WeekContext) checkBrokerWeek(brokerID uuid.UUID, assignments []*model.Assignment) []model.RuleViolation {
	var out []model.RuleViolation

	name := brokerID.String()
	if broker, ok := c.Brokers[brokerID]; ok {
		name = broker.Name
	}

	report := func(rule Rule, locationID uuid.UUID, date, description string, severity model.Severity) {
		out = append(out, model.RuleViolation{
			Rule:        string(rule),
			BrokerID:    brokerID,
			BrokerName:  name,
			LocationID:  locationID,
			Date:        date,
			Description: description,
			Severity:    severity,
		})
	}

	externalDates := make(map[string]bool)
	externalCount := 0
	slots := make(map[string]*model.Assignment)
	byDate := make(map[string][]*model.Assignment)

	for _, a := range assignments {
		byDate[a.Date] = append(byDate[a.Date], a)

		slot := a.Date + "|" + string(a.Shift)
		if prior, dup := slots[slot]; dup {
			report(RuleDoubleBooking, a.LocationID, a.Date,
				fmt.Sprintf("two assignments in the same slot (%s and %s)",
					c.locationName(prior.LocationID), c.locationName(a.LocationID)),
				model.SeverityCritical)
		}
		slots[slot] = a

		if c.IsExternal(a.LocationID) {
			externalCount++
			externalDates[a.Date] = true
		}
	}

	// Per-day conflicts: distinct external sites, builder mixes, and the
	// same location twice in one day
	for date, dayAssignments := range byDate {
		out = append(out, c.checkBrokerDay(brokerID, name, date, dayAssignments)...)
	}

	switch {
	case externalCount > c.Opts.WeeklyCap:
		report(RuleWeeklyCap, uuid.Nil, "",
			fmt.Sprintf("%d external shifts this week, cap is %d", externalCount, c.Opts.WeeklyCap),
			model.SeverityCritical)
	case externalCount == c.Opts.WeeklyCap:
		report(RuleWeeklyCap, uuid.Nil, "",
			fmt.Sprintf("%d external shifts this week, at the cap", externalCount),
			model.SeverityWarning)
	}

	out = append(out, c.checkBrokerWeekend(brokerID, name, byDate)...)
	out = append(out, c.checkBrokerRuns(brokerID, name, externalDates)...)
	out = append(out, c.checkRotationRepeats(brokerID, name, assignments)...)

	return out
}

func (c *WeekContext) checkBrokerDay(brokerID uuid.UUID, name, date string, assignments []*model.Assignment) []model.RuleViolation {
	var out []model.RuleViolation

	externalSites := make(map[uuid.UUID]bool)
	builders := make(map[string]bool)
	perLocation := make(map[uuid.UUID]int)

	for _, a := range assignments {
		perLocation[a.LocationID]++
		if !c.IsExternal(a.LocationID) {
			continue
		}
		externalSites[a.LocationID] = true
		if loc, ok := c.Locations[a.LocationID]; ok && loc.BuilderTag != "" {
			builders[loc.BuilderTag] = true
		}
	}

	if len(externalSites) > 1 {
		out = append(out, model.RuleViolation{
			Rule: string(RuleTwoExternalSites), BrokerID: brokerID, BrokerName: name, Date: date,
			Description: fmt.Sprintf("%d distinct external sites on one day", len(externalSites)),
			Severity:    model.SeverityCritical,
		})
	}
	if len(builders) > 1 {
		out = append(out, model.RuleViolation{
			Rule: string(RuleBuilderConflict), BrokerID: brokerID, BrokerName: name, Date: date,
			Description: "serving competing builders on the same day",
			Severity:    model.SeverityCritical,
		})
	}
	for locationID, count := range perLocation {
		if count < 2 || !c.IsExternal(locationID) {
			continue
		}
		severity := model.SeverityCritical
		// A site with a single configured broker has no one else to take the
		// second shift
		if c.ConfiguredBrokerCount(locationID) <= 1 {
			severity = model.SeverityWarning
		}
		out = append(out, model.RuleViolation{
			Rule: string(RuleSameLocationTwice), BrokerID: brokerID, BrokerName: name,
			LocationID: locationID, Date: date,
			Description: fmt.Sprintf("both shifts at %s on one day", c.locationName(locationID)),
			Severity:    severity,
		})
	}

	return out
}

func (c *WeekContext) checkBrokerWeekend(brokerID uuid.UUID, name string, byDate map[string][]*model.Assignment) []model.RuleViolation {
	saturday, sunday := c.SaturdayOf(), c.SundayOf()
	if saturday == "" || sunday == "" {
		return nil
	}
	if len(byDate[saturday]) == 0 || len(byDate[sunday]) == 0 {
		return nil
	}
	return []model.RuleViolation{{
		Rule: string(RuleWeekendExclusivity), BrokerID: brokerID, BrokerName: name, Date: saturday,
		Description: "duty on both Saturday and Sunday of the same weekend",
		Severity:    model.SeverityCritical,
	}}
}

func (c *WeekContext) checkBrokerRuns(brokerID uuid.UUID, name string, externalDates map[string]bool) []model.RuleViolation {
	dates := make([]string, 0, len(externalDates))
	for date := range externalDates {
		dates = append(dates, date)
	}
	for _, prior := range c.Acc.PriorExternalDates[brokerID] {
		if !externalDates[prior] {
			dates = append(dates, prior)
		}
	}
	sort.Strings(dates)

	var out []model.RuleViolation
	if hasThreeDayRun(dates) {
		out = append(out, model.RuleViolation{
			Rule: string(RuleThreeConsecutive), BrokerID: brokerID, BrokerName: name,
			Description: "three consecutive days of external duty",
			Severity:    model.SeverityCritical,
		})
	}
	for i := 0; i+1 < len(dates); i++ {
		if daysBetween(dates[i], dates[i+1]) == 1 {
			out = append(out, model.RuleViolation{
				Rule: string(RuleConsecutiveExternals), BrokerID: brokerID, BrokerName: name,
				Date:        dates[i+1],
				Description: fmt.Sprintf("external duty on adjacent days %s and %s", dates[i], dates[i+1]),
				Severity:    model.SeverityWarning,
			})
		}
	}
	return out
}

// checkRotationRepeats flags a broker working the same external site on the
// same weekday pattern two weeks running, unless the site has no one else
func (c *WeekContext) checkRotationRepeats(brokerID uuid.UUID, name string, assignments []*model.Assignment) []model.RuleViolation {
	priorLocations := c.Acc.PriorWeekLocations[brokerID]
	if len(priorLocations) == 0 {
		return nil
	}

	var out []model.RuleViolation
	seen := make(map[uuid.UUID]bool)
	for _, a := range assignments {
		if !c.IsExternal(a.LocationID) || !priorLocations[a.LocationID] || seen[a.LocationID] {
			continue
		}
		seen[a.LocationID] = true
		if weekdayOf(a.Date) == time.Saturday || weekdayOf(a.Date) == time.Sunday {
			continue
		}
		// A site with a single configured broker repeats by necessity
		if c.ConfiguredBrokerCount(a.LocationID) <= 1 {
			continue
		}
		out = append(out, model.RuleViolation{
			Rule: string(RuleRotationRepeat), BrokerID: brokerID, BrokerName: name,
			LocationID: a.LocationID, Date: a.Date,
			Description: fmt.Sprintf("worked %s last week as well", c.locationName(a.LocationID)),
			Severity:    model.SeverityCritical,
		})
	}
	return out
}

func (c *WeekContext) locationName(locationID uuid.UUID) string {
	if loc, ok := c.Locations[locationID]; ok {
		return loc.Name
	}
	return locationID.String()
}
