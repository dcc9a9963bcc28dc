package allocator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// Rule identifies a scheduling rule in verdicts and violation reports
type Rule string

const (
	RuleDoubleBooking        Rule = "double_booking"
	RuleTwoExternalSites     Rule = "two_external_sites_same_day"
	RuleBuilderConflict      Rule = "builder_conflict"
	RuleSameLocationTwice    Rule = "same_location_twice_same_day"
	RuleWeekendExclusivity   Rule = "weekend_exclusivity"
	RuleSaturdayReservation  Rule = "internal_saturday_reservation"
	RuleThreeConsecutive     Rule = "three_consecutive_external_days"
	RuleConsecutiveExternals Rule = "consecutive_external_days"
	RuleNotEligible          Rule = "not_eligible"
	RuleWeeklyCap            Rule = "weekly_external_cap"
	RuleRotationRepeat       Rule = "rotation_repeat"
)

// Relaxation selects how permissive the rule pipeline is. Only the
// adjacent-day rule is ever relaxed; everything else holds at every level.
type Relaxation int

const (
	// RelaxNone checks the full pipeline
	RelaxNone Relaxation = iota

	// RelaxConsecutive admits an external shift adjacent to an existing
	// external day. Reserved for the last-resort phase, and only for
	// brokers still under the weekly target.
	RelaxConsecutive
)

// Verdict is the typed outcome of a rule check
type Verdict struct {
	Allowed bool
	Rule    Rule
	Reason  string
}

func allowedVerdict() Verdict {
	return Verdict{Allowed: true}
}

func deniedVerdict(rule Rule, reason string) Verdict {
	return Verdict{Allowed: false, Rule: rule, Reason: reason}
}

// CheckAssignment evaluates whether a broker may take an external demand.
// One pipeline serves every pass; the relaxation level is the only policy
// lever, so the strict and relaxed paths can never drift apart.
func (c *WeekContext) CheckAssignment(brokerID uuid.UUID, d *model.Demand, relax Relaxation) Verdict {
	if !containsID(d.EligibleBrokerIDs, brokerID) {
		return deniedVerdict(RuleNotEligible, "broker is not in the demand's eligible set")
	}

	if c.externalCount[brokerID] >= c.Opts.WeeklyCap {
		return deniedVerdict(RuleWeeklyCap,
			fmt.Sprintf("broker already holds %d external shifts this week", c.externalCount[brokerID]))
	}

	if c.AssignmentAt(brokerID, d.Date, d.Shift) != nil {
		return deniedVerdict(RuleDoubleBooking, "broker already assigned in this date and shift")
	}

	for _, a := range c.AssignmentsOn(brokerID, d.Date) {
		if a.LocationID == d.LocationID {
			return deniedVerdict(RuleSameLocationTwice,
				"broker already covers another shift at this location today")
		}
		if c.IsExternal(a.LocationID) {
			return deniedVerdict(RuleTwoExternalSites,
				"broker already covers a different external site today")
		}
		if other, ok := c.Locations[a.LocationID]; ok &&
			other.BuilderTag != "" && d.BuilderTag != "" && other.BuilderTag != d.BuilderTag {
			return deniedVerdict(RuleBuilderConflict,
				fmt.Sprintf("broker already serves builder %q today", other.BuilderTag))
		}
	}

	if v := c.checkWeekend(brokerID, d.Date); !v.Allowed {
		return v
	}

	// Three calendar-consecutive external days are forbidden even when the
	// adjacent-day rule below is relaxed
	if hasThreeDayRun(c.ExternalDates(brokerID, d.Date)) {
		return deniedVerdict(RuleThreeConsecutive,
			"assignment would create three consecutive external days")
	}

	if relax == RelaxNone {
		if c.HasExternalOn(brokerID, addDays(d.Date, -1)) || c.HasExternalOn(brokerID, addDays(d.Date, 1)) {
			return deniedVerdict(RuleConsecutiveExternals,
				"broker holds external duty on an adjacent day")
		}
	}

	return allowedVerdict()
}

// checkWeekend enforces weekend exclusivity: any Saturday duty (assigned or
// pre-reserved for an internal office) excludes the adjacent Sunday, and
// vice versa.
func (c *WeekContext) checkWeekend(brokerID uuid.UUID, date string) Verdict {
	switch weekdayOf(date) {
	case time.Saturday:
		if _, reserved := c.ReservedSaturday[brokerID]; reserved {
			return deniedVerdict(RuleSaturdayReservation,
				"broker is reserved for internal Saturday duty")
		}
		sunday := addDays(date, 1)
		if len(c.AssignmentsOn(brokerID, sunday)) > 0 {
			return deniedVerdict(RuleWeekendExclusivity,
				"broker already has Sunday duty this weekend")
		}
	case time.Sunday:
		if _, reserved := c.ReservedSaturday[brokerID]; reserved {
			return deniedVerdict(RuleWeekendExclusivity,
				"broker is reserved for internal Saturday duty this weekend")
		}
		saturday := addDays(date, -1)
		if len(c.AssignmentsOn(brokerID, saturday)) > 0 {
			return deniedVerdict(RuleWeekendExclusivity,
				"broker already has Saturday duty this weekend")
		}
	}
	return allowedVerdict()
}

// hasThreeDayRun reports whether the sorted date list contains three entries
// that are pairwise one calendar day apart
func hasThreeDayRun(dates []string) bool {
	for i := 0; i+2 < len(dates); i++ {
		if daysBetween(dates[i], dates[i+1]) == 1 && daysBetween(dates[i+1], dates[i+2]) == 1 {
			return true
		}
	}
	return false
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
