package model

import (
	"time"

	"github.com/google/uuid"
)

// Shift identifies one of the two daily duty slots
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
)

func (s Shift) IsValid() bool {
	return s == ShiftMorning || s == ShiftAfternoon
}

// LocationType distinguishes company offices from client/builder sites
type LocationType string

const (
	LocationInternal LocationType = "internal"
	LocationExternal LocationType = "external"
)

// ConfigMode controls how a period resolves its per-day shift configuration
type ConfigMode string

const (
	// ConfigWeekdayTemplate resolves from a day-of-week template,
	// overridden by specific-date entries when present
	ConfigWeekdayTemplate ConfigMode = "weekday_template"

	// ConfigSpecificDate resolves only from specific-date entries;
	// dates without an entry produce no demands
	ConfigSpecificDate ConfigMode = "specific_date"
)

// Broker represents a real-estate broker on the duty roster
type Broker struct {
	ID     uuid.UUID
	Name   string
	Active bool

	// AvailableWeekdays is the broker's global availability. A weekday
	// absent here can never be re-admitted by a location override.
	AvailableWeekdays map[time.Weekday]bool

	// GlobalShiftMap optionally narrows availability further to specific
	// shifts per weekday. Nil means all shifts on available weekdays.
	GlobalShiftMap map[time.Weekday][]Shift

	// HomeLocationID is the broker's internal office, if any (at most one)
	HomeLocationID *uuid.UUID

	// ExternalsLastWeek is the broker's external shift count from the
	// previous week, used to compute this week's target
	ExternalsLastWeek int

	// RecentSaturdays is the count of Saturdays worked in the rolling window
	RecentSaturdays int

	// ConfiguredExternalCount is how many external locations link this broker
	ConfiguredExternalCount int
}

// AvailableOn reports whether the broker's global settings admit the
// given weekday and shift
func (b *Broker) AvailableOn(weekday time.Weekday, shift Shift) bool {
	if !b.AvailableWeekdays[weekday] {
		return false
	}
	if b.GlobalShiftMap == nil {
		return true
	}
	shifts, ok := b.GlobalShiftMap[weekday]
	if !ok {
		return false
	}
	for _, s := range shifts {
		if s == shift {
			return true
		}
	}
	return false
}

// Location represents a staffed site, internal or external
type Location struct {
	ID         uuid.UUID
	Name       string
	Type       LocationType
	BuilderTag string // construction company, empty for internal locations
	ConfigMode ConfigMode
	Periods    []Period
	Links      []LocationBrokerLink
}

// Period is a date range during which a location is active
type Period struct {
	LocationID uuid.UUID
	StartDate  string // YYYY-MM-DD
	EndDate    string // YYYY-MM-DD

	// DayTemplates configures shifts per weekday (weekday-template mode)
	DayTemplates map[time.Weekday]DayConfig

	// SpecificDates overrides the template for individual dates
	SpecificDates map[string]DayConfig

	ExcludedDates []ExcludedDate
}

// Contains reports whether the date (YYYY-MM-DD) falls inside the period
func (p Period) Contains(date string) bool {
	return date >= p.StartDate && date <= p.EndDate
}

// DayConfig describes the shifts required on a single day
type DayConfig struct {
	HasMorning     bool
	HasAfternoon   bool
	MorningStart   string // HH:MM
	MorningEnd     string
	AfternoonStart string
	AfternoonEnd   string

	// MaxBrokers caps staffing for the day (0 = one per shift)
	MaxBrokers int

	// MinBrokers is the staffing floor for internal locations
	MinBrokers int
}

// ExcludedDate removes a whole day or individual shifts from a period.
// A nil ExcludedShifts excludes the entire day.
type ExcludedDate struct {
	Date           string
	ExcludedShifts []Shift
}

// Excludes reports whether the given shift is excluded on this date
func (e ExcludedDate) Excludes(shift Shift) bool {
	if e.ExcludedShifts == nil {
		return true
	}
	for _, s := range e.ExcludedShifts {
		if s == shift {
			return true
		}
	}
	return false
}

// LocationBrokerLink associates a broker with a location. The override, when
// present, can only narrow the broker's global availability, never widen it.
type LocationBrokerLink struct {
	BrokerID   uuid.UUID
	LocationID uuid.UUID

	// ShiftOverride maps weekday to the shifts the broker covers at this
	// location. Nil means fall back to the legacy Morning/Afternoon flags.
	ShiftOverride map[time.Weekday][]Shift

	// Legacy per-link flags, used when ShiftOverride is nil
	Morning   bool
	Afternoon bool
}

// CoversShift reports whether the link admits the given weekday and shift
func (l LocationBrokerLink) CoversShift(weekday time.Weekday, shift Shift) bool {
	if l.ShiftOverride != nil {
		for _, s := range l.ShiftOverride[weekday] {
			if s == shift {
				return true
			}
		}
		return false
	}
	if shift == ShiftMorning {
		return l.Morning
	}
	return l.Afternoon
}

// Demand is a required (location, date, shift) coverage slot. Demands are
// derived fresh each week from period configuration and never persisted.
type Demand struct {
	LocationID   uuid.UUID
	LocationName string
	Date         string // YYYY-MM-DD
	Weekday      time.Weekday
	Shift        Shift
	StartTime    string
	EndTime      string
	BuilderTag   string

	// EligibleBrokerIDs is resolved by the eligibility resolver before the
	// demand enters the allocation engine
	EligibleBrokerIDs []uuid.UUID
}

// Key returns a stable identity for the demand within a week
func (d Demand) Key() string {
	return d.LocationID.String() + "|" + d.Date + "|" + string(d.Shift)
}

// AssignmentSource records which stage of generation produced an assignment
type AssignmentSource string

const (
	SourceExternalEngine   AssignmentSource = "external_engine"
	SourceInternalSaturday AssignmentSource = "internal_saturday"
	SourceInternalWeekday  AssignmentSource = "internal_weekday"
)

// Assignment is the output unit: one broker covering one shift at one
// location on one date. At most one assignment exists per
// (broker, date, shift).
type Assignment struct {
	ID         uuid.UUID
	BrokerID   uuid.UUID
	LocationID uuid.UUID
	Date       string
	Shift      Shift
	StartTime  string
	EndTime    string
	Source     AssignmentSource
}

// Severity classifies a rule violation
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// RuleViolation is produced by the validator and written to the audit report
type RuleViolation struct {
	Rule        string
	BrokerID    uuid.UUID
	BrokerName  string
	LocationID  uuid.UUID
	Date        string
	Description string
	Severity    Severity
}

// WeeklyStat is the per-broker tally persisted at the end of a week
type WeeklyStat struct {
	BrokerID       uuid.UUID
	WeekStart      string
	ExternalShifts int
	InternalShifts int
	SaturdayShifts int
	SundayShifts   int
}
