package allocator

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// Options are the tunable fairness parameters of the engine
type Options struct {
	// WeeklyTarget is the fairness target of external shifts per broker
	WeeklyTarget int

	// WeeklyCap is the hard ceiling of external shifts per broker per week,
	// never exceeded under any circumstance
	WeeklyCap int

	// SmallTeamSize / SmallTeamExternalCap protect office coverage: an
	// internal location with at most SmallTeamSize linked brokers may have
	// at most SmallTeamExternalCap of them on external duty per weekday
	SmallTeamSize        int
	SmallTeamExternalCap int
}

// Accumulator is the state carried between week generations within a month:
// monthly weekend counts, the previous week's external picture, and the
// in-memory rotation queues. One generation run owns it for the whole month.
type Accumulator struct {
	// MonthlySaturdays / MonthlySundays count weekend duty per broker
	MonthlySaturdays map[uuid.UUID]int
	MonthlySundays   map[uuid.UUID]int

	// SaturdaysByLocation avoids concentrating a broker's weekend work at
	// one site: brokerID -> locationID -> count this month
	SaturdaysByLocation map[uuid.UUID]map[uuid.UUID]int
	SundaysByLocation   map[uuid.UUID]map[uuid.UUID]int

	// PriorExternalDates holds each broker's external-duty dates from the
	// last three days before the week under generation, for the cross-week
	// consecutive-day checks
	PriorExternalDates map[uuid.UUID][]string

	// PriorWeekLocations records which external locations each broker
	// worked the previous week (cross-week rotation check)
	PriorWeekLocations map[uuid.UUID]map[uuid.UUID]bool

	// PriorWeekExternals is each broker's external count last week, used to
	// derive this week's target
	PriorWeekExternals map[uuid.UUID]int

	// RotationQueues (external locations) and SaturdayQueues (internal
	// locations) are the authoritative queue state between weeks
	RotationQueues map[uuid.UUID]*RotationQueue
	SaturdayQueues map[uuid.UUID]*RotationQueue
}

// NewAccumulator returns an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{
		MonthlySaturdays:    make(map[uuid.UUID]int),
		MonthlySundays:      make(map[uuid.UUID]int),
		SaturdaysByLocation: make(map[uuid.UUID]map[uuid.UUID]int),
		SundaysByLocation:   make(map[uuid.UUID]map[uuid.UUID]int),
		PriorExternalDates:  make(map[uuid.UUID][]string),
		PriorWeekLocations:  make(map[uuid.UUID]map[uuid.UUID]bool),
		PriorWeekExternals:  make(map[uuid.UUID]int),
		RotationQueues:      make(map[uuid.UUID]*RotationQueue),
		SaturdayQueues:      make(map[uuid.UUID]*RotationQueue),
	}
}

// CloneQueues copies the queue state so a failed attempt's mutations can be
// discarded before the next retry
func (a *Accumulator) CloneQueues() (rotation, saturday map[uuid.UUID]*RotationQueue) {
	rotation = make(map[uuid.UUID]*RotationQueue, len(a.RotationQueues))
	for id, q := range a.RotationQueues {
		rotation[id] = NewRotationQueue(id, q.Entries())
	}
	saturday = make(map[uuid.UUID]*RotationQueue, len(a.SaturdayQueues))
	for id, q := range a.SaturdayQueues {
		saturday[id] = NewRotationQueue(id, q.Entries())
	}
	return rotation, saturday
}

// WeekContext is the mutable allocation state for a single attempt at one
// week. It owns attempt-local copies of the rotation queues; the service
// replays accepted mutations back onto the accumulator.
type WeekContext struct {
	WeekStart string // Monday
	WeekEnd   string // Sunday
	Opts      Options

	Brokers   map[uuid.UUID]*model.Broker
	Locations map[uuid.UUID]*model.Location
	Demands   []*model.Demand

	Queues         map[uuid.UUID]*RotationQueue
	SaturdayQueues map[uuid.UUID]*RotationQueue
	Acc            *Accumulator

	// Assignments produced so far in this attempt
	Assignments []*model.Assignment

	// ReservedSaturday maps a broker to the internal location they are
	// pre-reserved for on Saturday, before the assignment is materialized
	ReservedSaturday map[uuid.UUID]uuid.UUID

	// Reservations binds scarce brokers to critical demands:
	// "broker|date|shift" -> demand key (bottleneck pre-analysis)
	Reservations map[string]string

	// Allocated maps demand key -> assigned broker
	Allocated map[string]uuid.UUID

	byBrokerDateShift map[string]*model.Assignment
	byBrokerDate      map[string][]*model.Assignment
	externalCount     map[uuid.UUID]int
	targets           map[uuid.UUID]int
}

// NewWeekContext builds the attempt state. Queues passed in must already be
// attempt-local copies (see Accumulator.CloneQueues).
func NewWeekContext(
	weekStart, weekEnd string,
	opts Options,
	brokers map[uuid.UUID]*model.Broker,
	locations map[uuid.UUID]*model.Location,
	demands []*model.Demand,
	queues, saturdayQueues map[uuid.UUID]*RotationQueue,
	acc *Accumulator,
) *WeekContext {
	ctx := &WeekContext{
		WeekStart:         weekStart,
		WeekEnd:           weekEnd,
		Opts:              opts,
		Brokers:           brokers,
		Locations:         locations,
		Demands:           demands,
		Queues:            queues,
		SaturdayQueues:    saturdayQueues,
		Acc:               acc,
		ReservedSaturday:  make(map[uuid.UUID]uuid.UUID),
		Reservations:      make(map[string]string),
		Allocated:         make(map[string]uuid.UUID),
		byBrokerDateShift: make(map[string]*model.Assignment),
		byBrokerDate:      make(map[string][]*model.Assignment),
		externalCount:     make(map[uuid.UUID]int),
		targets:           make(map[uuid.UUID]int),
	}
	ctx.computeTargets()
	return ctx
}

// computeTargets derives each broker's external target: the standard target,
// reduced to 1 for brokers who worked >= target externals last week. The
// internal-Saturday reduction is applied later by ReserveInternalSaturdays.
func (c *WeekContext) computeTargets() {
	for id := range c.Brokers {
		target := c.Opts.WeeklyTarget
		if c.Acc.PriorWeekExternals[id] >= c.Opts.WeeklyTarget {
			target = 1
		}
		c.targets[id] = target
	}
}

// TargetOf returns the broker's external target for this week
func (c *WeekContext) TargetOf(brokerID uuid.UUID) int {
	return c.targets[brokerID]
}

// ExternalCount returns the broker's external assignments so far this week
func (c *WeekContext) ExternalCount(brokerID uuid.UUID) int {
	return c.externalCount[brokerID]
}

func bdsKey(brokerID uuid.UUID, date string, shift model.Shift) string {
	return brokerID.String() + "|" + date + "|" + string(shift)
}

func bdKey(brokerID uuid.UUID, date string) string {
	return brokerID.String() + "|" + date
}

// AssignmentAt returns the broker's assignment in the exact (date, shift)
// slot, or nil
func (c *WeekContext) AssignmentAt(brokerID uuid.UUID, date string, shift model.Shift) *model.Assignment {
	return c.byBrokerDateShift[bdsKey(brokerID, date, shift)]
}

// AssignmentsOn returns the broker's assignments on a date
func (c *WeekContext) AssignmentsOn(brokerID uuid.UUID, date string) []*model.Assignment {
	return c.byBrokerDate[bdKey(brokerID, date)]
}

// IsExternal reports whether the location is an external site
func (c *WeekContext) IsExternal(locationID uuid.UUID) bool {
	loc, ok := c.Locations[locationID]
	return ok && loc.Type == model.LocationExternal
}

// Assign materializes an assignment for a demand and updates all indices.
// External assignments advance the location's rotation queue.
func (c *WeekContext) Assign(d *model.Demand, brokerID uuid.UUID, source model.AssignmentSource) *model.Assignment {
	a := &model.Assignment{
		ID:         uuid.New(),
		BrokerID:   brokerID,
		LocationID: d.LocationID,
		Date:       d.Date,
		Shift:      d.Shift,
		StartTime:  d.StartTime,
		EndTime:    d.EndTime,
		Source:     source,
	}
	c.addAssignment(a)
	c.Allocated[d.Key()] = brokerID

	if c.IsExternal(d.LocationID) {
		if q, ok := c.Queues[d.LocationID]; ok {
			q.MoveToTail(brokerID, d.Date)
		}
	}
	return a
}

// AddInternal materializes an internal assignment (Saturday queue or
// weekday roster), bypassing demand bookkeeping
func (c *WeekContext) AddInternal(
	locationID uuid.UUID,
	brokerID uuid.UUID,
	date string,
	shift model.Shift,
	startTime, endTime string,
	source model.AssignmentSource,
) *model.Assignment {
	a := &model.Assignment{
		ID:         uuid.New(),
		BrokerID:   brokerID,
		LocationID: locationID,
		Date:       date,
		Shift:      shift,
		StartTime:  startTime,
		EndTime:    endTime,
		Source:     source,
	}
	c.addAssignment(a)
	return a
}

func (c *WeekContext) addAssignment(a *model.Assignment) {
	c.Assignments = append(c.Assignments, a)
	c.byBrokerDateShift[bdsKey(a.BrokerID, a.Date, a.Shift)] = a
	c.byBrokerDate[bdKey(a.BrokerID, a.Date)] = append(c.byBrokerDate[bdKey(a.BrokerID, a.Date)], a)
	if c.IsExternal(a.LocationID) {
		c.externalCount[a.BrokerID]++
	}
}

// LoadAssignments indexes already-persisted assignments into the context,
// for validating a stored week without regenerating it
func (c *WeekContext) LoadAssignments(assignments []*model.Assignment) {
	for _, a := range assignments {
		c.addAssignment(a)
		if c.IsExternal(a.LocationID) {
			c.Allocated[a.LocationID.String()+"|"+a.Date+"|"+string(a.Shift)] = a.BrokerID
		}
	}
}

// Reassign moves an existing assignment to a different broker (rebalancing
// and de-consecutivizing swaps). The receiving broker advances the rotation
// queue; the releasing broker's queue position is left as is.
func (c *WeekContext) Reassign(a *model.Assignment, newBrokerID uuid.UUID) {
	oldBrokerID := a.BrokerID

	delete(c.byBrokerDateShift, bdsKey(oldBrokerID, a.Date, a.Shift))
	c.byBrokerDate[bdKey(oldBrokerID, a.Date)] = removeAssignment(c.byBrokerDate[bdKey(oldBrokerID, a.Date)], a)
	if c.IsExternal(a.LocationID) {
		c.externalCount[oldBrokerID]--
	}

	a.BrokerID = newBrokerID
	c.byBrokerDateShift[bdsKey(newBrokerID, a.Date, a.Shift)] = a
	c.byBrokerDate[bdKey(newBrokerID, a.Date)] = append(c.byBrokerDate[bdKey(newBrokerID, a.Date)], a)
	if c.IsExternal(a.LocationID) {
		c.externalCount[newBrokerID]++
		if q, ok := c.Queues[a.LocationID]; ok {
			q.MoveToTail(newBrokerID, a.Date)
		}
		demandKey := a.LocationID.String() + "|" + a.Date + "|" + string(a.Shift)
		c.Allocated[demandKey] = newBrokerID
	}
}

func removeAssignment(list []*model.Assignment, target *model.Assignment) []*model.Assignment {
	for i, a := range list {
		if a == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// ExternalDates returns the broker's external-duty dates: the accumulator's
// prior-window dates plus this attempt's external assignments, sorted and
// de-duplicated. An optional candidate date is merged in, for what-if rule
// checks.
func (c *WeekContext) ExternalDates(brokerID uuid.UUID, candidate string) []string {
	seen := make(map[string]bool)
	for _, date := range c.Acc.PriorExternalDates[brokerID] {
		seen[date] = true
	}
	for _, a := range c.Assignments {
		if a.BrokerID == brokerID && c.IsExternal(a.LocationID) {
			seen[a.Date] = true
		}
	}
	if candidate != "" {
		seen[candidate] = true
	}

	dates := make([]string, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// HasExternalOn reports whether the broker holds external duty on a date,
// checking both this attempt and the accumulator's prior window
func (c *WeekContext) HasExternalOn(brokerID uuid.UUID, date string) bool {
	for _, prior := range c.Acc.PriorExternalDates[brokerID] {
		if prior == date {
			return true
		}
	}
	for _, a := range c.byBrokerDate[bdKey(brokerID, date)] {
		if c.IsExternal(a.LocationID) {
			return true
		}
	}
	return false
}

// SaturdayOf returns the Saturday date of this week
func (c *WeekContext) SaturdayOf() string {
	for d := c.WeekStart; d <= c.WeekEnd && d != ""; d = addDays(d, 1) {
		if weekdayOf(d) == time.Saturday {
			return d
		}
	}
	return ""
}

// SundayOf returns the Sunday date of this week
func (c *WeekContext) SundayOf() string {
	for d := c.WeekStart; d <= c.WeekEnd && d != ""; d = addDays(d, 1) {
		if weekdayOf(d) == time.Sunday {
			return d
		}
	}
	return ""
}

// ConfiguredBrokerCount returns how many brokers are linked to a location
func (c *WeekContext) ConfiguredBrokerCount(locationID uuid.UUID) int {
	loc, ok := c.Locations[locationID]
	if !ok {
		return 0
	}
	return len(loc.Links)
}
