package allocator

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/model"
)

// Engine runs the multi-pass external allocation for one week attempt
type Engine struct {
	ctx    *WeekContext
	logger *zap.Logger
	seed   int64
}

// Outcome is the result of one allocation attempt
type Outcome struct {
	Assignments []*model.Assignment
	Unallocated []*model.Demand
	Analyses    []DemandAnalysis

	// UsedRelaxation is true when any assignment was granted with the
	// adjacent-day rule relaxed
	UsedRelaxation bool

	// UsedThirdShifts is true when any broker was granted a third external
	// shift in the last-resort phase
	UsedThirdShifts bool
}

// NewEngine wraps a week context for allocation
func NewEngine(ctx *WeekContext, logger *zap.Logger) *Engine {
	return &Engine{ctx: ctx, logger: logger}
}

// AllocateExternals runs the full external pipeline for one attempt: the
// bottleneck pre-analysis, internal-Saturday pre-reservation, five greedy
// passes of decreasing strictness, a rebalance pass, a de-consecutivizing
// pass, and the two-stage last resort. The seed drives all tie-break
// shuffles so every attempt explores a different ordering.
func (e *Engine) AllocateExternals(seed int64) *Outcome {
	e.seed = seed

	analyses := e.ctx.AnalyzeBottlenecks(e.logger)
	e.ReserveInternalSaturdays()

	for pass := 1; pass <= 5; pass++ {
		open := e.openDemands()
		if len(open) == 0 {
			break
		}
		e.runPass(pass, open)
	}

	e.rebalance()
	e.deconsecutivize()

	outcome := &Outcome{Analyses: analyses}
	e.lastResort(outcome)

	e.materializeInternalShifts()

	outcome.Assignments = e.ctx.Assignments
	outcome.Unallocated = e.openDemands()
	if len(outcome.Unallocated) > 0 {
		e.logger.Debug("attempt left demands unallocated",
			zap.Int("unallocated", len(outcome.Unallocated)),
			zap.Int64("seed", seed))
	}
	return outcome
}

// openDemands returns demands not yet allocated, in priority order:
// Saturdays first, then Sundays, then weekdays; within a group scarcest
// demands first, then chronological, morning before afternoon. The seed
// shuffle breaks all remaining ties.
func (e *Engine) openDemands() []*model.Demand {
	var open []*model.Demand
	for _, d := range e.ctx.Demands {
		if _, done := e.ctx.Allocated[d.Key()]; !done {
			open = append(open, d)
		}
	}
	Shuffle(open, e.seed)
	sort.SliceStable(open, func(i, j int) bool {
		ri, rj := allocationRank(open[i].Weekday), allocationRank(open[j].Weekday)
		if ri != rj {
			return ri < rj
		}
		if len(open[i].EligibleBrokerIDs) != len(open[j].EligibleBrokerIDs) {
			return len(open[i].EligibleBrokerIDs) < len(open[j].EligibleBrokerIDs)
		}
		if open[i].Date != open[j].Date {
			return open[i].Date < open[j].Date
		}
		return shiftRank(open[i].Shift) < shiftRank(open[j].Shift)
	})
	return open
}

// allocationRank orders Saturday before Sunday before weekdays for the
// greedy passes (weekend demands are the scarcest to staff)
func allocationRank(wd time.Weekday) int {
	switch wd {
	case time.Saturday:
		return 0
	case time.Sunday:
		return 1
	default:
		return 2
	}
}

func shiftRank(s model.Shift) int {
	if s == model.ShiftMorning {
		return 0
	}
	return 1
}

// passPolicy is what a single greedy pass is allowed to do
type passPolicy struct {
	// honorReducedTargets keeps per-broker reduced targets (prior heavy
	// week, Saturday reservation); when false the standard weekly target
	// applies to everyone
	honorReducedTargets bool

	// protectOffices enforces the small-team office coverage limit
	protectOffices bool

	// honorRotation orders candidates by rotation-queue position; when
	// false only workload and the shuffle order decide
	honorRotation bool

	// forceSingle force-assigns demands whose eligible set is a single
	// broker, ignoring targets entirely (the weekly cap still holds)
	forceSingle bool
}

func policyForPass(pass int) passPolicy {
	switch pass {
	case 1:
		return passPolicy{honorReducedTargets: true, protectOffices: true, honorRotation: true}
	case 2:
		return passPolicy{honorReducedTargets: false, protectOffices: true, honorRotation: true}
	case 3:
		return passPolicy{honorReducedTargets: false, protectOffices: false, honorRotation: true}
	case 4:
		return passPolicy{honorReducedTargets: false, protectOffices: false, honorRotation: false}
	default:
		return passPolicy{honorReducedTargets: false, protectOffices: false, honorRotation: false, forceSingle: true}
	}
}

func (e *Engine) runPass(pass int, open []*model.Demand) {
	policy := policyForPass(pass)
	assigned := 0

	for _, d := range open {
		if _, done := e.ctx.Allocated[d.Key()]; done {
			continue
		}
		if policy.forceSingle && len(d.EligibleBrokerIDs) != 1 {
			continue
		}
		brokerID, ok := e.pickBroker(d, policy)
		if !ok {
			continue
		}
		e.ctx.Assign(d, brokerID, model.SourceExternalEngine)
		assigned++
	}

	e.logger.Debug("allocation pass finished",
		zap.Int("pass", pass),
		zap.Int("assigned", assigned))
}

// pickBroker selects the best candidate for a demand under a pass policy.
// A broker reserved for this exact slot by the bottleneck analysis always
// wins; otherwise candidates under their allowed ceiling are ordered by
// workload, then rotation position, then the shuffle order.
func (e *Engine) pickBroker(d *model.Demand, policy passPolicy) (uuid.UUID, bool) {
	if id, ok := e.reservedFor(d); ok {
		if e.ctx.CheckAssignment(id, d, RelaxNone).Allowed {
			return id, true
		}
	}

	candidates := e.rankCandidates(d, policy.honorRotation)
	for _, id := range candidates {
		if e.slotReservedElsewhere(id, d) {
			continue
		}
		if !policy.forceSingle && e.ctx.ExternalCount(id) >= e.allowedCeiling(id, policy) {
			continue
		}
		if policy.protectOffices && e.officeOverdrawn(id, d.Date) {
			continue
		}
		if !e.ctx.CheckAssignment(id, d, RelaxNone).Allowed {
			continue
		}
		return id, true
	}
	return uuid.Nil, false
}

// allowedCeiling is how many externals the broker may hold before this
// pass stops offering them more
func (e *Engine) allowedCeiling(brokerID uuid.UUID, policy passPolicy) int {
	if policy.honorReducedTargets {
		return e.ctx.TargetOf(brokerID)
	}
	return e.ctx.Opts.WeeklyTarget
}

// reservedFor reports whether the bottleneck analysis bound a broker to
// this demand's slot
func (e *Engine) reservedFor(d *model.Demand) (uuid.UUID, bool) {
	for _, id := range d.EligibleBrokerIDs {
		if e.ctx.Reservations[bdsKey(id, d.Date, d.Shift)] == d.Key() {
			return id, true
		}
	}
	return uuid.Nil, false
}

// slotReservedElsewhere reports whether the broker is reserved for a
// different demand in this same slot
func (e *Engine) slotReservedElsewhere(brokerID uuid.UUID, d *model.Demand) bool {
	key, ok := e.ctx.Reservations[bdsKey(brokerID, d.Date, d.Shift)]
	return ok && key != d.Key()
}

// rankCandidates orders a demand's eligible brokers: lowest external count
// first, lightest monthly weekend load for weekend demands, then
// rotation-queue position (head first), then the site count of brokers with
// few configured locations, then shuffle order
func (e *Engine) rankCandidates(d *model.Demand, honorRotation bool) []uuid.UUID {
	candidates := make([]uuid.UUID, len(d.EligibleBrokerIDs))
	copy(candidates, d.EligibleBrokerIDs)
	Shuffle(candidates, e.seed+int64(len(d.Date)+len(d.LocationName)))

	queue := e.ctx.Queues[d.LocationID]
	position := func(id uuid.UUID) int {
		if !honorRotation || queue == nil {
			return 0
		}
		return queue.PositionOf(id)
	}
	weekend := d.Weekday == time.Saturday || d.Weekday == time.Sunday

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := e.ctx.ExternalCount(candidates[i]), e.ctx.ExternalCount(candidates[j])
		if ci != cj {
			return ci < cj
		}
		if weekend {
			wi, wj := e.monthlyWeekendCount(candidates[i], d.Weekday), e.monthlyWeekendCount(candidates[j], d.Weekday)
			if wi != wj {
				return wi < wj
			}
			li, lj := e.weekendCountAt(candidates[i], d), e.weekendCountAt(candidates[j], d)
			if li != lj {
				return li < lj
			}
		}
		if pi, pj := position(candidates[i]), position(candidates[j]); pi != pj {
			return pi < pj
		}
		return e.configuredSites(candidates[i]) < e.configuredSites(candidates[j])
	})
	return candidates
}

// monthlyWeekendCount is the broker's duty count so far this month on the
// given weekend day
func (e *Engine) monthlyWeekendCount(brokerID uuid.UUID, wd time.Weekday) int {
	if wd == time.Saturday {
		return e.ctx.Acc.MonthlySaturdays[brokerID]
	}
	return e.ctx.Acc.MonthlySundays[brokerID]
}

// weekendCountAt counts the broker's weekend duty this month at the demand's
// own site, so one broker's weekend work spreads across locations
func (e *Engine) weekendCountAt(brokerID uuid.UUID, d *model.Demand) int {
	if d.Weekday == time.Saturday {
		return e.ctx.Acc.SaturdaysByLocation[brokerID][d.LocationID]
	}
	return e.ctx.Acc.SundaysByLocation[brokerID][d.LocationID]
}

// configuredSites is how many external sites list the broker. Brokers with
// few sites get priority where they can actually work.
func (e *Engine) configuredSites(brokerID uuid.UUID) int {
	if b, ok := e.ctx.Brokers[brokerID]; ok {
		return b.ConfiguredExternalCount
	}
	return 0
}

// officeOverdrawn reports whether sending the broker on external duty for
// the date would leave their home office below the small-team coverage
// limit
func (e *Engine) officeOverdrawn(brokerID uuid.UUID, date string) bool {
	broker, ok := e.ctx.Brokers[brokerID]
	if !ok || broker.HomeLocationID == nil {
		return false
	}
	home, ok := e.ctx.Locations[*broker.HomeLocationID]
	if !ok || home.Type != model.LocationInternal {
		return false
	}
	if len(home.Links) > e.ctx.Opts.SmallTeamSize {
		return false
	}

	out := 0
	for _, link := range home.Links {
		if link.BrokerID == brokerID {
			continue
		}
		colleague, ok := e.ctx.Brokers[link.BrokerID]
		if !ok || colleague.HomeLocationID == nil || *colleague.HomeLocationID != home.ID {
			continue
		}
		for _, a := range e.ctx.AssignmentsOn(link.BrokerID, date) {
			if e.ctx.IsExternal(a.LocationID) {
				out++
				break
			}
		}
	}
	return out >= e.ctx.Opts.SmallTeamExternalCap
}
