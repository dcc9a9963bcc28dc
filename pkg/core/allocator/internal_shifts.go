package allocator

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/demand"
	"github.com/plantao/plantao/pkg/core/model"
)

// ReserveInternalSaturdays walks the Saturday queue of every internal office
// and reserves brokers up to the office's minimum Saturday staffing, before
// any external demand is allocated. Candidates come fewest Saturdays worked
// first, queue position breaking ties. Reserved brokers are shielded from
// weekend external duty by the rule pipeline and have their weekly external
// target reduced to one.
func (e *Engine) ReserveInternalSaturdays() {
	saturday := e.ctx.SaturdayOf()
	if saturday == "" {
		return
	}

	for _, loc := range e.internalLocations() {
		cfg, ok := demand.ResolveDay(loc, saturday)
		if !ok || cfg.MinBrokers <= 0 {
			continue
		}

		queue := e.saturdayQueue(loc)
		reserved := 0
		for _, entry := range queue.EntriesByFairness() {
			if reserved >= cfg.MinBrokers {
				break
			}
			if !e.canServeSaturday(loc, entry.BrokerID, cfg) {
				continue
			}
			if _, taken := e.ctx.ReservedSaturday[entry.BrokerID]; taken {
				continue
			}
			e.ctx.ReservedSaturday[entry.BrokerID] = loc.ID
			if e.ctx.targets[entry.BrokerID] > 1 {
				e.ctx.targets[entry.BrokerID] = 1
			}
			reserved++
			e.logger.Debug("reserved broker for internal Saturday duty",
				zap.String("broker", entry.BrokerID.String()),
				zap.String("location", loc.Name),
				zap.String("date", saturday))
		}

		if reserved < cfg.MinBrokers {
			e.logger.Warn("internal Saturday staffing below minimum",
				zap.String("location", loc.Name),
				zap.String("date", saturday),
				zap.Int("reserved", reserved),
				zap.Int("minimum", cfg.MinBrokers))
		}
	}
}

// materializeInternalShifts turns reservations and office rosters into
// concrete assignments once external allocation is settled: Saturday duty
// from the reservations (backfilled to the floor if needed), weekday office
// duty directly from the roster links.
func (e *Engine) materializeInternalShifts() {
	e.materializeSaturdays()
	e.materializeWeekdays()
}

func (e *Engine) materializeSaturdays() {
	saturday := e.ctx.SaturdayOf()
	if saturday == "" {
		return
	}

	for _, loc := range e.internalLocations() {
		cfg, ok := demand.ResolveDay(loc, saturday)
		if !ok || cfg.MinBrokers <= 0 {
			continue
		}

		staffed := e.reservedBrokersOf(loc.ID)
		if len(staffed) < cfg.MinBrokers {
			staffed = append(staffed, e.saturdayBackfill(loc, cfg, saturday, staffed, cfg.MinBrokers-len(staffed))...)
		}
		if cfg.MaxBrokers > 0 && len(staffed) > cfg.MaxBrokers {
			staffed = staffed[:cfg.MaxBrokers]
		}

		queue := e.saturdayQueue(loc)
		for _, brokerID := range staffed {
			e.addSaturdayDuty(loc, brokerID, saturday, cfg)
			queue.MoveToTail(brokerID, saturday)
		}
	}
}

// reservedBrokersOf lists the brokers reserved for an internal location, in
// the fairness order of its Saturday queue
func (e *Engine) reservedBrokersOf(locationID uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for brokerID, locID := range e.ctx.ReservedSaturday {
		if locID == locationID {
			out = append(out, brokerID)
		}
	}
	rank := make(map[uuid.UUID]int)
	if queue := e.ctx.SaturdayQueues[locationID]; queue != nil {
		for i, entry := range queue.EntriesByFairness() {
			rank[entry.BrokerID] = i + 1
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if rank[out[i]] != rank[out[j]] {
			return rank[out[i]] < rank[out[j]]
		}
		return out[i].String() < out[j].String()
	})
	return out
}

// saturdayBackfill fills a staffing shortfall with linked brokers who drew
// no weekend duty: lightest external load first, fewest Saturdays this month
// breaking ties
func (e *Engine) saturdayBackfill(loc *model.Location, cfg model.DayConfig, saturday string, already []uuid.UUID, need int) []uuid.UUID {
	sunday := addDays(saturday, 1)

	var candidates []uuid.UUID
	for _, link := range loc.Links {
		if containsID(already, link.BrokerID) {
			continue
		}
		if !e.canServeSaturday(loc, link.BrokerID, cfg) {
			continue
		}
		if len(e.ctx.AssignmentsOn(link.BrokerID, saturday)) > 0 ||
			len(e.ctx.AssignmentsOn(link.BrokerID, sunday)) > 0 {
			continue
		}
		if _, reserved := e.ctx.ReservedSaturday[link.BrokerID]; reserved {
			continue
		}
		candidates = append(candidates, link.BrokerID)
	}

	queue := e.ctx.SaturdayQueues[loc.ID]
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := e.ctx.ExternalCount(candidates[i]), e.ctx.ExternalCount(candidates[j])
		if ci != cj {
			return ci < cj
		}
		mi, mj := e.ctx.Acc.MonthlySaturdays[candidates[i]], e.ctx.Acc.MonthlySaturdays[candidates[j]]
		if mi != mj {
			return mi < mj
		}
		if queue != nil {
			return queue.PositionOf(candidates[i]) < queue.PositionOf(candidates[j])
		}
		return candidates[i].String() < candidates[j].String()
	})

	if len(candidates) > need {
		candidates = candidates[:need]
	}
	return candidates
}

// addSaturdayDuty creates the broker's assignments for every configured
// Saturday shift their link covers
func (e *Engine) addSaturdayDuty(loc *model.Location, brokerID uuid.UUID, saturday string, cfg model.DayConfig) {
	link := linkOf(loc, brokerID)
	for _, shift := range configuredShifts(cfg) {
		if link != nil && !link.CoversShift(time.Saturday, shift) {
			continue
		}
		if e.ctx.AssignmentAt(brokerID, saturday, shift) != nil {
			continue
		}
		start, end := shiftWindow(cfg, shift)
		e.ctx.AddInternal(loc.ID, brokerID, saturday, shift, start, end, model.SourceInternalSaturday)
	}
}

// materializeWeekdays assigns every linked broker to their office for the
// weekday shifts they cover, skipping slots already taken by external duty
func (e *Engine) materializeWeekdays() {
	for _, loc := range e.internalLocations() {
		for date := e.ctx.WeekStart; date != "" && date <= e.ctx.WeekEnd; date = addDays(date, 1) {
			wd := weekdayOf(date)
			if wd == time.Saturday || wd == time.Sunday {
				continue
			}
			cfg, ok := demand.ResolveDay(loc, date)
			if !ok {
				continue
			}
			for _, link := range loc.Links {
				broker, exists := e.ctx.Brokers[link.BrokerID]
				if !exists || !broker.Active {
					continue
				}
				for _, shift := range configuredShifts(cfg) {
					if !link.CoversShift(wd, shift) || !broker.AvailableOn(wd, shift) {
						continue
					}
					if e.ctx.AssignmentAt(link.BrokerID, date, shift) != nil {
						continue
					}
					start, end := shiftWindow(cfg, shift)
					e.ctx.AddInternal(loc.ID, link.BrokerID, date, shift, start, end, model.SourceInternalWeekday)
				}
			}
		}
	}
}

func (e *Engine) internalLocations() []*model.Location {
	var out []*model.Location
	for _, loc := range e.ctx.Locations {
		if loc.Type == model.LocationInternal {
			out = append(out, loc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// saturdayQueue returns the location's Saturday queue, seeding every linked
// broker so new hires enter at the tail
func (e *Engine) saturdayQueue(loc *model.Location) *RotationQueue {
	queue, ok := e.ctx.SaturdayQueues[loc.ID]
	if !ok {
		queue = NewRotationQueue(loc.ID, nil)
		e.ctx.SaturdayQueues[loc.ID] = queue
	}
	for _, link := range loc.Links {
		if broker, exists := e.ctx.Brokers[link.BrokerID]; exists && broker.Active {
			queue.EnsureBroker(link.BrokerID)
		}
	}
	return queue
}

// canServeSaturday reports whether the broker can take at least one of the
// office's configured Saturday shifts
func (e *Engine) canServeSaturday(loc *model.Location, brokerID uuid.UUID, cfg model.DayConfig) bool {
	broker, ok := e.ctx.Brokers[brokerID]
	if !ok || !broker.Active {
		return false
	}
	link := linkOf(loc, brokerID)
	if link == nil {
		return false
	}
	for _, shift := range configuredShifts(cfg) {
		if link.CoversShift(time.Saturday, shift) && broker.AvailableOn(time.Saturday, shift) {
			return true
		}
	}
	return false
}

func linkOf(loc *model.Location, brokerID uuid.UUID) *model.LocationBrokerLink {
	for i := range loc.Links {
		if loc.Links[i].BrokerID == brokerID {
			return &loc.Links[i]
		}
	}
	return nil
}

func configuredShifts(cfg model.DayConfig) []model.Shift {
	var shifts []model.Shift
	if cfg.HasMorning {
		shifts = append(shifts, model.ShiftMorning)
	}
	if cfg.HasAfternoon {
		shifts = append(shifts, model.ShiftAfternoon)
	}
	return shifts
}

func shiftWindow(cfg model.DayConfig, shift model.Shift) (string, string) {
	if shift == model.ShiftMorning {
		return cfg.MorningStart, cfg.MorningEnd
	}
	return cfg.AfternoonStart, cfg.AfternoonEnd
}
