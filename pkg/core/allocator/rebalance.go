package allocator

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/model"
)

// rebalance moves external shifts away from brokers holding three or more
// toward brokers holding at most one ("two before three"): the donor's
// least disruptive shift goes to the most starved receiver who can legally
// take it. Receivers who already cover the same location on another day of
// the week are skipped so the rotation spread is preserved.
func (e *Engine) rebalance() {
	moved := 0
	for {
		donorID, ok := e.heaviestDonor()
		if !ok {
			break
		}
		if !e.moveOneShift(donorID) {
			break
		}
		moved++
	}
	if moved > 0 {
		e.logger.Debug("rebalance pass moved shifts", zap.Int("moved", moved))
	}
}

// heaviestDonor picks the broker with the most external shifts, if anyone
// holds three or more while someone else holds at most one
func (e *Engine) heaviestDonor() (uuid.UUID, bool) {
	var donor uuid.UUID
	max := 0
	starved := false
	for id := range e.ctx.Brokers {
		count := e.ctx.ExternalCount(id)
		if count >= 3 && count > max {
			donor, max = id, count
		}
		if count <= 1 {
			starved = true
		}
	}
	return donor, max >= 3 && starved
}

// moveOneShift tries to hand one of the donor's external shifts to an
// under-worked broker. Singleton days (the donor's only duty that date) are
// preferred so the move does not break up paired shifts.
func (e *Engine) moveOneShift(donorID uuid.UUID) bool {
	shifts := e.donorShifts(donorID)
	for _, a := range shifts {
		d := e.demandOf(a)
		if d == nil {
			continue
		}
		for _, receiverID := range e.starvedReceivers(d) {
			if e.coversLocationThisWeek(receiverID, d.LocationID) {
				continue
			}
			if !e.ctx.CheckAssignment(receiverID, d, RelaxNone).Allowed {
				continue
			}
			e.ctx.Reassign(a, receiverID)
			e.logger.Debug("rebalanced external shift",
				zap.String("from", donorID.String()),
				zap.String("to", receiverID.String()),
				zap.String("demand", d.Key()))
			return true
		}
	}
	return false
}

// donorShifts lists the donor's external assignments, singleton days first
func (e *Engine) donorShifts(donorID uuid.UUID) []*model.Assignment {
	var shifts []*model.Assignment
	for _, a := range e.ctx.Assignments {
		if a.BrokerID == donorID && e.ctx.IsExternal(a.LocationID) {
			shifts = append(shifts, a)
		}
	}
	sort.SliceStable(shifts, func(i, j int) bool {
		si := len(e.ctx.AssignmentsOn(donorID, shifts[i].Date)) == 1
		sj := len(e.ctx.AssignmentsOn(donorID, shifts[j].Date)) == 1
		if si != sj {
			return si
		}
		return shifts[i].Date < shifts[j].Date
	})
	return shifts
}

// starvedReceivers lists the demand's eligible brokers holding at most one
// external, most starved first
func (e *Engine) starvedReceivers(d *model.Demand) []uuid.UUID {
	var receivers []uuid.UUID
	for _, id := range d.EligibleBrokerIDs {
		if e.ctx.ExternalCount(id) <= 1 {
			receivers = append(receivers, id)
		}
	}
	Shuffle(receivers, e.seed+int64(len(d.Date)))
	sort.SliceStable(receivers, func(i, j int) bool {
		return e.ctx.ExternalCount(receivers[i]) < e.ctx.ExternalCount(receivers[j])
	})
	return receivers
}

// coversLocationThisWeek reports whether the broker already holds a shift
// at the location on any day of the week
func (e *Engine) coversLocationThisWeek(brokerID uuid.UUID, locationID uuid.UUID) bool {
	for _, a := range e.ctx.Assignments {
		if a.BrokerID == brokerID && a.LocationID == locationID {
			return true
		}
	}
	return false
}

// demandOf recovers the demand an external assignment was cut from
func (e *Engine) demandOf(a *model.Assignment) *model.Demand {
	key := a.LocationID.String() + "|" + a.Date + "|" + string(a.Shift)
	for _, d := range e.ctx.Demands {
		if d.Key() == key {
			return d
		}
	}
	return nil
}

// deconsecutivize breaks up adjacent external days left by earlier passes:
// the later shift of each adjacent pair is handed to another eligible
// broker who would not become more loaded than the original holder and who
// passes the strict rule check.
func (e *Engine) deconsecutivize() {
	swapped := 0
	for brokerID := range e.ctx.Brokers {
		for _, a := range e.adjacentLaterShifts(brokerID) {
			d := e.demandOf(a)
			if d == nil {
				continue
			}
			if e.swapToNonAdjacent(a, d, brokerID) {
				swapped++
			}
		}
	}
	if swapped > 0 {
		e.logger.Debug("de-consecutivize pass swapped shifts", zap.Int("swapped", swapped))
	}
}

// adjacentLaterShifts returns the broker's current-week external shifts
// whose previous calendar day also carries external duty
func (e *Engine) adjacentLaterShifts(brokerID uuid.UUID) []*model.Assignment {
	var out []*model.Assignment
	for _, a := range e.ctx.Assignments {
		if a.BrokerID != brokerID || !e.ctx.IsExternal(a.LocationID) {
			continue
		}
		if e.ctx.HasExternalOn(brokerID, addDays(a.Date, -1)) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (e *Engine) swapToNonAdjacent(a *model.Assignment, d *model.Demand, holderID uuid.UUID) bool {
	holderCount := e.ctx.ExternalCount(holderID)
	candidates := make([]uuid.UUID, len(d.EligibleBrokerIDs))
	copy(candidates, d.EligibleBrokerIDs)
	Shuffle(candidates, e.seed+int64(len(d.LocationName)))
	sort.SliceStable(candidates, func(i, j int) bool {
		return e.ctx.ExternalCount(candidates[i]) < e.ctx.ExternalCount(candidates[j])
	})

	for _, id := range candidates {
		if id == holderID {
			continue
		}
		// Only swap downhill: the receiver must not end up busier than the
		// holder was
		if e.ctx.ExternalCount(id)+1 > holderCount {
			continue
		}
		if !e.ctx.CheckAssignment(id, d, RelaxNone).Allowed {
			continue
		}
		e.ctx.Reassign(a, id)
		return true
	}
	return false
}

// lastResort covers demands the regular passes could not fill. Stage one
// relaxes the adjacent-day rule for brokers still under the weekly target.
// Stage two grants third shifts in rotation-queue order, but only while the
// gate holds: no under-target broker may remain who could still legally
// take any open demand.
func (e *Engine) lastResort(outcome *Outcome) {
	for _, d := range e.openDemands() {
		if e.assignRelaxed(d) {
			outcome.UsedRelaxation = true
		}
	}

	for _, d := range e.openDemands() {
		if !e.thirdShiftGateOpen() {
			e.logger.Debug("third-shift gate closed, leaving demand open",
				zap.String("demand", d.Key()))
			continue
		}
		if e.assignThirdShift(d) {
			outcome.UsedThirdShifts = true
		}
	}
}

// assignRelaxed retries a demand with the adjacent-day rule dropped, for
// under-target brokers only
func (e *Engine) assignRelaxed(d *model.Demand) bool {
	for _, id := range e.rankCandidates(d, true) {
		if e.ctx.ExternalCount(id) >= e.ctx.Opts.WeeklyTarget {
			continue
		}
		if !e.ctx.CheckAssignment(id, d, RelaxConsecutive).Allowed {
			continue
		}
		e.ctx.Assign(d, id, model.SourceExternalEngine)
		e.logger.Debug("last resort assigned with adjacent-day rule relaxed",
			zap.String("broker", id.String()),
			zap.String("demand", d.Key()))
		return true
	}
	return false
}

// assignThirdShift grants a broker a shift above the weekly target, chosen
// by rotation-queue order. The strict rule pipeline still applies.
func (e *Engine) assignThirdShift(d *model.Demand) bool {
	for _, id := range e.rankCandidates(d, true) {
		if e.ctx.ExternalCount(id) < e.ctx.Opts.WeeklyTarget {
			continue
		}
		if !e.ctx.CheckAssignment(id, d, RelaxNone).Allowed {
			continue
		}
		e.ctx.Assign(d, id, model.SourceExternalEngine)
		e.logger.Debug("last resort granted third external shift",
			zap.String("broker", id.String()),
			zap.String("demand", d.Key()))
		return true
	}
	return false
}

// thirdShiftGateOpen reports whether third shifts may be granted: true only
// when no broker below the weekly target could still legally take any open
// demand, even with the adjacent-day rule relaxed
func (e *Engine) thirdShiftGateOpen() bool {
	for _, d := range e.openDemands() {
		for _, id := range d.EligibleBrokerIDs {
			if e.ctx.ExternalCount(id) >= e.ctx.Opts.WeeklyTarget {
				continue
			}
			if e.ctx.CheckAssignment(id, d, RelaxConsecutive).Allowed {
				return false
			}
		}
	}
	return true
}
