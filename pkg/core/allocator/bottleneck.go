package allocator

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/model"
)

// DemandPriority ranks demands by scarcity
type DemandPriority int

const (
	PriorityNormal DemandPriority = iota
	PriorityHigh
	PriorityCritical
)

// DemandAnalysis is the bottleneck pre-scan result for one demand
type DemandAnalysis struct {
	Demand *model.Demand

	// EligibleCount is the number of brokers who could take the demand
	// under fixed rules only (availability plus the prior-week one-day
	// consecutive lookback) — the full stateful rule set is not consulted
	EligibleCount int

	Priority DemandPriority

	// ReservedBroker is the single eligible broker bound to a critical
	// demand, or uuid.Nil
	ReservedBroker uuid.UUID
}

// AnalyzeBottlenecks pre-scans all demands before allocation so scarce
// brokers are not consumed by easier demands first. Demands with exactly
// one eligible broker create a mandatory reservation; Sundays are elevated
// because they are structurally scarcer. For each reservation a one-hop
// lookahead checks whether it starves an adjacent-day demand — that is a
// configuration gap, so it is logged, not auto-resolved.
func (c *WeekContext) AnalyzeBottlenecks(logger *zap.Logger) []DemandAnalysis {
	analyses := make([]DemandAnalysis, 0, len(c.Demands))

	for _, d := range c.Demands {
		eligible := c.fixedRuleEligible(d)

		analysis := DemandAnalysis{Demand: d, EligibleCount: len(eligible)}
		switch {
		case len(eligible) == 0:
			// Impossible: reported by the demand mapper, nothing to reserve
			analysis.Priority = PriorityCritical
		case len(eligible) == 1:
			analysis.Priority = PriorityCritical
			analysis.ReservedBroker = eligible[0]
		case len(eligible) == 2:
			analysis.Priority = PriorityHigh
		case d.Weekday == time.Sunday && len(eligible) <= 3:
			analysis.Priority = PriorityHigh
		default:
			analysis.Priority = PriorityNormal
		}
		analyses = append(analyses, analysis)
	}

	sort.SliceStable(analyses, func(i, j int) bool {
		if analyses[i].Priority != analyses[j].Priority {
			return analyses[i].Priority > analyses[j].Priority
		}
		wi, wj := weekendRank(analyses[i].Demand.Weekday), weekendRank(analyses[j].Demand.Weekday)
		if wi != wj {
			return wi < wj
		}
		return analyses[i].Demand.Date < analyses[j].Demand.Date
	})

	for _, analysis := range analyses {
		if analysis.ReservedBroker == uuid.Nil {
			continue
		}
		d := analysis.Demand
		c.Reservations[bdsKey(analysis.ReservedBroker, d.Date, d.Shift)] = d.Key()
		logger.Debug("reserved scarce broker for critical demand",
			zap.String("broker", analysis.ReservedBroker.String()),
			zap.String("location", d.LocationName),
			zap.String("date", d.Date),
			zap.String("shift", string(d.Shift)))

		c.lookaheadCascade(analysis, logger)
	}

	return analyses
}

// fixedRuleEligible filters the demand's eligible set by the fixed rules
// alone: the prior-week one-day consecutive lookback is the only stateful
// input consulted at this stage
func (c *WeekContext) fixedRuleEligible(d *model.Demand) []uuid.UUID {
	var eligible []uuid.UUID
	for _, id := range d.EligibleBrokerIDs {
		if priorDatesContain(c.Acc.PriorExternalDates[id], addDays(d.Date, -1)) {
			continue
		}
		eligible = append(eligible, id)
	}
	return eligible
}

// lookaheadCascade checks whether a reservation leaves an adjacent-day
// demand with no remaining eligible broker
func (c *WeekContext) lookaheadCascade(analysis DemandAnalysis, logger *zap.Logger) {
	reserved := analysis.ReservedBroker
	for _, other := range c.Demands {
		if other.Key() == analysis.Demand.Key() {
			continue
		}
		gap := daysBetween(analysis.Demand.Date, other.Date)
		if gap != 1 && gap != -1 {
			continue
		}
		remaining := c.fixedRuleEligible(other)
		if len(remaining) == 1 && remaining[0] == reserved {
			logger.Warn("reservation may starve adjacent-day demand; check location configuration",
				zap.String("reserved_broker", reserved.String()),
				zap.String("reserved_for", analysis.Demand.Key()),
				zap.String("starved_demand", other.Key()))
		}
	}
}

// weekendRank orders Sunday before Saturday before weekdays
func weekendRank(wd time.Weekday) int {
	switch wd {
	case time.Sunday:
		return 0
	case time.Saturday:
		return 1
	default:
		return 2
	}
}

func priorDatesContain(dates []string, date string) bool {
	for _, d := range dates {
		if d == date {
			return true
		}
	}
	return false
}
