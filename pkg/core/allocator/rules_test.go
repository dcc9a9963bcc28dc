package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantao/plantao/pkg/core/model"
)

func TestCheckAssignmentEligibility(t *testing.T) {
	a, b := testBroker("Ana"), testBroker("Bruno")
	loc := testExternalLocation("Stand Norte", "", a)
	d := testDemand(loc, testWeekStart, model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a, b}, []*model.Location{loc}, []*model.Demand{d})

	assert.True(t, ctx.CheckAssignment(a.ID, d, RelaxNone).Allowed)

	verdict := ctx.CheckAssignment(b.ID, d, RelaxNone)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, RuleNotEligible, verdict.Rule)
}

func TestCheckAssignmentDoubleBooking(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a)
	d1 := testDemand(loc1, testWeekStart, model.ShiftMorning, a)
	d2 := testDemand(loc2, testWeekStart, model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2}, []*model.Demand{d1, d2})

	ctx.Assign(d1, a.ID, model.SourceExternalEngine)

	verdict := ctx.CheckAssignment(a.ID, d2, RelaxNone)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, RuleDoubleBooking, verdict.Rule)
}

func TestCheckAssignmentTwoExternalSitesSameDay(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a)
	d1 := testDemand(loc1, testWeekStart, model.ShiftMorning, a)
	d2 := testDemand(loc2, testWeekStart, model.ShiftAfternoon, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2}, []*model.Demand{d1, d2})

	ctx.Assign(d1, a.ID, model.SourceExternalEngine)

	verdict := ctx.CheckAssignment(a.ID, d2, RelaxNone)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, RuleTwoExternalSites, verdict.Rule)
}

func TestCheckAssignmentSameLocationTwiceSameDay(t *testing.T) {
	a := testBroker("Ana")
	loc := testExternalLocation("Stand Norte", "", a)
	d1 := testDemand(loc, testWeekStart, model.ShiftMorning, a)
	d2 := testDemand(loc, testWeekStart, model.ShiftAfternoon, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc}, []*model.Demand{d1, d2})

	ctx.Assign(d1, a.ID, model.SourceExternalEngine)

	verdict := ctx.CheckAssignment(a.ID, d2, RelaxNone)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, RuleSameLocationTwice, verdict.Rule)
}

func TestCheckAssignmentWeekendExclusivity(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a)
	sat := testDemand(loc1, testSaturday, model.ShiftMorning, a)
	sun := testDemand(loc2, testSunday, model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2}, []*model.Demand{sat, sun})

	ctx.Assign(sat, a.ID, model.SourceExternalEngine)

	verdict := ctx.CheckAssignment(a.ID, sun, RelaxNone)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, RuleWeekendExclusivity, verdict.Rule)

	// Relaxation never lifts weekend exclusivity
	assert.False(t, ctx.CheckAssignment(a.ID, sun, RelaxConsecutive).Allowed)
}

func TestCheckAssignmentSaturdayReservationBlocksWeekend(t *testing.T) {
	a := testBroker("Ana")
	office := testInternalOffice("Escritorio Centro", 1, a)
	loc := testExternalLocation("Stand Norte", "", a)
	sat := testDemand(loc, testSaturday, model.ShiftMorning, a)
	sun := testDemand(loc, testSunday, model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{office, loc}, []*model.Demand{sat, sun})

	ctx.ReservedSaturday[a.ID] = office.ID

	satVerdict := ctx.CheckAssignment(a.ID, sat, RelaxNone)
	require.False(t, satVerdict.Allowed)
	assert.Equal(t, RuleSaturdayReservation, satVerdict.Rule)

	sunVerdict := ctx.CheckAssignment(a.ID, sun, RelaxNone)
	require.False(t, sunVerdict.Allowed)
	assert.Equal(t, RuleWeekendExclusivity, sunVerdict.Rule)
}

func TestCheckAssignmentAdjacentDays(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a)
	mon := testDemand(loc1, "2026-03-02", model.ShiftMorning, a)
	tue := testDemand(loc2, "2026-03-03", model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2}, []*model.Demand{mon, tue})

	ctx.Assign(mon, a.ID, model.SourceExternalEngine)

	strict := ctx.CheckAssignment(a.ID, tue, RelaxNone)
	assert.False(t, strict.Allowed)
	assert.Equal(t, RuleConsecutiveExternals, strict.Rule)

	relaxed := ctx.CheckAssignment(a.ID, tue, RelaxConsecutive)
	assert.True(t, relaxed.Allowed)
}

func TestCheckAssignmentThreeConsecutiveDaysNeverRelaxed(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a)
	loc3 := testExternalLocation("Stand Leste", "", a)
	mon := testDemand(loc1, "2026-03-02", model.ShiftMorning, a)
	tue := testDemand(loc2, "2026-03-03", model.ShiftMorning, a)
	wed := testDemand(loc3, "2026-03-04", model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2, loc3}, []*model.Demand{mon, tue, wed})

	ctx.Assign(mon, a.ID, model.SourceExternalEngine)
	ctx.Assign(tue, a.ID, model.SourceExternalEngine)

	verdict := ctx.CheckAssignment(a.ID, wed, RelaxConsecutive)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, RuleThreeConsecutive, verdict.Rule)
}

func TestCheckAssignmentCrossWeekConsecutive(t *testing.T) {
	a := testBroker("Ana")
	loc := testExternalLocation("Stand Norte", "", a)
	mon := testDemand(loc, "2026-03-02", model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc}, []*model.Demand{mon})

	// External duty on the Sunday before the week
	ctx.Acc.PriorExternalDates[a.ID] = []string{"2026-03-01"}

	strict := ctx.CheckAssignment(a.ID, mon, RelaxNone)
	assert.False(t, strict.Allowed)
	assert.Equal(t, RuleConsecutiveExternals, strict.Rule)

	// Saturday and Sunday before make Monday a three-day run
	ctx.Acc.PriorExternalDates[a.ID] = []string{"2026-02-28", "2026-03-01"}
	assert.False(t, ctx.CheckAssignment(a.ID, mon, RelaxConsecutive).Allowed)
}

func TestCheckAssignmentWeeklyCap(t *testing.T) {
	a := testBroker("Ana")
	locs := []*model.Location{
		testExternalLocation("Stand Norte", "", a),
		testExternalLocation("Stand Sul", "", a),
		testExternalLocation("Stand Leste", "", a),
		testExternalLocation("Stand Oeste", "", a),
	}
	// Spread over non-adjacent days so only the cap can deny
	demands := []*model.Demand{
		testDemand(locs[0], "2026-03-02", model.ShiftMorning, a),
		testDemand(locs[1], "2026-03-04", model.ShiftMorning, a),
		testDemand(locs[2], "2026-03-06", model.ShiftMorning, a),
		testDemand(locs[3], testSunday, model.ShiftMorning, a),
	}
	ctx := testContext([]*model.Broker{a}, locs, demands)

	for _, d := range demands[:3] {
		ctx.Assign(d, a.ID, model.SourceExternalEngine)
	}

	verdict := ctx.CheckAssignment(a.ID, demands[3], RelaxConsecutive)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, RuleWeeklyCap, verdict.Rule)
}

func TestCheckAssignmentBuilderConflict(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "Construtora Alfa", a)
	loc2 := testExternalLocation("Stand Sul", "Construtora Beta", a)
	d1 := testDemand(loc1, testWeekStart, model.ShiftMorning, a)
	d2 := testDemand(loc2, testWeekStart, model.ShiftAfternoon, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2}, []*model.Demand{d1, d2})

	ctx.Assign(d1, a.ID, model.SourceExternalEngine)

	verdict := ctx.CheckAssignment(a.ID, d2, RelaxNone)
	assert.False(t, verdict.Allowed)
	// Two external sites already forbids this pairing; the builder rule is
	// what distinguishes internal/external mixes, so either rule may fire
	assert.Contains(t, []Rule{RuleTwoExternalSites, RuleBuilderConflict}, verdict.Rule)
}
