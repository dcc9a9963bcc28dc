package allocator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantao/plantao/pkg/core/model"
)

func rulesOf(violations []model.RuleViolation) []string {
	rules := make([]string, 0, len(violations))
	for _, v := range violations {
		rules = append(rules, v.Rule)
	}
	return rules
}

func TestValidateWeekCleanWeek(t *testing.T) {
	a, b := testBroker("Ana"), testBroker("Bruno")
	loc := testExternalLocation("Stand Norte", "", a, b)
	mon := testDemand(loc, "2026-03-02", model.ShiftMorning, a, b)
	wed := testDemand(loc, "2026-03-04", model.ShiftMorning, a, b)
	ctx := testContext([]*model.Broker{a, b}, []*model.Location{loc}, []*model.Demand{mon, wed})

	ctx.Assign(mon, a.ID, model.SourceExternalEngine)
	ctx.Assign(wed, b.ID, model.SourceExternalEngine)

	violations := ValidateWeek(ctx)
	assert.Empty(t, violations)
	assert.False(t, HasCritical(violations))
}

func TestValidateWeekOverCap(t *testing.T) {
	a := testBroker("Ana")
	locs := []*model.Location{
		testExternalLocation("Stand Norte", "", a),
		testExternalLocation("Stand Sul", "", a),
		testExternalLocation("Stand Leste", "", a),
		testExternalLocation("Stand Oeste", "", a),
	}
	dates := []string{"2026-03-02", "2026-03-04", "2026-03-06", testSunday}

	var demands []*model.Demand
	for i, loc := range locs {
		demands = append(demands, testDemand(loc, dates[i], model.ShiftMorning, a))
	}
	ctx := testContext([]*model.Broker{a}, locs, demands)
	for _, d := range demands {
		ctx.Assign(d, a.ID, model.SourceExternalEngine)
	}

	violations := ValidateWeek(ctx)
	assert.Contains(t, rulesOf(violations), string(RuleWeeklyCap))
	assert.True(t, HasCritical(violations), "four externals in one week must be critical")
}

func TestValidateWeekAtCapIsWarning(t *testing.T) {
	a := testBroker("Ana")
	locs := []*model.Location{
		testExternalLocation("Stand Norte", "", a),
		testExternalLocation("Stand Sul", "", a),
		testExternalLocation("Stand Leste", "", a),
	}
	dates := []string{"2026-03-02", "2026-03-04", "2026-03-06"}

	var demands []*model.Demand
	for i, loc := range locs {
		demands = append(demands, testDemand(loc, dates[i], model.ShiftMorning, a))
	}
	ctx := testContext([]*model.Broker{a}, locs, demands)
	for _, d := range demands {
		ctx.Assign(d, a.ID, model.SourceExternalEngine)
	}

	violations := ValidateWeek(ctx)
	require.Len(t, violations, 1)
	assert.Equal(t, string(RuleWeeklyCap), violations[0].Rule)
	assert.Equal(t, model.SeverityWarning, violations[0].Severity)
	assert.False(t, HasCritical(violations))
}

func TestValidateWeekWeekendBothDays(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a)
	sat := testDemand(loc1, testSaturday, model.ShiftMorning, a)
	sun := testDemand(loc2, testSunday, model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2}, []*model.Demand{sat, sun})

	ctx.Assign(sat, a.ID, model.SourceExternalEngine)
	ctx.Assign(sun, a.ID, model.SourceExternalEngine)

	violations := ValidateWeek(ctx)
	assert.Contains(t, rulesOf(violations), string(RuleWeekendExclusivity))
	assert.True(t, HasCritical(violations))
}

func TestValidateWeekSameLocationTwiceSeverity(t *testing.T) {
	// With other brokers configured, both shifts at one site is critical
	a, b := testBroker("Ana"), testBroker("Bruno")
	staffed := testExternalLocation("Stand Norte", "", a, b)
	d1 := testDemand(staffed, "2026-03-02", model.ShiftMorning, a, b)
	d2 := testDemand(staffed, "2026-03-02", model.ShiftAfternoon, a, b)
	ctx := testContext([]*model.Broker{a, b}, []*model.Location{staffed}, []*model.Demand{d1, d2})
	ctx.Assign(d1, a.ID, model.SourceExternalEngine)
	ctx.Assign(d2, a.ID, model.SourceExternalEngine)

	violations := ValidateWeek(ctx)
	require.NotEmpty(t, violations)
	assert.True(t, HasCritical(violations))

	// With a single configured broker it degrades to a tolerable warning
	c := testBroker("Clara")
	solo := testExternalLocation("Stand Unico", "", c)
	s1 := testDemand(solo, "2026-03-02", model.ShiftMorning, c)
	s2 := testDemand(solo, "2026-03-02", model.ShiftAfternoon, c)
	soloCtx := testContext([]*model.Broker{c}, []*model.Location{solo}, []*model.Demand{s1, s2})
	soloCtx.Assign(s1, c.ID, model.SourceExternalEngine)
	soloCtx.Assign(s2, c.ID, model.SourceExternalEngine)

	soloViolations := ValidateWeek(soloCtx)
	require.NotEmpty(t, soloViolations)
	assert.False(t, HasCritical(soloViolations))
}

func TestValidateWeekAdjacentDaysAreWarnings(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a)
	mon := testDemand(loc1, "2026-03-02", model.ShiftMorning, a)
	tue := testDemand(loc2, "2026-03-03", model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2}, []*model.Demand{mon, tue})
	ctx.Assign(mon, a.ID, model.SourceExternalEngine)
	ctx.Assign(tue, a.ID, model.SourceExternalEngine)

	violations := ValidateWeek(ctx)
	require.NotEmpty(t, violations)
	assert.Contains(t, rulesOf(violations), string(RuleConsecutiveExternals))
	assert.False(t, HasCritical(violations))
}

func TestValidateWeekThreeConsecutiveDaysCritical(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a)
	loc3 := testExternalLocation("Stand Leste", "", a)
	demands := []*model.Demand{
		testDemand(loc1, "2026-03-02", model.ShiftMorning, a),
		testDemand(loc2, "2026-03-03", model.ShiftMorning, a),
		testDemand(loc3, "2026-03-04", model.ShiftMorning, a),
	}
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2, loc3}, demands)
	for _, d := range demands {
		ctx.Assign(d, a.ID, model.SourceExternalEngine)
	}

	violations := ValidateWeek(ctx)
	assert.Contains(t, rulesOf(violations), string(RuleThreeConsecutive))
	assert.True(t, HasCritical(violations))
}

func TestValidateWeekRotationRepeat(t *testing.T) {
	a, b := testBroker("Ana"), testBroker("Bruno")
	loc := testExternalLocation("Stand Norte", "", a, b)
	mon := testDemand(loc, "2026-03-02", model.ShiftMorning, a, b)
	ctx := testContext([]*model.Broker{a, b}, []*model.Location{loc}, []*model.Demand{mon})

	ctx.Acc.PriorWeekLocations[a.ID] = map[uuid.UUID]bool{loc.ID: true}
	ctx.Assign(mon, a.ID, model.SourceExternalEngine)

	violations := ValidateWeek(ctx)
	assert.Contains(t, rulesOf(violations), string(RuleRotationRepeat))
	assert.True(t, HasCritical(violations))
}

func TestValidateWeekRotationRepeatSoloSiteTolerated(t *testing.T) {
	c := testBroker("Clara")
	solo := testExternalLocation("Stand Unico", "", c)
	mon := testDemand(solo, "2026-03-02", model.ShiftMorning, c)
	ctx := testContext([]*model.Broker{c}, []*model.Location{solo}, []*model.Demand{mon})

	ctx.Acc.PriorWeekLocations[c.ID] = map[uuid.UUID]bool{solo.ID: true}
	ctx.Assign(mon, c.ID, model.SourceExternalEngine)

	violations := ValidateWeek(ctx)
	assert.NotContains(t, rulesOf(violations), string(RuleRotationRepeat))
}

func TestValidateWeekIsIdempotent(t *testing.T) {
	a := testBroker("Ana")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a)
	mon := testDemand(loc1, "2026-03-02", model.ShiftMorning, a)
	tue := testDemand(loc2, "2026-03-03", model.ShiftMorning, a)
	ctx := testContext([]*model.Broker{a}, []*model.Location{loc1, loc2}, []*model.Demand{mon, tue})
	ctx.Assign(mon, a.ID, model.SourceExternalEngine)
	ctx.Assign(tue, a.ID, model.SourceExternalEngine)

	first := ValidateWeek(ctx)
	second := ValidateWeek(ctx)
	assert.Equal(t, first, second)
}
