package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/model"
)

func TestAnalyzeBottlenecksPriorities(t *testing.T) {
	a, b, c, d := testBroker("Ana"), testBroker("Bruno"), testBroker("Clara"), testBroker("Davi")
	loc := testExternalLocation("Stand Norte", "", a, b, c, d)

	scarce := testDemand(loc, "2026-03-04", model.ShiftMorning, a)
	tight := testDemand(loc, "2026-03-05", model.ShiftMorning, a, b)
	sunday := testDemand(loc, testSunday, model.ShiftMorning, a, b, c)
	easy := testDemand(loc, "2026-03-03", model.ShiftMorning, a, b, c, d)

	ctx := testContext(
		[]*model.Broker{a, b, c, d},
		[]*model.Location{loc},
		[]*model.Demand{easy, sunday, tight, scarce})

	analyses := ctx.AnalyzeBottlenecks(zap.NewNop())
	require.Len(t, analyses, 4)

	byKey := make(map[string]DemandAnalysis)
	for _, an := range analyses {
		byKey[an.Demand.Key()] = an
	}

	assert.Equal(t, PriorityCritical, byKey[scarce.Key()].Priority)
	assert.Equal(t, a.ID, byKey[scarce.Key()].ReservedBroker)
	assert.Equal(t, PriorityHigh, byKey[tight.Key()].Priority)
	assert.Equal(t, PriorityHigh, byKey[sunday.Key()].Priority, "Sundays with three eligible brokers are elevated")
	assert.Equal(t, PriorityNormal, byKey[easy.Key()].Priority)

	// Critical first in the returned ordering
	assert.Equal(t, scarce.Key(), analyses[0].Demand.Key())

	// The reservation is bound to the exact slot
	key := bdsKey(a.ID, scarce.Date, scarce.Shift)
	assert.Equal(t, scarce.Key(), ctx.Reservations[key])
}

func TestAnalyzeBottlenecksPriorDayLookback(t *testing.T) {
	a, b := testBroker("Ana"), testBroker("Bruno")
	loc := testExternalLocation("Stand Norte", "", a, b)
	mon := testDemand(loc, testWeekStart, model.ShiftMorning, a, b)
	ctx := testContext([]*model.Broker{a, b}, []*model.Location{loc}, []*model.Demand{mon})

	// Ana worked externally on the Sunday before: Monday cannot be hers
	ctx.Acc.PriorExternalDates[a.ID] = []string{"2026-03-01"}

	analyses := ctx.AnalyzeBottlenecks(zap.NewNop())
	require.Len(t, analyses, 1)
	assert.Equal(t, 1, analyses[0].EligibleCount)
	assert.Equal(t, PriorityCritical, analyses[0].Priority)
	assert.Equal(t, b.ID, analyses[0].ReservedBroker)
}

func TestReservedSlotNotConsumedByOtherDemand(t *testing.T) {
	a, b := testBroker("Ana"), testBroker("Bruno")
	loc1 := testExternalLocation("Stand Norte", "", a)
	loc2 := testExternalLocation("Stand Sul", "", a, b)

	// Ana is the only option for loc1; loc2 competes for the same slot
	critical := testDemand(loc1, "2026-03-04", model.ShiftMorning, a)
	competing := testDemand(loc2, "2026-03-04", model.ShiftMorning, a, b)

	ctx := testContext(
		[]*model.Broker{a, b},
		[]*model.Location{loc1, loc2},
		[]*model.Demand{critical, competing})
	engine := NewEngine(ctx, zap.NewNop())

	outcome := engine.AllocateExternals(1)

	assert.Empty(t, outcome.Unallocated)
	assert.Equal(t, a.ID, ctx.Allocated[critical.Key()])
	assert.Equal(t, b.ID, ctx.Allocated[competing.Key()])
}
