package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantao/plantao/internal/config"
	"github.com/plantao/plantao/pkg/core/allocator"
	"github.com/plantao/plantao/pkg/core/model"
	"github.com/plantao/plantao/pkg/db"
)

// ValidateWeekResult carries the audit of a stored week
type ValidateWeekResult struct {
	WeekStart   string
	WeekEnd     string
	Valid       bool
	Assignments int
	Violations  []model.RuleViolation
}

// ValidateWeek audits a stored week's schedule without regenerating it. The
// same validator the generation loop uses runs against the persisted
// assignments, so a manually edited schedule can be re-checked at any time.
// The resulting report is persisted unless dryRun is set.
func ValidateWeek(
	ctx context.Context,
	store db.GenerationStore,
	cfg *config.Config,
	logger *zap.Logger,
	weekStart string,
	dryRun bool,
) (*ValidateWeekResult, error) {
	monday, err := mondayOf(weekStart)
	if err != nil {
		return nil, err
	}
	if monday != weekStart {
		return nil, fmt.Errorf("week start %s is not a Monday", weekStart)
	}
	weekEnd := addDays(weekStart, 6)

	logger.Debug("Starting validateWeek", zap.String("week_start", weekStart))

	brokerList, err := store.GetActiveBrokers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch brokers: %w", err)
	}
	locationList, err := store.GetActiveLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locations: %w", err)
	}

	brokers := brokersByID(brokerList)
	locations := locationsByID(locationList)

	acc, err := primeAccumulator(ctx, store, brokers, locations, weekStart)
	if err != nil {
		return nil, err
	}

	assignments, err := store.GetAssignmentsBetween(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}
	if len(assignments) == 0 {
		return nil, fmt.Errorf("no assignments stored for week %s", weekStart)
	}

	queues, saturdayQueues := acc.CloneQueues()
	weekCtx := allocator.NewWeekContext(
		weekStart, weekEnd, allocatorOptions(cfg), brokers, locations, nil, queues, saturdayQueues, acc)
	weekCtx.LoadAssignments(assignments)

	violations := allocator.ValidateWeek(weekCtx)

	stats, err := store.GetWeeklyStats(ctx, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weekly stats: %w", err)
	}
	violations = append(violations, staleStatFindings(weekCtx, stats)...)

	valid := !allocator.HasCritical(violations)

	for _, v := range violations {
		field := zap.String
		entry := logger.Warn
		if v.Severity == model.SeverityCritical {
			entry = logger.Error
		}
		entry("Validation finding",
			field("rule", v.Rule),
			field("broker", v.BrokerName),
			field("date", v.Date),
			field("description", v.Description))
	}

	logger.Info("Week validated",
		zap.String("week_start", weekStart),
		zap.Bool("valid", valid),
		zap.Int("assignments", len(assignments)),
		zap.Int("violations", len(violations)))

	if !dryRun {
		report := &db.ValidationReport{
			ID:         uuid.New(),
			WeekStart:  weekStart,
			Attempt:    0,
			Valid:      valid,
			Violations: violations,
			CreatedAt:  time.Now().UTC(),
		}
		if err := store.InsertValidationReport(ctx, report); err != nil {
			return nil, fmt.Errorf("failed to save validation report: %w", err)
		}
	}

	return &ValidateWeekResult{
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
		Valid:       valid,
		Assignments: len(assignments),
		Violations:  violations,
	}, nil
}

const ruleStaleWeeklyStats = "stale_weekly_stats"

// staleStatFindings flags stored weekly stats that no longer match the
// assignments, which happens after manual schedule edits. Weeks with no
// stats rows at all predate the tally and are left alone.
func staleStatFindings(weekCtx *allocator.WeekContext, stored []model.WeeklyStat) []model.RuleViolation {
	if len(stored) == 0 {
		return nil
	}

	byBroker := make(map[uuid.UUID]model.WeeklyStat, len(stored))
	for _, s := range stored {
		byBroker[s.BrokerID] = s
	}

	var out []model.RuleViolation
	for _, f := range weeklyStatsOf(weekCtx) {
		s, ok := byBroker[f.BrokerID]
		if ok && s.ExternalShifts == f.ExternalShifts && s.InternalShifts == f.InternalShifts &&
			s.SaturdayShifts == f.SaturdayShifts && s.SundayShifts == f.SundayShifts {
			continue
		}

		name := ""
		if b, exists := weekCtx.Brokers[f.BrokerID]; exists {
			name = b.Name
		}
		description := "no weekly stats stored for this broker"
		if ok {
			description = fmt.Sprintf(
				"stored weekly stats disagree with the assignments: stored %d external / %d internal, found %d / %d",
				s.ExternalShifts, s.InternalShifts, f.ExternalShifts, f.InternalShifts)
		}
		out = append(out, model.RuleViolation{
			Rule:        ruleStaleWeeklyStats,
			BrokerID:    f.BrokerID,
			BrokerName:  name,
			Date:        weekCtx.WeekStart,
			Description: description,
			Severity:    model.SeverityWarning,
		})
	}
	return out
}
