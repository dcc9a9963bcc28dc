package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantao/plantao/internal/config"
	"github.com/plantao/plantao/pkg/core/allocator"
	"github.com/plantao/plantao/pkg/core/demand"
	"github.com/plantao/plantao/pkg/core/model"
	"github.com/plantao/plantao/pkg/db"
)

// seedStride spaces attempt seeds apart so consecutive attempts explore
// genuinely different shuffle orders
const seedStride = 7919

// ErrAttemptsExhausted is returned when no attempt produced an acceptable
// week within the configured budget
var ErrAttemptsExhausted = errors.New("no acceptable schedule found within the attempt budget")

// GenerateWeekResult carries one accepted (or forced) week
type GenerateWeekResult struct {
	WeekStart   string
	WeekEnd     string
	Attempt     int
	Accepted    bool
	Assignments []*model.Assignment
	Violations  []model.RuleViolation
	Unallocated []*model.Demand
	Impossible  []demand.ImpossibleDemand
}

// GenerateWeek produces the schedule for one week with retry and reseed:
// each attempt runs the full allocation pipeline under a different shuffle
// seed and is audited by the validator. Early attempts must be clean; from
// acceptRotationFrom rotation repeats are tolerated, and from
// acceptRelaxableFrom relaxed assignments, third shifts and unallocated
// demands are as well.
//
// A nil accumulator means a standalone week: history is primed from the
// store. If dryRun is true nothing is persisted. If forceCommit is true the
// final attempt is persisted even when unacceptable.
func GenerateWeek(
	ctx context.Context,
	store db.GenerationStore,
	cfg *config.Config,
	logger *zap.Logger,
	weekStart string,
	acc *allocator.Accumulator,
	maxAttempts int,
	dryRun bool,
	forceCommit bool,
) (*GenerateWeekResult, error) {
	monday, err := mondayOf(weekStart)
	if err != nil {
		return nil, err
	}
	if monday != weekStart {
		return nil, fmt.Errorf("week start %s is not a Monday", weekStart)
	}
	weekEnd := addDays(weekStart, 6)

	logger.Debug("Starting generateWeek",
		zap.String("week_start", weekStart),
		zap.Bool("dry_run", dryRun),
		zap.Bool("force_commit", forceCommit))

	logger.Debug("Fetching brokers")
	brokerList, err := store.GetActiveBrokers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch brokers: %w", err)
	}
	logger.Debug("Found brokers", zap.Int("count", len(brokerList)))

	logger.Debug("Fetching locations")
	locationList, err := store.GetActiveLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locations: %w", err)
	}
	logger.Debug("Found locations", zap.Int("count", len(locationList)))

	brokers := brokersByID(brokerList)
	locations := locationsByID(locationList)

	blocked, err := expandBlockedDatesFor(cfg, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to expand blocked dates: %w", err)
	}

	demands, impossible, err := demand.BuildDemands(demand.BuildInput{
		WeekStart:    weekStart,
		WeekEnd:      weekEnd,
		Locations:    locationList,
		Brokers:      brokers,
		BlockedDates: blocked,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build demands: %w", err)
	}

	if acc == nil {
		acc, err = primeAccumulator(ctx, store, brokers, locations, weekStart)
		if err != nil {
			return nil, err
		}
	}

	opts := allocatorOptions(cfg)

	var lastCtx *allocator.WeekContext
	var lastOutcome *allocator.Outcome
	var lastViolations []model.RuleViolation

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		queues, saturdayQueues := acc.CloneQueues()
		ensureQueues(queues, locationList, brokers, model.LocationExternal)

		weekCtx := allocator.NewWeekContext(
			weekStart, weekEnd, opts, brokers, locations, demands, queues, saturdayQueues, acc)
		engine := allocator.NewEngine(weekCtx, logger)

		seed := int64(attempt) * seedStride
		outcome := engine.AllocateExternals(seed)
		violations := allocator.ValidateWeek(weekCtx)

		lastCtx, lastOutcome, lastViolations = weekCtx, outcome, violations

		if !acceptable(outcome, violations, attempt, cfg, logger) {
			logger.Debug("Attempt rejected",
				zap.String("week_start", weekStart),
				zap.Int("attempt", attempt),
				zap.Int("violations", len(violations)),
				zap.Int("unallocated", len(outcome.Unallocated)))
			continue
		}

		logger.Info("Week accepted",
			zap.String("week_start", weekStart),
			zap.Int("attempt", attempt),
			zap.Int("assignments", len(outcome.Assignments)),
			zap.Int("warnings", len(violations)))

		result := &GenerateWeekResult{
			WeekStart:   weekStart,
			WeekEnd:     weekEnd,
			Attempt:     attempt,
			Accepted:    true,
			Assignments: outcome.Assignments,
			Violations:  violations,
			Unallocated: outcome.Unallocated,
			Impossible:  impossible,
		}

		// Commit before touching the shared accumulator, so a storage
		// failure never advances history for a week that was not saved
		if err := commitWeek(ctx, store, weekCtx, result, dryRun, logger); err != nil {
			return nil, err
		}
		advanceAccumulator(acc, weekCtx)
		return result, nil
	}

	logger.Warn("All attempts exhausted",
		zap.String("week_start", weekStart),
		zap.Int("max_attempts", maxAttempts))

	if forceCommit && lastCtx != nil {
		result := &GenerateWeekResult{
			WeekStart:   weekStart,
			WeekEnd:     weekEnd,
			Attempt:     maxAttempts,
			Accepted:    false,
			Assignments: lastOutcome.Assignments,
			Violations:  lastViolations,
			Unallocated: lastOutcome.Unallocated,
			Impossible:  impossible,
		}
		if err := commitWeek(ctx, store, lastCtx, result, dryRun, logger); err != nil {
			return nil, err
		}
		advanceAccumulator(acc, lastCtx)
		logger.Warn("Forced commit of unacceptable week", zap.String("week_start", weekStart))
		return result, nil
	}

	return nil, fmt.Errorf("week %s: %w", weekStart, ErrAttemptsExhausted)
}

// acceptable decides whether an attempt's outcome may be kept. The bar
// lowers as attempts accumulate, one violation category at a time.
func acceptable(
	outcome *allocator.Outcome,
	violations []model.RuleViolation,
	attempt int,
	cfg *config.Config,
	logger *zap.Logger,
) bool {
	for _, v := range violations {
		if v.Severity != model.SeverityCritical {
			continue
		}
		if v.Rule == string(allocator.RuleRotationRepeat) && attempt >= cfg.AcceptRotationFrom {
			logger.Debug("Tolerating rotation repeat", zap.String("broker", v.BrokerName))
			continue
		}
		return false
	}

	if attempt >= cfg.AcceptRelaxableFrom {
		return true
	}
	if outcome.UsedRelaxation || outcome.UsedThirdShifts || len(outcome.Unallocated) > 0 {
		return false
	}
	return true
}

// commitWeek persists an accepted week unless running dry
func commitWeek(
	ctx context.Context,
	store db.GenerationStore,
	weekCtx *allocator.WeekContext,
	result *GenerateWeekResult,
	dryRun bool,
	logger *zap.Logger,
) error {
	if dryRun {
		logger.Info("Dry run mode - schedule not saved", zap.String("week_start", result.WeekStart))
		return nil
	}

	if err := store.InsertAssignments(ctx, result.Assignments); err != nil {
		return fmt.Errorf("failed to save assignments: %w", err)
	}
	if err := persistQueues(ctx, store, weekCtx); err != nil {
		return err
	}
	if err := store.UpsertWeeklyStats(ctx, weeklyStatsOf(weekCtx)); err != nil {
		return fmt.Errorf("failed to save weekly stats: %w", err)
	}

	report := &db.ValidationReport{
		ID:         uuid.New(),
		WeekStart:  result.WeekStart,
		Attempt:    result.Attempt,
		Valid:      !allocator.HasCritical(result.Violations),
		Violations: result.Violations,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.InsertValidationReport(ctx, report); err != nil {
		return fmt.Errorf("failed to save validation report: %w", err)
	}

	logger.Info("Week saved",
		zap.String("week_start", result.WeekStart),
		zap.Int("assignments", len(result.Assignments)))
	return nil
}

// ensureQueues seeds a rotation queue for every location of the given type
// and enrolls its linked brokers, so new sites and new hires rotate from
// the tail
func ensureQueues(
	queues map[uuid.UUID]*allocator.RotationQueue,
	locations []*model.Location,
	brokers map[uuid.UUID]*model.Broker,
	locType model.LocationType,
) {
	for _, loc := range locations {
		if loc.Type != locType {
			continue
		}
		queue, ok := queues[loc.ID]
		if !ok {
			queue = allocator.NewRotationQueue(loc.ID, nil)
			queues[loc.ID] = queue
		}
		for _, link := range loc.Links {
			if broker, exists := brokers[link.BrokerID]; exists && broker.Active {
				queue.EnsureBroker(link.BrokerID)
			}
		}
	}
}
