package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/plantao/plantao/internal/config"
	"github.com/plantao/plantao/pkg/core/allocator"
	"github.com/plantao/plantao/pkg/db"
)

// GenerateMonthResult aggregates the per-week results of a month run
type GenerateMonthResult struct {
	Month string
	Weeks []*GenerateWeekResult
}

// GenerateMonth generates every week starting within the month, in order.
// Weeks share one accumulator so weekend counts, rotation queues and the
// previous week's picture carry across. Generation halts at the first week
// that exhausts its attempt budget: later weeks depend on earlier ones, so
// continuing past a failure would build on a schedule that does not exist.
func GenerateMonth(
	ctx context.Context,
	store db.GenerationStore,
	cfg *config.Config,
	logger *zap.Logger,
	month string,
	dryRun bool,
	forceCommit bool,
) (*GenerateMonthResult, error) {
	weekStarts, err := weekStartsOfMonth(month)
	if err != nil {
		return nil, err
	}
	if len(weekStarts) == 0 {
		return nil, fmt.Errorf("month %s contains no week starts", month)
	}

	logger.Info("Starting month generation",
		zap.String("month", month),
		zap.Int("weeks", len(weekStarts)),
		zap.Bool("dry_run", dryRun))

	brokerList, err := store.GetActiveBrokers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch brokers: %w", err)
	}
	locationList, err := store.GetActiveLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locations: %w", err)
	}

	acc, err := primeAccumulator(ctx, store, brokersByID(brokerList), locationsByID(locationList), weekStarts[0])
	if err != nil {
		return nil, err
	}

	result := &GenerateMonthResult{Month: month}
	for _, weekStart := range weekStarts {
		week, err := GenerateWeek(ctx, store, cfg, logger, weekStart, acc, cfg.MaxAttempts, dryRun, forceCommit)
		if err != nil {
			return result, fmt.Errorf("month generation halted at week %s: %w", weekStart, err)
		}
		result.Weeks = append(result.Weeks, week)
	}

	logger.Info("Month generation finished",
		zap.String("month", month),
		zap.Int("weeks", len(result.Weeks)))
	return result, nil
}

// RegenerateWeek regenerates a single week against stored history, with the
// tighter interactive attempt budget
func RegenerateWeek(
	ctx context.Context,
	store db.GenerationStore,
	cfg *config.Config,
	logger *zap.Logger,
	weekStart string,
	dryRun bool,
	forceCommit bool,
) (*GenerateWeekResult, error) {
	var acc *allocator.Accumulator // primed from the store inside GenerateWeek
	return GenerateWeek(ctx, store, cfg, logger, weekStart, acc, cfg.SelectiveMaxAttempts, dryRun, forceCommit)
}
