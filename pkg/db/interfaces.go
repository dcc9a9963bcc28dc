package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// RosterStore provides read access to the configured brokers and locations
type RosterStore interface {
	GetActiveBrokers(ctx context.Context) ([]*model.Broker, error)

	// GetActiveLocations returns locations with their periods, day configs,
	// excluded dates and broker links loaded
	GetActiveLocations(ctx context.Context) ([]*model.Location, error)
}

// QueueStore provides read/write access to the persistent rotation queues
type QueueStore interface {
	// GetRotationQueues returns the external-location rotation queue rows,
	// ordered by position
	GetRotationQueues(ctx context.Context) ([]model.QueueEntry, error)

	// GetSaturdayQueues returns the internal-location Saturday queue rows,
	// ordered by position
	GetSaturdayQueues(ctx context.Context) ([]model.QueueEntry, error)

	// ReplaceRotationQueue rewrites one location's rotation queue
	ReplaceRotationQueue(ctx context.Context, locationID uuid.UUID, entries []model.QueueEntry) error

	// ReplaceSaturdayQueue rewrites one internal location's Saturday queue
	ReplaceSaturdayQueue(ctx context.Context, locationID uuid.UUID, entries []model.QueueEntry) error
}

// AssignmentStore provides access to produced schedules and weekly stats
type AssignmentStore interface {
	// GetAssignmentsBetween returns assignments with startDate <= date <= endDate
	GetAssignmentsBetween(ctx context.Context, startDate, endDate string) ([]*model.Assignment, error)

	GetWeeklyStats(ctx context.Context, weekStart string) ([]model.WeeklyStat, error)

	InsertAssignments(ctx context.Context, assignments []*model.Assignment) error

	UpsertWeeklyStats(ctx context.Context, stats []model.WeeklyStat) error

	InsertValidationReport(ctx context.Context, report *ValidationReport) error
}

// GenerationStore is the full storage surface the generation services need
type GenerationStore interface {
	RosterStore
	QueueStore
	AssignmentStore
}
