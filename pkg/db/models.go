package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// ValidationReport is the persisted audit record for one accepted (or
// force-committed) week generation
type ValidationReport struct {
	ID         uuid.UUID
	WeekStart  string // YYYY-MM-DD, Monday
	Attempt    int    // attempt number that produced the accepted result
	Valid      bool   // true iff zero critical violations remained
	Violations []model.RuleViolation
	CreatedAt  time.Time
}
