package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/plantao/plantao/internal/config"
	"github.com/plantao/plantao/pkg/db"
)

// AppContext holds the dependencies shared by every command
type AppContext struct {
	Ctx      context.Context
	Cfg      *config.Config
	Database db.GenerationStore
	Logger   *zap.Logger
}
