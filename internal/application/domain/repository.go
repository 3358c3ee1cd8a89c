package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert reports false when (user, run) already has an application.
	Insert(ctx context.Context, db *gorm.DB, app *Application) (bool, error)
	Find(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*Application, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Application, error)
	// FindForUpdate locks the row for the rest of the transaction.
	FindForUpdate(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*Application, error)
	UpdateStateAndPrice(ctx context.Context, db *gorm.DB, app *Application) error
	ListUserIDsByRunAndStates(ctx context.Context, db *gorm.DB, runID snowflake.ID, states []State) ([]snowflake.ID, error)
}
