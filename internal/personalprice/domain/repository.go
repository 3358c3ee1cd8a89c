package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*PersonalPrice, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*PersonalPrice, error)
	// Upsert writes pp keyed on (user, run); pp.ID is kept only on insert.
	Upsert(ctx context.Context, db *gorm.DB, pp *PersonalPrice) error
	Delete(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (int64, error)
}
