package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert returns false when the reminder was already recorded.
	Insert(ctx context.Context, db *gorm.DB, r *SentReminder) (bool, error)
	Exists(ctx context.Context, db *gorm.DB, userID snowflake.ID, template string, runID snowflake.ID) (bool, error)
	ListByRun(ctx context.Context, db *gorm.DB, runID snowflake.ID) ([]SentReminder, error)
}
