package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert reports false when a row for (user, run) already exists.
	Insert(ctx context.Context, db *gorm.DB, e *Enrollment) (bool, error)
	Find(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*Enrollment, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Enrollment, error)
	SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, changeStatus *string, now time.Time) error
}
