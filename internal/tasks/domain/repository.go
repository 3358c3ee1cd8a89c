package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert returns false when a task with the same dedupe key exists.
	Insert(ctx context.Context, db *gorm.DB, task *Task) (bool, error)
	ClaimDue(ctx context.Context, db *gorm.DB, now, leaseUntil time.Time, limit int) ([]Task, error)
	MarkSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, runAfter time.Time, reason string, now time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Task, error)
	ListByKind(ctx context.Context, db *gorm.DB, kind string) ([]Task, error)
}
