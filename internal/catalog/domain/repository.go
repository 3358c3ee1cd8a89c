package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBootcamp(ctx context.Context, db *gorm.DB, b *Bootcamp) error
	InsertRun(ctx context.Context, db *gorm.DB, run *BootcampRun) error
	InsertInstallment(ctx context.Context, db *gorm.DB, inst *Installment) error

	FindBootcampByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bootcamp, error)
	FindRunByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BootcampRun, error)
	FindRunByKey(ctx context.Context, db *gorm.DB, runKey int64) (*BootcampRun, error)
	ListActiveRuns(ctx context.Context, db *gorm.DB, now time.Time) ([]BootcampRun, error)
	ListInstallments(ctx context.Context, db *gorm.DB, runID snowflake.ID) ([]Installment, error)
}
