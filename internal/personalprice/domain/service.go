package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"gorm.io/gorm"
)

type Service interface {
	// Set upserts the personal price and recomputes the application when the
	// stored value changes. It reports whether anything was written.
	Set(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID, price money.Amount) (*PersonalPrice, bool, error)
	// Delete removes the override so the list price applies again.
	Delete(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (bool, error)
	Get(ctx context.Context, userID, runID snowflake.ID) (*PersonalPrice, error)
}

var (
	ErrInvalidPrice  = errors.New("invalid_price")
	ErrInvalidTarget = errors.New("invalid_target")
)
