package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Recomputer re-derives price and state for one (user, run) application.
// Callers pass the transaction that carried the triggering write.
type Recomputer interface {
	Recompute(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID, event Event) (*Transition, error)
}

type Service interface {
	Recomputer

	// Ensure returns the application, creating it in AWAITING_PAYMENT.
	Ensure(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*Application, error)
	Get(ctx context.Context, userID, runID snowflake.ID) (*Application, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Application, error)
}

var (
	ErrApplicationNotFound = errors.New("application_not_found")
	ErrRunNotFound         = errors.New("bootcamp_run_not_found")
)
