package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Ensure makes the user actively enrolled on the run. A previously
	// refunded enrollment is reactivated.
	Ensure(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*Enrollment, error)
	// MarkRefunded deactivates the enrollment and sets change_status.
	MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Enrollment, error)
	Find(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*Enrollment, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Enrollment, error)
}

var ErrEnrollmentNotFound = errors.New("enrollment_not_found")
