package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"gorm.io/gorm"
)

type Service interface {
	// EnsureUser returns the user with email, matched case-insensitively,
	// creating one when absent. db may be a transaction.
	EnsureUser(ctx context.Context, db *gorm.DB, email string) (*User, bool, error)
	EnsureProfile(ctx context.Context, db *gorm.DB, userID snowflake.ID, source catalogdomain.Source, upstreamID string) (*Profile, error)

	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	GetProfile(ctx context.Context, userID snowflake.ID) (*Profile, error)
	// Resolve accepts a numeric id, an email or a username.
	Resolve(ctx context.Context, ident string) (*User, error)
}

var (
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidIdent    = errors.New("invalid_user_identifier")
	ErrUserNotFound    = errors.New("user_not_found")
	ErrProfileNotFound = errors.New("profile_not_found")
)
