package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertUser and InsertProfile report false when the row already exists.
	InsertUser(ctx context.Context, db *gorm.DB, user *User) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error)

	InsertProfile(ctx context.Context, db *gorm.DB, profile *Profile) (bool, error)
	FindProfile(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Profile, error)
	SetUpstreamID(ctx context.Context, db *gorm.DB, profileID snowflake.ID, source catalogdomain.Source, upstreamID string, now time.Time) error
}
