package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/user/domain"
	"gorm.io/gorm"
)

const userColumns = `id, email, username, first_name, last_name, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertUser(ctx context.Context, db *gorm.DB, user *domain.User) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		user.ID,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findUser(ctx, db, `id = ?`, id)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return r.findUser(ctx, db, `LOWER(email) = ?`, domain.NormalizeEmail(email))
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return r.findUser(ctx, db, `username = ?`, username)
}

func (r *repo) findUser(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`,
		arg,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) InsertProfile(ctx context.Context, db *gorm.DB, profile *domain.Profile) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO profiles (id, user_id, intake_a_user_id, intake_b_user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		profile.ID,
		profile.UserID,
		profile.IntakeAUserID,
		profile.IntakeBUserID,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) FindProfile(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, intake_a_user_id, intake_b_user_id, created_at, updated_at
		 FROM profiles WHERE user_id = ?`,
		userID,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) SetUpstreamID(ctx context.Context, db *gorm.DB, profileID snowflake.ID, source catalogdomain.Source, upstreamID string, now time.Time) error {
	var column string
	switch source {
	case catalogdomain.SourceIntakeA:
		column = "intake_a_user_id"
	case catalogdomain.SourceIntakeB:
		column = "intake_b_user_id"
	default:
		return fmt.Errorf("unsupported intake source %q", source)
	}
	return db.WithContext(ctx).Exec(
		`UPDATE profiles SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		upstreamID,
		now,
		profileID,
	).Error
}
