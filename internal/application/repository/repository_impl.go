package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/application/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, app *domain.Application) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO applications (id, user_id, bootcamp_run_id, state, price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		app.ID,
		app.UserID,
		app.BootcampRunID,
		app.State,
		app.Price,
		app.CreatedAt,
		app.UpdatedAt,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*domain.Application, error) {
	return first(db.WithContext(ctx).Where("user_id = ? AND bootcamp_run_id = ?", userID, runID))
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Application, error) {
	return first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*domain.Application, error) {
	return first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND bootcamp_run_id = ?", userID, runID))
}

func first(stmt *gorm.DB) (*domain.Application, error) {
	var apps []domain.Application
	if err := stmt.Limit(1).Find(&apps).Error; err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, nil
	}
	return &apps[0], nil
}

func (r *repo) UpdateStateAndPrice(ctx context.Context, db *gorm.DB, app *domain.Application) error {
	return db.WithContext(ctx).Exec(
		`UPDATE applications SET state = ?, price = ?, updated_at = ? WHERE id = ?`,
		app.State,
		app.Price,
		app.UpdatedAt,
		app.ID,
	).Error
}

func (r *repo) ListUserIDsByRunAndStates(ctx context.Context, db *gorm.DB, runID snowflake.ID, states []domain.State) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("bootcamp_run_id = ? AND state IN ?", runID, states).
		Order("user_id asc").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
