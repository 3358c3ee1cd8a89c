package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"gorm.io/gorm"
)

const runColumns = `id, bootcamp_id, run_key, title, price, source, allows_skipped_steps, start_date, end_date, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBootcamp(ctx context.Context, db *gorm.DB, b *domain.Bootcamp) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bootcamps (id, title, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID,
		b.Title,
		b.Slug,
		b.CreatedAt,
		b.UpdatedAt,
	).Error
}

func (r *repo) InsertRun(ctx context.Context, db *gorm.DB, run *domain.BootcampRun) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bootcamp_runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.BootcampID,
		run.RunKey,
		run.Title,
		run.Price,
		run.Source,
		run.AllowsSkippedSteps,
		run.StartDate,
		run.EndDate,
		run.CreatedAt,
		run.UpdatedAt,
	).Error
}

func (r *repo) InsertInstallment(ctx context.Context, db *gorm.DB, inst *domain.Installment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO installments (id, bootcamp_run_id, deadline, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		inst.ID,
		inst.BootcampRunID,
		inst.Deadline,
		inst.Amount,
		inst.CreatedAt,
	).Error
}

func (r *repo) FindBootcampByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Bootcamp, error) {
	var b domain.Bootcamp
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, slug, created_at, updated_at FROM bootcamps WHERE id = ?`,
		id,
	).Scan(&b).Error
	if err != nil {
		return nil, err
	}
	if b.ID == 0 {
		return nil, nil
	}
	return &b, nil
}

func (r *repo) FindRunByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.BootcampRun, error) {
	return r.findRun(ctx, db, `id = ?`, id)
}

func (r *repo) FindRunByKey(ctx context.Context, db *gorm.DB, runKey int64) (*domain.BootcampRun, error) {
	return r.findRun(ctx, db, `run_key = ?`, runKey)
}

func (r *repo) findRun(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.BootcampRun, error) {
	var run domain.BootcampRun
	err := db.WithContext(ctx).Raw(
		`SELECT `+runColumns+` FROM bootcamp_runs WHERE `+where,
		arg,
	).Scan(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == 0 {
		return nil, nil
	}
	return &run, nil
}

func (r *repo) ListActiveRuns(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.BootcampRun, error) {
	var runs []domain.BootcampRun
	err := db.WithContext(ctx).
		Model(&domain.BootcampRun{}).
		Where("end_date IS NULL OR end_date >= ?", now).
		Order("run_key asc").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *repo) ListInstallments(ctx context.Context, db *gorm.DB, runID snowflake.ID) ([]domain.Installment, error) {
	var items []domain.Installment
	err := db.WithContext(ctx).
		Model(&domain.Installment{}).
		Where("bootcamp_run_id = ?", runID).
		Order("deadline asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
