package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOrderAudit(ctx context.Context, db *gorm.DB, entry *domain.OrderAudit) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_audits (
			id, order_id, action, actor_type, actor_id, data_before, data_after, request_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrderID,
		entry.Action,
		entry.ActorType,
		entry.ActorID,
		entry.DataBefore,
		entry.DataAfter,
		entry.RequestID,
		entry.CreatedAt,
	).Error
}

func (r *repo) InsertPersonalPriceAudit(ctx context.Context, db *gorm.DB, entry *domain.PersonalPriceAudit) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO personal_price_audits (
			id, user_id, bootcamp_run_id, action, actor_type, actor_id, data_before, data_after, request_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.BootcampRunID,
		entry.Action,
		entry.ActorType,
		entry.ActorID,
		entry.DataBefore,
		entry.DataAfter,
		entry.RequestID,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListOrderAudits(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderAudit, error) {
	var out []domain.OrderAudit
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc, id asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) ListPersonalPriceAudits(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) ([]domain.PersonalPriceAudit, error) {
	var out []domain.PersonalPriceAudit
	err := db.WithContext(ctx).
		Where("user_id = ? AND bootcamp_run_id = ?", userID, runID).
		Order("created_at asc, id asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
