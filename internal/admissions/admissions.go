// Package admissions answers whether a user may pay for a run. The answer
// comes only from SUCCEEDED intake webhook records whose award matches the
// run key and whose upstream user id matches the user's profile.
package admissions

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Gate interface {
	Admitted(ctx context.Context, db *gorm.DB, userID snowflake.ID, run *catalogdomain.BootcampRun) (bool, error)
	AdmittedUserIDs(ctx context.Context, db *gorm.DB, run *catalogdomain.BootcampRun) ([]snowflake.ID, error)
}

var Module = fx.Module("admissions",
	fx.Provide(NewGate),
)

type gate struct{}

func NewGate() Gate {
	return &gate{}
}

// admittedQuery joins profiles to succeeded webhook records on the upstream
// id column that belongs to the record's source.
const admittedQuery = `SELECT DISTINCT p.user_id
	FROM profiles p
	JOIN webhook_records w
	  ON w.status = 'SUCCEEDED'
	 AND w.award_id = ?
	 AND (
	      (w.source = 'intake_A' AND w.user_id = p.intake_a_user_id)
	   OR (w.source = 'intake_B' AND w.user_id = p.intake_b_user_id)
	 )`

func (g *gate) Admitted(ctx context.Context, db *gorm.DB, userID snowflake.ID, run *catalogdomain.BootcampRun) (bool, error) {
	if run == nil || userID == 0 {
		return false, nil
	}
	query, args := scoped(run)
	query += ` WHERE p.user_id = ?`
	args = append(args, userID)

	var ids []snowflake.ID
	if err := db.WithContext(ctx).Raw(query+` LIMIT 1`, args...).Scan(&ids).Error; err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (g *gate) AdmittedUserIDs(ctx context.Context, db *gorm.DB, run *catalogdomain.BootcampRun) ([]snowflake.ID, error) {
	if run == nil {
		return nil, nil
	}
	query, args := scoped(run)
	var ids []snowflake.ID
	if err := db.WithContext(ctx).Raw(query+` ORDER BY p.user_id`, args...).Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// scoped restricts records to the run's own source when it has one.
func scoped(run *catalogdomain.BootcampRun) (string, []any) {
	query := admittedQuery
	args := []any{run.RunKey}
	if run.Source != catalogdomain.SourceNone {
		query += ` AND w.source = ?`
		args = append(args, string(run.Source))
	}
	return query, args
}
