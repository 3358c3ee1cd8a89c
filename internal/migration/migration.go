package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	auditdomain "github.com/smallbiznis/bootcamp/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	enrollmentdomain "github.com/smallbiznis/bootcamp/internal/enrollment/domain"
	intakedomain "github.com/smallbiznis/bootcamp/internal/intake/domain"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	ppdomain "github.com/smallbiznis/bootcamp/internal/personalprice/domain"
	reminderdomain "github.com/smallbiznis/bootcamp/internal/reminder/domain"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Models lists every table, in dependency order, for databases the embedded
// postgres migrations cannot drive.
func Models() []any {
	return []any{
		&catalogdomain.Bootcamp{},
		&catalogdomain.BootcampRun{},
		&catalogdomain.Installment{},
		&userdomain.User{},
		&userdomain.Profile{},
		&appdomain.Application{},
		&ppdomain.PersonalPrice{},
		&enrollmentdomain.Enrollment{},
		&orderdomain.Order{},
		&orderdomain.Line{},
		&orderdomain.Receipt{},
		&orderdomain.WireTransferReceipt{},
		&auditdomain.OrderAudit{},
		&auditdomain.PersonalPriceAudit{},
		&intakedomain.WebhookRecord{},
		&intakedomain.Token{},
		&reminderdomain.SentReminder{},
		&tasksdomain.Task{},
	}
}

// Apply brings the schema up to date. Postgres runs the embedded SQL
// migrations; sqlite (local mode) is auto-migrated from the models.
func Apply(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if !strings.EqualFold(strings.TrimSpace(dbType), "postgres") {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
