// Package testkit wires the ledger services over an in-memory SQLite
// database for package tests.
package testkit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/admissions"
	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	apprepo "github.com/smallbiznis/bootcamp/internal/application/repository"
	appservice "github.com/smallbiznis/bootcamp/internal/application/service"
	auditdomain "github.com/smallbiznis/bootcamp/internal/audit/domain"
	auditrepo "github.com/smallbiznis/bootcamp/internal/audit/repository"
	auditservice "github.com/smallbiznis/bootcamp/internal/audit/service"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/bootcamp/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/bootcamp/internal/catalog/service"
	"github.com/smallbiznis/bootcamp/internal/clock"
	enrollmentdomain "github.com/smallbiznis/bootcamp/internal/enrollment/domain"
	enrollmentrepo "github.com/smallbiznis/bootcamp/internal/enrollment/repository"
	enrollmentservice "github.com/smallbiznis/bootcamp/internal/enrollment/service"
	intakedomain "github.com/smallbiznis/bootcamp/internal/intake/domain"
	intakerepo "github.com/smallbiznis/bootcamp/internal/intake/repository"
	"github.com/smallbiznis/bootcamp/internal/migration"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	orderrepo "github.com/smallbiznis/bootcamp/internal/order/repository"
	orderservice "github.com/smallbiznis/bootcamp/internal/order/service"
	ppdomain "github.com/smallbiznis/bootcamp/internal/personalprice/domain"
	pprepo "github.com/smallbiznis/bootcamp/internal/personalprice/repository"
	ppservice "github.com/smallbiznis/bootcamp/internal/personalprice/service"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
	userrepo "github.com/smallbiznis/bootcamp/internal/user/repository"
	userservice "github.com/smallbiznis/bootcamp/internal/user/service"
	"github.com/smallbiznis/bootcamp/pkg/db"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// Models is every table the services touch.
func Models() []any {
	return migration.Models()
}

type Kit struct {
	DB    *gorm.DB
	Node  *snowflake.Node
	Clock *clock.FakeClock
	Log   *zap.Logger

	CatalogRepo    catalogdomain.Repository
	UserRepo       userdomain.Repository
	AppRepo        appdomain.Repository
	PriceRepo      ppdomain.Repository
	OrderRepo      orderdomain.Repository
	EnrollmentRepo enrollmentdomain.Repository
	IntakeRepo     intakedomain.Repository

	Audit       auditdomain.Service
	Catalog     catalogdomain.Service
	Users       userdomain.Service
	Apps        appdomain.Service
	Prices      ppdomain.Service
	Enrollments enrollmentdomain.Service
	Orders      orderdomain.Service
	Gate        admissions.Gate
}

// Now is the fake clock's starting instant.
var Now = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func New(t *testing.T) *Kit {
	t.Helper()

	conn, err := db.NewTest(Models()...)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	k := &Kit{
		DB:             conn,
		Node:           node,
		Clock:          clock.NewFakeClock(Now),
		Log:            zaptest.NewLogger(t),
		CatalogRepo:    catalogrepo.Provide(),
		UserRepo:       userrepo.Provide(),
		AppRepo:        apprepo.Provide(),
		PriceRepo:      pprepo.Provide(),
		OrderRepo:      orderrepo.Provide(),
		EnrollmentRepo: enrollmentrepo.Provide(),
		IntakeRepo:     intakerepo.Provide(),
		Gate:           admissions.NewGate(),
	}

	k.Audit = auditservice.NewService(auditservice.Params{
		DB: conn, Log: k.Log, GenID: node, Repo: auditrepo.Provide(),
	})
	k.Catalog = catalogservice.NewService(catalogservice.Params{
		DB: conn, Log: k.Log, GenID: node, Clock: k.Clock, Repo: k.CatalogRepo,
	})
	k.Users = userservice.NewService(userservice.Params{
		DB: conn, Log: k.Log, GenID: node, Clock: k.Clock, Repo: k.UserRepo,
	})
	k.Apps = appservice.NewService(appservice.Params{
		DB: conn, Log: k.Log, GenID: node, Clock: k.Clock, Repo: k.AppRepo,
		CatalogRepo: k.CatalogRepo, PriceRepo: k.PriceRepo, OrderRepo: k.OrderRepo,
	})
	k.Prices = ppservice.NewService(ppservice.Params{
		DB: conn, Log: k.Log, GenID: node, Clock: k.Clock, Repo: k.PriceRepo,
		AuditSvc: k.Audit, Recomputer: k.Apps,
	})
	k.Enrollments = enrollmentservice.NewService(enrollmentservice.Params{
		DB: conn, Log: k.Log, GenID: node, Clock: k.Clock, Repo: k.EnrollmentRepo,
	})
	k.Orders = orderservice.NewService(orderservice.Params{
		DB: conn, Log: k.Log, GenID: node, Clock: k.Clock, Repo: k.OrderRepo,
		CatalogRepo: k.CatalogRepo, AppRepo: k.AppRepo, Recomputer: k.Apps,
		EnrollmentSvc: k.Enrollments, AuditSvc: k.Audit, Gate: k.Gate,
	})
	return k
}

// SeedRun creates a bootcamp and one run priced at price.
func (k *Kit) SeedRun(t *testing.T, runKey int64, price string, source catalogdomain.Source) *catalogdomain.BootcampRun {
	t.Helper()
	ctx := context.Background()

	bootcamp, err := k.Catalog.CreateBootcamp(ctx, catalogdomain.CreateBootcampRequest{
		Title: fmt.Sprintf("Bootcamp %d", runKey),
	})
	if err != nil {
		t.Fatalf("seed bootcamp: %v", err)
	}
	run, err := k.Catalog.CreateRun(ctx, catalogdomain.CreateRunRequest{
		BootcampID: bootcamp.ID,
		RunKey:     runKey,
		Title:      fmt.Sprintf("Run %d", runKey),
		Price:      money.MustParse(price),
		Source:     source,
	})
	if err != nil {
		t.Fatalf("seed run: %v", err)
	}
	return run
}

// SeedInstallment adds an installment due at deadline.
func (k *Kit) SeedInstallment(t *testing.T, run *catalogdomain.BootcampRun, deadline time.Time, amount string) {
	t.Helper()
	_, err := k.Catalog.AddInstallment(context.Background(), catalogdomain.AddInstallmentRequest{
		BootcampRunID: run.ID,
		Deadline:      deadline,
		Amount:        money.MustParse(amount),
	})
	if err != nil {
		t.Fatalf("seed installment: %v", err)
	}
}

// SeedAdmitted provisions a user the way a succeeded intake webhook would:
// user, profile, SUCCEEDED record for the run and an AWAITING_PAYMENT
// application.
func (k *Kit) SeedAdmitted(t *testing.T, email, upstreamID string, run *catalogdomain.BootcampRun) *userdomain.User {
	t.Helper()
	ctx := context.Background()

	source := run.Source
	if source == catalogdomain.SourceNone {
		source = catalogdomain.SourceIntakeA
	}
	user, _, err := k.Users.EnsureUser(ctx, nil, email)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := k.Users.EnsureProfile(ctx, nil, user.ID, source, upstreamID); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	k.SeedWebhook(t, source, email, upstreamID, run.RunKey, "sub-"+upstreamID)
	if _, err := k.Apps.Ensure(ctx, nil, user.ID, run.ID); err != nil {
		t.Fatalf("seed application: %v", err)
	}
	if _, err := k.Apps.Recompute(ctx, nil, user.ID, run.ID, appdomain.EventPriceChanged); err != nil {
		t.Fatalf("seed recompute: %v", err)
	}
	return user
}

// SeedWebhook inserts a SUCCEEDED webhook record.
func (k *Kit) SeedWebhook(t *testing.T, source catalogdomain.Source, email, upstreamID string, runKey int64, submissionID string) *intakedomain.WebhookRecord {
	t.Helper()
	now := k.Clock.Now()
	rec := &intakedomain.WebhookRecord{
		ID:        k.Node.Generate(),
		Source:    source,
		Body:      []byte(`{}`),
		Status:    intakedomain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ctx := context.Background()
	if err := k.IntakeRepo.InsertRecord(ctx, k.DB, rec); err != nil {
		t.Fatalf("seed webhook: %v", err)
	}
	rec.Status = intakedomain.StatusSucceeded
	rec.UserEmail = &email
	rec.UserID = &upstreamID
	rec.AwardID = &runKey
	if submissionID != "" {
		rec.SubmissionID = &submissionID
	}
	if err := k.IntakeRepo.SaveParsed(ctx, k.DB, rec); err != nil {
		t.Fatalf("seed webhook parse: %v", err)
	}
	return rec
}

// Application reads the (user, run) application or fails the test.
func (k *Kit) Application(t *testing.T, userID, runID snowflake.ID) *appdomain.Application {
	t.Helper()
	app, err := k.Apps.Get(context.Background(), userID, runID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	return app
}

// Count runs a COUNT query.
func (k *Kit) Count(t *testing.T, query string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := k.DB.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

// Fulfill creates and fulfills a credit-card order the way the gateway
// confirmation would.
func (k *Kit) Fulfill(t *testing.T, userID snowflake.ID, runKey int64, amount string) *orderdomain.Order {
	t.Helper()
	ctx := context.Background()
	order, err := k.Orders.CreateUnfulfilledOrder(ctx, orderdomain.CreateOrderRequest{
		UserID: userID,
		RunKey: runKey,
		Amount: money.MustParse(amount),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	err = k.DB.Transaction(func(tx *gorm.DB) error {
		locked, err := k.OrderRepo.FindForUpdate(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		return k.Orders.CompleteSuccessfulOrder(ctx, tx, locked)
	})
	if err != nil {
		t.Fatalf("fulfill order: %v", err)
	}
	return order
}
