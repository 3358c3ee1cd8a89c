package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/catalog/repository"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/pkg/db"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest(&domain.Bootcamp{}, &domain.BootcampRun{}, &domain.Installment{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	}), clk
}

func TestCreateRunAndLookup(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	bootcamp, err := svc.CreateBootcamp(ctx, domain.CreateBootcampRequest{Title: "Data Engineering 101"})
	require.NoError(t, err)
	assert.Equal(t, "data-engineering-101", bootcamp.Slug)

	run, err := svc.CreateRun(ctx, domain.CreateRunRequest{
		BootcampID: bootcamp.ID,
		RunKey:     77,
		Title:      "Data Engineering, Spring",
		Price:      money.MustParse("1000.00"),
		Source:     domain.SourceIntakeA,
	})
	require.NoError(t, err)

	got, err := svc.GetRunByKey(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "1000.00", got.Price.String())
	assert.Equal(t, domain.SourceIntakeA, got.Source)

	_, err = svc.CreateRun(ctx, domain.CreateRunRequest{
		BootcampID: bootcamp.ID,
		RunKey:     77,
		Title:      "Duplicate",
		Price:      money.MustParse("10.00"),
	})
	assert.ErrorIs(t, err, domain.ErrRunKeyTaken)

	_, err = svc.GetRunByKey(ctx, 78)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestCreateRunValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateRun(ctx, domain.CreateRunRequest{Title: "x", RunKey: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidRunKey)

	_, err = svc.CreateRun(ctx, domain.CreateRunRequest{Title: "x", RunKey: 1, Price: money.MustParse("-1.00")})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.CreateRun(ctx, domain.CreateRunRequest{Title: "x", RunKey: 1, Source: "other"})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)

	_, err = svc.CreateRun(ctx, domain.CreateRunRequest{Title: "x", RunKey: 1, BootcampID: 12345})
	assert.ErrorIs(t, err, domain.ErrBootcampNotFound)
}

func TestInstallmentsUniquePerDeadline(t *testing.T) {
	ctx := context.Background()
	svc, clk := newTestService(t)

	bootcamp, err := svc.CreateBootcamp(ctx, domain.CreateBootcampRequest{Title: "Web"})
	require.NoError(t, err)
	run, err := svc.CreateRun(ctx, domain.CreateRunRequest{
		BootcampID: bootcamp.ID,
		RunKey:     5,
		Title:      "Web, Fall",
		Price:      money.MustParse("900.00"),
	})
	require.NoError(t, err)

	later := clk.Now().Add(20 * 24 * time.Hour)
	sooner := clk.Now().Add(10 * 24 * time.Hour)
	_, err = svc.AddInstallment(ctx, domain.AddInstallmentRequest{BootcampRunID: run.ID, Deadline: later, Amount: money.MustParse("600.00")})
	require.NoError(t, err)
	_, err = svc.AddInstallment(ctx, domain.AddInstallmentRequest{BootcampRunID: run.ID, Deadline: sooner, Amount: money.MustParse("300.00")})
	require.NoError(t, err)

	_, err = svc.AddInstallment(ctx, domain.AddInstallmentRequest{BootcampRunID: run.ID, Deadline: later, Amount: money.MustParse("1.00")})
	assert.ErrorIs(t, err, domain.ErrDuplicateInstallment)

	_, err = svc.AddInstallment(ctx, domain.AddInstallmentRequest{BootcampRunID: run.ID, Deadline: later.Add(time.Hour), Amount: money.Zero})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	items, err := svc.ListInstallments(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "300.00", items[0].Amount.String())
	assert.Equal(t, "900.00", domain.TotalDueBy(items, later).String())

	days := domain.NextPaymentDeadlineDays(items, clk.Now())
	require.NotNil(t, days)
	assert.Equal(t, 10, *days)
}
