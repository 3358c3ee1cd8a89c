package domain

import (
	"testing"
	"time"

	"github.com/smallbiznis/bootcamp/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleArithmetic(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	items := []Installment{
		{Deadline: now.Add(30 * 24 * time.Hour), Amount: money.MustParse("300.00")},
		{Deadline: now.Add(-5 * 24 * time.Hour), Amount: money.MustParse("200.00")},
		{Deadline: now.Add(36 * time.Hour), Amount: money.MustParse("500.00")},
	}

	next := NextInstallment(items, now)
	require.NotNil(t, next)
	assert.True(t, next.Amount.Equal(money.MustParse("500.00")))

	assert.Equal(t, "700.00", TotalDueByNextDeadline(items, now).String())
	assert.Equal(t, "1000.00", TotalDueBy(items, now.Add(60*24*time.Hour)).String())

	days := NextPaymentDeadlineDays(items, now)
	require.NotNil(t, days)
	assert.Equal(t, 2, *days, "36h rounds up to two days")

	SortInstallments(items)
	assert.True(t, items[0].Deadline.Before(items[1].Deadline))
}

func TestScheduleWithoutFutureInstallment(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	items := []Installment{
		{Deadline: now.Add(-time.Hour), Amount: money.MustParse("100.00")},
	}

	assert.Nil(t, NextInstallment(items, now))
	assert.Nil(t, NextPaymentDeadlineDays(items, now))
	assert.Equal(t, "100.00", TotalDueByNextDeadline(items, now).String())
}

func TestCalendarDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, CalendarDaysUntil(now.Add(30*time.Minute), now))
	assert.Equal(t, 1, CalendarDaysUntil(now.Add(2*time.Hour), now))
	assert.Equal(t, 2, CalendarDaysUntil(now.Add(48*time.Hour), now))
	assert.Equal(t, -1, CalendarDaysUntil(now.Add(-24*time.Hour), now))
}

func TestSourceValid(t *testing.T) {
	assert.True(t, SourceIntakeA.Valid())
	assert.True(t, SourceNone.Valid())
	assert.False(t, Source("intake_C").Valid())
}
