package domain

import (
	"math"
	"sort"
	"time"

	"github.com/smallbiznis/bootcamp/pkg/money"
)

// SortInstallments orders installments by deadline, earliest first.
func SortInstallments(items []Installment) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Deadline.Before(items[j].Deadline)
	})
}

// NextInstallment returns the earliest installment whose deadline is after now.
func NextInstallment(items []Installment, now time.Time) *Installment {
	var next *Installment
	for i := range items {
		if !items[i].Deadline.After(now) {
			continue
		}
		if next == nil || items[i].Deadline.Before(next.Deadline) {
			next = &items[i]
		}
	}
	return next
}

// TotalDueBy sums the installments with deadline on or before deadline.
func TotalDueBy(items []Installment, deadline time.Time) money.Amount {
	total := money.Zero
	for _, item := range items {
		if item.Deadline.After(deadline) {
			continue
		}
		total = total.Add(item.Amount)
	}
	return total
}

// TotalDueByNextDeadline is TotalDueBy at the next installment deadline.
// Without a future installment everything scheduled is due.
func TotalDueByNextDeadline(items []Installment, now time.Time) money.Amount {
	next := NextInstallment(items, now)
	if next == nil {
		total := money.Zero
		for _, item := range items {
			total = total.Add(item.Amount)
		}
		return total
	}
	return TotalDueBy(items, next.Deadline)
}

// NextPaymentDeadlineDays is ceil(deadline - now) in days, or nil when no
// installment lies in the future.
func NextPaymentDeadlineDays(items []Installment, now time.Time) *int {
	next := NextInstallment(items, now)
	if next == nil {
		return nil
	}
	days := int(math.Ceil(next.Deadline.Sub(now).Hours() / 24))
	return &days
}

// CalendarDaysUntil counts UTC calendar-day boundaries between now and t.
// A deadline later today is 0 days away.
func CalendarDaysUntil(t, now time.Time) int {
	ty, tm, td := t.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}
