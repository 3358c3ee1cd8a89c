package domain

import (
	"testing"

	"github.com/smallbiznis/bootcamp/pkg/money"
)

func TestNextState(t *testing.T) {
	m := money.MustParse
	cases := []struct {
		name    string
		current State
		event   Event
		price   string
		paid    string
		want    State
	}{
		{"paid in full", StateAwaitingPayment, EventPayment, "1000.00", "1000.00", StateComplete},
		{"overpaid", StateAwaitingPayment, EventPayment, "1000.00", "1200.00", StateComplete},
		{"partial", StateAwaitingPayment, EventPayment, "1000.00", "999.99", StateAwaitingPayment},
		{"price raised", StateComplete, EventPriceChanged, "1200.00", "1000.00", StateAwaitingPayment},
		{"price lowered", StateAwaitingPayment, EventPriceChanged, "800.00", "800.00", StateComplete},
		{"free run", StateAwaitingPayment, EventPriceChanged, "0.00", "0.00", StateComplete},
		{"partial refund", StateComplete, EventRefund, "800.00", "500.00", StateAwaitingPayment},
		{"full refund", StateComplete, EventRefund, "800.00", "0.00", StateRefunded},
		{"refund of free run", StateComplete, EventRefund, "0.00", "0.00", StateComplete},
		{"refund while awaiting", StateAwaitingPayment, EventRefund, "800.00", "0.00", StateAwaitingPayment},
		{"refunded is terminal", StateRefunded, EventPayment, "800.00", "800.00", StateRefunded},
		{"review untouched", StateAwaitingReview, EventPayment, "800.00", "800.00", StateAwaitingReview},
		{"rejected untouched", StateRejected, EventPriceChanged, "0.00", "0.00", StateRejected},
		{"submission untouched", StateAwaitingSubmission, EventPayment, "1.00", "5.00", StateAwaitingSubmission},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextState(tc.current, tc.event, m(tc.price), m(tc.paid))
			if got != tc.want {
				t.Fatalf("NextState(%s, %s, %s, %s) = %s, want %s", tc.current, tc.event, tc.price, tc.paid, got, tc.want)
			}
		})
	}
}
