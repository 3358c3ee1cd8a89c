package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/pkg/money"
)

type State string

// Earlier states belong to the review pipeline and are never advanced here.
const (
	StateAwaitingSubmission State = "AWAITING_USER_SUBMISSIONS"
	StateAwaitingReview     State = "AWAITING_SUBMISSION_REVIEW"
	StateRejected           State = "REJECTED"
	StateAwaitingPayment    State = "AWAITING_PAYMENT"
	StateComplete           State = "COMPLETE"
	StateRefunded           State = "REFUNDED"
)

// Managed reports whether payments and prices drive this state.
func (s State) Managed() bool {
	return s == StateAwaitingPayment || s == StateComplete
}

// Event is what caused a recomputation.
type Event string

const (
	EventPriceChanged Event = "price_changed"
	EventPayment      Event = "payment"
	EventRefund       Event = "refund"
)

type Application struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID        snowflake.ID  `json:"user_id" gorm:"not null;uniqueIndex:ux_applications_user_run,priority:1"`
	BootcampRunID snowflake.ID  `json:"bootcamp_run_id" gorm:"not null;uniqueIndex:ux_applications_user_run,priority:2;index"`
	State         State         `json:"state" gorm:"type:text;not null"`
	Price         *money.Amount `json:"price,omitempty"`
	CreatedAt     time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"not null"`
}

func (Application) TableName() string { return "applications" }

// Transition is the outcome of one recomputation.
type Transition struct {
	Application *Application
	From        State
	To          State
	Price       money.Amount
	Paid        money.Amount
}

func (t Transition) Changed() bool {
	return t.From != t.To
}

// NextState applies the payment law: an application is COMPLETE exactly when
// the net paid total covers the effective price. A refund that leaves a
// completed application with nothing paid moves it to REFUNDED.
func NextState(current State, event Event, price, paid money.Amount) State {
	if !current.Managed() {
		return current
	}
	if event == EventRefund && current == StateComplete && !paid.IsPositive() && price.IsPositive() {
		return StateRefunded
	}
	if paid.GreaterThanOrEqual(price) {
		return StateComplete
	}
	return StateAwaitingPayment
}
