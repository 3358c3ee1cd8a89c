package domain

import (
	"context"
	"time"
)

type Service interface {
	// SendReminders mails every admitted user with an outstanding balance on
	// a run whose next installment is a configured number of days away.
	SendReminders(ctx context.Context, now time.Time) (Report, error)
}
