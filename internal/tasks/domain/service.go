package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Enqueuer schedules deferred work. Passing a transaction makes the task
// visible only if the transaction commits.
type Enqueuer interface {
	Enqueue(ctx context.Context, db *gorm.DB, req EnqueueRequest) (*Task, error)
}

// EnqueueForOrder schedules one task per kind for orderID, deduplicated on
// (kind, order).
func EnqueueForOrder(ctx context.Context, q Enqueuer, db *gorm.DB, orderID snowflake.ID, kinds ...string) error {
	for _, kind := range kinds {
		_, err := q.Enqueue(ctx, db, EnqueueRequest{
			Kind:      kind,
			Payload:   OrderPayload{OrderID: orderID},
			DedupeKey: kind + ":" + orderID.String(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Handler runs one task. Returning an error wrapped with Permanent stops retries.
type Handler func(ctx context.Context, task Task) error

var (
	ErrInvalidKind    = errors.New("invalid_task_kind")
	ErrUnknownKind    = errors.New("unknown_task_kind")
	ErrInvalidPayload = errors.New("invalid_task_payload")
)

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
