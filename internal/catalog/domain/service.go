package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateBootcamp(ctx context.Context, req CreateBootcampRequest) (*Bootcamp, error)
	CreateRun(ctx context.Context, req CreateRunRequest) (*BootcampRun, error)
	AddInstallment(ctx context.Context, req AddInstallmentRequest) (*Installment, error)

	GetBootcamp(ctx context.Context, id snowflake.ID) (*Bootcamp, error)
	GetRun(ctx context.Context, id snowflake.ID) (*BootcampRun, error)
	GetRunByKey(ctx context.Context, runKey int64) (*BootcampRun, error)
	ListActiveRuns(ctx context.Context) ([]BootcampRun, error)
	ListInstallments(ctx context.Context, runID snowflake.ID) ([]Installment, error)
}

var (
	ErrInvalidTitle         = errors.New("invalid_title")
	ErrInvalidRunKey        = errors.New("invalid_run_key")
	ErrInvalidPrice         = errors.New("invalid_price")
	ErrInvalidSource        = errors.New("invalid_source")
	ErrInvalidDeadline      = errors.New("invalid_deadline")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrBootcampNotFound     = errors.New("bootcamp_not_found")
	ErrRunNotFound          = errors.New("bootcamp_run_not_found")
	ErrRunKeyTaken          = errors.New("run_key_taken")
	ErrSlugTaken            = errors.New("slug_taken")
	ErrDuplicateInstallment = errors.New("duplicate_installment")
)
