package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	intakedomain "github.com/smallbiznis/bootcamp/internal/intake/domain"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	paymentdomain "github.com/smallbiznis/bootcamp/internal/payment/domain"
	"github.com/smallbiznis/bootcamp/internal/ratelimit"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// validationFields names the request field each domain rejection refers to.
var validationFields = []struct {
	err   error
	field string
}{
	{orderdomain.ErrInvalidAmount, "payment_amount"},
	{money.ErrInvalidAmount, "payment_amount"},
	{paymentdomain.ErrPaymentExceedsDue, "payment_amount"},
	{paymentdomain.ErrNothingDue, "payment_amount"},
	{orderdomain.ErrInvalidRunKey, "run_key"},
	{catalogdomain.ErrInvalidRunKey, "run_key"},
	{orderdomain.ErrNotAdmitted, "run_key"},
	{paymentdomain.ErrReferenceMismatch, "req_reference_number"},
	{paymentdomain.ErrParseFailure, "req_reference_number"},
	{paymentdomain.ErrMissingReference, "req_reference_number"},
	{ErrInvalidRequest, "request"},
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	for _, v := range validationFields {
		if errors.Is(err, v.err) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors: []ValidationError{
					{
						Field:   v.field,
						Code:    v.err.Error(),
						Message: validationMessage(v.err),
					},
				},
			}
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, intakedomain.ErrAuthFailure):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, orderdomain.ErrDuplicateFulfillment):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, paymentdomain.ErrPaymentExceedsDue):
		return "payment exceeds the outstanding balance"
	case errors.Is(err, paymentdomain.ErrNothingDue):
		return "nothing is due for this run"
	case errors.Is(err, orderdomain.ErrNotAdmitted):
		return "not admitted to this run"
	case errors.Is(err, orderdomain.ErrInvalidAmount), errors.Is(err, money.ErrInvalidAmount):
		return "amount must be a positive decimal"
	default:
		return "invalid value"
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, orderdomain.ErrRunNotFound),
		errors.Is(err, catalogdomain.ErrRunNotFound),
		errors.Is(err, appdomain.ErrApplicationNotFound),
		errors.Is(err, appdomain.ErrRunNotFound),
		errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, intakedomain.ErrUnknownSource),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds error_type and error_code on the request log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "internal", code
	}
	return "client", code
}
