package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	paymentdomain "github.com/smallbiznis/bootcamp/internal/payment/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"go.uber.org/zap"
)

type payRequest struct {
	RunKey        int64        `json:"run_key"`
	PaymentAmount money.Amount `json:"payment_amount"`
}

func (s *Server) PayIntent(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, money.ErrInvalidAmount) {
			AbortWithError(c, err)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	c.Request = c.Request.WithContext(obscontext.WithRunKey(c.Request.Context(), req.RunKey))
	checkout, err := s.paymentSvc.PayIntent(c.Request.Context(), userIDFromContext(c), paymentdomain.PayRequest{
		RunKey: req.RunKey,
		Amount: req.PaymentAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkout)
}

func (s *Server) PaymentStatus(c *gin.Context) {
	runKey, err := strconv.ParseInt(strings.TrimSpace(c.Param("run_key")), 10, 64)
	if err != nil || runKey <= 0 {
		AbortWithError(c, newValidationError("run_key", "invalid_run_key", "invalid value"))
		return
	}

	c.Request = c.Request.WithContext(obscontext.WithRunKey(c.Request.Context(), runKey))
	status, err := s.paymentSvc.Status(c.Request.Context(), userIDFromContext(c), runKey)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// OrderFulfillment receives the gateway's form-encoded confirmation. The
// gateway ignores the body; any non-200 makes it redeliver.
func (s *Server) OrderFulfillment(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	fields := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	result, err := s.paymentSvc.HandleConfirmation(c.Request.Context(), fields)
	if err != nil {
		if isConfirmationAnomaly(err) {
			s.log.Error("order fulfillment rejected",
				zap.String("reference", fields[paymentdomain.FieldReference]),
				zap.String("decision", fields[paymentdomain.FieldDecision]),
				zap.Error(err),
			)
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func isConfirmationAnomaly(err error) bool {
	return errors.Is(err, paymentdomain.ErrReferenceMismatch) ||
		errors.Is(err, paymentdomain.ErrParseFailure) ||
		errors.Is(err, paymentdomain.ErrMissingReference) ||
		errors.Is(err, orderdomain.ErrOrderNotFound) ||
		errors.Is(err, orderdomain.ErrDuplicateFulfillment)
}
