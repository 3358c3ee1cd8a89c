package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	intakedomain "github.com/smallbiznis/bootcamp/internal/intake/domain"
)

const maxIntakeBody = 1 << 20

// IntakeWebhook stores the body before parsing, so a valid token always gets
// an empty 200 and only a bad token gets an empty 403.
func (s *Server) IntakeWebhook(c *gin.Context) {
	source := catalogdomain.Source(strings.TrimSpace(c.Param("source")))
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIntakeBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	_, err = s.intakeSvc.Ingest(c.Request.Context(), source, c.GetHeader("Authorization"), body)
	if err != nil {
		if errors.Is(err, intakedomain.ErrAuthFailure) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusOK)
}
