package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
)

const (
	// HeaderUserID is set by the auth gateway in front of the API.
	HeaderUserID     = "X-Authenticated-User-Id"
	contextUserIDKey = "user_id"
)

func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.userSvc.GetByID(c.Request.Context(), snowflake.ID(id))
		if err != nil {
			if errors.Is(err, userdomain.ErrUserNotFound) {
				err = ErrUnauthorized
			}
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, user.ID)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), "user", user.ID.String()))
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) snowflake.ID {
	if v, ok := c.Get(contextUserIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}

func userRateKey(c *gin.Context) string {
	id := userIDFromContext(c)
	if id == 0 {
		return ""
	}
	return id.String()
}
