package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/application"
	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

const (
	CtxUserIDKey = "userID"
	ctxUserKey   = "currentUser"
)

// ActivityRecorder is told about every authenticated request.
type ActivityRecorder interface {
	RegisterActivity(ctx context.Context, userID int64) error
}

// BearerOrCookie returns the Authorization bearer token, else the named cookie.
func BearerOrCookie(c *gin.Context, cookie string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if v, err := c.Cookie(cookie); err == nil {
		return v
	}
	return ""
}

// Auth resolves the access token to a live user and stores it in the Gin
// context. Failures go through ErrorHandler.
func Auth(authn application.Authenticator, activity ActivityRecorder, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerOrCookie(c, helpers.AccessCookie)
		if token == "" {
			_ = c.Error(domainerr.ErrCredentials)
			c.Abort()
			return
		}
		u, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(ctxUserKey, u)
		c.Set(CtxUserIDKey, strconv.FormatInt(u.ID, 10))

		if activity != nil {
			if err := activity.RegisterActivity(c.Request.Context(), u.ID); err != nil && logger != nil {
				logger.WithError(err).WithField("user_id", u.ID).Debug("register activity failed")
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user set by Auth.
func CurrentUser(c *gin.Context) (*entity.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*entity.User)
	return u, ok && u != nil
}
