package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/pkg/response"
)

type errorKind struct {
	target error
	status int
	code   string
}

var errorKinds = []errorKind{
	{domainerr.ErrCredentials, http.StatusUnauthorized, "credentials"},
	{domainerr.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{domainerr.ErrLoggedOut, http.StatusForbidden, "logged_out"},
	{domainerr.ErrUserDoesNotExist, http.StatusNotFound, "user_does_not_exist"},
	{domainerr.ErrUserAlreadyExists, http.StatusConflict, "user_already_exists"},
	{domainerr.ErrUserIntegrity, http.StatusConflict, "user_integrity"},
	{domainerr.ErrStaleData, http.StatusConflict, "stale_data"},
	{domainerr.ErrUserValue, http.StatusUnprocessableEntity, "user_value"},
	{domainerr.ErrActionNotAllowedForRole, http.StatusForbidden, "action_not_allowed"},
}

// StatusFor maps an error to its HTTP status and a stable code.
func StatusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// ErrorHandler renders the last error attached with c.Error, unless a
// handler already wrote a response.
func ErrorHandler(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, code := StatusFor(err)
		message := domainerr.Reason(err)
		if status == http.StatusInternalServerError {
			if logger != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"request_id": c.GetString("request_id"),
					"path":       c.Request.URL.Path,
				}).Error("unhandled error")
			}
			message = "internal server error"
		}
		if status == http.StatusUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}
		response.Abort(c, status, message, response.ErrorBody{Code: code})
	}
}
