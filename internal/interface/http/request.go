package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/pkg/response"
	"github.com/oksasatya/go-user-auth-service/pkg/validation"
)

// abortInvalid answers a request whose body or query failed to bind.
func abortInvalid(c *gin.Context, err error) {
	response.Abort(c, http.StatusUnprocessableEntity, "invalid payload", response.ErrorBody{
		Code:    "validation",
		Details: validation.ToDetails(err),
	})
}

func paramID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domainerr.Value("user id must be a positive integer")
	}
	return id, nil
}
