package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/application"
	handlers "github.com/oksasatya/go-user-auth-service/internal/interface/http"
	"github.com/oksasatya/go-user-auth-service/internal/interface/middleware"
)

// UserModule wires the authenticated user routes under /api/users.
type UserModule struct {
	Handler  *handlers.UserHandler
	Authn    application.Authenticator
	Activity middleware.ActivityRecorder
	RDB      redis.Cmdable
	Logger   logrus.FieldLogger
}

func NewUserModule(h *handlers.UserHandler, authn application.Authenticator, activity middleware.ActivityRecorder, rdb redis.Cmdable, logger logrus.FieldLogger) *UserModule {
	return &UserModule{Handler: h, Authn: authn, Activity: activity, RDB: rdb, Logger: logger}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	users.Use(middleware.Auth(m.Authn, m.Activity, m.Logger))
	users.Use(middleware.RateLimit(m.RDB, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		// static segments before :id
		users.GET("/me", m.Handler.Me)
		users.GET("/search", m.Handler.Search)

		users.GET("", m.Handler.List)
		users.POST("", m.Handler.Create)
		users.GET("/:id", m.Handler.GetByID)
		users.PATCH("/:id", m.Handler.Update)
		users.DELETE("/:id", m.Handler.Delete)
	}
}
