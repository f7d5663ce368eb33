package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-user-auth-service/internal/container"
	handlers "github.com/oksasatya/go-user-auth-service/internal/interface/http"
	"github.com/oksasatya/go-user-auth-service/internal/router/modules"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
	"github.com/oksasatya/go-user-auth-service/pkg/response"
)

// InitModules builds handlers from the container and registers every
// feature module. Call it once during startup.
func InitModules(r *Registry, c *container.Container) {
	userHandler := handlers.NewUserHandler(c.UserService, c.Searcher, c.Logger)
	authHandler := handlers.NewAuthHandler(c.Auth, c.Logger, c.Config.CookieDomain, c.Config.CookieSecure)

	r.Add(
		modules.NewAuthModule(authHandler, userHandler, c.Redis),
		modules.NewUserModule(userHandler, c.Auth, c.ActiveUsers, c.Redis, c.Logger),
		ModuleFunc(func(rg *gin.RouterGroup) { rg.GET("/healthz", health(c)) }),
	)
	if c.Config.MetricsEnabled {
		r.Add(modules.NewMetricsModule(nil, c.Redis))
	}
}

type healthStatus struct {
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// health pings the stores the request path depends on.
func health(c *container.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		st := healthStatus{Postgres: "ok", Redis: "ok"}
		status := http.StatusOK
		if err := c.Pool.Ping(pingCtx); err != nil {
			st.Postgres, status = err.Error(), http.StatusServiceUnavailable
		}
		if err := helpers.PingRedis(pingCtx, c.Redis); err != nil {
			st.Redis, status = err.Error(), http.StatusServiceUnavailable
		}
		response.JSON(ctx, status, st, "health", nil)
	}
}
