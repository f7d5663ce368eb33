package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-user-auth-service/internal/interface/http"
	"github.com/oksasatya/go-user-auth-service/internal/interface/middleware"
)

// AuthModule wires the token endpoints.
// Public: POST /api/login, POST /api/token, GET|POST /api/refresh, POST /api/signup
// Session: GET|POST /api/logout
type AuthModule struct {
	Handler *handlers.AuthHandler
	Users   *handlers.UserHandler
	RDB     redis.Cmdable
}

func NewAuthModule(h *handlers.AuthHandler, users *handlers.UserHandler, rdb redis.Cmdable) *AuthModule {
	return &AuthModule{Handler: h, Users: users, RDB: rdb}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	loginLimiter := middleware.RateLimit(m.RDB, 10, time.Minute, middleware.KeyByIPAndPath(), nil)   // 10 req/min per IP
	refreshLimiter := middleware.RateLimit(m.RDB, 60, time.Minute, middleware.KeyByIPAndPath(), nil) // 60 req/min per IP
	signupLimiter := middleware.RateLimit(m.RDB, 5, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/token", loginLimiter, m.Handler.Login)
	rg.GET("/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/signup", signupLimiter, m.Users.Signup)

	rg.GET("/logout", m.Handler.Logout)
	rg.POST("/logout", m.Handler.Logout)
}
