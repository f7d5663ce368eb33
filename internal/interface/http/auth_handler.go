package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/application"
	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/interface/middleware"
	"github.com/oksasatya/go-user-auth-service/internal/metrics"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
	"github.com/oksasatya/go-user-auth-service/pkg/response"
)

type AuthHandler struct {
	Auth    application.AuthStrategy
	Logger  logrus.FieldLogger
	Cookies *helpers.Manager
}

func NewAuthHandler(auth application.AuthStrategy, logger logrus.FieldLogger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Auth: auth, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

// loginRequest binds from an OAuth2 password form or a JSON body.
type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type logoutResponse struct {
	Msg string `json:"msg"`
}

func authResult(err error) string {
	if err == nil {
		return "ok"
	}
	_, code := middleware.StatusFor(err)
	return code
}

func (h *AuthHandler) observe(event string, err error) {
	metrics.AuthEventsTotal.WithLabelValues(event, authResult(err)).Inc()
}

// Login POST /api/login and POST /api/token
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		abortInvalid(c, err)
		return
	}
	pair, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	h.observe("login", err)
	if err != nil {
		if errors.Is(err, domainerr.ErrCredentials) {
			h.Logger.WithField("username", req.Username).Info("login rejected")
		}
		_ = c.Error(err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessExpires, pair.RefreshToken, pair.RefreshExpires)
	response.JSON(c, http.StatusOK, pair, "login successful", nil)
}

// Logout GET|POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.BearerOrCookie(c, helpers.AccessCookie)
	if token == "" {
		h.observe("logout", domainerr.ErrCredentials)
		_ = c.Error(domainerr.ErrCredentials)
		return
	}
	err := h.Auth.Logout(c.Request.Context(), token)
	h.observe("logout", err)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.Cookies.Clear(c)
	response.JSON(c, http.StatusOK, logoutResponse{Msg: "Logged out successfully!"}, "logged out", nil)
}

// Refresh GET|POST /api/refresh with the refresh token as bearer.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := middleware.BearerOrCookie(c, helpers.RefreshCookie)
	if token == "" {
		h.observe("refresh", domainerr.ErrCredentials)
		_ = c.Error(domainerr.ErrCredentials)
		return
	}
	pair, err := h.Auth.Refresh(c.Request.Context(), token)
	h.observe("refresh", err)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessExpires, pair.RefreshToken, pair.RefreshExpires)
	response.JSON(c, http.StatusOK, pair, "token refreshed", nil)
}
