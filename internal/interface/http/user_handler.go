package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/application"
	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/internal/interface/middleware"
	"github.com/oksasatya/go-user-auth-service/pkg/response"
)

type UserHandler struct {
	Svc      *application.UserService
	Searcher application.UserSearcher // nil when search is disabled
	Logger   logrus.FieldLogger
}

func NewUserHandler(svc *application.UserService, search application.UserSearcher, logger logrus.FieldLogger) *UserHandler {
	return &UserHandler{Svc: svc, Searcher: search, Logger: logger}
}

type signupRequest struct {
	Username string `json:"username" binding:"required,username"`
	Password string `json:"password" binding:"required,pwd"`
}

type createUserRequest struct {
	Username string `json:"username" binding:"required,username"`
	Password string `json:"password" binding:"required,pwd"`
	Role     string `json:"role" binding:"omitempty,role"`
}

// patchUserRequest carries both the self-service and the admin fields.
// Which ones apply depends on the caller.
type patchUserRequest struct {
	Username    *string `json:"username" binding:"omitempty,username"`
	OldPassword *string `json:"old_password"`
	NewPassword *string `json:"new_password" binding:"omitempty,pwd"`
	Role        *string `json:"role" binding:"omitempty,role"`
	Status      *string `json:"status" binding:"omitempty,status"`
}

type listUsersQuery struct {
	Limit      int     `form:"limit" binding:"gte=0"`
	Offset     int     `form:"offset" binding:"gte=0"`
	FilterMode string  `form:"filter_mode" binding:"omitempty,filtermode"`
	ID         *int64  `form:"id"`
	Username   *string `form:"username"`
	Role       *string `form:"role" binding:"omitempty,role"`
	Status     *string `form:"status" binding:"omitempty,status"`
}

func (q listUsersQuery) toListQuery() repository.ListQuery {
	lq := repository.ListQuery{
		Limit:  q.Limit,
		Offset: q.Offset,
		Mode:   repository.FilterMode(q.FilterMode),
		Filters: repository.UserFilters{
			ID:       q.ID,
			Username: q.Username,
		},
	}
	if q.Role != nil {
		r := entity.Role(*q.Role)
		lq.Filters.Role = &r
	}
	if q.Status != nil {
		s := entity.Status(*q.Status)
		lq.Filters.Status = &s
	}
	return lq
}

func caller(c *gin.Context) *entity.User {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(domainerr.ErrCredentials)
		return nil
	}
	return u
}

// Signup POST /api/signup
func (h *UserHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalid(c, err)
		return
	}
	u, err := h.Svc.Signup(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusCreated, application.ToUserDTO(u), "user created", nil)
}

// Me GET /api/users/me
func (h *UserHandler) Me(c *gin.Context) {
	u := caller(c)
	if u == nil {
		return
	}
	response.JSON(c, http.StatusOK, application.ToUserDTO(u), "ok", nil)
}

// GetByID GET /api/users/:id
func (h *UserHandler) GetByID(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	u, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, application.ToUserDTO(u), "ok", nil)
}

// List GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	var q listUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortInvalid(c, err)
		return
	}
	lq := q.toListQuery()
	users, err := h.Svc.List(c.Request.Context(), lq)
	if err != nil {
		_ = c.Error(err)
		return
	}
	limit := lq.Limit
	if limit <= 0 {
		limit = application.DefaultListLimit
	} else if limit > application.MaxListLimit {
		limit = application.MaxListLimit
	}
	response.JSON(c, http.StatusOK, application.ToUserDTOs(users), "ok", response.PageMeta{
		Limit:  limit,
		Offset: lq.Offset,
		Count:  len(users),
	})
}

// Create POST /api/users (admin)
func (h *UserHandler) Create(c *gin.Context) {
	u := caller(c)
	if u == nil {
		return
	}
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalid(c, err)
		return
	}
	created, err := h.Svc.AdminCreate(c.Request.Context(), u, application.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusCreated, application.ToUserDTO(created), "user created", nil)
}

// Update PATCH /api/users/:id
// Non-admins may only edit themselves, and must prove the old password to
// change it. Admins may edit anyone.
func (h *UserHandler) Update(c *gin.Context) {
	u := caller(c)
	if u == nil {
		return
	}
	id, err := paramID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req patchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalid(c, err)
		return
	}

	var updated *entity.User
	switch {
	case u.IsAdmin():
		updated, err = h.Svc.AdminUpdate(c.Request.Context(), u, id, application.AdminUpdateUserInput{
			Username:    req.Username,
			NewPassword: req.NewPassword,
			Role:        req.Role,
			Status:      req.Status,
		})
	case u.ID == id:
		if req.Role != nil || req.Status != nil {
			err = domainerr.NotAllowed("only admins can change role or status")
			break
		}
		updated, err = h.Svc.Update(c.Request.Context(), u, application.UpdateUserInput{
			Username:    req.Username,
			OldPassword: req.OldPassword,
			NewPassword: req.NewPassword,
		})
	default:
		err = domainerr.NotAllowed("for admins only")
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, application.ToUserDTO(updated), "user updated", nil)
}

// Delete DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	u := caller(c)
	if u == nil {
		return
	}
	id, err := paramID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	switch {
	case u.IsAdmin():
		err = h.Svc.AdminDelete(c.Request.Context(), u, id)
	case u.ID == id:
		err = h.Svc.Delete(c.Request.Context(), u)
	default:
		err = domainerr.NotAllowed("for admins only")
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Search GET /api/users/search?q=&size=
func (h *UserHandler) Search(c *gin.Context) {
	var q struct {
		Q    string `form:"q"`
		Size int    `form:"size" binding:"gte=0,lte=50"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		abortInvalid(c, err)
		return
	}
	if h.Searcher == nil || strings.TrimSpace(q.Q) == "" {
		response.JSON(c, http.StatusOK, []application.UserDTO{}, "ok", nil)
		return
	}
	users, err := h.Searcher.SearchUsers(c.Request.Context(), q.Q, q.Size)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, users, "ok", nil)
}
