package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-user-auth-service/internal/application"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/cache"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/memory"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/redisstore"
	handlers "github.com/oksasatya/go-user-auth-service/internal/interface/http"
	"github.com/oksasatya/go-user-auth-service/internal/interface/middleware"
	"github.com/oksasatya/go-user-auth-service/internal/router"
	"github.com/oksasatya/go-user-auth-service/internal/router/modules"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
	"github.com/oksasatya/go-user-auth-service/pkg/validation"
)

type nopEvents struct{}

func (nopEvents) PublishUserEvent(context.Context, application.UserEvent) error { return nil }

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type testServer struct {
	engine *gin.Engine
	users  *application.UserService
	store  *memory.UserStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := helpers.NewNopLogger()
	hasher := helpers.NewAsyncHasher(helpers.NewBcryptHasher(bcrypt.MinCost), 2)
	t.Cleanup(hasher.Close)
	jwt, err := helpers.NewJWTManager("access-secret", "refresh-secret", "HS256", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	store := memory.NewUserStore()
	factory := &memory.UnitOfWorkFactory{
		Store: store,
		Build: func(s repository.UserRepository, h repository.HookRegistrar) repository.UserRepository {
			return cache.NewUserRepository(s, rdb, h, time.Minute, logger)
		},
		Logger: logger,
	}
	begin := func(ctx context.Context) (application.UnitOfWork, error) {
		uow, err := factory.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return uow, nil
	}

	users := application.NewUserService(begin, hasher, nopEvents{}, logger)
	auth := application.NewStatefulOAuth(cache.NewUserRepository(store, rdb, nil, time.Minute, logger), redisstore.NewSessionStore(rdb), jwt, hasher, logger)
	active := application.NewActiveUsersService(redisstore.NewActiveUsersStore(rdb))

	userHandler := handlers.NewUserHandler(users, nil, logger)
	authHandler := handlers.NewAuthHandler(auth, logger, "", false)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware(), middleware.RealIP(), middleware.ErrorHandler(logger))
	reg := router.NewRegistry(r)
	reg.Add(modules.NewAuthModule(authHandler, userHandler, rdb))
	reg.Add(modules.NewUserModule(userHandler, auth, active, rdb, logger))
	reg.RegisterAll()

	return &testServer{engine: r, users: users, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(raw)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *testServer) login(t *testing.T, username, password string) (*httptest.ResponseRecorder, application.TokenPair) {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, env := s.serve(t, req)
	var pair application.TokenPair
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(env.Data, &pair))
	}
	return w, pair
}

func (s *testServer) token(t *testing.T, username, password string) string {
	t.Helper()
	w, pair := s.login(t, username, password)
	require.Equal(t, http.StatusOK, w.Code)
	return pair.AccessToken
}

func (s *testServer) signup(t *testing.T, username, password string) application.UserDTO {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/signup", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dto application.UserDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	return dto
}

func (s *testServer) seedAdmin(t *testing.T) string {
	t.Helper()
	created, err := s.users.EnsureAdminExists(context.Background(), "admin", "adminpass1")
	require.NoError(t, err)
	require.True(t, created)
	return s.token(t, "admin", "adminpass1")
}

func userPath(id int64) string { return "/api/users/" + strconv.FormatInt(id, 10) }

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "password123")
	assert.Equal(t, "user", alice.Role)
	assert.Equal(t, "active", alice.Status)

	w, pair := s.login(t, "alice", "password123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, w.Result().Cookies())

	w, env := s.login(t, "alice", "wrongpassword")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, env)

	w, _ = s.login(t, "nobody", "password123")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginAcceptsJSON(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice", "password123")

	w, env := s.do(t, http.MethodPost, "/api/token", "", map[string]string{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var pair application.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	assert.NotEmpty(t, pair.AccessToken)

	w, env = s.do(t, http.MethodPost, "/api/token", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "is required", env.Error.Details["password"])
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/signup", "", map[string]string{"username": "a!", "password": "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Error.Details, "username")
	assert.Contains(t, env.Error.Details, "password")

	s.signup(t, "alice", "password123")
	w, _ = s.do(t, http.MethodPost, "/api/signup", "", map[string]string{"username": "alice", "password": "password123"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOverlongPasswordIsRejected(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/signup", "", map[string]string{"username": "alice", "password": strings.Repeat("p", 80)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "must be 8-72 characters", env.Error.Details["password"])

	// 37 characters but 74 bytes gets past binding and stops at the entity
	w, env = s.do(t, http.MethodPost, "/api/signup", "", map[string]string{"username": "alice", "password": strings.Repeat("ü", 37)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "user_value", env.Error.Code)
	assert.Contains(t, env.Message, "at most 72 bytes")

	s.signup(t, "alice", strings.Repeat("p", 72))
}

func TestMeLogoutAndRefresh(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice", "password123")
	_, pair := s.login(t, "alice", "password123")

	w, env := s.do(t, http.MethodGet, "/api/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me application.UserDTO
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "alice", me.Username)

	w, _ = s.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// rotate, then reuse the old refresh token
	w, env = s.do(t, http.MethodPost, "/api/refresh", pair.RefreshToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var next application.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &next))
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	w, _ = s.do(t, http.MethodGet, "/api/refresh", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/logout", next.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"msg":"Logged out successfully!"}`, string(env.Data))

	w, _ = s.do(t, http.MethodPost, "/api/logout", next.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/users/me", next.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "logged_out", env.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/refresh", next.RefreshToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNonAdminCannotCreateUsers(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.seedAdmin(t)

	w, env := s.do(t, http.MethodPost, "/api/users", adminToken, map[string]string{"username": "bob", "password": "password123", "role": "user"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bob application.UserDTO
	require.NoError(t, json.Unmarshal(env.Data, &bob))
	assert.Equal(t, "user", bob.Role)

	bobToken := s.token(t, "bob", "password123")
	w, _ = s.do(t, http.MethodPost, "/api/users", bobToken, map[string]string{"username": "mallory", "password": "password123", "role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSelfPasswordChangeNeedsBothFields(t *testing.T) {
	s := newTestServer(t)
	carol := s.signup(t, "carol", "password123")
	token := s.token(t, "carol", "password123")

	w, env := s.do(t, http.MethodPatch, userPath(carol.ID), token, map[string]string{"new_password": "newpassword1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "both password fields must be provided", env.Message)

	w, _ = s.do(t, http.MethodPatch, userPath(carol.ID), token, map[string]string{"old_password": "password123", "new_password": "newpassword1"})
	require.Equal(t, http.StatusOK, w.Code)

	lw, _ := s.login(t, "carol", "newpassword1")
	assert.Equal(t, http.StatusOK, lw.Code)
}

func TestAdminCannotDeactivateSelf(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.seedAdmin(t)

	w, env := s.do(t, http.MethodPatch, "/api/users/1", adminToken, map[string]string{"status": "deactivated"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "action_not_allowed", env.Error.Code)

	w, _ = s.do(t, http.MethodPatch, "/api/users/1", adminToken, map[string]string{"role": "user"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/users/1", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserCannotTouchOthers(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "password123")
	s.signup(t, "bob", "password123")
	bobToken := s.token(t, "bob", "password123")

	w, _ := s.do(t, http.MethodPatch, userPath(alice.ID), bobToken, map[string]string{"username": "hacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, userPath(alice.ID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, userPath(alice.ID), bobToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminUpdateAndDeleteOthers(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.seedAdmin(t)
	dave := s.signup(t, "dave", "password123")
	daveToken := s.token(t, "dave", "password123")

	w, env := s.do(t, http.MethodPatch, userPath(dave.ID), adminToken, map[string]string{"status": "deactivated"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated application.UserDTO
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "deactivated", updated.Status)

	// a deactivated account loses its live session
	w, _ = s.do(t, http.MethodGet, "/api/users/me", daveToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, userPath(dave.ID), adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.do(t, http.MethodGet, userPath(dave.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSelfDelete(t *testing.T) {
	s := newTestServer(t)
	erin := s.signup(t, "erin", "password123")
	token := s.token(t, "erin", "password123")

	w, _ := s.do(t, http.MethodDelete, userPath(erin.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListUsers(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.seedAdmin(t)
	for _, name := range []string{"alice", "bob", "carol"} {
		s.signup(t, name, "password123")
	}

	w, env := s.do(t, http.MethodGet, "/api/users?role=user&limit=2", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page []application.UserDTO
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page, 2)
	for _, u := range page {
		assert.Equal(t, "user", u.Role)
	}

	w, env = s.do(t, http.MethodGet, "/api/users?filter_mode=or&username=alice&role=admin", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = nil
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page, 2)

	w, env = s.do(t, http.MethodGet, "/api/users?filter_mode=xor", adminToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Error.Details, "filter_mode")

	w, _ = s.do(t, http.MethodGet, "/api/users?limit=abc", adminToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSearchDisabledReturnsEmpty(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice", "password123")
	token := s.token(t, "alice", "password123")

	w, env := s.do(t, http.MethodGet, "/api/users/search?q=ali", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var found []application.UserDTO
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &found))
	}
	assert.Empty(t, found)
}

func TestBadUserID(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice", "password123")
	token := s.token(t, "alice", "password123")

	w, _ := s.do(t, http.MethodGet, "/api/users/zero", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Error.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}
