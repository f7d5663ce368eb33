package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/cache"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/memory"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/redisstore"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []UserEvent
}

func (p *recordingPublisher) PublishUserEvent(_ context.Context, ev UserEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []UserEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]UserEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	store    *memory.UserStore
	hasher   *helpers.AsyncHasher
	jwt      *helpers.JWTManager
	sessions *redisstore.SessionStore
	events   *recordingPublisher
	users    *UserService
	auth     *StatefulOAuth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hasher := helpers.NewAsyncHasher(helpers.NewBcryptHasher(bcrypt.MinCost), 2)
	t.Cleanup(hasher.Close)

	jwt, err := helpers.NewJWTManager("access-secret", "refresh-secret", "HS256", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	logger := helpers.NewNopLogger()
	store := memory.NewUserStore()
	factory := &memory.UnitOfWorkFactory{
		Store: store,
		Build: func(s repository.UserRepository, h repository.HookRegistrar) repository.UserRepository {
			return cache.NewUserRepository(s, rdb, h, time.Minute, logger)
		},
		Logger: logger,
	}
	begin := func(ctx context.Context) (UnitOfWork, error) {
		uow, err := factory.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return uow, nil
	}

	events := &recordingPublisher{}
	sessions := redisstore.NewSessionStore(rdb)
	return &testEnv{
		mr:       mr,
		rdb:      rdb,
		store:    store,
		hasher:   hasher,
		jwt:      jwt,
		sessions: sessions,
		events:   events,
		users:    NewUserService(begin, hasher, events, logger),
		auth:     NewStatefulOAuth(cache.NewUserRepository(store, rdb, nil, time.Minute, logger), sessions, jwt, hasher, logger),
	}
}

func (e *testEnv) signup(t *testing.T, name, password string) *entity.User {
	t.Helper()
	u, err := e.users.Signup(context.Background(), name, password)
	require.NoError(t, err)
	return u
}

func (e *testEnv) admin(t *testing.T) *entity.User {
	t.Helper()
	created, err := e.users.EnsureAdminExists(context.Background(), "admin", "adminpass1")
	require.NoError(t, err)
	require.True(t, created)
	u, err := e.store.GetByUsername(context.Background(), "admin")
	require.NoError(t, err)
	return u
}

func strptr(s string) *string { return &s }
