// Package container owns the process-wide resources. main builds one
// Container at startup, hands it to the router and closes it on shutdown.
package container

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/config"
	"github.com/oksasatya/go-user-auth-service/internal/application"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/cache"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/messaging"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/postgres"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/redisstore"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/search"
	"github.com/oksasatya/go-user-auth-service/internal/metrics"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	Pool   *pgxpool.Pool
	Redis  *redis.Client
	JWT    *helpers.JWTManager
	Hasher *helpers.AsyncHasher

	Sessions *redisstore.SessionStore
	UoW      *postgres.UnitOfWorkFactory

	Auth        *application.StatefulOAuth
	UserService *application.UserService
	ActiveUsers *application.ActiveUsersService

	// optional, nil when disabled
	RabbitPub *helpers.RabbitPublisher
	ES        *elasticsearch.Client
	Searcher  application.UserSearcher
}

type noopPublisher struct{}

func (noopPublisher) PublishUserEvent(context.Context, application.UserEvent) error { return nil }

// New connects to Postgres and Redis and builds the services. Optional
// integrations are only dialled when enabled in cfg.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:         cfg.PostgresDSN(),
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		MaxConnLife: cfg.DBMaxConnLife,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	c.Pool = pool

	c.Redis = helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := helpers.PingRedis(ctx, c.Redis); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	c.JWT, err = helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAlgorithm, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	c.Hasher = helpers.NewAsyncHasher(helpers.NewBcryptHasher(cfg.BcryptCost), cfg.HasherWorkers)

	var events application.EventPublisher = noopPublisher{}
	if cfg.UserEventsEnabled {
		c.RabbitPub, err = helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQUserEventsQueue)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		events = messaging.NewUserEventPublisher(c.RabbitPub)
	}

	if cfg.SearchEnabled {
		c.ES, err = helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch: %w", err)
		}
		if err := helpers.ESCheck(ctx, c.ES); err != nil {
			logger.WithError(err).Warn("elasticsearch unreachable, search results may be empty")
		}
		c.Searcher = search.NewUserIndex(c.ES, cfg.ESUsersIndex, logger)
	}

	c.Sessions = redisstore.NewSessionStore(c.Redis)
	c.UoW = postgres.NewUnitOfWorkFactory(pool, func(db postgres.DBTX, hooks repository.HookRegistrar) repository.UserRepository {
		return cache.NewUserRepository(postgres.NewUserStore(db), c.Redis, hooks, cfg.UserCacheTTL, logger)
	}, logger)

	begin := func(ctx context.Context) (application.UnitOfWork, error) {
		uow, err := c.UoW.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return uow, nil
	}
	// Reads outside a transaction still go through the cache.
	lookups := cache.NewUserRepository(postgres.NewUserStore(pool), c.Redis, nil, cfg.UserCacheTTL, logger)

	c.Auth = application.NewStatefulOAuth(lookups, c.Sessions, c.JWT, c.Hasher, logger)
	c.UserService = application.NewUserService(begin, c.Hasher, events, logger)
	c.ActiveUsers = application.NewActiveUsersService(redisstore.NewActiveUsersStore(c.Redis))

	ok = true
	return c, nil
}

// RegisterMetrics adds the collectors that read live state.
func (c *Container) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(metrics.NewActiveUsersCollector(c.ActiveUsers, c.Logger))
}

// Close releases everything New opened, in reverse order.
func (c *Container) Close() {
	if c.RabbitPub != nil {
		c.RabbitPub.Close()
	}
	if c.Hasher != nil {
		c.Hasher.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
