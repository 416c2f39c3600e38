package server

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront-chat/config"
	"storefront-chat/internal/handler"
	"storefront-chat/internal/middleware"
	"storefront-chat/internal/redis"
	"storefront-chat/internal/repository"
	"storefront-chat/internal/services"
	"storefront-chat/internal/websocket"
	"storefront-chat/pkg/database"
	"storefront-chat/pkg/logger"
)

// Store backends for the relay.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Relay is the assembled reference chat backend.
type Relay struct {
	Server   *Server
	Store    repository.Store
	Hub      *websocket.Hub
	Auth     *services.AuthService
	Messages *services.MessageService
	Registry *prometheus.Registry

	bridge *websocket.RedisBridge
	redis  *goredis.Client
	logger *logger.Logger
}

// NewRelay builds every relay component from cfg. Close releases what it
// opened.
func NewRelay(ctx context.Context, cfg *config.Config, l *logger.Logger) (*Relay, error) {
	if l == nil {
		l = logger.NewNop()
	}
	r := &Relay{logger: l.Named("relay")}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.Store = store

	r.Registry = prometheus.NewRegistry()
	metrics := services.NewMetrics(r.Registry)
	r.Hub = websocket.NewHub(metrics.ConnectedSockets)

	var pusher services.Pusher = r.Hub
	if cfg.RelayRedisFanout {
		client, err := redis.Connect(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		r.redis = client
		pusher = websocket.NewRedisPusher(redis.NewPublisher(client))
		r.bridge = websocket.NewRedisBridge(redis.NewSubscriber(client), r.Hub, l)
	}

	r.Auth = services.NewAuthService(cfg.JWTSecret)
	r.Messages = services.NewMessageService(store, store, pusher, metrics, l)

	socket := websocket.NewHandler(r.Auth, r.Hub, websocket.NewRoomAuthorizer(store), r.Messages, metrics,
		websocket.Limits{SendRate: cfg.SendRate, SendBurst: cfg.SendBurst}, l)

	var limiter *middleware.LimiterPool
	if cfg.SendRate > 0 {
		limiter = middleware.NewLimiterPool(cfg.SendRate, cfg.SendBurst)
	}

	r.Server = New(cfg, l)
	r.Server.SetupRoutes(&Handlers{
		Chat:   handler.NewChatHandler(r.Messages, l),
		Socket: socket,
	}, RouteOptions{
		Auth:        r.Auth,
		Health:      store,
		Registry:    r.Registry,
		SendLimiter: limiter,
	})

	r.logger.Info("relay assembled",
		zap.String("store", cfg.RelayStore),
		zap.Bool("redis_fanout", cfg.RelayRedisFanout),
		zap.Bool("auth", r.Auth.Enabled()))
	return r, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.RelayStore {
	case "", StoreMemory:
		return repository.NewMemoryStore(database.DemoUsers()), nil
	case StorePostgres:
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown relay store %q", cfg.RelayStore)
	}
}

// Run serves on the configured port until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	r.startBackground(ctx)
	return r.Server.Run(ctx)
}

// Serve is Run on an existing listener.
func (r *Relay) Serve(ctx context.Context, ln net.Listener) error {
	r.startBackground(ctx)
	return r.Server.Serve(ctx, ln)
}

func (r *Relay) startBackground(ctx context.Context) {
	go r.Hub.Run(ctx)
	if r.bridge == nil {
		return
	}
	go func() {
		if err := r.bridge.Run(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("redis bridge stopped", zap.Error(err))
		}
	}()
}

func (r *Relay) Close() {
	if r.redis != nil {
		r.redis.Close()
	}
	r.Store.Close()
}
