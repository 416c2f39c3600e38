package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront-chat/config"
	"storefront-chat/internal/handler"
	"storefront-chat/internal/middleware"
	"storefront-chat/internal/services"
	"storefront-chat/internal/transport/httpdto"
	"storefront-chat/internal/websocket"
	"storefront-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

const shutdownTimeout = 5 * time.Second

type Handlers struct {
	Chat   *handler.ChatHandler
	Socket *websocket.Handler
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouteOptions carry what the routes need besides the handlers.
type RouteOptions struct {
	Auth           *services.AuthService
	Health         HealthChecker
	Registry       *prometheus.Registry
	SendLimiter    *middleware.LimiterPool
	AllowedOrigins []string
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.RelayMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.RelayMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.RelayPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, opts RouteOptions) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(opts.AllowedOrigins...))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	if opts.Registry != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	s.engine.GET("/socket", handlers.Socket.Connect)

	chats := s.engine.Group("/api/chats", middleware.AuthMiddleware(opts.Auth))
	{
		chats.GET("/contacts/:role", handlers.Chat.Contacts)
		chats.GET("/messages/:senderId/:receiverId", handlers.Chat.Messages)
		chats.POST("/send", middleware.SendRateLimitMiddleware(opts.SendLimiter), handlers.Chat.Send)
	}
}

// Handler exposes the routed engine, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logf("Starting the server on %s...", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logf("Error in starting the server: %s", err)
		}
		return err
	case <-ctx.Done():
	}

	s.logf("Quitting signal received.. Shutting down after %s", shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logf("Server stopped gracefully")
	return nil
}

func (s *Server) logf(template string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Infof(template, args...)
	}
}
