package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/forots/vigia/internal/api/middleware"
	"github.com/forots/vigia/internal/api/routes"
	"github.com/forots/vigia/internal/config"
)

// Server wraps the HTTP engine and shared dependencies for easier testing.
type Server struct {
	Engine *gin.Engine
	Guard  *routes.Engine
	cfg    config.Config
}

// New wires up the HTTP router, middleware chain and versioned routes.
func New(db *gorm.DB, cfg config.Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	if !cfg.IsProduction() {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	if !cfg.TrustProxy {
		// Without a fronting proxy, forwarded headers are attacker-controlled.
		if err := router.SetTrustedProxies(nil); err != nil {
			return nil, fmt.Errorf("configure trusted proxies: %w", err)
		}
	}

	router.Use(
		middleware.ClientIP(),
		middleware.RequestID(),
		middleware.Recovery(!cfg.IsProduction()),
		middleware.RequestLogger(),
		middleware.SecurityResponseLogger(),
	)

	engine, err := routes.Register(router, db, cfg)
	if err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	return &Server{Engine: router, Guard: engine, cfg: cfg}, nil
}

// Run starts the HTTP server with proper shutdown semantics.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.HTTPPort),
		Handler: s.Engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
