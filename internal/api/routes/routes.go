package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/forots/vigia/internal/alerts"
	"github.com/forots/vigia/internal/api/handlers"
	"github.com/forots/vigia/internal/api/middleware"
	"github.com/forots/vigia/internal/captcha"
	"github.com/forots/vigia/internal/config"
	"github.com/forots/vigia/internal/database"
	"github.com/forots/vigia/internal/events"
	"github.com/forots/vigia/internal/guard"
	"github.com/forots/vigia/internal/metrics"
	"github.com/forots/vigia/internal/services"
)

// Engine bundles the long-lived guard components so main can hand them to
// the background scheduler and close them on shutdown.
type Engine struct {
	Limiter *guard.RateLimiter
	Guard   *guard.Guard
	Events  *events.Log
}

// Register wires up API routes, migrations and the abuse-guard engine.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config) (*Engine, error) {
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Engine assembly: limiter, block store, audit log, alerting, guard.
	limiter := guard.NewRateLimiter(cfg.Rate)
	store := guard.NewBlockStore(db)
	eventLog := events.NewLog(db)

	var senders []alerts.Sender
	if s := alerts.NewShoutrrrSender(cfg.Alerts.ShoutrrrURLs); s != nil {
		senders = append(senders, s)
	}
	if m := alerts.NewMailSender(cfg.Alerts); m != nil {
		senders = append(senders, m)
	}
	dispatcher := alerts.NewDispatcher(cfg.AlertsActive(), senders...)

	g := guard.New(cfg.Guard, cfg.Captcha, store, eventLog, dispatcher)
	verifier := captcha.NewVerifier(cfg.Captcha)

	authService := services.NewAuthService(db, cfg)
	authHandler := handlers.NewAuthHandler(authService, g)
	authRequired := middleware.Auth(authService)

	api := router.Group("/api/v1")

	api.GET("/health", handlers.HealthHandler)

	// Authentication endpoints: route-class limiter first, then the block
	// check, then the score gate; handlers report genuine outcomes to the
	// guard. A limiter or block rejection aborts before the handler, so it
	// can never count as an authentication failure.
	api.POST("/auth/register",
		middleware.RateLimit(limiter, guard.RateAuth),
		middleware.BlockCheck(store),
		captcha.Gate(verifier, g, "register"),
		authHandler.Register)
	api.POST("/auth/login",
		middleware.RateLimit(limiter, guard.RateAuth),
		middleware.BlockCheck(store),
		captcha.Gate(verifier, g, "login"),
		authHandler.Login)

	// Password recovery is tighter than general auth.
	api.POST("/auth/forgot-password",
		middleware.RateLimit(limiter, guard.RatePassword),
		middleware.BlockCheck(store),
		captcha.Gate(verifier, g, "forgot_password"),
		authHandler.ForgotPassword)
	api.POST("/auth/reset-password",
		middleware.RateLimit(limiter, guard.RatePassword),
		middleware.BlockCheck(store),
		captcha.Gate(verifier, g, "reset_password"),
		authHandler.ResetPassword)

	api.GET("/users/me",
		middleware.RateLimit(limiter, guard.RateMe),
		middleware.BlockCheck(store),
		authRequired,
		authHandler.Me)

	// Public read surface. The limiter applies to GET only at this mount;
	// writes under the same paths go through their own per-action limiters.
	public := api.Group("/")
	public.Use(
		middleware.GETOnly(middleware.RateLimit(limiter, guard.RatePublic)),
		middleware.BlockCheck(store))
	{
		// Forum content handlers plug in here; the engine only owns the gate.
		public.GET("/posts", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "posts": []interface{}{}})
		})
		public.GET("/communities", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "communities": []interface{}{}})
		})
	}

	// Per-action write limiters for the remaining route classes.
	api.POST("/reports",
		middleware.RateLimit(limiter, guard.RateReport),
		middleware.BlockCheck(store),
		func(c *gin.Context) {
			c.JSON(http.StatusAccepted, gin.H{"success": true, "status": "accepted"})
		})
	api.POST("/resources",
		middleware.RateLimit(limiter, guard.RateResourceSubmission),
		middleware.BlockCheck(store),
		func(c *gin.Context) {
			c.JSON(http.StatusAccepted, gin.H{"success": true, "status": "accepted"})
		})
	api.POST("/users/:id/follow",
		middleware.RateLimit(limiter, guard.RateFollow),
		middleware.BlockCheck(store),
		authRequired,
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true})
		})
	api.DELETE("/users/:id/follow",
		middleware.RateLimit(limiter, guard.RateFollow),
		middleware.BlockCheck(store),
		authRequired,
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true})
		})

	// Diagnostics stay off in production unless explicitly enabled.
	if cfg.Diagnostics {
		statusHandler := handlers.NewSecurityStatusHandler(limiter, g)
		api.GET("/security/status", statusHandler.Status)
	}

	return &Engine{Limiter: limiter, Guard: g, Events: eventLog}, nil
}
