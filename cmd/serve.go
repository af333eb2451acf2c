package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"domiflash/internal/cache"
	"domiflash/internal/db"
	"domiflash/internal/events"
	"domiflash/internal/handlers"
	"domiflash/internal/middleware"
	"domiflash/internal/routes"
	"domiflash/internal/services"
	"domiflash/internal/services/delivery"
	"domiflash/internal/services/recovery"
	"domiflash/internal/session"
	"domiflash/internal/validation"
	"domiflash/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func newPublisher() events.Publisher {
	if !cfg.KafkaEnabled {
		return events.NoopPublisher{}
	}
	producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.WithError(err).Warn("kafka unavailable, order events disabled")
		return events.NoopPublisher{}
	}
	log.WithField("topic", cfg.KafkaTopic).Info("publishing order events to kafka")
	return producer
}

func serve() error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.RegisterGinValidators(); err != nil {
		return err
	}

	conn, err := db.ConnectWithRetry(cfg, 5, 5*time.Second, log)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}

	// Sessions and recovery tokens live in redis, so it is required.
	redisClient, err := db.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	c := cache.Disabled()
	if cfg.CacheEnabled {
		c = cache.New(redisClient, cfg.CacheTTL())
	}

	var store delivery.Store = delivery.NewGormStore(conn)
	if c.Enabled() {
		store = delivery.NewCachedStore(store, c, log)
	}
	base := delivery.Point{Lat: cfg.DeliveryBaseLat, Lng: cfg.DeliveryBaseLng}
	estimator := delivery.NewService(store, base, delivery.NewRandomSource(time.Now().UnixNano()), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws := websocket.NewManager(log)
	ws.Start(ctx)

	publisher := newPublisher()
	defer publisher.Close()

	deps := &handlers.Deps{
		DB:        conn,
		Sessions:  session.NewManager(redisClient, cfg.SessionTimeout(), cfg.SessionWarning(), cfg.RememberMeLifetime()),
		Delivery:  estimator,
		Notifier:  services.NewOrderNotifier(ws, publisher, log),
		Recovery:  recovery.NewService(redisClient, recovery.LogMailer{Log: log}, cfg.PublicBaseURL),
		Cache:     c,
		Log:       log,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.RememberMeLifetime(),
		UploadDir: cfg.UploadDir,
	}
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return err
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())
	r.Use(middleware.PrometheusMiddleware())
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		return err
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Static("/uploads", cfg.UploadDir)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	routes.SetupRoutes(r.Group("/api"), deps, ws)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}
