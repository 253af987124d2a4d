package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"videoapi/docs"
	"videoapi/internal/auth"
	"videoapi/internal/config"
	"videoapi/internal/database"
	"videoapi/internal/database/migration"
	"videoapi/internal/events"
	handlers "videoapi/internal/http/handler"
	"videoapi/internal/http/middleware"
	"videoapi/internal/logging"
	"videoapi/internal/metrics"
	appotel "videoapi/internal/otel"
	"videoapi/internal/probe"
	"videoapi/internal/processing"
	"videoapi/internal/repository/postgres"
	"videoapi/internal/screening"
	"videoapi/internal/service"
	"videoapi/internal/storage"
)

// @title Video API
// @version 1.0
// @description Multi-tenant video upload, processing and streaming.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.Location())

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.AppConfig, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	shutdownTracing, err := appotel.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			log.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		return err
	}

	objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	hub := events.NewHub(cfg.Events.Buffer, appMetrics)
	var publisher events.Publisher = hub

	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()
	if cfg.Redis.Addr != "" {
		client, err := events.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		relay := events.NewRelay(client, cfg.Redis.Channel, hub, log, appMetrics)
		relayErr := make(chan error, 1)
		go func() { relayErr <- relay.Run(relayCtx) }()
		select {
		case <-relay.Ready():
		case err := <-relayErr:
			return fmt.Errorf("start relay: %w", err)
		case <-time.After(5 * time.Second):
			return errors.New("start relay: subscription not confirmed")
		}
		go func() {
			if err := <-relayErr; err != nil {
				log.Error().Err(err).Str("component", "events").Msg("relay stopped")
			}
		}()
		publisher = relay
	}

	videoRepo := postgres.NewVideoPostgres(db)
	userRepo := postgres.NewUserPostgres(db)

	proc := processing.New(processing.Deps{
		Videos:    videoRepo,
		Store:     objStore,
		Prober:    probe.NewFFProbe(cfg.Processing.FFProbePath, cfg.Processing.ProbeTimeout),
		Engine:    screening.NewEngine(),
		Publisher: publisher,
		Metrics:   appMetrics,
	}, log)
	proc.StageDelay = cfg.Processing.StageDelay
	proc.URLTTL = cfg.Processing.ProbeURLTTL

	videoSvc := service.NewVideoService(objStore, videoRepo, userRepo, proc)
	userSvc := service.NewUserService(userRepo)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.MaxUploadBytes,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:        db,
		Videos:    videoSvc,
		Users:     userSvc,
		Hub:       hub,
		Auth:      auth.New(cfg.JWTSecret, userRepo),
		Gatherer:  reg,
		Heartbeat: cfg.Events.Heartbeat,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}
		return swagger.HandlerDefault(c)
	})

	listenErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ":"+cfg.Port).Msg("http server listening")
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("start server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Event streams never finish on their own.
	hub.CloseAll()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := proc.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("processing runs still in flight at shutdown")
	}
	return nil
}
