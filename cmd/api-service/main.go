package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/listing-flyer/internal/api/handler"
	"github.com/cuongbtq/listing-flyer/internal/api/router"
	"github.com/cuongbtq/listing-flyer/internal/bootstrap"
	"github.com/cuongbtq/listing-flyer/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("browser", cfg.Browser.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, appLogger.Logger)
	if err != nil {
		return err
	}
	defer components.Close()

	appLogger.Info("Profile store ready", slog.String("driver", components.DB.Driver()))
	if components.Rabbit != nil {
		appLogger.Info("RabbitMQ connection established")
	}

	components.Manager.Start(ctx)

	r := initRouter(cfg, appLogger.Logger, components)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		// zero WriteTimeout keeps long progress streams open
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		shutdownManager(cfg, appLogger.Logger, components)
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Open streams end once their jobs finish or the manager cancels them
	managerDone := make(chan struct{})
	go func() {
		shutdownManager(cfg, appLogger.Logger, components)
		close(managerDone)
	}()

	err = srv.Shutdown(shutdownCtx)
	<-managerDone
	if err != nil {
		appLogger.Error("Server forced to shutdown", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

func shutdownManager(cfg *config.Config, logger *slog.Logger, c *bootstrap.Components) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()

	if err := c.Manager.Shutdown(ctx); err != nil {
		logger.Warn("Job manager did not stop cleanly", slog.String("error", err.Error()))
	}
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, c *bootstrap.Components) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &handler.Dependencies{
		Logger:         logger,
		ServiceName:    cfg.App.Name,
		Jobs:           c.Manager,
		Profiles:       c.Profiles,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if cfg.RateLimit.Enabled {
		deps.SubmitRatePerMinute = cfg.RateLimit.RequestsPerMinute
		deps.SubmitBurst = cfg.RateLimit.Burst
	}

	return router.SetupRouter(deps)
}
