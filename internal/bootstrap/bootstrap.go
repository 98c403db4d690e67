// Package bootstrap builds the flyer pipeline from a loaded configuration.
// Both the API service and the command line tool start from here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/listing-flyer/internal/browser"
	"github.com/cuongbtq/listing-flyer/internal/config"
	"github.com/cuongbtq/listing-flyer/internal/extractor"
	"github.com/cuongbtq/listing-flyer/internal/flyer"
	"github.com/cuongbtq/listing-flyer/internal/profile"
	"github.com/cuongbtq/listing-flyer/internal/publisher"
	"github.com/cuongbtq/listing-flyer/internal/worker"
	"github.com/cuongbtq/listing-flyer/shared/database"
	"github.com/cuongbtq/listing-flyer/shared/logger"
	"github.com/cuongbtq/listing-flyer/shared/rabbitmq"
)

// Components holds everything a process needs to run flyer jobs
type Components struct {
	Logger   *slog.Logger
	DB       *database.Client
	Profiles *profile.Storage
	Rabbit   *rabbitmq.Client
	Manager  *worker.Manager
}

// Close releases the database and broker connections. The manager must be
// shut down first.
func (c *Components) Close() error {
	var errs []error
	if c.Rabbit != nil {
		if err := c.Rabbit.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// Build opens the profile store, the optional broker and the job manager.
// On error everything opened so far is closed again.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Components, error) {
	c := &Components{Logger: log}

	db, err := InitDatabase(&cfg.Profiles, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.DB = db

	c.Profiles = profile.NewStorage(db, log)
	if err := c.Profiles.Migrate(ctx); err != nil {
		c.Close()
		return nil, err
	}

	var notifier worker.Notifier
	if cfg.RabbitMQ.Enabled {
		rabbit, err := InitRabbitMQ(&cfg.RabbitMQ, log)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		c.Rabbit = rabbit
		notifier = worker.NewBrokerNotifier(rabbit)
	}

	ext, err := InitExtractor(&cfg.Extraction, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	renderer, err := flyer.NewRenderer()
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Manager = worker.NewManager(&worker.Config{
		Logger:            log,
		Launcher:          InitLauncher(&cfg.Browser, log),
		Extractor:         ext,
		Renderer:          renderer,
		Publisher:         InitPublisher(&cfg.Hosting, log),
		Profiles:          c.Profiles,
		Notifier:          notifier,
		Concurrency:       cfg.Worker.Concurrency,
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		Retention:         cfg.Worker.Retention,
		SweepInterval:     cfg.Worker.SweepInterval,
		MaxPhotos:         cfg.Extraction.MaxPhotos,
	})

	return c, nil
}

// InitDatabase opens the profile database
func InitDatabase(cfg *config.DatabaseConfig, log *slog.Logger) (*database.Client, error) {
	return database.NewClient(&database.Config{
		Driver:          cfg.Driver,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, log)
}

// InitRabbitMQ initializes the completion event publisher
func InitRabbitMQ(cfg *config.RabbitMQConfig, log *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, log)
}

// InitLauncher selects the page driver
func InitLauncher(cfg *config.BrowserConfig, log *slog.Logger) browser.Launcher {
	opts := browser.Options{
		Headless:          cfg.Headless,
		ExecPath:          cfg.ExecPath,
		UserAgent:         cfg.UserAgent,
		WindowWidth:       cfg.WindowWidth,
		WindowHeight:      cfg.WindowHeight,
		NavigationTimeout: cfg.NavigationTimeout,
		SettleDelay:       cfg.SettleDelay,
		GalleryDelay:      cfg.GalleryDelay,
		TriggerWait:       cfg.TriggerWait,
	}

	if cfg.Driver == config.BrowserStatic {
		return browser.NewStaticLauncher(opts, log)
	}
	return browser.NewChromeLauncher(opts, log)
}

// InitExtractor loads the site profile, falling back to the built-in one
func InitExtractor(cfg *config.ExtractionConfig, log *slog.Logger) (*extractor.Extractor, error) {
	siteProfile, err := extractor.LoadSiteProfile(cfg.SiteProfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load site profile: %w", err)
	}
	return extractor.New(siteProfile, log)
}

// InitPublisher configures the hosting client
func InitPublisher(cfg *config.HostingConfig, log *slog.Logger) *publisher.Publisher {
	return publisher.New(publisher.Config{
		BaseURL:        cfg.APIBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		UploadTimeout:  cfg.UploadTimeout,
		PollTimeout:    cfg.PollTimeout,
		PollInterval:   cfg.PollInterval,
		PollAttempts:   cfg.PollAttempts,
	}, log)
}
