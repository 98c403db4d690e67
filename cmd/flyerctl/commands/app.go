// Package commands implements the flyerctl subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/cuongbtq/listing-flyer/internal/bootstrap"
	"github.com/cuongbtq/listing-flyer/internal/config"
	"github.com/cuongbtq/listing-flyer/shared/logger"
)

const defaultUser = "local"

// NewApp builds the flyerctl command tree
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "flyerctl",
		Usage: "Genera fichas de propiedades desde la terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to configuration file",
				Value:   "configs/api-service/config.yaml",
				Sources: cli.EnvVars("API_SERVICE_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "Path to .env file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Profile owner",
				Value: defaultUser,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Scrape a listing and render its flyer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "url",
						Usage:    "Listing URL",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Write the flyer HTML to this file",
					},
					&cli.StringFlag{
						Name:  "netlify-token",
						Usage: "Hosting token for this run only",
					},
				},
				Action: GenerateAction,
			},
			{
				Name:  "profile",
				Usage: "Agent profile commands",
				Commands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the stored profile",
						Action: ProfileShowAction,
					},
					{
						Name:  "set",
						Usage: "Update the stored profile. Empty flags keep the stored value.",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "Agent name"},
							&cli.StringFlag{Name: "whatsapp", Usage: "WhatsApp number"},
							&cli.StringFlag{Name: "logo", Usage: "Logo URL"},
							&cli.StringFlag{Name: "form-url", Usage: "Lead form URL"},
							&cli.StringFlag{Name: "netlify-token", Usage: "Hosting token"},
						},
						Action: ProfileSetAction,
					},
				},
			},
		},
	}
}

// AppContext holds the components shared by all subcommands
type AppContext struct {
	*bootstrap.Components
	Config *config.Config
	log    *logger.Logger
}

// NewAppContext loads configuration and builds the pipeline
func NewAppContext(ctx context.Context, cmd *cli.Command) (*AppContext, error) {
	// .env is optional
	_ = godotenv.Load(cmd.String("env"))

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	components, err := bootstrap.Build(ctx, cfg, log.Logger)
	if err != nil {
		log.Close()
		return nil, err
	}

	return &AppContext{Components: components, Config: cfg, log: log}, nil
}

// Close stops the job manager and releases connections
func (a *AppContext) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Worker.ShutdownTimeout)
	defer cancel()

	if err := a.Manager.Shutdown(ctx); err != nil {
		a.Logger.Warn("Job manager did not stop cleanly", "error", err)
	}
	err := a.Components.Close()
	a.log.Close()
	return err
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
