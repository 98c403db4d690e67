package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cuongbtq/listing-flyer/internal/profile"
	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

// GenerateAction runs one flyer job in-process and prints its progress lines
func GenerateAction(ctx context.Context, cmd *cli.Command) error {
	listingURL := cmd.String("url")
	outPath := cmd.String("out")
	user := cmd.String("user")

	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	jobID, err := app.Manager.Submit(ctx, domain.SubmitRequest{
		URL:       listingURL,
		Owner:     user,
		Overrides: profile.AgentProfile{HostingToken: cmd.String("netlify-token")},
	})
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}

	app.Logger.Debug("Job submitted", slog.String("job_id", jobID), slog.String("url", listingURL))

	events, err := app.Manager.Subscribe(ctx, jobID, user)
	if err != nil {
		return fmt.Errorf("failed to follow job: %w", err)
	}

	w := output(cmd)
	var last domain.Event
	for ev := range events {
		switch ev.Kind {
		case domain.EventHeartbeat:
		case domain.EventProgress:
			fmt.Fprintln(w, ev.Data)
		default:
			last = ev
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if last.Kind != domain.EventDone {
		return fmt.Errorf("job %s failed", jobID)
	}

	if outPath != "" {
		html, err := app.Manager.Flyer(jobID, user)
		if err != nil {
			return fmt.Errorf("failed to get flyer: %w", err)
		}
		if err := os.WriteFile(outPath, html, 0o644); err != nil {
			return fmt.Errorf("failed to write flyer: %w", err)
		}
		fmt.Fprintf(w, "Ficha guardada en %s\n", outPath)
	}

	return nil
}
