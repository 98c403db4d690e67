package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/cuongbtq/listing-flyer/internal/profile"
)

// ProfileShowAction prints the stored agent profile
func ProfileShowAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	p, err := app.Profiles.GetProfile(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	printProfile(output(cmd), p)
	return nil
}

// ProfileSetAction merges the given flags into the stored agent profile
func ProfileSetAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	user := cmd.String("user")
	stored, err := app.Profiles.GetProfile(ctx, user)
	if err != nil {
		return err
	}

	updated := stored.Merge(profile.AgentProfile{
		Name:         cmd.String("name"),
		Contact:      cmd.String("whatsapp"),
		LogoURL:      cmd.String("logo"),
		FormURL:      cmd.String("form-url"),
		HostingToken: cmd.String("netlify-token"),
	})
	if err := app.Profiles.SaveProfile(ctx, user, updated); err != nil {
		return err
	}

	printProfile(output(cmd), updated)
	return nil
}

func printProfile(w io.Writer, p profile.AgentProfile) {
	token := "no"
	if p.HostingToken != "" {
		token = "sí"
	}

	fmt.Fprintf(w, "Nombre:   %s\n", p.Name)
	fmt.Fprintf(w, "WhatsApp: %s\n", p.Contact)
	fmt.Fprintf(w, "Logo:     %s\n", p.LogoURL)
	fmt.Fprintf(w, "Form:     %s\n", p.FormURL)
	fmt.Fprintf(w, "Token:    %s\n", token)
}
