package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/listing-flyer/shared/database"
)

const schema = `
	CREATE TABLE IF NOT EXISTS agent_profiles (
		user_id       TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		contact       TEXT NOT NULL DEFAULT '',
		logo_url      TEXT NOT NULL DEFAULT '',
		form_url      TEXT NOT NULL DEFAULT '',
		hosting_token TEXT NOT NULL DEFAULT '',
		updated_at    TIMESTAMP NOT NULL
	)
`

// Storage is a Store backed by postgres or sqlite
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage wraps an open database client
func NewStorage(client *database.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     client.GetDB(),
		logger: logger,
	}
}

// Migrate creates the profile table when missing
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate profiles: %w", err)
	}
	return nil
}

func (s *Storage) GetProfile(ctx context.Context, userID string) (AgentProfile, error) {
	var p AgentProfile
	query := s.db.Rebind(`
		SELECT name, contact, logo_url, form_url, hosting_token
		FROM agent_profiles
		WHERE user_id = ?
	`)

	err := s.db.GetContext(ctx, &p, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return AgentProfile{}, nil
	}
	if err != nil {
		return AgentProfile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

func (s *Storage) SaveProfile(ctx context.Context, userID string, p AgentProfile) error {
	query := s.db.Rebind(`
		INSERT INTO agent_profiles (
			user_id, name, contact, logo_url, form_url, hosting_token, updated_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?
		)
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			contact = excluded.contact,
			logo_url = excluded.logo_url,
			form_url = excluded.form_url,
			hosting_token = excluded.hosting_token,
			updated_at = excluded.updated_at
	`)

	_, err := s.db.ExecContext(
		ctx,
		query,
		userID,
		p.Name,
		p.Contact,
		p.LogoURL,
		p.FormURL,
		p.HostingToken,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.Debug("Profile saved", slog.String("user_id", userID))
	return nil
}
