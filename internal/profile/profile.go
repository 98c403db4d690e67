// Package profile stores the per-user agent branding applied to every flyer.
package profile

import "context"

// AgentProfile is the branding and credentials of one agent
type AgentProfile struct {
	Name         string `json:"name" db:"name"`
	Contact      string `json:"whatsapp" db:"contact"`
	LogoURL      string `json:"logo" db:"logo_url"`
	FormURL      string `json:"form_url" db:"form_url"`
	HostingToken string `json:"netlify_token" db:"hosting_token"`
}

// Merge returns p with every non-empty field of override applied
func (p AgentProfile) Merge(override AgentProfile) AgentProfile {
	if override.Name != "" {
		p.Name = override.Name
	}
	if override.Contact != "" {
		p.Contact = override.Contact
	}
	if override.LogoURL != "" {
		p.LogoURL = override.LogoURL
	}
	if override.FormURL != "" {
		p.FormURL = override.FormURL
	}
	if override.HostingToken != "" {
		p.HostingToken = override.HostingToken
	}
	return p
}

// Store loads and saves agent profiles. Unknown users get an empty profile.
type Store interface {
	GetProfile(ctx context.Context, userID string) (AgentProfile, error)
	SaveProfile(ctx context.Context, userID string, p AgentProfile) error
}
