package dto

// ProfileDTO never echoes the hosting token back to the client
type ProfileDTO struct {
	Name            string `json:"name"`
	WhatsApp        string `json:"whatsapp"`
	Logo            string `json:"logo"`
	FormURL         string `json:"form_url"`
	HasNetlifyToken bool   `json:"has_netlify_token"`
}

// UpdateProfileRequest replaces every non-empty field of the stored profile
type UpdateProfileRequest struct {
	Name         string `json:"name"`
	WhatsApp     string `json:"whatsapp"`
	Logo         string `json:"logo"`
	FormURL      string `json:"form_url"`
	NetlifyToken string `json:"netlify_token"`
}
