package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/listing-flyer/internal/api/dto"
	"github.com/cuongbtq/listing-flyer/internal/profile"
)

// GetProfile handles GET /api/v1/profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	p, err := h.profiles.GetProfile(c.Request.Context(), callerID(c))
	if err != nil {
		h.logger.Error("Failed to get profile", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get profile",
		})
		return
	}

	c.JSON(http.StatusOK, toProfileDTO(p))
}

// UpdateProfile handles PUT /api/v1/profile
// Non-empty fields replace the stored ones
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	ctx := c.Request.Context()
	userID := callerID(c)

	stored, err := h.profiles.GetProfile(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to get profile", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get profile",
		})
		return
	}

	updated := stored.Merge(profile.AgentProfile{
		Name:         req.Name,
		Contact:      req.WhatsApp,
		LogoURL:      req.Logo,
		FormURL:      req.FormURL,
		HostingToken: req.NetlifyToken,
	})

	if err := h.profiles.SaveProfile(ctx, userID, updated); err != nil {
		h.logger.Error("Failed to save profile", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save profile",
		})
		return
	}

	h.logger.Info("Profile updated", slog.String("user_id", userID))
	c.JSON(http.StatusOK, toProfileDTO(updated))
}

func toProfileDTO(p profile.AgentProfile) dto.ProfileDTO {
	return dto.ProfileDTO{
		Name:            p.Name,
		WhatsApp:        p.Contact,
		Logo:            p.LogoURL,
		FormURL:         p.FormURL,
		HasNetlifyToken: p.HostingToken != "",
	}
}
