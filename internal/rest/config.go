package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mediakit/picserve/api"
	"github.com/mediakit/picserve/media/application"
	"github.com/mediakit/picserve/media/codec"
	"github.com/mediakit/picserve/media/domain"
)

// availableQualities are the encode quality presets offered to the admin UI.
var availableQualities = []int{10, 20, 30, 40, 50}

// ConfigHandler exposes the image-processing configuration and the mutation
// trigger.
type ConfigHandler struct {
	service  *application.PictureService
	settings domain.SettingStore
}

func NewConfigHandler(service *application.PictureService, settings domain.SettingStore) *ConfigHandler {
	return &ConfigHandler{
		service:  service,
		settings: settings,
	}
}

func (h *ConfigHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/admin/image-processing/configure", h.GetConfigure)
	r.POST("/admin/image-processing/configure", h.PostConfigure)
	r.POST("/admin/image-processing/mutation", h.Mutation)
}

// GetConfigure returns the active encode quality and the allowed presets.
func (h *ConfigHandler) GetConfigure(c *gin.Context) {
	c.JSON(http.StatusOK, api.ConfigResponse{
		Quality:            h.settings.GetInt(c.Request.Context(), domain.SettingImageQuality, codec.DefaultQuality),
		AvailableQualities: availableQualities,
	})
}

// PostConfigure persists a new encode quality and clears the settings cache.
func (h *ConfigHandler) PostConfigure(c *gin.Context) {
	var req api.ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Quality < 1 || req.Quality > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quality must be between 1 and 100"})
		return
	}

	err := h.settings.Set(c.Request.Context(), domain.SettingImageQuality, strconv.Itoa(req.Quality))
	if err != nil {
		log.Error().Err(err).Msg("Failed to save image quality setting")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	h.settings.ClearCache()

	c.Status(http.StatusNoContent)
}

// Mutation re-encodes all legacy-format images to WebP and reports the
// per-item outcome counts.
func (h *ConfigHandler) Mutation(c *gin.Context) {
	result, err := h.service.ApplyMutation(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Format mutation failed")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	h.settings.ClearCache()

	c.JSON(http.StatusOK, api.MutationResponse{
		FilesConverted: result.FilesConverted,
		RowsConverted:  result.RowsConverted,
		FailedFiles:    len(result.FailedFiles),
		FailedRows:     len(result.FailedRows),
	})
}
