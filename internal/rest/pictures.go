package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mediakit/picserve/api"
	"github.com/mediakit/picserve/media/application"
)

// uploadThumbSize is the derivative size returned to upload widgets for
// immediate preview.
const uploadThumbSize = 100

// PictureHandler exposes the picture endpoints.
type PictureHandler struct {
	service *application.PictureService
}

func NewPictureHandler(service *application.PictureService) *PictureHandler {
	return &PictureHandler{
		service: service,
	}
}

func (h *PictureHandler) RegisterRoutes(r gin.IRouter) {
	// no CSRF token validation here: the endpoint serves asynchronous
	// upload widgets
	r.POST("/admin/pictures/async-upload", h.AsyncUpload)
}

// AsyncUpload accepts a multipart file under "img" with an optional
// "qqfilename" filename hint, stores it and returns a preview URL.
func (h *PictureHandler) AsyncUpload(c *gin.Context) {
	file, err := c.FormFile("img")
	if err != nil {
		c.JSON(http.StatusOK, api.UploadResponse{
			Success: false,
			Message: "No file uploaded",
		})
		return
	}

	fallbackName := c.PostForm("qqfilename")

	pic, err := h.service.InsertPictureFromUpload(c.Request.Context(), file, fallbackName, "")
	if err != nil {
		log.Error().Err(err).Str("filename", file.Filename).Msg("Failed to store uploaded picture")
		c.JSON(http.StatusOK, api.UploadResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	url, pic, err := h.service.PictureURL(c.Request.Context(), pic, uploadThumbSize, true, application.PictureTypeEntity)
	if err != nil {
		log.Error().Err(err).Int("picture_id", pic.ID).Msg("Failed to resolve uploaded picture URL")
		c.JSON(http.StatusOK, api.UploadResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, api.UploadResponse{
		Success:   true,
		PictureID: pic.ID,
		ImageURL:  url,
	})
}
