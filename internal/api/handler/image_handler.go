package handler

import (
	"github.com/gin-gonic/gin"
)

type ImageOpener interface {
	Open(name string) (string, error)
}

type ImageHandler struct {
	images ImageOpener
}

func NewImageHandler(images ImageOpener) *ImageHandler {
	return &ImageHandler{images: images}
}

// GET /images/:name
func (h *ImageHandler) GetImage(c *gin.Context) {
	path, err := h.images.Open(c.Param("name"))
	if err != nil {
		writeError(c, err, "could not read image")
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.File(path)
}
