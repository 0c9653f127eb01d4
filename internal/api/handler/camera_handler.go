package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/service"
)

type CameraHandler struct {
	parkingService *service.ParkingService
}

func NewCameraHandler(ps *service.ParkingService) *CameraHandler {
	return &CameraHandler{parkingService: ps}
}

// POST /cameras
func (h *CameraHandler) CreateCamera(c *gin.Context) {
	var dto domain.CameraDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cam, err := h.parkingService.CreateCamera(c.Request.Context(), dto)
	if err != nil {
		writeError(c, err, "could not create camera")
		return
	}
	c.JSON(http.StatusCreated, cam)
}

// GET /cameras/:id
func (h *CameraHandler) GetCameraByID(c *gin.Context) {
	id, ok := pathID(c, "camera")
	if !ok {
		return
	}
	cam, err := h.parkingService.GetCameraByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "could not load camera")
		return
	}
	c.JSON(http.StatusOK, cam)
}

// GET /cameras
func (h *CameraHandler) GetAllCameras(c *gin.Context) {
	cams, err := h.parkingService.GetAllCameras(c.Request.Context())
	if err != nil {
		writeError(c, err, "could not list cameras")
		return
	}
	c.JSON(http.StatusOK, cams)
}

// PUT /cameras/:id
func (h *CameraHandler) UpdateCamera(c *gin.Context) {
	id, ok := pathID(c, "camera")
	if !ok {
		return
	}
	var dto domain.CameraDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cam, err := h.parkingService.UpdateCamera(c.Request.Context(), id, dto)
	if err != nil {
		writeError(c, err, "could not update camera")
		return
	}
	c.JSON(http.StatusOK, cam)
}

// DELETE /cameras/:id
func (h *CameraHandler) DeleteCamera(c *gin.Context) {
	id, ok := pathID(c, "camera")
	if !ok {
		return
	}
	if err := h.parkingService.DeleteCamera(c.Request.Context(), id); err != nil {
		writeError(c, err, "could not delete camera")
		return
	}
	c.Status(http.StatusNoContent)
}
