package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/service"
)

type ParkingLotHandler struct {
	parkingService *service.ParkingService
}

func NewParkingLotHandler(ps *service.ParkingService) *ParkingLotHandler {
	return &ParkingLotHandler{parkingService: ps}
}

func pathID(c *gin.Context, what string) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return 0, false
	}
	return id, true
}

// POST /parking-lots
func (h *ParkingLotHandler) CreateParkingLot(c *gin.Context) {
	var dto domain.ParkingLotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lot, err := h.parkingService.CreateParkingLot(c.Request.Context(), dto)
	if err != nil {
		writeError(c, err, "could not create parking lot")
		return
	}
	c.JSON(http.StatusCreated, lot)
}

// GET /parking-lots/:id
func (h *ParkingLotHandler) GetParkingLotByID(c *gin.Context) {
	id, ok := pathID(c, "parking lot")
	if !ok {
		return
	}
	lot, err := h.parkingService.GetParkingLotByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "could not load parking lot")
		return
	}
	c.JSON(http.StatusOK, lot)
}

// GET /parking-lots
func (h *ParkingLotHandler) GetAllParkingLots(c *gin.Context) {
	lots, err := h.parkingService.GetAllParkingLots(c.Request.Context())
	if err != nil {
		writeError(c, err, "could not list parking lots")
		return
	}
	c.JSON(http.StatusOK, lots)
}

// GET /parking-lots/:id/cameras
func (h *ParkingLotHandler) GetCamerasByLotID(c *gin.Context) {
	id, ok := pathID(c, "parking lot")
	if !ok {
		return
	}
	cameras, err := h.parkingService.GetCamerasByLotID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "could not list cameras")
		return
	}
	c.JSON(http.StatusOK, cameras)
}

// PUT /parking-lots/:id
func (h *ParkingLotHandler) UpdateParkingLot(c *gin.Context) {
	id, ok := pathID(c, "parking lot")
	if !ok {
		return
	}
	var dto domain.ParkingLotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lot, err := h.parkingService.UpdateParkingLot(c.Request.Context(), id, dto)
	if err != nil {
		writeError(c, err, "could not update parking lot")
		return
	}
	c.JSON(http.StatusOK, lot)
}

// DELETE /parking-lots/:id
func (h *ParkingLotHandler) DeleteParkingLot(c *gin.Context) {
	id, ok := pathID(c, "parking lot")
	if !ok {
		return
	}
	if err := h.parkingService.DeleteParkingLot(c.Request.Context(), id); err != nil {
		writeError(c, err, "could not delete parking lot")
		return
	}
	c.Status(http.StatusNoContent)
}
