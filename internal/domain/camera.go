package domain

import (
	"encoding/json"
	"time"
)

// Camera is an edge device that photographs one parking lot. API is the
// credential the device presents when submitting images; Config is handed
// to the inference service untouched.
type Camera struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	ParkingLotID int             `json:"parking_lot_id"`
	API          string          `json:"api"`
	Config       json.RawMessage `json:"config,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type CameraDTO struct {
	Name         string          `json:"name" binding:"required"`
	ParkingLotID int             `json:"parking_lot_id" binding:"required,min=1"`
	API          string          `json:"api" binding:"required,min=8,max=255"`
	Config       json.RawMessage `json:"config"`
}
