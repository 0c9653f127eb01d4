package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type ParkingLot struct {
	ID                 int       `json:"id"`
	Name               string    `json:"name"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	LocationName       string    `json:"location_name"`
	FreeSpots          int       `json:"free_spots"`
	Capacity           int       `json:"capacity"`
	OccupancyUpdatedAt null.Time `json:"occupancy_updated_at"` // Set only by occupancy reports
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type ParkingLotDTO struct {
	Name         string   `json:"name" binding:"required"`
	Latitude     *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude    *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	LocationName string   `json:"location_name"`
	FreeSpots    int      `json:"free_spots" binding:"min=0"`
	Capacity     int      `json:"capacity" binding:"min=0"`
}
