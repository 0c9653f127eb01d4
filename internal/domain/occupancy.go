package domain

import (
	"encoding/json"
	"time"

	"gopkg.in/guregu/null.v4"
)

// InferenceRequest is built per forward call and discarded afterwards.
type InferenceRequest struct {
	CameraID    int
	Secret      string
	Config      string
	Image       []byte
	Filename    string
	ContentType string
}

// InferenceResult carries the upstream payload of a successful call.
type InferenceResult struct {
	StatusCode int
	Payload    json.RawMessage
}

// InboundReport is an occupancy result pushed back by the inference service.
type InboundReport struct {
	Token          string
	CameraID       int
	Free           int
	Occupied       null.Int
	ProcessingTime null.Float
	Image          []byte
	ContentType    string
}

type ReportResult struct {
	FileName string      `json:"file_name"`
	FilePath string      `json:"file_path"`
	Lot      *ParkingLot `json:"parking_lot,omitempty"`
}

// OccupancyNotification is pushed to live subscribers after a report is applied.
type OccupancyNotification struct {
	LotID          int        `json:"lot_id"`
	LotName        string     `json:"lot_name"`
	CameraID       int        `json:"camera_id"`
	FreeSpots      int        `json:"free_spots"`
	Capacity       int        `json:"capacity"`
	Occupied       null.Int   `json:"occupied"`
	ProcessingTime null.Float `json:"processing_time"`
	Timestamp      time.Time  `json:"timestamp"`
}

// QueuedReport is the SQS message body variant of InboundReport.
type QueuedReport struct {
	Token          string   `json:"token" validate:"required"`
	CameraID       int      `json:"camera_id" validate:"required,min=1"`
	Free           *int     `json:"free" validate:"required,min=0"`
	Occupied       *int     `json:"occupied" validate:"omitempty,min=0"`
	ProcessingTime *float64 `json:"processing_time" validate:"omitempty,min=0"`
	ImageBase64    string   `json:"image_base64" validate:"required,base64"`
}
