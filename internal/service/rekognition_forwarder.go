package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/metrics"
)

// vehicleLabels are the Rekognition labels whose instances count as parked cars.
var vehicleLabels = map[string]bool{
	"Car":        true,
	"Truck":      true,
	"Bus":        true,
	"Van":        true,
	"Motorcycle": true,
}

type RekognitionAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionForwarder is an inference backend that counts vehicles with
// AWS Rekognition instead of calling the external inference service.
type RekognitionForwarder struct {
	client        RekognitionAPI
	minConfidence float32
	logger        zerolog.Logger
}

func NewRekognitionForwarder(client RekognitionAPI, minConfidence float32) *RekognitionForwarder {
	return &RekognitionForwarder{
		client:        client,
		minConfidence: minConfidence,
		logger:        logging.Component("rekognition"),
	}
}

type detectedLabel struct {
	Name       string  `json:"name"`
	Confidence float32 `json:"confidence"`
	Instances  int     `json:"instances"`
}

type rekognitionPayload struct {
	CameraID int             `json:"camera_id"`
	Backend  string          `json:"backend"`
	Occupied int             `json:"occupied"`
	Labels   []detectedLabel `json:"labels"`
}

func (f *RekognitionForwarder) Forward(ctx context.Context, req domain.InferenceRequest) (*domain.InferenceResult, error) {
	if f.client == nil {
		return nil, &InferenceTransportError{Message: "rekognition client is not configured"}
	}

	start := time.Now()
	out, err := f.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: req.Image},
		MinConfidence: aws.Float32(f.minConfidence),
	})
	metrics.InferenceDuration.WithLabelValues("rekognition").Observe(time.Since(start).Seconds())
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) && respErr.HTTPStatusCode() >= 400 && respErr.HTTPStatusCode() < 500 {
			return nil, &InferenceServiceError{Status: respErr.HTTPStatusCode(), Body: respErr.Err.Error()}
		}
		return nil, &InferenceTransportError{Message: err.Error(), Err: err}
	}

	payload := rekognitionPayload{CameraID: req.CameraID, Backend: "rekognition", Labels: []detectedLabel{}}
	var names []string
	for _, label := range out.Labels {
		if label.Name == nil {
			continue
		}
		names = append(names, *label.Name)
		if !vehicleLabels[*label.Name] {
			continue
		}
		payload.Occupied += len(label.Instances)
		payload.Labels = append(payload.Labels, detectedLabel{
			Name:       *label.Name,
			Confidence: aws.ToFloat32(label.Confidence),
			Instances:  len(label.Instances),
		})
	}
	f.logger.Debug().Int("camera_id", req.CameraID).Int("occupied", payload.Occupied).Str("labels", strings.Join(names, ",")).Msg("labels detected")

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding rekognition payload: %w", err)
	}
	return &domain.InferenceResult{StatusCode: 200, Payload: data}, nil
}
