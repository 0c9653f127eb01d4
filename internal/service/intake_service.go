package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/metrics"
	"github.com/kirieshkistudios/park-backend/internal/repository"
)

// ImageSaver persists the latest frame of a camera.
type ImageSaver interface {
	Save(cameraID int, data []byte) (name string, path string, err error)
}

type IntakeConfig struct {
	// InboundSecret must accompany reports from the inference service.
	InboundSecret string
	// InferenceSecret authenticates this server to the inference service.
	InferenceSecret string
}

type ImageUpload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// IntakeService runs both directions of the occupancy pipeline: camera
// images out to inference, and inference results back into lot state.
type IntakeService struct {
	registry  *CameraRegistry
	occupancy *OccupancyService
	forwarder InferenceForwarder
	images    ImageSaver
	notifier  OccupancyNotifier

	inboundSecret   [sha256.Size]byte
	inboundEnabled  bool
	inferenceSecret string

	logger zerolog.Logger
}

func NewIntakeService(cfg IntakeConfig, registry *CameraRegistry, occupancy *OccupancyService,
	forwarder InferenceForwarder, images ImageSaver, notifier OccupancyNotifier) *IntakeService {
	logger := logging.Component("intake")
	if cfg.InboundSecret == "" {
		logger.Warn().Msg("INBOUND_SECRET is empty, every occupancy report will be rejected")
	}
	if notifier == nil {
		notifier = MultiNotifier{}
	}
	return &IntakeService{
		registry:        registry,
		occupancy:       occupancy,
		forwarder:       forwarder,
		images:          images,
		notifier:        notifier,
		inboundSecret:   sha256.Sum256([]byte(cfg.InboundSecret)),
		inboundEnabled:  cfg.InboundSecret != "",
		inferenceSecret: cfg.InferenceSecret,
		logger:          logger,
	}
}

// SubmitForInference forwards a camera image to the inference backend.
// The camera is identified by its credential; the outbound secret is
// always the server's own.
func (s *IntakeService) SubmitForInference(ctx context.Context, credential string, img ImageUpload) (*domain.InferenceResult, error) {
	log := logging.Ctx(ctx).With().Str("component", "intake").Logger()

	if len(img.Data) == 0 {
		return nil, ErrMissingImage
	}

	cam, err := s.registry.ResolveByCredential(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrUnknownCamera) {
			metrics.ForwardsTotal.WithLabelValues("unknown_camera").Inc()
		} else {
			metrics.ForwardsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	req := domain.InferenceRequest{
		CameraID:    cam.ID,
		Secret:      s.inferenceSecret,
		Config:      string(cam.Config),
		Image:       img.Data,
		Filename:    img.Filename,
		ContentType: img.ContentType,
	}

	result, err := s.forwarder.Forward(ctx, req)
	if err != nil {
		var serviceErr *InferenceServiceError
		switch {
		case errors.As(err, &serviceErr):
			metrics.ForwardsTotal.WithLabelValues("upstream_error").Inc()
			log.Warn().Int("camera_id", cam.ID).Int("status", serviceErr.Status).Msg("inference service rejected image")
		case IsRetryable(err):
			metrics.ForwardsTotal.WithLabelValues("transport_error").Inc()
			log.Error().Err(err).Int("camera_id", cam.ID).Msg("inference service unreachable")
		default:
			metrics.ForwardsTotal.WithLabelValues("error").Inc()
			log.Error().Err(err).Int("camera_id", cam.ID).Msg("inference forward failed")
		}
		return nil, err
	}

	metrics.ForwardsTotal.WithLabelValues("success").Inc()
	log.Info().Int("camera_id", cam.ID).Int("bytes", len(img.Data)).Msg("image forwarded to inference")
	return result, nil
}

func (s *IntakeService) tokenValid(token string) bool {
	if !s.inboundEnabled {
		return false
	}
	sum := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(sum[:], s.inboundSecret[:]) == 1
}

// ReceiveReport applies an occupancy result from the inference service.
// The camera and its lot are resolved before anything is written, so a
// rejected report leaves neither an image nor a lot change behind.
func (s *IntakeService) ReceiveReport(ctx context.Context, report domain.InboundReport, source string) (*domain.ReportResult, error) {
	log := logging.Ctx(ctx).With().Str("component", "intake").Str("source", source).Int("camera_id", report.CameraID).Logger()
	outcome := "error"
	defer func() { metrics.ReportsTotal.WithLabelValues(source, outcome).Inc() }()

	if !s.tokenValid(report.Token) {
		outcome = "unauthorized"
		log.Warn().Msg("report rejected: token mismatch")
		return nil, ErrUnauthorized
	}
	if len(report.Image) == 0 {
		outcome = "invalid"
		return nil, ErrMissingImage
	}
	if report.CameraID <= 0 {
		outcome = "invalid"
		return nil, fmt.Errorf("%w: camera_id must be positive", ErrInvalidReport)
	}
	if report.Free < 0 {
		outcome = "invalid"
		return nil, ErrOccupancyOutOfRange
	}

	lot, err := s.registry.ResolveLotForCamera(ctx, report.CameraID)
	if err != nil {
		if errors.Is(err, ErrUnknownCamera) {
			outcome = "unknown_camera"
		}
		return nil, err
	}
	if report.Free > lot.Capacity {
		outcome = "invalid"
		return nil, ErrOccupancyOutOfRange
	}

	name, path, err := s.images.Save(report.CameraID, report.Image)
	if err != nil {
		outcome = "storage_error"
		log.Error().Err(err).Msg("could not store report image")
		return nil, &StorageError{Err: err}
	}

	updated, err := s.occupancy.Apply(ctx, lot.ID, report.Free)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lot removed between resolve and apply.
			outcome = "unknown_camera"
			return nil, ErrUnknownCamera
		}
		if errors.Is(err, ErrOccupancyOutOfRange) {
			outcome = "invalid"
		}
		return nil, err
	}
	outcome = "applied"

	event := log.Info().Int("lot_id", updated.ID).Int("free_spots", updated.FreeSpots).Str("file", name)
	if report.Occupied.Valid {
		event = event.Int64("occupied", report.Occupied.Int64)
	}
	if report.ProcessingTime.Valid {
		event = event.Float64("processing_time", report.ProcessingTime.Float64)
	}
	event.Msg("occupancy report applied")

	s.notifier.NotifyOccupancy(ctx, domain.OccupancyNotification{
		LotID:          updated.ID,
		LotName:        updated.Name,
		CameraID:       report.CameraID,
		FreeSpots:      updated.FreeSpots,
		Capacity:       updated.Capacity,
		Occupied:       report.Occupied,
		ProcessingTime: report.ProcessingTime,
		Timestamp:      time.Now().UTC(),
	})

	return &domain.ReportResult{FileName: name, FilePath: path, Lot: updated}, nil
}
