package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/repository"
)

// ParkingService administers parking lots and the cameras watching them.
type ParkingService struct {
	lotRepo    repository.ParkingLotRepository
	cameraRepo repository.CameraRepository
	registry   *CameraRegistry
	logger     zerolog.Logger
}

func NewParkingService(
	lotRepo repository.ParkingLotRepository,
	cameraRepo repository.CameraRepository,
	registry *CameraRegistry,
) *ParkingService {
	return &ParkingService{
		lotRepo:    lotRepo,
		cameraRepo: cameraRepo,
		registry:   registry,
		logger:     logging.Component("parking"),
	}
}

// --- ParkingLot ---

func (s *ParkingService) CreateParkingLot(ctx context.Context, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	lot := &domain.ParkingLot{}
	if err := applyLotDTO(lot, dto); err != nil {
		return nil, err
	}
	created, err := s.lotRepo.Create(ctx, lot)
	if err != nil {
		if errors.Is(err, repository.ErrOutOfRange) {
			return nil, ErrOccupancyOutOfRange
		}
		return nil, err
	}
	s.logger.Info().Int("lot_id", created.ID).Str("name", created.Name).Msg("parking lot created")
	return created, nil
}

func (s *ParkingService) GetParkingLotByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	return s.lotRepo.FindByID(ctx, id)
}

func (s *ParkingService) GetAllParkingLots(ctx context.Context) ([]domain.ParkingLot, error) {
	return s.lotRepo.FindAll(ctx)
}

func (s *ParkingService) UpdateParkingLot(ctx context.Context, id int, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	lot, err := s.lotRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyLotDTO(lot, dto); err != nil {
		return nil, err
	}
	updated, err := s.lotRepo.Update(ctx, lot)
	if err != nil {
		if errors.Is(err, repository.ErrOutOfRange) {
			return nil, ErrOccupancyOutOfRange
		}
		return nil, err
	}
	return updated, nil
}

// DeleteParkingLot refuses to remove a lot that still has cameras.
func (s *ParkingService) DeleteParkingLot(ctx context.Context, id int) error {
	cameras, err := s.cameraRepo.FindByLotID(ctx, id)
	if err != nil {
		return fmt.Errorf("checking cameras of lot %d: %w", id, err)
	}
	if len(cameras) > 0 {
		return fmt.Errorf("parking lot %d still has %d camera(s): %w", id, len(cameras), repository.ErrConflict)
	}
	if err := s.lotRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int("lot_id", id).Msg("parking lot deleted")
	return nil
}

func applyLotDTO(lot *domain.ParkingLot, dto domain.ParkingLotDTO) error {
	if dto.FreeSpots < 0 || dto.FreeSpots > dto.Capacity {
		return ErrOccupancyOutOfRange
	}
	lot.Name = dto.Name
	if dto.Latitude != nil {
		lot.Latitude = *dto.Latitude
	}
	if dto.Longitude != nil {
		lot.Longitude = *dto.Longitude
	}
	lot.LocationName = dto.LocationName
	lot.FreeSpots = dto.FreeSpots
	lot.Capacity = dto.Capacity
	return nil
}

// --- Camera ---

func (s *ParkingService) CreateCamera(ctx context.Context, dto domain.CameraDTO) (*domain.Camera, error) {
	cam := &domain.Camera{}
	if err := s.applyCameraDTO(ctx, cam, dto); err != nil {
		return nil, err
	}
	created, err := s.cameraRepo.Create(ctx, cam)
	if err != nil {
		return nil, mapCameraWriteError(err)
	}
	s.logger.Info().Int("camera_id", created.ID).Int("lot_id", created.ParkingLotID).Msg("camera registered")
	return created, nil
}

func (s *ParkingService) GetCameraByID(ctx context.Context, id int) (*domain.Camera, error) {
	return s.cameraRepo.FindByID(ctx, id)
}

func (s *ParkingService) GetAllCameras(ctx context.Context) ([]domain.Camera, error) {
	return s.cameraRepo.FindAll(ctx)
}

func (s *ParkingService) GetCamerasByLotID(ctx context.Context, lotID int) ([]domain.Camera, error) {
	if _, err := s.lotRepo.FindByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.cameraRepo.FindByLotID(ctx, lotID)
}

func (s *ParkingService) UpdateCamera(ctx context.Context, id int, dto domain.CameraDTO) (*domain.Camera, error) {
	cam, err := s.cameraRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previousCredential := cam.API
	if err := s.applyCameraDTO(ctx, cam, dto); err != nil {
		return nil, err
	}
	updated, err := s.cameraRepo.Update(ctx, cam)
	if err != nil {
		return nil, mapCameraWriteError(err)
	}
	s.registry.InvalidateCredential(previousCredential)
	s.registry.Invalidate(id)
	return updated, nil
}

func (s *ParkingService) DeleteCamera(ctx context.Context, id int) error {
	if err := s.cameraRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.registry.Invalidate(id)
	s.logger.Info().Int("camera_id", id).Msg("camera deleted")
	return nil
}

func (s *ParkingService) applyCameraDTO(ctx context.Context, cam *domain.Camera, dto domain.CameraDTO) error {
	if len(dto.Config) > 0 && !json.Valid(dto.Config) {
		return ErrInvalidCameraConfig
	}
	if _, err := s.lotRepo.FindByID(ctx, dto.ParkingLotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidReference
		}
		return err
	}
	cam.Name = dto.Name
	cam.ParkingLotID = dto.ParkingLotID
	cam.API = dto.API
	cam.Config = dto.Config
	return nil
}

func mapCameraWriteError(err error) error {
	// The repository reports a dangling lot FK as ErrNotFound.
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidReference
	}
	return err
}
