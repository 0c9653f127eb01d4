package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/repository"
)

// CameraRegistry resolves camera credentials and camera ids. Credential
// lookups are cached until the camera is changed through ParkingService.
type CameraRegistry struct {
	cameras repository.CameraRepository
	lots    repository.ParkingLotRepository

	mu           sync.RWMutex
	byCredential map[string]domain.Camera
	// generation advances on every invalidation. A lookup that started
	// under an older generation must not populate the cache.
	generation uint64

	logger zerolog.Logger
}

func NewCameraRegistry(cameras repository.CameraRepository, lots repository.ParkingLotRepository) *CameraRegistry {
	return &CameraRegistry{
		cameras:      cameras,
		lots:         lots,
		byCredential: make(map[string]domain.Camera),
		logger:       logging.Component("camera_registry"),
	}
}

func (r *CameraRegistry) ResolveByCredential(ctx context.Context, token string) (*domain.Camera, error) {
	if token == "" {
		return nil, ErrUnknownCamera
	}

	r.mu.RLock()
	cached, ok := r.byCredential[token]
	gen := r.generation
	r.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	cam, err := r.cameras.FindByAPI(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownCamera
		}
		return nil, fmt.Errorf("resolving camera credential: %w", err)
	}

	r.mu.Lock()
	stale := r.generation != gen
	if !stale {
		r.byCredential[token] = *cam
	}
	r.mu.Unlock()
	if stale {
		r.logger.Debug().Int("camera_id", cam.ID).Msg("camera changed during lookup, not caching credential")
	} else {
		r.logger.Debug().Int("camera_id", cam.ID).Msg("cached camera credential")
	}
	return cam, nil
}

// ResolveLotForCamera returns the lot owning the camera. A missing camera
// and a missing lot both count as an unknown camera.
func (r *CameraRegistry) ResolveLotForCamera(ctx context.Context, cameraID int) (*domain.ParkingLot, error) {
	cam, err := r.cameras.FindByID(ctx, cameraID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownCamera
		}
		return nil, fmt.Errorf("resolving camera %d: %w", cameraID, err)
	}

	lot, err := r.lots.FindByID(ctx, cam.ParkingLotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn().Int("camera_id", cameraID).Int("lot_id", cam.ParkingLotID).Msg("camera references a missing parking lot")
			return nil, ErrUnknownCamera
		}
		return nil, fmt.Errorf("resolving parking lot %d: %w", cam.ParkingLotID, err)
	}
	return lot, nil
}

// Invalidate drops every cached credential that maps to cameraID.
func (r *CameraRegistry) Invalidate(cameraID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	for token, cam := range r.byCredential {
		if cam.ID == cameraID {
			delete(r.byCredential, token)
		}
	}
}

func (r *CameraRegistry) InvalidateCredential(token string) {
	r.mu.Lock()
	r.generation++
	delete(r.byCredential, token)
	r.mu.Unlock()
}
