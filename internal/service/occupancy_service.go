package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/metrics"
	"github.com/kirieshkistudios/park-backend/internal/repository"
)

// OccupancyService applies reported free-spot counts to parking lots.
// Concurrent reports for one lot resolve as last-writer-wins; each write is
// a single UPDATE so no report is half applied.
type OccupancyService struct {
	lots   repository.ParkingLotRepository
	logger zerolog.Logger
}

func NewOccupancyService(lots repository.ParkingLotRepository) *OccupancyService {
	return &OccupancyService{lots: lots, logger: logging.Component("occupancy")}
}

func (s *OccupancyService) Apply(ctx context.Context, lotID int, freeSpots int) (*domain.ParkingLot, error) {
	if freeSpots < 0 {
		return nil, ErrOccupancyOutOfRange
	}

	lot, err := s.lots.UpdateFreeSpots(ctx, lotID, freeSpots)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("parking lot %d: %w", lotID, repository.ErrNotFound)
		case errors.Is(err, repository.ErrOutOfRange):
			return nil, ErrOccupancyOutOfRange
		}
		return nil, fmt.Errorf("applying occupancy to lot %d: %w", lotID, err)
	}

	metrics.LotFreeSpots.WithLabelValues(strconv.Itoa(lot.ID)).Set(float64(lot.FreeSpots))
	s.logger.Info().Int("lot_id", lot.ID).Int("free_spots", lot.FreeSpots).Int("capacity", lot.Capacity).Msg("occupancy applied")
	return lot, nil
}
