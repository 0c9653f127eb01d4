package repository

import (
	"context"
	"errors"

	"github.com/kirieshkistudios/park-backend/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")
var ErrConflict = errors.New("record is referenced by other records")
var ErrOutOfRange = errors.New("value violates parking lot capacity")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	FindAll(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	Delete(ctx context.Context, id int) error
}

type ParkingLotRepository interface {
	Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	FindByID(ctx context.Context, id int) (*domain.ParkingLot, error)
	FindAll(ctx context.Context) ([]domain.ParkingLot, error)
	Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	// UpdateFreeSpots replaces only free_spots in a single statement. It
	// returns ErrOutOfRange when freeSpots is outside [0, capacity].
	UpdateFreeSpots(ctx context.Context, id int, freeSpots int) (*domain.ParkingLot, error)
	Delete(ctx context.Context, id int) error
}

type CameraRepository interface {
	Create(ctx context.Context, camera *domain.Camera) (*domain.Camera, error)
	FindByID(ctx context.Context, id int) (*domain.Camera, error)
	FindByAPI(ctx context.Context, api string) (*domain.Camera, error)
	FindAll(ctx context.Context) ([]domain.Camera, error)
	FindByLotID(ctx context.Context, lotID int) ([]domain.Camera, error)
	Update(ctx context.Context, camera *domain.Camera) (*domain.Camera, error)
	Delete(ctx context.Context, id int) error
}
