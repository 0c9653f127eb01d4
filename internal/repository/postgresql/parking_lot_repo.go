package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/repository"
)

const lotColumns = `id, name, latitude, longitude, location_name, free_spots, capacity, occupancy_updated_at, created_at, updated_at`

type pgParkingLotRepository struct {
	db *sql.DB
}

func NewPgParkingLotRepository(db *sql.DB) repository.ParkingLotRepository {
	return &pgParkingLotRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLot(row rowScanner, lot *domain.ParkingLot) error {
	err := row.Scan(&lot.ID, &lot.Name, &lot.Latitude, &lot.Longitude, &lot.LocationName,
		&lot.FreeSpots, &lot.Capacity, &lot.OccupancyUpdatedAt, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return err
	}
	lot.CreatedAt = lot.CreatedAt.In(time.UTC)
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	if lot.OccupancyUpdatedAt.Valid {
		lot.OccupancyUpdatedAt.Time = lot.OccupancyUpdatedAt.Time.In(time.UTC)
	}
	return nil
}

func (r *pgParkingLotRepository) Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	query := `INSERT INTO parking_lots (name, latitude, longitude, location_name, free_spots, capacity)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING ` + lotColumns
	row := r.db.QueryRowContext(ctx, query, lot.Name, lot.Latitude, lot.Longitude, lot.LocationName, lot.FreeSpots, lot.Capacity)
	created := &domain.ParkingLot{}
	if err := scanLot(row, created); err != nil {
		if isCheckViolation(err) {
			return nil, repository.ErrOutOfRange
		}
		return nil, fmt.Errorf("ParkingLotRepository.Create: %w", err)
	}
	return created, nil
}

func (r *pgParkingLotRepository) FindByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	lot := &domain.ParkingLot{}
	query := `SELECT ` + lotColumns + ` FROM parking_lots WHERE id = $1`
	if err := scanLot(r.db.QueryRowContext(ctx, query, id), lot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingLotRepository.FindByID: %w", err)
	}
	return lot, nil
}

func (r *pgParkingLotRepository) FindAll(ctx context.Context) ([]domain.ParkingLot, error) {
	query := `SELECT ` + lotColumns + ` FROM parking_lots ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	lots := []domain.ParkingLot{}
	for rows.Next() {
		var lot domain.ParkingLot
		if err := scanLot(rows, &lot); err != nil {
			return nil, fmt.Errorf("ParkingLotRepository.FindAll (scanning row): %w", err)
		}
		lots = append(lots, lot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.FindAll (rows error): %w", err)
	}
	return lots, nil
}

func (r *pgParkingLotRepository) Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	query := `UPDATE parking_lots
	          SET name = $1, latitude = $2, longitude = $3, location_name = $4, free_spots = $5, capacity = $6,
	              updated_at = CURRENT_TIMESTAMP
	          WHERE id = $7 RETURNING ` + lotColumns
	row := r.db.QueryRowContext(ctx, query, lot.Name, lot.Latitude, lot.Longitude, lot.LocationName, lot.FreeSpots, lot.Capacity, lot.ID)
	updated := &domain.ParkingLot{}
	if err := scanLot(row, updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		if isCheckViolation(err) {
			return nil, repository.ErrOutOfRange
		}
		return nil, fmt.Errorf("ParkingLotRepository.Update: %w", err)
	}
	return updated, nil
}

func (r *pgParkingLotRepository) UpdateFreeSpots(ctx context.Context, id int, freeSpots int) (*domain.ParkingLot, error) {
	query := `UPDATE parking_lots
	          SET free_spots = $1, occupancy_updated_at = CURRENT_TIMESTAMP
	          WHERE id = $2 AND $1 >= 0 AND $1 <= capacity
	          RETURNING ` + lotColumns
	lot := &domain.ParkingLot{}
	err := scanLot(r.db.QueryRowContext(ctx, query, freeSpots, id), lot)
	if err == nil {
		return lot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ParkingLotRepository.UpdateFreeSpots: %w", err)
	}

	// No row matched: either the lot is gone or the count is out of range.
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM parking_lots WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.UpdateFreeSpots (checking existence): %w", err)
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrOutOfRange
}

func (r *pgParkingLotRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parking_lots WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: parking lot %d still has cameras", repository.ErrConflict, id)
		}
		return fmt.Errorf("ParkingLotRepository.Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ParkingLotRepository.Delete (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
