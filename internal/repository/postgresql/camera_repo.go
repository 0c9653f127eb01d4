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

const cameraColumns = `id, name, parking_lot_id, api, config, created_at, updated_at`

type pgCameraRepository struct {
	db *sql.DB
}

func NewPgCameraRepository(db *sql.DB) repository.CameraRepository {
	return &pgCameraRepository{db: db}
}

func scanCamera(row rowScanner, cam *domain.Camera) error {
	var config []byte
	if err := row.Scan(&cam.ID, &cam.Name, &cam.ParkingLotID, &cam.API, &config, &cam.CreatedAt, &cam.UpdatedAt); err != nil {
		return err
	}
	if len(config) > 0 {
		cam.Config = append(cam.Config[:0], config...)
	}
	cam.CreatedAt = cam.CreatedAt.In(time.UTC)
	cam.UpdatedAt = cam.UpdatedAt.In(time.UTC)
	return nil
}

// configArg maps an empty payload to SQL NULL; jsonb rejects empty strings.
func configArg(cam *domain.Camera) any {
	if len(cam.Config) == 0 {
		return nil
	}
	return string(cam.Config)
}

func (r *pgCameraRepository) mapWriteError(op string, cam *domain.Camera, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: camera credential already registered", repository.ErrDuplicateEntry)
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: parking lot %d does not exist", repository.ErrNotFound, cam.ParkingLotID)
	}
	return fmt.Errorf("CameraRepository.%s: %w", op, err)
}

func (r *pgCameraRepository) Create(ctx context.Context, cam *domain.Camera) (*domain.Camera, error) {
	query := `INSERT INTO cameras (name, parking_lot_id, api, config) VALUES ($1, $2, $3, $4) RETURNING ` + cameraColumns
	created := &domain.Camera{}
	if err := scanCamera(r.db.QueryRowContext(ctx, query, cam.Name, cam.ParkingLotID, cam.API, configArg(cam)), created); err != nil {
		return nil, r.mapWriteError("Create", cam, err)
	}
	return created, nil
}

func (r *pgCameraRepository) findOne(ctx context.Context, op, where string, arg any) (*domain.Camera, error) {
	cam := &domain.Camera{}
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE ` + where
	if err := scanCamera(r.db.QueryRowContext(ctx, query, arg), cam); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("CameraRepository.%s: %w", op, err)
	}
	return cam, nil
}

func (r *pgCameraRepository) FindByID(ctx context.Context, id int) (*domain.Camera, error) {
	return r.findOne(ctx, "FindByID", "id = $1", id)
}

func (r *pgCameraRepository) FindByAPI(ctx context.Context, api string) (*domain.Camera, error) {
	return r.findOne(ctx, "FindByAPI", "api = $1", api)
}

func (r *pgCameraRepository) findMany(ctx context.Context, op, query string, args ...any) ([]domain.Camera, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("CameraRepository.%s: %w", op, err)
	}
	defer rows.Close()

	cameras := []domain.Camera{}
	for rows.Next() {
		var cam domain.Camera
		if err := scanCamera(rows, &cam); err != nil {
			return nil, fmt.Errorf("CameraRepository.%s (scanning row): %w", op, err)
		}
		cameras = append(cameras, cam)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("CameraRepository.%s (rows error): %w", op, err)
	}
	return cameras, nil
}

func (r *pgCameraRepository) FindAll(ctx context.Context) ([]domain.Camera, error) {
	return r.findMany(ctx, "FindAll", `SELECT `+cameraColumns+` FROM cameras ORDER BY id`)
}

func (r *pgCameraRepository) FindByLotID(ctx context.Context, lotID int) ([]domain.Camera, error) {
	return r.findMany(ctx, "FindByLotID", `SELECT `+cameraColumns+` FROM cameras WHERE parking_lot_id = $1 ORDER BY id`, lotID)
}

func (r *pgCameraRepository) Update(ctx context.Context, cam *domain.Camera) (*domain.Camera, error) {
	query := `UPDATE cameras SET name = $1, parking_lot_id = $2, api = $3, config = $4, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $5 RETURNING ` + cameraColumns
	updated := &domain.Camera{}
	err := scanCamera(r.db.QueryRowContext(ctx, query, cam.Name, cam.ParkingLotID, cam.API, configArg(cam), cam.ID), updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, r.mapWriteError("Update", cam, err)
	}
	return updated, nil
}

func (r *pgCameraRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("CameraRepository.Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("CameraRepository.Delete (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
