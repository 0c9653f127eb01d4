//go:build integration

package postgresql

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kirieshkistudios/park-backend/internal/config"
	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/repository"
)

// startPostgres runs a throwaway PostgreSQL container and returns the
// settings to reach it. Run with: go test -tags integration ./internal/repository/...
func startPostgres(t *testing.T) *config.Config {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "park",
				"POSTGRES_PASSWORD": "park",
				"POSTGRES_DB":       "park",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) }) //nolint:errcheck

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	return &config.Config{
		DBDriver:       "pgx",
		DBHost:         host,
		DBPort:         port.Int(),
		DBUser:         "park",
		DBPassword:     "park",
		DBName:         "park",
		DBSslMode:      "disable",
		DBMaxOpenConns: 10,
	}
}

func TestUpdateFreeSpotsAgainstPostgres(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	for _, driver := range []string{"pgx", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			cfg.DBDriver = driver
			db, err := NewDB(cfg)
			if err != nil {
				t.Fatalf("NewDB: %v", err)
			}
			defer db.Close()
			if err := Migrate(ctx, db); err != nil {
				t.Fatalf("Migrate: %v", err)
			}

			repo := NewPgParkingLotRepository(db)
			lot, err := repo.Create(ctx, &domain.ParkingLot{Name: "Central " + driver, Capacity: 50, FreeSpots: 50})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if lot.OccupancyUpdatedAt.Valid {
				t.Error("new lot should have no occupancy timestamp")
			}

			updated, err := repo.UpdateFreeSpots(ctx, lot.ID, 12)
			if err != nil {
				t.Fatalf("UpdateFreeSpots: %v", err)
			}
			if updated.FreeSpots != 12 || updated.Capacity != 50 || updated.Name != lot.Name {
				t.Errorf("updated lot = %+v", updated)
			}
			if !updated.OccupancyUpdatedAt.Valid {
				t.Error("occupancy timestamp not set")
			}

			for _, bad := range []int{-1, 51} {
				if _, err := repo.UpdateFreeSpots(ctx, lot.ID, bad); !errors.Is(err, repository.ErrOutOfRange) {
					t.Errorf("free=%d: err = %v, want ErrOutOfRange", bad, err)
				}
			}
			if _, err := repo.UpdateFreeSpots(ctx, lot.ID+100000, 1); !errors.Is(err, repository.ErrNotFound) {
				t.Errorf("missing lot: err = %v, want ErrNotFound", err)
			}

			got, err := repo.FindByID(ctx, lot.ID)
			if err != nil {
				t.Fatalf("FindByID: %v", err)
			}
			if got.FreeSpots != 12 {
				t.Errorf("rejected writes changed free_spots to %d", got.FreeSpots)
			}

			var wg sync.WaitGroup
			for i := 0; i <= 20; i++ {
				wg.Add(1)
				go func(free int) {
					defer wg.Done()
					if _, err := repo.UpdateFreeSpots(ctx, lot.ID, free); err != nil {
						t.Errorf("concurrent UpdateFreeSpots(%d): %v", free, err)
					}
				}(i)
			}
			wg.Wait()
			got, err = repo.FindByID(ctx, lot.ID)
			if err != nil {
				t.Fatalf("FindByID: %v", err)
			}
			if got.FreeSpots < 0 || got.FreeSpots > 20 {
				t.Errorf("free_spots after concurrent writes = %d", got.FreeSpots)
			}
		})
	}
}
