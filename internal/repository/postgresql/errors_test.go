package postgresql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestPgCodeRecognisesBothDrivers(t *testing.T) {
	pgxErr := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505", ConstraintName: "cameras_api_key"})
	pqErr := &pq.Error{Code: "23503", Constraint: "cameras_parking_lot_id_fkey"}

	if !isUniqueViolation(pgxErr) {
		t.Error("expected pgx unique violation to be recognised")
	}
	if _, constraint := pgCode(pgxErr); constraint != "cameras_api_key" {
		t.Errorf("constraint = %q", constraint)
	}
	if !isForeignKeyViolation(pqErr) {
		t.Error("expected pq foreign key violation to be recognised")
	}
	if isUniqueViolation(pqErr) {
		t.Error("foreign key violation reported as unique violation")
	}
	if isCheckViolation(errors.New("plain")) {
		t.Error("plain error reported as check violation")
	}
}
