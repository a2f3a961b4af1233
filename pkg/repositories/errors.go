package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medialert/medialert-engine/pkg/apperrors"
)

// Postgres SQLSTATE codes translated into application errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// translateError wraps err with the failed operation and maps well-known
// driver errors onto apperrors sentinels so handlers can use errors.Is.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return fmt.Errorf("%s: %w (%s)", op, apperrors.ErrConflict, pgErr.ConstraintName)
		case pgCheckViolation, pgNotNullViolation:
			return fmt.Errorf("%s: %w (%s)", op, apperrors.ErrValidation, pgErr.ConstraintName)
		}
	}

	// Sentinels raised inside a transaction callback pass through unchanged.
	for _, sentinel := range []error{
		apperrors.ErrNotFound,
		apperrors.ErrConflict,
		apperrors.ErrValidation,
		apperrors.ErrInactiveUser,
		apperrors.ErrMedicationUnavailable,
		apperrors.ErrLastAdmin,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}
