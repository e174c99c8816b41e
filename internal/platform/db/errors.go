package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// PostgreSQL error codes the engines care about.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// MapError translates driver errors into the shared taxonomy. Errors that are already
// classified, and errors that are not PostgreSQL errors, are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case CodeUniqueViolation:
		return fmt.Errorf("%w: %s", shared.ErrConflict, describeConstraint(pgErr))
	case CodeForeignKeyViolation:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, describeConstraint(pgErr))
	case CodeSerializationFailure, CodeDeadlockDetected:
		return fmt.Errorf("%w: concurrent update, retry the operation", shared.ErrConflict)
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint failure, optionally on
// a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func describeConstraint(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return pgErr.Message
}
