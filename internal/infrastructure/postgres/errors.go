package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
)

const uniqueViolation = "23505"

// translateError maps constraint violations onto the domain taxonomy.
// SQLSTATE class 23 is integrity constraint violation.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code == uniqueViolation {
		return domainerr.ErrUserAlreadyExists
	}
	if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		return domainerr.NewIntegrityError(err)
	}
	return err
}
