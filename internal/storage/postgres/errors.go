package postgres

import (
	"errors"
	"fmt"

	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

// TranslateError maps constraint violations onto the storage sentinels while
// keeping the driver error in the chain.
func (backend) TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case foreignKeyViolation:
		return fmt.Errorf("%w: %w", storage.ErrReferenced, err)
	case uniqueViolation:
		return fmt.Errorf("%w: %w", storage.ErrDuplicate, err)
	}
	return err
}
