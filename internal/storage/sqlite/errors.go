package sqlite

import (
	"errors"
	"fmt"

	"github.com/Togather-Foundation/eventhub/internal/storage"
	gosqlite "github.com/glebarez/go-sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// TranslateError maps constraint violations onto the storage sentinels while
// keeping the driver error in the chain. Codes are extended result codes.
func (backend) TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var sqlErr *gosqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %w", storage.ErrReferenced, err)
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", storage.ErrDuplicate, err)
	}
	return err
}
