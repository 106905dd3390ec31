package storagetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/storage/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// SQLite opens an empty database in a temporary directory and closes it when
// the test ends.
func SQLite(t testing.TB) *sqlite.Database {
	t.Helper()
	db, err := sqlite.Open(context.Background(), config.DatabaseConfig{
		URL: filepath.Join(t.TempDir(), "eventhub.db"),
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}
