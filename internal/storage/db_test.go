package storage

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"docsearch/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `100\% \_x\\y`, escapeLike(`100% _x\y`))
	require.Equal(t, "TCVN 4054", escapeLike("TCVN 4054"))
}

func TestClassifyMarksConnectionFailures(t *testing.T) {
	require.NoError(t, Classify("noop", nil))

	shutdown := &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"}
	require.ErrorIs(t, Classify("query", shutdown), util.ErrStoreUnavailable)
	require.ErrorIs(t, Classify("query", context.DeadlineExceeded), util.ErrStoreUnavailable)

	unique := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	err := Classify("insert chunk", unique)
	require.NotErrorIs(t, err, util.ErrStoreUnavailable)
	require.True(t, errors.As(err, new(*pgconn.PgError)))

	require.NotErrorIs(t, Classify("get", pgx.ErrNoRows), util.ErrStoreUnavailable)
}

func TestMigrationsSeedMainWorkspace(t *testing.T) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	raw, err := migrationFS.ReadFile(names[0])
	require.NoError(t, err)
	sql := string(raw)
	require.Contains(t, sql, "ON DELETE CASCADE")
	require.True(t, strings.Contains(sql, "VALUES ('main'"), "main workspace must be seeded")
}
