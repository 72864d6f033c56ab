package accounts

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenSQLite opens a bun handle over the pure-Go SQLite shim. Use
// ":memory:" for throwaway databases in tests and examples.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// RunMigrations applies the embedded schema migrations in lexical order.
func RunMigrations(ctx context.Context, db *bun.DB) error {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open embedded migrations")
	}

	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list embedded migrations")
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		files = append(files, entry.Name())
	}

	sort.Strings(files)

	for _, name := range files {
		content, err := fs.ReadFile(sub, name)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read migration "+name)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migration "+name)
		}
	}

	return nil
}
