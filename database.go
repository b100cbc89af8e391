package users

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

// OpenSQLite opens a sqlite backed bun.DB. Use ":memory:" as the DSN
// for an ephemeral database.
func OpenSQLite(dsn string) (*bun.DB, error) {
	db, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open sqlite database")
	}

	return bun.NewDB(db, sqlitedialect.New()), nil
}

// Migrate applies the embedded schema migrations, in lexical order, to
// the given database. Statements are idempotent so running it on every
// start is safe.
func Migrate(ctx context.Context, db *bun.DB) error {
	root, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open migrations")
	}

	entries, err := fs.ReadDir(root, ".")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to list migrations")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := fs.ReadFile(root, name)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read migration").
				WithMetadata(map[string]any{"migration": name})
		}

		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to apply migration").
				WithMetadata(map[string]any{"migration": name})
		}
	}

	return nil
}
