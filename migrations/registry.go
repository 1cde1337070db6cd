package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	postgresDir = "data/sql/migrations"
	sqliteDir   = "data/sql/migrations/sqlite"
)

// migrationsFS holds the orderfeed schema with the sqlite variants under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// FS returns the full embedded migration tree.
func FS() fs.FS {
	return migrationsFS
}

// RegisterFunc receives the migration filesystem of one dialect, typically
// forwarding it to persistence.Client.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, fsys fs.FS) error

// NormalizeDialect maps driver names onto a migration dialect. Unknown names
// return an empty string.
func NormalizeDialect(name string) string {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres
	default:
		return ""
	}
}

// ForDialect returns the migrations of a dialect rooted at their directory.
// The filesystem must hold at least one *.up.sql file.
func ForDialect(dialect string) (fs.FS, error) {
	var dir string
	switch NormalizeDialect(dialect) {
	case DialectPostgres:
		dir = postgresDir
	case DialectSQLite:
		dir = sqliteDir
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", dir, err)
	}
	ups, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", dir, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", dir)
	}
	return sub, nil
}

// Register hands the filesystem of each requested dialect to registerFn.
// Repeated dialects, in any spelling, register once.
func Register(ctx context.Context, registerFn RegisterFunc, dialects ...string) error {
	if registerFn == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	if len(dialects) == 0 {
		return fmt.Errorf("migrations: at least one dialect is required")
	}

	seen := map[string]bool{}
	for _, raw := range dialects {
		dialect := NormalizeDialect(raw)
		if dialect == "" {
			return fmt.Errorf("migrations: unsupported dialect %q", raw)
		}
		if seen[dialect] {
			continue
		}
		seen[dialect] = true

		fsys, err := ForDialect(dialect)
		if err != nil {
			return err
		}
		if err := registerFn(ctx, dialect, fsys); err != nil {
			return fmt.Errorf("migrations: register %s: %w", dialect, err)
		}
	}
	return nil
}
