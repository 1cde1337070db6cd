package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestForDialect_ReturnsBothSchemas(t *testing.T) {
	for _, dialect := range []string{DialectPostgres, DialectSQLite, "sqlite3", "postgresql"} {
		fsys, err := ForDialect(dialect)
		if err != nil {
			t.Fatalf("for dialect %s: %v", dialect, err)
		}
		matches, err := fs.Glob(fsys, "*.up.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", dialect, err)
		}
		if len(matches) != 2 {
			t.Fatalf("expected 2 %s up migrations, got %d", dialect, len(matches))
		}
	}
	if _, err := ForDialect("mysql"); err == nil {
		t.Fatalf("expected unsupported dialect to fail")
	}
}

func TestRegister_DedupesDialects(t *testing.T) {
	var calls []string
	err := Register(context.Background(), func(_ context.Context, dialect string, fsys fs.FS) error {
		calls = append(calls, dialect)
		if _, err := fs.Stat(fsys, "00001_orderfeed_core_schema.up.sql"); err != nil {
			t.Fatalf("expected core schema in %s filesystem: %v", dialect, err)
		}
		return nil
	}, "sqlite3", "SQLite", "postgres")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 2 || calls[0] != DialectSQLite || calls[1] != DialectPostgres {
		t.Fatalf("expected sqlite then postgres, got %v", calls)
	}
}

func TestRegister_RejectsBadInput(t *testing.T) {
	noop := func(context.Context, string, fs.FS) error { return nil }
	if err := Register(context.Background(), nil, DialectSQLite); err == nil {
		t.Fatalf("expected missing register func to fail")
	}
	if err := Register(context.Background(), noop); err == nil {
		t.Fatalf("expected missing dialects to fail")
	}
	if err := Register(context.Background(), noop, "oracle"); err == nil {
		t.Fatalf("expected unknown dialect to fail")
	}
}

func TestNormalizeDialect(t *testing.T) {
	cases := map[string]string{
		"sqlite3":    DialectSQLite,
		"SQLite":     DialectSQLite,
		"postgres":   DialectPostgres,
		"postgresql": DialectPostgres,
		"mysql":      "",
	}
	for input, want := range cases {
		if got := NormalizeDialect(input); got != want {
			t.Fatalf("NormalizeDialect(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := FS()
	for _, name := range []string{"00001_orderfeed_core_schema", "00002_orderfeed_payments_benefits"} {
		for _, dir := range []string{"data/sql/migrations", "data/sql/migrations/sqlite"} {
			for _, suffix := range []string{".up.sql", ".down.sql"} {
				path := dir + "/" + name + suffix
				content, err := fs.ReadFile(root, path)
				if err != nil {
					t.Fatalf("read migration %s: %v", path, err)
				}
				if strings.TrimSpace(string(content)) == "" {
					t.Fatalf("expected migration %s to have SQL content", path)
				}
			}
		}
	}
}

func TestSQLiteSchemaMigrations_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-orderfeed-schema?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(FS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	for _, migration := range []string{
		"00001_orderfeed_core_schema.up.sql",
		"00002_orderfeed_payments_benefits.up.sql",
	} {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply %s: %v", migration, err)
		}
	}

	for _, table := range []string{"marketplace_events", "order_items", "order_payments", "order_benefits"} {
		if countTables(t, db, table) != 1 {
			t.Fatalf("expected table %s after up migrations", table)
		}
	}

	insertEvent := `INSERT INTO marketplace_events (id, event_id, order_id, code) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insertEvent, "row-1", "e1", "o1", "PLC"); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertEvent, "row-2", "e1", "o1", "PLC"); err == nil {
		t.Fatalf("expected unique event id violation")
	}

	insertItem := `INSERT INTO order_items (id, order_id, item_index, name) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insertItem, "item-1", "o1", 0, "Burger"); err != nil {
		t.Fatalf("insert item: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertItem, "item-2", "o1", 0, "Burger"); err == nil {
		t.Fatalf("expected unique order item violation")
	}

	for _, migration := range []string{
		"00002_orderfeed_payments_benefits.down.sql",
		"00001_orderfeed_core_schema.down.sql",
	} {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("rollback %s: %v", migration, err)
		}
	}
	if countTables(t, db, "order_items") != 0 {
		t.Fatalf("expected order_items to be dropped after down migrations")
	}
}

func countTables(t *testing.T, db *sql.DB, name string) int {
	t.Helper()
	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		name,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master for %s: %v", name, err)
	}
	return count
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
