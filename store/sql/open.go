package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type persistenceConfig struct {
	driver      string
	server      string
	debug       bool
	pingTimeout time.Duration
	otelName    string
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return c.pingTimeout
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return c.otelName
}

// Open connects to the configured database and applies the embedded schema
// migrations for its dialect.
func Open(ctx context.Context, cfg core.StorageConfig, serviceName string) (*persistence.Client, error) {
	dialectName := migrations.NormalizeDialect(cfg.Driver)
	if dialectName == "" {
		return nil, core.ConfigError("unsupported storage driver", map[string]any{"driver": cfg.Driver})
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, core.ConfigError("storage dsn is required", map[string]any{"driver": cfg.Driver})
	}

	driverName := "postgres"
	var dialect schema.Dialect = pgdialect.New()
	if dialectName == migrations.DialectSQLite {
		driverName = "sqlite3"
		dialect = sqlitedialect.New()
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driverName, err)
	}
	if dialectName == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{
		driver:      driverName,
		server:      dsn,
		debug:       cfg.Debug,
		pingTimeout: 5 * time.Second,
		otelName:    strings.TrimSpace(serviceName),
	}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	if err := Migrate(ctx, client, dialectName); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Migrate registers the embedded migrations of one dialect and applies them.
func Migrate(ctx context.Context, client *persistence.Client, dialect string) error {
	if client == nil {
		return fmt.Errorf("sqlstore: persistence client is required")
	}
	err := migrations.Register(ctx, func(_ context.Context, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, dialect)
	if err != nil {
		return fmt.Errorf("sqlstore: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}
