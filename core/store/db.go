package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"kestrel-irp/config"
	"kestrel-irp/core/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewDB opens the configured backend. Postgres for deployments, sqlite
// for embedded/home mode and tests.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch driver {
	case "postgres":
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	case "", "sqlite":
		path := cfg.DBPath
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// modernc sqlite misbehaves with concurrent writers on one handle.
		db.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

// rebind rewrites ? placeholders to $N ordinals. The pgx stdlib driver
// sends statements verbatim, so Postgres needs the rewrite; sqlite
// accepts ? natively. None of the store queries embed ? in literals.
func rebind(driver, query string) string {
	if strings.ToLower(strings.TrimSpace(driver)) != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func ApplyMigrations(ctx context.Context, db *sql.DB, driver string, logger *utils.Logger) error {
	dialect := "sqlite3"
	if strings.ToLower(strings.TrimSpace(driver)) == "postgres" {
		dialect = "postgres"
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if logger != nil {
		logger.Infof("database migrations up to date (%s)", dialect)
	}
	return nil
}
