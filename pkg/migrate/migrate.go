package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the migrations directory in the source tree; create and
// validate work on it.
const DefaultDir = "pkg/migrate/migrations"

// EmbeddedDir selects the migrations compiled into the binary.
const EmbeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Files exposes the embedded migrations.
func Files() fs.FS {
	return embedded
}

func source(dir string) (fs.FS, error) {
	switch dir {
	case "":
		return nil, errors.New("migration dir is required")
	case EmbeddedDir:
		return fs.Sub(embedded, EmbeddedDir)
	default:
		return os.DirFS(dir), nil
	}
}

// provider binds db to the migrations in dir. The provider is never closed
// because Close would close db, which the caller owns.
func provider(db *sql.DB, dialect goose.Dialect, dir string) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	fsys, err := source(dir)
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("load migrations from %s: %w", dir, err)
	}
	return p, nil
}

// Run executes up, down or status against Postgres. Applied versions and
// the status table are written to out.
func Run(ctx context.Context, db *sql.DB, dir, command string, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	p, err := provider(db, goose.DialectPostgres, dir)
	if err != nil {
		return err
	}
	switch command {
	case "up":
		results, err := p.Up(ctx)
		report(out, results...)
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "no pending migrations")
		}
	case "down":
		result, err := p.Down(ctx)
		if result != nil {
			report(out, result)
		}
		if err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-20s %s\n", applied, s.Source.Path)
		}
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	return nil
}

func report(out io.Writer, results ...*goose.MigrationResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		fmt.Fprintf(out, "%-4s %s (%s)\n", r.Direction, r.Source.Path, r.Duration)
	}
}

// Apply runs every embedded migration against db using the given goose
// dialect. Repository tests use it with "sqlite3" so they exercise the same
// schema, partial unique indexes included, that production runs.
func Apply(ctx context.Context, db *sql.DB, dialect string) error {
	if dialect == "" {
		dialect = string(goose.DialectPostgres)
	}
	p, err := provider(db, goose.Dialect(dialect), EmbeddedDir)
	if err != nil {
		return err
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until targetVersion is the
// newest applied migration.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil || len(targetVersion) != len(versionLayout) {
		return fmt.Errorf("invalid version %q, want %s", targetVersion, versionLayout)
	}
	p, err := provider(db, goose.DialectPostgres, dir)
	if err != nil {
		return err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}
	switch {
	case current < target:
		_, err = p.UpTo(ctx, target)
	case current > target:
		_, err = p.DownTo(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
