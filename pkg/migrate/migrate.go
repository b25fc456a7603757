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
	"path/filepath"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source picks the migration set for dir: the embedded copy for the default
// location, the directory on disk otherwise.
func Source(dir string) fs.FS {
	if dir == "" || filepath.Clean(dir) == DefaultDir {
		return Embedded()
	}
	return os.DirFS(dir)
}

func provider(db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		fsys = Embedded()
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, nil
}

// Run executes up, down or status against db. Progress lines go to out.
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, command string, out io.Writer) error {
	p, err := provider(db, fsys)
	if err != nil {
		return err
	}
	if out == nil {
		out = io.Discard
	}

	switch command {
	case "up":
		results, err := p.Up(ctx)
		report(out, results...)
		return wrap(command, err)
	case "down":
		result, err := p.Down(ctx)
		if result != nil {
			report(out, result)
		}
		return wrap(command, err)
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return wrap(command, err)
		}
		for _, st := range statuses {
			applied := "pending"
			if st.State == goose.StateApplied {
				applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-20s %s\n", applied, st.Source.Path)
		}
		return nil
	default:
		return fmt.Errorf("unsupported goose command %q", command)
	}
}

// MigrateToVersion moves the schema up or down until target is the current version.
func MigrateToVersion(ctx context.Context, db *sql.DB, fsys fs.FS, targetVersion string, out io.Writer) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	p, err := provider(db, fsys)
	if err != nil {
		return err
	}
	if out == nil {
		out = io.Discard
	}

	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil
	case current < target:
		results, err = p.UpTo(ctx, target)
	default:
		results, err = p.DownTo(ctx, target)
	}
	report(out, results...)
	return wrap(fmt.Sprintf("migrate to %d", target), err)
}

func report(out io.Writer, results ...*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		fmt.Fprintf(out, "%-4s %s (%s)\n", r.Direction, filepath.Base(r.Source.Path), r.Duration)
	}
}

func wrap(command string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}
