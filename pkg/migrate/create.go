package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"go.uber.org/multierr"
)

// versionLayout is the goose version prefix of every migration file.
const versionLayout = "20060102150405"

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

var skeleton = template.Must(template.New("migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{ .Slug }}
-- soft-deletable tables keep deleted_at and enforce uniqueness with
-- partial indexes (WHERE deleted_at IS NULL)
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert {{ .Slug }}
-- +goose StatementEnd
`))

// Slug turns a free-form description into the name part of a migration
// file: lower case, runs of anything else collapsed to one underscore.
func Slug(name string) string {
	return strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<slug>.sql and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	return createAt(dir, name, time.Now().UTC())
}

func createAt(dir, name string, now time.Time) (path string, err error) {
	if dir == "" {
		return "", errors.New("migration dir required")
	}
	slug := Slug(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	path = filepath.Join(dir, now.Format(versionLayout)+"_"+slug+".sql")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("migration %s already exists", path)
		}
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	if err := skeleton.Execute(f, struct{ Slug string }{slug}); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
