package migrate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateFS(Files(), EmbeddedDir))
}

func TestMigrationsDeclarePartialUniqueIndexes(t *testing.T) {
	want := map[string][]string{
		"create_customers": {
			"ux_customers_email_active ON customers (email) WHERE deleted_at IS NULL",
			"ux_customers_phone_active ON customers (phone) WHERE deleted_at IS NULL",
		},
		"create_contactors": {
			"ux_contactors_email_active ON contactors (email) WHERE deleted_at IS NULL",
		},
		"create_warehouses": {
			"ux_warehouses_code_active ON warehouses (code) WHERE deleted_at IS NULL",
		},
		"create_inventory": {
			"ux_inventory_items_sku_active ON inventory_items (warehouse_id, sku) WHERE deleted_at IS NULL",
			"CHECK (quantity >= 0)",
			"idx_inventory_history_item ON inventory_history (item_id, created_at DESC, id DESC)",
		},
	}

	for suffix, statements := range want {
		body := readMigration(t, suffix)
		for _, stmt := range statements {
			require.Containsf(t, body, stmt, "migration %s", suffix)
		}
	}
}

func TestApplyEnforcesActiveUniqueness(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	require.NoError(t, Apply(context.Background(), sqlDB, "sqlite3"))

	insert := `INSERT INTO customers (id, first_name, last_name, email, created_at, updated_at, deleted_at)
		VALUES (?, 'Ada', 'Lovelace', 'ada@example.com', '2026-01-01', '2026-01-01', ?)`

	require.NoError(t, conn.Exec(insert, "00000000-0000-0000-0000-000000000001", "2026-01-02").Error)
	require.NoError(t, conn.Exec(insert, "00000000-0000-0000-0000-000000000002", nil).Error)

	err = conn.Exec(insert, "00000000-0000-0000-0000-000000000003", nil).Error
	require.Error(t, err)
	require.Contains(t, err.Error(), "UNIQUE constraint failed")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Supplier Notes!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_supplier_notes.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestCreateRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := createAt(dir, "seed regions", at)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260301090000_seed_regions.sql"), path)

	_, err = createAt(dir, "Seed  Regions", at)
	require.ErrorContains(t, err, "already exists")
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("001_bad.sql", "-- +goose Up\n-- +goose Down\n")
	write("20260301090000_flipped.sql", "-- +goose Down\n-- +goose Up\n")
	write("20260301090100_open.sql", "-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")

	err := ValidateDir(dir)
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3)
	require.ErrorContains(t, err, "Down section precedes Up")
	require.ErrorContains(t, err, "1 StatementBegin against 0 StatementEnd")

	require.Error(t, ValidateDir(t.TempDir()))
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(Files(), EmbeddedDir+"/*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected one %s migration", suffix)
	body, err := fs.ReadFile(Files(), matches[0])
	require.NoError(t, err)
	return string(body)
}
