package repo

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/db/dbtest"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

func newCustomerRepo(t *testing.T) (*SoftDelete[models.Customer, uuid.UUID], *gorm.DB) {
	t.Helper()
	client := dbtest.Open(t)
	r := NewSoftDelete[models.Customer, uuid.UUID](client.DB(), Options{
		Sortable: map[string]string{"email": "email", "lastName": "last_name"},
		Unique:   []string{"email", "phone"},
	})
	return r, client.DB()
}

func seedCustomer(t *testing.T, r *SoftDelete[models.Customer, uuid.UUID], email string) *models.Customer {
	t.Helper()
	c := &models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: email}
	require.NoError(t, r.Create(context.Background(), c))
	require.NotEqual(t, uuid.Nil, c.ID)
	return c
}

func TestSoftDeleteHidesRowFromActiveView(t *testing.T) {
	ctx := context.Background()
	r, _ := newCustomerRepo(t)
	c := seedCustomer(t, r, "a@example.com")

	n, err := r.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err := r.FindActiveByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	row, err := r.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.NotNil(t, row.DeletedAt)

	activeRows, err := r.FindAllByVisibility(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, activeRows)

	deletedRows, err := r.FindAllByVisibility(ctx, true)
	require.NoError(t, err)
	require.Len(t, deletedRows, 1)
	assert.Equal(t, c.ID, deletedRows[0].ID)
}

func TestSoftDeleteIsNoopForMissingOrDeletedRows(t *testing.T) {
	ctx := context.Background()
	r, _ := newCustomerRepo(t)
	c := seedCustomer(t, r, "a@example.com")

	n, err := r.SoftDelete(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	n, err = r.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRestoreOnlyTouchesDeletedRows(t *testing.T) {
	ctx := context.Background()
	r, _ := newCustomerRepo(t)
	c := seedCustomer(t, r, "a@example.com")

	n, err := r.Restore(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "restoring an active row changes nothing")

	_, err = r.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	deleted, err := r.FindByID(ctx, c.ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	n, err = r.Restore(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	restored, err := r.FindActiveByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, c.Email, restored.Email)
	assert.True(t, restored.UpdatedAt.After(deleted.UpdatedAt))
}

func TestVisibilityPartitionsCollection(t *testing.T) {
	ctx := context.Background()
	r, conn := newCustomerRepo(t)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, seedCustomer(t, r, fmt.Sprintf("c%d@example.com", i)).ID)
	}
	for _, id := range ids[:2] {
		_, err := r.SoftDelete(ctx, id)
		require.NoError(t, err)
	}

	active, err := r.FindAllByVisibility(ctx, false)
	require.NoError(t, err)
	deleted, err := r.FindAllByVisibility(ctx, true)
	require.NoError(t, err)

	var all []models.Customer
	require.NoError(t, conn.Find(&all).Error)

	seen := map[uuid.UUID]int{}
	for _, c := range append(active, deleted...) {
		seen[c.ID]++
	}
	assert.Len(t, active, 3)
	assert.Len(t, deleted, 2)
	assert.Len(t, seen, len(all))
	for id, count := range seen {
		assert.Equal(t, 1, count, "row %s appears in both views", id)
	}
}

func TestFindPageOrdersDeterministically(t *testing.T) {
	ctx := context.Background()
	r, conn := newCustomerRepo(t)
	stamp := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		c := seedCustomer(t, r, fmt.Sprintf("p%d@example.com", i))
		// identical created_at forces the id tie-break
		require.NoError(t, conn.Model(&models.Customer{}).Where("id = ?", c.ID).
			Update("created_at", stamp).Error)
	}

	req := pagination.NewPageRequest(0, 3, "", "")
	first, total, err := r.FindPage(ctx, req, false)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, first, 3)

	again, _, err := r.FindPage(ctx, req, false)
	require.NoError(t, err)
	for i := range first {
		assert.Equal(t, first[i].ID, again[i].ID)
	}

	last, _, err := r.FindPage(ctx, pagination.NewPageRequest(2, 3, "", ""), false)
	require.NoError(t, err)
	assert.Len(t, last, 1)

	beyond, total, err := r.FindPage(ctx, pagination.NewPageRequest(9, 3, "", ""), false)
	require.NoError(t, err)
	assert.Empty(t, beyond)
	assert.Equal(t, int64(7), total)
}

func TestFindPageFarBeyondTheEndIsEmpty(t *testing.T) {
	ctx := context.Background()
	r, _ := newCustomerRepo(t)
	for i := 0; i < 3; i++ {
		seedCustomer(t, r, fmt.Sprintf("far%d@example.com", i))
	}

	for _, size := range []int{50, pagination.MaxSize} {
		rows, total, err := r.FindPage(ctx, pagination.NewPageRequest(math.MaxInt64/50, size, "", ""), false)
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.Equal(t, int64(3), total)
	}
}

func TestFindPageSortsByWhitelistedField(t *testing.T) {
	ctx := context.Background()
	r, _ := newCustomerRepo(t)
	for _, email := range []string{"b@example.com", "c@example.com", "a@example.com"} {
		seedCustomer(t, r, email)
	}

	rows, _, err := r.FindPage(ctx, pagination.NewPageRequest(0, 10, "email", "asc"), false)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a@example.com", rows[0].Email)
	assert.Equal(t, "c@example.com", rows[2].Email)

	_, _, err = r.FindPage(ctx, pagination.NewPageRequest(0, 10, "password", ""), false)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, _, err = r.FindPage(ctx, pagination.NewPageRequest(0, 10, "email", "sideways"), false)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestFindByUniqueRespectsVisibility(t *testing.T) {
	ctx := context.Background()
	r, _ := newCustomerRepo(t)
	c := seedCustomer(t, r, "a@example.com")

	found, err := r.FindByUnique(ctx, "email", "a@example.com", false)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, c.ID, found.ID)

	found, err = r.FindByUnique(ctx, "email", "a@example.com", true)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = r.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	found, err = r.FindByUnique(ctx, "email", "a@example.com", true)
	require.NoError(t, err)
	require.NotNil(t, found)

	_, err = r.FindByUnique(ctx, "first_name", "Ada", false)
	assert.Error(t, err)
}

func TestUniqueIndexOnlyCoversActiveRows(t *testing.T) {
	ctx := context.Background()
	r, _ := newCustomerRepo(t)
	first := seedCustomer(t, r, "a@example.com")

	dup := &models.Customer{FirstName: "B", LastName: "B", Email: "a@example.com"}
	err := r.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))

	_, err = r.SoftDelete(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, r.Create(ctx, &models.Customer{FirstName: "C", LastName: "C", Email: "a@example.com"}))

	_, err = r.Restore(ctx, first.ID)
	require.Error(t, err, "restoring would create two active rows with one email")
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestUpdateActiveSkipsDeletedRows(t *testing.T) {
	ctx := context.Background()
	r, _ := newCustomerRepo(t)
	c := seedCustomer(t, r, "a@example.com")

	c.FirstName = "Grace"
	c.LoyaltyPoints = 0
	n, err := r.UpdateActive(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	reloaded, err := r.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", reloaded.FirstName)
	assert.Nil(t, reloaded.DeletedAt)

	_, err = r.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	c.FirstName = "Hidden"
	n, err = r.UpdateActive(ctx, c)
	require.NoError(t, err)
	assert.Zero(t, n)

	reloaded, err = r.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", reloaded.FirstName)
	assert.NotNil(t, reloaded.DeletedAt, "update must not clear deleted_at")
}

func TestScopedAndTransactionalCopies(t *testing.T) {
	ctx := context.Background()
	r, conn := newCustomerRepo(t)
	seedCustomer(t, r, "keep@example.com")

	err := conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, r.WithTx(tx).Create(ctx, &models.Customer{FirstName: "T", LastName: "T", Email: "rollback@example.com"}))
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	found, err := r.FindByUnique(ctx, "email", "rollback@example.com", false)
	require.NoError(t, err)
	assert.Nil(t, found)

	scoped := r.Scoped(func(q *gorm.DB) *gorm.DB { return q.Where("last_name = ?", "Nobody") })
	n, err := scoped.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRowLockNeedsTransaction(t *testing.T) {
	ctx := context.Background()
	r, conn := newCustomerRepo(t)
	c := seedCustomer(t, r, "lock@example.com")

	_, err := r.FindActiveByIDForUpdate(ctx, c.ID)
	require.ErrorIs(t, err, errNoTx)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		locked, err := r.WithTx(tx).FindActiveByIDForUpdate(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, locked)
		assert.Equal(t, c.ID, locked.ID)
		return nil
	}))
}
