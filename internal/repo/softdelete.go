package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

const (
	columnID        = "id"
	columnDeletedAt = "deleted_at"
	columnUpdatedAt = "updated_at"
	columnCreatedAt = "created_at"
)

// Options configures a SoftDelete repository.
type Options struct {
	// Sortable maps the sort names accepted from callers to columns.
	// createdAt and updatedAt are always allowed.
	Sortable map[string]string
	// Unique lists the columns FindByUnique may look up.
	Unique []string
	// Scope narrows every query, e.g. to the items of one warehouse. Nil
	// means the whole table.
	Scope func(*gorm.DB) *gorm.DB
}

// SoftDelete is the data-access contract shared by every module. Rows are
// active while deleted_at is NULL and are never removed physically. A
// missing row is reported as a nil result, never as an error; storage
// errors are returned unchanged.
type SoftDelete[T any, ID comparable] struct {
	Conn
	sortable map[string]string
	unique   map[string]struct{}
	scope    func(*gorm.DB) *gorm.DB
}

func NewSoftDelete[T any, ID comparable](db *gorm.DB, opts Options) *SoftDelete[T, ID] {
	sortable := map[string]string{
		"createdAt":     columnCreatedAt,
		"updatedAt":     columnUpdatedAt,
		columnCreatedAt: columnCreatedAt,
		columnUpdatedAt: columnUpdatedAt,
	}
	for name, column := range opts.Sortable {
		sortable[name] = column
		sortable[column] = column
	}
	unique := make(map[string]struct{}, len(opts.Unique))
	for _, column := range opts.Unique {
		unique[column] = struct{}{}
	}
	return &SoftDelete[T, ID]{
		Conn:     NewConn(db),
		sortable: sortable,
		unique:   unique,
		scope:    opts.Scope,
	}
}

// WithTx returns a copy bound to tx. Queries issued through the copy run
// inside the caller's transaction.
func (r *SoftDelete[T, ID]) WithTx(tx *gorm.DB) *SoftDelete[T, ID] {
	cp := *r
	cp.Conn = r.Conn.Bind(tx)
	return &cp
}

// Scoped returns a copy whose queries are additionally narrowed by scope.
func (r *SoftDelete[T, ID]) Scoped(scope func(*gorm.DB) *gorm.DB) *SoftDelete[T, ID] {
	cp := *r
	cp.scope = scope
	return &cp
}

func (r *SoftDelete[T, ID]) query(ctx context.Context) *gorm.DB {
	q := r.Session(ctx).Model(new(T))
	if r.scope != nil {
		q = r.scope(q)
	}
	return q
}

func visibility(q *gorm.DB, showDeleted bool) *gorm.DB {
	if showDeleted {
		return q.Where(columnDeletedAt + " IS NOT NULL")
	}
	return q.Where(columnDeletedAt + " IS NULL")
}

func (r *SoftDelete[T, ID]) first(q *gorm.DB) (*T, error) {
	var row T
	if err := q.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// FindByID returns the row whatever its delete state.
func (r *SoftDelete[T, ID]) FindByID(ctx context.Context, id ID) (*T, error) {
	return r.first(r.query(ctx).Where(columnID+" = ?", id))
}

// FindActiveByID returns the row only while it is active.
func (r *SoftDelete[T, ID]) FindActiveByID(ctx context.Context, id ID) (*T, error) {
	return r.first(visibility(r.query(ctx).Where(columnID+" = ?", id), false))
}

// FindActiveByIDForUpdate is FindActiveByID with a row lock. It only runs on
// a copy bound by WithTx.
func (r *SoftDelete[T, ID]) FindActiveByIDForUpdate(ctx context.Context, id ID) (*T, error) {
	if !r.InTx() {
		return nil, errNoTx
	}
	q := visibility(r.query(ctx).Where(columnID+" = ?", id), false).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	return r.first(q)
}

// FindAllByVisibility returns the active rows, or only the deleted ones when
// showDeleted is set. The two results never overlap.
func (r *SoftDelete[T, ID]) FindAllByVisibility(ctx context.Context, showDeleted bool) ([]T, error) {
	var rows []T
	err := visibility(r.query(ctx), showDeleted).
		Order(columnCreatedAt + " DESC").
		Order(columnID + " DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindPage returns one page of the visibility partition plus the partition
// size. Ties on the sort column fall back to id so repeated calls return the
// same order. Unknown sort fields or directions are Validation errors.
func (r *SoftDelete[T, ID]) FindPage(ctx context.Context, req pagination.PageRequest, showDeleted bool) ([]T, int64, error) {
	req = pagination.NewPageRequest(req.Page, req.Size, req.SortBy, req.Direction)
	order, err := r.orderBy(req)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := visibility(r.query(ctx), showDeleted).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	rows := make([]T, 0, req.Size)
	if total == 0 || int64(req.Offset()) >= total {
		return rows, total, nil
	}
	err = visibility(r.query(ctx), showDeleted).
		Order(order).
		Offset(req.Offset()).
		Limit(req.Size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *SoftDelete[T, ID]) orderBy(req pagination.PageRequest) (string, error) {
	column, ok := r.sortable[req.SortBy]
	if !ok {
		return "", pkgerrors.Validation(messages.InvalidSortField, req.SortBy)
	}
	direction := strings.ToUpper(req.Direction)
	if direction != pagination.DirectionAsc && direction != pagination.DirectionDesc {
		return "", pkgerrors.Validation(messages.InvalidSortOrder, req.Direction)
	}
	if column == columnID {
		return fmt.Sprintf("%s %s", columnID, direction), nil
	}
	return fmt.Sprintf("%s %s, %s %s", column, direction, columnID, direction), nil
}

// FindByUnique looks a row up by one of the configured unique columns within
// the requested visibility partition. Several deleted rows may share a
// value; the most recently deleted one is returned.
func (r *SoftDelete[T, ID]) FindByUnique(ctx context.Context, column string, value any, showDeleted bool) (*T, error) {
	if _, ok := r.unique[column]; !ok {
		return nil, fmt.Errorf("column %q is not a unique lookup", column)
	}
	q := visibility(r.query(ctx).Where(column+" = ?", value), showDeleted).
		Order(columnDeletedAt + " DESC")
	return r.first(q)
}

// Create inserts entity. Unique violations come back as the driver reported
// them.
func (r *SoftDelete[T, ID]) Create(ctx context.Context, entity *T) error {
	return r.Session(ctx).Create(entity).Error
}

// UpdateActive overwrites every mutable column of an active row. Identity,
// created_at and deleted_at are never written. Zero rows affected means the
// row is missing or deleted.
func (r *SoftDelete[T, ID]) UpdateActive(ctx context.Context, entity *T) (int64, error) {
	return r.UpdateActiveIf(ctx, entity, "")
}

// UpdateActiveIf is UpdateActive with an extra condition, typically an
// expected version.
func (r *SoftDelete[T, ID]) UpdateActiveIf(ctx context.Context, entity *T, cond string, args ...any) (int64, error) {
	q := r.Session(ctx).Model(entity).Where(columnDeletedAt + " IS NULL")
	if cond != "" {
		q = q.Where(cond, args...)
	}
	res := q.
		Select("*").
		Omit(columnID, columnCreatedAt, columnDeletedAt).
		Updates(entity)
	return res.RowsAffected, res.Error
}

// SoftDelete stamps deleted_at on an active row. A missing or already
// deleted row affects nothing.
func (r *SoftDelete[T, ID]) SoftDelete(ctx context.Context, id ID) (int64, error) {
	now := r.Now()
	res := r.query(ctx).
		Where(columnID+" = ?", id).
		Where(columnDeletedAt + " IS NULL").
		Updates(map[string]any{columnDeletedAt: now, columnUpdatedAt: now})
	return res.RowsAffected, res.Error
}

// Restore clears deleted_at on a deleted row. Active rows are left alone and
// report zero rows affected.
func (r *SoftDelete[T, ID]) Restore(ctx context.Context, id ID) (int64, error) {
	res := r.query(ctx).
		Where(columnID+" = ?", id).
		Where(columnDeletedAt + " IS NOT NULL").
		Updates(map[string]any{columnDeletedAt: nil, columnUpdatedAt: r.Now()})
	return res.RowsAffected, res.Error
}

// CountActive returns the number of active rows in scope.
func (r *SoftDelete[T, ID]) CountActive(ctx context.Context) (int64, error) {
	var total int64
	err := visibility(r.query(ctx), false).Count(&total).Error
	return total, err
}
