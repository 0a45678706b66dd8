package customers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/srms-platform/srms-backend/pkg/cache"
	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

type customerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindPage(ctx context.Context, req pagination.PageRequest, showDeleted bool) ([]models.Customer, int64, error)
	FindByUnique(ctx context.Context, column string, value any, showDeleted bool) (*models.Customer, error)
	Create(ctx context.Context, entity *models.Customer) error
	UpdateActive(ctx context.Context, entity *models.Customer) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (int64, error)
	Restore(ctx context.Context, id uuid.UUID) (int64, error)
}

// Service exposes customer operations.
type Service interface {
	Get(ctx context.Context, id uuid.UUID, showDeleted bool) (*CustomerDTO, error)
	FindByEmail(ctx context.Context, email string, showDeleted bool) (*CustomerDTO, error)
	List(ctx context.Context, req pagination.PageRequest, showDeleted bool) (pagination.Page[CustomerDTO], error)
	Create(ctx context.Context, input CustomerInput) (*CustomerDTO, error)
	Update(ctx context.Context, id uuid.UUID, input CustomerInput) (*CustomerDTO, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	Restore(ctx context.Context, id uuid.UUID) (*CustomerDTO, error)
}

type service struct {
	repo    customerRepository
	entries cache.Cache
	pages   cache.Cache
}

// NewService builds the customer service. Either cache may be nil.
func NewService(repo customerRepository, entries, pages cache.Cache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &service{repo: repo, entries: entries, pages: pages}, nil
}

// Get returns an active customer, or one in any state when showDeleted is
// set.
func (s *service) Get(ctx context.Context, id uuid.UUID, showDeleted bool) (*CustomerDTO, error) {
	dto, found, err := cache.GetOrLoad(ctx, s.entries, cache.Key("getById", id, showDeleted),
		func(ctx context.Context) (CustomerDTO, bool, error) {
			var (
				row *models.Customer
				err error
			)
			if showDeleted {
				row, err = s.repo.FindByID(ctx, id)
			} else {
				row, err = s.repo.FindActiveByID(ctx, id)
			}
			if err != nil || row == nil {
				return CustomerDTO{}, false, err
			}
			return *FromModel(row), true, nil
		})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.NotFound(messages.EntityCustomer, id)
	}
	return &dto, nil
}

func (s *service) FindByEmail(ctx context.Context, email string, showDeleted bool) (*CustomerDTO, error) {
	email = NormalizeEmail(email)
	dto, found, err := cache.GetOrLoad(ctx, s.entries, cache.Key("getByEmail", email, showDeleted),
		func(ctx context.Context) (CustomerDTO, bool, error) {
			row, err := s.repo.FindByUnique(ctx, fieldEmail, email, showDeleted)
			if err != nil || row == nil {
				return CustomerDTO{}, false, err
			}
			return *FromModel(row), true, nil
		})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.NotFoundBy(messages.EntityCustomer, fieldEmail, email)
	}
	return &dto, nil
}

func (s *service) List(ctx context.Context, req pagination.PageRequest, showDeleted bool) (pagination.Page[CustomerDTO], error) {
	page, _, err := cache.GetOrLoad(ctx, s.pages, cache.Key("list", req, showDeleted),
		func(ctx context.Context) (pagination.Page[CustomerDTO], bool, error) {
			rows, total, err := s.repo.FindPage(ctx, req, showDeleted)
			if err != nil {
				return pagination.Page[CustomerDTO]{}, false, err
			}
			items := make([]CustomerDTO, 0, len(rows))
			for i := range rows {
				items = append(items, *FromModel(&rows[i]))
			}
			return pagination.NewPage(items, req, total), true, nil
		})
	return page, err
}

// Create checks the active rows for a clashing email or phone before
// inserting. The partial unique indexes remain the authority: a concurrent
// insert that slips past the check still comes back as Conflict.
func (s *service) Create(ctx context.Context, input CustomerInput) (*CustomerDTO, error) {
	input = input.normalized()
	if err := s.ensureUnique(ctx, uuid.Nil, input); err != nil {
		return nil, err
	}

	row := &models.Customer{}
	input.apply(row)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, s.mapWriteError(err, input)
	}
	if row.ID == uuid.Nil {
		return nil, pkgerrors.Persistence(messages.EntityCustomer, input.Email)
	}

	s.evict(ctx, row.ID, row.Email)
	return FromModel(row), nil
}

// Update overwrites the mutable fields of an active customer.
func (s *service) Update(ctx context.Context, id uuid.UUID, input CustomerInput) (*CustomerDTO, error) {
	input = input.normalized()
	current, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.NotFound(messages.EntityCustomer, id)
	}
	if err := s.ensureUnique(ctx, id, input); err != nil {
		return nil, err
	}

	previousEmail := current.Email
	input.apply(current)
	affected, err := s.repo.UpdateActive(ctx, current)
	if err != nil {
		return nil, s.mapWriteError(err, input)
	}
	if affected == 0 {
		return nil, pkgerrors.Persistence(messages.EntityCustomer, id)
	}

	s.evict(ctx, id, previousEmail, current.Email)
	return s.reload(ctx, id)
}

// SoftDelete reports false when the customer was already deleted.
func (s *service) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, pkgerrors.NotFound(messages.EntityCustomer, id)
	}
	if current.DeletedAt != nil {
		return false, nil
	}

	affected, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return false, err
	}
	s.evict(ctx, id, current.Email)
	return affected > 0, nil
}

// Restore reactivates a deleted customer. Restoring an active customer is
// InUse; restoring onto an email or phone now held by another active row is
// Conflict.
func (s *service) Restore(ctx context.Context, id uuid.UUID) (*CustomerDTO, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.NotFound(messages.EntityCustomer, id)
	}
	if current.DeletedAt == nil {
		return nil, pkgerrors.InUse(messages.AlreadyActive, messages.EntityCustomer, id)
	}

	input := CustomerInput{Email: current.Email, Phone: current.Phone}
	if err := s.ensureUnique(ctx, id, input); err != nil {
		return nil, err
	}
	affected, err := s.repo.Restore(ctx, id)
	if err != nil {
		return nil, s.mapWriteError(err, input)
	}
	if affected == 0 {
		return nil, pkgerrors.Persistence(messages.EntityCustomer, id)
	}

	s.evict(ctx, id, current.Email)
	return s.reload(ctx, id)
}

func (s *service) ensureUnique(ctx context.Context, self uuid.UUID, input CustomerInput) error {
	existing, err := s.repo.FindByUnique(ctx, fieldEmail, input.Email, false)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return pkgerrors.Conflict(messages.EntityCustomer, fieldEmail, input.Email)
	}
	if input.Phone == nil {
		return nil
	}
	existing, err = s.repo.FindByUnique(ctx, fieldPhone, *input.Phone, false)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return pkgerrors.Conflict(messages.EntityCustomer, fieldPhone, *input.Phone)
	}
	return nil
}

func (s *service) mapWriteError(err error, input CustomerInput) error {
	field, ok := db.ConflictField(err, conflictFields)
	if !ok {
		return err
	}
	var value any = input.Email
	if field == fieldPhone && input.Phone != nil {
		value = *input.Phone
	}
	return pkgerrors.Conflict(messages.EntityCustomer, field, value).WithCause(err)
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*CustomerDTO, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.Persistence(messages.EntityCustomer, id)
	}
	return FromModel(row), nil
}

// evict drops every entry that could mention the customer and clears the
// list pages.
func (s *service) evict(ctx context.Context, id uuid.UUID, emails ...string) {
	keys := []string{cache.Key("getById", id, false), cache.Key("getById", id, true)}
	for _, email := range emails {
		keys = append(keys,
			cache.Key("getByEmail", email, false),
			cache.Key("getByEmail", email, true))
	}
	cache.Evict(ctx, s.entries, keys...)
	cache.Clear(ctx, s.pages)
}
