package contactors

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/srms-platform/srms-backend/pkg/cache"
	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

type contactorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contactor, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Contactor, error)
	FindPage(ctx context.Context, req pagination.PageRequest, showDeleted bool) ([]models.Contactor, int64, error)
	FindByUnique(ctx context.Context, column string, value any, showDeleted bool) (*models.Contactor, error)
	Create(ctx context.Context, entity *models.Contactor) error
	UpdateActive(ctx context.Context, entity *models.Contactor) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (int64, error)
	Restore(ctx context.Context, id uuid.UUID) (int64, error)
}

// Service exposes supplier contact operations.
type Service interface {
	Get(ctx context.Context, id uuid.UUID, showDeleted bool) (*ContactorDTO, error)
	FindByEmail(ctx context.Context, email string, showDeleted bool) (*ContactorDTO, error)
	List(ctx context.Context, req pagination.PageRequest, showDeleted bool) (pagination.Page[ContactorDTO], error)
	Create(ctx context.Context, input ContactorInput) (*ContactorDTO, error)
	Update(ctx context.Context, id uuid.UUID, input ContactorInput) (*ContactorDTO, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	Restore(ctx context.Context, id uuid.UUID) (*ContactorDTO, error)
}

type service struct {
	repo    contactorRepository
	entries cache.Cache
	pages   cache.Cache
}

func NewService(repo contactorRepository, entries, pages cache.Cache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("contactor repository required")
	}
	return &service{repo: repo, entries: entries, pages: pages}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, showDeleted bool) (*ContactorDTO, error) {
	load := s.repo.FindActiveByID
	if showDeleted {
		load = s.repo.FindByID
	}
	dto, ok, err := cache.GetOrLoad(ctx, s.entries, cache.Key("getById", id, showDeleted),
		func(ctx context.Context) (ContactorDTO, bool, error) {
			return found(load(ctx, id))
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.NotFound(messages.EntityContactor, id)
	}
	return &dto, nil
}

func (s *service) FindByEmail(ctx context.Context, email string, showDeleted bool) (*ContactorDTO, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	dto, ok, err := cache.GetOrLoad(ctx, s.entries, cache.Key("getByEmail", email, showDeleted),
		func(ctx context.Context) (ContactorDTO, bool, error) {
			return found(s.repo.FindByUnique(ctx, fieldEmail, email, showDeleted))
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.NotFoundBy(messages.EntityContactor, fieldEmail, email)
	}
	return &dto, nil
}

func found(row *models.Contactor, err error) (ContactorDTO, bool, error) {
	if err != nil || row == nil {
		return ContactorDTO{}, false, err
	}
	return *FromModel(row), true, nil
}

func (s *service) List(ctx context.Context, req pagination.PageRequest, showDeleted bool) (pagination.Page[ContactorDTO], error) {
	page, _, err := cache.GetOrLoad(ctx, s.pages, cache.Key("list", req, showDeleted),
		func(ctx context.Context) (pagination.Page[ContactorDTO], bool, error) {
			rows, total, err := s.repo.FindPage(ctx, req, showDeleted)
			if err != nil {
				return pagination.Page[ContactorDTO]{}, false, err
			}
			page := pagination.NewPage(rows, req, total)
			return pagination.Map(page, func(m models.Contactor) ContactorDTO { return *FromModel(&m) }), true, nil
		})
	return page, err
}

func (s *service) Create(ctx context.Context, input ContactorInput) (*ContactorDTO, error) {
	input = input.normalized()
	if err := s.ensureUnique(ctx, uuid.Nil, input.Email, input.Phone); err != nil {
		return nil, err
	}

	row := &models.Contactor{}
	input.apply(row)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, mapWriteError(err, input.Email, input.Phone)
	}
	if row.ID == uuid.Nil {
		return nil, pkgerrors.Persistence(messages.EntityContactor, input.Email)
	}
	s.evict(ctx, row.ID, row.Email)
	return FromModel(row), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input ContactorInput) (*ContactorDTO, error) {
	input = input.normalized()
	current, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.NotFound(messages.EntityContactor, id)
	}
	if err := s.ensureUnique(ctx, id, input.Email, input.Phone); err != nil {
		return nil, err
	}

	previousEmail := current.Email
	input.apply(current)
	affected, err := s.repo.UpdateActive(ctx, current)
	if err != nil {
		return nil, mapWriteError(err, input.Email, input.Phone)
	}
	if affected == 0 {
		return nil, pkgerrors.Persistence(messages.EntityContactor, id)
	}
	s.evict(ctx, id, previousEmail, current.Email)
	return s.reload(ctx, id)
}

func (s *service) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, pkgerrors.NotFound(messages.EntityContactor, id)
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

func (s *service) Restore(ctx context.Context, id uuid.UUID) (*ContactorDTO, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.NotFound(messages.EntityContactor, id)
	}
	if current.DeletedAt == nil {
		return nil, pkgerrors.InUse(messages.AlreadyActive, messages.EntityContactor, id)
	}
	if err := s.ensureUnique(ctx, id, current.Email, current.Phone); err != nil {
		return nil, err
	}

	affected, err := s.repo.Restore(ctx, id)
	if err != nil {
		return nil, mapWriteError(err, current.Email, current.Phone)
	}
	if affected == 0 {
		return nil, pkgerrors.Persistence(messages.EntityContactor, id)
	}
	s.evict(ctx, id, current.Email)
	return s.reload(ctx, id)
}

func (s *service) ensureUnique(ctx context.Context, self uuid.UUID, email string, phone *string) error {
	checks := []struct {
		field string
		value *string
	}{
		{fieldEmail, &email},
		{fieldPhone, phone},
	}
	for _, check := range checks {
		if check.value == nil {
			continue
		}
		existing, err := s.repo.FindByUnique(ctx, check.field, *check.value, false)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != self {
			return pkgerrors.Conflict(messages.EntityContactor, check.field, *check.value)
		}
	}
	return nil
}

func mapWriteError(err error, email string, phone *string) error {
	field, ok := db.ConflictField(err, conflictFields)
	if !ok {
		return err
	}
	value := email
	if field == fieldPhone && phone != nil {
		value = *phone
	}
	return pkgerrors.Conflict(messages.EntityContactor, field, value).WithCause(err)
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*ContactorDTO, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.Persistence(messages.EntityContactor, id)
	}
	return FromModel(row), nil
}

func (s *service) evict(ctx context.Context, id uuid.UUID, emails ...string) {
	keys := []string{cache.Key("getById", id, false), cache.Key("getById", id, true)}
	for _, email := range emails {
		keys = append(keys, cache.Key("getByEmail", email, false), cache.Key("getByEmail", email, true))
	}
	cache.Evict(ctx, s.entries, keys...)
	cache.Clear(ctx, s.pages)
}
