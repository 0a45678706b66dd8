package contactors

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/internal/repo"
	"github.com/srms-platform/srms-backend/pkg/db/models"
)

const (
	fieldEmail = "email"
	fieldPhone = "phone"
)

var conflictFields = map[string]string{
	"ux_contactors_email_active": fieldEmail,
	"ux_contactors_phone_active": fieldPhone,
	"contactors.email":           fieldEmail,
	"contactors.phone":           fieldPhone,
}

// Repository is the soft-delete repository for supplier contacts.
type Repository = repo.SoftDelete[models.Contactor, uuid.UUID]

func NewRepository(db *gorm.DB) *Repository {
	return repo.NewSoftDelete[models.Contactor, uuid.UUID](db, repo.Options{
		Sortable: map[string]string{
			"companyName": "company_name",
			"contactName": "contact_name",
			"email":       "email",
		},
		Unique: []string{fieldEmail, fieldPhone},
	})
}
