package contactors

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/srms-platform/srms-backend/pkg/db/models"
)

// ContactorDTO exposes supplier contact data in API responses.
type ContactorDTO struct {
	ID          uuid.UUID  `json:"id"`
	CompanyName string     `json:"company_name"`
	ContactName string     `json:"contact_name"`
	Email       string     `json:"email"`
	Phone       *string    `json:"phone,omitempty"`
	Address     *string    `json:"address,omitempty"`
	TaxCode     *string    `json:"tax_code,omitempty"`
	Note        *string    `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// ContactorInput carries the mutable fields for create and update.
type ContactorInput struct {
	CompanyName string
	ContactName string
	Email       string
	Phone       *string
	Address     *string
	TaxCode     *string
	Note        *string
}

func FromModel(m *models.Contactor) *ContactorDTO {
	if m == nil {
		return nil
	}
	return &ContactorDTO{
		ID:          m.ID,
		CompanyName: m.CompanyName,
		ContactName: m.ContactName,
		Email:       m.Email,
		Phone:       m.Phone,
		Address:     m.Address,
		TaxCode:     m.TaxCode,
		Note:        m.Note,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		DeletedAt:   m.DeletedAt,
	}
}

func (in ContactorInput) normalized() ContactorInput {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = trimmedOrNil(in.Phone)
	in.Address = trimmedOrNil(in.Address)
	in.TaxCode = trimmedOrNil(in.TaxCode)
	in.Note = trimmedOrNil(in.Note)
	return in
}

func (in ContactorInput) apply(m *models.Contactor) {
	m.CompanyName = in.CompanyName
	m.ContactName = in.ContactName
	m.Email = in.Email
	m.Phone = in.Phone
	m.Address = in.Address
	m.TaxCode = in.TaxCode
	m.Note = in.Note
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
