package customers

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/srms-platform/srms-backend/pkg/db/models"
)

// CustomerDTO exposes customer data in API responses and cache entries.
type CustomerDTO struct {
	ID            uuid.UUID  `json:"id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email"`
	Phone         *string    `json:"phone,omitempty"`
	Address       *string    `json:"address,omitempty"`
	LoyaltyPoints int        `json:"loyalty_points"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// CustomerInput carries the mutable customer fields for create and update.
type CustomerInput struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         *string
	Address       *string
	LoyaltyPoints int
}

// FromModel maps the persisted customer into a DTO.
func FromModel(m *models.Customer) *CustomerDTO {
	if m == nil {
		return nil
	}
	return &CustomerDTO{
		ID:            m.ID,
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		Email:         m.Email,
		Phone:         m.Phone,
		Address:       m.Address,
		LoyaltyPoints: m.LoyaltyPoints,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		DeletedAt:     m.DeletedAt,
	}
}

func (in CustomerInput) normalized() CustomerInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = trimmedOrNil(in.Phone)
	in.Address = trimmedOrNil(in.Address)
	return in
}

func (in CustomerInput) apply(m *models.Customer) {
	m.FirstName = in.FirstName
	m.LastName = in.LastName
	m.Email = in.Email
	m.Phone = in.Phone
	m.Address = in.Address
	m.LoyaltyPoints = in.LoyaltyPoints
}

// NormalizeEmail lower-cases and trims an address so lookups and the unique
// index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
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
