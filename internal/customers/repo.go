package customers

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

// conflictFields maps unique index names (Postgres) and table.column pairs
// (SQLite) onto request fields.
var conflictFields = map[string]string{
	"ux_customers_email_active": fieldEmail,
	"ux_customers_phone_active": fieldPhone,
	"customers.email":           fieldEmail,
	"customers.phone":           fieldPhone,
}

// Repository is the soft-delete repository for customers.
type Repository = repo.SoftDelete[models.Customer, uuid.UUID]

// NewRepository binds a GORM DB to customer persistence.
func NewRepository(db *gorm.DB) *Repository {
	return repo.NewSoftDelete[models.Customer, uuid.UUID](db, repo.Options{
		Sortable: map[string]string{
			"firstName":     "first_name",
			"lastName":      "last_name",
			"email":         "email",
			"loyaltyPoints": "loyalty_points",
		},
		Unique: []string{fieldEmail, fieldPhone},
	})
}
