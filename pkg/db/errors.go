package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation
// from any supported driver. When constraintName is set, only a violation of
// that constraint matches.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && constraintMatches(pgErr.ConstraintName, constraintName)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation && constraintMatches(pqErr.Constraint, constraintName)
	}

	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsNotFound reports gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func constraintMatches(actual, wanted string) bool {
	return wanted == "" || actual == wanted
}

// ViolatedConstraint names what a unique violation hit: the Postgres
// constraint name, or the "table.column" list SQLite reports. Empty when err
// is not a unique violation.
func ViolatedConstraint(err error) string {
	if !IsUniqueViolation(err, "") {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	msg := err.Error()
	if _, cols, ok := strings.Cut(msg, "UNIQUE constraint failed:"); ok {
		return strings.TrimSpace(cols)
	}
	return ""
}

// ConflictField maps a unique violation onto the field it guards. fields is
// keyed by constraint name or "table.column"; the first key contained in the
// violated constraint wins.
func ConflictField(err error, fields map[string]string) (string, bool) {
	constraint := ViolatedConstraint(err)
	if constraint == "" {
		return "", false
	}
	for key, field := range fields {
		if strings.Contains(constraint, key) {
			return field, true
		}
	}
	return "", false
}
