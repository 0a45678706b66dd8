package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"golang.org/x/text/language"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInUse, status: http.StatusConflict, publicMsg: "resource in use"},
		{code: CodeTimeout, status: http.StatusRequestTimeout, publicMsg: "request timeout", retryable: true},
		{code: CodeUpstreamTimeout, status: http.StatusGatewayTimeout, publicMsg: "upstream timeout", retryable: true},
		{code: CodeUnavailable, status: http.StatusServiceUnavailable, publicMsg: "service unavailable", retryable: true},
		{code: CodeDataPersistence, status: http.StatusInternalServerError, publicMsg: "data persistence error"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestNewWithoutMessageUsesCatalogKey(t *testing.T) {
	err := New(CodeForbidden, "")
	if err.Key() != messages.Forbidden {
		t.Fatalf("expected default key %s, got %s", messages.Forbidden, err.Key())
	}
	if got := err.Localized(language.Spanish); got != "acceso denegado" {
		t.Fatalf("unexpected spanish rendering %q", got)
	}
}

func TestKeyedErrorsRenderPerLocale(t *testing.T) {
	err := Conflict(messages.EntityCustomer, "email", "a@example.com")
	if err.Code() != CodeConflict {
		t.Fatalf("expected conflict code, got %s", err.Code())
	}
	if got := err.Message(); got != "customer with email a@example.com already exists" {
		t.Fatalf("unexpected english message %q", got)
	}
	if got := err.Localized(language.Spanish); got != "ya existe cliente con email a@example.com" {
		t.Fatalf("unexpected spanish message %q", got)
	}
	if len(err.Args()) != 3 {
		t.Fatalf("expected args to be kept, got %v", err.Args())
	}

	notFound := NotFound(messages.EntityWarehouse, "wh-1")
	if got := notFound.Localized(language.English); got != "warehouse wh-1 not found" {
		t.Fatalf("unexpected not found message %q", got)
	}
	if InUse(messages.AlreadyActive, messages.EntityContactor, "c-1").Code() != CodeInUse {
		t.Fatalf("expected in use code")
	}
	if Persistence(messages.EntityCustomer, "x").Code() != CodeDataPersistence {
		t.Fatalf("expected persistence code")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	wrapped := fmt.Errorf("service: %w", NotFound(messages.EntityCustomer, 1))
	if !Is(wrapped, CodeNotFound) {
		t.Fatalf("Is should see through wrapping")
	}
	if Is(wrapped, CodeConflict) {
		t.Fatalf("Is matched the wrong code")
	}
}

func TestNormalize(t *testing.T) {
	if Normalize(nil) != nil {
		t.Fatalf("Normalize(nil) should be nil")
	}

	typed := NotFound(messages.EntityCustomer, "x")
	if Normalize(typed) != typed {
		t.Fatalf("typed errors should pass through")
	}

	deadline := Normalize(fmt.Errorf("query: %w", context.DeadlineExceeded))
	if deadline.Code() != CodeTimeout {
		t.Fatalf("expected timeout, got %s", deadline.Code())
	}

	unknown := Normalize(stdErrors.New("driver exploded"))
	if unknown.Code() != CodeInternal {
		t.Fatalf("expected internal, got %s", unknown.Code())
	}
	if unknown.Unwrap() == nil {
		t.Fatalf("cause should be preserved")
	}
}

func TestLogFieldsCarryPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_customers_email_active", TableName: "customers"}
	err := Wrapk(CodeConflict, pgErr, messages.FieldConflict, messages.EntityCustomer, "email", "a@example.com")

	fields := LogFields(err)
	if fields["error_code"] != CodeConflict || fields["error_key"] != messages.FieldConflict {
		t.Fatalf("unexpected code/key %v/%v", fields["error_code"], fields["error_key"])
	}
	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "ux_customers_email_active" || fields["pg_table"] != "customers" {
		t.Fatalf("postgres fields not extracted: %+v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty diagnostics should be omitted: %+v", fields)
	}
	chain, _ := fields["error_chain"].([]string)
	if len(chain) != 2 || chain[1] != "*pgconn.PgError" {
		t.Fatalf("unexpected chain %v", chain)
	}
}

func TestLogFieldsForPlainAndPqErrors(t *testing.T) {
	if len(LogFields(nil)) != 0 {
		t.Fatal("nil error should produce no fields")
	}
	plain := LogFields(stdErrors.New("boom"))
	if _, ok := plain["error_code"]; ok {
		t.Fatalf("untyped error has no code: %+v", plain)
	}
	wrapped := fmt.Errorf("insert: %w", &pq.Error{Code: "23503", Constraint: "fk_items_warehouse"})
	fields := LogFields(wrapped)
	if fields["pg_code"] != "23503" || fields["pg_constraint"] != "fk_items_warehouse" {
		t.Fatalf("pq fields not extracted: %+v", fields)
	}
}
