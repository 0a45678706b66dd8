package validators

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

// Query parameter names shared by every list endpoint.
const (
	QueryPage        = "p"
	QuerySize        = "s"
	QuerySortBy      = "sb"
	QueryDirection   = "o"
	QueryShowDeleted = "del"

	maxSortFieldLen = 64
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(r, key, messages.FieldNumeric)
	}
	if value < min {
		return 0, invalidQuery(r, key, messages.FieldMin, strconv.Itoa(min))
	}
	if value > max {
		return 0, invalidQuery(r, key, messages.FieldMax, strconv.Itoa(max))
	}
	return value, nil
}

// ParseQueryBool reads an optional boolean flag.
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidQuery(r, key, messages.FieldInvalid)
	}
	return value, nil
}

// ParsePageRequest reads p, s, sb and o. Numbers must parse, but range
// problems are clamped by pagination.NewPageRequest rather than rejected.
func ParsePageRequest(r *http.Request) (pagination.PageRequest, error) {
	q := r.URL.Query()
	page, err := optionalInt(r, QueryPage)
	if err != nil {
		return pagination.PageRequest{}, err
	}
	size, err := optionalInt(r, QuerySize)
	if err != nil {
		return pagination.PageRequest{}, err
	}
	return pagination.NewPageRequest(
		page,
		size,
		queryToken(q.Get(QuerySortBy)),
		queryToken(q.Get(QueryDirection)),
	), nil
}

// ParseListParams is ParsePageRequest plus the del visibility flag.
func ParseListParams(r *http.Request) (pagination.PageRequest, bool, error) {
	req, err := ParsePageRequest(r)
	if err != nil {
		return req, false, err
	}
	showDeleted, err := ParseQueryBool(r, QueryShowDeleted)
	if err != nil {
		return req, false, err
	}
	return req, showDeleted, nil
}

// ParseCursorParams reads limit and cursor for append-only feeds.
func ParseCursorParams(r *http.Request) (pagination.CursorParams, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.CursorParams{}, err
	}
	return pagination.CursorParams{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

// ParseUUIDParam reads a chi path parameter as a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrapk(pkgerrors.CodeValidation, err, messages.InvalidParameter, name).
			WithDetails(map[string]string{name: messages.Render(messages.LocaleFrom(r.Context()), messages.FieldUUID)})
	}
	return id, nil
}

func optionalInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(r, key, messages.FieldNumeric)
	}
	return value, nil
}

// queryToken trims a free-form query value, drops control characters and
// caps it at maxSortFieldLen runes.
func queryToken(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if runes := []rune(cleaned); len(runes) > maxSortFieldLen {
		return string(runes[:maxSortFieldLen])
	}
	return cleaned
}

func invalidQuery(r *http.Request, key string, reason messages.Key, args ...any) error {
	return pkgerrors.Validation(messages.InvalidParameter, key).
		WithDetails(map[string]string{key: messages.Render(messages.LocaleFrom(r.Context()), reason, args...)})
}
