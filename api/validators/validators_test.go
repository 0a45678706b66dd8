package validators

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

type sampleRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=5"`
	Quantity int64  `json:"quantity" validate:"gte=0"`
}

func TestParseListParamsClampsRanges(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/customers?p=-4&s=500&sb=email&o=asc&del=true", nil)

	req, showDeleted, err := ParseListParams(r)
	require.NoError(t, err)
	assert.True(t, showDeleted)
	assert.Equal(t, pagination.NewPageRequest(0, 100, "email", "ASC"), req)
}

func TestParseListParamsDefaults(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/customers", nil)

	req, showDeleted, err := ParseListParams(r)
	require.NoError(t, err)
	assert.False(t, showDeleted)
	assert.Equal(t, pagination.DefaultPageRequest(), req)
}

func TestParseListParamsRejectsGarbage(t *testing.T) {
	for _, query := range []string{"p=abc", "s=1.5", "del=maybe"} {
		r := httptest.NewRequest(http.MethodGet, "/customers?"+query, nil)
		_, _, err := ParseListParams(r)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), query)
	}
}

func TestParseCursorParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/items/x/history?limit=5&cursor=abc", nil)
	params, err := ParseCursorParams(r)
	require.NoError(t, err)
	assert.Equal(t, 5, params.Limit)
	assert.Equal(t, "abc", params.Cursor)

	r = httptest.NewRequest(http.MethodGet, "/items/x/history?limit=1000", nil)
	_, err = ParseCursorParams(r)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsEveryField(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","name":"too long","quantity":-1}`))

	var dest sampleRequest
	err := DecodeJSONBody(r, &dest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"email":    "must be a valid email",
		"name":     "must be at most 5",
		"quantity": "must be at least 0",
	}, details)
}

func TestDecodeJSONBodyLocalizesDetails(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
	r = r.WithContext(messages.WithLocale(r.Context(), language.Spanish))

	var dest sampleRequest
	err := DecodeJSONBody(r, &dest)
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Equal(t, "es obligatorio", details["email"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","name":"x","extra":1}`))
	var dest sampleRequest
	err := DecodeJSONBody(r, &dest)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	payload := `{"email":"a@b.co","name":"` + strings.Repeat("x", int(MaxBodyBytes)) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	var dest sampleRequest
	err := DecodeJSONBody(r, &dest)

	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	assert.Equal(t, messages.BodyTooLarge, appErr.Key())
}

func TestBodyErrorKeepsDecodeDetails(t *testing.T) {
	err := BodyError(io.ErrUnexpectedEOF)
	assert.Equal(t, messages.InvalidBody, err.Key())
	assert.Equal(t, map[string]string{"body": io.ErrUnexpectedEOF.Error()}, err.Details())
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(r, "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	rctx.URLParams = chi.RouteParams{}
	rctx.URLParams.Add("id", "not-a-uuid")
	_, err = ParseUUIDParam(r, "id")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestQueryTokenStripsControlAndCaps(t *testing.T) {
	assert.Equal(t, "email", queryToken("  em\x00ai\tl \n"))
	long := strings.Repeat("é", maxSortFieldLen+10)
	assert.Equal(t, maxSortFieldLen, len([]rune(queryToken(long))))
}
