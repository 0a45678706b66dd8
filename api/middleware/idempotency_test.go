package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srms-platform/srms-backend/api/validators"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	pkgredis "github.com/srms-platform/srms-backend/pkg/redis"
)

type recordStore struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newRecordStore() *recordStore {
	return &recordStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *recordStore) Get(_ context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.ErrNil
}

func (s *recordStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	return true, s.Set(ctx, key, value, ttl)
}

func (s *recordStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.data[key], _ = value.(string)
	s.ttls[key] = ttl
	return nil
}

func (s *recordStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *recordStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

const (
	adjustPattern = "/api/v1/items/{itemId}/adjustments"
	adjustPath    = "/api/v1/items/5b0d8f9e-4c55-4d43-9f57-0a3f9c1c2b11/adjustments"
)

func routed(method, path, pattern, body, key string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

// countingHandler answers every call with status and a JSON body holding the
// call number.
type countingHandler struct {
	status int
	calls  int
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.calls++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	_ = json.NewEncoder(w).Encode(map[string]int{"call": h.calls})
}

func TestMatchRule(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		ok       bool
		required bool
	}{
		{http.MethodPost, "/api/v1/customers/", true, false},
		{http.MethodPost, "/api/v1/contactors", true, false},
		{http.MethodPost, "/api/v1/warehouses/{warehouseId}/items/", true, false},
		{http.MethodPost, "/api/v1/warehouses/0c4b/items", true, false},
		{http.MethodPost, adjustPattern, true, true},
		{http.MethodPost, adjustPath, true, true},
		{http.MethodPost, "/api/v1/items/adjustments", false, false},
		{http.MethodPut, "/api/v1/customers/{id}", false, false},
		{http.MethodPatch, "/api/v1/warehouses/{id}/restore", false, false},
		{http.MethodPost, "/", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rule, ok := matchRule(tt.method, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.required, rule.required)
			assert.Equal(t, tt.required, rule.critical)
		})
	}
}

func TestAdjustmentsRequireKey(t *testing.T) {
	h := &countingHandler{status: http.StatusCreated}
	rec := httptest.NewRecorder()
	Idempotency(newRecordStore(), time.Hour, nil)(h).ServeHTTP(rec, routed(http.MethodPost, adjustPath, adjustPattern, `{"delta":1}`, ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	assert.Zero(t, h.calls)
}

func TestCreatesWithoutKeyPassThrough(t *testing.T) {
	store := newRecordStore()
	h := &countingHandler{status: http.StatusCreated}
	mw := Idempotency(store, time.Hour, nil)(h)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, routed(http.MethodPost, "/api/v1/customers", "/api/v1/customers/", `{}`, ""))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, h.calls)
	assert.Empty(t, store.data)
}

func TestRepeatedKeyReplaysFirstResponse(t *testing.T) {
	store := newRecordStore()
	h := &countingHandler{status: http.StatusCreated}
	mw := Idempotency(store, time.Hour, nil)(h)

	first := httptest.NewRecorder()
	mw.ServeHTTP(first, routed(http.MethodPost, adjustPath, adjustPattern, `{"delta":1}`, "abc"))
	second := httptest.NewRecorder()
	mw.ServeHTTP(second, routed(http.MethodPost, adjustPath, adjustPattern, `{"delta":1}`, "abc"))

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayHeader))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Empty(t, first.Header().Get(ReplayHeader))
	for _, ttl := range store.ttls {
		assert.Equal(t, criticalIdempotencyTTL, ttl, "adjustment records are kept for a week")
	}
}

func TestKeysAreScopedPerPath(t *testing.T) {
	store := newRecordStore()
	h := &countingHandler{status: http.StatusCreated}
	mw := Idempotency(store, time.Hour, nil)(h)

	mw.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/customers", "/api/v1/customers", `{}`, "same"))
	mw.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/contactors", "/api/v1/contactors", `{}`, "same"))

	assert.Equal(t, 2, h.calls)
	assert.Len(t, store.data, 2)
	for _, ttl := range store.ttls {
		assert.Equal(t, time.Hour, ttl)
	}
}

func TestDifferentBodyUnderSameKeyIsRejected(t *testing.T) {
	h := &countingHandler{status: http.StatusOK}
	mw := Idempotency(newRecordStore(), time.Hour, nil)(h)

	mw.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, adjustPath, adjustPattern, `{"delta":1}`, "xyz"))
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, routed(http.MethodPost, adjustPath, adjustPattern, `{"delta":2}`, "xyz"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
	assert.Equal(t, 1, h.calls)
}

func TestInFlightDuplicateIsRefused(t *testing.T) {
	store := newRecordStore()
	var duplicate *httptest.ResponseRecorder
	var mw http.Handler
	mw = Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if duplicate == nil {
			duplicate = httptest.NewRecorder()
			mw.ServeHTTP(duplicate, routed(http.MethodPost, adjustPath, adjustPattern, `{"delta":1}`, "k"))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, routed(http.MethodPost, adjustPath, adjustPattern, `{"delta":1}`, "k"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, duplicate)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Contains(t, duplicate.Body.String(), "in progress")
}

func TestServerErrorsReleaseTheKey(t *testing.T) {
	store := newRecordStore()
	h := &countingHandler{status: http.StatusServiceUnavailable}
	mw := Idempotency(store, time.Hour, nil)(h)

	mw.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/warehouses", "/api/v1/warehouses", `{}`, "retry-me"))
	assert.Empty(t, store.data)

	h.status = http.StatusCreated
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, routed(http.MethodPost, "/api/v1/warehouses", "/api/v1/warehouses", `{}`, "retry-me"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, h.calls)
}

func TestPanicReleasesTheKey(t *testing.T) {
	store := newRecordStore()
	mw := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	assert.Panics(t, func() {
		mw.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/customers", "/api/v1/customers", `{}`, "p"))
	})
	assert.Empty(t, store.data)
}

func TestStoreOutageIsDependencyError(t *testing.T) {
	store := newRecordStore()
	store.data["test:|POST|/api/v1/customers:down"] = "{}"
	store.getErr = errors.New("connection refused")
	h := &countingHandler{status: http.StatusCreated}
	rec := httptest.NewRecorder()
	Idempotency(store, time.Hour, nil)(h).ServeHTTP(rec, routed(http.MethodPost, "/api/v1/customers", "/api/v1/customers", `{}`, "down"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
	assert.Zero(t, h.calls)
}

func TestOverlongKeyIsRejected(t *testing.T) {
	h := &countingHandler{status: http.StatusCreated}
	rec := httptest.NewRecorder()
	Idempotency(newRecordStore(), time.Hour, nil)(h).ServeHTTP(rec,
		routed(http.MethodPost, "/api/v1/customers", "/api/v1/customers", `{}`, strings.Repeat("k", maxIdempotencyKeyLen+1)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.calls)
}

func TestOversizedBodyIsRejectedBeforeReservation(t *testing.T) {
	store := newRecordStore()
	h := &countingHandler{status: http.StatusCreated}
	rec := httptest.NewRecorder()
	body := `{"name":"` + strings.Repeat("x", int(validators.MaxBodyBytes)) + `"}`
	Idempotency(store, time.Hour, nil)(h).ServeHTTP(rec,
		routed(http.MethodPost, "/api/v1/customers", "/api/v1/customers", body, "big"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	assert.Zero(t, h.calls)
	assert.Empty(t, store.data)
}
