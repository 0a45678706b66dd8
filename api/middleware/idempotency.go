package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/api/validators"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/messages"
	pkgredis "github.com/srms-platform/srms-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayHeader      = "Idempotent-Replay"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	pendingTTL             = time.Minute
	maxIdempotencyKeyLen   = 255
)

// idempotencyRule names a replayable route by its chi pattern. Stock
// adjustments require a key because a blind retry would move stock twice;
// creates accept one when the client sends it.
type idempotencyRule struct {
	method   string
	pattern  string
	critical bool
	required bool
}

var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, pattern: "/api/v1/customers"},
	{method: http.MethodPost, pattern: "/api/v1/contactors"},
	{method: http.MethodPost, pattern: "/api/v1/warehouses"},
	{method: http.MethodPost, pattern: "/api/v1/warehouses/{warehouseId}/items"},
	{method: http.MethodPost, pattern: "/api/v1/items/{itemId}/adjustments", critical: true, required: true},
}

func (rule idempotencyRule) ttl(base time.Duration) time.Duration {
	if rule.critical {
		return criticalIdempotencyTTL
	}
	return base
}

// storedResponse is what a repeated request gets back. A record with
// Pending set marks a first request that has not finished yet.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type idempotency struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency replays the response stored under a repeated Idempotency-Key
// when the body matches, and rejects the key when it does not. The first
// request reserves the key while it runs so a concurrent duplicate is
// refused instead of executed. Server errors release the key so the client
// can retry.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	m := &idempotency{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := ruleFor(r)
			if !ok || m.store == nil {
				next.ServeHTTP(w, r)
				return
			}
			m.serve(rule, next, w, r)
		})
	}
}

func (m *idempotency) serve(rule idempotencyRule, next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	switch {
	case clientKey == "" && rule.required:
		m.fail(ctx, w, pkgerrors.Validation(messages.IdempotencyRequired))
		return
	case clientKey == "":
		next.ServeHTTP(w, r)
		return
	case len(clientKey) > maxIdempotencyKeyLen:
		m.fail(ctx, w, pkgerrors.Validation(messages.InvalidParameter, IdempotencyHeader))
		return
	}

	validators.LimitBody(w, r)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		m.fail(ctx, w, validators.BodyError(err))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := fingerprintOf(body)
	key := m.store.IdempotencyKey(SubjectFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

	reserved, err := m.reserve(ctx, key, fingerprint)
	if err != nil {
		m.fail(ctx, w, storeFailure(err))
		return
	}
	if !reserved {
		m.replay(ctx, w, key, fingerprint)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	completed := false
	defer func() {
		if !completed {
			m.release(ctx, key)
		}
	}()
	next.ServeHTTP(capture, r)

	status := capture.statusOrOK()
	if status >= http.StatusInternalServerError {
		return
	}
	completed = true
	m.remember(ctx, key, rule.ttl(m.ttl), storedResponse{
		Fingerprint: fingerprint,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
}

func (m *idempotency) reserve(ctx context.Context, key, fingerprint string) (bool, error) {
	marker, err := json.Marshal(storedResponse{Pending: true, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, string(marker), pendingTTL)
}

func (m *idempotency) replay(ctx context.Context, w http.ResponseWriter, key, fingerprint string) {
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, pkgredis.ErrNil) {
		// the reservation expired between SetNX and Get
		m.fail(ctx, w, pkgerrors.Newk(pkgerrors.CodeIdempotency, messages.IdempotencyPending))
		return
	}
	if err != nil {
		m.fail(ctx, w, storeFailure(err))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		m.fail(ctx, w, storeFailure(err))
		return
	}
	switch {
	case stored.Fingerprint != fingerprint:
		m.fail(ctx, w, pkgerrors.Newk(pkgerrors.CodeIdempotency, messages.IdempotencyReused))
	case stored.Pending:
		m.fail(ctx, w, pkgerrors.Newk(pkgerrors.CodeIdempotency, messages.IdempotencyPending))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(ReplayHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func (m *idempotency) remember(ctx context.Context, key string, ttl time.Duration, stored storedResponse) {
	payload, err := json.Marshal(stored)
	if err == nil {
		err = m.store.Set(ctx, key, string(payload), ttl)
	}
	if err != nil && m.logg != nil {
		m.logg.Error(m.logg.WithField(ctx, "idempotency_key", key), "idempotency.persist_failed", err)
	}
}

func (m *idempotency) release(ctx context.Context, key string) {
	if err := m.store.Del(context.WithoutCancel(ctx), key); err != nil && m.logg != nil {
		m.logg.Error(m.logg.WithField(ctx, "idempotency_key", key), "idempotency.release_failed", err)
	}
}

func (m *idempotency) fail(ctx context.Context, w http.ResponseWriter, err error) {
	responses.WriteError(ctx, m.logg, w, err)
}

func storeFailure(err error) error {
	return pkgerrors.Wrapk(pkgerrors.CodeDependency, err, messages.DependencyFailed, "idempotency store")
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ruleFor matches the chi route pattern, or the raw path when the
// middleware runs before routing.
func ruleFor(r *http.Request) (idempotencyRule, bool) {
	path := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			path = pattern
		}
	}
	return matchRule(r.Method, path)
}

func matchRule(method, path string) (idempotencyRule, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return idempotencyRule{}, false
	}
	for _, rule := range idempotencyRules {
		if rule.method == method && segmentsMatch(splitPath(rule.pattern), segments) {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// segmentsMatch treats a {param} segment in pattern as matching any one
// segment of path, itself included.
func segmentsMatch(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
