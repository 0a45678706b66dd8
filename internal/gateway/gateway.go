package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/srms-platform/srms-backend/api/middleware"
	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/pkg/auth"
	"github.com/srms-platform/srms-backend/pkg/enums"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/metrics"
)

const defaultUpstreamTimeout = 10 * time.Second

type tokenVerifier interface {
	Verify(token string) (*auth.AccessTokenClaims, error)
}

type Params struct {
	Routes          []Route
	Verifier        tokenVerifier
	Limiter         Limiter
	UpstreamTimeout time.Duration
	Breaker         BreakerSettings
	Metrics         *metrics.GatewayMetrics
	Logger          *logger.Logger
	// Transport overrides the upstream transport, mainly for tests.
	Transport http.RoundTripper
}

// Gateway authenticates, throttles and forwards requests to the upstream
// owning the path.
type Gateway struct {
	table    routeTable
	verifier tokenVerifier
	limiter  Limiter
	timeout  time.Duration
	metrics  *metrics.GatewayMetrics
	logg     *logger.Logger
	proxies  map[string]*httputil.ReverseProxy
	breakers map[string]*gobreaker.CircuitBreaker
}

func New(p Params) (*Gateway, error) {
	if len(p.Routes) == 0 {
		return nil, fmt.Errorf("gateway requires at least one route")
	}
	if p.Verifier == nil {
		return nil, fmt.Errorf("gateway requires a token verifier")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("gateway requires a logger")
	}
	timeout := p.UpstreamTimeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}

	g := &Gateway{
		table:    newRouteTable(p.Routes),
		verifier: p.Verifier,
		limiter:  p.Limiter,
		timeout:  timeout,
		metrics:  p.Metrics,
		logg:     p.Logger,
		proxies:  make(map[string]*httputil.ReverseProxy, len(p.Routes)),
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(p.Routes)),
	}
	for _, route := range p.Routes {
		if _, dup := g.proxies[route.Name]; dup {
			return nil, fmt.Errorf("duplicate route name %q", route.Name)
		}
		g.proxies[route.Name] = g.newProxy(route, p.Transport)
		g.breakers[route.Name] = newBreaker(route.Name, p.Breaker, p.Metrics, p.Logger)
	}
	return g, nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	route, ok := g.table.match(r.URL.Path)
	if !ok {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeNotFound, ""))
		return
	}
	ctx = g.logg.WithField(ctx, "route", route.Name)

	claims, authErr := g.authenticate(r)
	if claims != nil {
		ctx = g.logg.WithSubject(ctx, claims.Subject)
	}

	if !g.allow(ctx, w, route, rateKey(r, claims)) {
		return
	}
	if authErr != nil {
		responses.WriteError(ctx, g.logg, w, authErr)
		return
	}
	roles := claims.Roles()
	if !route.Allows(r.Method, roles) {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Newk(pkgerrors.CodeForbidden, messages.Forbidden))
		return
	}

	g.forward(ctx, w, r, route, claims.Subject, roles)
}

func (g *Gateway) authenticate(r *http.Request) (*auth.AccessTokenClaims, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, pkgerrors.Newk(pkgerrors.CodeUnauthorized, messages.Unauthorized)
	}
	claims, err := g.verifier.Verify(strings.TrimSpace(token))
	if err != nil {
		return nil, pkgerrors.Wrapk(pkgerrors.CodeUnauthorized, err, messages.Unauthorized)
	}
	return claims, nil
}

// rateKey prefers the token subject so one user behind a shared address is
// not throttled for everyone else.
func rateKey(r *http.Request, claims *auth.AccessTokenClaims) string {
	if claims != nil {
		return "sub:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// allow applies the limiter. A failing limiter backend lets traffic through.
func (g *Gateway) allow(ctx context.Context, w http.ResponseWriter, route Route, key string) bool {
	if g.limiter == nil {
		return true
	}
	ok, retryAfter, err := g.limiter.Allow(ctx, key)
	if err != nil {
		g.logg.Error(ctx, "gateway.rate_limit_failed", err)
		return true
	}
	if ok {
		return true
	}
	g.metrics.RateLimited(route.Name)
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	responses.WriteError(ctx, g.logg, w, pkgerrors.Newk(pkgerrors.CodeRateLimit, messages.RateLimited))
	return false
}

type outcomeKey struct{}

// outcome carries what the proxy observed back to the breaker.
type outcome struct {
	status int
	err    error
}

func (g *Gateway) forward(ctx context.Context, w http.ResponseWriter, r *http.Request, route Route, subject string, roles []enums.Role) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result := &outcome{}
	ctx = context.WithValue(ctx, outcomeKey{}, result)

	out := r.Clone(ctx)
	scrubIdentity(out.Header)
	out.Header.Set(middleware.SubjectHeader, subject)
	out.Header.Set(middleware.RolesHeader, enums.JoinRoles(roles))

	rec := &statusWriter{ResponseWriter: w}
	_, err := g.breakers[route.Name].Execute(func() (any, error) {
		g.proxies[route.Name].ServeHTTP(rec, out)
		result.status = rec.status
		if result.err != nil {
			result.status = 0
			return nil, result.err
		}
		if rec.status >= http.StatusInternalServerError {
			return nil, fmt.Errorf("upstream %s answered %d", route.Name, rec.status)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		responses.WriteError(ctx, g.logg, w,
			pkgerrors.Wrapk(pkgerrors.CodeUnavailable, err, messages.UpstreamUnavailable, route.Name))
		return
	}
	g.metrics.Upstream(route.Name, result.status)
}

// scrubIdentity drops identity headers a client may have forged; only the
// gateway sets them.
func scrubIdentity(h http.Header) {
	for name := range h {
		if strings.HasPrefix(http.CanonicalHeaderKey(name), "X-Auth-") {
			h.Del(name)
		}
	}
}

func (g *Gateway) newProxy(route Route, transport http.RoundTripper) *httputil.ReverseProxy {
	target := route.Upstream
	return &httputil.ReverseProxy{
		Transport: transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			ctx := r.Context()
			var typed *pkgerrors.Error
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				typed = pkgerrors.Wrapk(pkgerrors.CodeUpstreamTimeout, err, messages.UpstreamTimeout, route.Name)
			} else {
				typed = pkgerrors.Wrapk(pkgerrors.CodeUnavailable, err, messages.UpstreamUnavailable, route.Name)
			}
			if result, ok := ctx.Value(outcomeKey{}).(*outcome); ok {
				result.err = typed
			}
			responses.WriteError(ctx, g.logg, w, typed)
		},
	}
}

// statusWriter records the status the proxy wrote.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusWriter) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
