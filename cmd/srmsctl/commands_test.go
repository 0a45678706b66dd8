package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srms-platform/srms-backend/pkg/auth"
	"github.com/srms-platform/srms-backend/pkg/cache"
	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/enums"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
)

type cliFixture struct {
	customers *cache.MemoryCache
	pages     *cache.MemoryCache
	manager   *cache.Manager
	closed    int
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	f := &cliFixture{
		customers: cache.NewMemoryCache(cache.Customers, 0),
		pages:     cache.NewMemoryCache(cache.CustomerPages, 0),
	}
	f.manager = cache.NewManager(f.customers, f.pages)
	ctx := context.Background()
	require.NoError(t, f.customers.Put(ctx, "getById:a:false", "a"))
	require.NoError(t, f.customers.Put(ctx, "getById:b:false", "b"))
	require.NoError(t, f.pages.Put(ctx, "list:0", "page"))
	return f
}

func (f *cliFixture) open(context.Context) (cacheAdmin, func(), error) {
	return f.manager, func() { f.closed++ }, nil
}

func run(t *testing.T, open openCaches, args ...string) (string, error) {
	t.Helper()
	return runWith(t, deps{caches: open, jwt: testJWT}, args...)
}

func testJWT() (config.JWTConfig, error) {
	return config.JWTConfig{Secret: "dev-secret", Issuer: "srms-dev"}, nil
}

func runWith(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(d)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCacheList(t *testing.T) {
	f := newCLIFixture(t)
	out, err := run(t, f.open, "cache", "list")
	require.NoError(t, err)
	assert.Equal(t, "customer-pages\ncustomers\n", out)
	assert.Equal(t, 1, f.closed)
}

func TestCacheClearByName(t *testing.T) {
	f := newCLIFixture(t)
	out, err := run(t, f.open, "cache", "clear", cache.Customers)
	require.NoError(t, err)
	assert.Contains(t, out, "cleared customers")
	assert.Equal(t, 0, f.customers.Len())
	assert.Equal(t, 1, f.pages.Len())
}

func TestCacheClearAll(t *testing.T) {
	f := newCLIFixture(t)
	_, err := run(t, f.open, "cache", "clear", "--all")
	require.NoError(t, err)
	assert.Equal(t, 0, f.customers.Len())
	assert.Equal(t, 0, f.pages.Len())
}

func TestCacheClearNeedsExactlyOneMode(t *testing.T) {
	f := newCLIFixture(t)
	_, err := run(t, f.open, "cache", "clear")
	require.Error(t, err)
	_, err = run(t, f.open, "cache", "clear", "--all", cache.Customers)
	require.Error(t, err)
	assert.Equal(t, 0, f.closed, "nothing is opened for invalid usage")
}

func TestCacheClearUnknownName(t *testing.T) {
	f := newCLIFixture(t)
	_, err := run(t, f.open, "cache", "clear", "sessions")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCacheEvict(t *testing.T) {
	f := newCLIFixture(t)
	out, err := run(t, f.open, "cache", "evict", cache.Customers, "getById:a:false")
	require.NoError(t, err)
	assert.Contains(t, out, "evicted 1 key(s) from customers")
	assert.Equal(t, 1, f.customers.Len())

	_, err = run(t, f.open, "cache", "evict", cache.Customers)
	require.Error(t, err)
}

func TestOpenFailureIsReported(t *testing.T) {
	boom := errors.New("redis down")
	_, err := run(t, func(context.Context) (cacheAdmin, func(), error) { return nil, nil, boom }, "cache", "list")
	assert.ErrorIs(t, err, boom)
}

func TestTokenMintsVerifiableToken(t *testing.T) {
	out, err := run(t, nil, "token", "--subject", "dev-user", "--roles", "Manager,offline_access,viewer")
	require.NoError(t, err)

	cfg, _ := testJWT()
	verifier, err := auth.NewVerifier(cfg)
	require.NoError(t, err)
	claims, err := verifier.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "dev-user", claims.Subject)
	assert.Equal(t, []enums.Role{enums.RoleManager, enums.RoleViewer}, claims.Roles())
}

func TestTokenRequiresSubjectAndRoles(t *testing.T) {
	_, err := run(t, nil, "token")
	require.Error(t, err)
	_, err = run(t, nil, "token", "--subject", "u", "--roles", "root")
	require.Error(t, err)
}
