package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/enums"
)

// Role classes checked at the edge. Finer rules (manager-only deletes and
// the like) stay with the api.
var (
	readRoles  = []enums.Role{enums.RoleViewer, enums.RoleStaff, enums.RoleManager, enums.RoleAdmin}
	writeRoles = []enums.Role{enums.RoleStaff, enums.RoleManager, enums.RoleAdmin}
	adminRoles = []enums.Role{enums.RoleAdmin}
)

// Route maps a path prefix onto an upstream. Read roles guard safe methods,
// Write roles everything else.
type Route struct {
	Name     string
	Prefix   string
	Upstream *url.URL
	Read     []enums.Role
	Write    []enums.Role
}

// RoutesFromConfig builds the standard route table for the configured
// upstreams.
func RoutesFromConfig(cfg config.GatewayConfig) ([]Route, error) {
	specs := []struct {
		name, prefix, upstream string
		read, write            []enums.Role
	}{
		{"customers", "/api/v1/customers", cfg.CustomerURL, readRoles, writeRoles},
		{"contactors", "/api/v1/contactors", cfg.ContactorURL, readRoles, writeRoles},
		{"warehouses", "/api/v1/warehouses", cfg.WarehouseURL, readRoles, writeRoles},
		{"items", "/api/v1/items", cfg.WarehouseURL, readRoles, writeRoles},
		{"admin", "/api/v1/admin", cfg.AdminURL, adminRoles, adminRoles},
	}
	routes := make([]Route, 0, len(specs))
	for _, spec := range specs {
		target, err := parseUpstream(spec.upstream)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", spec.name, err)
		}
		routes = append(routes, Route{
			Name:     spec.name,
			Prefix:   spec.prefix,
			Upstream: target,
			Read:     spec.read,
			Write:    spec.write,
		})
	}
	return routes, nil
}

func parseUpstream(raw string) (*url.URL, error) {
	target, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url %q: %w", raw, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" || target.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute http(s)", raw)
	}
	return target, nil
}

// Allows reports whether any of roles may call method on the route.
func (r Route) Allows(method string, roles []enums.Role) bool {
	required := r.Write
	if safeMethod(method) {
		required = r.Read
	}
	for _, have := range roles {
		for _, want := range required {
			if have == want {
				return true
			}
		}
	}
	return false
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// routeTable matches the longest prefix ending on a path segment boundary.
type routeTable []Route

func newRouteTable(routes []Route) routeTable {
	table := append(routeTable(nil), routes...)
	sort.SliceStable(table, func(i, j int) bool {
		return len(table[i].Prefix) > len(table[j].Prefix)
	})
	return table
}

func (t routeTable) match(path string) (Route, bool) {
	for _, route := range t {
		prefix := strings.TrimSuffix(route.Prefix, "/")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return route, true
		}
	}
	return Route{}, false
}
