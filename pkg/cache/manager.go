package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"

	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/messages"
)

// Manager owns every named cache of a process and backs the administrative
// clear operations.
type Manager struct {
	mu     sync.RWMutex
	caches map[string]Cache
}

func NewManager(caches ...Cache) *Manager {
	m := &Manager{caches: make(map[string]Cache)}
	for _, c := range caches {
		m.Register(c)
	}
	return m
}

func (m *Manager) Register(c Cache) {
	if c == nil {
		return
	}
	m.mu.Lock()
	m.caches[c.Name()] = c
	m.mu.Unlock()
}

// Get returns the named cache or nil.
func (m *Manager) Get(name string) Cache {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caches[name]
}

// Names lists registered caches in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClearAll empties every cache, attempting all of them even if some fail.
func (m *Manager) ClearAll(ctx context.Context) error {
	var errs error
	for _, name := range m.Names() {
		if err := m.Get(name).EvictAll(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("clear %s: %w", name, err))
		}
	}
	if errs != nil {
		return pkgerrors.Wrapk(pkgerrors.CodeDependency, errs, messages.DependencyFailed, "cache")
	}
	return nil
}

// Clear empties one cache. Unknown names are NotFound.
func (m *Manager) Clear(ctx context.Context, name string) error {
	c := m.Get(name)
	if c == nil {
		return pkgerrors.Newk(pkgerrors.CodeNotFound, messages.UnknownCache, name)
	}
	if err := c.EvictAll(ctx); err != nil {
		return pkgerrors.Wrapk(pkgerrors.CodeDependency, err, messages.DependencyFailed, "cache")
	}
	return nil
}

// Evict removes single keys from the named cache.
func (m *Manager) Evict(ctx context.Context, name string, keys ...string) error {
	c := m.Get(name)
	if c == nil {
		return pkgerrors.Newk(pkgerrors.CodeNotFound, messages.UnknownCache, name)
	}
	if err := c.Evict(ctx, keys...); err != nil {
		return pkgerrors.Wrapk(pkgerrors.CodeDependency, err, messages.DependencyFailed, "cache")
	}
	return nil
}
