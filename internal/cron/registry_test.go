package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRunOrder(t *testing.T) {
	registry := NewRegistry(namedJob("outbox-retention"))
	require.NoError(t, registry.Register(namedJob("low-stock-digest")))
	require.NoError(t, registry.Register(nil))

	assert.Equal(t, []string{"outbox-retention", "low-stock-digest"}, registry.Names())

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "Jobs must hand out a copy")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(namedJob("digest"), nil, namedJob("digest"))
	assert.Len(t, registry.Jobs(), 1)
	assert.ErrorContains(t, registry.Register(namedJob("digest")), `"digest" already registered`)
}
