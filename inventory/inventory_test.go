package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/liamg/stormscan/config"
	"github.com/liamg/stormscan/failure"
	"github.com/liamg/stormscan/provider"
	"github.com/liamg/stormscan/scan"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listOnly struct {
	provider.Provider
	instances []provider.Instance
	err       error
}

func (l *listOnly) ListInstances(context.Context) ([]provider.Instance, error) {
	return l.instances, l.err
}

func factoryFor(byToken map[string]*listOnly) ProviderFactory {
	return func(token string) provider.Provider {
		return byToken[token]
	}
}

func TestBuild(t *testing.T) {
	log, hook := test.NewNullLogger()

	builder := NewBuilder(factoryFor(map[string]*listOnly{
		"t1": {instances: []provider.Instance{
			{Name: "web", PublicIPv4: "198.51.100.1"},
			{Name: "internal"},
			{Name: "shared", PublicIPv4: "198.51.100.9"},
		}},
		"t2": {instances: []provider.Instance{
			{Name: "db", PublicIPv4: "198.51.100.2"},
			{Name: "shared-later", PublicIPv4: "198.51.100.9"},
		}},
	}), log)

	inv, err := builder.Build(context.Background(), []config.Account{
		{Name: "frontend", Token: "t1"},
		{Name: "backend", Token: "t2"},
	})
	require.NoError(t, err)

	assert.Equal(t, Inventory{
		"198.51.100.1": {Project: "frontend", Name: "web"},
		"198.51.100.2": {Project: "backend", Name: "db"},
		"198.51.100.9": {Project: "backend", Name: "shared-later"},
	}, inv)

	assert.Equal(t, scan.Targets{"198.51.100.1", "198.51.100.2", "198.51.100.9"}, inv.Targets())

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Server internal does not have primary ipv4" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestBuildListingFailure(t *testing.T) {
	log, _ := test.NewNullLogger()

	builder := NewBuilder(factoryFor(map[string]*listOnly{
		"t1": {err: errors.New("unauthorized")},
	}), log)

	_, err := builder.Build(context.Background(), []config.Account{{Name: "broken", Token: "t1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrProvision)
	assert.Contains(t, err.Error(), "broken")
}

func TestLookupOnNilInventory(t *testing.T) {
	var inv Inventory
	_, ok := inv.Lookup("1.2.3.4")
	assert.False(t, ok)
	assert.Empty(t, inv.Targets())
}
