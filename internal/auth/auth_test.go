package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *StaticResolver {
	return NewStaticResolver(
		map[string][]string{
			"alice": {"admin"},
			"bob":   {"listener"},
		},
		map[string][]string{
			"admin":    {"catalog.write", "progress.clear"},
			"listener": {},
		},
	)
}

func TestHasPermission(t *testing.T) {
	resolver := newTestResolver()
	ctx := context.Background()

	alice, err := resolver.Resolve(ctx, "alice")
	require.NoError(t, err)
	ok, err := alice.HasPermission(ctx, "catalog.write")
	require.NoError(t, err)
	assert.True(t, ok)

	bob, err := resolver.Resolve(ctx, "bob")
	require.NoError(t, err)
	ok, err = bob.HasPermission(ctx, "catalog.write")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasRole(t *testing.T) {
	resolver := newTestResolver()
	ctx := context.Background()

	alice, err := resolver.Resolve(ctx, "alice")
	require.NoError(t, err)
	ok, err := alice.HasRole(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = alice.HasRole(ctx, "listener")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownSubjectHasNothing(t *testing.T) {
	resolver := newTestResolver()
	ctx := context.Background()

	stranger, err := resolver.Resolve(ctx, "stranger")
	require.NoError(t, err)

	ok, err := stranger.HasPermission(ctx, "catalog.write")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNilMapsAreSafe(t *testing.T) {
	resolver := NewStaticResolver(nil, nil)
	ctx := context.Background()

	a, err := resolver.Resolve(ctx, "anyone")
	require.NoError(t, err)
	ok, err := a.HasPermission(ctx, "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}
