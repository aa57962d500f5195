package scopes

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *BrandingCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBrandingCache(client, time.Minute)
}

func countingLoader(branding *Branding) (func(context.Context) (*Branding, error), *int) {
	calls := 0
	return func(context.Context) (*Branding, error) {
		calls++
		return branding, nil
	}, &calls
}

func TestBrandingCacheServesSecondReadFromRedis(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	loader, calls := countingLoader(&Branding{PrimaryColor: strptr("#1A2B3C")})

	first, err := cache.Effective(ctx, "scope-1", loader)
	require.NoError(t, err)
	require.Equal(t, "#1A2B3C", *first.PrimaryColor)
	require.Equal(t, 1, *calls)

	second, err := cache.Effective(ctx, "scope-1", loader)
	require.NoError(t, err)
	require.Equal(t, "#1A2B3C", *second.PrimaryColor)
	require.Equal(t, 1, *calls)
}

func TestBrandingCacheCachesNilBranding(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	loader, calls := countingLoader(nil)

	got, err := cache.Effective(ctx, "scope-plain", loader)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = cache.Effective(ctx, "scope-plain", loader)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 1, *calls)
}

func TestBumpInvalidatesAllScopes(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	loaderA, callsA := countingLoader(&Branding{Tagline: strptr("a")})
	loaderB, callsB := countingLoader(&Branding{Tagline: strptr("b")})

	_, err := cache.Effective(ctx, "scope-a", loaderA)
	require.NoError(t, err)
	_, err = cache.Effective(ctx, "scope-b", loaderB)
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	_, err = cache.Effective(ctx, "scope-a", loaderA)
	require.NoError(t, err)
	_, err = cache.Effective(ctx, "scope-b", loaderB)
	require.NoError(t, err)
	require.Equal(t, 2, *callsA)
	require.Equal(t, 2, *callsB)
}

func TestNilCacheDelegatesToLoader(t *testing.T) {
	var cache *BrandingCache
	loader, calls := countingLoader(&Branding{Tagline: strptr("x")})

	got, err := cache.Effective(context.Background(), "scope-1", loader)
	require.NoError(t, err)
	require.Equal(t, "x", *got.Tagline)
	require.Equal(t, 1, *calls)
}
