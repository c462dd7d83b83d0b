package demo

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/chenyanchen/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyanchen/modreg"
)

func TestServiceWiring(t *testing.T) {
	ctx := context.Background()
	reg := modreg.New(modreg.WithFactory(Factory()))
	require.NoError(t, modreg.Register[*Service](ctx, reg, modreg.DefaultPolicy()))

	for _, typ := range []any{(*Service)(nil), (*MemoryStore)(nil), (*SystemClock)(nil), (*Cache)(nil), (*Settings)(nil), (*Metrics)(nil)} {
		assert.True(t, reg.Has(reflect.TypeOf(typ)), "%T", typ)
	}

	svc, err := modreg.GetAs[*Service](reg)
	require.NoError(t, err)
	require.NoError(t, svc.Store.Set(ctx, "u1", "Ada"))

	got, err := svc.Greet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "hello, Ada", got)

	got, err = svc.Greet(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "hello, u2", got)

	metrics, err := modreg.GetAs[*Metrics](reg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), metrics.Calls())
	require.NoError(t, reg.Close(ctx))
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestCacheWritesThrough(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	reg := modreg.New(modreg.WithFactory(Factory()), modreg.WithCapabilities(modreg.TypeOf[Clock]()))
	require.NoError(t, reg.RegisterAnonymous(ctx, fixedClock{at: at}))
	require.NoError(t, modreg.Register[*Cache](ctx, reg, modreg.DefaultPolicy()))

	cache, err := modreg.GetAs[*Cache](reg)
	require.NoError(t, err)
	store, err := modreg.GetAs[*MemoryStore](reg)
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, "k", "v"))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	updated, ok := store.UpdatedAt("k")
	require.True(t, ok)
	assert.Equal(t, at, updated)

	require.NoError(t, store.Del(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestPingPong(t *testing.T) {
	reg := modreg.New()
	require.NoError(t, modreg.Register[*Ping](context.Background(), reg, modreg.DefaultPolicy()))

	ping, err := modreg.GetAs[*Ping](reg)
	require.NoError(t, err)
	assert.True(t, ping.Pong.Ping == ping)
}

func TestCatalogNames(t *testing.T) {
	names := Catalog().Names()
	assert.Contains(t, names, "service")
	assert.Contains(t, names, "store")
	assert.Len(t, names, 10)
}
