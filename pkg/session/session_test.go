package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/codec"
	"github.com/dmitrymomot/sessionkit/pkg/kvstore"
)

func newTestSession(t *testing.T, store kvstore.Store, sid string) *Session {
	t.Helper()

	s, err := loadSession(context.Background(), sessionParams{
		id:        sid,
		namespace: GlobalNamespace,
		ttl:       time.Minute,
		store:     store,
		codec:     codec.JSON{},
		monitor:   NewMonitor(true),
	})
	require.NoError(t, err)
	return s
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh session is new and unusable until fixed", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "s1")
		assert.True(t, s.IsNew())
		assert.False(t, s.IsValid())

		s.fix()
		assert.True(t, s.IsValid())
	})

	t.Run("save writes attributes and metadata", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "s2")
		s.fix()
		s.Set("theme", "dark")
		require.NoError(t, s.Save(ctx))

		metaKey, err := MetadataKey(GlobalNamespace, "s2")
		require.NoError(t, err)
		ok, err := store.Contains(ctx, metaKey)
		require.NoError(t, err)
		assert.True(t, ok)

		attrKey, err := AttributeKey(GlobalNamespace, "s2", "theme")
		require.NoError(t, err)
		ok, err = store.Contains(ctx, attrKey)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("second load sees persisted state", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		first := newTestSession(t, store, "s3")
		first.fix()
		first.Set("theme", "dark")
		require.NoError(t, first.Save(ctx))

		second := newTestSession(t, store, "s3")
		assert.False(t, second.IsNew())
		assert.True(t, second.IsValid())

		theme, ok := second.GetString(ctx, "theme")
		require.True(t, ok)
		assert.Equal(t, "dark", theme)
		assert.ElementsMatch(t, []string{"theme"}, second.Names())
	})

	t.Run("remove drops the record and the index entry", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		first := newTestSession(t, store, "s4")
		first.fix()
		first.Set("theme", "dark")
		require.NoError(t, first.Save(ctx))

		second := newTestSession(t, store, "s4")
		second.Remove("theme")
		require.NoError(t, second.Save(ctx))

		attrKey, err := AttributeKey(GlobalNamespace, "s4", "theme")
		require.NoError(t, err)
		ok, err := store.Contains(ctx, attrKey)
		require.NoError(t, err)
		assert.False(t, ok)

		third := newTestSession(t, store, "s4")
		_, found := third.Get(ctx, "theme")
		assert.False(t, found)
		assert.Empty(t, third.Names())
	})

	t.Run("created counter increments on first save only", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "s5")
		s.fix()
		require.NoError(t, s.Save(ctx))
		require.NoError(t, s.Save(ctx))
		assert.Equal(t, int64(1), s.monitor.Stats().Created)

		again := newTestSession(t, store, "s5")
		require.NoError(t, again.Save(ctx))
		assert.Equal(t, int64(0), again.monitor.Stats().Created)
	})

	t.Run("unreadable metadata starts a fresh session", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		metaKey, err := MetadataKey(GlobalNamespace, "s6")
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, metaKey, []byte("{not json"), time.Minute))

		s := newTestSession(t, store, "s6")
		assert.True(t, s.IsNew())
	})
}

func TestSessionAttributes(t *testing.T) {
	ctx := context.Background()

	t.Run("dirty value wins over stored value", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		first := newTestSession(t, store, "a1")
		first.fix()
		first.Set("theme", "dark")
		require.NoError(t, first.Save(ctx))

		second := newTestSession(t, store, "a1")
		second.Set("theme", "light")
		theme, ok := second.GetString(ctx, "theme")
		require.True(t, ok)
		assert.Equal(t, "light", theme)
	})

	t.Run("pending removal hides the stored value", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		first := newTestSession(t, store, "a2")
		first.fix()
		first.Set("theme", "dark")
		require.NoError(t, first.Save(ctx))

		second := newTestSession(t, store, "a2")
		second.Remove("theme")
		_, ok := second.Get(ctx, "theme")
		assert.False(t, ok)
		assert.Empty(t, second.Names())
	})

	t.Run("get string rejects non-string values", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "a3")
		s.fix()
		s.Set("count", 3.0)
		_, ok := s.GetString(ctx, "count")
		assert.False(t, ok)
	})

	t.Run("absent attribute is read from the store only once", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "a4")
		_, ok := s.Get(ctx, "ghost")
		assert.False(t, ok)
		_, ok = s.Get(ctx, "ghost")
		assert.False(t, ok)
	})

	t.Run("orphan attribute record is re-indexed on save", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		first := newTestSession(t, store, "a5")
		first.fix()
		require.NoError(t, first.Save(ctx))

		// Attribute record exists but the metadata index does not know it.
		attrKey, err := AttributeKey(GlobalNamespace, "a5", "orphan")
		require.NoError(t, err)
		data, err := codec.JSON{}.Marshal("value")
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, attrKey, data, time.Minute))

		second := newTestSession(t, store, "a5")
		v, ok := second.GetString(ctx, "orphan")
		require.True(t, ok)
		assert.Equal(t, "value", v)
		require.NoError(t, second.Save(ctx))

		third := newTestSession(t, store, "a5")
		assert.ElementsMatch(t, []string{"orphan"}, third.Names())
	})
}

func TestSessionReloadAttributes(t *testing.T) {
	ctx := context.Background()

	t.Run("sees writes made under the same id", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		a := newTestSession(t, store, "r1")
		a.fix()
		require.NoError(t, a.Save(ctx))

		b := newTestSession(t, store, "r1")
		b.Set("cart", "3 items")
		require.NoError(t, b.Save(ctx))

		require.NoError(t, a.ReloadAttributes(ctx))
		cart, ok := a.GetString(ctx, "cart")
		require.True(t, ok)
		assert.Equal(t, "3 items", cart)
	})

	t.Run("pending writes survive a reload", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		a := newTestSession(t, store, "r2")
		a.fix()
		a.Set("theme", "dark")
		require.NoError(t, a.Save(ctx))

		b := newTestSession(t, store, "r2")
		b.Set("theme", "light")
		require.NoError(t, b.ReloadAttributes(ctx))

		theme, ok := b.GetString(ctx, "theme")
		require.True(t, ok)
		assert.Equal(t, "light", theme)
	})

	t.Run("no stored metadata is not an error", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "r3")
		assert.NoError(t, s.ReloadAttributes(ctx))
	})
}

func TestSessionInvalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("removes every record", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "i1")
		s.fix()
		s.Set("theme", "dark")
		require.NoError(t, s.Save(ctx))

		sidKey, err := SessionKey("i1")
		require.NoError(t, err)
		require.NoError(t, store.LoginPut(ctx, sidKey, []byte("alice"), time.Minute))

		require.NoError(t, s.Invalidate(ctx))

		metaKey, err := MetadataKey(GlobalNamespace, "i1")
		require.NoError(t, err)
		ok, err := store.Contains(ctx, metaKey)
		require.NoError(t, err)
		assert.False(t, ok)

		attrKey, err := AttributeKey(GlobalNamespace, "i1", "theme")
		require.NoError(t, err)
		ok, err = store.Contains(ctx, attrKey)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.LoginContains(ctx, sidKey)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.Equal(t, int64(1), s.monitor.Stats().Destroyed)
	})

	t.Run("invalidated session is inert", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "i2")
		s.fix()
		require.NoError(t, s.Save(ctx))
		require.NoError(t, s.Invalidate(ctx))

		assert.False(t, s.IsValid())
		s.Set("theme", "dark")
		_, ok := s.Get(ctx, "theme")
		assert.False(t, ok)
		assert.Nil(t, s.Names())
		require.NoError(t, s.Save(ctx))

		metaKey, err := MetadataKey(GlobalNamespace, "i2")
		require.NoError(t, err)
		ok, err = store.Contains(ctx, metaKey)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("idempotent", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "i3")
		s.fix()
		require.NoError(t, s.Save(ctx))
		require.NoError(t, s.Invalidate(ctx))
		require.NoError(t, s.Invalidate(ctx))
		assert.Equal(t, int64(1), s.monitor.Stats().Destroyed)
	})

	t.Run("post invalidate hook fires", func(t *testing.T) {
		store := kvstore.NewMemoryStore(0)
		defer store.Close()

		s := newTestSession(t, store, "i4")
		s.fix()
		var fired bool
		s.PostInvalidate = func(*Session) { fired = true }
		require.NoError(t, s.Invalidate(ctx))
		assert.True(t, fired)
	})
}
