package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/codec"
)

func TestResolve(t *testing.T) {
	t.Run("resolves built-in codecs", func(t *testing.T) {
		c, err := codec.Resolve("json")
		require.NoError(t, err)
		assert.NotNil(t, c)

		c, err = codec.Resolve("gob")
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("empty name falls back to default", func(t *testing.T) {
		c, err := codec.Resolve("")
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("unknown name fails", func(t *testing.T) {
		_, err := codec.Resolve("protobuf")
		assert.ErrorIs(t, err, codec.ErrUnknownCodec)
	})

	t.Run("custom codec is resolvable", func(t *testing.T) {
		codec.Register("custom-json", codec.JSON{})
		c, err := codec.Resolve("custom-json")
		require.NoError(t, err)
		assert.NotNil(t, c)
	})
}

func TestJSONRoundTrip(t *testing.T) {
	c := codec.JSON{}

	t.Run("map value", func(t *testing.T) {
		data, err := c.Marshal(map[string]any{"items": 1})
		require.NoError(t, err)

		var got any
		require.NoError(t, c.Unmarshal(data, &got))

		m, ok := got.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 1, m["items"])
	})

	t.Run("string value", func(t *testing.T) {
		data, err := c.Marshal("alice")
		require.NoError(t, err)

		var got any
		require.NoError(t, c.Unmarshal(data, &got))
		assert.Equal(t, "alice", got)
	})

	t.Run("unencodable value fails", func(t *testing.T) {
		_, err := c.Marshal(make(chan int))
		assert.ErrorIs(t, err, codec.ErrSerialization)
	})

	t.Run("corrupt payload fails", func(t *testing.T) {
		var got any
		err := c.Unmarshal([]byte("{not json"), &got)
		assert.ErrorIs(t, err, codec.ErrSerialization)
	})
}

type cart struct {
	Items int
}

func TestGobRoundTrip(t *testing.T) {
	c := codec.Gob{}
	codec.RegisterGobType(cart{})
	codec.RegisterGobType(map[string]any{})

	t.Run("concrete type survives", func(t *testing.T) {
		data, err := c.Marshal(cart{Items: 3})
		require.NoError(t, err)

		var got any
		require.NoError(t, c.Unmarshal(data, &got))
		assert.Equal(t, cart{Items: 3}, got)
	})

	t.Run("decodes into typed destination", func(t *testing.T) {
		data, err := c.Marshal(cart{Items: 7})
		require.NoError(t, err)

		var got cart
		require.NoError(t, c.Unmarshal(data, &got))
		assert.Equal(t, 7, got.Items)
	})

	t.Run("type mismatch fails", func(t *testing.T) {
		data, err := c.Marshal("a string")
		require.NoError(t, err)

		var got cart
		err = c.Unmarshal(data, &got)
		assert.ErrorIs(t, err, codec.ErrSerialization)
	})

	t.Run("corrupt payload fails", func(t *testing.T) {
		var got any
		err := c.Unmarshal([]byte{0x01, 0x02}, &got)
		assert.ErrorIs(t, err, codec.ErrSerialization)
	})
}
