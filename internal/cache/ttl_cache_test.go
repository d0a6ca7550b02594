package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTLCacheWithClock[string, int](func() time.Time { return now })

	c.Set("a", 1, time.Minute)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(61 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheTakeIsSingleUse(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("token", "payload", time.Minute)

	v, ok := c.Take("token")
	require.True(t, ok)
	assert.Equal(t, "payload", v)

	_, ok = c.Take("token")
	assert.False(t, ok)
}

func TestTTLCacheZeroTTLIsNoop(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCacheSweep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTLCacheWithClock[string, int](func() time.Time { return now })

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	now = now.Add(2 * time.Second)
	c.Sweep()

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestKeyNormalizesParts(t *testing.T) {
	assert.Equal(t, "a|b", Key(" A ", "", "b"))
	assert.Equal(t, "", Key("", "  "))
}
