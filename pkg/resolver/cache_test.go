package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissThenPutThenHit(t *testing.T) {
	c := New(time.Hour, 0, nil)
	defer c.Close()

	_, ok := c.Get(`\share\file.txt`)
	assert.False(t, ok)

	c.Put(`\share\file.txt`, []byte{1, 2, 3}, "attrs", 0)

	entry, ok := c.Get(`\share\file.txt`)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, entry.Handle)
	assert.Equal(t, "attrs", entry.Attrs)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c := New(0, 0, nil)
	defer c.Close()

	c.Put(`\a`, []byte{9}, nil, 10*time.Millisecond)
	_, ok := c.Get(`\a`)
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = c.Get(`\a`)
	assert.False(t, ok)
}

func TestInvalidatePrefixRemovesSubtreeOnly(t *testing.T) {
	c := New(time.Hour, 0, nil)
	defer c.Close()

	c.Put(`\dir`, []byte{1}, nil, 0)
	c.Put(`\dir\a`, []byte{2}, nil, 0)
	c.Put(`\dir\b\c`, []byte{3}, nil, 0)
	c.Put(`\sibling`, []byte{4}, nil, 0)

	c.InvalidatePrefix(`\dir`)

	_, ok := c.Get(`\dir`)
	assert.False(t, ok)
	_, ok = c.Get(`\dir\a`)
	assert.False(t, ok)
	_, ok = c.Get(`\dir\b\c`)
	assert.False(t, ok)

	_, ok = c.Get(`\sibling`)
	assert.True(t, ok)
}

func TestMarkSizeStaleKeepsHandleButClearsAttrs(t *testing.T) {
	c := New(time.Hour, 0, nil)
	defer c.Close()

	c.Put(`\f`, []byte{7}, "old-attrs", 0)
	c.MarkSizeStale(`\f`)

	entry, ok := c.Get(`\f`)
	require.True(t, ok)
	assert.Equal(t, []byte{7}, entry.Handle)
	assert.Nil(t, entry.Attrs)

	c.Touch(`\f`, "new-attrs")
	entry, ok = c.Get(`\f`)
	require.True(t, ok)
	assert.Equal(t, "new-attrs", entry.Attrs)
}

func TestBackgroundSweepEvictsExpiredEntries(t *testing.T) {
	c := New(10*time.Millisecond, 5*time.Millisecond, nil)
	defer c.Close()

	c.Put(`\x`, []byte{1}, nil, 0)
	require.Equal(t, 1, c.Len())

	assert.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 5*time.Millisecond)
}
