package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markview/markview/internal/errors"
	"github.com/markview/markview/internal/types"
)

func entry(ts, html string) *types.RenderEntry {
	return &types.RenderEntry{
		Timestamp: ts,
		HTMLPart:  html,
		Filename:  "doc.md",
		Dirname:   "/d",
	}
}

func TestCache_PutGetExists(t *testing.T) {
	c := New()

	ok, err := c.Exists(1)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := c.Get(1)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Put(1, entry("1", "<h1>Hi</h1>")))

	ok, err = c.Exists(1)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = c.Get(1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1", got.Timestamp)
	assert.Equal(t, "<h1>Hi</h1>", got.HTMLPart)
}

func TestCache_PutReplacesAtomically(t *testing.T) {
	c := New()
	require.NoError(t, c.Put(1, entry("1", "old")))
	require.NoError(t, c.Put(1, entry("2", "new")))

	got, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "2", got.Timestamp)
	assert.Equal(t, "new", got.HTMLPart)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "at most one entry per buffer id")
}

func TestCache_GetReturnsSnapshotCopy(t *testing.T) {
	c := New()
	e := entry("1", "original")
	require.NoError(t, c.Put(1, e))

	// Mutating what we put in must not reach readers.
	e.HTMLPart = "mutated"

	got, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "original", got.HTMLPart)

	// Mutating what a reader got must not reach the cache.
	got.HTMLPart = "reader scribble"
	again, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "original", again.HTMLPart)
}

func TestCache_Disconnect(t *testing.T) {
	c := New()
	require.NoError(t, c.Put(1, entry("1", "x")))
	require.NoError(t, c.Disconnect(1))

	got, err := c.Get(1)
	require.NoError(t, err)
	assert.True(t, got.Disconnected)

	// A fresh render supersedes the disconnected entry.
	require.NoError(t, c.Put(1, entry("2", "y")))
	got, err = c.Get(1)
	require.NoError(t, err)
	assert.False(t, got.Disconnected)

	// Disconnecting an absent buffer is a no-op.
	require.NoError(t, c.Disconnect(99))
}

func TestCache_Clear(t *testing.T) {
	c := New()
	require.NoError(t, c.Put(1, entry("1", "x")))
	require.NoError(t, c.Put(2, entry("2", "y")))
	require.NoError(t, c.Clear())

	n, err := c.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_ClosedFailsEverything(t *testing.T) {
	c := New()
	require.NoError(t, c.Put(1, entry("1", "x")))
	c.Close()

	_, err := c.Get(1)
	assert.ErrorIs(t, err, errors.ErrCacheClosed)
	_, err = c.Exists(1)
	assert.ErrorIs(t, err, errors.ErrCacheClosed)
	assert.ErrorIs(t, c.Put(1, entry("2", "y")), errors.ErrCacheClosed)
	assert.ErrorIs(t, c.Clear(), errors.ErrCacheClosed)
	_, err = c.Len()
	assert.ErrorIs(t, err, errors.ErrCacheClosed)
}

// TestCache_NoTornReads hammers one buffer id with a writer while many
// readers poll it; a reader must never observe timestamp and html from
// different writes.
func TestCache_NoTornReads(t *testing.T) {
	c := New()
	const writes = 500
	const readers = 8

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := c.Get(1)
				if err != nil || got == nil {
					continue
				}
				if got.HTMLPart != "payload for "+got.Timestamp {
					t.Errorf("torn read: timestamp %q with html %q", got.Timestamp, got.HTMLPart)
					return
				}
			}
		}()
	}

	for i := 0; i < writes; i++ {
		ts := fmt.Sprintf("%d", i)
		require.NoError(t, c.Put(1, entry(ts, "payload for "+ts)))
	}
	close(stop)
	wg.Wait()
}
