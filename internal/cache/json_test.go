package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedDoc struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func newTestCache(t *testing.T) (*miniredis.Miniredis, *JSONCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewJSONCache(client)
}

func TestJSONCache_SetAndGet(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "doc:1", cachedDoc{Name: "a", Score: 3}, time.Minute))

	var got cachedDoc
	found, err := c.GetJSON(ctx, "doc:1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedDoc{Name: "a", Score: 3}, got)

	mr.FastForward(2 * time.Minute)
	found, err = c.GetJSON(ctx, "doc:1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestJSONCache_AsideFetchesOnce(t *testing.T) {
	_, c := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedDoc) func() error {
		return func() error {
			calls++
			*dest = cachedDoc{Name: "fresh", Score: 1}
			return nil
		}
	}

	var first, second cachedDoc
	require.NoError(t, c.Aside(ctx, "doc:2", &first, time.Minute, fetch(&first)))
	require.NoError(t, c.Aside(ctx, "doc:2", &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestJSONCache_AsidePropagatesFetchError(t *testing.T) {
	_, c := newTestCache(t)
	var dest cachedDoc
	err := c.Aside(context.Background(), "doc:3", &dest, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
}

func TestJSONCache_MGetReportsMisses(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, ProfileKey(1), cachedDoc{Name: "one"}, time.Minute))
	require.NoError(t, mr.Set(ProfileKey(3), "{not json"))

	docs := make([]cachedDoc, 3)
	misses, err := c.MGetJSON(ctx, []string{ProfileKey(1), ProfileKey(2), ProfileKey(3)}, func(i int, raw []byte) error {
		return json.Unmarshal(raw, &docs[i])
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, misses)
	assert.Equal(t, "one", docs[0].Name)
}

func TestJSONCache_NilClientIsAlwaysAMiss(t *testing.T) {
	c := NewJSONCache((*redis.Client)(nil))
	ctx := context.Background()

	assert.False(t, c.Enabled())
	require.NoError(t, c.SetJSON(ctx, "k", cachedDoc{}, time.Minute))

	found, err := c.GetJSON(ctx, "k", &cachedDoc{})
	require.NoError(t, err)
	assert.False(t, found)

	misses, err := c.MGetJSON(ctx, []string{"a", "b"}, func(int, []byte) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, misses)
	c.Invalidate(ctx, "k")
}
