package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
)

func view(id string) *model.QueryView {
	return &model.QueryView{Query: model.Query{ID: id}}
}

func TestViewCacheSetGet(t *testing.T) {
	c := NewViewCache(time.Minute)
	defer c.Close()

	assert.Nil(t, c.Get("missing"))

	c.Set("q1", view("q1"))
	got := c.Get("q1")
	require.NotNil(t, got)
	assert.Equal(t, "q1", got.Query.ID)
}

func TestViewCacheExpiry(t *testing.T) {
	c := NewViewCache(time.Minute)
	defer c.Close()

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("q1", view("q1"))

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	assert.NotNil(t, c.Get("q1"))

	c.now = func() time.Time { return base.Add(61 * time.Second) }
	assert.Nil(t, c.Get("q1"))
	assert.Equal(t, 0, c.Len())
}

func TestViewCacheSetResetsTTL(t *testing.T) {
	c := NewViewCache(time.Minute)
	defer c.Close()

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("q1", view("q1"))

	c.now = func() time.Time { return base.Add(50 * time.Second) }
	c.Set("q1", view("q1"))

	c.now = func() time.Time { return base.Add(90 * time.Second) }
	assert.NotNil(t, c.Get("q1"))
}

func TestViewCacheInvalidate(t *testing.T) {
	c := NewViewCache(time.Minute)
	defer c.Close()

	c.Set("q1", view("q1"))
	assert.True(t, c.Invalidate("q1"))
	assert.Nil(t, c.Get("q1"))
	assert.False(t, c.Invalidate("q1"))
}

func TestViewCacheEvictExpired(t *testing.T) {
	c := NewViewCache(time.Minute)
	defer c.Close()

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("q1", view("q1"))
	c.Set("q2", view("q2"))

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	c.Set("q3", view("q3"))
	c.evictExpired()

	assert.Equal(t, 1, c.Len())
	assert.NotNil(t, c.Get("q3"))
}

func TestViewCacheDefaultTTL(t *testing.T) {
	c := NewViewCache(0)
	defer c.Close()
	assert.Equal(t, DefaultTTL, c.ttl)
}
