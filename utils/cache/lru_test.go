package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func keys(c Cache[int, int]) []int {
	out := []int{}
	c.Range(func(k, _ int) bool {
		out = append(out, k)
		return true
	})
	return out
}

func TestLRUCache(t *testing.T) {
	c := NewLRUCache[int, int](10)
	cache := c.(*LRUCache[int, int])
	for i := 0; i < 10; i++ {
		cache.Put(i, i)
	}
	for i := 0; i < 10; i++ {
		value, ok := cache.Get(i)
		if !ok {
			t.Errorf("expected value %d to be in cache", i)
		}
		if value != i {
			t.Errorf("expected value %d to be %d", value, i)
		}
	}

	assert.Equal(t, cache.length, 10)
	assert.Equal(t, cache.listHead, cache.listHead.prev.next)

	_, ok := cache.Get(42)
	assert.False(t, ok)

	for i := 0; i < 10; i++ {
		cache.Evict(i, func(i int) bool { return true })
	}
	assert.Equal(t, cache.length, 0)
	assert.Empty(t, cache.listHead)
	assert.False(t, cache.Evict(3, func(int) bool { return true }))
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int, int](3)
	c.Put(1, 10)
	c.Put(2, 20)
	c.Put(3, 30)
	assert.Equal(t, []int{1, 2, 3}, keys(c))

	// touching 1 makes 2 the oldest
	c.Get(1)
	assert.Equal(t, []int{2, 3, 1}, keys(c))
	c.Put(4, 40)
	assert.Equal(t, []int{3, 1, 4}, keys(c))
	_, ok := c.Get(2)
	assert.False(t, ok)

	c.Put(3, 33)
	value, _ := c.Get(3)
	assert.Equal(t, 33, value)
	assert.Equal(t, []int{1, 4, 3}, keys(c))
	assert.Equal(t, 3, c.Size())

	assert.False(t, c.Evict(4, func(int) bool { return false }))
	assert.Equal(t, 3, c.Size())

	c.Purge()
	assert.Equal(t, 0, c.Size())
	assert.Empty(t, keys(c))
	c.Put(5, 50)
	assert.Equal(t, []int{5}, keys(c))
}
