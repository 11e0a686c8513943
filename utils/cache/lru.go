package cache

import "sync"

// NewLRUCache returns a cache holding at most size entries. Put evicts the
// least recently used entry once the cache is over size.
func NewLRUCache[K comparable, V any](size int) Cache[K, V] {
	return &LRUCache[K, V]{
		cache:    make(map[K]*Node[K, V], size),
		size:     size,
		listHead: nil,
	}
}

// LRUCache keeps its entries on a circular list. listHead is the least
// recently used entry and listHead.prev the most recently used one.
type LRUCache[K comparable, V any] struct {
	mutex    sync.Mutex
	cache    map[K]*Node[K, V]
	size     int
	listHead *Node[K, V]
	length   int
}

type Node[K comparable, V any] struct {
	key   K
	value V
	prev  *Node[K, V]
	next  *Node[K, V]
}

func (c *LRUCache[K, V]) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.length
}

// Range walks from the least to the most recently used entry without
// touching the recency order. The cache is locked for the whole walk.
func (c *LRUCache[K, V]) Range(onEach func(K, V) bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.listHead == nil {
		return
	}
	node := c.listHead
	for {
		if !onEach(node.key, node.value) {
			return
		}
		node = node.next
		if node == c.listHead {
			return
		}
	}
}

// Compact evicts least recently used entries until the cache is back to
// size. It stops early when onEvict refuses an entry.
func (c *LRUCache[K, V]) Compact(onEvict func(K, V) bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.compact(onEvict)
}

func (c *LRUCache[K, V]) compact(onEvict func(K, V) bool) {
	for c.length > c.size {
		node := c.listHead
		if !onEvict(node.key, node.value) {
			return
		}
		c.remove(node)
	}
}

// Evict deletes key if present and preEvict agrees.
func (c *LRUCache[K, V]) Evict(key K, preEvict func(V) bool) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node, ok := c.cache[key]
	if !ok || !preEvict(node.value) {
		return false
	}
	c.remove(node)
	return true
}

// Purge drops every entry.
func (c *LRUCache[K, V]) Purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	clear(c.cache)
	c.listHead = nil
	c.length = 0
}

func (c *LRUCache[K, V]) Put(key K, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, ok := c.cache[key]; ok {
		node.value = value
		c.unlink(node)
		c.pushBack(node)
		return
	}

	node := &Node[K, V]{
		key:   key,
		value: value,
	}
	c.cache[key] = node
	c.pushBack(node)
	c.length++
	c.compact(func(K, V) bool { return true })
}

func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node, ok := c.cache[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.unlink(node)
	c.pushBack(node)
	return node.value, true
}

// pushBack makes node the most recently used entry.
func (c *LRUCache[K, V]) pushBack(node *Node[K, V]) {
	if c.listHead == nil {
		node.prev = node
		node.next = node
		c.listHead = node
		return
	}
	tail := c.listHead.prev
	tail.next = node
	node.prev = tail
	node.next = c.listHead
	c.listHead.prev = node
}

func (c *LRUCache[K, V]) unlink(node *Node[K, V]) {
	if node.next == node {
		c.listHead = nil
	} else {
		node.prev.next = node.next
		node.next.prev = node.prev
		if c.listHead == node {
			c.listHead = node.next
		}
	}
	node.prev = nil
	node.next = nil
}

func (c *LRUCache[K, V]) remove(node *Node[K, V]) {
	c.unlink(node)
	delete(c.cache, node.key)
	c.length--
}
