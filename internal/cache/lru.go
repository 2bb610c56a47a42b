package cache

import "sync"

// entry is a node of the intrusive recency ring.
type entry[K comparable, V any] struct {
	key        K
	value      V
	prev, next *entry[K, V]
}

// Cache is a thread-safe LRU cache with a hard capacity.
// When an insertion exceeds the capacity the least recently used entry is
// evicted and passed to the eviction callback.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*entry[K, V]
	root     entry[K, V] // sentinel: root.next is most recent, root.prev least recent
	capacity int
	onEvict  func(K, V)

	hits, misses, evictions uint64
}

// New creates a cache holding at most capacity entries. A capacity of 0
// means unlimited. onEvict may be nil.
func New[K comparable, V any](capacity int, onEvict func(K, V)) *Cache[K, V] {
	c := &Cache[K, V]{
		entries:  make(map[K]*entry[K, V]),
		capacity: capacity,
		onEvict:  onEvict,
	}
	c.root.next = &c.root
	c.root.prev = &c.root
	return c
}

// Get returns the cached value and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.moveToFront(e)
	return e.value, true
}

// Set stores value under key, replacing (and evicting) any previous value.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	evicted := c.setLocked(key, value)
	c.mu.Unlock()
	c.notify(evicted)
}

// GetOrCreate returns the cached value or stores the result of create.
// Errors from create are returned and nothing is cached.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		c.moveToFront(e)
		c.mu.Unlock()
		return e.value, nil
	}
	c.misses++

	value, err := create()
	if err != nil {
		c.mu.Unlock()
		return value, err
	}
	evicted := c.setLocked(key, value)
	c.mu.Unlock()
	c.notify(evicted)
	return value, nil
}

// Delete removes key without calling the eviction callback.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.unlink(e)
	delete(c.entries, key)
	return true
}

// Clear evicts every entry through the eviction callback.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	evicted := make([]*entry[K, V], 0, len(c.entries))
	for e := c.root.prev; e != &c.root; e = e.prev {
		evicted = append(evicted, e)
	}
	c.entries = make(map[K]*entry[K, V])
	c.root.next = &c.root
	c.root.prev = &c.root
	c.mu.Unlock()
	c.notify(evicted)
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Len:       len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// setLocked inserts or replaces key and returns the entries to evict.
// Caller must hold c.mu.
func (c *Cache[K, V]) setLocked(key K, value V) []*entry[K, V] {
	var evicted []*entry[K, V]
	if old, ok := c.entries[key]; ok {
		c.unlink(old)
		evicted = append(evicted, &entry[K, V]{key: old.key, value: old.value})
	}
	e := &entry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	for c.capacity > 0 && len(c.entries) > c.capacity {
		oldest := c.root.prev
		c.unlink(oldest)
		delete(c.entries, oldest.key)
		c.evictions++
		evicted = append(evicted, oldest)
	}
	return evicted
}

func (c *Cache[K, V]) notify(evicted []*entry[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range evicted {
		c.onEvict(e.key, e.value)
	}
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.prev = &c.root
	e.next = c.root.next
	c.root.next.prev = e
	c.root.next = e
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}

func (c *Cache[K, V]) moveToFront(e *entry[K, V]) {
	if c.root.next == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}
