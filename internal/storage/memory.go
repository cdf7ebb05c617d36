package storage

import (
	"sync"

	"hcext/internal/logging"
)

type memItem struct {
	key   string
	value []byte
	prev  *memItem
	next  *memItem
}

// Memory is an in-process Backend bounded by maxBytes. When full it drops
// the least recently used tenth of its keys until the new value fits.
type Memory struct {
	maxBytes    int64
	overflowLog *logging.RateLimited

	mu    sync.Mutex
	items map[string]*memItem
	head  *memItem
	tail  *memItem
	total int64
}

// NewMemory returns a Memory backend. A maxBytes of zero means unbounded.
func NewMemory(maxBytes int64, overflowLog *logging.RateLimited) *Memory {
	if overflowLog == nil {
		overflowLog = logging.NewRateLimited(nil, 0)
	}
	return &Memory{maxBytes: maxBytes, overflowLog: overflowLog, items: map[string]*memItem{}}
}

func (c *Memory) TotalSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Memory) KeyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Memory) Get(key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	c.moveToFront(it)
	return append([]byte(nil), it.value...), true, nil
}

func (c *Memory) Set(key string, value []byte) error {
	sz := itemSize(key, value)
	if c.maxBytes > 0 && sz > c.maxBytes {
		return ErrTooLarge
	}
	value = append([]byte(nil), value...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[key]; ok {
		c.total -= itemSize(it.key, it.value)
		it.value = value
		c.total += sz
		c.moveToFront(it)
		c.evictOverflowLocked(it)
		return nil
	}

	if c.maxBytes > 0 && c.total+sz > c.maxBytes {
		c.overflowLog.Warn("memory storage overflow, evicting", "key", key, "size", FormatBytes(uint64(sz)))
	}
	for c.maxBytes > 0 && c.total+sz > c.maxBytes && c.tail != nil {
		c.evictSomeLocked(nil)
	}

	it := &memItem{key: key, value: value}
	c.items[key] = it
	c.addToFront(it)
	c.total += sz
	return nil
}

func (c *Memory) evictOverflowLocked(keep *memItem) {
	for c.maxBytes > 0 && c.total > c.maxBytes && c.tail != keep {
		c.evictSomeLocked(keep)
	}
}

func (c *Memory) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[key]; ok {
		c.dropLocked(it)
	}
	return nil
}

func (c *Memory) Close() error { return nil }

// evictSomeLocked drops the least recently used tenth of the keys, never
// touching keep.
func (c *Memory) evictSomeLocked(keep *memItem) {
	n := len(c.items) / 10
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		it := c.tail
		if it == nil || it == keep {
			return
		}
		c.dropLocked(it)
	}
}

func (c *Memory) dropLocked(it *memItem) {
	c.remove(it)
	delete(c.items, it.key)
	c.total -= itemSize(it.key, it.value)
}

func itemSize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

func (c *Memory) addToFront(it *memItem) {
	it.prev = nil
	it.next = c.head
	if c.head != nil {
		c.head.prev = it
	}
	c.head = it
	if c.tail == nil {
		c.tail = it
	}
}

func (c *Memory) remove(it *memItem) {
	if it.prev != nil {
		it.prev.next = it.next
	} else {
		c.head = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else {
		c.tail = it.prev
	}
	it.prev, it.next = nil, nil
}

func (c *Memory) moveToFront(it *memItem) {
	if c.head == it {
		return
	}
	c.remove(it)
	c.addToFront(it)
}
