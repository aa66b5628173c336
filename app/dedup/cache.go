package dedup

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
)

// Capacity is the fixed bound on remembered comment fingerprints.
const Capacity = 10000

const formatVersion = 1

// Cache is a bounded FIFO set of comment fingerprints. When full, inserting
// evicts the oldest entry. The mutex exists because the status API reads the
// length concurrently with the stream loop; the loop itself is sequential.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	entries  []string
	index    map[string]struct{}
}

func NewCache() *Cache {
	return &Cache{
		capacity: Capacity,
		index:    make(map[string]struct{}),
	}
}

// Contains reports whether the fingerprint has been observed.
func (c *Cache) Contains(fingerprint string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.index[fingerprint]
	return ok
}

// Insert records a fingerprint, evicting the oldest entry when at capacity.
// Inserting an already-present fingerprint is a no-op; the loop checks
// Contains before dispatching, so arrival order is preserved.
func (c *Cache) Insert(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[fingerprint]; ok {
		return
	}

	if len(c.entries) >= c.capacity {
		oldest := c.entries[0]
		c.entries = c.entries[1:]
		delete(c.index, oldest)
	}

	c.entries = append(c.entries, fingerprint)
	c.index[fingerprint] = struct{}{}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Serialize produces the versioned binary representation: version, capacity,
// count, then length-prefixed entries in insertion order. Load round-trips it.
func (c *Cache) Serialize() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var buf bytes.Buffer
	writeUint32(&buf, formatVersion)
	writeUint32(&buf, uint32(c.capacity))
	writeUint32(&buf, uint32(len(c.entries)))

	for _, entry := range c.entries {
		writeUint32(&buf, uint32(len(entry)))
		buf.WriteString(entry)
	}

	return buf.Bytes()
}

// Load reconstructs a cache from serialized bytes. It never fails: empty,
// truncated or corrupt input and a capacity tag that no longer matches
// Capacity all yield a fresh empty cache. Losing the seen-set is acceptable;
// failing to start is not.
func Load(data []byte) *Cache {
	if len(data) == 0 {
		slog.Debug("Empty cache data, returning empty cache")
		return NewCache()
	}

	buf := bytes.NewReader(data)

	version, err := readUint32(buf)
	if err != nil || version != formatVersion {
		slog.Warn("Unsupported cache format, returning empty cache", "version", version)
		return NewCache()
	}

	capacity, err := readUint32(buf)
	if err != nil || capacity != Capacity {
		slog.Warn("Cache capacity mismatch, returning empty cache", "capacity", capacity, "expected", Capacity)
		return NewCache()
	}

	count, err := readUint32(buf)
	if err != nil || count > Capacity {
		slog.Warn("Invalid cache entry count, returning empty cache", "count", count)
		return NewCache()
	}

	cache := NewCache()
	for i := uint32(0); i < count; i++ {
		length, err := readUint32(buf)
		if err != nil {
			slog.Warn("Truncated cache data, returning empty cache", "entries_read", i)
			return NewCache()
		}

		// A corrupt length prefix must not force a giant allocation
		if int(length) > buf.Len() {
			slog.Warn("Cache entry length exceeds remaining data, returning empty cache", "entries_read", i, "length", length)
			return NewCache()
		}

		entry := make([]byte, length)
		if _, err := io.ReadFull(buf, entry); err != nil {
			slog.Warn("Truncated cache entry, returning empty cache", "entries_read", i)
			return NewCache()
		}

		cache.Insert(string(entry))
	}

	slog.Debug("Loaded cache", "size", cache.Len())

	return cache
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
