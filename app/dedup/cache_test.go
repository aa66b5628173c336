package dedup

import (
	"encoding/binary"
	"fmt"
	"testing"
)

func TestInsertAndContains(t *testing.T) {
	cache := NewCache()

	for i := 0; i < 100; i++ {
		cache.Insert(fmt.Sprintf("t1_%d", i))
	}

	if cache.Len() != 100 {
		t.Errorf("Expected length 100, got %d", cache.Len())
	}

	for i := 0; i < 100; i++ {
		if !cache.Contains(fmt.Sprintf("t1_%d", i)) {
			t.Errorf("Expected cache to contain t1_%d", i)
		}
	}

	if cache.Contains("t1_missing") {
		t.Error("Expected cache to not contain t1_missing")
	}
}

func TestInsertIdempotent(t *testing.T) {
	cache := NewCache()

	cache.Insert("t1_abc")
	cache.Insert("t1_abc")

	if cache.Len() != 1 {
		t.Errorf("Expected length 1 after duplicate insert, got %d", cache.Len())
	}
}

func TestEvictionFIFO(t *testing.T) {
	cache := NewCache()

	total := Capacity + 500
	for i := 0; i < total; i++ {
		cache.Insert(fmt.Sprintf("t1_%d", i))
	}

	if cache.Len() != Capacity {
		t.Errorf("Expected length %d, got %d", Capacity, cache.Len())
	}

	// Oldest 500 evicted
	for i := 0; i < 500; i++ {
		if cache.Contains(fmt.Sprintf("t1_%d", i)) {
			t.Errorf("Expected t1_%d to be evicted", i)
		}
	}

	// Most recent Capacity entries retained
	for i := 500; i < total; i++ {
		if !cache.Contains(fmt.Sprintf("t1_%d", i)) {
			t.Errorf("Expected t1_%d to be retained", i)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	for _, count := range []int{0, 1, 100, Capacity} {
		cache := NewCache()
		for i := 0; i < count; i++ {
			cache.Insert(fmt.Sprintf("t1_%d", i))
		}

		restored := Load(cache.Serialize())

		if restored.Len() != count {
			t.Errorf("Count %d: expected restored length %d, got %d", count, count, restored.Len())
		}
		for i := 0; i < count; i++ {
			if !restored.Contains(fmt.Sprintf("t1_%d", i)) {
				t.Errorf("Count %d: expected restored cache to contain t1_%d", count, i)
			}
		}
	}
}

func TestSerializeRoundTripPreservesOrder(t *testing.T) {
	cache := NewCache()
	for i := 0; i < Capacity; i++ {
		cache.Insert(fmt.Sprintf("t1_%d", i))
	}

	restored := Load(cache.Serialize())
	restored.Insert("t1_new")

	if restored.Contains("t1_0") {
		t.Error("Expected oldest entry to be evicted after restore")
	}
	if !restored.Contains("t1_new") {
		t.Error("Expected new entry after restore")
	}
	if !restored.Contains("t1_1") {
		t.Error("Expected second-oldest entry to survive one insert")
	}
}

func TestLoadEmpty(t *testing.T) {
	cache := Load(nil)

	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got length %d", cache.Len())
	}

	cache = Load([]byte{})
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got length %d", cache.Len())
	}
}

func TestLoadCorrupt(t *testing.T) {
	// An entry length prefix claiming far more data than the blob holds
	hugeLength := append(serializeWithHeader(formatVersion, Capacity, 1), 0xFF, 0xFF, 0xFF, 0xFF)

	cases := map[string][]byte{
		"garbage":           []byte("not a cache blob at all"),
		"short":             {0x00, 0x01},
		"wrong version":     serializeWithHeader(99, Capacity, 0),
		"truncated body":    append(serializeWithHeader(formatVersion, Capacity, 5), 0x00),
		"huge entry length": hugeLength,
	}

	for name, data := range cases {
		cache := Load(data)
		if cache.Len() != 0 {
			t.Errorf("%s: expected empty cache, got length %d", name, cache.Len())
		}
	}
}

func TestLoadCapacityMismatch(t *testing.T) {
	cache := Load(serializeWithHeader(formatVersion, 5000, 0))

	if cache.Len() != 0 {
		t.Errorf("Expected empty cache for capacity mismatch, got length %d", cache.Len())
	}

	// The fresh cache still enforces the correct capacity
	for i := 0; i < Capacity+1; i++ {
		cache.Insert(fmt.Sprintf("t1_%d", i))
	}
	if cache.Len() != Capacity {
		t.Errorf("Expected length %d, got %d", Capacity, cache.Len())
	}
}

func serializeWithHeader(version, capacity, count uint32) []byte {
	data := make([]byte, 12)
	binary.BigEndian.PutUint32(data[0:4], version)
	binary.BigEndian.PutUint32(data[4:8], capacity)
	binary.BigEndian.PutUint32(data[8:12], count)
	return data
}
