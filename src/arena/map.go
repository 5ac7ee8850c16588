package arena

import "iter"

// Map is the read-only surface of an arena-backed ordered map.
type Map[K, V any] interface {
	Len() int
	Capacity() int
	IsFull() bool
	Get(key K) (V, bool)
	Contains(key K) bool
	Addr(key K) uint32
	At(addr uint32) (K, V, bool)
	Min() (K, V, bool)
	Max() (K, V, bool)
	All() iter.Seq2[K, V]
	Backward() iter.Seq2[K, V]
}

// MutableMap adds the write operations.
type MutableMap[K, V any] interface {
	Map[K, V]
	Insert(key K, value V) (uint32, error)
	Remove(key K) (V, bool)
	GetMut(key K) *V
}

type readOnly[K, V any] struct {
	Map[K, V]
}

// ReadOnly wraps m so that only the Map methods are reachable.
func ReadOnly[K, V any](m Map[K, V]) Map[K, V] {
	return readOnly[K, V]{Map: m}
}
