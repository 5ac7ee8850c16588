package arena

import (
	"errors"
	"fmt"
	"iter"
	"unsafe"
)

// Sentinel is the address reserved for "no node". Live nodes are addressed
// from 1 to Capacity().
const Sentinel uint32 = 0

const (
	black uint32 = 0
	red   uint32 = 1
	freed uint32 = 2
)

var (
	ErrCapacityExceeded = errors.New("arena: capacity exceeded")
	ErrBufferSize       = errors.New("arena: buffer length does not match capacity")
	ErrBufferAlignment  = errors.New("arena: buffer is not 8-byte aligned")
	ErrCorrupt          = errors.New("arena: tree header is corrupt")
)

// Ordered is implemented by keys that define their own strict total order.
// Compare returns a negative number when the receiver sorts before other,
// zero when they are the same key and a positive number otherwise.
type Ordered[K any] interface {
	Compare(other K) int
}

// header is the fixed prefix of every tree region.
type header struct {
	Size         uint64
	BumpIndex    uint32
	FreeListHead uint32
	Root         uint32
	_            uint32
}

// Node is one arena slot. Freed slots reuse Left as the free-list link.
type Node[K, V any] struct {
	Left   uint32
	Right  uint32
	Parent uint32
	Color  uint32
	Key    K
	Value  V
}

const headerSize = int(unsafe.Sizeof(header{}))

// RedBlackTree is an ordered map stored entirely inside a caller-supplied
// byte region. It never allocates after construction; K and V must be
// fixed-size types without pointers.
type RedBlackTree[K Ordered[K], V any] struct {
	hdr   *header
	nodes []Node[K, V]
}

// NodeSize returns the number of bytes one slot occupies.
func NodeSize[K, V any]() int {
	return int(unsafe.Sizeof(Node[K, V]{}))
}

// RegionSize returns the exact region length a tree of the given capacity needs.
func RegionSize[K, V any](capacity int) int {
	return headerSize + capacity*NodeSize[K, V]()
}

// AlignedBuffer returns a zeroed byte slice whose first byte is 8-byte aligned.
func AlignedBuffer(size int) []byte {
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size)
}

// IsAligned reports whether buf starts on an 8-byte boundary.
func IsAligned(buf []byte) bool {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))%8 == 0
}

// New allocates a fresh, empty tree.
func New[K Ordered[K], V any](capacity int) *RedBlackTree[K, V] {
	t, err := Load[K, V](AlignedBuffer(RegionSize[K, V](capacity)), capacity)
	if err != nil {
		panic(err)
	}
	return t
}

// Load attaches to an existing region without copying. An all-zero region is
// a valid empty tree. The returned tree aliases buf and must not outlive it.
func Load[K Ordered[K], V any](buf []byte, capacity int) (*RedBlackTree[K, V], error) {
	if capacity < 0 || len(buf) != RegionSize[K, V](capacity) {
		return nil, fmt.Errorf("%w: have %d bytes, capacity %d needs %d",
			ErrBufferSize, len(buf), capacity, RegionSize[K, V](capacity))
	}
	if !IsAligned(buf) {
		return nil, ErrBufferAlignment
	}

	t := &RedBlackTree[K, V]{
		hdr: (*header)(unsafe.Pointer(unsafe.SliceData(buf))),
	}
	if capacity > 0 {
		t.nodes = unsafe.Slice((*Node[K, V])(unsafe.Pointer(&buf[headerSize])), capacity)
	}

	h := t.hdr
	if int(h.BumpIndex) > capacity || h.Size > uint64(h.BumpIndex) ||
		h.Root > h.BumpIndex || h.FreeListHead > h.BumpIndex {
		return nil, ErrCorrupt
	}
	return t, nil
}

func (t *RedBlackTree[K, V]) Len() int { return int(t.hdr.Size) }

func (t *RedBlackTree[K, V]) Capacity() int { return len(t.nodes) }

// IsFull reports whether the next insert of a new key would fail.
func (t *RedBlackTree[K, V]) IsFull() bool { return t.Len() == t.Capacity() }

// Insert stores value under key and returns the slot address. An existing key
// keeps its address and has its value replaced.
func (t *RedBlackTree[K, V]) Insert(key K, value V) (uint32, error) {
	parent := Sentinel
	cur := t.hdr.Root
	c := 0
	for cur != Sentinel {
		parent = cur
		n := t.node(cur)
		c = key.Compare(n.Key)
		switch {
		case c < 0:
			cur = n.Left
		case c > 0:
			cur = n.Right
		default:
			n.Value = value
			return cur, nil
		}
	}

	addr, err := t.allocate()
	if err != nil {
		return Sentinel, err
	}
	*t.node(addr) = Node[K, V]{Parent: parent, Color: red, Key: key, Value: value}

	switch {
	case parent == Sentinel:
		t.hdr.Root = addr
	case c < 0:
		t.node(parent).Left = addr
	default:
		t.node(parent).Right = addr
	}
	t.insertFixup(addr)
	t.hdr.Size++
	return addr, nil
}

// Remove deletes key and returns its value. The slot goes back on the free list.
func (t *RedBlackTree[K, V]) Remove(key K) (V, bool) {
	addr := t.Addr(key)
	if addr == Sentinel {
		var zero V
		return zero, false
	}
	value := t.node(addr).Value
	t.removeNode(addr)
	t.release(addr)
	t.hdr.Size--
	return value, true
}

func (t *RedBlackTree[K, V]) Get(key K) (V, bool) {
	addr := t.Addr(key)
	if addr == Sentinel {
		var zero V
		return zero, false
	}
	return t.node(addr).Value, true
}

// GetMut returns a pointer into the region, or nil when key is absent.
func (t *RedBlackTree[K, V]) GetMut(key K) *V {
	addr := t.Addr(key)
	if addr == Sentinel {
		return nil
	}
	return &t.node(addr).Value
}

func (t *RedBlackTree[K, V]) Contains(key K) bool {
	return t.Addr(key) != Sentinel
}

// Addr returns the slot address of key, or Sentinel.
func (t *RedBlackTree[K, V]) Addr(key K) uint32 {
	cur := t.hdr.Root
	for cur != Sentinel {
		n := t.node(cur)
		c := key.Compare(n.Key)
		switch {
		case c < 0:
			cur = n.Left
		case c > 0:
			cur = n.Right
		default:
			return cur
		}
	}
	return Sentinel
}

// At resolves a slot address back to its entry.
func (t *RedBlackTree[K, V]) At(addr uint32) (K, V, bool) {
	if addr == Sentinel || addr > t.hdr.BumpIndex || t.node(addr).Color == freed {
		var (
			k K
			v V
		)
		return k, v, false
	}
	n := t.node(addr)
	return n.Key, n.Value, true
}

// Min returns the first entry in key order.
func (t *RedBlackTree[K, V]) Min() (K, V, bool) {
	return t.At(t.minimum(t.hdr.Root))
}

// Max returns the last entry in key order.
func (t *RedBlackTree[K, V]) Max() (K, V, bool) {
	return t.At(t.maximum(t.hdr.Root))
}

// All yields entries in ascending key order. The tree must not be modified
// while the sequence is being consumed.
func (t *RedBlackTree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for addr := t.minimum(t.hdr.Root); addr != Sentinel; addr = t.successor(addr) {
			n := t.node(addr)
			if !yield(n.Key, n.Value) {
				return
			}
		}
	}
}

// Backward yields entries in descending key order.
func (t *RedBlackTree[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for addr := t.maximum(t.hdr.Root); addr != Sentinel; addr = t.predecessor(addr) {
			n := t.node(addr)
			if !yield(n.Key, n.Value) {
				return
			}
		}
	}
}

func (t *RedBlackTree[K, V]) node(addr uint32) *Node[K, V] {
	return &t.nodes[addr-1]
}

func (t *RedBlackTree[K, V]) allocate() (uint32, error) {
	if head := t.hdr.FreeListHead; head != Sentinel {
		t.hdr.FreeListHead = t.node(head).Left
		return head, nil
	}
	if int(t.hdr.BumpIndex) >= len(t.nodes) {
		return Sentinel, ErrCapacityExceeded
	}
	t.hdr.BumpIndex++
	return t.hdr.BumpIndex, nil
}

func (t *RedBlackTree[K, V]) release(addr uint32) {
	*t.node(addr) = Node[K, V]{Left: t.hdr.FreeListHead, Color: freed}
	t.hdr.FreeListHead = addr
}

// Accessors below treat Sentinel as a black leaf and ignore writes to it.

func (t *RedBlackTree[K, V]) left(addr uint32) uint32 {
	if addr == Sentinel {
		return Sentinel
	}
	return t.node(addr).Left
}

func (t *RedBlackTree[K, V]) right(addr uint32) uint32 {
	if addr == Sentinel {
		return Sentinel
	}
	return t.node(addr).Right
}

func (t *RedBlackTree[K, V]) parent(addr uint32) uint32 {
	if addr == Sentinel {
		return Sentinel
	}
	return t.node(addr).Parent
}

func (t *RedBlackTree[K, V]) color(addr uint32) uint32 {
	if addr == Sentinel {
		return black
	}
	return t.node(addr).Color
}

func (t *RedBlackTree[K, V]) setLeft(addr, child uint32) {
	if addr != Sentinel {
		t.node(addr).Left = child
	}
}

func (t *RedBlackTree[K, V]) setRight(addr, child uint32) {
	if addr != Sentinel {
		t.node(addr).Right = child
	}
}

func (t *RedBlackTree[K, V]) setParent(addr, parent uint32) {
	if addr != Sentinel {
		t.node(addr).Parent = parent
	}
}

func (t *RedBlackTree[K, V]) setColor(addr, color uint32) {
	if addr != Sentinel {
		t.node(addr).Color = color
	}
}

func (t *RedBlackTree[K, V]) minimum(addr uint32) uint32 {
	if addr == Sentinel {
		return Sentinel
	}
	for t.left(addr) != Sentinel {
		addr = t.left(addr)
	}
	return addr
}

func (t *RedBlackTree[K, V]) maximum(addr uint32) uint32 {
	if addr == Sentinel {
		return Sentinel
	}
	for t.right(addr) != Sentinel {
		addr = t.right(addr)
	}
	return addr
}

func (t *RedBlackTree[K, V]) successor(addr uint32) uint32 {
	if r := t.right(addr); r != Sentinel {
		return t.minimum(r)
	}
	p := t.parent(addr)
	for p != Sentinel && addr == t.right(p) {
		addr = p
		p = t.parent(p)
	}
	return p
}

func (t *RedBlackTree[K, V]) predecessor(addr uint32) uint32 {
	if l := t.left(addr); l != Sentinel {
		return t.maximum(l)
	}
	p := t.parent(addr)
	for p != Sentinel && addr == t.left(p) {
		addr = p
		p = t.parent(p)
	}
	return p
}

func (t *RedBlackTree[K, V]) rotateLeft(x uint32) {
	y := t.right(x)
	t.setRight(x, t.left(y))
	t.setParent(t.left(y), x)
	t.replaceChild(t.parent(x), x, y)
	t.setLeft(y, x)
	t.setParent(x, y)
}

func (t *RedBlackTree[K, V]) rotateRight(y uint32) {
	x := t.left(y)
	t.setLeft(y, t.right(x))
	t.setParent(t.right(x), y)
	t.replaceChild(t.parent(y), y, x)
	t.setRight(x, y)
	t.setParent(y, x)
}

// replaceChild points parent (or the root) at v where it used to point at u,
// and sets v's parent.
func (t *RedBlackTree[K, V]) replaceChild(parent, u, v uint32) {
	switch {
	case parent == Sentinel:
		t.hdr.Root = v
	case u == t.left(parent):
		t.setLeft(parent, v)
	default:
		t.setRight(parent, v)
	}
	t.setParent(v, parent)
}

func (t *RedBlackTree[K, V]) insertFixup(z uint32) {
	for t.color(t.parent(z)) == red {
		p := t.parent(z)
		g := t.parent(p)
		if p == t.left(g) {
			u := t.right(g)
			if t.color(u) == red {
				t.setColor(p, black)
				t.setColor(u, black)
				t.setColor(g, red)
				z = g
				continue
			}
			if z == t.right(p) {
				z = p
				t.rotateLeft(z)
				p = t.parent(z)
			}
			t.setColor(p, black)
			t.setColor(g, red)
			t.rotateRight(g)
		} else {
			u := t.left(g)
			if t.color(u) == red {
				t.setColor(p, black)
				t.setColor(u, black)
				t.setColor(g, red)
				z = g
				continue
			}
			if z == t.left(p) {
				z = p
				t.rotateRight(z)
				p = t.parent(z)
			}
			t.setColor(p, black)
			t.setColor(g, red)
			t.rotateLeft(g)
		}
	}
	t.setColor(t.hdr.Root, black)
}

func (t *RedBlackTree[K, V]) removeNode(z uint32) {
	var x, xParent uint32
	removedColor := t.color(z)

	switch {
	case t.left(z) == Sentinel:
		x = t.right(z)
		xParent = t.parent(z)
		t.replaceChild(xParent, z, x)
	case t.right(z) == Sentinel:
		x = t.left(z)
		xParent = t.parent(z)
		t.replaceChild(xParent, z, x)
	default:
		y := t.minimum(t.right(z))
		removedColor = t.color(y)
		x = t.right(y)
		if t.parent(y) == z {
			xParent = y
		} else {
			xParent = t.parent(y)
			t.replaceChild(xParent, y, x)
			t.setRight(y, t.right(z))
			t.setParent(t.right(y), y)
		}
		t.replaceChild(t.parent(z), z, y)
		t.setLeft(y, t.left(z))
		t.setParent(t.left(y), y)
		t.setColor(y, t.color(z))
	}

	if removedColor == black {
		t.removeFixup(x, xParent)
	}
}

// removeFixup restores the black height after a black node was unlinked.
// x may be Sentinel, so its parent is carried explicitly.
func (t *RedBlackTree[K, V]) removeFixup(x, parent uint32) {
	for x != t.hdr.Root && t.color(x) == black {
		if x == t.left(parent) {
			w := t.right(parent)
			if t.color(w) == red {
				t.setColor(w, black)
				t.setColor(parent, red)
				t.rotateLeft(parent)
				w = t.right(parent)
			}
			if t.color(t.left(w)) == black && t.color(t.right(w)) == black {
				t.setColor(w, red)
				x = parent
				parent = t.parent(x)
				continue
			}
			if t.color(t.right(w)) == black {
				t.setColor(t.left(w), black)
				t.setColor(w, red)
				t.rotateRight(w)
				w = t.right(parent)
			}
			t.setColor(w, t.color(parent))
			t.setColor(parent, black)
			t.setColor(t.right(w), black)
			t.rotateLeft(parent)
			x = t.hdr.Root
		} else {
			w := t.left(parent)
			if t.color(w) == red {
				t.setColor(w, black)
				t.setColor(parent, red)
				t.rotateRight(parent)
				w = t.left(parent)
			}
			if t.color(t.left(w)) == black && t.color(t.right(w)) == black {
				t.setColor(w, red)
				x = parent
				parent = t.parent(x)
				continue
			}
			if t.color(t.left(w)) == black {
				t.setColor(t.right(w), black)
				t.setColor(w, red)
				t.rotateLeft(w)
				w = t.left(parent)
			}
			t.setColor(w, t.color(parent))
			t.setColor(parent, black)
			t.setColor(t.left(w), black)
			t.rotateRight(parent)
			x = t.hdr.Root
		}
	}
	t.setColor(x, black)
}
