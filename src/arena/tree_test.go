package arena

import (
	"cmp"
	"math/rand/v2"
	"testing"

	"github.com/google/btree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKey uint64

func (k testKey) Compare(other testKey) int { return cmp.Compare(k, other) }

// descKey sorts in reverse so the tree must follow Compare, not the numeric value.
type descKey uint64

func (k descKey) Compare(other descKey) int { return cmp.Compare(other, k) }

type payload struct {
	Owner uint64
	Lots  uint64
}

func keysOf[K Ordered[K], V any](t *RedBlackTree[K, V]) []K {
	var out []K
	for k := range t.All() {
		out = append(out, k)
	}
	return out
}

func TestInsertThenGet(t *testing.T) {
	tree := New[testKey, payload](16)

	for i, k := range []testKey{50, 20, 80, 10, 30, 70, 90} {
		_, err := tree.Insert(k, payload{Owner: uint64(i), Lots: uint64(k) * 2})
		require.NoError(t, err)
	}

	v, ok := tree.Get(30)
	require.True(t, ok)
	assert.Equal(t, payload{Owner: 4, Lots: 60}, v)

	_, ok = tree.Get(31)
	assert.False(t, ok)
	assert.Equal(t, 7, tree.Len())
	assert.Equal(t, 16, tree.Capacity())
	require.NoError(t, tree.Validate())
}

func TestIterationFollowsCompare(t *testing.T) {
	asc := New[testKey, uint64](8)
	desc := New[descKey, uint64](8)
	for _, k := range []uint64{5, 1, 4, 2, 3} {
		_, err := asc.Insert(testKey(k), k)
		require.NoError(t, err)
		_, err = desc.Insert(descKey(k), k)
		require.NoError(t, err)
	}

	assert.Equal(t, []testKey{1, 2, 3, 4, 5}, keysOf(asc))
	assert.Equal(t, []descKey{5, 4, 3, 2, 1}, keysOf(desc))

	var back []testKey
	for k := range asc.Backward() {
		back = append(back, k)
	}
	assert.Equal(t, []testKey{5, 4, 3, 2, 1}, back)

	minKey, _, ok := asc.Min()
	require.True(t, ok)
	assert.Equal(t, testKey(1), minKey)
	maxKey, _, ok := desc.Max()
	require.True(t, ok)
	assert.Equal(t, descKey(1), maxKey)
}

func TestIterationIsRestartable(t *testing.T) {
	tree := New[testKey, uint64](8)
	for k := range testKey(6) {
		_, err := tree.Insert(k, uint64(k))
		require.NoError(t, err)
	}

	seq := tree.All()
	var firstTwo []testKey
	for k := range seq {
		firstTwo = append(firstTwo, k)
		if len(firstTwo) == 2 {
			break
		}
	}
	assert.Equal(t, []testKey{0, 1}, firstTwo)

	n := 0
	for range seq {
		n++
	}
	assert.Equal(t, 6, n)
}

func TestInsertExistingKeyReplacesValue(t *testing.T) {
	tree := New[testKey, uint64](2)
	addr, err := tree.Insert(7, 1)
	require.NoError(t, err)

	again, err := tree.Insert(7, 2)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
	assert.Equal(t, 1, tree.Len())

	v, _ := tree.Get(7)
	assert.Equal(t, uint64(2), v)
}

func TestInsertFailsWhenFull(t *testing.T) {
	tree := New[testKey, uint64](3)
	for k := range testKey(3) {
		_, err := tree.Insert(k, 0)
		require.NoError(t, err)
	}
	assert.True(t, tree.IsFull())

	addr, err := tree.Insert(99, 0)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, Sentinel, addr)
	assert.Equal(t, 3, tree.Len())
	require.NoError(t, tree.Validate())

	// replacing an existing key never needs a slot
	_, err = tree.Insert(1, 5)
	assert.NoError(t, err)
}

func TestRemoveFreesSlotsForReuse(t *testing.T) {
	const n = 64
	tree := New[testKey, uint64](n)

	for k := range testKey(n) {
		_, err := tree.Insert(k, uint64(k))
		require.NoError(t, err)
	}
	for k := range testKey(n) {
		v, ok := tree.Remove(k)
		require.True(t, ok)
		assert.Equal(t, uint64(k), v)

		_, ok = tree.Get(k)
		assert.False(t, ok)
	}
	assert.Equal(t, 0, tree.Len())
	require.NoError(t, tree.Validate())

	for k := testKey(n); k < 2*n; k++ {
		_, err := tree.Insert(k, uint64(k))
		require.NoError(t, err, "insert %d after removals", k)
	}
	assert.Equal(t, n, tree.Len())
	require.NoError(t, tree.Validate())
}

func TestRemoveAbsentKey(t *testing.T) {
	tree := New[testKey, uint64](4)
	_, ok := tree.Remove(1)
	assert.False(t, ok)

	_, err := tree.Insert(2, 20)
	require.NoError(t, err)
	_, ok = tree.Remove(1)
	assert.False(t, ok)
	assert.Equal(t, 1, tree.Len())
}

func TestAddrResolvesBackToEntry(t *testing.T) {
	tree := New[testKey, payload](8)
	addr, err := tree.Insert(42, payload{Owner: 3, Lots: 9})
	require.NoError(t, err)
	assert.Equal(t, addr, tree.Addr(42))
	assert.Equal(t, Sentinel, tree.Addr(43))

	k, v, ok := tree.At(addr)
	require.True(t, ok)
	assert.Equal(t, testKey(42), k)
	assert.Equal(t, payload{Owner: 3, Lots: 9}, v)

	_, _, ok = tree.At(Sentinel)
	assert.False(t, ok)
	_, _, ok = tree.At(7)
	assert.False(t, ok, "never allocated")

	tree.Remove(42)
	_, _, ok = tree.At(addr)
	assert.False(t, ok, "freed slot")
}

func TestAddrIsStableAcrossRebalancing(t *testing.T) {
	tree := New[testKey, uint64](128)
	addrs := map[testKey]uint32{}
	for k := range testKey(100) {
		addr, err := tree.Insert(k, uint64(k))
		require.NoError(t, err)
		addrs[k] = addr
	}
	for k := testKey(0); k < 100; k += 3 {
		tree.Remove(k)
		delete(addrs, k)
	}
	for k, addr := range addrs {
		assert.Equal(t, addr, tree.Addr(k))
	}
}

func TestGetMutWritesThrough(t *testing.T) {
	tree := New[testKey, payload](4)
	_, err := tree.Insert(1, payload{Lots: 10})
	require.NoError(t, err)

	p := tree.GetMut(1)
	require.NotNil(t, p)
	p.Lots -= 4

	v, _ := tree.Get(1)
	assert.Equal(t, uint64(6), v.Lots)
	assert.Nil(t, tree.GetMut(2))
}

func TestLoadAliasesBuffer(t *testing.T) {
	buf := AlignedBuffer(RegionSize[testKey, payload](8))

	writer, err := Load[testKey, payload](buf, 8)
	require.NoError(t, err)
	_, err = writer.Insert(5, payload{Owner: 1, Lots: 2})
	require.NoError(t, err)

	reader, err := Load[testKey, payload](buf, 8)
	require.NoError(t, err)
	v, ok := reader.Get(5)
	require.True(t, ok)
	assert.Equal(t, uint64(2), v.Lots)

	writer.GetMut(5).Lots = 11
	v, _ = reader.Get(5)
	assert.Equal(t, uint64(11), v.Lots)
}

func TestLoadRejectsBadBuffers(t *testing.T) {
	size := RegionSize[testKey, uint64](4)

	_, err := Load[testKey, uint64](AlignedBuffer(size-1), 4)
	assert.ErrorIs(t, err, ErrBufferSize)

	_, err = Load[testKey, uint64](AlignedBuffer(size), 5)
	assert.ErrorIs(t, err, ErrBufferSize)

	shifted := AlignedBuffer(size + 1)[1:]
	_, err = Load[testKey, uint64](shifted, 4)
	assert.ErrorIs(t, err, ErrBufferAlignment)

	corrupt := AlignedBuffer(size)
	corrupt[8] = 9 // BumpIndex beyond capacity
	_, err = Load[testKey, uint64](corrupt, 4)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRegionSize(t *testing.T) {
	assert.Equal(t, 24, headerSize)
	assert.Equal(t, 16+8+16, NodeSize[testKey, payload]())
	assert.Equal(t, 24+10*40, RegionSize[testKey, payload](10))
}

func TestReadOnlyHidesWrites(t *testing.T) {
	tree := New[testKey, uint64](2)
	_, err := tree.Insert(1, 1)
	require.NoError(t, err)

	view := ReadOnly[testKey, uint64](tree)
	_, isMutable := view.(MutableMap[testKey, uint64])
	assert.False(t, isMutable)
	assert.Equal(t, 1, view.Len())
	assert.True(t, view.Contains(1))
}

func TestValidateDetectsBrokenInvariant(t *testing.T) {
	tree := New[testKey, uint64](8)
	for k := range testKey(5) {
		_, err := tree.Insert(k, 0)
		require.NoError(t, err)
	}
	require.NoError(t, tree.Validate())

	tree.node(tree.hdr.Root).Color = red
	assert.ErrorIs(t, tree.Validate(), ErrCorrupt)
}

// TestMatchesBTreeModel drives the arena tree and a google/btree with the same
// random operations and compares them after every step.
func TestMatchesBTreeModel(t *testing.T) {
	const capacity = 256
	rng := rand.New(rand.NewPCG(7, 11))
	tree := New[testKey, uint64](capacity)
	model := btree.NewOrderedG[uint64](16)
	values := map[uint64]uint64{}

	for step := range 20000 {
		k := rng.Uint64N(400)
		switch rng.IntN(3) {
		case 0, 1:
			_, err := tree.Insert(testKey(k), k*3)
			if _, exists := values[k]; !exists && model.Len() == capacity {
				require.ErrorIs(t, err, ErrCapacityExceeded)
				continue
			}
			require.NoError(t, err)
			model.ReplaceOrInsert(k)
			values[k] = k * 3
		default:
			v, ok := tree.Remove(testKey(k))
			_, had := model.Delete(k)
			require.Equal(t, had, ok)
			if ok {
				require.Equal(t, values[k], v)
				delete(values, k)
			}
		}

		require.Equal(t, model.Len(), tree.Len())
		if step%500 == 0 {
			require.NoError(t, tree.Validate(), "step %d", step)

			var want []testKey
			model.Ascend(func(k uint64) bool {
				want = append(want, testKey(k))
				return true
			})
			require.Equal(t, want, keysOf(tree))
		}
	}
	require.NoError(t, tree.Validate())
}
