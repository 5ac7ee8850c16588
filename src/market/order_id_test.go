package market

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSideFromSequenceNumber(t *testing.T) {
	cases := []struct {
		seq  uint64
		want Side
	}{
		{0, Ask},
		{1, Ask},
		{math.MaxInt64, Ask},
		{1 << 63, Bid},
		{math.MaxUint64, Bid},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SideFromSequenceNumber(tc.seq), "seq %#x", tc.seq)
	}

	// a counter walking across 2^63
	for seq := uint64(1<<63) - 1000; seq != uint64(1<<63)+1000; seq++ {
		want := Ask
		if seq >= 1<<63 {
			want = Bid
		}
		require.Equal(t, want, SideFromSequenceNumber(seq))
	}
}

func TestOrderIDForEncodesSide(t *testing.T) {
	for _, n := range []uint64{0, 1, 42, math.MaxInt64} {
		bid := OrderIDFor(Bid, 100, n)
		ask := OrderIDFor(Ask, 100, n)
		assert.Equal(t, Bid, bid.Side())
		assert.Equal(t, Ask, ask.Side())
		assert.Equal(t, n, bid.Arrival())
		assert.Equal(t, n, ask.Arrival())
	}
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, Ask, Bid.Opposite())
	assert.Equal(t, Bid, Ask.Opposite())

	s, err := ParseSide("BUY")
	require.NoError(t, err)
	assert.Equal(t, Bid, s)
	s, err = ParseSide("asks")
	require.NoError(t, err)
	assert.Equal(t, Ask, s)
	_, err = ParseSide("middle")
	assert.Error(t, err)
}

func TestBidOrderBestPriceThenEarliest(t *testing.T) {
	ids := []OrderID{
		OrderIDFor(Bid, 90, 0),
		OrderIDFor(Bid, 100, 3),
		OrderIDFor(Bid, 100, 1),
		OrderIDFor(Bid, 95, 2),
	}
	slices.SortFunc(ids, OrderID.Compare)
	assert.Equal(t, []OrderID{
		OrderIDFor(Bid, 100, 1),
		OrderIDFor(Bid, 100, 3),
		OrderIDFor(Bid, 95, 2),
		OrderIDFor(Bid, 90, 0),
	}, ids)
}

func TestAskOrderBestPriceThenEarliest(t *testing.T) {
	a := NewOrderID(50, 20)
	b := NewOrderID(50, 10)
	c := NewOrderID(49, 30)
	ids := []OrderID{a, b, c}
	slices.SortFunc(ids, OrderID.Compare)
	assert.Equal(t, []OrderID{c, b, a}, ids)
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

func TestCompareIsStrictTotalOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for _, side := range []Side{Bid, Ask} {
		gen := func() OrderID {
			return OrderIDFor(side, rng.Uint64N(5), rng.Uint64N(6))
		}
		for range 5000 {
			a, b, c := gen(), gen(), gen()

			assert.Equal(t, sign(a.Compare(b)), -sign(b.Compare(a)), "antisymmetry %v %v", a, b)
			assert.Equal(t, a == b, a.Compare(b) == 0, "only equal ids tie: %v %v", a, b)
			if a.Compare(b) < 0 && b.Compare(c) < 0 {
				assert.Negative(t, a.Compare(c), "transitivity %v %v %v", a, b, c)
			}
		}
	}
}
