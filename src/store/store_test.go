package store

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-arena/src/arena"
	"orderbook-arena/src/market"
)

func testHeader() market.MarketHeader {
	return market.MarketHeader{
		MarketParams: market.Shape512x512x256,
		BaseParams:   market.TokenParams{Decimals: 9},
		BaseLotSize:  1_000_000,
		QuoteParams:  market.TokenParams{Decimals: 6},
		QuoteLotSize: 1_000,
		TickSize:     10,
	}
}

type failureCounts map[string]int

func (f failureCounts) DispatchFailed(reason string) { f[reason]++ }

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func restOne(s *Store, name string, side market.Side, price, lots uint64) error {
	return s.Update(name, func(_ *market.MarketHeader, m market.MutableMarket) error {
		if _, err := market.RegisterTrader(m, market.Pubkey{1}); err != nil {
			return err
		}
		_, err := market.RestOrder(m, side, price, market.Pubkey{1}, lots)
		return err
	})
}

func TestCreateViewUpdate(t *testing.T) {
	s := openMem(t)
	require.NoError(t, s.Create("SOL-USDC", testHeader(), 1000, 10, 5))

	require.NoError(t, restOne(s, "SOL-USDC", market.Bid, 100, 5))

	err := s.View("SOL-USDC", func(h market.MarketHeader, m market.Market) error {
		assert.Equal(t, market.StatusActive, h.MarketStatus())
		assert.Equal(t, uint64(10), m.QuoteLotsPerTick())
		assert.Equal(t, uint64(5), m.TakerFeeBps())
		assert.Equal(t, 1, m.Book(market.Bid).Len())
		return nil
	})
	require.NoError(t, err)
}

func TestCreateErrors(t *testing.T) {
	s := openMem(t)
	require.NoError(t, s.Create("a", testHeader(), 1, 1, 0))

	assert.ErrorIs(t, s.Create("a", testHeader(), 1, 1, 0), ErrMarketExists)
	assert.ErrorIs(t, s.Create("bad name", testHeader(), 1, 1, 0), ErrInvalidName)

	h := testHeader()
	h.MarketParams = market.MarketParams{BidsSize: 8, AsksSize: 8, NumSeats: 8}
	assert.ErrorIs(t, s.Create("b", h, 1, 1, 0), market.ErrUnsupportedShape)
	assert.Equal(t, []string{"a"}, s.List())
}

func TestMissingMarket(t *testing.T) {
	s := openMem(t)
	var notFound *MarketNotFoundError

	err := s.View("nope", func(market.MarketHeader, market.Market) error { return nil })
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.Name)

	err = s.Update("nope", func(*market.MarketHeader, market.MutableMarket) error { return nil })
	assert.ErrorAs(t, err, &notFound)
	assert.ErrorAs(t, s.Delete("nope"), &notFound)
}

func TestFailedUpdateRollsBack(t *testing.T) {
	s := openMem(t)
	require.NoError(t, s.Create("m", testHeader(), 1, 1, 0))
	require.NoError(t, restOne(s, "m", market.Ask, 50, 1))

	boom := errors.New("boom")
	err := s.Update("m", func(h *market.MarketHeader, m market.MutableMarket) error {
		h.MarketSequenceNumber = 99
		for i := range uint64(10) {
			if _, err := market.RestOrder(m, market.Ask, 60+i, market.Pubkey{1}, 1); err != nil {
				return err
			}
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.View("m", func(h market.MarketHeader, m market.Market) error {
		assert.Equal(t, uint64(0), h.MarketSequenceNumber)
		assert.Equal(t, 1, m.Book(market.Ask).Len())
		assert.Equal(t, uint64(1), m.OrderSequenceNumber())
		return m.Validate()
	})
	require.NoError(t, err)
}

func TestCapacityErrorRollsBack(t *testing.T) {
	s := openMem(t)
	require.NoError(t, s.Create("m", testHeader(), 1, 1, 0))

	err := s.Update("m", func(_ *market.MarketHeader, m market.MutableMarket) error {
		for i := range 300 {
			if _, err := m.TradersMut().Insert(market.Pubkey{byte(i), byte(i >> 8)}, market.TraderState{}); err != nil {
				return err
			}
		}
		return nil
	})
	assert.ErrorIs(t, err, arena.ErrCapacityExceeded)

	err = s.View("m", func(_ market.MarketHeader, m market.Market) error {
		assert.Equal(t, 0, m.RegisteredTraders().Len())
		return nil
	})
	require.NoError(t, err)
}

func TestReopenRestoresAccounts(t *testing.T) {
	dir := t.TempDir()
	failures := failureCounts{}

	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Create("ETH-USDC", testHeader(), 1000, 10, 0))
	require.NoError(t, s.Create("BTC-USDC", testHeader(), 1000, 10, 0))
	require.NoError(t, restOne(s, "ETH-USDC", market.Bid, 3000, 7))
	require.NoError(t, s.Close())

	// plant an account that does not parse
	db, err := pebble.Open(dir, &pebble.Options{})
	require.NoError(t, err)
	require.NoError(t, db.Set(keyFor("broken"), []byte("not an account"), pebble.Sync))
	require.NoError(t, db.Close())

	s, err = Open(Options{Dir: dir, Failures: failures})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"BTC-USDC", "ETH-USDC"}, s.List())
	assert.Equal(t, failureCounts{"malformed_buffer": 1}, failures)
	err = s.View("ETH-USDC", func(_ market.MarketHeader, m market.Market) error {
		ladder := m.Ladder(1)
		require.Len(t, ladder.Bids, 1)
		assert.Equal(t, market.LadderOrder{PriceInTicks: 3000, SizeInBaseLots: 7}, ladder.Bids[0])
		return nil
	})
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	s := openMem(t)
	require.NoError(t, s.Create("x", testHeader(), 1, 1, 0))
	require.NoError(t, s.Delete("x"))
	assert.Empty(t, s.List())
	assert.Equal(t, 0, s.Len())

	// the name is free again
	require.NoError(t, s.Create("x", testHeader(), 1, 1, 0))
}

func TestUpdateRacingDeleteIsNotFound(t *testing.T) {
	s := openMem(t)
	require.NoError(t, s.Create("x", testHeader(), 1, 1, 0))

	// the writer resolved the account before the delete took its lock
	acct, err := s.lookup("x")
	require.NoError(t, err)
	require.NoError(t, s.Delete("x"))

	called := false
	err = s.update("x", acct, func(*market.MarketHeader, market.MutableMarket) error {
		called = true
		return nil
	})
	var notFound *MarketNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.False(t, called)

	_, closer, err := s.db.Get(keyFor("x"))
	if closer != nil {
		_ = closer.Close()
	}
	assert.ErrorIs(t, err, pebble.ErrNotFound)
	assert.Empty(t, s.List())
}

func TestDispatchFailuresRecorded(t *testing.T) {
	failures := failureCounts{}
	s, err := Open(Options{Failures: failures})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	h := testHeader()
	h.MarketParams = market.MarketParams{BidsSize: 8, AsksSize: 8, NumSeats: 8}
	assert.ErrorIs(t, s.Create("odd", h, 1, 1, 0), market.ErrUnsupportedShape)

	require.NoError(t, s.Create("m", testHeader(), 1, 1, 0))
	acct, err := s.lookup("m")
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(acct.buf, 0)

	err = s.View("m", func(market.MarketHeader, market.Market) error { return nil })
	assert.ErrorIs(t, err, market.ErrMalformedBuffer)
	err = s.Update("m", func(*market.MarketHeader, market.MutableMarket) error { return nil })
	assert.ErrorIs(t, err, market.ErrMalformedBuffer)

	assert.Equal(t, failureCounts{"unsupported_shape": 1, "malformed_buffer": 2}, failures)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Create("x", testHeader(), 1, 1, 0), ErrClosed)
	err = s.View("x", func(market.MarketHeader, market.Market) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	s := openMem(t)
	require.NoError(t, s.Create("m", testHeader(), 1, 1, 0))

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				side := market.Side(i % 2)
				assert.NoError(t, restOne(s, "m", side, uint64(100+w), 1))
			}
		}()
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				err := s.View("m", func(_ market.MarketHeader, m market.Market) error {
					_ = m.Ladder(5)
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	err := s.View("m", func(_ market.MarketHeader, m market.Market) error {
		assert.Equal(t, 100, m.Book(market.Bid).Len())
		assert.Equal(t, 100, m.Book(market.Ask).Len())
		assert.Equal(t, uint64(200), m.OrderSequenceNumber())
		return m.Validate()
	})
	require.NoError(t, err)
}
