package market

import (
	"fmt"
	"unsafe"

	"orderbook-arena/src/arena"
)

// marketFields is the scalar prefix of the market region, followed by the
// bid, ask and trader trees.
type marketFields struct {
	// BaseLotsPerBaseUnit: with a lot size of 0.001 SOL this is 1000.
	BaseLotsPerBaseUnit uint64
	// QuoteLotsPerTick: a tick of 0.01 USDC with a quote lot of 0.001 USDC is 10.
	QuoteLotsPerTick    uint64
	OrderSequenceNumber uint64
	TakerFeeBps         uint64
	// Fee totals are in adjusted quote lots.
	CollectedQuoteLotFees uint64
	UnclaimedQuoteLotFees uint64
}

const fieldsSize = int(unsafe.Sizeof(marketFields{}))

type region struct {
	offset, length int
}

type marketLayout struct {
	bids, asks, traders region
	size                int
}

func layoutFor(p MarketParams) marketLayout {
	var l marketLayout
	off := fieldsSize
	l.bids = region{off, arena.RegionSize[OrderID, RestingOrder](int(p.BidsSize))}
	off += l.bids.length
	l.asks = region{off, arena.RegionSize[OrderID, RestingOrder](int(p.AsksSize))}
	off += l.asks.length
	l.traders = region{off, arena.RegionSize[Pubkey, TraderState](int(p.NumSeats))}
	off += l.traders.length
	l.size = off
	return l
}

func (r region) of(buf []byte) []byte {
	return buf[r.offset : r.offset+r.length : r.offset+r.length]
}

// FIFOMarket is a price-time priority market attached to a byte region.
type FIFOMarket struct {
	params  MarketParams
	fields  *marketFields
	bids    *arena.RedBlackTree[OrderID, RestingOrder]
	asks    *arena.RedBlackTree[OrderID, RestingOrder]
	traders *arena.RedBlackTree[Pubkey, TraderState]
}

func attach(p MarketParams, buf []byte) (*FIFOMarket, error) {
	l := layoutFor(p)
	if len(buf) < l.size {
		return nil, fmt.Errorf("%w: have %d bytes, params %v need %d", ErrMalformedBuffer, len(buf), p, l.size)
	}
	buf = buf[:l.size]
	if !arena.IsAligned(buf) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBuffer, arena.ErrBufferAlignment)
	}

	m := &FIFOMarket{
		params: p,
		fields: (*marketFields)(unsafe.Pointer(unsafe.SliceData(buf))),
	}
	var err error
	if m.bids, err = arena.Load[OrderID, RestingOrder](l.bids.of(buf), int(p.BidsSize)); err != nil {
		return nil, fmt.Errorf("%w: bids: %w", ErrMalformedBuffer, err)
	}
	if m.asks, err = arena.Load[OrderID, RestingOrder](l.asks.of(buf), int(p.AsksSize)); err != nil {
		return nil, fmt.Errorf("%w: asks: %w", ErrMalformedBuffer, err)
	}
	if m.traders, err = arena.Load[Pubkey, TraderState](l.traders.of(buf), int(p.NumSeats)); err != nil {
		return nil, fmt.Errorf("%w: traders: %w", ErrMalformedBuffer, err)
	}
	return m, nil
}

func (m *FIFOMarket) Params() MarketParams { return m.params }

func (m *FIFOMarket) QuoteLotsPerTick() uint64 { return m.fields.QuoteLotsPerTick }

func (m *FIFOMarket) BaseLotsPerBaseUnit() uint64 { return m.fields.BaseLotsPerBaseUnit }

func (m *FIFOMarket) TakerFeeBps() uint64 { return m.fields.TakerFeeBps }

func (m *FIFOMarket) OrderSequenceNumber() uint64 { return m.fields.OrderSequenceNumber }

func (m *FIFOMarket) Book(side Side) arena.Map[OrderID, RestingOrder] {
	return m.book(side)
}

func (m *FIFOMarket) BookMut(side Side) arena.MutableMap[OrderID, RestingOrder] {
	return m.book(side)
}

func (m *FIFOMarket) book(side Side) *arena.RedBlackTree[OrderID, RestingOrder] {
	if side == Bid {
		return m.bids
	}
	return m.asks
}

func (m *FIFOMarket) RegisteredTraders() arena.Map[Pubkey, TraderState] {
	return m.traders
}

func (m *FIFOMarket) TradersMut() arena.MutableMap[Pubkey, TraderState] {
	return m.traders
}

func (m *FIFOMarket) TraderAddress(trader Pubkey) (uint32, bool) {
	addr := m.traders.Addr(trader)
	if addr == arena.Sentinel {
		return 0, false
	}
	return addr, true
}

func (m *FIFOMarket) TraderState(trader Pubkey) (TraderState, bool) {
	return m.traders.Get(trader)
}

// TraderByAddress resolves a RestingOrder.TraderIndex back to its trader.
func (m *FIFOMarket) TraderByAddress(addr uint32) (Pubkey, TraderState, bool) {
	return m.traders.At(addr)
}

func (m *FIFOMarket) Ladder(levels uint64) Ladder {
	return buildLadder(m.bids, m.asks, levels)
}

// NextOrderID issues an id from the market's arrival counter.
func (m *FIFOMarket) NextOrderID(side Side, priceInTicks uint64) OrderID {
	n := m.fields.OrderSequenceNumber
	m.fields.OrderSequenceNumber++
	return OrderIDFor(side, priceInTicks, n)
}

func (m *FIFOMarket) SetScale(baseLotsPerBaseUnit, quoteLotsPerTick uint64) {
	m.fields.BaseLotsPerBaseUnit = baseLotsPerBaseUnit
	m.fields.QuoteLotsPerTick = quoteLotsPerTick
}

func (m *FIFOMarket) SetTakerFeeBps(bps uint64) {
	m.fields.TakerFeeBps = bps
}

// Validate checks every tree and that each key sits in the book of its side.
func (m *FIFOMarket) Validate() error {
	for _, side := range [...]Side{Bid, Ask} {
		book := m.book(side)
		if err := book.Validate(); err != nil {
			return fmt.Errorf("%s book: %w", side, err)
		}
		for id := range book.All() {
			if id.Side() != side {
				return fmt.Errorf("%s book holds %s order %d@%d", side, id.Side(), id.SequenceNumber, id.PriceInTicks)
			}
		}
	}
	if err := m.traders.Validate(); err != nil {
		return fmt.Errorf("traders: %w", err)
	}
	return nil
}

// readOnlyMarket exposes a FIFOMarket through the Market interface only.
type readOnlyMarket struct {
	m *FIFOMarket
}

func (r readOnlyMarket) Params() MarketParams        { return r.m.Params() }
func (r readOnlyMarket) QuoteLotsPerTick() uint64    { return r.m.QuoteLotsPerTick() }
func (r readOnlyMarket) BaseLotsPerBaseUnit() uint64 { return r.m.BaseLotsPerBaseUnit() }
func (r readOnlyMarket) TakerFeeBps() uint64         { return r.m.TakerFeeBps() }
func (r readOnlyMarket) OrderSequenceNumber() uint64 { return r.m.OrderSequenceNumber() }

func (r readOnlyMarket) Book(side Side) arena.Map[OrderID, RestingOrder] {
	return arena.ReadOnly(r.m.Book(side))
}

func (r readOnlyMarket) RegisteredTraders() arena.Map[Pubkey, TraderState] {
	return arena.ReadOnly(r.m.RegisteredTraders())
}

func (r readOnlyMarket) TraderAddress(trader Pubkey) (uint32, bool) {
	return r.m.TraderAddress(trader)
}

func (r readOnlyMarket) TraderState(trader Pubkey) (TraderState, bool) {
	return r.m.TraderState(trader)
}

func (r readOnlyMarket) TraderByAddress(addr uint32) (Pubkey, TraderState, bool) {
	return r.m.TraderByAddress(addr)
}

func (r readOnlyMarket) Ladder(levels uint64) Ladder { return r.m.Ladder(levels) }
func (r readOnlyMarket) Validate() error             { return r.m.Validate() }

var (
	_ MutableMarket = (*FIFOMarket)(nil)
	_ Market        = readOnlyMarket{}
)
