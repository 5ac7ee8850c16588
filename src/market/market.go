package market

import "orderbook-arena/src/arena"

// Market is the read capability surface of a dispatched market handle.
type Market interface {
	Params() MarketParams
	QuoteLotsPerTick() uint64
	BaseLotsPerBaseUnit() uint64
	TakerFeeBps() uint64
	OrderSequenceNumber() uint64

	Book(side Side) arena.Map[OrderID, RestingOrder]
	RegisteredTraders() arena.Map[Pubkey, TraderState]
	TraderAddress(trader Pubkey) (uint32, bool)
	TraderState(trader Pubkey) (TraderState, bool)
	TraderByAddress(addr uint32) (Pubkey, TraderState, bool)

	Ladder(levels uint64) Ladder
	Validate() error
}

// MutableMarket adds write access to the three maps. The order-matching
// logic that drives these writes lives outside this package.
type MutableMarket interface {
	Market

	BookMut(side Side) arena.MutableMap[OrderID, RestingOrder]
	TradersMut() arena.MutableMap[Pubkey, TraderState]
	NextOrderID(side Side, priceInTicks uint64) OrderID
	SetScale(baseLotsPerBaseUnit, quoteLotsPerTick uint64)
	SetTakerFeeBps(bps uint64)
}
