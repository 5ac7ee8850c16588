package market

import (
	"errors"

	"orderbook-arena/src/arena"
)

var (
	ErrTraderNotRegistered = errors.New("market: trader has no seat")
	ErrZeroSize            = errors.New("market: order size must be positive")
)

// RegisterTrader gives trader a seat with an empty state. Registering an
// existing trader returns its address and leaves the state untouched.
func RegisterTrader(m MutableMarket, trader Pubkey) (uint32, error) {
	if addr, ok := m.TraderAddress(trader); ok {
		return addr, nil
	}
	return m.TradersMut().Insert(trader, TraderState{})
}

// RestOrder writes a resting order straight into the book of side. It does
// not cross the spread; that is the matching engine's job. No sequence
// number is consumed when the book is full.
func RestOrder(m MutableMarket, side Side, priceInTicks uint64, trader Pubkey, numBaseLots uint64) (OrderID, error) {
	if numBaseLots == 0 {
		return OrderID{}, ErrZeroSize
	}
	addr, ok := m.TraderAddress(trader)
	if !ok {
		return OrderID{}, ErrTraderNotRegistered
	}
	book := m.BookMut(side)
	if book.IsFull() {
		return OrderID{}, arena.ErrCapacityExceeded
	}

	id := m.NextOrderID(side, priceInTicks)
	if _, err := book.Insert(id, NewRestingOrder(uint64(addr), numBaseLots)); err != nil {
		return OrderID{}, err
	}
	return id, nil
}

// RemoveOrder deletes id from the book of its own side.
func RemoveOrder(m MutableMarket, id OrderID) (RestingOrder, bool) {
	return m.BookMut(id.Side()).Remove(id)
}

// ReduceOrder takes up to lots off a resting order and removes it once
// empty. It returns the lots actually removed.
func ReduceOrder(m MutableMarket, id OrderID, lots uint64) (uint64, bool) {
	book := m.BookMut(id.Side())
	order := book.GetMut(id)
	if order == nil {
		return 0, false
	}
	removed := min(lots, order.NumBaseLots)
	order.NumBaseLots -= removed
	if order.NumBaseLots == 0 {
		book.Remove(id)
	}
	return removed, true
}
