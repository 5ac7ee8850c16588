package market

// RestingOrder is the value stored in a book. TraderIndex is the trader's
// slot address in the registry.
type RestingOrder struct {
	TraderIndex uint64
	NumBaseLots uint64
}

func NewRestingOrder(traderIndex, numBaseLots uint64) RestingOrder {
	return RestingOrder{TraderIndex: traderIndex, NumBaseLots: numBaseLots}
}

// TraderState splits a trader's balances into locked and free amounts.
// Adjusted quote lots are quote lots * base lots per base unit.
type TraderState struct {
	AdjustedQuoteLotsLocked uint64
	AdjustedQuoteLotsFree   uint64
	BaseLotsLocked          uint64
	BaseLotsFree            uint64
}
