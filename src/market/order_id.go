package market

import "cmp"

// OrderID is the book key. SequenceNumber carries the side in its top bit:
// bids store the bit-inverted arrival counter, asks store it as is.
type OrderID struct {
	PriceInTicks   uint64
	SequenceNumber uint64
}

func NewOrderID(priceInTicks, sequenceNumber uint64) OrderID {
	return OrderID{PriceInTicks: priceInTicks, SequenceNumber: sequenceNumber}
}

// OrderIDFor encodes the arrival counter n for the given side.
func OrderIDFor(side Side, priceInTicks, n uint64) OrderID {
	if side == Bid {
		n = ^n
	}
	return OrderID{PriceInTicks: priceInTicks, SequenceNumber: n}
}

func (id OrderID) Side() Side {
	return SideFromSequenceNumber(id.SequenceNumber)
}

// Arrival decodes the market-wide arrival counter the id was issued from.
func (id OrderID) Arrival() uint64 {
	if id.Side() == Bid {
		return ^id.SequenceNumber
	}
	return id.SequenceNumber
}

// Compare orders bids by descending price and asks by ascending price. At
// equal price the earlier arrival sorts first on both sides. The receiver's
// side decides; comparing ids from different sides is meaningless.
func (id OrderID) Compare(other OrderID) int {
	var byPrice, bySeq int
	if id.Side() == Bid {
		byPrice = cmp.Compare(other.PriceInTicks, id.PriceInTicks)
		bySeq = cmp.Compare(other.SequenceNumber, id.SequenceNumber)
	} else {
		byPrice = cmp.Compare(id.PriceInTicks, other.PriceInTicks)
		bySeq = cmp.Compare(id.SequenceNumber, other.SequenceNumber)
	}
	if byPrice != 0 {
		return byPrice
	}
	return bySeq
}
