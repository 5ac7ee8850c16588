package market

import "orderbook-arena/src/arena"

type LadderOrder struct {
	PriceInTicks   uint64
	SizeInBaseLots uint64
}

// Ladder is the aggregated depth of both sides, best price first.
type Ladder struct {
	Bids []LadderOrder
	Asks []LadderOrder
}

func buildLadder(bids, asks arena.Map[OrderID, RestingOrder], levels uint64) Ladder {
	ladder := Ladder{Bids: []LadderOrder{}, Asks: []LadderOrder{}}
	if levels == 0 {
		return ladder
	}
	ladder.Bids = aggregate(bids, levels)
	ladder.Asks = aggregate(asks, levels)
	return ladder
}

// aggregate walks one book in priority order, folding equal prices into one
// level and stopping before level levels+1 would start.
func aggregate(book arena.Map[OrderID, RestingOrder], levels uint64) []LadderOrder {
	out := []LadderOrder{}
	for id, order := range book.All() {
		price := id.PriceInTicks
		if n := len(out); n > 0 && out[n-1].PriceInTicks == price {
			out[n-1].SizeInBaseLots += order.NumBaseLots
			continue
		}
		if uint64(len(out)) == levels {
			break
		}
		out = append(out, LadderOrder{PriceInTicks: price, SizeInBaseLots: order.NumBaseLots})
	}
	return out
}
