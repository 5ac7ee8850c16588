package market

import (
	"fmt"
	"math/bits"
	"strings"
)

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// SideFromSequenceNumber recovers the side from an order sequence number:
// a set top bit means bid.
func SideFromSequenceNumber(seq uint64) Side {
	if bits.LeadingZeros64(seq) == 0 {
		return Bid
	}
	return Ask
}

// ParseSide accepts bid/ask as well as the buy/sell spelling used by clients.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "bid", "bids", "buy":
		return Bid, nil
	case "ask", "asks", "sell":
		return Ask, nil
	}
	return Bid, fmt.Errorf("market: unknown side %q", s)
}
