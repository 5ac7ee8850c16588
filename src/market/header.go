package market

import "unsafe"

// MarketDiscriminant tags an initialised market account ("fifomrkt" read as
// a little-endian word).
const MarketDiscriminant uint64 = 0x746b726d6f666966

type MarketStatus uint64

const (
	StatusUninitialized MarketStatus = iota
	StatusActive
	StatusPostOnly
	StatusPaused
	StatusClosed
	StatusTombstoned
)

func (s MarketStatus) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusActive:
		return "active"
	case StatusPostOnly:
		return "post_only"
	case StatusPaused:
		return "paused"
	case StatusClosed:
		return "closed"
	case StatusTombstoned:
		return "tombstoned"
	default:
		return "unknown"
	}
}

// MarketParams are the capacities of the three maps of a market.
type MarketParams struct {
	BidsSize uint64
	AsksSize uint64
	NumSeats uint64
}

type TokenParams struct {
	// Decimals of the token, e.g. 9 for SOL, 6 for USDC.
	Decimals  uint32
	VaultBump uint32
	MintKey   Pubkey
	VaultKey  Pubkey
}

// MarketHeader is the fixed prefix of a market account.
type MarketHeader struct {
	Discriminant uint64
	Status       uint64
	MarketParams MarketParams
	BaseParams   TokenParams
	// BaseLotSize is in base atoms.
	BaseLotSize uint64
	QuoteParams TokenParams
	// QuoteLotSize is in quote atoms.
	QuoteLotSize uint64
	// TickSize is in quote lots per tick.
	TickSize             uint64
	Authority            Pubkey
	FeeDestination       Pubkey
	MarketSequenceNumber uint64
	Successor            Pubkey
	_                    [2]uint64
}

// HeaderSize is the byte length of MarketHeader.
const HeaderSize = int(unsafe.Sizeof(MarketHeader{}))

func (h *MarketHeader) MarketStatus() MarketStatus {
	return MarketStatus(h.Status)
}

// PriceInTicks converts a price in quote lots per base unit to ticks.
func (h *MarketHeader) PriceInTicks(price uint64) uint64 {
	// edge case: an uninitialised header has no tick size
	if h.TickSize == 0 {
		return 0
	}
	return price / h.TickSize
}

// SeatDiscriminant tags a seat account ("trdrseat" read as a little-endian
// word).
const SeatDiscriminant uint64 = 0x7461657372647274

type SeatApprovalStatus uint64

const (
	SeatNotApproved SeatApprovalStatus = iota
	SeatApproved
	SeatRetired
)

func (s SeatApprovalStatus) String() string {
	switch s {
	case SeatNotApproved:
		return "not_approved"
	case SeatApproved:
		return "approved"
	case SeatRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Seat records whether a trader may place orders on a market.
type Seat struct {
	Discriminant   uint64
	Market         Pubkey
	Trader         Pubkey
	ApprovalStatus uint64
}

// SeatSize is the byte length of Seat.
const SeatSize = int(unsafe.Sizeof(Seat{}))

func NewSeat(market, trader Pubkey) Seat {
	return Seat{Discriminant: SeatDiscriminant, Market: market, Trader: trader}
}

func (s *Seat) Status() SeatApprovalStatus {
	return SeatApprovalStatus(s.ApprovalStatus)
}

func (s *Seat) SetStatus(status SeatApprovalStatus) {
	s.ApprovalStatus = uint64(status)
}

// SeatStatusOf reports the seat status implied by the trader registry: a
// registered trader holds an approved seat.
func SeatStatusOf(m Market, trader Pubkey) SeatApprovalStatus {
	if _, ok := m.TraderAddress(trader); ok {
		return SeatApproved
	}
	return SeatNotApproved
}
