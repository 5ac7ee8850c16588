package market

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// UILadderLevel is a ladder level in token units: Price is quote units per
// base unit, Quantity is base units.
type UILadderLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

type UILadder struct {
	Bids []UILadderLevel
	Asks []UILadderLevel
}

// Converter turns raw ticks and lots into token units for one market.
type Converter struct {
	tickSizeInQuoteAtoms decimal.Decimal
	baseLotSizeInAtoms   decimal.Decimal
	quoteDecimals        int32
	baseDecimals         int32
}

func NewConverter(h MarketHeader, quoteLotsPerTick uint64) Converter {
	return Converter{
		tickSizeInQuoteAtoms: fromUint64(quoteLotsPerTick).Mul(fromUint64(h.QuoteLotSize)),
		baseLotSizeInAtoms:   fromUint64(h.BaseLotSize),
		quoteDecimals:        int32(h.QuoteParams.Decimals),
		baseDecimals:         int32(h.BaseParams.Decimals),
	}
}

// Price converts a price in ticks to quote units per base unit.
func (c Converter) Price(ticks uint64) decimal.Decimal {
	return fromUint64(ticks).Mul(c.tickSizeInQuoteAtoms).Shift(-c.quoteDecimals)
}

// Size converts base lots to base units.
func (c Converter) Size(baseLots uint64) decimal.Decimal {
	return fromUint64(baseLots).Mul(c.baseLotSizeInAtoms).Shift(-c.baseDecimals)
}

func (c Converter) Ladder(l Ladder) UILadder {
	return UILadder{Bids: c.levels(l.Bids), Asks: c.levels(l.Asks)}
}

func (c Converter) levels(in []LadderOrder) []UILadderLevel {
	out := make([]UILadderLevel, 0, len(in))
	for _, lvl := range in {
		out = append(out, UILadderLevel{
			Price:    c.Price(lvl.PriceInTicks),
			Quantity: c.Size(lvl.SizeInBaseLots),
		})
	}
	return out
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
