package handlers

import (
	"orderbook-arena/src/market"
	"orderbook-arena/src/models"
)

func paramsModel(p market.MarketParams) models.MarketParams {
	return models.MarketParams{BidsSize: p.BidsSize, AsksSize: p.AsksSize, NumSeats: p.NumSeats}
}

func tokenModel(t market.TokenParams) models.TokenParams {
	out := models.TokenParams{Decimals: t.Decimals}
	if !t.MintKey.IsZero() {
		out.Mint = t.MintKey.String()
	}
	if !t.VaultKey.IsZero() {
		out.Vault = t.VaultKey.String()
	}
	return out
}

func ladderModel(levels []market.LadderOrder) []models.LadderLevel {
	out := make([]models.LadderLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, models.LadderLevel{PriceInTicks: l.PriceInTicks, SizeInBaseLots: l.SizeInBaseLots})
	}
	return out
}

func uiLadderModel(levels []market.UILadderLevel) []models.UILadderLevel {
	out := make([]models.UILadderLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, models.UILadderLevel{Price: l.Price.String(), Quantity: l.Quantity.String()})
	}
	return out
}

// orderModel resolves the order's trader through its seat address.
func orderModel(m market.Market, id market.OrderID, order market.RestingOrder) models.OrderInfo {
	info := models.OrderInfo{
		Side:           id.Side().String(),
		PriceInTicks:   id.PriceInTicks,
		SequenceNumber: id.SequenceNumber,
		Arrival:        id.Arrival(),
		NumBaseLots:    order.NumBaseLots,
	}
	if trader, _, ok := m.TraderByAddress(uint32(order.TraderIndex)); ok {
		info.Trader = trader.String()
	}
	return info
}

func traderModel(m market.Market, pk market.Pubkey, addr uint32, s market.TraderState) models.TraderInfo {
	return models.TraderInfo{
		Trader:                  pk.String(),
		Address:                 addr,
		SeatStatus:              market.SeatStatusOf(m, pk).String(),
		AdjustedQuoteLotsLocked: s.AdjustedQuoteLotsLocked,
		AdjustedQuoteLotsFree:   s.AdjustedQuoteLotsFree,
		BaseLotsLocked:          s.BaseLotsLocked,
		BaseLotsFree:            s.BaseLotsFree,
	}
}
