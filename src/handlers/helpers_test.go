package handlers

import "orderbook-arena/src/models"

func validRequest() models.CreateMarketRequest {
	return models.CreateMarketRequest{
		Name:                "m",
		Params:              models.MarketParams{BidsSize: 512, AsksSize: 512, NumSeats: 256},
		Base:                models.TokenParams{Decimals: 9},
		Quote:               models.TokenParams{Decimals: 6},
		BaseLotSize:         1,
		QuoteLotSize:        1,
		TickSize:            1,
		BaseLotsPerBaseUnit: 1,
		QuoteLotsPerTick:    1,
	}
}
