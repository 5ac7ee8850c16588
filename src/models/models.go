package models

type ErrorResponse struct {
	Error string `json:"error"`
}

type MarketParams struct {
	BidsSize uint64 `json:"bids_size"`
	AsksSize uint64 `json:"asks_size"`
	NumSeats uint64 `json:"num_seats"`
}

type TokenParams struct {
	Decimals uint32 `json:"decimals"`
	Mint     string `json:"mint,omitempty"` // base58
	Vault    string `json:"vault,omitempty"`
}

type CreateMarketRequest struct {
	Name                string       `json:"name"`
	Params              MarketParams `json:"params"`
	Base                TokenParams  `json:"base"`
	Quote               TokenParams  `json:"quote"`
	BaseLotSize         uint64       `json:"base_lot_size"`  // base atoms per lot
	QuoteLotSize        uint64       `json:"quote_lot_size"` // quote atoms per lot
	TickSize            uint64       `json:"tick_size"`      // quote lots per tick
	BaseLotsPerBaseUnit uint64       `json:"base_lots_per_base_unit"`
	QuoteLotsPerTick    uint64       `json:"quote_lots_per_tick"`
	TakerFeeBps         uint64       `json:"taker_fee_bps"`
	Authority           string       `json:"authority,omitempty"`
	FeeDestination      string       `json:"fee_destination,omitempty"`
}

type MarketSummary struct {
	Name                string       `json:"name"`
	Status              string       `json:"status"`
	Params              MarketParams `json:"params"`
	AccountBytes        int          `json:"account_bytes"`
	Base                TokenParams  `json:"base"`
	Quote               TokenParams  `json:"quote"`
	BaseLotSize         uint64       `json:"base_lot_size"`
	QuoteLotSize        uint64       `json:"quote_lot_size"`
	TickSize            uint64       `json:"tick_size"`
	BaseLotsPerBaseUnit uint64       `json:"base_lots_per_base_unit"`
	QuoteLotsPerTick    uint64       `json:"quote_lots_per_tick"`
	TakerFeeBps         uint64       `json:"taker_fee_bps"`
	OrderSequenceNumber uint64       `json:"order_sequence_number"`
	Bids                int          `json:"bids"`
	Asks                int          `json:"asks"`
	Traders             int          `json:"traders"`
	BestBid             *LadderLevel `json:"best_bid,omitempty"`
	BestAsk             *LadderLevel `json:"best_ask,omitempty"`
}

type MarketListResponse struct {
	Markets []MarketSummary `json:"markets"`
}

type ShapeInfo struct {
	Params       MarketParams `json:"params"`
	MarketBytes  int          `json:"market_bytes"`
	AccountBytes int          `json:"account_bytes"`
}

type ShapesResponse struct {
	Shapes []ShapeInfo `json:"shapes"`
}

type LadderLevel struct {
	PriceInTicks   uint64 `json:"price_in_ticks"`
	SizeInBaseLots uint64 `json:"size_in_base_lots"`
}

type LadderResponse struct {
	Market    string        `json:"market"`
	Timestamp int64         `json:"timestamp"` // unix timestamp in milliseconds
	Bids      []LadderLevel `json:"bids"`      // best (highest) first
	Asks      []LadderLevel `json:"asks"`      // best (lowest) first
}

// UILadderLevel carries decimal strings so no precision is lost in JSON.
type UILadderLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type UILadderResponse struct {
	Market    string          `json:"market"`
	Timestamp int64           `json:"timestamp"`
	Bids      []UILadderLevel `json:"bids"`
	Asks      []UILadderLevel `json:"asks"`
}

type OrderInfo struct {
	Side           string `json:"side"`
	PriceInTicks   uint64 `json:"price_in_ticks"`
	SequenceNumber uint64 `json:"sequence_number"`
	Arrival        uint64 `json:"arrival"`
	Trader         string `json:"trader,omitempty"`
	NumBaseLots    uint64 `json:"num_base_lots"`
}

type OrdersResponse struct {
	Market string      `json:"market"`
	Side   string      `json:"side"`
	Orders []OrderInfo `json:"orders"` // priority order
}

type RestOrderRequest struct {
	Side         string `json:"side"`
	PriceInTicks uint64 `json:"price_in_ticks"`
	Trader       string `json:"trader"`
	NumBaseLots  uint64 `json:"num_base_lots"`
}

type ReduceOrderRequest struct {
	NumBaseLots uint64 `json:"num_base_lots"`
}

type ReduceOrderResponse struct {
	Order        OrderInfo `json:"order"`
	RemovedLots  uint64    `json:"removed_base_lots"`
	FullyRemoved bool      `json:"fully_removed"`
}

type RegisterTraderRequest struct {
	Trader string `json:"trader"`
}

type TraderInfo struct {
	Trader                  string `json:"trader"`
	Address                 uint32 `json:"address"`
	SeatStatus              string `json:"seat_status"`
	AdjustedQuoteLotsLocked uint64 `json:"adjusted_quote_lots_locked"`
	AdjustedQuoteLotsFree   uint64 `json:"adjusted_quote_lots_free"`
	BaseLotsLocked          uint64 `json:"base_lots_locked"`
	BaseLotsFree            uint64 `json:"base_lots_free"`
}

type TradersResponse struct {
	Market  string       `json:"market"`
	Traders []TraderInfo `json:"traders"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Markets       int    `json:"markets"`
}
