package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"orderbook-arena/src/arena"
	"orderbook-arena/src/config"
	"orderbook-arena/src/logger"
	"orderbook-arena/src/market"
	"orderbook-arena/src/metrics"
	"orderbook-arena/src/models"
	"orderbook-arena/src/store"
)

type MarketHandler struct {
	Store     *store.Store
	Metrics   *metrics.Metrics
	Ladder    config.LadderConfig
	StartTime time.Time

	log zerolog.Logger
}

func NewMarketHandler(s *store.Store, m *metrics.Metrics, ladder config.LadderConfig) *MarketHandler {
	h := &MarketHandler{
		Store:     s,
		Metrics:   m,
		Ladder:    ladder,
		StartTime: time.Now(),
		log:       logger.Component("handlers"),
	}
	h.seedGauges()
	return h
}

// seedGauges publishes the market count and book depths of the accounts the
// store loaded at startup.
func (h *MarketHandler) seedGauges() {
	h.Metrics.SetMarkets(h.Store.Len())
	for _, name := range h.Store.List() {
		err := h.Store.View(name, func(_ market.MarketHeader, m market.Market) error {
			h.observeBook(name, m, market.Bid)
			h.observeBook(name, m, market.Ask)
			return nil
		})
		if err != nil {
			h.log.Warn().Err(err).Str("market", name).Msg("Book depth not seeded")
		}
	}
}

func (h *MarketHandler) CreateMarket(c *fiber.Ctx) error {
	var req models.CreateMarketRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, &ValidationError{Message: "Invalid request: malformed JSON"})
	}

	header, err := headerFromRequest(&req)
	if err != nil {
		return writeError(c, err)
	}

	err = h.Store.Create(req.Name, header, req.BaseLotsPerBaseUnit, req.QuoteLotsPerTick, req.TakerFeeBps)
	h.Metrics.IndexOp("create_market", err)
	if err != nil {
		return writeError(c, err)
	}
	h.Metrics.SetMarkets(h.Store.Len())
	h.Metrics.SetBookDepth(req.Name, market.Bid.String(), 0)
	h.Metrics.SetBookDepth(req.Name, market.Ask.String(), 0)

	h.log.Info().
		Str("market", req.Name).
		Uint64("bids_size", req.Params.BidsSize).
		Uint64("asks_size", req.Params.AsksSize).
		Uint64("num_seats", req.Params.NumSeats).
		Str("ip", c.IP()).
		Msg("Market created")

	summary, err := h.summary(req.Name)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(summary)
}

func headerFromRequest(req *models.CreateMarketRequest) (market.MarketHeader, error) {
	// edge case: a zero tick or lot size makes every price conversion degenerate
	if req.BaseLotSize == 0 || req.QuoteLotSize == 0 || req.TickSize == 0 {
		return market.MarketHeader{}, &ValidationError{Message: "Invalid market: lot sizes and tick size must be positive"}
	}
	if req.BaseLotsPerBaseUnit == 0 || req.QuoteLotsPerTick == 0 {
		return market.MarketHeader{}, &ValidationError{Message: "Invalid market: base_lots_per_base_unit and quote_lots_per_tick must be positive"}
	}

	header := market.MarketHeader{
		MarketParams: market.MarketParams{
			BidsSize: req.Params.BidsSize,
			AsksSize: req.Params.AsksSize,
			NumSeats: req.Params.NumSeats,
		},
		BaseLotSize:  req.BaseLotSize,
		QuoteLotSize: req.QuoteLotSize,
		TickSize:     req.TickSize,
	}
	var err error
	if header.BaseParams, err = tokenFromRequest("base", req.Base); err != nil {
		return market.MarketHeader{}, err
	}
	if header.QuoteParams, err = tokenFromRequest("quote", req.Quote); err != nil {
		return market.MarketHeader{}, err
	}
	if header.Authority, err = optionalPubkey("authority", req.Authority); err != nil {
		return market.MarketHeader{}, err
	}
	if header.FeeDestination, err = optionalPubkey("fee_destination", req.FeeDestination); err != nil {
		return market.MarketHeader{}, err
	}
	return header, nil
}

func tokenFromRequest(field string, t models.TokenParams) (market.TokenParams, error) {
	if t.Decimals > 18 {
		return market.TokenParams{}, &ValidationError{Message: "Invalid market: " + field + " decimals must be at most 18"}
	}
	mint, err := optionalPubkey(field+".mint", t.Mint)
	if err != nil {
		return market.TokenParams{}, err
	}
	vault, err := optionalPubkey(field+".vault", t.Vault)
	if err != nil {
		return market.TokenParams{}, err
	}
	return market.TokenParams{Decimals: t.Decimals, MintKey: mint, VaultKey: vault}, nil
}

func optionalPubkey(field, s string) (market.Pubkey, error) {
	if s == "" {
		return market.Pubkey{}, nil
	}
	pk, err := market.ParsePubkey(s)
	if err != nil {
		return market.Pubkey{}, &ValidationError{Message: "Invalid " + field + ": " + err.Error()}
	}
	return pk, nil
}

func (h *MarketHandler) ListMarkets(c *fiber.Ctx) error {
	names := h.Store.List()
	out := models.MarketListResponse{Markets: make([]models.MarketSummary, 0, len(names))}
	for _, name := range names {
		summary, err := h.summary(name)
		var notFound *store.MarketNotFoundError
		// edge case: deleted between List and View
		if errors.As(err, &notFound) {
			continue
		}
		if err != nil {
			return writeError(c, err)
		}
		out.Markets = append(out.Markets, summary)
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

func (h *MarketHandler) GetMarket(c *fiber.Ctx) error {
	summary, err := h.summary(c.Params("name"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}

func (h *MarketHandler) summary(name string) (models.MarketSummary, error) {
	var out models.MarketSummary
	err := h.Store.View(name, func(hdr market.MarketHeader, m market.Market) error {
		accountBytes, _ := market.AccountSize(hdr.MarketParams)
		out = models.MarketSummary{
			Name:                name,
			Status:              hdr.MarketStatus().String(),
			Params:              paramsModel(hdr.MarketParams),
			AccountBytes:        accountBytes,
			Base:                tokenModel(hdr.BaseParams),
			Quote:               tokenModel(hdr.QuoteParams),
			BaseLotSize:         hdr.BaseLotSize,
			QuoteLotSize:        hdr.QuoteLotSize,
			TickSize:            hdr.TickSize,
			BaseLotsPerBaseUnit: m.BaseLotsPerBaseUnit(),
			QuoteLotsPerTick:    m.QuoteLotsPerTick(),
			TakerFeeBps:         m.TakerFeeBps(),
			OrderSequenceNumber: m.OrderSequenceNumber(),
			Bids:                m.Book(market.Bid).Len(),
			Asks:                m.Book(market.Ask).Len(),
			Traders:             m.RegisteredTraders().Len(),
		}
		top := m.Ladder(1)
		if len(top.Bids) > 0 {
			out.BestBid = &models.LadderLevel{PriceInTicks: top.Bids[0].PriceInTicks, SizeInBaseLots: top.Bids[0].SizeInBaseLots}
		}
		if len(top.Asks) > 0 {
			out.BestAsk = &models.LadderLevel{PriceInTicks: top.Asks[0].PriceInTicks, SizeInBaseLots: top.Asks[0].SizeInBaseLots}
		}
		return nil
	})
	return out, err
}

func (h *MarketHandler) DeleteMarket(c *fiber.Ctx) error {
	name := c.Params("name")
	err := h.Store.Delete(name)
	h.Metrics.IndexOp("delete_market", err)
	if err != nil {
		return writeError(c, err)
	}
	h.Metrics.ForgetMarket(name)
	h.Metrics.SetMarkets(h.Store.Len())

	h.log.Info().Str("market", name).Str("ip", c.IP()).Msg("Market deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MarketHandler) Shapes(c *fiber.Ctx) error {
	shapes := market.Shapes()
	out := models.ShapesResponse{Shapes: make([]models.ShapeInfo, 0, len(shapes))}
	for _, p := range shapes {
		marketBytes, _ := market.MarketSize(p)
		accountBytes, _ := market.AccountSize(p)
		out.Shapes = append(out.Shapes, models.ShapeInfo{
			Params:       paramsModel(p),
			MarketBytes:  marketBytes,
			AccountBytes: accountBytes,
		})
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

// levels reads the levels query parameter, clamped to the configured maximum.
func (h *MarketHandler) levels(c *fiber.Ctx) (uint64, error) {
	raw := c.Query("levels")
	if raw == "" {
		return h.Ladder.DefaultLevels, nil
	}
	levels, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &ValidationError{Message: "Invalid levels: must be a non-negative integer"}
	}
	// edge case: enforce maximum depth limit
	return min(levels, h.Ladder.MaxLevels), nil
}

func (h *MarketHandler) GetLadder(c *fiber.Ctx) error {
	name := c.Params("name")
	levels, err := h.levels(c)
	if err != nil {
		return writeError(c, err)
	}

	var ladder market.Ladder
	err = h.Store.View(name, func(_ market.MarketHeader, m market.Market) error {
		ladder = m.Ladder(levels)
		return nil
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.LadderResponse{
		Market:    name,
		Timestamp: time.Now().UnixMilli(),
		Bids:      ladderModel(ladder.Bids),
		Asks:      ladderModel(ladder.Asks),
	})
}

func (h *MarketHandler) GetUILadder(c *fiber.Ctx) error {
	name := c.Params("name")
	levels, err := h.levels(c)
	if err != nil {
		return writeError(c, err)
	}

	var ui market.UILadder
	err = h.Store.View(name, func(hdr market.MarketHeader, m market.Market) error {
		ui = market.NewConverter(hdr, m.QuoteLotsPerTick()).Ladder(m.Ladder(levels))
		return nil
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.UILadderResponse{
		Market:    name,
		Timestamp: time.Now().UnixMilli(),
		Bids:      uiLadderModel(ui.Bids),
		Asks:      uiLadderModel(ui.Asks),
	})
}

func (h *MarketHandler) GetOrders(c *fiber.Ctx) error {
	name := c.Params("name")
	side, err := market.ParseSide(c.Params("side"))
	if err != nil {
		return writeError(c, &ValidationError{Message: "Invalid side: must be bid or ask"})
	}

	var orders []models.OrderInfo
	err = h.Store.View(name, func(_ market.MarketHeader, m market.Market) error {
		book := m.Book(side)
		orders = make([]models.OrderInfo, 0, book.Len())
		for id, order := range book.All() {
			orders = append(orders, orderModel(m, id, order))
		}
		return nil
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.OrdersResponse{
		Market: name,
		Side:   side.String(),
		Orders: orders,
	})
}

func (h *MarketHandler) GetOrder(c *fiber.Ctx) error {
	name := c.Params("name")
	id, err := orderIDParams(c)
	if err != nil {
		return writeError(c, err)
	}

	var info models.OrderInfo
	err = h.Store.View(name, func(_ market.MarketHeader, m market.Market) error {
		order, ok := m.Book(id.Side()).Get(id)
		if !ok {
			return &OrderNotFoundError{PriceInTicks: id.PriceInTicks, SequenceNumber: id.SequenceNumber}
		}
		info = orderModel(m, id, order)
		return nil
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(info)
}

func (h *MarketHandler) RestOrder(c *fiber.Ctx) error {
	name := c.Params("name")
	var req models.RestOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, &ValidationError{Message: "Invalid request: malformed JSON"})
	}
	side, err := market.ParseSide(req.Side)
	if err != nil {
		return writeError(c, &ValidationError{Message: "Invalid order: side must be bid or ask"})
	}
	if req.NumBaseLots == 0 {
		return writeError(c, &ValidationError{Message: "Invalid order: num_base_lots must be positive"})
	}
	trader, err := market.ParsePubkey(req.Trader)
	if err != nil {
		return writeError(c, &ValidationError{Message: "Invalid order: " + err.Error()})
	}

	var info models.OrderInfo
	err = h.Store.Update(name, func(_ *market.MarketHeader, m market.MutableMarket) error {
		id, err := market.RestOrder(m, side, req.PriceInTicks, trader, req.NumBaseLots)
		if err != nil {
			return err
		}
		order, _ := m.Book(side).Get(id)
		info = orderModel(m, id, order)
		h.observeBook(name, m, side)
		return nil
	})
	h.Metrics.IndexOp("rest_order", err)
	if errors.Is(err, arena.ErrCapacityExceeded) {
		h.Metrics.CapacityRejected(bookName(side))
	}
	if err != nil {
		return writeError(c, err)
	}

	h.log.Info().
		Str("market", name).
		Str("side", side.String()).
		Uint64("price_in_ticks", info.PriceInTicks).
		Uint64("sequence_number", info.SequenceNumber).
		Uint64("num_base_lots", info.NumBaseLots).
		Str("trader", info.Trader).
		Msg("Order rested")

	return c.Status(fiber.StatusCreated).JSON(info)
}

func (h *MarketHandler) CancelOrder(c *fiber.Ctx) error {
	name := c.Params("name")
	id, err := orderIDParams(c)
	if err != nil {
		return writeError(c, err)
	}

	var info models.OrderInfo
	err = h.Store.Update(name, func(_ *market.MarketHeader, m market.MutableMarket) error {
		order, ok := market.RemoveOrder(m, id)
		if !ok {
			return &OrderNotFoundError{PriceInTicks: id.PriceInTicks, SequenceNumber: id.SequenceNumber}
		}
		info = orderModel(m, id, order)
		h.observeBook(name, m, id.Side())
		return nil
	})
	h.Metrics.IndexOp("remove_order", err)
	if err != nil {
		return writeError(c, err)
	}

	h.log.Info().
		Str("market", name).
		Uint64("price_in_ticks", id.PriceInTicks).
		Uint64("sequence_number", id.SequenceNumber).
		Str("ip", c.IP()).
		Msg("Order removed")

	return c.Status(fiber.StatusOK).JSON(info)
}

func (h *MarketHandler) ReduceOrder(c *fiber.Ctx) error {
	name := c.Params("name")
	id, err := orderIDParams(c)
	if err != nil {
		return writeError(c, err)
	}
	var req models.ReduceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, &ValidationError{Message: "Invalid request: malformed JSON"})
	}
	if req.NumBaseLots == 0 {
		return writeError(c, &ValidationError{Message: "Invalid reduce: num_base_lots must be positive"})
	}

	var out models.ReduceOrderResponse
	err = h.Store.Update(name, func(_ *market.MarketHeader, m market.MutableMarket) error {
		before, ok := m.Book(id.Side()).Get(id)
		if !ok {
			return &OrderNotFoundError{PriceInTicks: id.PriceInTicks, SequenceNumber: id.SequenceNumber}
		}
		removed, _ := market.ReduceOrder(m, id, req.NumBaseLots)
		after := before
		after.NumBaseLots -= removed
		out = models.ReduceOrderResponse{
			Order:        orderModel(m, id, after),
			RemovedLots:  removed,
			FullyRemoved: after.NumBaseLots == 0,
		}
		h.observeBook(name, m, id.Side())
		return nil
	})
	h.Metrics.IndexOp("reduce_order", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

func (h *MarketHandler) ListTraders(c *fiber.Ctx) error {
	name := c.Params("name")
	var traders []models.TraderInfo
	err := h.Store.View(name, func(_ market.MarketHeader, m market.Market) error {
		seats := m.RegisteredTraders()
		traders = make([]models.TraderInfo, 0, seats.Len())
		for pk, state := range seats.All() {
			traders = append(traders, traderModel(m, pk, seats.Addr(pk), state))
		}
		return nil
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(models.TradersResponse{Market: name, Traders: traders})
}

func (h *MarketHandler) GetTrader(c *fiber.Ctx) error {
	name := c.Params("name")
	trader, err := market.ParsePubkey(c.Params("trader"))
	if err != nil {
		return writeError(c, &ValidationError{Message: "Invalid trader: " + err.Error()})
	}

	var info models.TraderInfo
	err = h.Store.View(name, func(_ market.MarketHeader, m market.Market) error {
		state, ok := m.TraderState(trader)
		if !ok {
			return &TraderNotFoundError{Trader: trader.String()}
		}
		addr, _ := m.TraderAddress(trader)
		info = traderModel(m, trader, addr, state)
		return nil
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(info)
}

func (h *MarketHandler) RegisterTrader(c *fiber.Ctx) error {
	name := c.Params("name")
	var req models.RegisterTraderRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, &ValidationError{Message: "Invalid request: malformed JSON"})
	}
	trader, err := market.ParsePubkey(req.Trader)
	if err != nil {
		return writeError(c, &ValidationError{Message: "Invalid trader: " + err.Error()})
	}

	var info models.TraderInfo
	err = h.Store.Update(name, func(_ *market.MarketHeader, m market.MutableMarket) error {
		addr, err := market.RegisterTrader(m, trader)
		if err != nil {
			return err
		}
		state, _ := m.TraderState(trader)
		info = traderModel(m, trader, addr, state)
		return nil
	})
	h.Metrics.IndexOp("register_trader", err)
	if errors.Is(err, arena.ErrCapacityExceeded) {
		h.Metrics.CapacityRejected("traders")
	}
	if err != nil {
		return writeError(c, err)
	}

	h.log.Info().
		Str("market", name).
		Str("trader", info.Trader).
		Uint32("address", info.Address).
		Msg("Trader registered")
	return c.Status(fiber.StatusCreated).JSON(info)
}

func (h *MarketHandler) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		Markets:       h.Store.Len(),
	})
}

func (h *MarketHandler) observeBook(name string, m market.Market, side market.Side) {
	h.Metrics.SetBookDepth(name, side.String(), m.Book(side).Len())
}

func orderIDParams(c *fiber.Ctx) (market.OrderID, error) {
	price, err := strconv.ParseUint(c.Params("price"), 10, 64)
	if err != nil {
		return market.OrderID{}, &ValidationError{Message: "Invalid order id: price must be an unsigned integer"}
	}
	seq, err := strconv.ParseUint(c.Params("seq"), 10, 64)
	if err != nil {
		return market.OrderID{}, &ValidationError{Message: "Invalid order id: sequence number must be an unsigned integer"}
	}
	return market.NewOrderID(price, seq), nil
}

func bookName(side market.Side) string {
	if side == market.Bid {
		return "bids"
	}
	return "asks"
}
