package market

import (
	"fmt"
	"unsafe"

	"orderbook-arena/src/arena"
)

// AccountSize is HeaderSize plus MarketSize(p).
func AccountSize(p MarketParams) (int, bool) {
	size, ok := MarketSize(p)
	if !ok {
		return 0, false
	}
	return HeaderSize + size, true
}

// HeaderOf aliases the header prefix of an account buffer.
func HeaderOf(buf []byte) (*MarketHeader, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedBuffer, len(buf))
	}
	if !arena.IsAligned(buf) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBuffer, arena.ErrBufferAlignment)
	}
	h := (*MarketHeader)(unsafe.Pointer(unsafe.SliceData(buf)))
	if h.Discriminant != MarketDiscriminant {
		return nil, fmt.Errorf("%w: bad discriminant %#x", ErrMalformedBuffer, h.Discriminant)
	}
	return h, nil
}

// LoadAccount reads the header prefix and dispatches the remainder on the
// params it records. The returned header is a copy.
func LoadAccount(buf []byte) (MarketHeader, Market, error) {
	h, err := HeaderOf(buf)
	if err != nil {
		return MarketHeader{}, nil, err
	}
	m, err := Load(h.MarketParams, buf[HeaderSize:])
	if err != nil {
		return MarketHeader{}, nil, err
	}
	return *h, m, nil
}

// LoadAccountMut is LoadAccount with write access to both header and market.
func LoadAccountMut(buf []byte) (*MarketHeader, MutableMarket, error) {
	h, err := HeaderOf(buf)
	if err != nil {
		return nil, nil, err
	}
	m, err := LoadMut(h.MarketParams, buf[HeaderSize:])
	if err != nil {
		return nil, nil, err
	}
	return h, m, nil
}

// InitAccount zeroes buf, writes header (stamping the discriminant) and sets
// the market scale. buf must hold AccountSize(header.MarketParams) bytes.
func InitAccount(buf []byte, header MarketHeader, baseLotsPerBaseUnit, quoteLotsPerTick uint64) (MutableMarket, error) {
	size, ok := AccountSize(header.MarketParams)
	if !ok {
		logUnsupported(header.MarketParams)
		return nil, ErrUnsupportedShape
	}
	if len(buf) < size {
		return nil, fmt.Errorf("%w: have %d bytes, account needs %d", ErrMalformedBuffer, len(buf), size)
	}
	if !arena.IsAligned(buf) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBuffer, arena.ErrBufferAlignment)
	}

	clear(buf[:size])
	header.Discriminant = MarketDiscriminant
	if header.Status == uint64(StatusUninitialized) {
		header.Status = uint64(StatusActive)
	}
	*(*MarketHeader)(unsafe.Pointer(unsafe.SliceData(buf))) = header

	m, err := LoadMut(header.MarketParams, buf[HeaderSize:size])
	if err != nil {
		return nil, err
	}
	m.SetScale(baseLotsPerBaseUnit, quoteLotsPerTick)
	return m, nil
}
