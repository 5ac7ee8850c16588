package market

import (
	"errors"
	"slices"

	"github.com/rs/zerolog/log"
)

var (
	ErrUnsupportedShape = errors.New("market: unsupported market params")
	ErrMalformedBuffer  = errors.New("market: malformed market buffer")
)

// Shapes a market can be created with. Each is picked per deployment.
var (
	Shape512x512x256    = MarketParams{BidsSize: 512, AsksSize: 512, NumSeats: 256}
	Shape2048x2048x4096 = MarketParams{BidsSize: 2048, AsksSize: 2048, NumSeats: 4096}
	Shape4096x4096x8192 = MarketParams{BidsSize: 4096, AsksSize: 4096, NumSeats: 8192}
	Shape1024x1024x128  = MarketParams{BidsSize: 1024, AsksSize: 1024, NumSeats: 128}
	Shape2048x2048x128  = MarketParams{BidsSize: 2048, AsksSize: 2048, NumSeats: 128}
	Shape4096x4096x128  = MarketParams{BidsSize: 4096, AsksSize: 4096, NumSeats: 128}
)

var supportedShapes = [...]MarketParams{
	Shape512x512x256,
	Shape2048x2048x4096,
	Shape4096x4096x8192,
	Shape1024x1024x128,
	Shape2048x2048x128,
	Shape4096x4096x128,
}

// Shapes returns the supported params in declaration order.
func Shapes() []MarketParams {
	return slices.Clone(supportedShapes[:])
}

func (p MarketParams) Supported() bool {
	return slices.Contains(supportedShapes[:], p)
}

// MarketSize returns the exact byte size of the market region for p.
func MarketSize(p MarketParams) (int, bool) {
	if !p.Supported() {
		return 0, false
	}
	return layoutFor(p).size, true
}

// LoadMut attaches a read-write handle to buf without copying. buf must start
// on an 8-byte boundary and hold at least MarketSize(p) bytes. No handle is
// returned on error.
func LoadMut(p MarketParams, buf []byte) (MutableMarket, error) {
	if !p.Supported() {
		logUnsupported(p)
		return nil, ErrUnsupportedShape
	}
	m, err := attach(p, buf)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Load attaches a read-only handle to buf without copying.
func Load(p MarketParams, buf []byte) (Market, error) {
	if !p.Supported() {
		logUnsupported(p)
		return nil, ErrUnsupportedShape
	}
	m, err := attach(p, buf)
	if err != nil {
		return nil, err
	}
	return readOnlyMarket{m: m}, nil
}

func logUnsupported(p MarketParams) {
	log.Warn().
		Uint64("bids_size", p.BidsSize).
		Uint64("asks_size", p.AsksSize).
		Uint64("num_seats", p.NumSeats).
		Msg("Invalid parameters for market")
}
