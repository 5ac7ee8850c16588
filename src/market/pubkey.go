package market

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// Pubkey is an opaque 32-byte identity. It is only compared and stored.
type Pubkey [32]byte

func (p Pubkey) Compare(other Pubkey) int {
	return bytes.Compare(p[:], other[:])
}

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("market: invalid pubkey %q: %w", s, err)
	}
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("market: pubkey %q decodes to %d bytes, want 32", s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}
