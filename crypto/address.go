package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Address is the 20-byte actor identity used in the provider allowlist,
// ownership checks, and cooldown tracking.
type Address = common.Address

// AddressFromPublicKey derives an address from a signing public key: the last
// 20 bytes of the keccak256 digest of the raw key. Deterministic, so an actor
// recovered from a signed message always maps to the same allowlist entry.
func AddressFromPublicKey(pk PublicKey) Address {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(pk.Bytes())
	digest := hasher.Sum(nil)
	return common.BytesToAddress(digest[12:])
}

// ParseAddress parses a 0x-prefixed or bare hex address.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
