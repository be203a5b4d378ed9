// Package core defines chainbit's data model: accounts, transactions,
// blocks, receipts, and the change-set overlay the executor applies them
// through. These are pure-data types; the only behavior attached to them
// is hashing, signing, and verification.
package core

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/chainbit-io/chainbit/internal/crypto"
)

// Address is a 20-byte account identifier.
type Address [20]byte

// ZeroAddress is the default/unset address.
var ZeroAddress = Address{}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalJSON renders the address as a 0x-prefixed hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses a 0x-prefixed hex string into the address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := decodeHexFixed(s, 20)
	if err != nil {
		return fmt.Errorf("core: invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return nil
}

// Hash is a 32-byte digest, used both for transaction hashes and block
// hashes (B256 in the wire format).
type Hash [32]byte

// ZeroHash is the genesis block's parent hash.
var ZeroHash = Hash{}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalJSON renders the hash as a 0x-prefixed hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses a 0x-prefixed hex string into the hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := decodeHexFixed(s, 32)
	if err != nil {
		return fmt.Errorf("core: invalid hash %q: %w", s, err)
	}
	copy(h[:], b)
	return nil
}

// LessOrEqualDifficulty interprets the hash as a little-endian U256 and
// compares it against difficulty. Difficulty is pinned to the maximum
// U256 value throughout this chain, so the comparison always holds; it
// is retained because block sealing is defined in terms of it.
func (h Hash) LessOrEqualDifficulty(difficulty *U256) bool {
	le := make([]byte, 32)
	for i := 0; i < 32; i++ {
		le[i] = h[31-i]
	}
	asInt := new(big.Int).SetBytes(le)
	return asInt.Cmp(difficulty.Int) <= 0
}

func decodeHexFixed(s string, n int) ([]byte, error) {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(b))
	}
	return b, nil
}

// U256 is a 256-bit unsigned integer, used for signature scalars and
// difficulty. It wraps math/big since Go has no native u128/u256 type.
type U256 struct {
	*big.Int
}

// NewU256 wraps v as a U256, treating a nil v as zero.
func NewU256(v *big.Int) *U256 {
	if v == nil {
		v = new(big.Int)
	}
	return &U256{Int: v}
}

// U256FromUint64 builds a U256 from a uint64.
func U256FromUint64(v uint64) *U256 {
	return &U256{Int: new(big.Int).SetUint64(v)}
}

// MaxU256 returns 2^256 - 1, the fixed difficulty used throughout this
// chain.
func MaxU256() *U256 {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	max.Sub(max, big.NewInt(1))
	return &U256{Int: max}
}

// Bytes32BE returns the big-endian 32-byte encoding, used for signature
// scalars (r, s).
func (u *U256) Bytes32BE() [32]byte {
	var out [32]byte
	u.Int.FillBytes(out[:])
	return out
}

// Bytes32LE returns the little-endian 32-byte encoding, used for the
// difficulty field of the header hash preimage.
func (u *U256) Bytes32LE() [32]byte {
	be := u.Bytes32BE()
	var le [32]byte
	for i := 0; i < 32; i++ {
		le[i] = be[31-i]
	}
	return le
}

func (u *U256) MarshalJSON() ([]byte, error) {
	if u == nil || u.Int == nil {
		return json.Marshal("0x0")
	}
	return json.Marshal("0x" + u.Int.Text(16))
}

func (u *U256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return fmt.Errorf("core: invalid U256 %q", s)
	}
	u.Int = v
	return nil
}

// uint64ToLE8 returns the little-endian encoding of v, used as a hash
// preimage component for nonce/number/timestamp fields.
func uint64ToLE8(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// u128ToLE16 returns the 16-byte little-endian encoding of v, the hash
// preimage form of a transaction value. A nil v encodes as zero; out of
// range magnitudes keep their low 16 bytes (callers reject those before
// hashing matters, see Transaction.Verify).
func u128ToLE16(v *big.Int) []byte {
	le := make([]byte, 16)
	if v == nil {
		return le
	}
	be := v.Bytes()
	if len(be) > 16 {
		be = be[len(be)-16:]
	}
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	return le
}

func sha3Of(parts ...[]byte) Hash {
	return Hash(crypto.Hash256(parts...))
}
