// Package crypto provides the hashing and secp256k1 signature primitives
// the rest of chainbit builds on: block and transaction hashing, key
// construction, signing, and signature recovery.
package crypto

import (
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// PrivateKey is a secp256k1 signing key, re-exported so callers never
// need to import the underlying curve library directly.
type PrivateKey = secp256k1.PrivateKey

// Sentinel errors for crypto-kind failures. These are never fatal to a
// connection; callers convert them into an InvalidTransaction response.
var (
	ErrInvalidScalar    = errors.New("crypto: scalar is not a valid secp256k1 private key")
	ErrInvalidSignature = errors.New("crypto: signature does not recover a public key")
)

// Hash256 returns the Keccak/SHA3-256 digest of data.
func Hash256(data ...[]byte) [32]byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// SigningKeyFromScalar builds a secp256k1 private key from a big-endian
// scalar. Used by the demo client, which derives deterministic keys from
// small integers (1, 2, 3, ...).
func SigningKeyFromScalar(scalar *big.Int) (*secp256k1.PrivateKey, error) {
	b := make([]byte, 32)
	scalar.FillBytes(b)
	var fieldVal secp256k1.ModNScalar
	overflow := fieldVal.SetByteSlice(b)
	if overflow || fieldVal.IsZero() {
		return nil, ErrInvalidScalar
	}
	return secp256k1.NewPrivateKey(&fieldVal), nil
}

// AddressOf derives a 20-byte address from a public key: the SHA3-256
// hash of the 64-byte uncompressed key (X‖Y, the 0x04 prefix stripped),
// rightmost 20 bytes.
func AddressOf(pub *secp256k1.PublicKey) [20]byte {
	uncompressed := pub.SerializeUncompressed() // 0x04 || X || Y, 65 bytes
	digest := Hash256(uncompressed[1:])
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// SignPrehash signs a 32-byte digest with key, returning a recoverable
// signature as (v, r, s): v is the recovery id (27 or 28, Ethereum-style),
// r and s are big-endian 32-byte scalars.
func SignPrehash(digest [32]byte, key *secp256k1.PrivateKey) (v byte, r, s [32]byte) {
	sig := ecdsa.SignCompact(key, digest[:], false)
	// ecdsa.SignCompact returns [recoveryID+27, R(32), S(32)].
	v = sig[0]
	copy(r[:], sig[1:33])
	copy(s[:], sig[33:65])
	return v, r, s
}

// Recover recovers the address that produced (v, r, s) over digest.
// Returns ErrInvalidSignature if the signature is malformed or does not
// recover.
func Recover(digest [32]byte, v byte, r, s [32]byte) ([20]byte, error) {
	compact := make([]byte, 65)
	compact[0] = v
	copy(compact[1:33], r[:])
	copy(compact[33:65], s[:])

	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return [20]byte{}, ErrInvalidSignature
	}
	return AddressOf(pub), nil
}
