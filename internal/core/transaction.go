package core

import (
	"errors"
	"math/big"
	"sort"

	"github.com/chainbit-io/chainbit/internal/crypto"
)

var (
	// ErrTransactionHashMismatch means the transaction's stored hash does
	// not match the recomputed preimage hash.
	ErrTransactionHashMismatch = errors.New("core: transaction hash does not match its preimage")
	// ErrTransactionBadSignature means (v, r, s) does not recover a
	// public key, or the recovered address does not match From.
	ErrTransactionBadSignature = errors.New("core: transaction signature is invalid")
	// ErrTransactionValueOutOfRange means Value is negative or does not
	// fit the u128 the wire format carries.
	ErrTransactionValueOutOfRange = errors.New("core: transaction value out of u128 range")
)

// Transaction is a signed value transfer. Hash is the SHA3-256 of
// From‖To‖nonce_le‖value_le; the signature fields are excluded from the
// preimage. It arrives with Hash already populated, doubling as both a
// tamper check and an index key.
//
// Value is a u128 quantity and rides the wire as a JSON number, like
// nonce and v; only the signature scalars r and s (and the fixed-width
// identifiers) are hex strings.
type Transaction struct {
	Hash  Hash     `json:"hash"`
	From  Address  `json:"from"`
	To    Address  `json:"to"`
	Nonce uint64   `json:"nonce"`
	Value *big.Int `json:"value"`
	V     byte     `json:"v"`
	R     *U256    `json:"r"`
	S     *U256    `json:"s"`
}

// PreimageHash recomputes SHA3-256(from ‖ to ‖ nonce_le ‖ value_le),
// value being a u128 encoded as 16 little-endian bytes.
func (t *Transaction) PreimageHash() Hash {
	return sha3Of(t.From[:], t.To[:], uint64ToLE8(t.Nonce), u128ToLE16(t.Value))
}

// Verify checks the transaction's three-part validity invariant:
// (i) the stored hash matches the recomputed preimage hash, (ii) (v,r,s)
// recovers a public key, (iii) the recovered address equals From.
func (t *Transaction) Verify() error {
	if t.Value != nil && (t.Value.Sign() < 0 || t.Value.BitLen() > 128) {
		return ErrTransactionValueOutOfRange
	}
	if t.PreimageHash() != t.Hash {
		return ErrTransactionHashMismatch
	}
	r, s := t.R, t.S
	if r == nil {
		r = NewU256(nil)
	}
	if s == nil {
		s = NewU256(nil)
	}
	recovered, err := crypto.Recover(t.Hash, t.V, r.Bytes32BE(), s.Bytes32BE())
	if err != nil {
		return ErrTransactionBadSignature
	}
	if Address(recovered) != t.From {
		return ErrTransactionBadSignature
	}
	return nil
}

// Sign populates Hash, V, R, S for a transfer from the address matching
// key. Used by the demo client (internal/client) and tests.
func Sign(from, to Address, nonce uint64, value *big.Int, key *crypto.PrivateKey) *Transaction {
	tx := &Transaction{From: from, To: to, Nonce: nonce, Value: value}
	tx.Hash = tx.PreimageHash()
	v, r, s := crypto.SignPrehash(tx.Hash, key)
	tx.V = v
	tx.R = NewU256(new(big.Int).SetBytes(r[:]))
	tx.S = NewU256(new(big.Int).SetBytes(s[:]))
	return tx
}

// Transactions is an ordered list of transactions with the ordering and
// root-hashing behavior the header and mempool need.
type Transactions []*Transaction

// Root returns SHA3-256 of the concatenation of included transaction
// hashes, in order: the tx_root header field. No Merkle tree; a flat
// hash of the sequence is enough for a single block producer.
func (txs Transactions) Root() Hash {
	parts := make([][]byte, 0, len(txs))
	for _, tx := range txs {
		h := tx.Hash
		parts = append(parts, h[:])
	}
	return sha3Of(parts...)
}

// SortBySenderAndNonce orders transactions by (from, nonce) ascending, so
// that multiple transactions from one sender apply in nonce order within
// a block.
func (txs Transactions) SortBySenderAndNonce() {
	sort.Slice(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		for k := 0; k < 20; k++ {
			if a.From[k] != b.From[k] {
				return a.From[k] < b.From[k]
			}
		}
		return a.Nonce < b.Nonce
	})
}
