package core

import "errors"

// ErrSealedBlockHashMismatch means re-hashing a sealed block's header
// fields does not reproduce the stored block hash.
var ErrSealedBlockHashMismatch = errors.New("core: sealed block hash does not match its header")

// BlockHeader carries everything needed to compute the block hash,
// except the hash itself.
type BlockHeader struct {
	ParentHash Hash    `json:"parent_hash"`
	Nonce      uint64  `json:"nonce"`
	Number     uint64  `json:"number"`
	Timestamp  uint64  `json:"timestamp"`
	Difficulty *U256   `json:"difficulty"`
	Coinbase   Address `json:"coinbase"`
	TxRoot     Hash    `json:"tx_root"`
}

// Hash computes SHA3-256(parent_hash ‖ nonce_le ‖ number_le ‖
// timestamp_le ‖ difficulty_le ‖ coinbase ‖ tx_root). Signature fields
// never enter a header hash; there are none to begin with.
func (h *BlockHeader) Hash() Hash {
	difficulty := h.Difficulty
	if difficulty == nil {
		difficulty = NewU256(nil)
	}
	difficultyLE := difficulty.Bytes32LE()
	return sha3Of(
		h.ParentHash[:],
		uint64ToLE8(h.Nonce),
		uint64ToLE8(h.Number),
		uint64ToLE8(h.Timestamp),
		difficultyLE[:],
		h.Coinbase[:],
		h.TxRoot[:],
	)
}

// SealedHeader is a header paired with its own hash, the canonical block
// identifier.
type SealedHeader struct {
	BlockHeader
	BlockHash Hash `json:"block_hash"`
}

// Seal computes and attaches the header's hash.
func Seal(h BlockHeader) SealedHeader {
	return SealedHeader{BlockHeader: h, BlockHash: h.Hash()}
}

// SealedBlock is an immutable pair of a sealed header and its ordered
// transaction list.
type SealedBlock struct {
	Header       SealedHeader `json:"header"`
	Transactions Transactions `json:"transactions"`
}

// Verify checks that re-hashing the header fields reproduces the stored
// hash, every transaction verifies, and the block hash (as a
// little-endian U256) satisfies the difficulty inequality (trivially
// true while difficulty is pinned to its maximum value).
func (b *SealedBlock) Verify() error {
	if b.Header.BlockHeader.Hash() != b.Header.BlockHash {
		return ErrSealedBlockHashMismatch
	}
	for _, tx := range b.Transactions {
		if err := tx.Verify(); err != nil {
			return err
		}
	}
	if !b.Header.BlockHash.LessOrEqualDifficulty(b.Header.Difficulty) {
		return errors.New("core: block hash exceeds difficulty")
	}
	return nil
}
