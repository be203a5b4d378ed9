package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainbit-io/chainbit/internal/core"
)

// snapshot is the pretty-printed JSON shape written to database.json on
// clean shutdown: all four mappings plus the number→hash index.
type snapshot struct {
	Accounts       map[string]*core.Account            `json:"accounts"`
	Transactions   map[string]*core.Transaction        `json:"transactions"`
	BlocksByHash   map[string]*core.SealedBlock        `json:"blocks_by_hash"`
	BlocksByNumber map[uint64]string                   `json:"blocks_by_number"`
	Receipts       map[string]*core.TransactionReceipt `json:"receipts"`
}

// Dump writes a pretty-printed JSON snapshot of the database to
// <dir>/database.json.
func (db *InMemoryDB) Dump(dir string) error {
	db.mu.RLock()
	snap := snapshot{
		Accounts:       make(map[string]*core.Account, len(db.accounts)),
		Transactions:   make(map[string]*core.Transaction, len(db.transactions)),
		BlocksByHash:   make(map[string]*core.SealedBlock, len(db.blocksByHash)),
		BlocksByNumber: make(map[uint64]string, len(db.blocksByNumber)),
		Receipts:       make(map[string]*core.TransactionReceipt, len(db.receipts)),
	}
	for addr, acct := range db.accounts {
		snap.Accounts[addr.String()] = acct
	}
	for hash, tx := range db.transactions {
		snap.Transactions[hash.String()] = tx
	}
	for hash, block := range db.blocksByHash {
		snap.BlocksByHash[hash.String()] = block
	}
	for number, hash := range db.blocksByNumber {
		snap.BlocksByNumber[number] = hash.String()
	}
	for hash, receipt := range db.receipts {
		snap.Receipts[hash.String()] = receipt
	}
	db.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal dump: %w", err)
	}
	path := filepath.Join(dir, "database.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: write dump %s: %w", path, err)
	}
	return nil
}
