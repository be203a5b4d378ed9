// Package store implements chainbit's database: the single
// concurrently-accessed source of truth for accounts, blocks,
// transactions, and receipts. Readers are plural, writers are
// exclusive, guarded by one sync.RWMutex.
package store

import (
	"sync"

	"github.com/chainbit-io/chainbit/internal/chainspec"
	"github.com/chainbit-io/chainbit/internal/core"
)

// Reader is the read-side contract: account, transaction, and block
// lookups, plus the two counts the reporter needs.
type Reader interface {
	ReadAccount(addr core.Address) (*core.Account, bool)
	ReadTransaction(hash core.Hash) (*core.Transaction, bool)
	ReadBlockByHash(hash core.Hash) (*core.SealedBlock, bool)
	ReadBlockByNumber(number uint64) (*core.SealedBlock, bool)
	TransactionCount() int
	BlockCount() int
}

// Writer is the write-side contract. WriteBlock also indexes the block
// by its number and writes all of its contained transactions; callers
// never write block transactions separately.
type Writer interface {
	WriteAccount(addr core.Address, acct *core.Account)
	WriteBlock(hash core.Hash, block *core.SealedBlock)
	WriteTransaction(tx *core.Transaction)
	WriteTransactionReceipt(hash core.Hash, receipt *core.TransactionReceipt)
	WriteSpec(spec *chainspec.ChainSpec)
}

// ReaderWriter is both sides, the type the executor and handlers share.
type ReaderWriter interface {
	Reader
	Writer
}

// InMemoryDB is the only Reader/Writer implementation: four maps plus a
// number→hash index, all writes overwrite, no atomic multi-key
// transaction. The executor batches a block's writes under a single
// exclusive-access window via CommitBlock.
type InMemoryDB struct {
	mu sync.RWMutex

	accounts       map[core.Address]*core.Account
	transactions   map[core.Hash]*core.Transaction
	blocksByHash   map[core.Hash]*core.SealedBlock
	blocksByNumber map[uint64]core.Hash
	receipts       map[core.Hash]*core.TransactionReceipt
}

// New returns an empty in-memory database.
func New() *InMemoryDB {
	return &InMemoryDB{
		accounts:       make(map[core.Address]*core.Account),
		transactions:   make(map[core.Hash]*core.Transaction),
		blocksByHash:   make(map[core.Hash]*core.SealedBlock),
		blocksByNumber: make(map[uint64]core.Hash),
		receipts:       make(map[core.Hash]*core.TransactionReceipt),
	}
}

// Lock acquires the exclusive (writer) handle. Callers must Unlock
// before requesting a read handle again; holding one across a nested
// lock request on the same goroutine self-deadlocks.
func (db *InMemoryDB) Lock() { db.mu.Lock() }

// Unlock releases the exclusive handle.
func (db *InMemoryDB) Unlock() { db.mu.Unlock() }

// RLock acquires a shared (reader) handle.
func (db *InMemoryDB) RLock() { db.mu.RLock() }

// RUnlock releases a shared handle.
func (db *InMemoryDB) RUnlock() { db.mu.RUnlock() }

func (db *InMemoryDB) ReadAccount(addr core.Address) (*core.Account, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	a, ok := db.accounts[addr]
	return a, ok
}

func (db *InMemoryDB) ReadTransaction(hash core.Hash) (*core.Transaction, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	tx, ok := db.transactions[hash]
	return tx, ok
}

func (db *InMemoryDB) ReadBlockByHash(hash core.Hash) (*core.SealedBlock, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	b, ok := db.blocksByHash[hash]
	return b, ok
}

func (db *InMemoryDB) ReadBlockByNumber(number uint64) (*core.SealedBlock, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	hash, ok := db.blocksByNumber[number]
	if !ok {
		return nil, false
	}
	b, ok := db.blocksByHash[hash]
	return b, ok
}

func (db *InMemoryDB) TransactionCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.transactions)
}

func (db *InMemoryDB) BlockCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.blocksByHash)
}

func (db *InMemoryDB) WriteAccount(addr core.Address, acct *core.Account) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.accounts[addr] = acct
}

func (db *InMemoryDB) WriteBlock(hash core.Hash, block *core.SealedBlock) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.blocksByHash[hash] = block
	db.blocksByNumber[block.Header.Number] = hash
	for _, tx := range block.Transactions {
		db.transactions[tx.Hash] = tx
	}
}

func (db *InMemoryDB) WriteTransaction(tx *core.Transaction) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.transactions[tx.Hash] = tx
}

func (db *InMemoryDB) WriteTransactionReceipt(hash core.Hash, receipt *core.TransactionReceipt) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.receipts[hash] = receipt
}

// WriteSpec applies every chainspec preallocation, writing each one
// through the ordinary account writer. Called once at startup.
func (db *InMemoryDB) WriteSpec(spec *chainspec.ChainSpec) {
	for addr, acct := range spec.Accounts {
		db.WriteAccount(addr, acct)
	}
}

// CommitBlock writes an executed block's change set and the sealed
// block itself under a single exclusive-access window. This is the one
// caller allowed to hold the write lock across multiple logical writes;
// everyone else uses the single-write Writer methods above.
func (db *InMemoryDB) CommitBlock(block *core.SealedBlock, changeSet *core.ChangeSet) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for addr, acct := range changeSet.TouchedAccounts {
		db.accounts[addr] = acct
	}
	for hash, receipt := range changeSet.Receipts {
		db.receipts[hash] = receipt
	}
	hash := block.Header.BlockHash
	db.blocksByHash[hash] = block
	db.blocksByNumber[block.Header.Number] = hash
	for _, tx := range block.Transactions {
		db.transactions[tx.Hash] = tx
	}
}
