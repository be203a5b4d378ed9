// Package executor implements the timer-driven block builder, sealer,
// and applier: the core of the block-production pipeline. Each tick
// drains the mempool, seals a header, applies the batch against the
// database, and advances to the next block number.
package executor

import (
	"math/big"
	"time"

	"github.com/chainbit-io/chainbit/internal/core"
	"github.com/chainbit-io/chainbit/internal/mempool"
	"github.com/chainbit-io/chainbit/internal/shutdown"
	"github.com/chainbit-io/chainbit/internal/store"
	"github.com/sirupsen/logrus"
)

// Executor seals one block per tick against the shared database.
type Executor struct {
	db       *store.InMemoryDB
	mp       *mempool.Mempool
	coinbase core.Address
	period   time.Duration
	log      *logrus.Entry

	lastHash      core.Hash
	nextNumber    uint64
	lastTimestamp uint64
}

// New returns an Executor starting from genesis: last_hash is the zero
// hash, next_number is 1.
func New(db *store.InMemoryDB, mp *mempool.Mempool, coinbase core.Address, period time.Duration, log *logrus.Entry) *Executor {
	return &Executor{
		db:         db,
		mp:         mp,
		coinbase:   coinbase,
		period:     period,
		log:        log,
		lastHash:   core.ZeroHash,
		nextNumber: 1,
	}
}

// Run is the executor's main loop: exactly one goroutine must call this.
// If the shutdown handle fires during the tick-wait, the executor exits
// without producing a block.
func (e *Executor) Run(handle *shutdown.Handle) {
	defer handle.Done()

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-handle.Context().Done():
			e.log.Debug("executor: shutdown signal received, exiting")
			return
		case <-ticker.C:
			e.runTick(handle)
		}
	}
}

// runTick performs one full build/seal/execute/commit/advance cycle.
func (e *Executor) runTick(handle *shutdown.Handle) {
	// Step 1: request transactions from the mempool.
	reply, err := e.mp.RequestDrain(handle)
	if err != nil {
		e.log.WithError(err).Warn("executor: mempool drain request failed, skipping tick")
		return
	}
	var txs core.Transactions
	select {
	case txs = <-reply:
	case <-handle.Context().Done():
		return
	}

	// Step 2: build header. A wall clock that went backwards is fatal
	// for this block only; the next tick retries with a fresh reading.
	now := uint64(time.Now().Unix())
	if now < e.lastTimestamp {
		e.log.WithFields(logrus.Fields{
			"now":  now,
			"last": e.lastTimestamp,
		}).Error("executor: wall clock went backwards, skipping block")
		return
	}
	header := core.BlockHeader{
		ParentHash: e.lastHash,
		Nonce:      0,
		Number:     e.nextNumber,
		Timestamp:  now,
		Difficulty: core.MaxU256(),
		Coinbase:   e.coinbase,
		TxRoot:     txs.Root(),
	}

	// Step 3: seal.
	sealed := core.Seal(header)

	// Step 4: execute under a read handle, producing an owned ChangeSet.
	// The read handle is released before step 5 acquires the write
	// handle, to avoid a self-deadlock.
	changeSet := e.execute(sealed.BlockHash, header.Number, txs)

	// Step 5: commit under a write handle.
	e.commit(&core.SealedBlock{Header: sealed, Transactions: txs}, changeSet)

	// Step 6: advance.
	e.lastHash = sealed.BlockHash
	e.nextNumber++
	e.lastTimestamp = now

	e.log.WithFields(logrus.Fields{
		"block_number": header.Number,
		"tx_count":     len(txs),
	}).Info("executor: sealed block")
}

// execute applies each transaction's validity and balance rules against
// a read-through overlay, returning the resulting ChangeSet.
// Account reads go through the database's own Reader methods, each of
// which takes and releases a read lock for that single lookup. The
// executor is the only writer in the system and never calls commit
// until execute has returned, so per-lookup locking yields the same
// result as holding one read handle for the whole phase while avoiding
// any recursive-lock hazard from nesting RLock calls on the same
// goroutine.
func (e *Executor) execute(blockHash core.Hash, blockNumber uint64, txs core.Transactions) *core.ChangeSet {
	changeSet := core.NewChangeSet()
	overlay := core.NewOverlay(e.db, changeSet)

	for _, tx := range txs {
		receipt := &core.TransactionReceipt{
			Success:     false,
			BlockHash:   blockHash,
			BlockNumber: blockNumber,
			From:        tx.From,
			To:          tx.To,
		}

		fromAcct, ok := overlay.Account(tx.From)
		if !ok {
			changeSet.Receipts[tx.Hash] = receipt
			continue
		}
		if fromAcct.Nonce != tx.Nonce {
			changeSet.Receipts[tx.Hash] = receipt
			continue
		}

		toAcct, ok := overlay.Account(tx.To)
		if !ok {
			toAcct = core.NewAccount()
		}

		value := tx.Value
		if value == nil {
			value = new(big.Int)
		}
		if fromAcct.Balance.Cmp(value) < 0 {
			changeSet.Receipts[tx.Hash] = receipt
			continue
		}

		// Checked addition: reject instead of silently wrapping if
		// crediting the recipient would exceed the u128 balance range.
		newToBalance := new(big.Int).Add(toAcct.Balance, value)
		if newToBalance.BitLen() > 128 {
			changeSet.Receipts[tx.Hash] = receipt
			continue
		}

		newFrom := fromAcct.Clone()
		newFrom.Balance.Sub(newFrom.Balance, value)
		newFrom.Nonce++

		var newTo *core.Account
		if tx.From == tx.To {
			// Self-transfer: collapse into one account so the debit and
			// credit both land on the same updated value rather than
			// racing a stale read.
			newTo = newFrom
			newTo.Balance.Add(newTo.Balance, value)
		} else {
			newTo = toAcct.Clone()
			newTo.Balance = newToBalance
		}

		overlay.SetAccount(tx.From, newFrom)
		overlay.SetAccount(tx.To, newTo)

		receipt.Success = true
		changeSet.Receipts[tx.Hash] = receipt
	}

	return changeSet
}

// commit flushes a ChangeSet and the sealed block to the database under
// a single exclusive-access window. The read handle execute relied on
// is already gone by this point; it never overlapped with this write
// handle.
func (e *Executor) commit(block *core.SealedBlock, changeSet *core.ChangeSet) {
	e.db.CommitBlock(block, changeSet)
}
