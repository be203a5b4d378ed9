package rpc

import (
	"fmt"
	"sync"

	"github.com/chainbit-io/chainbit/internal/core"
	"github.com/chainbit-io/chainbit/internal/mempool"
	"github.com/chainbit-io/chainbit/internal/shutdown"
	"github.com/chainbit-io/chainbit/internal/store"
	"github.com/sirupsen/logrus"
)

// VerifyPool is the worker pool signature verification runs on, so a
// CPU-bound secp256k1 recovery never monopolizes the goroutine
// scheduling alongside many other connections. Started by the server
// supervisor (internal/server) and shared by every Handler.
type VerifyPool struct {
	jobs   chan func()
	handle *shutdown.Handle
}

// NewVerifyPool starts n workers draining a shared job channel. The
// handle is released once every worker has exited after shutdown.
func NewVerifyPool(n int, handle *shutdown.Handle) *VerifyPool {
	p := &VerifyPool{jobs: make(chan func(), 64), handle: handle}
	var workers sync.WaitGroup
	workers.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer workers.Done()
			for {
				select {
				case <-handle.Context().Done():
					return
				case job := <-p.jobs:
					job()
				}
			}
		}()
	}
	go func() {
		workers.Wait()
		handle.Done()
	}()
	return p
}

// Submit runs fn on the pool and blocks until it has completed.
// Returns false without waiting if shutdown begins first.
func (p *VerifyPool) Submit(fn func()) bool {
	done := make(chan struct{})
	select {
	case p.jobs <- func() { fn(); close(done) }:
	case <-p.handle.Context().Done():
		return false
	}
	select {
	case <-done:
		return true
	case <-p.handle.Context().Done():
		return false
	}
}

// Handler dispatches the single request a Connection carries. One
// Handler is constructed per accepted connection.
type Handler struct {
	db       store.Reader
	mp       *mempool.Mempool
	pool     *VerifyPool
	shutdown *shutdown.Handle
	log      *logrus.Entry
}

// NewHandler builds a Handler sharing the database, mempool push side,
// and verification pool with every other connection.
func NewHandler(db store.Reader, mp *mempool.Mempool, pool *VerifyPool, handle *shutdown.Handle, log *logrus.Entry) *Handler {
	return &Handler{db: db, mp: mp, pool: pool, shutdown: handle, log: log}
}

// Handle reads exactly one message from conn, dispatches it, writes
// exactly one response, then closes the connection.
func (h *Handler) Handle(conn *Connection) {
	defer conn.Close()

	msg, err := conn.ReadMessage()
	if err != nil {
		h.log.WithError(err).Debug("rpc: connection error reading request")
		return
	}
	if msg == nil {
		return // peer closed cleanly before sending anything
	}

	resp := h.dispatch(*msg)
	if err := conn.WriteMessage(resp); err != nil {
		h.log.WithError(err).Debug("rpc: connection error writing response")
	}
}

func (h *Handler) dispatch(msg Message) Message {
	switch msg.Kind {
	case KindTransaction:
		return h.handleTransaction(msg.Transaction)
	case KindBlockReq:
		return h.handleBlockReq(msg.BlockReq)
	case KindTransactionReq:
		return h.handleTransactionReq(msg.TransactionReq)
	case KindBlock, KindBlocks:
		return InvalidMessage("server does not expect blocks")
	default:
		return InvalidMessage("")
	}
}

func (h *Handler) handleTransaction(tx *core.Transaction) Message {
	var verifyErr error
	if !h.pool.Submit(func() { verifyErr = tx.Verify() }) {
		return InternalError("server is shutting down")
	}
	if verifyErr != nil {
		return InvalidTransaction()
	}
	if err := h.mp.Push(h.shutdown, tx); err != nil {
		return InternalError(fmt.Sprintf("mempool unavailable: %v", err))
	}
	return Ok()
}

func (h *Handler) handleBlockReq(req *BlockReq) Message {
	switch req.Kind {
	case BlockReqHash:
		block, ok := h.db.ReadBlockByHash(req.Hash)
		if !ok {
			return NonExistentBlock()
		}
		return BlockMsg(block)
	case BlockReqNumber:
		block, ok := h.db.ReadBlockByNumber(req.Number)
		if !ok {
			return NonExistentBlock()
		}
		return BlockMsg(block)
	case BlockReqRange:
		// Reserved for a future range query; reject cleanly rather than
		// aborting the handler.
		return InvalidMessage("unimplemented")
	default:
		return InvalidMessage("")
	}
}

func (h *Handler) handleTransactionReq(req *TransactionReq) Message {
	switch req.Kind {
	case TransactionReqHash:
		tx, ok := h.db.ReadTransaction(req.Hash)
		if !ok {
			return NonExistentTx()
		}
		return TransactionMsg(tx)
	case TransactionReqMany:
		// Reserved, same correction as BlockReq::Range above.
		return InvalidMessage("unimplemented")
	default:
		return InvalidMessage("")
	}
}
