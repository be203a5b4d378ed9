// Package mempool implements the single task that owns pending
// transactions. It is a channel-actor rather than a mutex-guarded
// object, so that shutdown draining is explicit: the owning goroutine
// exits the moment its shutdown handle fires, instead of racing a
// caller for a lock.
package mempool

import (
	"errors"

	"github.com/chainbit-io/chainbit/internal/core"
	"github.com/chainbit-io/chainbit/internal/shutdown"
	"github.com/sirupsen/logrus"
)

// ErrChannelFailure is returned when a push or drain request cannot be
// delivered because shutdown has begun and the mempool task is exiting
// or gone. Fatal outside shutdown, expected and ignored during shutdown.
var ErrChannelFailure = errors.New("mempool: channel closed")

// maxDrain is the per-block admission limit.
const maxDrain = 100

// Ordering selects how a drain batch is ordered before the secondary
// (from, nonce) sort is applied. Only FIFO exists today; the type is
// kept open for future orderings.
type Ordering int

const (
	// FIFO pops transactions in arrival order.
	FIFO Ordering = iota
)

// DrainRequest is the reply-handle the executor sends on the drain
// channel; Mempool responds on Reply exactly once.
type DrainRequest struct {
	Reply chan core.Transactions
}

// Mempool is the single-task actor. Construct with New, start with Run
// in its own goroutine, and interact only through Push/Drain.
type Mempool struct {
	ordering Ordering
	push     chan *core.Transaction
	drain    chan DrainRequest
	log      *logrus.Entry
}

// New returns a Mempool with FIFO ordering and the given channel
// buffer size for the push side. The drain side is unbuffered, not an
// unbounded queue: RequestDrain blocks until the mempool task accepts
// the request or shutdown begins.
func New(pushBuffer int, log *logrus.Entry) *Mempool {
	return &Mempool{
		ordering: FIFO,
		push:     make(chan *core.Transaction, pushBuffer),
		drain:    make(chan DrainRequest),
		log:      log,
	}
}

// Push enqueues tx for admission, blocking while the bounded push
// channel is full. Returns ErrChannelFailure if shutdown begins before
// the send completes: the mempool task may already be exiting, and a
// push that can never be drained is pointless to keep blocking on.
func (m *Mempool) Push(handle *shutdown.Handle, tx *core.Transaction) error {
	if handle.Context().Err() != nil {
		return ErrChannelFailure
	}
	select {
	case m.push <- tx:
		return nil
	case <-handle.Context().Done():
		return ErrChannelFailure
	}
}

// RequestDrain sends a drain reply-handle and returns the channel the
// caller should receive the batch on, or ErrChannelFailure if shutdown
// begins before the request is accepted. Callers should log and
// continue to the next tick on failure rather than treat it as fatal.
func (m *Mempool) RequestDrain(handle *shutdown.Handle) (chan core.Transactions, error) {
	reply := make(chan core.Transactions, 1)
	select {
	case m.drain <- DrainRequest{Reply: reply}:
		return reply, nil
	case <-handle.Context().Done():
		return nil, ErrChannelFailure
	}
}

// Run is the mempool's main loop: exactly one goroutine must call this.
// It consumes the push and drain channels until the shutdown handle
// fires, then returns without draining further pushes.
func (m *Mempool) Run(handle *shutdown.Handle) {
	defer handle.Done()

	var queue core.Transactions

	for {
		select {
		case <-handle.Context().Done():
			m.log.Debug("mempool: shutdown signal received, exiting")
			return
		case tx := <-m.push:
			queue = append(queue, tx)
		case req := <-m.drain:
			// Absorb pushes already buffered ahead of this request, so a
			// drain sees every push that completed before it was sent.
			for pending := true; pending; {
				select {
				case tx := <-m.push:
					queue = append(queue, tx)
				default:
					pending = false
				}
			}
			var batch core.Transactions
			switch m.ordering {
			case FIFO:
				n := len(queue)
				if n > maxDrain {
					n = maxDrain
				}
				batch = make(core.Transactions, n)
				copy(batch, queue[:n])
				queue = queue[n:]
			}
			batch.SortBySenderAndNonce()
			req.Reply <- batch
		}
	}
}
