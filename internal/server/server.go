// Package server implements the supervisor: it wires the mempool,
// executor, and handler together, accepts connections, and broadcasts
// shutdown.
package server

import (
	"fmt"
	"net"
	"time"

	"github.com/chainbit-io/chainbit/internal/chainspec"
	"github.com/chainbit-io/chainbit/internal/core"
	"github.com/chainbit-io/chainbit/internal/executor"
	"github.com/chainbit-io/chainbit/internal/mempool"
	"github.com/chainbit-io/chainbit/internal/rpc"
	"github.com/chainbit-io/chainbit/internal/shutdown"
	"github.com/chainbit-io/chainbit/internal/store"
	"github.com/sirupsen/logrus"
)

// verifyPoolSize is the number of goroutines draining signature
// verification jobs off the shared pool.
const verifyPoolSize = 4

// Config collects the server subcommand's flags.
type Config struct {
	Port      uint16
	Coinbase  core.Address
	BlockTime time.Duration
	Spec      *chainspec.ChainSpec
	BlackList *BlackList // optional; nil means "never blacklist"
}

// Server owns the database, mempool, executor, and accept loop.
type Server struct {
	cfg      Config
	db       *store.InMemoryDB
	mp       *mempool.Mempool
	exec     *executor.Executor
	fabric   *shutdown.Fabric
	log      *logrus.Logger
	listener net.Listener
}

// New constructs a Server, applying the chainspec preallocations to a
// fresh in-memory database.
func New(cfg Config, log *logrus.Logger) *Server {
	db := store.New()
	if cfg.Spec != nil {
		db.WriteSpec(cfg.Spec)
	}

	fabric := shutdown.New()
	mp := mempool.New(256, log.WithField("component", "mempool"))
	exec := executor.New(db, mp, cfg.Coinbase, cfg.BlockTime, log.WithField("component", "executor"))

	return &Server{cfg: cfg, db: db, mp: mp, exec: exec, fabric: fabric, log: log}
}

// DB exposes the database for the reporter and for a clean-shutdown dump.
func (s *Server) DB() *store.InMemoryDB { return s.db }

// Addr returns the bound listener address, valid after Run. Useful when
// the configured port is 0 and the kernel picked one.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run binds the listener, starts the mempool, executor, verification
// pool and accept loop in their own goroutines, and returns without
// waiting for them. Shutdown stops them and waits until they drain.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("server: bind: %w", err)
	}
	s.listener = ln
	s.log.WithField("port", s.cfg.Port).Info("server: listening")

	go s.mp.Run(s.fabric.NewHandle())
	go s.exec.Run(s.fabric.NewHandle())

	verifyHandle := s.fabric.NewHandle()
	pool := rpc.NewVerifyPool(verifyPoolSize, verifyHandle)

	acceptHandle := s.fabric.NewHandle()
	go s.acceptLoop(acceptHandle, pool)

	return nil
}

// Shutdown begins the broadcast shutdown signal and waits for every task
// to drain.
func (s *Server) Shutdown() {
	s.fabric.Begin()
	if s.listener != nil {
		s.listener.Close()
	}
	s.fabric.Wait()
}

func (s *Server) acceptLoop(handle *shutdown.Handle, pool *rpc.VerifyPool) {
	defer handle.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if handle.ShouldStop() {
				return
			}
			// Accept errors are logged and do not terminate the loop.
			s.log.WithError(err).Warn("server: accept error")
			continue
		}

		if s.cfg.BlackList != nil && s.cfg.BlackList.Contains(conn.RemoteAddr()) {
			conn.Close()
			continue
		}

		handler := rpc.NewHandler(s.db, s.mp, pool, handle, s.log.WithField("component", "rpc"))
		go handler.Handle(rpc.NewConnection(conn))
	}
}
