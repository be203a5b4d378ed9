package server

import (
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/chainbit-io/chainbit/internal/chainspec"
	"github.com/chainbit-io/chainbit/internal/core"
	"github.com/chainbit-io/chainbit/internal/crypto"
	"github.com/chainbit-io/chainbit/internal/rpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, blockTime time.Duration) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	spec, err := chainspec.Default()
	require.NoError(t, err)

	srv := New(Config{
		Port:      0, // kernel-assigned
		Coinbase:  core.ZeroAddress,
		BlockTime: blockTime,
		Spec:      spec,
		BlackList: NewBlackList(),
	}, log)
	require.NoError(t, srv.Run())
	t.Cleanup(srv.Shutdown)
	return srv
}

func request(t *testing.T, addr net.Addr, msg rpc.Message) rpc.Message {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	c := rpc.NewConnection(conn)
	defer c.Close()

	require.NoError(t, c.WriteMessage(msg))
	resp, err := c.ReadMessage()
	require.NoError(t, err)
	require.NotNil(t, resp)
	return *resp
}

func TestServerAppliesTransferEndToEnd(t *testing.T) {
	srv := startTestServer(t, 50*time.Millisecond)

	key, err := crypto.SigningKeyFromScalar(big.NewInt(1))
	require.NoError(t, err)
	from := core.Address(crypto.AddressOf(key.PubKey()))
	toKey, err := crypto.SigningKeyFromScalar(big.NewInt(2))
	require.NoError(t, err)
	to := core.Address(crypto.AddressOf(toKey.PubKey()))

	tx := core.Sign(from, to, 0, big.NewInt(100), key)
	resp := request(t, srv.Addr(), rpc.TransactionMsg(tx))
	require.Equal(t, rpc.KindOk, resp.Kind)

	// Poll until some sealed block contains the transfer; depending on
	// tick timing it may not be block 1.
	var block *core.SealedBlock
	deadline := time.After(5 * time.Second)
	for block == nil {
		for n := uint64(1); ; n++ {
			resp = request(t, srv.Addr(), rpc.Message{
				Kind:     rpc.KindBlockReq,
				BlockReq: &rpc.BlockReq{Kind: rpc.BlockReqNumber, Number: n},
			})
			if resp.Kind != rpc.KindBlock {
				break
			}
			for _, included := range resp.Block.Transactions {
				if included.Hash == tx.Hash {
					block = resp.Block
				}
			}
			if block != nil {
				break
			}
		}
		if block == nil {
			select {
			case <-deadline:
				t.Fatal("timed out waiting for a block to include the transfer")
			case <-time.After(20 * time.Millisecond):
			}
		}
	}

	require.NoError(t, block.Verify())
	require.Equal(t, block.Transactions.Root(), block.Header.TxRoot)

	fromAcct, ok := srv.DB().ReadAccount(from)
	require.True(t, ok)
	require.Equal(t, big.NewInt(99_999_900), fromAcct.Balance)
	require.Equal(t, uint64(1), fromAcct.Nonce)

	toAcct, ok := srv.DB().ReadAccount(to)
	require.True(t, ok)
	require.Equal(t, big.NewInt(100_000_100), toAcct.Balance)

	// The transaction is queryable by hash once included.
	resp = request(t, srv.Addr(), rpc.Message{
		Kind:           rpc.KindTransactionReq,
		TransactionReq: &rpc.TransactionReq{Kind: rpc.TransactionReqHash, Hash: tx.Hash},
	})
	require.Equal(t, rpc.KindTransaction, resp.Kind)
}

func TestServerRejectsTamperedSignature(t *testing.T) {
	srv := startTestServer(t, time.Hour)

	key, err := crypto.SigningKeyFromScalar(big.NewInt(1))
	require.NoError(t, err)
	from := core.Address(crypto.AddressOf(key.PubKey()))

	tx := core.Sign(from, core.Address{2}, 0, big.NewInt(100), key)
	tx.R = core.NewU256(big.NewInt(0))

	resp := request(t, srv.Addr(), rpc.TransactionMsg(tx))
	require.Equal(t, rpc.KindInvalidTransaction, resp.Kind)
}

func TestServerReportsMissingBlock(t *testing.T) {
	srv := startTestServer(t, time.Hour)

	resp := request(t, srv.Addr(), rpc.Message{
		Kind:     rpc.KindBlockReq,
		BlockReq: &rpc.BlockReq{Kind: rpc.BlockReqNumber, Number: 1},
	})
	require.Equal(t, rpc.KindNonExistentBlock, resp.Kind)
}

func TestServerShutdownDrainsWithOpenConnections(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := New(Config{Port: 0, BlockTime: 50 * time.Millisecond}, log)
	require.NoError(t, srv.Run())

	// Idle peers holding sockets must not block the drain.
	for i := 0; i < 8; i++ {
		conn, err := net.Dial("tcp", srv.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
	}

	done := make(chan struct{})
	go func() {
		srv.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not drain")
	}
}

func TestBlackListMatchesAddedAddresses(t *testing.T) {
	bl := NewBlackList()
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}
	other := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9998}

	require.False(t, bl.Contains(addr))
	bl.Add(addr)
	require.True(t, bl.Contains(addr))
	require.False(t, bl.Contains(other))
}
