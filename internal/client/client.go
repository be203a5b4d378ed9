// Package client implements the demo client loop, an external
// collaborator exercising the server: three concurrent deterministic
// signers, each sending one transfer per second over a fresh connection.
package client

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/chainbit-io/chainbit/internal/core"
	"github.com/chainbit-io/chainbit/internal/crypto"
	"github.com/chainbit-io/chainbit/internal/rpc"
	"github.com/sirupsen/logrus"
)

// transferValue is the fixed demo transfer amount.
const transferValue = 100

// Run starts three signer loops against addr and blocks until ctx is
// canceled (e.g. by Ctrl-C).
func Run(ctx context.Context, addr string, log *logrus.Logger) error {
	keys := make([]*crypto.PrivateKey, 3)
	addrs := make([]core.Address, 3)
	for i := range keys {
		key, err := crypto.SigningKeyFromScalar(big.NewInt(int64(i + 1)))
		if err != nil {
			return fmt.Errorf("client: derive signer %d: %w", i+1, err)
		}
		keys[i] = key
		addrs[i] = core.Address(crypto.AddressOf(key.PubKey()))
	}

	done := make(chan struct{}, len(keys))
	for i := range keys {
		go signerLoop(ctx, addr, keys[i], addrs[i], addrs[(i+1)%len(addrs)], log.WithField("signer", i+1), done)
	}
	for range keys {
		<-done
	}
	return nil
}

func signerLoop(ctx context.Context, addr string, key *crypto.PrivateKey, from, to core.Address, log *logrus.Entry, done chan struct{}) {
	defer func() { done <- struct{}{} }()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var nonce uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tx := core.Sign(from, to, nonce, big.NewInt(transferValue), key)
			resp, err := send(addr, rpc.TransactionMsg(tx))
			if err != nil {
				log.WithError(err).Warn("client: send failed")
				continue
			}
			log.WithField("response", resp.Kind).Info("client: sent transaction")
			nonce++
		}
	}
}

func send(addr string, msg rpc.Message) (*rpc.Message, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	c := rpc.NewConnection(conn)
	defer c.Close()

	if err := c.WriteMessage(msg); err != nil {
		return nil, err
	}
	resp, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("client: server closed connection without responding")
	}
	return resp, nil
}
