// Package chainspec loads the genesis account allocations applied once
// at node startup. It is an external collaborator, not part of the core
// block-production pipeline.
package chainspec

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/chainbit-io/chainbit/internal/core"
	"github.com/chainbit-io/chainbit/internal/crypto"
)

// ChainSpec is the startup document enumerating the chain identifier and
// genesis account allocations.
type ChainSpec struct {
	ChainID  uint64                         `json:"chain_id"`
	Accounts map[core.Address]*core.Account `json:"accounts"`
}

// accountSpec mirrors the JSON shape of one chainspec account entry;
// ChainSpec.Accounts uses *core.Account directly but balance/nonce in
// the wire file are plain JSON, so this type only exists to give
// UnmarshalJSON/MarshalJSON a stable field order independent of
// core.Account's own tags.
type accountSpec struct {
	Balance *big.Int `json:"balance"`
	Nonce   uint64   `json:"nonce"`
}

// MarshalJSON renders accounts keyed by their 0x-address string. The
// account values are re-shaped into accountSpec so the wire format's
// field order is independent of core.Account's own JSON tags.
func (c *ChainSpec) MarshalJSON() ([]byte, error) {
	type wire struct {
		ChainID  uint64                 `json:"chain_id"`
		Accounts map[string]accountSpec `json:"accounts"`
	}
	w := wire{ChainID: c.ChainID, Accounts: make(map[string]accountSpec, len(c.Accounts))}
	for addr, acct := range c.Accounts {
		w.Accounts[addr.String()] = accountSpec{Balance: acct.Balance, Nonce: acct.Nonce}
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the `{ "chain_id": ..., "accounts": { "0x...":
// {...} } }` format.
func (c *ChainSpec) UnmarshalJSON(data []byte) error {
	type wire struct {
		ChainID  uint64                 `json:"chain_id"`
		Accounts map[string]accountSpec `json:"accounts"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.ChainID = w.ChainID
	c.Accounts = make(map[core.Address]*core.Account, len(w.Accounts))
	for addrStr, as := range w.Accounts {
		var addr core.Address
		addrJSON, err := json.Marshal(addrStr)
		if err != nil {
			return err
		}
		if err := addr.UnmarshalJSON(addrJSON); err != nil {
			return fmt.Errorf("chainspec: account key %q: %w", addrStr, err)
		}
		balance := as.Balance
		if balance == nil {
			balance = new(big.Int)
		}
		c.Accounts[addr] = &core.Account{Balance: balance, Nonce: as.Nonce}
	}
	return nil
}

// Load reads and parses a chainspec JSON file from path.
func Load(path string) (*ChainSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chainspec: read %s: %w", path, err)
	}
	var spec ChainSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("chainspec: parse %s: %w", path, err)
	}
	return &spec, nil
}

// Default returns the built-in development chainspec: chain ID 1337,
// preallocating the three deterministic demo addresses (scalars 1, 2, 3;
// see internal/client) with a balance of 100,000,000 and nonce 0.
func Default() (*ChainSpec, error) {
	accounts := make(map[core.Address]*core.Account, 3)
	for scalar := int64(1); scalar <= 3; scalar++ {
		key, err := devKey(scalar)
		if err != nil {
			return nil, err
		}
		accounts[key] = &core.Account{Balance: big.NewInt(100_000_000), Nonce: 0}
	}
	return &ChainSpec{ChainID: 1337, Accounts: accounts}, nil
}

func devKey(scalar int64) (core.Address, error) {
	key, err := crypto.SigningKeyFromScalar(big.NewInt(scalar))
	if err != nil {
		return core.Address{}, fmt.Errorf("chainspec: deriving dev key %d: %w", scalar, err)
	}
	return core.Address(crypto.AddressOf(key.PubKey())), nil
}
