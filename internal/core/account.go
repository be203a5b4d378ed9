package core

import "math/big"

// Account is the per-address state tracked by the database: a balance
// and a nonce. Created on first credit or chainspec preallocation;
// mutated only through the executor's change set; never deleted.
type Account struct {
	Balance *big.Int `json:"balance"`
	Nonce   uint64   `json:"nonce"`
}

// NewAccount returns a zero-value account (balance 0, nonce 0), used to
// materialize a recipient seen for the first time.
func NewAccount() *Account {
	return &Account{Balance: new(big.Int)}
}

// Clone returns an independent copy so overlay writes never alias the
// database's own account value.
func (a *Account) Clone() *Account {
	return &Account{Balance: new(big.Int).Set(a.Balance), Nonce: a.Nonce}
}
