package core

// TransactionReceipt records the outcome of applying one transaction.
// Created with Success=false; set to true only if the transaction
// applied cleanly.
type TransactionReceipt struct {
	Success     bool    `json:"success"`
	BlockHash   Hash    `json:"block_hash"`
	BlockNumber uint64  `json:"block_number"`
	From        Address `json:"from"`
	To          Address `json:"to"`
}
