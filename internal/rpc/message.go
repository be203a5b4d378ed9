// Package rpc implements the wire protocol: connection framing, the
// tagged message set, and the per-connection dispatcher.
package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/chainbit-io/chainbit/internal/core"
)

// Kind discriminates a Message's populated payload field. The wire
// format itself never carries this tag directly: it is reconstructed
// from the external tagging (one key per payload-carrying variant, a
// bare string for payload-free variants), but Kind is the simplest way
// to switch on a decoded Message in Go.
type Kind string

const (
	KindTransaction        Kind = "Transaction"
	KindBlock              Kind = "Block"
	KindBlocks             Kind = "Blocks"
	KindBlockReq           Kind = "BlockReq"
	KindTransactionReq     Kind = "TransactionReq"
	KindNonExistentBlock   Kind = "NonExistentBlock"
	KindNonExistentTx      Kind = "NonExistentTx"
	KindInvalidMessage     Kind = "InvalidMessage"
	KindInvalidTransaction Kind = "InvalidTransaction"
	KindInternalError      Kind = "InternalError"
	KindOk                 Kind = "Ok"
)

// BlockReqKind discriminates BlockReq's nested tagged variant.
type BlockReqKind string

const (
	BlockReqHash   BlockReqKind = "Hash"
	BlockReqNumber BlockReqKind = "Number"
	BlockReqRange  BlockReqKind = "Range"
)

// BlockReq is the nested tagged union `BlockReq(Hash h | Number n |
// Range{start,end})`.
type BlockReq struct {
	Kind       BlockReqKind
	Hash       core.Hash
	Number     uint64
	RangeStart uint64
	RangeEnd   uint64
}

// TransactionReqKind discriminates TransactionReq's nested variant.
type TransactionReqKind string

const (
	TransactionReqHash TransactionReqKind = "Hash"
	TransactionReqMany TransactionReqKind = "Many"
)

// TransactionReq is the nested tagged union `TransactionReq(Hash h |
// Many [h])`.
type TransactionReq struct {
	Kind TransactionReqKind
	Hash core.Hash
	Many []core.Hash
}

// Message is the externally tagged sum type carried over the wire.
// Payload-carrying variants encode as a JSON object with exactly one
// key naming the variant; payload-free variants (Ok, NonExistentBlock,
// NonExistentTx, InvalidTransaction) encode as the bare tag string.
// Unknown tags are a deserialization error.
type Message struct {
	Kind Kind

	Transaction        *core.Transaction
	Block              *core.SealedBlock
	Blocks             []*core.SealedBlock
	BlockReq           *BlockReq
	TransactionReq     *TransactionReq
	InvalidMessageText string
	InternalErrorText  string
}

// blockReqRange is the struct payload of the Range variant.
type blockReqRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

func (b *BlockReq) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BlockReqHash:
		return json.Marshal(map[string]core.Hash{"Hash": b.Hash})
	case BlockReqNumber:
		return json.Marshal(map[string]uint64{"Number": b.Number})
	case BlockReqRange:
		return json.Marshal(map[string]blockReqRange{
			"Range": {Start: b.RangeStart, End: b.RangeEnd},
		})
	default:
		return nil, fmt.Errorf("rpc: BlockReq has no recognized kind %q", b.Kind)
	}
}

func (b *BlockReq) UnmarshalJSON(data []byte) error {
	tag, raw, err := singleVariant(data)
	if err != nil {
		return fmt.Errorf("rpc: BlockReq: %w", err)
	}
	switch BlockReqKind(tag) {
	case BlockReqHash:
		b.Kind = BlockReqHash
		return json.Unmarshal(raw, &b.Hash)
	case BlockReqNumber:
		b.Kind = BlockReqNumber
		return json.Unmarshal(raw, &b.Number)
	case BlockReqRange:
		var r blockReqRange
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		b.Kind, b.RangeStart, b.RangeEnd = BlockReqRange, r.Start, r.End
		return nil
	default:
		return fmt.Errorf("rpc: BlockReq has unknown tag %q", tag)
	}
}

func (t *TransactionReq) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case TransactionReqHash:
		return json.Marshal(map[string]core.Hash{"Hash": t.Hash})
	case TransactionReqMany:
		many := t.Many
		if many == nil {
			many = []core.Hash{}
		}
		return json.Marshal(map[string][]core.Hash{"Many": many})
	default:
		return nil, fmt.Errorf("rpc: TransactionReq has no recognized kind %q", t.Kind)
	}
}

func (t *TransactionReq) UnmarshalJSON(data []byte) error {
	tag, raw, err := singleVariant(data)
	if err != nil {
		return fmt.Errorf("rpc: TransactionReq: %w", err)
	}
	switch TransactionReqKind(tag) {
	case TransactionReqHash:
		t.Kind = TransactionReqHash
		return json.Unmarshal(raw, &t.Hash)
	case TransactionReqMany:
		t.Kind = TransactionReqMany
		return json.Unmarshal(raw, &t.Many)
	default:
		return fmt.Errorf("rpc: TransactionReq has unknown tag %q", tag)
	}
}

// isUnit reports whether k is a payload-free variant, which the wire
// format encodes as a bare tag string rather than a single-key object.
func isUnit(k Kind) bool {
	switch k {
	case KindOk, KindNonExistentBlock, KindNonExistentTx, KindInvalidTransaction:
		return true
	}
	return false
}

func (m Message) MarshalJSON() ([]byte, error) {
	if isUnit(m.Kind) {
		return json.Marshal(string(m.Kind))
	}
	var payload any
	switch m.Kind {
	case KindTransaction:
		payload = m.Transaction
	case KindBlock:
		payload = m.Block
	case KindBlocks:
		blocks := m.Blocks
		if blocks == nil {
			blocks = []*core.SealedBlock{}
		}
		payload = blocks
	case KindBlockReq:
		payload = m.BlockReq
	case KindTransactionReq:
		payload = m.TransactionReq
	case KindInvalidMessage:
		payload = m.InvalidMessageText
	case KindInternalError:
		payload = m.InternalErrorText
	default:
		return nil, fmt.Errorf("rpc: message has no recognized kind %q", m.Kind)
	}
	return json.Marshal(map[string]any{string(m.Kind): payload})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var tag string
		if err := json.Unmarshal(trimmed, &tag); err != nil {
			return err
		}
		if !isUnit(Kind(tag)) {
			return fmt.Errorf("rpc: message has unknown tag %q", tag)
		}
		m.Kind = Kind(tag)
		return nil
	}

	tag, raw, err := singleVariant(trimmed)
	if err != nil {
		return fmt.Errorf("rpc: message: %w", err)
	}
	switch Kind(tag) {
	case KindTransaction:
		m.Kind = KindTransaction
		m.Transaction = new(core.Transaction)
		return json.Unmarshal(raw, m.Transaction)
	case KindBlock:
		m.Kind = KindBlock
		m.Block = new(core.SealedBlock)
		return json.Unmarshal(raw, m.Block)
	case KindBlocks:
		m.Kind = KindBlocks
		m.Blocks = []*core.SealedBlock{}
		return json.Unmarshal(raw, &m.Blocks)
	case KindBlockReq:
		m.Kind = KindBlockReq
		m.BlockReq = new(BlockReq)
		return json.Unmarshal(raw, m.BlockReq)
	case KindTransactionReq:
		m.Kind = KindTransactionReq
		m.TransactionReq = new(TransactionReq)
		return json.Unmarshal(raw, m.TransactionReq)
	case KindInvalidMessage:
		m.Kind = KindInvalidMessage
		return json.Unmarshal(raw, &m.InvalidMessageText)
	case KindInternalError:
		m.Kind = KindInternalError
		return json.Unmarshal(raw, &m.InternalErrorText)
	default:
		return fmt.Errorf("rpc: message has unknown tag %q", tag)
	}
}

// singleVariant decodes an externally tagged object, requiring exactly
// one key, and returns the tag with its raw payload.
func singleVariant(data []byte) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, err
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("expected exactly one variant key, got %d", len(obj))
	}
	for tag, raw := range obj {
		return tag, raw, nil
	}
	return "", nil, fmt.Errorf("expected exactly one variant key")
}

// Convenience constructors for the response variants a handler sends.

func Ok() Message                          { return Message{Kind: KindOk} }
func BlockMsg(b *core.SealedBlock) Message { return Message{Kind: KindBlock, Block: b} }
func BlocksMsg(bs []*core.SealedBlock) Message {
	return Message{Kind: KindBlocks, Blocks: bs}
}
func TransactionMsg(tx *core.Transaction) Message {
	return Message{Kind: KindTransaction, Transaction: tx}
}
func NonExistentBlock() Message   { return Message{Kind: KindNonExistentBlock} }
func NonExistentTx() Message      { return Message{Kind: KindNonExistentTx} }
func InvalidTransaction() Message { return Message{Kind: KindInvalidTransaction} }
func InvalidMessage(text string) Message {
	return Message{Kind: KindInvalidMessage, InvalidMessageText: text}
}
func InternalError(text string) Message {
	return Message{Kind: KindInternalError, InternalErrorText: text}
}
