package rpc

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/chainbit-io/chainbit/internal/core"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(data, &got))
	return got
}

func TestMessageRoundTripOk(t *testing.T) {
	got := roundTrip(t, Ok())
	require.Equal(t, KindOk, got.Kind)
}

func TestMessageRoundTripTransaction(t *testing.T) {
	tx := &core.Transaction{
		Value: big.NewInt(100),
		R:     core.NewU256(big.NewInt(0)),
		S:     core.NewU256(big.NewInt(0)),
	}
	got := roundTrip(t, TransactionMsg(tx))
	require.Equal(t, KindTransaction, got.Kind)
	require.Equal(t, tx.Nonce, got.Transaction.Nonce)
	require.Equal(t, tx.Value.String(), got.Transaction.Value.String())
}

func TestMessageRoundTripZeroAndMaxValues(t *testing.T) {
	maxU64 := uint64(1<<64 - 1)
	tx := &core.Transaction{
		From:  core.ZeroAddress,
		To:    core.ZeroAddress,
		Nonce: maxU64,
		Value: new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)),
		R:     core.NewU256(big.NewInt(0)),
		S:     core.NewU256(big.NewInt(0)),
	}
	got := roundTrip(t, TransactionMsg(tx))
	require.Equal(t, maxU64, got.Transaction.Nonce)
	require.Equal(t, core.ZeroAddress, got.Transaction.From)
	require.Zero(t, tx.Value.Cmp(got.Transaction.Value))
}

func TestTransactionValueEncodesAsNumber(t *testing.T) {
	tx := &core.Transaction{
		Value: big.NewInt(100),
		R:     core.NewU256(big.NewInt(0)),
		S:     core.NewU256(big.NewInt(0)),
	}
	data, err := json.Marshal(TransactionMsg(tx))
	require.NoError(t, err)
	require.Contains(t, string(data), `"value":100`)
}

func TestMessageRoundTripInvalidMessage(t *testing.T) {
	got := roundTrip(t, InvalidMessage("server does not expect blocks"))
	require.Equal(t, KindInvalidMessage, got.Kind)
	require.Equal(t, "server does not expect blocks", got.InvalidMessageText)
}

func TestMessageRoundTripInvalidMessageEmptyText(t *testing.T) {
	got := roundTrip(t, InvalidMessage(""))
	require.Equal(t, KindInvalidMessage, got.Kind)
	require.Equal(t, "", got.InvalidMessageText)
}

func TestMessageRoundTripInternalError(t *testing.T) {
	got := roundTrip(t, InternalError("boom"))
	require.Equal(t, KindInternalError, got.Kind)
	require.Equal(t, "boom", got.InternalErrorText)
}

func TestMessageRoundTripBlockReqHash(t *testing.T) {
	req := Message{Kind: KindBlockReq, BlockReq: &BlockReq{Kind: BlockReqHash, Hash: core.Hash{1, 2, 3}}}
	got := roundTrip(t, req)
	require.Equal(t, BlockReqHash, got.BlockReq.Kind)
	require.Equal(t, core.Hash{1, 2, 3}, got.BlockReq.Hash)
}

func TestMessageRoundTripBlockReqNumber(t *testing.T) {
	req := Message{Kind: KindBlockReq, BlockReq: &BlockReq{Kind: BlockReqNumber, Number: 42}}
	got := roundTrip(t, req)
	require.Equal(t, BlockReqNumber, got.BlockReq.Kind)
	require.Equal(t, uint64(42), got.BlockReq.Number)
}

func TestMessageRoundTripBlockReqRange(t *testing.T) {
	req := Message{Kind: KindBlockReq, BlockReq: &BlockReq{Kind: BlockReqRange, RangeStart: 1, RangeEnd: 10}}
	got := roundTrip(t, req)
	require.Equal(t, BlockReqRange, got.BlockReq.Kind)
	require.Equal(t, uint64(1), got.BlockReq.RangeStart)
	require.Equal(t, uint64(10), got.BlockReq.RangeEnd)
}

func TestMessageRoundTripTransactionReqMany(t *testing.T) {
	req := Message{Kind: KindTransactionReq, TransactionReq: &TransactionReq{
		Kind: TransactionReqMany,
		Many: []core.Hash{{1}, {2}},
	}}
	got := roundTrip(t, req)
	require.Equal(t, TransactionReqMany, got.TransactionReq.Kind)
	require.Len(t, got.TransactionReq.Many, 2)
}

func TestMessageUnmarshalRejectsUnknownTag(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"SomeUnknownVariant": {}}`), &msg)
	require.Error(t, err)
}

func TestMessageUnitVariantsEncodeAsBareStrings(t *testing.T) {
	for msg, want := range map[*Message]string{
		{Kind: KindOk}:                 `"Ok"`,
		{Kind: KindNonExistentBlock}:   `"NonExistentBlock"`,
		{Kind: KindNonExistentTx}:      `"NonExistentTx"`,
		{Kind: KindInvalidTransaction}: `"InvalidTransaction"`,
	} {
		data, err := json.Marshal(*msg)
		require.NoError(t, err)
		require.Equal(t, want, string(data))

		var got Message
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, msg.Kind, got.Kind)
	}
}

func TestMessageUnmarshalRejectsUnknownBareTag(t *testing.T) {
	var msg Message
	require.Error(t, json.Unmarshal([]byte(`"Nonsense"`), &msg))
	// Payload-carrying variants never appear as bare strings.
	require.Error(t, json.Unmarshal([]byte(`"InvalidMessage"`), &msg))
}

func TestMessageUnmarshalRejectsMultipleVariantKeys(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"InvalidMessage": "a", "InternalError": "b"}`), &msg)
	require.Error(t, err)
}

func TestMessageInvalidMessageWireShape(t *testing.T) {
	data, err := json.Marshal(InvalidMessage(""))
	require.NoError(t, err)
	require.Equal(t, `{"InvalidMessage":""}`, string(data))
}

func TestMessageRoundTripEmptyBlocks(t *testing.T) {
	data, err := json.Marshal(BlocksMsg(nil))
	require.NoError(t, err)
	require.Equal(t, `{"Blocks":[]}`, string(data))

	var got Message
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, KindBlocks, got.Kind)
	require.Empty(t, got.Blocks)
}

func TestMessageRoundTripTransactionReqManyEmpty(t *testing.T) {
	req := Message{Kind: KindTransactionReq, TransactionReq: &TransactionReq{Kind: TransactionReqMany}}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	require.Equal(t, `{"TransactionReq":{"Many":[]}}`, string(data))

	got := roundTrip(t, req)
	require.Equal(t, TransactionReqMany, got.TransactionReq.Kind)
	require.Empty(t, got.TransactionReq.Many)
}
