package decode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/errtype"
)

const sampleBlock = `{
	"hash": "0x0102",
	"number": "0x64",
	"parentHash": "0x01",
	"miner": "0xab",
	"nonce": "0x0",
	"gasLimit": "0x1c9c380",
	"gasUsed": "0x5208",
	"timestamp": "0x5f5e100",
	"transactions": [{
		"hash": "0xdeadbeef",
		"blockHash": "0x0102",
		"blockNumber": "0x64",
		"transactionIndex": "0x0",
		"from": "0xaa",
		"to": "0xbb",
		"value": "0xde0b6b3a7640000",
		"gas": "0x5208",
		"gasPrice": "0x3b9aca00",
		"nonce": "0x1",
		"input": "0x",
		"r": "0x01",
		"s": "0x02",
		"v": "0x1b"
	}]
}`

func TestDecodeBlock(t *testing.T) {
	block, txs, withdrawals, err := Block(json.RawMessage(sampleBlock))
	require.NoError(t, err)

	assert.Equal(t, int64(100), block.Number)
	assert.False(t, block.IsEmpty)
	assert.Equal(t, chainmodel.HexToHash("0x0102"), block.Hash)
	assert.Equal(t, "21000", block.GasUsed.String())
	assert.Empty(t, withdrawals)

	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, chainmodel.HexToHash("0xdeadbeef"), tx.Hash)
	assert.Equal(t, "1000000000000000000", tx.Value.String())
	assert.NotNil(t, tx.To)
	assert.Equal(t, int32(1), tx.Nonce)
}

func TestDecodeBlockEmptyIsTrueWithNoTransactions(t *testing.T) {
	block, txs, _, err := Block(json.RawMessage(`{"hash":"0x01","number":"0x1","parentHash":"0x00","miner":"0x00","gasLimit":"0x0","gasUsed":"0x0","timestamp":"0x0"}`))
	require.NoError(t, err)
	assert.True(t, block.IsEmpty)
	assert.Empty(t, txs)
}

func TestDecodeBlockMalformedNumberIsDecodeError(t *testing.T) {
	_, _, _, err := Block(json.RawMessage(`{"number": "not-hex"}`))
	require.Error(t, err)
	assert.Equal(t, errtype.KindDecode, errtype.Classify(err))
}

const sampleReceipt = `{
	"transactionHash": "0xdeadbeef",
	"blockHash": "0x0102",
	"blockNumber": "0x64",
	"gasUsed": "0x5208",
	"cumulativeGasUsed": "0x5208",
	"status": "0x1",
	"logs": [{
		"address": "0xcc",
		"data": "0x0000000000000000000000000000000000000000000000000000000000000064",
		"topics": ["0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3e", "0x000000000000000000000000000000000000000000000000000000000000aa", "0x000000000000000000000000000000000000000000000000000000000000bb"],
		"transactionHash": "0xdeadbeef",
		"logIndex": "0x0",
		"blockHash": "0x0102",
		"blockNumber": "0x64"
	}]
}`

func TestDecodeReceipt(t *testing.T) {
	gasUsed, cumGasUsed, status, created, logs, err := Receipt(json.RawMessage(sampleReceipt))
	require.NoError(t, err)

	assert.Equal(t, "21000", gasUsed.String())
	assert.Equal(t, "21000", cumGasUsed.String())
	assert.Equal(t, int32(1), status)
	assert.Nil(t, created)

	require.Len(t, logs, 1)
	assert.NotNil(t, logs[0].FirstTopic)
	assert.NotNil(t, logs[0].SecondTopic)
	assert.NotNil(t, logs[0].ThirdTopic)
	assert.Nil(t, logs[0].FourthTopic)
}
