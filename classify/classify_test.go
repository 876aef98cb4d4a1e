package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traitmeta/evmindexer/chainmodel"
)

func addr(b byte) chainmodel.Address {
	var a chainmodel.Address
	a[19] = b
	return a
}

func topicFromAddr(a chainmodel.Address) chainmodel.Hash {
	var h chainmodel.Hash
	copy(h[12:], a[:])
	return h
}

func TestClassifyERC20Transfer(t *testing.T) {
	from := addr(1)
	to := addr(2)
	contract := addr(3)
	txHash := chainmodel.Hash{9}

	fromTopic := topicFromAddr(from)
	toTopic := topicFromAddr(to)
	l := chainmodel.Log{
		Address:     &contract,
		FirstTopic:  hashPtr(chainmodel.HexToHash(erc20TransferTopic)),
		SecondTopic: &fromTopic,
		ThirdTopic:  &toTopic,
		Data:        append(make([]byte, 31), 100),
		Index:       0,
	}

	transfer, tokenType, ok := Classify(l, chainmodel.Hash{1}, 10, txHash)
	assert.True(t, ok)
	assert.Equal(t, chainmodel.TokenTypeERC20, tokenType)
	assert.Equal(t, from, transfer.From)
	assert.Equal(t, to, transfer.To)
	assert.Equal(t, contract, transfer.TokenContractAddressHash)
	assert.Equal(t, "100", transfer.Amount.String())
	assert.Nil(t, transfer.TokenID)
}

func TestClassifyERC721Transfer(t *testing.T) {
	from := addr(1)
	to := addr(2)
	contract := addr(3)
	fromTopic := topicFromAddr(from)
	toTopic := topicFromAddr(to)
	tokenIDTopic := chainmodel.Hash{}
	tokenIDTopic[31] = 42

	l := chainmodel.Log{
		Address:     &contract,
		FirstTopic:  hashPtr(chainmodel.HexToHash(erc20TransferTopic)),
		SecondTopic: &fromTopic,
		ThirdTopic:  &toTopic,
		FourthTopic: &tokenIDTopic,
	}

	transfer, tokenType, ok := Classify(l, chainmodel.Hash{1}, 10, chainmodel.Hash{9})
	assert.True(t, ok)
	assert.Equal(t, chainmodel.TokenTypeERC721, tokenType)
	assert.NotNil(t, transfer.TokenID)
	assert.Equal(t, "42", transfer.TokenID.String())
}

func TestClassifyUnrecognizedTopicIsNotOK(t *testing.T) {
	contract := addr(3)
	other := chainmodel.Hash{7}
	l := chainmodel.Log{Address: &contract, FirstTopic: &other}
	_, _, ok := Classify(l, chainmodel.Hash{1}, 10, chainmodel.Hash{9})
	assert.False(t, ok)
}

func TestClassifyMissingAddressIsNotOK(t *testing.T) {
	topic := chainmodel.HexToHash(erc20TransferTopic)
	l := chainmodel.Log{FirstTopic: &topic}
	_, _, ok := Classify(l, chainmodel.Hash{1}, 10, chainmodel.Hash{9})
	assert.False(t, ok)
}

func TestClassifyLegacyERC20FromIndexedOnly(t *testing.T) {
	from := addr(1)
	to := addr(2)
	contract := addr(3)
	fromTopic := topicFromAddr(from)

	data := make([]byte, 64)
	copy(data[12:32], to[:])
	data[63] = 7

	l := chainmodel.Log{
		Address:     &contract,
		FirstTopic:  hashPtr(chainmodel.HexToHash(erc20TransferTopic)),
		SecondTopic: &fromTopic,
		Data:        data,
	}

	transfer, tokenType, ok := Classify(l, chainmodel.Hash{1}, 10, chainmodel.Hash{9})
	assert.True(t, ok)
	assert.Equal(t, chainmodel.TokenTypeERC20, tokenType)
	assert.Equal(t, from, transfer.From)
	assert.Equal(t, to, transfer.To)
	assert.Equal(t, "7", transfer.Amount.String())
}

func TestClassifyERC721FromDataOnly(t *testing.T) {
	from := addr(1)
	to := addr(2)
	contract := addr(3)

	data := make([]byte, 96)
	copy(data[12:32], from[:])
	copy(data[44:64], to[:])
	data[95] = 9

	l := chainmodel.Log{
		Address:    &contract,
		FirstTopic: hashPtr(chainmodel.HexToHash(erc20TransferTopic)),
		Data:       data,
	}

	transfer, tokenType, ok := Classify(l, chainmodel.Hash{1}, 10, chainmodel.Hash{9})
	assert.True(t, ok)
	assert.Equal(t, chainmodel.TokenTypeERC721, tokenType)
	assert.Equal(t, from, transfer.From)
	assert.Equal(t, to, transfer.To)
	assert.Equal(t, "9", transfer.TokenID.String())
}

func TestClassifyWETHDeposit(t *testing.T) {
	dst := addr(2)
	contract := addr(3)
	dstTopic := topicFromAddr(dst)

	data := make([]byte, 32)
	data[31] = 9

	l := chainmodel.Log{
		Address:     &contract,
		FirstTopic:  hashPtr(chainmodel.HexToHash(wethDepositTopic)),
		SecondTopic: &dstTopic,
		Data:        data,
	}

	transfer, tokenType, ok := Classify(l, chainmodel.Hash{1}, 10, chainmodel.Hash{9})
	assert.True(t, ok)
	assert.Equal(t, chainmodel.TokenTypeERC20, tokenType)
	assert.Equal(t, chainmodel.ZeroAddress, transfer.From)
	assert.Equal(t, dst, transfer.To)
	assert.Equal(t, "9", transfer.Amount.String())
}

func TestClassifyWETHWithdrawal(t *testing.T) {
	src := addr(1)
	contract := addr(3)
	srcTopic := topicFromAddr(src)

	data := make([]byte, 32)
	data[31] = 4

	l := chainmodel.Log{
		Address:     &contract,
		FirstTopic:  hashPtr(chainmodel.HexToHash(wethWithdrawalTopic)),
		SecondTopic: &srcTopic,
		Data:        data,
	}

	transfer, tokenType, ok := Classify(l, chainmodel.Hash{1}, 10, chainmodel.Hash{9})
	assert.True(t, ok)
	assert.Equal(t, chainmodel.TokenTypeERC20, tokenType)
	assert.Equal(t, src, transfer.From)
	assert.Equal(t, chainmodel.ZeroAddress, transfer.To)
	assert.Equal(t, "4", transfer.Amount.String())
}

func hashPtr(h chainmodel.Hash) *chainmodel.Hash { return &h }
