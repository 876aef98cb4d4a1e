package balancetask

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traitmeta/evmindexer/chainmodel"
)

func TestEncodeBalanceOfPadsAddressTo32Bytes(t *testing.T) {
	var addr chainmodel.Address
	addr[19] = 0xff
	data := encodeBalanceOf(addr)

	assert.Len(t, data, 36)
	assert.Equal(t, chainmodel.FromHex(selectorBalanceOf), data[:4])
	assert.Equal(t, byte(0xff), data[35])
	for _, b := range data[4:35] {
		assert.Equal(t, byte(0), b)
	}
}

func TestEncodeBalanceOfLengthAndDecodeUint(t *testing.T) {
	var addr chainmodel.Address
	data := encodeBalanceOf(addr)
	assert.Len(t, data, 36)

	raw := make([]byte, 32)
	raw[31] = 42
	assert.Equal(t, "42", decodeUint(raw).String())
}

func TestDecodeUintEmpty(t *testing.T) {
	assert.True(t, decodeUint(nil).IsZero())
}
