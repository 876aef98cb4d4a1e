package tokentask

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeABIStringDynamic(t *testing.T) {
	// offset word (0x20) + length word (4) + "Test" padded to 32 bytes
	raw, _ := hex.DecodeString(
		"0000000000000000000000000000000000000000000000000000000000000020" +
			"0000000000000000000000000000000000000000000000000000000000000004" +
			"5465737400000000000000000000000000000000000000000000000000000000")
	assert.Equal(t, "Test", decodeABIString(raw))
}

func TestDecodeABIStringFallsBackToBytes32(t *testing.T) {
	raw := make([]byte, 32)
	copy(raw, "ABC")
	assert.Equal(t, "ABC", decodeABIString(raw))
}

func TestDecodeABIUint(t *testing.T) {
	raw, _ := hex.DecodeString("0000000000000000000000000000000000000000000000000000000000000012")
	assert.Equal(t, "18", decodeABIUint(raw).String())
}

func TestDecodeABIUintEmpty(t *testing.T) {
	assert.True(t, decodeABIUint(nil).IsZero())
}
