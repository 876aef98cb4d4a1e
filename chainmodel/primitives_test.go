package chainmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStricterTokenType(t *testing.T) {
	cases := []struct {
		name     string
		a, b     TokenType
		expected TokenType
	}{
		{"erc20 vs erc721", TokenTypeERC20, TokenTypeERC721, TokenTypeERC721},
		{"erc721 vs erc1155", TokenTypeERC721, TokenTypeERC1155, TokenTypeERC1155},
		{"erc20 vs erc1155", TokenTypeERC20, TokenTypeERC1155, TokenTypeERC1155},
		{"equal", TokenTypeERC20, TokenTypeERC20, TokenTypeERC20},
		{"reverse order still picks stricter", TokenTypeERC1155, TokenTypeERC20, TokenTypeERC1155},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, StricterTokenType(c.a, c.b))
		})
	}
}

func TestHashAndAddressRoundTrip(t *testing.T) {
	h := HexToHash("0x0102030000000000000000000000000000000000000000000000000000000f")
	assert.False(t, h.IsZero())
	assert.Equal(t, "0x0102030000000000000000000000000000000000000000000000000000000f", h.String())

	a := HexToAddress("0x000000000000000000000000000000000000ab")
	assert.False(t, a.IsZero())
	assert.Equal(t, byte(0xab), a[19])
}

func TestZeroAddressIsZero(t *testing.T) {
	assert.True(t, ZeroAddress.IsZero())
	assert.True(t, Address{}.IsZero())
}

func TestFromHexHandlesOddLengthAndPrefix(t *testing.T) {
	assert.Equal(t, []byte{0x0a}, FromHex("0xa"))
	assert.Equal(t, []byte{0x0a, 0xbc}, FromHex("abc"))
	assert.Equal(t, []byte{}, FromHex(""))
}

func TestDecFromU256(t *testing.T) {
	u := new(U256).SetUint64(12345)
	d := DecFromU256(u)
	assert.Equal(t, "12345", d.String())
	assert.True(t, DecFromU256(nil).IsZero())
}
