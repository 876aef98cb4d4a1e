// Package chainmodel defines the normalized relational entities the indexer
// decodes raw RPC payloads into, along with the primitive types they are
// built from.
package chainmodel

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Hash is a 32-byte hash: a block hash, transaction hash, or topic.
type Hash [32]byte

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > len(h) {
		b = b[len(b)-len(h):]
	}
	copy(h[len(h)-len(b):], b)
	return h
}

func HexToHash(s string) Hash {
	return BytesToHash(FromHex(s))
}

// Address is a 20-byte account or contract address.
type Address [20]byte

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) IsZero() bool { return a == Address{} }

// ZeroAddress is the canonical burn/mint address used by §6 of the spec.
var ZeroAddress = Address{}

func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > len(a) {
		b = b[len(b)-len(a):]
	}
	copy(a[len(a)-len(b):], b)
	return a
}

func HexToAddress(s string) Address {
	return BytesToAddress(FromHex(s))
}

// FromHex decodes a 0x-prefixed (or bare) hex string, ignoring decode errors
// by returning whatever was decoded before the first bad nibble — callers in
// the decode package treat malformed hex as a Decode-class error upstream of
// this helper, not here, since this helper is used only after a payload has
// already been accepted as a string by the JSON-RPC client.
func FromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

// U256 is an unsigned 256-bit integer, used for wei-scale values that must
// not lose precision (gas, value, balances before they are persisted as
// decimal columns).
type U256 = uint256.Int

// Dec is an arbitrary-precision decimal, used for every numeric column that
// is persisted to a relational `numeric` column.
type Dec = decimal.Decimal

func DecFromU256(u *U256) Dec {
	if u == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(u.Dec())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func DecFromUint64(v uint64) Dec {
	return decimal.NewFromInt(int64(v))
}

// TS is always stored and compared in UTC.
type TS = time.Time

func UnixTS(sec int64) TS {
	return time.Unix(sec, 0).UTC()
}

// TokenType is the strictness-ordered set of token interfaces the classifier
// disambiguates between. Ordering matters: P7 requires ERC-20 < ERC-721 <
// ERC-1155 when multiple shapes target one contract.
type TokenType string

const (
	TokenTypeERC20  TokenType = "ERC-20"
	TokenTypeERC721 TokenType = "ERC-721"
	TokenTypeERC1155 TokenType = "ERC-1155"
)

// Stricter reports whether a is strictly stricter than b under the ordering
// ERC-20 < ERC-721 < ERC-1155.
func (a TokenType) Stricter(b TokenType) bool {
	return tokenTypeRank(a) > tokenTypeRank(b)
}

func tokenTypeRank(t TokenType) int {
	switch t {
	case TokenTypeERC20:
		return 0
	case TokenTypeERC721:
		return 1
	case TokenTypeERC1155:
		return 2
	default:
		return -1
	}
}

// StricterTokenType returns whichever of a, b is stricter, per P7.
func StricterTokenType(a, b TokenType) TokenType {
	if tokenTypeRank(b) > tokenTypeRank(a) {
		return b
	}
	return a
}

// InternalTxType is the tagged-variant discriminant for InternalTransaction,
// modeled as an exhaustive Go type rather than the dynamically-typed
// Trace.action sum type the source RPC responses carry (§9 design note).
type InternalTxType string

const (
	InternalTxCall    InternalTxType = "call"
	InternalTxCreate  InternalTxType = "create"
	InternalTxSuicide InternalTxType = "suicide"
	InternalTxReward  InternalTxType = "reward"
)

// CallType further qualifies an InternalTxCall.
type CallType string

const (
	CallTypeCall         CallType = "call"
	CallTypeCallCode     CallType = "callcode"
	CallTypeDelegateCall CallType = "delegatecall"
	CallTypeStaticCall   CallType = "staticcall"
)

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }
func (h Hash) MarshalText() ([]byte, error)     { return []byte(h.String()), nil }

var _ fmt.Stringer = Address{}
