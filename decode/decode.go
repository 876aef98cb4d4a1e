// Package decode turns the raw JSON-RPC payloads rpcgateway returns into
// chainmodel entities.
//
// Grounded on other_examples' hieutrtr-go-blockchain-explorer adapter
// (ParseRPCBlock/parseTransaction), generalized from go-ethereum's typed
// RPC client structs to a direct JSON-tag decode against this project's own
// wire structs, since no go-ethereum client dependency is wired elsewhere
// in this project (rpcgateway talks raw JSON-RPC, not ethclient).
package decode

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/errtype"
)

// wireBlock mirrors the eth_getBlockByNumber(num, true) response shape.
type wireBlock struct {
	Hash            string        `json:"hash"`
	Number          string        `json:"number"`
	ParentHash      string        `json:"parentHash"`
	Miner           string        `json:"miner"`
	Nonce           string        `json:"nonce"`
	Difficulty      string        `json:"difficulty"`
	TotalDifficulty string        `json:"totalDifficulty"`
	GasLimit        string        `json:"gasLimit"`
	GasUsed         string        `json:"gasUsed"`
	BaseFeePerGas   string        `json:"baseFeePerGas"`
	Size            string        `json:"size"`
	Timestamp       string        `json:"timestamp"`
	Transactions    []wireTx      `json:"transactions"`
	Withdrawals     []wireWithdrawal `json:"withdrawals"`
}

type wireTx struct {
	Hash                 string `json:"hash"`
	BlockHash            string `json:"blockHash"`
	BlockNumber          string `json:"blockNumber"`
	TransactionIndex     string `json:"transactionIndex"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	Value                string `json:"value"`
	Gas                  string `json:"gas"`
	GasPrice             string `json:"gasPrice"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
	Nonce                string `json:"nonce"`
	Input                string `json:"input"`
	R                    string `json:"r"`
	S                    string `json:"s"`
	V                    string `json:"v"`
	Type                 string `json:"type"`
}

type wireWithdrawal struct {
	Index          string `json:"index"`
	ValidatorIndex string `json:"validatorIndex"`
	Amount         string `json:"amount"`
	Address        string `json:"address"`
}

// Block decodes a raw eth_getBlockByNumber payload into a Block plus its
// embedded Transactions and Withdrawals. IsEmpty is set here from the
// transaction count (I3); the Consensus flag is left for the storage layer
// to set once it knows whether this write displaces a prior row at the same
// height (I1).
func Block(raw json.RawMessage) (chainmodel.Block, []chainmodel.Transaction, []chainmodel.Withdrawal, error) {
	var w wireBlock
	if err := json.Unmarshal(raw, &w); err != nil {
		return chainmodel.Block{}, nil, nil, errtype.Wrap(errtype.KindDecode, fmt.Errorf("decoding block: %w", err))
	}

	number, err := parseHexInt64(w.Number)
	if err != nil {
		return chainmodel.Block{}, nil, nil, errtype.Wrap(errtype.KindDecode, fmt.Errorf("block number %q: %w", w.Number, err))
	}
	ts, err := parseHexInt64(w.Timestamp)
	if err != nil {
		return chainmodel.Block{}, nil, nil, errtype.Wrap(errtype.KindDecode, fmt.Errorf("block timestamp %q: %w", w.Timestamp, err))
	}

	block := chainmodel.Block{
		Hash:       chainmodel.HexToHash(w.Hash),
		Number:     number,
		ParentHash: chainmodel.HexToHash(w.ParentHash),
		Miner:      chainmodel.HexToAddress(w.Miner),
		GasLimit:   parseDec(w.GasLimit),
		GasUsed:    parseDec(w.GasUsed),
		Timestamp:  chainmodel.UnixTS(ts),
		IsEmpty:    len(w.Transactions) == 0,
	}
	copy(block.Nonce[:], chainmodel.FromHex(w.Nonce))
	if w.Difficulty != "" {
		d := parseDec(w.Difficulty)
		block.Difficulty = &d
	}
	if w.TotalDifficulty != "" {
		d := parseDec(w.TotalDifficulty)
		block.TotalDifficulty = &d
	}
	if w.BaseFeePerGas != "" {
		d := parseDec(w.BaseFeePerGas)
		block.BaseFeePerGas = &d
	}
	if w.Size != "" {
		sz, err := parseHexInt64(w.Size)
		if err == nil {
			s32 := int32(sz)
			block.Size = &s32
		}
	}

	txs := make([]chainmodel.Transaction, 0, len(w.Transactions))
	for _, wt := range w.Transactions {
		tx, err := transaction(wt)
		if err != nil {
			return chainmodel.Block{}, nil, nil, err
		}
		txs = append(txs, tx)
	}

	withdrawals := make([]chainmodel.Withdrawal, 0, len(w.Withdrawals))
	for _, ww := range w.Withdrawals {
		wd, err := withdrawal(ww, block.Hash)
		if err != nil {
			return chainmodel.Block{}, nil, nil, err
		}
		withdrawals = append(withdrawals, wd)
	}

	return block, txs, withdrawals, nil
}

func transaction(w wireTx) (chainmodel.Transaction, error) {
	hash := chainmodel.HexToHash(w.Hash)
	from := chainmodel.HexToAddress(w.From)

	tx := chainmodel.Transaction{
		Hash:   hash,
		From:   from,
		Value:  parseDec(w.Value),
		Gas:    parseDec(w.Gas),
		Input:  chainmodel.FromHex(w.Input),
		R:      chainmodel.FromHex(w.R),
		S:      chainmodel.FromHex(w.S),
		V:      parseDec(w.V),
	}
	if w.BlockHash != "" {
		bh := chainmodel.HexToHash(w.BlockHash)
		tx.BlockHash = &bh
	}
	if w.BlockNumber != "" {
		n, err := parseHexInt64(w.BlockNumber)
		if err != nil {
			return chainmodel.Transaction{}, errtype.Wrap(errtype.KindDecode, fmt.Errorf("tx %s blockNumber: %w", hash, err))
		}
		tx.BlockNumber = &n
	}
	if w.TransactionIndex != "" {
		idx, err := parseHexInt64(w.TransactionIndex)
		if err != nil {
			return chainmodel.Transaction{}, errtype.Wrap(errtype.KindDecode, fmt.Errorf("tx %s index: %w", hash, err))
		}
		idx32 := int32(idx)
		tx.Index = &idx32
	}
	if w.To != "" {
		to := chainmodel.HexToAddress(w.To)
		tx.To = &to
	}
	if w.GasPrice != "" {
		d := parseDec(w.GasPrice)
		tx.GasPrice = &d
	}
	if w.MaxFeePerGas != "" {
		d := parseDec(w.MaxFeePerGas)
		tx.MaxFeePerGas = &d
	}
	if w.MaxPriorityFeePerGas != "" {
		d := parseDec(w.MaxPriorityFeePerGas)
		tx.MaxPriorityFeePerGas = &d
	}
	if nonce, err := parseHexInt64(w.Nonce); err == nil {
		tx.Nonce = int32(nonce)
	}
	if w.Type != "" {
		if t, err := parseHexInt64(w.Type); err == nil {
			t32 := int32(t)
			tx.Type = &t32
		}
	}
	return tx, nil
}

func withdrawal(w wireWithdrawal, blockHash chainmodel.Hash) (chainmodel.Withdrawal, error) {
	idx, err := parseHexInt64(w.Index)
	if err != nil {
		return chainmodel.Withdrawal{}, errtype.Wrap(errtype.KindDecode, fmt.Errorf("withdrawal index %q: %w", w.Index, err))
	}
	vidx, err := parseHexInt64(w.ValidatorIndex)
	if err != nil {
		return chainmodel.Withdrawal{}, errtype.Wrap(errtype.KindDecode, fmt.Errorf("withdrawal validatorIndex %q: %w", w.ValidatorIndex, err))
	}
	return chainmodel.Withdrawal{
		Index:          int32(idx),
		ValidatorIndex: vidx,
		Amount:         parseDec(w.Amount),
		Address:        chainmodel.HexToAddress(w.Address),
		BlockHash:      blockHash,
	}, nil
}

func parseHexInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	var v int64
	if _, err := fmt.Sscanf(s, "0x%x", &v); err != nil {
		return 0, err
	}
	return v, nil
}

// parseDec parses a quantity-encoded hex string ("0x..."), which may be far
// wider than 64 bits (wei-scale balances routinely are), via math/big
// rather than Sscanf("0x%x", &int64) to avoid silent truncation.
func parseDec(s string) chainmodel.Dec {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		s = "0"
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n, 0)
}
