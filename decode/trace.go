package decode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/errtype"
)

// wireTraceEntry is one element of the debug_traceBlockByNumber(callTracer)
// array: one call tree per transaction in the block.
type wireTraceEntry struct {
	TxHash string        `json:"txHash"`
	Result wireCallFrame `json:"result"`
}

type wireCallFrame struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Value   string          `json:"value"`
	Gas     string          `json:"gas"`
	GasUsed string          `json:"gasUsed"`
	Input   string          `json:"input"`
	Output  string          `json:"output"`
	Error   string          `json:"error"`
	Calls   []wireCallFrame `json:"calls"`
}

// InternalTransactions flattens a block's callTracer output into one row
// per call-tree node, mirroring the trace_block-derived shape spec §4.2
// describes, with TraceAddress recording the node's path from the root.
func InternalTransactions(raw json.RawMessage, blockHash chainmodel.Hash, blockNumber int64) ([]chainmodel.InternalTransaction, error) {
	var entries []wireTraceEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errtype.Wrap(errtype.KindDecode, fmt.Errorf("decoding trace: %w", err))
	}

	var out []chainmodel.InternalTransaction
	for txIndex, entry := range entries {
		txHash := chainmodel.HexToHash(entry.TxHash)
		rows := flattenCallFrame(entry.Result, blockHash, blockNumber, txHash, int32(txIndex), nil, int32(len(out)))
		out = append(out, rows...)
	}
	return out, nil
}

func flattenCallFrame(frame wireCallFrame, blockHash chainmodel.Hash, blockNumber int64, txHash chainmodel.Hash, txIndex int32, traceAddress []int32, blockIndex int32) []chainmodel.InternalTransaction {
	row := chainmodel.InternalTransaction{
		BlockHash:        blockHash,
		BlockNumber:      int32(blockNumber),
		BlockIndex:       blockIndex,
		TransactionHash:  txHash,
		TransactionIndex: txIndex,
		TraceAddress:     append([]int32{}, traceAddress...),
		Value:            parseDec(frame.Value),
		Input:            chainmodel.FromHex(frame.Input),
	}

	typ := strings.ToUpper(frame.Type)
	switch typ {
	case "CREATE", "CREATE2":
		row.Type = chainmodel.InternalTxCreate
		row.Init = row.Input
		row.CreatedContractCode = chainmodel.FromHex(frame.Output)
		if frame.To != "" {
			addr := chainmodel.HexToAddress(frame.To)
			row.CreatedContractAddressHash = &addr
		}
	case "SUICIDE", "SELFDESTRUCT":
		row.Type = chainmodel.InternalTxSuicide
	default:
		row.Type = chainmodel.InternalTxCall
		ct := callTypeFor(typ)
		row.CallType = &ct
		row.Output = chainmodel.FromHex(frame.Output)
	}

	if frame.From != "" {
		from := chainmodel.HexToAddress(frame.From)
		row.From = &from
	}
	if frame.To != "" && row.Type == chainmodel.InternalTxCall {
		to := chainmodel.HexToAddress(frame.To)
		row.To = &to
	}
	if frame.Gas != "" {
		g := parseDec(frame.Gas)
		row.Gas = &g
	}
	if frame.GasUsed != "" {
		gu := parseDec(frame.GasUsed)
		row.GasUsed = &gu
	}
	if frame.Error != "" {
		row.Error = &frame.Error
	}

	rows := []chainmodel.InternalTransaction{row}
	for i, child := range frame.Calls {
		childAddress := append(append([]int32{}, traceAddress...), int32(i))
		rows = append(rows, flattenCallFrame(child, blockHash, blockNumber, txHash, txIndex, childAddress, blockIndex+int32(len(rows)))...)
	}
	return rows
}

func callTypeFor(typ string) chainmodel.CallType {
	switch typ {
	case "CALLCODE":
		return chainmodel.CallTypeCallCode
	case "DELEGATECALL":
		return chainmodel.CallTypeDelegateCall
	case "STATICCALL":
		return chainmodel.CallTypeStaticCall
	default:
		return chainmodel.CallTypeCall
	}
}
