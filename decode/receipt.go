package decode

import (
	"encoding/json"
	"fmt"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/errtype"
)

type wireReceipt struct {
	TransactionHash   string    `json:"transactionHash"`
	BlockHash         string    `json:"blockHash"`
	BlockNumber       string    `json:"blockNumber"`
	TransactionIndex  string    `json:"transactionIndex"`
	GasUsed           string    `json:"gasUsed"`
	CumulativeGasUsed string    `json:"cumulativeGasUsed"`
	Status            string    `json:"status"`
	ContractAddress   string    `json:"contractAddress"`
	Logs              []wireLog `json:"logs"`
}

type wireLog struct {
	Address          string   `json:"address"`
	Data             string   `json:"data"`
	Topics           []string `json:"topics"`
	TransactionHash  string   `json:"transactionHash"`
	LogIndex         string   `json:"logIndex"`
	BlockHash        string   `json:"blockHash"`
	BlockNumber      string   `json:"blockNumber"`
}

// Receipt decodes an eth_getTransactionReceipt payload into the fields
// Transaction carries post-mining, plus the receipt's Log rows.
func Receipt(raw json.RawMessage) (gasUsed, cumGasUsed chainmodel.Dec, status int32, createdContract *chainmodel.Address, logs []chainmodel.Log, err error) {
	var w wireReceipt
	if jerr := json.Unmarshal(raw, &w); jerr != nil {
		return chainmodel.Dec{}, chainmodel.Dec{}, 0, nil, nil, errtype.Wrap(errtype.KindDecode, fmt.Errorf("decoding receipt: %w", jerr))
	}

	gasUsed = parseDec(w.GasUsed)
	cumGasUsed = parseDec(w.CumulativeGasUsed)
	if st, perr := parseHexInt64(w.Status); perr == nil {
		status = int32(st)
	}
	if w.ContractAddress != "" {
		addr := chainmodel.HexToAddress(w.ContractAddress)
		createdContract = &addr
	}

	logs = make([]chainmodel.Log, 0, len(w.Logs))
	for _, wl := range w.Logs {
		l, lerr := logRow(wl)
		if lerr != nil {
			return chainmodel.Dec{}, chainmodel.Dec{}, 0, nil, nil, lerr
		}
		logs = append(logs, l)
	}
	return gasUsed, cumGasUsed, status, createdContract, logs, nil
}

func logRow(w wireLog) (chainmodel.Log, error) {
	idx, err := parseHexInt64(w.LogIndex)
	if err != nil {
		return chainmodel.Log{}, errtype.Wrap(errtype.KindDecode, fmt.Errorf("log index %q: %w", w.LogIndex, err))
	}
	blockNum, err := parseHexInt64(w.BlockNumber)
	if err != nil {
		return chainmodel.Log{}, errtype.Wrap(errtype.KindDecode, fmt.Errorf("log blockNumber %q: %w", w.BlockNumber, err))
	}

	addr := chainmodel.HexToAddress(w.Address)
	l := chainmodel.Log{
		TransactionHash: chainmodel.HexToHash(w.TransactionHash),
		Index:           int32(idx),
		Address:         &addr,
		Data:            chainmodel.FromHex(w.Data),
		BlockHash:       chainmodel.HexToHash(w.BlockHash),
		BlockNumber:     blockNum,
	}
	topics := make([]chainmodel.Hash, len(w.Topics))
	for i, t := range w.Topics {
		topics[i] = chainmodel.HexToHash(t)
	}
	if len(topics) > 0 {
		l.FirstTopic = &topics[0]
	}
	if len(topics) > 1 {
		l.SecondTopic = &topics[1]
	}
	if len(topics) > 2 {
		l.ThirdTopic = &topics[2]
	}
	if len(topics) > 3 {
		l.FourthTopic = &topics[3]
	}
	return l, nil
}
