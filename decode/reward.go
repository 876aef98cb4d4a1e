package decode

import "github.com/traitmeta/evmindexer/chainmodel"

// BlockReward emits the miner's block-reward row as a synthetic
// InternalTransaction when minerReward is non-zero (supplemented feature,
// grounded on the original beneficiary-derivation handler: a miner reward
// is a transfer with no originating transaction, so it can only be
// represented as an internal transaction tagged InternalTxReward).
// Post-merge chains report a zero reward and simply produce no row.
func BlockReward(blockHash chainmodel.Hash, blockNumber int64, miner chainmodel.Address, minerReward chainmodel.Dec) []chainmodel.InternalTransaction {
	if minerReward.IsZero() {
		return nil
	}
	to := miner
	return []chainmodel.InternalTransaction{{
		BlockHash:   blockHash,
		BlockNumber: int32(blockNumber),
		BlockIndex:  -1,
		Type:        chainmodel.InternalTxReward,
		To:          &to,
		Value:       minerReward,
	}}
}
