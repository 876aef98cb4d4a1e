package decode

import (
	"github.com/traitmeta/evmindexer/chainmodel"
)

// Addresses computes the per-block Address union §4.4's commit contract
// calls for: {tx.From} ∪ {tx.To} ∪ {tx.CreatedContractAddressHash}, deduped
// by Hash. Only the From role carries a reliable Nonce signal, so an address
// seen only as a To or created-contract target gets Nonce left nil — the
// persistence layer's upsert only ever overwrites the nonce column, never
// clobbers a previously observed one with a nil.
func Addresses(txs []chainmodel.Transaction) []chainmodel.AddressRow {
	rows := make(map[chainmodel.Address]*chainmodel.AddressRow)

	get := func(a chainmodel.Address) *chainmodel.AddressRow {
		if r, ok := rows[a]; ok {
			return r
		}
		r := &chainmodel.AddressRow{Hash: a}
		rows[a] = r
		return r
	}

	for _, tx := range txs {
		from := get(tx.From)
		nonce := int64(tx.Nonce)
		if from.Nonce == nil || nonce > *from.Nonce {
			from.Nonce = &nonce
		}
		if tx.To != nil {
			get(*tx.To)
		}
		if tx.CreatedContractAddressHash != nil {
			get(*tx.CreatedContractAddressHash)
		}
	}

	out := make([]chainmodel.AddressRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out
}
