// Package balancetask implements the Balance Refresh Task (§4 C7): a
// ticker loop that fetches on-chain balances for addresses the classifier
// flagged as needing one (via storage.QueueBalanceFetch), capping retries
// per row per spec §4.7.
//
// Grounded on the same ticker/atomic-guard loop shape as syncdriver and
// tokentask (zk/syncer.L1Syncer.Run).
package balancetask

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/traitmeta/evmindexer/chainmodel"
)

// clock is indirected so tests can pin the fetch timestamp without
// waiting on the real one; production always uses time.Now.
var clock = time.Now

// MaxFetchRetries is §4.7's per-row retry cap (supplemented persisted
// fetch_retry_count field backs this).
const MaxFetchRetries = 3

const selectorBalanceOf = "0x70a08231" // balanceOf(address), right-padded with the address argument below
const selectorERC1155BalanceOf = "0x00fdd58e" // balanceOf(address,uint256)

// Gateway is the subset of *rpcgateway.Gateway this task needs.
type Gateway interface {
	Call(ctx context.Context, to chainmodel.Address, data []byte, blockNumber int64) ([]byte, error)
}

// Store is the subset of *storage.Store this task needs.
type Store interface {
	PendingBalanceFetches(ctx context.Context, maxRetries int32, limit int) ([]chainmodel.AddressTokenBalance, error)
	ApplyBalanceFetch(ctx context.Context, b chainmodel.AddressTokenBalance, value chainmodel.Dec, fetchedAt chainmodel.TS) error
	RecordBalanceFetchFailure(ctx context.Context, b chainmodel.AddressTokenBalance) error
}

type Task struct {
	store        Store
	gateway      Gateway
	pollInterval time.Duration
	batchSize    int
	logger       log.Logger

	running atomic.Bool
}

func New(store Store, gateway Gateway, pollInterval time.Duration, batchSize int, logger log.Logger) *Task {
	return &Task{store: store, gateway: gateway, pollInterval: pollInterval, batchSize: batchSize, logger: logger}
}

func (t *Task) Run(ctx context.Context) {
	if t.running.Load() {
		return
	}
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := t.refreshBatch(ctx); err != nil {
			t.logger.Error("refreshing address token balances", "err", err)
		}
	}
}

func (t *Task) refreshBatch(ctx context.Context) error {
	pending, err := t.store.PendingBalanceFetches(ctx, MaxFetchRetries, t.batchSize)
	if err != nil {
		return err
	}
	for _, b := range pending {
		value, err := t.fetchOne(ctx, b)
		if err != nil {
			t.logger.Warn("fetching address token balance", "address", b.Address, "token", b.TokenContract, "err", err)
			if ferr := t.store.RecordBalanceFetchFailure(ctx, b); ferr != nil {
				t.logger.Error("recording balance fetch failure", "address", b.Address, "err", ferr)
			}
			continue
		}
		if err := t.store.ApplyBalanceFetch(ctx, b, value, clock().UTC()); err != nil {
			t.logger.Error("applying balance fetch", "address", b.Address, "token", b.TokenContract, "err", err)
		}
	}
	return nil
}

func (t *Task) fetchOne(ctx context.Context, b chainmodel.AddressTokenBalance) (chainmodel.Dec, error) {
	var data []byte
	if b.TokenType == chainmodel.TokenTypeERC1155 && b.TokenID != nil {
		data = encodeBalanceOf1155(b.Address, *b.TokenID)
	} else {
		data = encodeBalanceOf(b.Address)
	}
	raw, err := t.gateway.Call(ctx, b.TokenContract, data, b.BlockNumber)
	if err != nil {
		return chainmodel.Dec{}, err
	}
	return decodeUint(raw), nil
}

func encodeBalanceOf(addr chainmodel.Address) []byte {
	data := make([]byte, 0, 36)
	data = append(data, chainmodel.FromHex(selectorBalanceOf)...)
	var padded [32]byte
	copy(padded[12:], addr[:])
	data = append(data, padded[:]...)
	return data
}

func encodeBalanceOf1155(addr chainmodel.Address, tokenID chainmodel.Dec) []byte {
	data := make([]byte, 0, 68)
	data = append(data, chainmodel.FromHex(selectorERC1155BalanceOf)...)
	var addrPadded [32]byte
	copy(addrPadded[12:], addr[:])
	data = append(data, addrPadded[:]...)

	u := new(chainmodel.U256)
	u.SetUint64(uint64(tokenID.IntPart()))
	idBytes := u.Bytes32()
	data = append(data, idBytes[:]...)
	return data
}

func decodeUint(raw []byte) chainmodel.Dec {
	if len(raw) == 0 {
		return chainmodel.DecFromUint64(0)
	}
	var padded [32]byte
	if len(raw) >= 32 {
		copy(padded[:], raw[len(raw)-32:])
	} else {
		copy(padded[32-len(raw):], raw)
	}
	u := new(chainmodel.U256).SetBytes(padded[:])
	return chainmodel.DecFromU256(u)
}
