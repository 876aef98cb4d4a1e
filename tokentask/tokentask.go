// Package tokentask implements the Token Metadata Task (§4 C6): a ticker
// loop that fetches name/symbol/decimals for newly observed tokens via
// eth_call, and separately refreshes total supply for cataloged ERC-20
// tokens once it goes stale.
//
// Grounded on the same L1Syncer.Run ticker/atomic-guard shape as
// syncdriver, since the teacher itself reuses this loop shape across its
// L1 syncer, sequencer, and verifier goroutines rather than writing a
// distinct one per concern.
package tokentask

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/errtype"
	"github.com/traitmeta/evmindexer/storage"
)

// MaxConsecutiveFailures is the cap past which a token is marked
// SkipMetadata (supplemented feature, grounded on the original token
// task's persisted failure-counter handling).
const MaxConsecutiveFailures = 3

const (
	selectorName        = "0x06fdde03"
	selectorSymbol      = "0x95d89b41"
	selectorDecimals    = "0x313ce567"
	selectorTotalSupply = "0x18160ddd"
)

// Gateway is the subset of *rpcgateway.Gateway this task needs.
type Gateway interface {
	Call(ctx context.Context, to chainmodel.Address, data []byte, blockNumber int64) ([]byte, error)
}

type Task struct {
	store        *storage.Store
	gateway      Gateway
	pollInterval time.Duration
	batchSize    int
	logger       log.Logger

	running atomic.Bool
}

func New(store *storage.Store, gateway Gateway, pollInterval time.Duration, batchSize int, logger log.Logger) *Task {
	return &Task{store: store, gateway: gateway, pollInterval: pollInterval, batchSize: batchSize, logger: logger}
}

// Run blocks until ctx is cancelled. A second concurrent call is a no-op,
// mirroring L1Syncer.Run's guard.
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
		if err := t.fetchMetadataBatch(ctx); err != nil {
			t.logger.Error("fetching token metadata batch", "err", err)
		}
		if err := t.refreshTotalSupplyBatch(ctx); err != nil {
			t.logger.Error("refreshing total supply batch", "err", err)
		}
	}
}

func (t *Task) fetchMetadataBatch(ctx context.Context) error {
	tokens, err := t.store.TokensNeedingMetadata(ctx, MaxConsecutiveFailures, t.batchSize)
	if err != nil {
		return err
	}
	for _, tok := range tokens {
		if err := t.fetchOne(ctx, tok); err != nil {
			t.logger.Warn("fetching token metadata", "token", tok.ContractAddressHash, "err", err)
			failures, ferr := t.store.RecordTokenMetadataFailure(ctx, tok.ContractAddressHash)
			if ferr != nil {
				t.logger.Error("recording token metadata failure", "token", tok.ContractAddressHash, "err", ferr)
				continue
			}
			if failures >= MaxConsecutiveFailures {
				if serr := t.store.SkipTokenMetadata(ctx, tok.ContractAddressHash); serr != nil {
					t.logger.Error("marking token skip_metadata", "token", tok.ContractAddressHash, "err", serr)
				}
			}
		}
	}
	return nil
}

func (t *Task) fetchOne(ctx context.Context, tok chainmodel.Token) error {
	nameRaw, err := t.gateway.Call(ctx, tok.ContractAddressHash, chainmodel.FromHex(selectorName), 0)
	if err != nil {
		return err
	}
	symbolRaw, err := t.gateway.Call(ctx, tok.ContractAddressHash, chainmodel.FromHex(selectorSymbol), 0)
	if err != nil {
		return err
	}

	name := decodeABIString(nameRaw)
	symbol := decodeABIString(symbolRaw)

	var decimalsPtr *chainmodel.Dec
	if tok.Type == chainmodel.TokenTypeERC20 {
		decRaw, err := t.gateway.Call(ctx, tok.ContractAddressHash, chainmodel.FromHex(selectorDecimals), 0)
		if err == nil {
			d := decodeABIUint(decRaw)
			decimalsPtr = &d
		}
	}

	return t.store.ApplyTokenMetadata(ctx, tok.ContractAddressHash, &name, &symbol, decimalsPtr)
}

// refreshTotalSupplyBatch is the on-demand staleness trigger the original
// total-supply task drives: it refreshes whatever StaleTotalSupplyTokens
// names rather than refreshing every ERC-20 on every tick.
func (t *Task) refreshTotalSupplyBatch(ctx context.Context) error {
	head, err := t.currentHead(ctx)
	if err != nil {
		return err
	}
	addrs, err := t.store.StaleTotalSupplyTokens(ctx, head-TotalSupplyStaleness, t.batchSize)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		raw, err := t.gateway.Call(ctx, addr, chainmodel.FromHex(selectorTotalSupply), 0)
		if err != nil {
			t.logger.Warn("refreshing total supply", "token", addr, "err", err)
			continue
		}
		supply := decodeABIUint(raw)
		if err := t.store.ApplyTotalSupply(ctx, addr, supply, head); err != nil {
			t.logger.Error("applying total supply", "token", addr, "err", err)
		}
	}
	return nil
}

// TotalSupplyStaleness is the number of blocks a token's total_supply is
// allowed to lag the chain head before refreshTotalSupplyBatch refetches
// it (supplemented feature; spec §4.8 names a "token-supply-trigger"
// without fixing a window, so this value is the Open Question decision).
const TotalSupplyStaleness = 5_000

func (t *Task) currentHead(ctx context.Context) (int64, error) {
	n, err := t.store.LatestConsensusBlockNumber(ctx)
	if err != nil {
		return 0, errtype.Wrap(errtype.KindPersistQuery, err)
	}
	return n, nil
}

// decodeABIString decodes a dynamic ABI-encoded string return value: a
// 32-byte offset word (always 0x20 for a single dynamic return),
// a 32-byte length word, then the UTF-8 bytes.
func decodeABIString(raw []byte) string {
	if len(raw) < 64 {
		return rawBytesAsString(raw)
	}
	length := decodeABIUint(raw[32:64]).IntPart()
	start := int64(64)
	if start+length > int64(len(raw)) {
		return ""
	}
	return string(raw[start : start+length])
}

// rawBytesAsString handles the nonstandard but common bytes32-packed
// name()/symbol() some older ERC-20 contracts return instead of a dynamic
// string.
func rawBytesAsString(raw []byte) string {
	trimmed := raw
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == 0 {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return string(trimmed)
}

func decodeABIUint(raw []byte) chainmodel.Dec {
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
