// Package syncdriver implements the Block Sync Driver (§4 C5): a
// per-chain loop that advances from the last persisted height to the
// remote head (minus a confirmation lag), decoding and committing each
// block in order.
//
// Grounded directly on zk/syncer.L1Syncer.Run's shape: an atomic
// "already started" guard, an atomic "currently downloading" progress
// flag, and a sleep-based poll loop that compares a locally tracked
// checkpoint against the chain head before doing any work. Two deliberate
// upgrades from that original: context.Context cancellation replaces the
// teacher's bespoke `quit chan struct{}`, and golang.org/x/sync/errgroup
// replaces L1Syncer.queryBlocks' hand-rolled worker-pool-over-channels for
// fetching a batch's blocks concurrently — both are idiom upgrades, not a
// change in the loop's observable behavior.
package syncdriver

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ledgerwatch/log/v3"
	"golang.org/x/sync/errgroup"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/classify"
	"github.com/traitmeta/evmindexer/decode"
	"github.com/traitmeta/evmindexer/errtype"
	"github.com/traitmeta/evmindexer/publisher"
	"github.com/traitmeta/evmindexer/rpcgateway"
	"github.com/traitmeta/evmindexer/storage"
)

// Gateway is the subset of *rpcgateway.Gateway the driver calls, named so
// tests can substitute a fake without importing rpcgateway's HTTP
// transport.
type Gateway interface {
	BlockNumber(ctx context.Context) (int64, error)
	BlockByNumber(ctx context.Context, number int64) (rpcgateway.RawBlock, error)
	TransactionReceipt(ctx context.Context, hash chainmodel.Hash) (rpcgateway.RawReceipt, error)
	TraceBlockByNumber(ctx context.Context, number int64) (rpcgateway.RawTrace, error)
}

// Cache is the subset of *blockcache.Cache the driver needs.
type Cache interface {
	Max(ctx context.Context) (int64, bool)
	Observe(ctx context.Context, number int64)
}

// Driver advances one chain. One Driver per configured chain runs
// concurrently, per §5's "one driver per chain" concurrency unit.
type Driver struct {
	chainName       string
	gateway         Gateway
	store           *storage.Store
	cache           Cache
	pub             *publisher.Publisher // nil disables publishing entirely
	pollInterval    time.Duration
	confirmationLag int64
	batchSize       int
	logger          log.Logger

	started    atomic.Bool
	processing atomic.Bool
	lastHeight atomic.Int64
}

// New builds a Driver seeded at lastHeight (typically
// storage.LatestConsensusBlockNumber at startup). pub may be nil.
func New(chainName string, gateway Gateway, store *storage.Store, cache Cache, pub *publisher.Publisher, pollInterval time.Duration, confirmationLag int64, batchSize int, lastHeight int64, logger log.Logger) *Driver {
	d := &Driver{
		chainName:       chainName,
		gateway:         gateway,
		store:           store,
		cache:           cache,
		pub:             pub,
		pollInterval:    pollInterval,
		confirmationLag: confirmationLag,
		batchSize:       batchSize,
		logger:          logger,
	}
	d.lastHeight.Store(lastHeight)
	return d
}

// IsProcessing reports whether a batch is currently being fetched and
// committed, mirroring L1Syncer.IsDownloading.
func (d *Driver) IsProcessing() bool { return d.processing.Load() }

// Run blocks until ctx is cancelled, polling for new blocks every
// pollInterval. Calling Run twice concurrently on the same Driver is a
// no-op on the second call, exactly as L1Syncer.Run guards against a
// second goroutine starting.
func (d *Driver) Run(ctx context.Context) {
	if d.started.Load() {
		return
	}
	d.started.Store(true)
	defer d.started.Store(false)

	d.processing.Store(true)
	d.logger.Info("starting block sync driver", "chain", d.chainName)
	defer d.logger.Info("stopping block sync driver", "chain", d.chainName)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		head, err := d.gateway.BlockNumber(ctx)
		if err != nil {
			d.logger.Error("fetching chain head", "chain", d.chainName, "err", err)
			continue
		}
		safeHead := head - d.confirmationLag
		from := d.lastHeight.Load() + 1
		if from > safeHead {
			d.processing.Store(false)
			continue
		}

		d.processing.Store(true)
		to := from + int64(d.batchSize) - 1
		if to > safeHead {
			to = safeHead
		}
		if err := d.syncRange(ctx, from, to); err != nil {
			d.logger.Error("syncing block range", "chain", d.chainName, "from", from, "to", to, "err", err)
			continue
		}
		d.lastHeight.Store(to)
		d.processing.Store(false)
	}
}

// syncRange fetches and decodes [from, to] concurrently via errgroup, then
// commits each height in ascending order so a failure partway through
// never commits a later height before an earlier one.
func (d *Driver) syncRange(ctx context.Context, from, to int64) error {
	results := make([]storage.CommittedBlock, to-from+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for n := from; n <= to; n++ {
		height := n
		g.Go(func() error {
			cb, err := d.fetchAndDecode(gctx, height)
			if err != nil {
				return err
			}
			results[height-from] = cb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, cb := range results {
		if err := d.store.CommitBlock(ctx, cb); err != nil {
			return err
		}
		d.cache.Observe(ctx, cb.Block.Number)
		d.publish(ctx, cb)
	}
	return nil
}

// publish fire-and-forgets the block and its transactions/transfers onto
// their configured topics once the commit that produced them has already
// succeeded (§4 C9 never gates persistence on publish success).
func (d *Driver) publish(ctx context.Context, cb storage.CommittedBlock) {
	if d.pub == nil {
		return
	}
	d.pub.Publish(ctx, publisher.KindBlock, cb.Block.Hash, cb.Block)
	for _, tx := range cb.Transactions {
		d.pub.Publish(ctx, publisher.KindTransaction, tx.Hash, tx)
	}
	for _, tr := range cb.TokenTransfers {
		d.pub.Publish(ctx, publisher.KindTokenTransfer, tr.TransactionHash, tr)
	}
}

func (d *Driver) fetchAndDecode(ctx context.Context, height int64) (storage.CommittedBlock, error) {
	raw, err := d.gateway.BlockByNumber(ctx, height)
	if err != nil {
		return storage.CommittedBlock{}, err
	}
	block, txs, withdrawals, err := decode.Block(raw)
	if err != nil {
		return storage.CommittedBlock{}, err
	}

	var logs []chainmodel.Log
	for i, tx := range txs {
		receiptRaw, err := d.gateway.TransactionReceipt(ctx, tx.Hash)
		if err != nil {
			if errtype.Classify(err) == errtype.KindAbsent {
				continue
			}
			return storage.CommittedBlock{}, err
		}
		gasUsed, cumGasUsed, status, created, txLogs, err := decode.Receipt(receiptRaw)
		if err != nil {
			return storage.CommittedBlock{}, err
		}
		txs[i].GasUsed = &gasUsed
		txs[i].CumulativeGasUsed = &cumGasUsed
		txs[i].Status = &status
		txs[i].CreatedContractAddressHash = created
		logs = append(logs, txLogs...)
	}

	traceRaw, err := d.gateway.TraceBlockByNumber(ctx, height)
	if err != nil {
		d.logger.Warn("tracing block, internal transactions skipped", "height", height, "err", err)
	}
	var internalTxs []chainmodel.InternalTransaction
	if traceRaw != nil {
		internalTxs, err = decode.InternalTransactions(traceRaw, block.Hash, block.Number)
		if err != nil {
			d.logger.Warn("decoding trace, internal transactions skipped", "height", height, "err", err)
			internalTxs = nil
		}
	}

	var transfers []chainmodel.TokenTransfer
	tokenShells := make(map[chainmodel.Address]chainmodel.TokenType)
	var balances []chainmodel.AddressTokenBalance
	var currentBalances []chainmodel.AddressCurrentTokenBalance

	for _, l := range logs {
		if l.TransactionHash.IsZero() {
			continue
		}
		transfer, tokenType, ok := classify.Classify(l, block.Hash, block.Number, l.TransactionHash)
		if !ok {
			continue
		}
		transfers = append(transfers, transfer)

		contract := transfer.TokenContractAddressHash
		if existing, seen := tokenShells[contract]; !seen {
			tokenShells[contract] = tokenType
		} else {
			tokenShells[contract] = chainmodel.StricterTokenType(existing, tokenType)
		}

		tokenIDs := transfer.TokenIDs
		if transfer.TokenID != nil {
			tokenIDs = append(tokenIDs, *transfer.TokenID)
		}
		if len(tokenIDs) == 0 {
			tokenIDs = []chainmodel.Dec{{}}
		}
		for i := range tokenIDs {
			var tokenID *chainmodel.Dec
			if transfer.TokenID != nil || len(transfer.TokenIDs) > 0 {
				tokenID = &tokenIDs[i]
			}
			for _, role := range [2]chainmodel.Address{transfer.From, transfer.To} {
				if role.IsZero() {
					continue
				}
				balances = append(balances, chainmodel.AddressTokenBalance{
					Address: role, TokenContract: contract, TokenID: tokenID,
					BlockNumber: block.Number, TokenType: tokenType,
				})
				currentBalances = append(currentBalances, chainmodel.AddressCurrentTokenBalance{
					Address: role, TokenContract: contract, TokenID: tokenID,
					BlockNumber: block.Number, TokenType: tokenType,
				})
			}
		}
	}

	tokens := make([]chainmodel.Token, 0, len(tokenShells))
	for contract, tt := range tokenShells {
		tokens = append(tokens, chainmodel.Token{ContractAddressHash: contract, Type: tt})
	}

	return storage.CommittedBlock{
		Block:                       block,
		Transactions:                txs,
		Logs:                        logs,
		InternalTransactions:        internalTxs,
		Withdrawals:                 withdrawals,
		TokenTransfers:              transfers,
		Addresses:                   decode.Addresses(txs),
		Tokens:                      tokens,
		AddressTokenBalances:        balances,
		AddressCurrentTokenBalances: currentBalances,
	}, nil
}
