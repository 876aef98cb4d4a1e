package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/errtype"
)

// CommittedBlock bundles everything decoded from one height into the unit
// CommitBlock writes atomically, mirroring the teacher's one-RwTx-per-stage
// discipline: a height either lands in full or not at all.
type CommittedBlock struct {
	Block                       chainmodel.Block
	Transactions                []chainmodel.Transaction
	Logs                        []chainmodel.Log
	InternalTransactions        []chainmodel.InternalTransaction
	Withdrawals                 []chainmodel.Withdrawal
	TokenTransfers              []chainmodel.TokenTransfer
	Addresses                   []chainmodel.AddressRow
	Tokens                      []chainmodel.Token
	AddressTokenBalances        []chainmodel.AddressTokenBalance
	AddressCurrentTokenBalances []chainmodel.AddressCurrentTokenBalance
}

// CommitBlock persists a height's full payload in one transaction. When a
// row already exists at this hash it is upserted (idempotent replay); when
// a different block already occupies this height (a reorg), that row's
// Consensus flag is flipped false before the new one is inserted as
// consensus, per I1.
func (s *Store) CommitBlock(ctx context.Context, cb CommittedBlock) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("begin commit tx for block %d: %w", cb.Block.Number, err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE blocks SET consensus = FALSE
		WHERE number = $1 AND hash <> $2 AND consensus = TRUE
	`, cb.Block.Number, cb.Block.Hash[:]); err != nil {
		return errtype.Wrap(errtype.KindPersistUpdate, fmt.Errorf("demoting stale block at height %d: %w", cb.Block.Number, err))
	}

	if err := upsertBlock(ctx, tx, cb.Block); err != nil {
		return err
	}
	for _, t := range cb.Transactions {
		if err := upsertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, l := range cb.Logs {
		if err := upsertLog(ctx, tx, l); err != nil {
			return err
		}
	}
	for _, it := range cb.InternalTransactions {
		if err := upsertInternalTransaction(ctx, tx, it); err != nil {
			return err
		}
	}
	for _, w := range cb.Withdrawals {
		if err := upsertWithdrawal(ctx, tx, w); err != nil {
			return err
		}
	}
	for _, tr := range cb.TokenTransfers {
		if err := upsertTokenTransfer(ctx, tx, tr); err != nil {
			return err
		}
	}
	for _, a := range cb.Addresses {
		if err := upsertAddress(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, t := range cb.Tokens {
		if err := upsertTokenShell(ctx, tx, t.ContractAddressHash, t.Type); err != nil {
			return err
		}
	}
	for _, b := range cb.AddressTokenBalances {
		if err := queueBalanceFetch(ctx, tx, b.Address, b.TokenContract, b.TokenID, b.BlockNumber, b.TokenType); err != nil {
			return err
		}
	}
	for _, b := range cb.AddressCurrentTokenBalances {
		if err := queueCurrentBalancePlaceholder(ctx, tx, b.Address, b.TokenContract, b.TokenID, b.BlockNumber, b.TokenType); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("committing block %d: %w", cb.Block.Number, err))
	}
	return nil
}

func upsertBlock(ctx context.Context, tx pgx.Tx, b chainmodel.Block) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO blocks (hash, number, parent_hash, miner, nonce, difficulty, total_difficulty,
			gas_limit, gas_used, base_fee_per_gas, size, timestamp, consensus, is_empty)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13)
		ON CONFLICT (hash) DO UPDATE SET
			number = EXCLUDED.number, parent_hash = EXCLUDED.parent_hash, miner = EXCLUDED.miner,
			nonce = EXCLUDED.nonce, difficulty = EXCLUDED.difficulty, total_difficulty = EXCLUDED.total_difficulty,
			gas_limit = EXCLUDED.gas_limit, gas_used = EXCLUDED.gas_used, base_fee_per_gas = EXCLUDED.base_fee_per_gas,
			size = EXCLUDED.size, timestamp = EXCLUDED.timestamp, consensus = TRUE, is_empty = EXCLUDED.is_empty
	`, b.Hash[:], b.Number, b.ParentHash[:], b.Miner[:], b.Nonce[:], b.Difficulty, b.TotalDifficulty,
		b.GasLimit, b.GasUsed, b.BaseFeePerGas, b.Size, b.Timestamp, b.IsEmpty)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("upserting block %d: %w", b.Number, err))
	}
	return nil
}

func upsertTransaction(ctx context.Context, tx pgx.Tx, t chainmodel.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (hash, block_hash, block_number, index, from_address, to_address,
			value, gas, gas_price, gas_used, cumulative_gas_used, max_fee_per_gas, max_priority_fee_per_gas,
			nonce, input, r, s, v, status, type, error, revert_reason, created_contract_address_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		ON CONFLICT (hash) DO UPDATE SET
			block_hash = EXCLUDED.block_hash, block_number = EXCLUDED.block_number, index = EXCLUDED.index,
			gas_used = EXCLUDED.gas_used, cumulative_gas_used = EXCLUDED.cumulative_gas_used,
			status = EXCLUDED.status, error = EXCLUDED.error, revert_reason = EXCLUDED.revert_reason,
			created_contract_address_hash = EXCLUDED.created_contract_address_hash
	`, t.Hash[:], hashBytes(t.BlockHash), t.BlockNumber, t.Index, t.From[:], addrBytes(t.To),
		t.Value, t.Gas, t.GasPrice, t.GasUsed, t.CumulativeGasUsed, t.MaxFeePerGas, t.MaxPriorityFeePerGas,
		t.Nonce, []byte(t.Input), []byte(t.R), []byte(t.S), t.V, t.Status, t.Type, t.Error, t.RevertReason,
		addrBytes(t.CreatedContractAddressHash))
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("upserting transaction %s: %w", t.Hash, err))
	}
	return nil
}

func upsertLog(ctx context.Context, tx pgx.Tx, l chainmodel.Log) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO logs (transaction_hash, index, address, data, first_topic, second_topic,
			third_topic, fourth_topic, block_hash, block_number, type)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (transaction_hash, index) DO UPDATE SET
			block_hash = EXCLUDED.block_hash, block_number = EXCLUDED.block_number
	`, l.TransactionHash[:], l.Index, addrBytes(l.Address), []byte(l.Data), hashBytes(l.FirstTopic),
		hashBytes(l.SecondTopic), hashBytes(l.ThirdTopic), hashBytes(l.FourthTopic), l.BlockHash[:],
		l.BlockNumber, l.Type)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("upserting log %s/%d: %w", l.TransactionHash, l.Index, err))
	}
	return nil
}

func upsertInternalTransaction(ctx context.Context, tx pgx.Tx, it chainmodel.InternalTransaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO internal_transactions (block_hash, block_index, type, call_type, from_address, to_address,
			created_contract_address_hash, trace_address, gas, gas_used, value, input, init, output,
			created_contract_code, error, transaction_hash, transaction_index, block_number, index)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (block_hash, block_index) DO NOTHING
	`, it.BlockHash[:], it.BlockIndex, it.Type, it.CallType, addrBytes(it.From), addrBytes(it.To),
		addrBytes(it.CreatedContractAddressHash), it.TraceAddress, it.Gas, it.GasUsed, it.Value,
		[]byte(it.Input), []byte(it.Init), []byte(it.Output), []byte(it.CreatedContractCode), it.Error,
		it.TransactionHash[:], it.TransactionIndex, it.BlockNumber, it.Index)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistCreate, fmt.Errorf("inserting internal tx at block %s/%d: %w", it.BlockHash, it.BlockIndex, err))
	}
	return nil
}

func upsertWithdrawal(ctx context.Context, tx pgx.Tx, w chainmodel.Withdrawal) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO withdrawals (index, validator_index, amount, address, block_hash)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (index) DO UPDATE SET block_hash = EXCLUDED.block_hash
	`, w.Index, w.ValidatorIndex, w.Amount, w.Address[:], w.BlockHash[:])
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("upserting withdrawal %d: %w", w.Index, err))
	}
	return nil
}

func upsertTokenTransfer(ctx context.Context, tx pgx.Tx, tr chainmodel.TokenTransfer) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO token_transfers (transaction_hash, log_index, from_address, to_address,
			token_contract_address_hash, amount, token_id, token_ids, amounts, block_hash, block_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (transaction_hash, log_index) DO NOTHING
	`, tr.TransactionHash[:], tr.LogIndex, tr.From[:], tr.To[:], tr.TokenContractAddressHash[:],
		tr.Amount, tr.TokenID, tr.TokenIDs, tr.Amounts, tr.BlockHash[:], tr.BlockNumber)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistCreate, fmt.Errorf("inserting token transfer %s/%d: %w", tr.TransactionHash, tr.LogIndex, err))
	}
	return nil
}

// upsertAddress implements §4.4's "upsert; update only nonce" policy for
// the Address entity: every other column (fetched coin balance, contract
// code, transaction counts) is populated by out-of-band refresh tasks, not
// by the sync driver, so a conflicting row must only ever move its nonce
// forward, never regress it or touch anything else.
func upsertAddress(ctx context.Context, tx pgx.Tx, a chainmodel.AddressRow) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO addresses (hash, nonce)
		VALUES ($1, $2)
		ON CONFLICT (hash) DO UPDATE SET
			nonce = CASE
				WHEN EXCLUDED.nonce IS NULL THEN addresses.nonce
				WHEN addresses.nonce IS NULL THEN EXCLUDED.nonce
				WHEN EXCLUDED.nonce > addresses.nonce THEN EXCLUDED.nonce
				ELSE addresses.nonce
			END
	`, a.Hash[:], a.Nonce)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("upserting address %s: %w", a.Hash, err))
	}
	return nil
}

func hashBytes(h *chainmodel.Hash) []byte {
	if h == nil {
		return nil
	}
	return h[:]
}

func addrBytes(a *chainmodel.Address) []byte {
	if a == nil {
		return nil
	}
	return a[:]
}

// LatestConsensusBlockNumber is the persisted counterpart to blockcache's
// in-memory high-water mark, used to seed the sync driver's starting height
// at startup (-1 when no consensus block is stored yet).
func (s *Store) LatestConsensusBlockNumber(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(number), -1) FROM blocks WHERE consensus = TRUE`).Scan(&n)
	if err != nil {
		return 0, errtype.Wrap(errtype.KindPersistQuery, fmt.Errorf("reading latest consensus block: %w", err))
	}
	return n, nil
}
