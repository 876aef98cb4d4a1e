package storage

import (
	"context"
	"fmt"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/errtype"
)

// QueueBalanceFetch records that (address, tokenContract, tokenID) needs
// its on-chain balance fetched as of blockNumber, creating the
// AddressTokenBalance placeholder row the balance-refresh task (§4 C7)
// later fills in. ValueFetchedAt stays NULL until the fetch succeeds.
func (s *Store) QueueBalanceFetch(ctx context.Context, addr, tokenContract chainmodel.Address, tokenID *chainmodel.Dec, blockNumber int64, tokenType chainmodel.TokenType) error {
	return queueBalanceFetch(ctx, s.pool, addr, tokenContract, tokenID, blockNumber, tokenType)
}

// queueBalanceFetch is the execer-scoped implementation CommitBlock calls
// against its own transaction, so a transfer's balance-fetch placeholders
// land atomically with the transfer row that created them.
func queueBalanceFetch(ctx context.Context, e execer, addr, tokenContract chainmodel.Address, tokenID *chainmodel.Dec, blockNumber int64, tokenType chainmodel.TokenType) error {
	_, err := e.Exec(ctx, `
		INSERT INTO address_token_balances (address, token_contract, token_id, block_number, token_type)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (address, token_contract, COALESCE(token_id, -1), block_number) DO NOTHING
	`, addr[:], tokenContract[:], tokenID, blockNumber, tokenType)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistCreate, fmt.Errorf("queuing balance fetch %s/%s: %w", addr, tokenContract, err))
	}
	return nil
}

// queueCurrentBalancePlaceholder advances the AddressCurrentTokenBalance
// max-block pointer to blockNumber and invalidates its stale value, so the
// row reflects "current balance as of a block we haven't fetched yet" until
// the balance-refresh task's ApplyBalanceFetch fills it back in.
func queueCurrentBalancePlaceholder(ctx context.Context, e execer, addr, tokenContract chainmodel.Address, tokenID *chainmodel.Dec, blockNumber int64, tokenType chainmodel.TokenType) error {
	_, err := e.Exec(ctx, `
		INSERT INTO address_current_token_balances (address, token_contract, token_id, block_number, value, value_fetched_at, token_type)
		VALUES ($1,$2,$3,$4,NULL,NULL,$5)
		ON CONFLICT (address, token_contract, COALESCE(token_id, -1)) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			token_type = EXCLUDED.token_type,
			value = NULL,
			value_fetched_at = NULL
		WHERE EXCLUDED.block_number > address_current_token_balances.block_number
	`, addr[:], tokenContract[:], tokenID, blockNumber, tokenType)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("queuing current balance placeholder %s/%s: %w", addr, tokenContract, err))
	}
	return nil
}

// PendingBalanceFetches returns rows with no fetched value yet, under the
// retry cap, the §4 C7 worklist.
func (s *Store) PendingBalanceFetches(ctx context.Context, maxRetries int32, limit int) ([]chainmodel.AddressTokenBalance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, token_contract, token_id, block_number, token_type, fetch_retry_count
		FROM address_token_balances
		WHERE value_fetched_at IS NULL AND fetch_retry_count < $1
		ORDER BY block_number
		LIMIT $2
	`, maxRetries, limit)
	if err != nil {
		return nil, errtype.Wrap(errtype.KindPersistQuery, fmt.Errorf("querying pending balance fetches: %w", err))
	}
	defer rows.Close()

	var out []chainmodel.AddressTokenBalance
	for rows.Next() {
		var b chainmodel.AddressTokenBalance
		var addrBytes, contractBytes []byte
		if err := rows.Scan(&addrBytes, &contractBytes, &b.TokenID, &b.BlockNumber, &b.TokenType, &b.FetchRetryCount); err != nil {
			return nil, errtype.Wrap(errtype.KindPersistQuery, fmt.Errorf("scanning pending balance row: %w", err))
		}
		b.Address = chainmodel.BytesToAddress(addrBytes)
		b.TokenContract = chainmodel.BytesToAddress(contractBytes)
		out = append(out, b)
	}
	return out, nil
}

// ApplyBalanceFetch records a successful fetch and upserts the
// corresponding AddressCurrentTokenBalance row if this is the highest
// block seen for that (address, token, tokenID) key, per §3's "max-block
// row" definition of the current-balance table.
func (s *Store) ApplyBalanceFetch(ctx context.Context, b chainmodel.AddressTokenBalance, value chainmodel.Dec, fetchedAt chainmodel.TS) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpdate, fmt.Errorf("begin apply balance fetch: %w", err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE address_token_balances SET value = $5, value_fetched_at = $6
		WHERE address = $1 AND token_contract = $2 AND COALESCE(token_id, -1) = COALESCE($3::numeric, -1) AND block_number = $4
	`, b.Address[:], b.TokenContract[:], b.TokenID, b.BlockNumber, value, fetchedAt); err != nil {
		return errtype.Wrap(errtype.KindPersistUpdate, fmt.Errorf("updating address_token_balances %s/%s: %w", b.Address, b.TokenContract, err))
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO address_current_token_balances (address, token_contract, token_id, block_number, value, value_fetched_at, token_type)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (address, token_contract, COALESCE(token_id, -1)) DO UPDATE SET
			block_number = EXCLUDED.block_number, value = EXCLUDED.value,
			value_fetched_at = EXCLUDED.value_fetched_at, token_type = EXCLUDED.token_type
		WHERE EXCLUDED.block_number >= address_current_token_balances.block_number
	`, b.Address[:], b.TokenContract[:], b.TokenID, b.BlockNumber, value, fetchedAt, b.TokenType); err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("upserting current balance %s/%s: %w", b.Address, b.TokenContract, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return errtype.Wrap(errtype.KindPersistUpdate, fmt.Errorf("committing balance fetch %s/%s: %w", b.Address, b.TokenContract, err))
	}
	return nil
}

// RecordBalanceFetchFailure increments the per-row retry counter
// (supplemented §3 field, grounded on the original fetcher's per-row retry
// cap).
func (s *Store) RecordBalanceFetchFailure(ctx context.Context, b chainmodel.AddressTokenBalance) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE address_token_balances SET fetch_retry_count = fetch_retry_count + 1
		WHERE address = $1 AND token_contract = $2 AND COALESCE(token_id, -1) = COALESCE($3::numeric, -1) AND block_number = $4
	`, b.Address[:], b.TokenContract[:], b.TokenID, b.BlockNumber)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpdate, fmt.Errorf("recording balance fetch failure %s/%s: %w", b.Address, b.TokenContract, err))
	}
	return nil
}
