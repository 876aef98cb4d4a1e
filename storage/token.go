package storage

import (
	"context"
	"fmt"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/errtype"
)

// UpsertTokenShell records that a contract address has been observed
// emitting a transfer event, creating its Token row if absent (Cataloged
// left NULL so the token-metadata task knows to fetch it). An existing row
// is left unchanged: the first stored Type wins.
func (s *Store) UpsertTokenShell(ctx context.Context, addr chainmodel.Address, observedType chainmodel.TokenType) error {
	return upsertTokenShell(ctx, s.pool, addr, observedType)
}

// upsertTokenShell is the execer-scoped implementation CommitBlock calls
// against its own transaction so a token shell lands atomically with the
// rest of the height it was first observed in.
func upsertTokenShell(ctx context.Context, e execer, addr chainmodel.Address, observedType chainmodel.TokenType) error {
	_, err := e.Exec(ctx, `
		INSERT INTO tokens (contract_address_hash, type)
		VALUES ($1, $2)
		ON CONFLICT (contract_address_hash) DO NOTHING
	`, addr[:], observedType)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpsert, fmt.Errorf("upserting token shell %s: %w", addr, err))
	}
	return nil
}

// TokensNeedingMetadata returns tokens the metadata task (§4 C6) should
// fetch: those not yet cataloged (a cataloged token is never returned
// again), skipping anything past the failure cap so a permanently-broken
// contract stops being retried every tick.
func (s *Store) TokensNeedingMetadata(ctx context.Context, maxConsecutiveFailures int32, limit int) ([]chainmodel.Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT contract_address_hash, type, name, symbol, decimals, total_supply,
			total_supply_updated_at_block, holder_count, cataloged, skip_metadata, consecutive_metadata_failures
		FROM tokens
		WHERE skip_metadata = FALSE
			AND consecutive_metadata_failures < $1
			AND (cataloged IS NULL OR cataloged = FALSE)
		ORDER BY contract_address_hash
		LIMIT $2
	`, maxConsecutiveFailures, limit)
	if err != nil {
		return nil, errtype.Wrap(errtype.KindPersistQuery, fmt.Errorf("querying tokens needing metadata: %w", err))
	}
	defer rows.Close()

	var out []chainmodel.Token
	for rows.Next() {
		var t chainmodel.Token
		var addrBytes []byte
		if err := rows.Scan(&addrBytes, &t.Type, &t.Name, &t.Symbol, &t.Decimals, &t.TotalSupply,
			&t.TotalSupplyUpdatedAtBlock, &t.HolderCount, &t.Cataloged, &t.SkipMetadata, &t.ConsecutiveMetadataFailures); err != nil {
			return nil, errtype.Wrap(errtype.KindPersistQuery, fmt.Errorf("scanning token row: %w", err))
		}
		t.ContractAddressHash = chainmodel.BytesToAddress(addrBytes)
		out = append(out, t)
	}
	return out, nil
}

// ApplyTokenMetadata records a successful metadata fetch, resetting the
// consecutive-failure counter (supplemented feature, grounded on the
// original token-task's persisted-failure-counter handling).
func (s *Store) ApplyTokenMetadata(ctx context.Context, addr chainmodel.Address, name, symbol *string, decimals *chainmodel.Dec) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tokens SET name = $2, symbol = $3, decimals = $4, cataloged = TRUE, consecutive_metadata_failures = 0
		WHERE contract_address_hash = $1
	`, addr[:], name, symbol, decimals)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpdate, fmt.Errorf("applying token metadata %s: %w", addr, err))
	}
	return nil
}

// RecordTokenMetadataFailure increments the persisted failure counter;
// once it reaches the configured cap the caller is expected to set
// SkipMetadata via SkipTokenMetadata.
func (s *Store) RecordTokenMetadataFailure(ctx context.Context, addr chainmodel.Address) (int32, error) {
	var n int32
	err := s.pool.QueryRow(ctx, `
		UPDATE tokens SET consecutive_metadata_failures = consecutive_metadata_failures + 1
		WHERE contract_address_hash = $1
		RETURNING consecutive_metadata_failures
	`, addr[:]).Scan(&n)
	if err != nil {
		return 0, errtype.Wrap(errtype.KindPersistUpdate, fmt.Errorf("recording token metadata failure %s: %w", addr, err))
	}
	return n, nil
}

func (s *Store) SkipTokenMetadata(ctx context.Context, addr chainmodel.Address) error {
	_, err := s.pool.Exec(ctx, `UPDATE tokens SET skip_metadata = TRUE WHERE contract_address_hash = $1`, addr[:])
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpdate, fmt.Errorf("skipping token metadata %s: %w", addr, err))
	}
	return nil
}

// StaleTotalSupplyTokens returns cataloged ERC-20 tokens whose total
// supply was last refreshed before the given height, the on-demand
// staleness trigger the original total-supply task drives off of
// (supplemented feature).
func (s *Store) StaleTotalSupplyTokens(ctx context.Context, beforeBlock int64, limit int) ([]chainmodel.Address, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT contract_address_hash FROM tokens
		WHERE type = 'ERC-20' AND cataloged = TRUE
			AND (total_supply_updated_at_block IS NULL OR total_supply_updated_at_block < $1)
		ORDER BY contract_address_hash
		LIMIT $2
	`, beforeBlock, limit)
	if err != nil {
		return nil, errtype.Wrap(errtype.KindPersistQuery, fmt.Errorf("querying stale total supply tokens: %w", err))
	}
	defer rows.Close()

	var out []chainmodel.Address
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, errtype.Wrap(errtype.KindPersistQuery, fmt.Errorf("scanning stale total supply row: %w", err))
		}
		out = append(out, chainmodel.BytesToAddress(b))
	}
	return out, nil
}

func (s *Store) ApplyTotalSupply(ctx context.Context, addr chainmodel.Address, totalSupply chainmodel.Dec, atBlock int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tokens SET total_supply = $2, total_supply_updated_at_block = $3
		WHERE contract_address_hash = $1
	`, addr[:], totalSupply, atBlock)
	if err != nil {
		return errtype.Wrap(errtype.KindPersistUpdate, fmt.Errorf("applying total supply %s: %w", addr, err))
	}
	return nil
}
