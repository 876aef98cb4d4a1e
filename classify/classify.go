// Package classify implements the Token Transfer Classifier (§4 C3): it
// recognizes ERC-20/721/1155 transfer events among a block's decoded logs
// and turns them into TokenTransfer rows plus the token-type signal used to
// settle P7's strictness ordering when a contract emits more than one
// shape.
//
// Grounded on the teacher's fixed-topic-signature style (zk/syncer's
// rollupSequencedBatchesSignature, a hardcoded selector compared against a
// raw response prefix) generalized from "one hardcoded selector" to the
// fixed table of transfer-event topic0 signatures every ERC-20/721/1155
// contract shares, since there is no ABI-decoding dependency wired
// elsewhere in this project.
package classify

import (
	"github.com/traitmeta/evmindexer/chainmodel"
)

// Event topic0 signatures, computed once and hardcoded the way the
// teacher hardcodes rollupSequencedBatchesSignature rather than computing
// keccak256 of the event signature string at runtime.
const (
	// erc20TransferTopic is also ERC-721's Transfer signature; the two are
	// disambiguated by indexed-topic count and shape, not by topic0.
	erc20TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	erc1155SingleTopic = "0xc3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62"
	erc1155BatchTopic  = "0x4a39dc06d4c0dbc64b70af90fd698a233a518aa5d07e595d983b8c0526c8f7fb"
	// wethDepositTopic/wethWithdrawalTopic are WETH9's Deposit(address,uint256)
	// and Withdrawal(address,uint256) signatures. Neither is a Transfer event
	// at the ABI level, but §4.3 treats them as a zero-address mint/burn so
	// wrapping/unwrapping shows up in token_transfers like any other move.
	wethDepositTopic    = "0xe1fffcc4923d04b559f4d29a8bfc6cda04eb5b0d3c460751c2402c5c5cc9109c"
	wethWithdrawalTopic = "0x7fcf532c15f0a6db0bd6d0e038bea71d30d808c7d98cb3bf7268a95bf5081b65"
)

// Classify inspects one decoded Log and returns the TokenTransfer it
// represents, if any, plus the TokenType signal for P7. ok is false for
// logs that are not a recognized transfer event.
func Classify(l chainmodel.Log, blockHash chainmodel.Hash, blockNumber int64, txHash chainmodel.Hash) (transfer chainmodel.TokenTransfer, tokenType chainmodel.TokenType, ok bool) {
	if l.FirstTopic == nil || l.Address == nil {
		return chainmodel.TokenTransfer{}, "", false
	}

	switch l.FirstTopic.String() {
	case erc20TransferTopic:
		return classifyTransferTopic(l, blockHash, blockNumber, txHash)
	case erc1155SingleTopic:
		return classifyERC1155Single(l, blockHash, blockNumber, txHash)
	case erc1155BatchTopic:
		return classifyERC1155Batch(l, blockHash, blockNumber, txHash)
	case wethDepositTopic:
		return classifyWETHDeposit(l, blockHash, blockNumber, txHash)
	case wethWithdrawalTopic:
		return classifyWETHWithdrawal(l, blockHash, blockNumber, txHash)
	default:
		return chainmodel.TokenTransfer{}, "", false
	}
}

// classifyTransferTopic handles every shape a contract emitting the shared
// ERC-20/ERC-721 Transfer(from, to, value|tokenId) signature might use,
// per §4.3's disambiguation table:
//
//   - from, to, tokenId all indexed            -> ERC-721
//   - from, to indexed, value in Data           -> ERC-20 (the common case)
//   - only from indexed, to+value in Data       -> ERC-20 (legacy/WETH-style
//     contracts that index just the sender)
//   - nothing indexed, from+to+tokenId in Data  -> ERC-721 (contracts that
//     declare the event non-indexed entirely)
func classifyTransferTopic(l chainmodel.Log, blockHash chainmodel.Hash, blockNumber int64, txHash chainmodel.Hash) (chainmodel.TokenTransfer, chainmodel.TokenType, bool) {
	base := chainmodel.TokenTransfer{
		TransactionHash:          txHash,
		LogIndex:                 l.Index,
		TokenContractAddressHash: *l.Address,
		BlockHash:                blockHash,
		BlockNumber:              blockNumber,
	}

	switch {
	case l.SecondTopic != nil && l.ThirdTopic != nil:
		transfer := base
		transfer.From = chainmodel.BytesToAddress(l.SecondTopic[:])
		transfer.To = chainmodel.BytesToAddress(l.ThirdTopic[:])
		if l.FourthTopic != nil {
			tokenID := decFromBytes(l.FourthTopic[:])
			transfer.TokenID = &tokenID
			return transfer, chainmodel.TokenTypeERC721, true
		}
		amount := decFromBytes(l.Data)
		transfer.Amount = &amount
		return transfer, chainmodel.TokenTypeERC20, true

	case l.SecondTopic != nil && l.ThirdTopic == nil && l.FourthTopic == nil && len(l.Data) >= 64:
		transfer := base
		transfer.From = chainmodel.BytesToAddress(l.SecondTopic[:])
		transfer.To = chainmodel.BytesToAddress(l.Data[:32])
		amount := decFromBytes(l.Data[32:64])
		transfer.Amount = &amount
		return transfer, chainmodel.TokenTypeERC20, true

	case l.SecondTopic == nil && l.ThirdTopic == nil && l.FourthTopic == nil && len(l.Data) >= 96:
		transfer := base
		transfer.From = chainmodel.BytesToAddress(l.Data[:32])
		transfer.To = chainmodel.BytesToAddress(l.Data[32:64])
		tokenID := decFromBytes(l.Data[64:96])
		transfer.TokenID = &tokenID
		return transfer, chainmodel.TokenTypeERC721, true

	default:
		return chainmodel.TokenTransfer{}, "", false
	}
}

// classifyWETHDeposit turns Deposit(address indexed dst, uint256 wad) into a
// zero-address mint: wrapping ETH into WETH has no "from" on the ERC-20
// surface, so the zero address stands in for it, matching how wrapped-token
// explorers report wrap/unwrap as transfers.
func classifyWETHDeposit(l chainmodel.Log, blockHash chainmodel.Hash, blockNumber int64, txHash chainmodel.Hash) (chainmodel.TokenTransfer, chainmodel.TokenType, bool) {
	if l.SecondTopic == nil {
		return chainmodel.TokenTransfer{}, "", false
	}
	amount := decFromBytes(l.Data)
	return chainmodel.TokenTransfer{
		TransactionHash:          txHash,
		LogIndex:                 l.Index,
		From:                     chainmodel.ZeroAddress,
		To:                       chainmodel.BytesToAddress(l.SecondTopic[:]),
		TokenContractAddressHash: *l.Address,
		Amount:                   &amount,
		BlockHash:                blockHash,
		BlockNumber:              blockNumber,
	}, chainmodel.TokenTypeERC20, true
}

// classifyWETHWithdrawal turns Withdrawal(address indexed src, uint256 wad)
// into a zero-address burn, the mirror image of classifyWETHDeposit.
func classifyWETHWithdrawal(l chainmodel.Log, blockHash chainmodel.Hash, blockNumber int64, txHash chainmodel.Hash) (chainmodel.TokenTransfer, chainmodel.TokenType, bool) {
	if l.SecondTopic == nil {
		return chainmodel.TokenTransfer{}, "", false
	}
	amount := decFromBytes(l.Data)
	return chainmodel.TokenTransfer{
		TransactionHash:          txHash,
		LogIndex:                 l.Index,
		From:                     chainmodel.BytesToAddress(l.SecondTopic[:]),
		To:                       chainmodel.ZeroAddress,
		TokenContractAddressHash: *l.Address,
		Amount:                   &amount,
		BlockHash:                blockHash,
		BlockNumber:              blockNumber,
	}, chainmodel.TokenTypeERC20, true
}

func classifyERC1155Single(l chainmodel.Log, blockHash chainmodel.Hash, blockNumber int64, txHash chainmodel.Hash) (chainmodel.TokenTransfer, chainmodel.TokenType, bool) {
	if l.ThirdTopic == nil || l.FourthTopic == nil || len(l.Data) < 64 {
		return chainmodel.TokenTransfer{}, "", false
	}
	from := chainmodel.BytesToAddress(l.ThirdTopic[:])
	to := chainmodel.BytesToAddress(l.FourthTopic[:])
	tokenID := decFromBytes(l.Data[:32])
	amount := decFromBytes(l.Data[32:64])

	return chainmodel.TokenTransfer{
		TransactionHash:          txHash,
		LogIndex:                 l.Index,
		From:                     from,
		To:                       to,
		TokenContractAddressHash: *l.Address,
		TokenID:                  &tokenID,
		Amount:                   &amount,
		BlockHash:                blockHash,
		BlockNumber:              blockNumber,
	}, chainmodel.TokenTypeERC1155, true
}

// classifyERC1155Batch decodes TransferBatch(operator, from, to, ids[],
// values[]) — the only transfer shape that produces a single TokenTransfer
// row carrying parallel TokenIDs/Amounts slices rather than one scalar
// pair, per spec §3's TokenTransfer shape.
func classifyERC1155Batch(l chainmodel.Log, blockHash chainmodel.Hash, blockNumber int64, txHash chainmodel.Hash) (chainmodel.TokenTransfer, chainmodel.TokenType, bool) {
	if l.ThirdTopic == nil || l.FourthTopic == nil {
		return chainmodel.TokenTransfer{}, "", false
	}
	from := chainmodel.BytesToAddress(l.ThirdTopic[:])
	to := chainmodel.BytesToAddress(l.FourthTopic[:])

	ids, amounts := decodeDynamicArrayPair(l.Data)

	return chainmodel.TokenTransfer{
		TransactionHash:          txHash,
		LogIndex:                 l.Index,
		From:                     from,
		To:                       to,
		TokenContractAddressHash: *l.Address,
		TokenIDs:                 ids,
		Amounts:                  amounts,
		BlockHash:                blockHash,
		BlockNumber:              blockNumber,
	}, chainmodel.TokenTypeERC1155, true
}

// decodeDynamicArrayPair decodes the ABI-encoded (uint256[], uint256[])
// pair TransferBatch's Data carries: two dynamic arrays, each a 32-byte
// length word followed by that many 32-byte elements, offset by the two
// leading 32-byte offset words ABI tuple encoding prefixes them with.
func decodeDynamicArrayPair(data []byte) ([]chainmodel.Dec, []chainmodel.Dec) {
	if len(data) < 64 {
		return nil, nil
	}
	idsOffset := decFromBytes(data[:32])
	valuesOffset := decFromBytes(data[32:64])

	ids := decodeDynamicArray(data, idsOffset)
	values := decodeDynamicArray(data, valuesOffset)
	return ids, values
}

func decodeDynamicArray(data []byte, offsetDec chainmodel.Dec) []chainmodel.Dec {
	offset := offsetDec.IntPart()
	if offset < 0 || int(offset)+32 > len(data) {
		return nil
	}
	lengthWord := data[offset : offset+32]
	length := decFromBytes(lengthWord).IntPart()
	start := offset + 32
	out := make([]chainmodel.Dec, 0, length)
	for i := int64(0); i < length; i++ {
		s := start + i*32
		if int(s)+32 > len(data) {
			break
		}
		out = append(out, decFromBytes(data[s:s+32]))
	}
	return out
}

func decFromBytes(b []byte) chainmodel.Dec {
	if len(b) == 0 {
		return chainmodel.DecFromUint64(0)
	}
	trimmed := b
	for len(trimmed) > 1 && trimmed[0] == 0 {
		trimmed = trimmed[1:]
	}
	if len(trimmed) > 32 {
		trimmed = trimmed[len(trimmed)-32:]
	}
	var padded [32]byte
	copy(padded[32-len(trimmed):], trimmed)
	u := new(chainmodel.U256).SetBytes(padded[:])
	return chainmodel.DecFromU256(u)
}
