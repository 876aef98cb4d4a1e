package chainmodel

// Block is keyed by Hash. Invariants I1–I3 (spec §3) are enforced by the
// persistence layer's unique indexes, not here — this is a pure value type.
type Block struct {
	Hash             Hash
	Number           int64
	ParentHash       Hash
	Miner            Address
	Nonce            [8]byte
	Difficulty       *Dec
	TotalDifficulty  *Dec
	GasLimit         Dec
	GasUsed          Dec
	BaseFeePerGas    *Dec
	Size             *int32
	Timestamp        TS
	Consensus        bool
	IsEmpty          bool
	RefetchNeeded    bool
}

// Transaction is keyed by Hash; block linkage fields are nullable while
// pending but the indexer only ever observes mined transactions.
type Transaction struct {
	Hash                     Hash
	BlockHash                *Hash
	BlockNumber              *int64
	Index                    *int32
	From                     Address
	To                       *Address
	Value                    Dec
	Gas                      Dec
	GasPrice                 *Dec
	GasUsed                  *Dec
	CumulativeGasUsed        *Dec
	MaxFeePerGas             *Dec
	MaxPriorityFeePerGas     *Dec
	Nonce                    int32
	Input                    Bytes
	R, S                     Bytes
	V                        Dec
	Status                   *int32
	Type                     *int32
	Error                    *string
	RevertReason             *string
	CreatedContractAddressHash *Address
	HasErrorInInternalTxs    bool
}

// Bytes is an opaque byte string, kept as a named type so call sites read
// clearly against raw []byte used for fixed-width fields.
type Bytes = []byte

// InternalTransaction is keyed by (BlockHash, BlockIndex) — a single node of
// a transaction's call tree.
type InternalTransaction struct {
	BlockHash                  Hash
	BlockIndex                 int32
	Type                       InternalTxType
	CallType                   *CallType
	From                       *Address
	To                         *Address
	CreatedContractAddressHash *Address
	TraceAddress               []int32
	Gas                        *Dec
	GasUsed                    *Dec
	Value                      Dec
	Input                      Bytes
	Init                       Bytes
	Output                     Bytes
	CreatedContractCode        Bytes
	Error                      *string
	TransactionHash            Hash
	TransactionIndex           int32
	BlockNumber                int32
	Index                      int32
}

// Log is keyed by (TransactionHash, Index).
type Log struct {
	TransactionHash Hash
	Index           int32
	Address         *Address
	Data            Bytes
	FirstTopic      *Hash
	SecondTopic     *Hash
	ThirdTopic      *Hash
	FourthTopic     *Hash
	BlockHash       Hash
	BlockNumber     int64
	Type            *string
}

// Token is keyed by ContractAddressHash.
type Token struct {
	ContractAddressHash        Address
	Type                       TokenType
	Name                       *string
	Symbol                     *string
	Decimals                   *Dec
	TotalSupply                *Dec
	TotalSupplyUpdatedAtBlock  *int64
	HolderCount                *int32
	Cataloged                  *bool
	SkipMetadata               bool
	ConsecutiveMetadataFailures int32
	FiatValue                  *Dec
	CirculatingMarketCap       *Dec
	IconURL                    *string
	IsVerifiedViaAdminPanel    *bool
}

// TokenTransfer is keyed by (TransactionHash, LogIndex).
type TokenTransfer struct {
	TransactionHash          Hash
	LogIndex                 int32
	From                     Address
	To                       Address
	TokenContractAddressHash Address
	Amount                   *Dec
	TokenID                  *Dec
	TokenIDs                 []Dec
	Amounts                  []Dec
	BlockHash                Hash
	BlockNumber              int64
}

// AddressTokenBalance's logical unique key is
// (Address, TokenContract, COALESCE(TokenID,-1), BlockNumber).
type AddressTokenBalance struct {
	Address            Address
	TokenContract       Address
	TokenID             *Dec
	BlockNumber         int64
	Value               *Dec
	ValueFetchedAt      *TS
	TokenType           TokenType
	FetchRetryCount     int32
}

// AddressCurrentTokenBalance's logical unique key is
// (Address, TokenContract, COALESCE(TokenID,-1)) — the max-block row.
type AddressCurrentTokenBalance struct {
	Address       Address
	TokenContract Address
	TokenID       *Dec
	BlockNumber   int64
	Value         *Dec
	ValueFetchedAt *TS
	TokenType     TokenType
}

// AddressRow is keyed by Hash (named to avoid colliding with the Address
// primitive type above).
type AddressRow struct {
	Hash                      Address
	FetchedCoinBalance        *Dec
	FetchedCoinBalanceBlockNo *int64
	ContractCode              Bytes
	Nonce                     *int64
	TransactionsCount         *int64
	TokenTransfersCount       *int64
}

// Withdrawal is keyed by Index (EIP-4895).
type Withdrawal struct {
	Index          int32
	ValidatorIndex int64
	Amount         Dec
	Address        Address
	BlockHash      Hash
}
