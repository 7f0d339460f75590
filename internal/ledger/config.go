package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Studio network defaults.
const (
	DefaultRPCURL                  = "https://studio.genlayer.com/api"
	DefaultChainID           int64 = 61999
	DefaultChainName               = "GenLayer Studio"
	DefaultSymbol                  = "GEN"
	DefaultReadRetries             = 3
	DefaultTimeout                 = 30 * time.Second
	DefaultInitialValidators       = 5
	DefaultMaxRotations            = 3
)

// DefaultConsensusMainAddress is the consensus main contract on Studio.
var DefaultConsensusMainAddress = common.HexToAddress("0xb7278A61aa25c888815aFC32Ad3cC52fF24fE575")

// Config describes the remote ledger and the analyzer contract on it.
// ReadAccount is sent as "from" on reads; the zero address is accepted.
type Config struct {
	RPCURL               string
	ChainID              int64
	ChainName            string
	Symbol               string
	ContractAddress      common.Address
	ConsensusMainAddress common.Address
	ReadAccount          common.Address
	ReadRetries          int
	Timeout              time.Duration
	NumInitialValidators int64
	MaxRotations         int64
}

// DefaultConfig returns a Studio configuration without a contract address.
func DefaultConfig() Config {
	return Config{
		RPCURL:               DefaultRPCURL,
		ChainID:              DefaultChainID,
		ChainName:            DefaultChainName,
		Symbol:               DefaultSymbol,
		ConsensusMainAddress: DefaultConsensusMainAddress,
		ReadRetries:          DefaultReadRetries,
		Timeout:              DefaultTimeout,
		NumInitialValidators: DefaultInitialValidators,
		MaxRotations:         DefaultMaxRotations,
	}
}
