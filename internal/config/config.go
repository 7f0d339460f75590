// Package config loads steakboard settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/paginator"
	"github.com/proofofsteak/steakboard/internal/submission"
	"github.com/proofofsteak/steakboard/internal/upload"
)

// Environment keys.
const (
	KeyRPCURL               = "GENLAYER_RPC_URL"
	KeyChainID              = "GENLAYER_CHAIN_ID"
	KeyChainName            = "GENLAYER_CHAIN_NAME"
	KeySymbol               = "GENLAYER_SYMBOL"
	KeyContractAddress      = "CONTRACT_ADDRESS"
	KeyConsensusMainAddress = "CONSENSUS_MAIN_ADDRESS"
	KeyReadRetries          = "READ_RETRIES"
	KeyRPCTimeout           = "RPC_TIMEOUT"
	KeyCloudName            = "CLOUDINARY_CLOUD_NAME"
	KeyCloudAPIKey          = "CLOUDINARY_API_KEY"
	KeyCloudAPISecret       = "CLOUDINARY_API_SECRET"
	KeyPageSize             = "PAGE_SIZE"
	KeyPollInterval         = "POLL_INTERVAL"
	KeyPollRetries          = "POLL_RETRIES"
	KeyPort                 = "PORT"
	KeyCORSOrigins          = "CORS_ORIGINS"
	KeyPrivateKey           = "STEAKBOARD_PRIVATE_KEY"
	KeyLogLevel             = "LOG_LEVEL"
)

type Config struct {
	Ledger       ledger.Config
	Upload       upload.Config
	PageSize     int
	PollInterval time.Duration
	PollRetries  int
	Port         string
	CORSOrigins  []string
	PrivateKeys  []string
	LogLevel     slog.Level
}

// New returns a viper instance bound to the environment with defaults set.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault(KeyRPCURL, ledger.DefaultRPCURL)
	v.SetDefault(KeyChainID, ledger.DefaultChainID)
	v.SetDefault(KeyChainName, ledger.DefaultChainName)
	v.SetDefault(KeySymbol, ledger.DefaultSymbol)
	v.SetDefault(KeyConsensusMainAddress, ledger.DefaultConsensusMainAddress.Hex())
	v.SetDefault(KeyReadRetries, ledger.DefaultReadRetries)
	v.SetDefault(KeyRPCTimeout, ledger.DefaultTimeout)
	v.SetDefault(KeyPageSize, paginator.DefaultPageSize)
	v.SetDefault(KeyPollInterval, submission.DefaultInterval)
	v.SetDefault(KeyPollRetries, submission.DefaultAttempts)
	v.SetDefault(KeyPort, "8888")
	v.SetDefault(KeyCORSOrigins, "*")
	v.SetDefault(KeyLogLevel, "INFO")
	return v
}

// Load reads and validates the configuration. Every problem found is
// reported, not just the first.
func Load(v *viper.Viper) (*Config, error) {
	var result *multierror.Error

	cfg := &Config{
		PageSize:     v.GetInt(KeyPageSize),
		PollInterval: v.GetDuration(KeyPollInterval),
		PollRetries:  v.GetInt(KeyPollRetries),
		Port:         v.GetString(KeyPort),
		CORSOrigins:  splitList(v.GetString(KeyCORSOrigins)),
		PrivateKeys:  splitList(v.GetString(KeyPrivateKey)),
		Upload: upload.Config{
			CloudName: v.GetString(KeyCloudName),
			APIKey:    v.GetString(KeyCloudAPIKey),
			APISecret: v.GetString(KeyCloudAPISecret),
			Folder:    upload.Folder,
		},
	}

	cfg.Ledger = ledger.DefaultConfig()
	cfg.Ledger.RPCURL = v.GetString(KeyRPCURL)
	cfg.Ledger.ChainID = v.GetInt64(KeyChainID)
	cfg.Ledger.ChainName = v.GetString(KeyChainName)
	cfg.Ledger.Symbol = v.GetString(KeySymbol)
	cfg.Ledger.ReadRetries = v.GetInt(KeyReadRetries)
	cfg.Ledger.Timeout = v.GetDuration(KeyRPCTimeout)

	contract := v.GetString(KeyContractAddress)
	switch {
	case contract == "":
		result = multierror.Append(result, fmt.Errorf("%s is required", KeyContractAddress))
	case !common.IsHexAddress(contract):
		result = multierror.Append(result, fmt.Errorf("%s %q is not an address", KeyContractAddress, contract))
	default:
		cfg.Ledger.ContractAddress = common.HexToAddress(contract)
	}

	consensus := v.GetString(KeyConsensusMainAddress)
	if !common.IsHexAddress(consensus) {
		result = multierror.Append(result, fmt.Errorf("%s %q is not an address", KeyConsensusMainAddress, consensus))
	} else {
		cfg.Ledger.ConsensusMainAddress = common.HexToAddress(consensus)
	}

	if cfg.Ledger.RPCURL == "" {
		result = multierror.Append(result, fmt.Errorf("%s is required", KeyRPCURL))
	}
	if cfg.Ledger.ChainID <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s must be positive", KeyChainID))
	}
	if cfg.PageSize <= 0 || cfg.PageSize > ledger.MaxPageSize {
		result = multierror.Append(result, fmt.Errorf("%s must be between 1 and %d", KeyPageSize, ledger.MaxPageSize))
	}
	if cfg.PollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s must be positive", KeyPollInterval))
	}
	if cfg.PollRetries <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s must be positive", KeyPollRetries))
	}
	if cfg.Upload.Configured() {
		if err := cfg.Upload.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	level, err := ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		result = multierror.Append(result, err)
	}
	cfg.LogLevel = level

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseLevel accepts DEBUG, INFO, WARN or ERROR in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("%s %q is not a log level", KeyLogLevel, s)
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
