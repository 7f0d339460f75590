// Package network makes sure a wallet is on the expected chain before any
// write is signed.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/proofofsteak/steakboard/internal/ledger"
)

// UnknownChainCode is the wallet error code for a chain it has not registered.
const UnknownChainCode = 4902

// Chain describes a network the wallet can be pointed at.
type Chain struct {
	ID       int64
	Name     string
	Symbol   string
	Decimals int
	RPCURL   string
}

// DefaultChain is GenLayer Studio.
func DefaultChain() Chain {
	return ChainFromConfig(ledger.DefaultConfig())
}

func ChainFromConfig(cfg ledger.Config) Chain {
	return Chain{
		ID:       cfg.ChainID,
		Name:     cfg.ChainName,
		Symbol:   cfg.Symbol,
		Decimals: 18,
		RPCURL:   cfg.RPCURL,
	}
}

// Wallet is the provider side of a connected wallet.
type Wallet interface {
	ChainID(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, id int64) error
	AddChain(ctx context.Context, chain Chain) error
}

// Invalidator drops handles bound to the previous network.
type Invalidator interface {
	InvalidateAll()
}

// MismatchError tells the user to change networks by hand.
type MismatchError struct {
	Expected Chain
	Actual   int64
	Err      error
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("wallet is on chain %d; please switch your wallet to %s (chain %d): %v",
		e.Actual, e.Expected.Name, e.Expected.ID, e.Err)
}

func (e *MismatchError) Unwrap() error {
	return e.Err
}

type Guard struct {
	Chain Chain
	Cache Invalidator
}

func NewGuard(chain Chain, cache Invalidator) *Guard {
	return &Guard{Chain: chain, Cache: cache}
}

// Ensure switches wallet to the guard's chain when it is elsewhere, adding
// the chain first if the wallet does not know it. Cached ledger handles are
// invalidated after a switch.
func (g *Guard) Ensure(ctx context.Context, wallet Wallet) error {
	current, err := wallet.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read wallet chain: %w", err)
	}
	if current == g.Chain.ID {
		return nil
	}

	slog.Info("Wallet on unexpected chain, switching", "current", current, "expected", g.Chain.ID)

	err = wallet.SwitchChain(ctx, g.Chain.ID)
	if err != nil && isUnknownChain(err) {
		slog.Info("Chain unknown to wallet, adding it", "chain", g.Chain.Name)
		if addErr := wallet.AddChain(ctx, g.Chain); addErr != nil {
			return &MismatchError{Expected: g.Chain, Actual: current, Err: addErr}
		}
		err = wallet.SwitchChain(ctx, g.Chain.ID)
	}
	if err != nil {
		return &MismatchError{Expected: g.Chain, Actual: current, Err: err}
	}

	if g.Cache != nil {
		g.Cache.InvalidateAll()
	}
	return nil
}

func isUnknownChain(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == UnknownChainCode
	}
	return false
}

// RPCWallet talks to a wallet endpoint over JSON-RPC.
type RPCWallet struct {
	rpc ledger.Caller
}

func NewRPCWallet(caller ledger.Caller) *RPCWallet {
	return &RPCWallet{rpc: caller}
}

func (w *RPCWallet) ChainID(ctx context.Context) (int64, error) {
	var id hexutil.Big
	if err := w.rpc.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return id.ToInt().Int64(), nil
}

type switchChainParams struct {
	ChainID *hexutil.Big `json:"chainId"`
}

func (w *RPCWallet) SwitchChain(ctx context.Context, id int64) error {
	return w.rpc.CallContext(ctx, nil, "wallet_switchEthereumChain", switchChainParams{ChainID: (*hexutil.Big)(big.NewInt(id))})
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type addChainParams struct {
	ChainID        *hexutil.Big   `json:"chainId"`
	ChainName      string         `json:"chainName"`
	NativeCurrency nativeCurrency `json:"nativeCurrency"`
	RPCURLs        []string       `json:"rpcUrls"`
}

func (w *RPCWallet) AddChain(ctx context.Context, chain Chain) error {
	return w.rpc.CallContext(ctx, nil, "wallet_addEthereumChain", addChainParams{
		ChainID:   (*hexutil.Big)(big.NewInt(chain.ID)),
		ChainName: chain.Name,
		NativeCurrency: nativeCurrency{
			Name:     chain.Symbol,
			Symbol:   chain.Symbol,
			Decimals: chain.Decimals,
		},
		RPCURLs: []string{chain.RPCURL},
	})
}
