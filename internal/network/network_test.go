package network

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/ledger/ledgertest"
)

type countingCache struct {
	invalidations int
}

func (c *countingCache) InvalidateAll() {
	c.invalidations++
}

func dialWallet(t *testing.T, node *ledgertest.Node) *RPCWallet {
	t.Helper()
	cfg := ledger.DefaultConfig()
	cfg.RPCURL = node.URL()
	cfg.ReadRetries = 0
	caller, err := ledger.DialRPC(context.Background(), cfg)
	if err != nil {
		t.Fatalf("DialRPC returned error: %v", err)
	}
	t.Cleanup(caller.Close)
	return NewRPCWallet(caller)
}

func TestEnsure(t *testing.T) {
	tests := []struct {
		name          string
		walletChain   int64
		known         bool
		expectedAdds  int
		expectedFlush int
	}{
		{name: "already on chain", walletChain: ledger.DefaultChainID, known: true, expectedAdds: 0, expectedFlush: 0},
		{name: "switch to known chain", walletChain: 1, known: true, expectedAdds: 0, expectedFlush: 1},
		{name: "add unknown chain then switch", walletChain: 1, known: false, expectedAdds: 1, expectedFlush: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := ledgertest.NewNode()
			defer node.Close()
			node.ChainID = tt.walletChain
			node.Known[tt.walletChain] = true
			if tt.known {
				node.Known[ledger.DefaultChainID] = true
			}

			cache := &countingCache{}
			guard := NewGuard(DefaultChain(), cache)

			if err := guard.Ensure(context.Background(), dialWallet(t, node)); err != nil {
				t.Fatalf("Ensure returned error: %v", err)
			}
			node.Lock()
			current := node.ChainID
			node.Unlock()
			if current != ledger.DefaultChainID {
				t.Errorf("Expected wallet on chain %d, got %d", ledger.DefaultChainID, current)
			}
			if got := node.CallCount("wallet_addEthereumChain"); got != tt.expectedAdds {
				t.Errorf("Expected %d add calls, got %d", tt.expectedAdds, got)
			}
			if cache.invalidations != tt.expectedFlush {
				t.Errorf("Expected %d invalidations, got %d", tt.expectedFlush, cache.invalidations)
			}
		})
	}
}

func TestEnsureReportsMismatch(t *testing.T) {
	node := ledgertest.NewNode()
	defer node.Close()
	node.Failures["wallet_switchEthereumChain"] = "User rejected the request"

	cache := &countingCache{}
	err := NewGuard(DefaultChain(), cache).Ensure(context.Background(), dialWallet(t, node))

	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected *MismatchError, got %v", err)
	}
	if mismatch.Actual != 1 || !strings.Contains(err.Error(), "switch your wallet to GenLayer Studio") {
		t.Errorf("Unexpected mismatch message: %v", err)
	}
	if node.CallCount("wallet_addEthereumChain") != 0 {
		t.Error("Expected no add for a non-4902 failure")
	}
	if cache.invalidations != 0 {
		t.Error("Expected cache to survive a failed switch")
	}
}
