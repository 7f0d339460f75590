package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/ledger/ledgertest"
	"github.com/proofofsteak/steakboard/internal/paginator"
	"github.com/proofofsteak/steakboard/internal/records"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var walletA = "0x1111111111111111111111111111111111111111"

func seedNode(n *ledgertest.Node, count int) {
	for i := 0; i < count; i++ {
		n.Records = append(n.Records, map[string]any{
			"id":               i,
			"category":         "steak",
			"name":             fmt.Sprintf("cut-%d", i),
			"score":            1000 - i,
			"caller_address":   walletA,
			"consensus_output": fmt.Sprintf(`{"score":%d,"reasoning":"ok"}`, 1000-i),
		})
	}
}

func testConfig(url string) ledger.Config {
	cfg := ledger.DefaultConfig()
	cfg.RPCURL = url
	cfg.ReadRetries = 0
	cfg.Timeout = 5 * time.Second
	cfg.ContractAddress = common.HexToAddress("0x2222222222222222222222222222222222222222")
	return cfg
}

func TestAnalysisByCategoryClampsPages(t *testing.T) {
	node := ledgertest.NewNode()
	defer node.Close()
	seedNode(node, 25)

	cache := ledger.NewCache(testConfig(node.URL()), nil, nil)
	defer cache.Close()

	reader, err := cache.Reader(context.Background())
	if err != nil {
		t.Fatalf("Reader returned error: %v", err)
	}

	page, err := reader.AnalysisByCategory(context.Background(), "steak", 0, 50)
	if err != nil {
		t.Fatalf("AnalysisByCategory returned error: %v", err)
	}
	if page.ReturnedCount != 10 || len(page.Records) != 10 {
		t.Errorf("Expected 10 records, got returned=%d len=%d", page.ReturnedCount, len(page.Records))
	}
	if !page.HasMore || page.TotalCount != 25 {
		t.Errorf("Expected has_more with 25 total, got %v/%d", page.HasMore, page.TotalCount)
	}
	if page.Records[0].Rank != 1 || page.Records[0].Name != "cut-0" {
		t.Errorf("Expected first ranked record, got %+v", page.Records[0])
	}
	if page.Records[0].Score == nil || *page.Records[0].Score != 1000 {
		t.Errorf("Expected score 1000, got %v", page.Records[0].Score)
	}

	last, err := reader.AnalysisByCategory(context.Background(), "steak", 20, 10)
	if err != nil {
		t.Fatalf("AnalysisByCategory returned error: %v", err)
	}
	if last.ReturnedCount != 5 || last.HasMore || last.StartIndex != 20 {
		t.Errorf("Unexpected last page: returned=%d has_more=%v start=%d", last.ReturnedCount, last.HasMore, last.StartIndex)
	}
}

func TestAnalysesByWallet(t *testing.T) {
	node := ledgertest.NewNode()
	defer node.Close()
	seedNode(node, 3)

	cache := ledger.NewCache(testConfig(node.URL()), nil, nil)
	defer cache.Close()
	reader, _ := cache.Reader(context.Background())

	page, err := reader.AnalysesByWallet(context.Background(), walletA, 0, 10)
	if err != nil {
		t.Fatalf("AnalysesByWallet returned error: %v", err)
	}
	if len(page.Records) != 3 {
		t.Errorf("Expected 3 wallet records, got %d", len(page.Records))
	}

	if _, err := reader.AnalysesByWallet(context.Background(), "not-an-address", 0, 10); !errors.Is(err, ledger.ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress, got %v", err)
	}
	if node.CallCount("gen_call") != 1 {
		t.Errorf("Expected invalid address to skip the network, got %d calls", node.CallCount("gen_call"))
	}
}

func TestAnalysisByID(t *testing.T) {
	node := ledgertest.NewNode()
	defer node.Close()
	seedNode(node, 3)

	cache := ledger.NewCache(testConfig(node.URL()), nil, nil)
	defer cache.Close()
	reader, _ := cache.Reader(context.Background())

	raw, found, err := reader.AnalysisByID(context.Background(), 2)
	if err != nil || !found {
		t.Fatalf("Expected record 2, got found=%v err=%v", found, err)
	}
	if raw.ID != 2 || raw.Name != "cut-2" {
		t.Errorf("Unexpected record: %+v", raw)
	}

	_, found, err = reader.AnalysisByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("AnalysisByID returned error: %v", err)
	}
	if found {
		t.Error("Expected empty object to mean not found")
	}
}

func TestTransactionStatus(t *testing.T) {
	tests := []struct {
		name     string
		script   []any
		expected string
	}{
		{name: "name", script: []any{"accepted"}, expected: ledger.StatusAccepted},
		{name: "number", script: []any{7}, expected: ledger.StatusFinalized},
		{name: "numeric string", script: []any{"8"}, expected: ledger.StatusCanceled},
		{name: "unknown", script: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := ledgertest.NewNode()
			defer node.Close()
			handle := "0xabc"
			if tt.script != nil {
				node.Statuses[handle] = tt.script
			}

			cache := ledger.NewCache(testConfig(node.URL()), nil, nil)
			defer cache.Close()

			receipt, err := cache.TransactionStatus(context.Background(), handle)
			if err != nil {
				t.Fatalf("TransactionStatus returned error: %v", err)
			}
			if receipt.Status != tt.expected {
				t.Errorf("Expected status %q, got %q", tt.expected, receipt.Status)
			}
			if receipt.Handle != handle {
				t.Errorf("Expected handle %s, got %s", handle, receipt.Handle)
			}
		})
	}
}

func TestWriteContractSignsAndSends(t *testing.T) {
	node := ledgertest.NewNode()
	defer node.Close()

	signer, err := ledger.NewKeySigner("0x" + testKey)
	if err != nil {
		t.Fatalf("NewKeySigner returned error: %v", err)
	}
	cfg := testConfig(node.URL())
	cache := ledger.NewCache(cfg, nil, ledger.NewKeyring(signer))
	defer cache.Close()

	handle, err := cache.WriteContract(context.Background(), signer.Address().Hex(), ledger.MethodAnalyzeImage,
		"https://img/o.jpg", "https://img/l.jpg", "https://img/a.jpg", "crust", "Ribeye", "Home")
	if err != nil {
		t.Fatalf("WriteContract returned error: %v", err)
	}

	sent := node.Sent()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(sent))
	}
	tx := sent[0]
	if handle != tx.Hash().Hex() {
		t.Errorf("Expected handle %s, got %s", tx.Hash().Hex(), handle)
	}
	if *tx.To() != cfg.ConsensusMainAddress {
		t.Errorf("Expected transaction to consensus main, got %s", tx.To().Hex())
	}
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(cfg.ChainID)), tx)
	if err != nil || from != signer.Address() {
		t.Errorf("Expected sender %s, got %s (%v)", signer.Address().Hex(), from.Hex(), err)
	}
	if tx.Gas() != 210_000 {
		t.Errorf("Expected estimated gas, got %d", tx.Gas())
	}
	// addTransaction selector followed by ABI arguments
	if len(tx.Data()) < 4+5*32 {
		t.Errorf("Expected ABI-encoded data, got %d bytes", len(tx.Data()))
	}
}

func TestWriterRejectsUnknownIdentity(t *testing.T) {
	node := ledgertest.NewNode()
	defer node.Close()

	signer, _ := ledger.NewKeySigner(testKey)
	cache := ledger.NewCache(testConfig(node.URL()), nil, ledger.NewKeyring(signer))
	defer cache.Close()

	_, err := cache.WriteContract(context.Background(), walletA, ledger.MethodAnalyzeImage)
	if !errors.Is(err, ledger.ErrUnknownIdentity) {
		t.Errorf("Expected ErrUnknownIdentity, got %v", err)
	}
	if node.CallCount("eth_sendRawTransaction") != 0 {
		t.Error("Expected no transaction for an unknown identity")
	}
}

func TestCacheReusesAndInvalidates(t *testing.T) {
	dials := 0
	dial := func(ctx context.Context, cfg ledger.Config) (ledger.Caller, error) {
		dials++
		return ledger.DialRPC(ctx, cfg)
	}
	node := ledgertest.NewNode()
	defer node.Close()

	signer, _ := ledger.NewKeySigner(testKey)
	cache := ledger.NewCache(testConfig(node.URL()), dial, ledger.NewKeyring(signer))
	defer cache.Close()
	ctx := context.Background()

	r1, _ := cache.Reader(ctx)
	r2, _ := cache.Reader(ctx)
	if r1 != r2 {
		t.Error("Expected the reader to be reused")
	}
	w1, _ := cache.Writer(ctx, strings.ToLower(signer.Address().Hex()))
	w2, _ := cache.Writer(ctx, signer.Address().Hex())
	if w1 != w2 {
		t.Error("Expected one writer per identity regardless of case")
	}
	if dials != 2 {
		t.Errorf("Expected 2 dials, got %d", dials)
	}

	cache.InvalidateAll()
	r3, _ := cache.Reader(ctx)
	if r3 == r1 {
		t.Error("Expected a new reader after InvalidateAll")
	}
	if dials != 3 {
		t.Errorf("Expected a redial after InvalidateAll, got %d dials", dials)
	}
}

func TestPageFetcherDrivesPaginator(t *testing.T) {
	node := ledgertest.NewNode()
	defer node.Close()
	seedNode(node, 25)

	cache := ledger.NewCache(testConfig(node.URL()), nil, nil)
	defer cache.Close()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	transformer := &records.Transformer{Now: func() time.Time { return fixed }, Placeholder: records.DefaultPlaceholder}

	p := paginator.New(ledger.NewPageFetcher(cache, transformer, paginator.ScopeCategory), paginator.ScopeCategory, 10)
	ctx := context.Background()
	if err := p.SetKey(ctx, "steak"); err != nil {
		t.Fatalf("SetKey returned error: %v", err)
	}
	for p.State().HasMore {
		if err := p.LoadMore(ctx); err != nil {
			t.Fatalf("LoadMore returned error: %v", err)
		}
	}

	state := p.State()
	if len(state.Records) != 25 || state.TotalCount != 25 {
		t.Fatalf("Expected 25 records, got %d (total %d)", len(state.Records), state.TotalCount)
	}
	if state.Records[0].Votes != 1000 || state.Records[0].SubmittedBy != "0x1111...1111" {
		t.Errorf("Expected transformed records, got %+v", state.Records[0])
	}
	if node.CallCount("gen_call:get_analysis_by_category") != 3 {
		t.Errorf("Expected 3 page reads, got %d", node.CallCount("gen_call:get_analysis_by_category"))
	}

	wallet := paginator.New(ledger.NewPageFetcher(cache, transformer, paginator.ScopeWallet), paginator.ScopeWallet, 10)
	if err := wallet.SetKey(ctx, walletA); err != nil {
		t.Fatalf("SetKey returned error: %v", err)
	}
	if got := len(wallet.State().Records); got != 10 {
		t.Errorf("Expected 10 wallet records, got %d", got)
	}
}
