package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/proofofsteak/steakboard/internal/calldata"
	"github.com/proofofsteak/steakboard/internal/metrics"
	"github.com/proofofsteak/steakboard/internal/normalize"
	"github.com/proofofsteak/steakboard/internal/records"
)

// Contract methods exposed by the analyzer contract.
const (
	MethodAnalyzeImage         = "analyze_image"
	MethodAnalysisByCategory   = "get_analysis_by_category"
	MethodAnalysesByWallet     = "get_analyses_by_wallet"
	MethodAnalysisByID         = "get_analysis_by_id"
	readTransactionHashVariant = "latest-nonfinal"
)

// MaxPageSize is the largest page the contract returns.
const MaxPageSize = 10

var ErrInvalidAddress = errors.New("invalid wallet address")

// Caller is the subset of *rpc.Client the ledger needs.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	Close()
}

// Dial connects to the ledger RPC endpoint through a retrying HTTP client.
func Dial(ctx context.Context, cfg Config) (*rpc.Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.ReadRetries
	retryClient.RetryWaitMin = 250 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = slog.Default()
	httpClient := retryClient.StandardClient()
	httpClient.Timeout = cfg.Timeout

	client, err := rpc.DialOptions(ctx, cfg.RPCURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger RPC %s: %w", cfg.RPCURL, err)
	}
	return client, nil
}

// Client performs contract reads and transaction status lookups.
type Client struct {
	rpc      Caller
	contract common.Address
	from     common.Address
}

func NewClient(caller Caller, cfg Config) *Client {
	return &Client{
		rpc:      caller,
		contract: cfg.ContractAddress,
		from:     cfg.ReadAccount,
	}
}

func (c *Client) Close() {
	c.rpc.Close()
}

// RawPage is a page of records as declared by the contract.
type RawPage struct {
	Records       []records.Raw
	StartIndex    int
	ReturnedCount int
	HasMore       bool
	TotalCount    int
}

// Read calls a view method and returns the normalized result.
func (c *Client) Read(ctx context.Context, method string, args ...any) (any, error) {
	done := metrics.LedgerTimer(method)
	result, err := c.read(ctx, method, args...)
	done(err)
	return result, err
}

func (c *Client) read(ctx context.Context, method string, args ...any) (any, error) {
	data, err := calldata.Encode(calldata.MethodCall(method, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", method, err)
	}

	params := map[string]any{
		"type":                     "read",
		"to":                       c.contract.Hex(),
		"from":                     c.from.Hex(),
		"data":                     hexutil.Encode(data),
		"transaction_hash_variant": readTransactionHashVariant,
	}

	var result string
	if err := c.rpc.CallContext(ctx, &result, "gen_call", params); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	raw, err := decodeHex(result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	decoded, err := calldata.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return normalize.Value(decoded), nil
}

// AnalysisByCategory reads one page of a category leaderboard.
func (c *Client) AnalysisByCategory(ctx context.Context, category string, start, count int) (RawPage, error) {
	start, count = clampPage(start, count)
	result, err := c.Read(ctx, MethodAnalysisByCategory, category, start, count)
	if err != nil {
		return RawPage{}, err
	}
	return parsePage(result, start)
}

// AnalysesByWallet reads one page of a wallet's submissions.
func (c *Client) AnalysesByWallet(ctx context.Context, wallet string, start, count int) (RawPage, error) {
	if !common.IsHexAddress(wallet) {
		return RawPage{}, fmt.Errorf("%w: %q", ErrInvalidAddress, wallet)
	}
	start, count = clampPage(start, count)
	result, err := c.Read(ctx, MethodAnalysesByWallet, common.HexToAddress(wallet).Hex(), start, count)
	if err != nil {
		return RawPage{}, err
	}
	return parsePage(result, start)
}

// AnalysisByID looks up one record. An empty object from the contract means
// the id is unknown and is reported as found=false.
func (c *Client) AnalysisByID(ctx context.Context, id int) (records.Raw, bool, error) {
	result, err := c.Read(ctx, MethodAnalysisByID, id)
	if err != nil {
		return records.Raw{}, false, err
	}
	obj, ok := result.(*normalize.Object)
	if !ok || obj.Len() == 0 {
		return records.Raw{}, false, nil
	}
	raw := records.FromObject(obj)
	if _, hasID := obj.Get("id"); !hasID {
		raw.ID = id
	}
	return raw, true, nil
}

func parsePage(result any, start int) (RawPage, error) {
	obj, ok := result.(*normalize.Object)
	if !ok {
		return RawPage{}, fmt.Errorf("unexpected page response type %T", result)
	}

	page := RawPage{StartIndex: start, HasMore: obj.Bool("has_more")}
	if n, ok := obj.Int("start_index"); ok {
		page.StartIndex = n
	}
	if n, ok := obj.Int("returned_count"); ok {
		page.ReturnedCount = n
	}
	if n, ok := obj.Int("total_count"); ok {
		page.TotalCount = n
	}
	for _, rec := range obj.Objects("records") {
		page.Records = append(page.Records, records.FromObject(rec))
	}
	return page, nil
}

func clampPage(start, count int) (int, int) {
	if start < 0 {
		start = 0
	}
	if count <= 0 || count > MaxPageSize {
		count = MaxPageSize
	}
	return start, count
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// TransactionStatus fetches the current status of a submitted transaction.
// A transaction the node does not know yet is reported with an empty status.
func (c *Client) TransactionStatus(ctx context.Context, handle string) (Receipt, error) {
	done := metrics.LedgerTimer("eth_getTransactionByHash")
	receipt, err := c.transactionStatus(ctx, handle)
	done(err)
	return receipt, err
}

func (c *Client) transactionStatus(ctx context.Context, handle string) (Receipt, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getTransactionByHash", handle); err != nil {
		return Receipt{}, fmt.Errorf("failed to fetch transaction %s: %w", handle, err)
	}

	receipt := Receipt{Handle: handle}
	if len(raw) == 0 || string(raw) == "null" {
		return receipt, nil
	}

	var decoded map[string]any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return Receipt{}, fmt.Errorf("failed to decode transaction %s: %w", handle, err)
	}

	details, _ := normalize.Response(decoded)
	receipt.Details = details
	receipt.Status = statusName(details)
	return receipt, nil
}
