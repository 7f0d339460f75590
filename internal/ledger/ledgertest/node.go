// Package ledgertest runs an in-process JSON-RPC node that serves the
// analyzer contract's reads, accepts signed writes and reports scripted
// transaction statuses.
package ledgertest

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/proofofsteak/steakboard/internal/calldata"
)

// UnknownChainCode is the wallet error for a chain it has not been told about.
const UnknownChainCode = 4902

const maxPageSize = 10

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Node is a fake ledger. Configure it before issuing calls; the exported
// maps are read under the node's lock.
type Node struct {
	server *httptest.Server

	mu sync.Mutex
	// Records are contract records in storage order. Category and caller
	// address fields drive the category and wallet listings.
	Records []map[string]any
	// Statuses scripts eth_getTransactionByHash per handle. Each lookup
	// consumes one entry; the last entry repeats.
	Statuses map[string][]any
	// Failures makes a method return a JSON-RPC error with this message.
	Failures map[string]string
	ChainID  int64
	Known    map[int64]bool

	calls map[string]int
	sent  []*types.Transaction
}

func NewNode() *Node {
	n := &Node{
		Statuses: make(map[string][]any),
		Failures: make(map[string]string),
		ChainID:  1,
		Known:    map[int64]bool{1: true},
		calls:    make(map[string]int),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	return n
}

func (n *Node) URL() string {
	return n.server.URL
}

func (n *Node) Close() {
	n.server.Close()
}

// Lock guards direct edits of the exported fields once calls are in flight.
func (n *Node) Lock()   { n.mu.Lock() }
func (n *Node) Unlock() { n.mu.Unlock() }

// CallCount reports how often method was called. gen_call counts are also
// kept per contract method as "gen_call:<method>".
func (n *Node) CallCount(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// Sent returns the transactions received through eth_sendRawTransaction.
func (n *Node) Sent() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	var (
		result any
		rerr   *rpcError
	)
	if msg, ok := n.Failures[req.Method]; ok {
		rerr = &rpcError{Code: -32000, Message: msg}
	} else {
		result, rerr = n.dispatch(req)
	}
	n.mu.Unlock()

	resp := response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rerr}
	if rerr == nil && result == nil {
		// omitempty would drop an explicit null result
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":null}`, req.ID)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *Node) dispatch(req request) (any, *rpcError) {
	switch req.Method {
	case "gen_call":
		return n.genCall(req.Params)
	case "eth_getTransactionByHash":
		var handle string
		if err := param(req.Params, 0, &handle); err != nil {
			return nil, err
		}
		return n.transaction(handle), nil
	case "eth_getTransactionCount":
		return hexutil.Uint64(len(n.sent)), nil
	case "eth_gasPrice":
		return (*hexutil.Big)(big.NewInt(0)), nil
	case "eth_estimateGas":
		return hexutil.Uint64(210_000), nil
	case "eth_sendRawTransaction":
		return n.sendRaw(req.Params)
	case "eth_chainId":
		return hexutil.Uint64(n.ChainID), nil
	case "wallet_switchEthereumChain":
		var p struct {
			ChainID hexutil.Uint64 `json:"chainId"`
		}
		if err := param(req.Params, 0, &p); err != nil {
			return nil, err
		}
		if !n.Known[int64(p.ChainID)] {
			return nil, &rpcError{Code: UnknownChainCode, Message: "Unrecognized chain ID"}
		}
		n.ChainID = int64(p.ChainID)
		return nil, nil
	case "wallet_addEthereumChain":
		var p struct {
			ChainID hexutil.Uint64 `json:"chainId"`
		}
		if err := param(req.Params, 0, &p); err != nil {
			return nil, err
		}
		n.Known[int64(p.ChainID)] = true
		return nil, nil
	default:
		return nil, &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}
}

func param(params []json.RawMessage, i int, v any) *rpcError {
	if i >= len(params) {
		return &rpcError{Code: -32602, Message: "missing params"}
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return &rpcError{Code: -32602, Message: err.Error()}
	}
	return nil
}

func (n *Node) transaction(handle string) any {
	script, ok := n.Statuses[strings.ToLower(handle)]
	if !ok || len(script) == 0 {
		return nil
	}
	status := script[0]
	if len(script) > 1 {
		n.Statuses[strings.ToLower(handle)] = script[1:]
	}
	return map[string]any{"hash": handle, "status": status}
}

func (n *Node) sendRaw(params []json.RawMessage) (any, *rpcError) {
	var encoded hexutil.Bytes
	if err := param(params, 0, &encoded); err != nil {
		return nil, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(encoded); err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	n.sent = append(n.sent, tx)
	return tx.Hash().Hex(), nil
}

func (n *Node) genCall(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Type string        `json:"type"`
		Data hexutil.Bytes `json:"data"`
	}
	if err := param(params, 0, &p); err != nil {
		return nil, err
	}
	decoded, err := calldata.Decode(p.Data)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	call, ok := decoded.(*calldata.Map)
	if !ok {
		return nil, &rpcError{Code: -32602, Message: "calldata is not a method call"}
	}
	method, _ := call.Get("method")
	rawArgs, _ := call.Get("args")
	args, _ := rawArgs.([]any)
	name, _ := method.(string)
	n.calls["gen_call:"+name]++

	var result any
	switch name {
	case "get_analysis_by_category":
		category := stringArg(args, 0)
		result = n.page(func(r map[string]any) bool { return r["category"] == category }, intArg(args, 1), intArg(args, 2), true)
	case "get_analyses_by_wallet":
		wallet := strings.ToLower(stringArg(args, 0))
		result = n.page(func(r map[string]any) bool {
			addr, _ := r["caller_address"].(string)
			return strings.ToLower(addr) == wallet
		}, intArg(args, 1), intArg(args, 2), false)
	case "get_analysis_by_id":
		result = map[string]any{}
		id := intArg(args, 0)
		for _, r := range n.Records {
			if r["id"] == id {
				result = r
				break
			}
		}
	default:
		return nil, &rpcError{Code: -32000, Message: "unknown contract method " + name}
	}

	out, err := calldata.Encode(result)
	if err != nil {
		return nil, &rpcError{Code: -32603, Message: err.Error()}
	}
	return hexutil.Encode(out), nil
}

// page mirrors the contract: count is clamped to 10 and category listings
// are ranked by score.
func (n *Node) page(match func(map[string]any) bool, start, count int, ranked bool) map[string]any {
	var matched []map[string]any
	for _, r := range n.Records {
		if match(r) {
			matched = append(matched, r)
		}
	}
	if ranked {
		sort.SliceStable(matched, func(i, j int) bool {
			si, _ := matched[i]["score"].(int)
			sj, _ := matched[j]["score"].(int)
			return si > sj
		})
	}
	if count <= 0 || count > maxPageSize {
		count = maxPageSize
	}
	if start < 0 {
		start = 0
	}
	end := start + count
	if end > len(matched) {
		end = len(matched)
	}

	out := []any{}
	for i := start; i < end; i++ {
		rec := make(map[string]any, len(matched[i])+1)
		for k, v := range matched[i] {
			rec[k] = v
		}
		if ranked {
			rec["rank"] = i + 1
		}
		out = append(out, rec)
	}
	return map[string]any{
		"records":        out,
		"total_count":    len(matched),
		"start_index":    start,
		"returned_count": len(out),
		"has_more":       end < len(matched),
	}
}

func stringArg(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func intArg(args []any, i int) int {
	if i >= len(args) {
		return 0
	}
	if n, ok := args[i].(*big.Int); ok {
		return int(n.Int64())
	}
	return 0
}
