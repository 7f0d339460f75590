package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/proofofsteak/steakboard/internal/calldata"
	"github.com/proofofsteak/steakboard/internal/metrics"
)

const consensusMainABI = `[{
	"type": "function",
	"name": "addTransaction",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "_sender", "type": "address"},
		{"name": "_recipient", "type": "address"},
		{"name": "_numOfInitialValidators", "type": "uint256"},
		{"name": "_maxRotations", "type": "uint256"},
		{"name": "_txData", "type": "bytes"}
	],
	"outputs": []
}]`

// fallbackGasLimit is used when the node cannot estimate a transaction.
const fallbackGasLimit = 500_000

var (
	ErrUnknownIdentity = errors.New("no signer for identity")

	consensusABI = mustParseABI(consensusMainABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid consensus ABI: %v", err))
	}
	return parsed
}

// Signer signs transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner parses a hex private key, with or without 0x.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// Keyring resolves identities (account addresses) to signers.
type Keyring struct {
	mu      sync.RWMutex
	signers map[common.Address]Signer
}

func NewKeyring(signers ...Signer) *Keyring {
	k := &Keyring{signers: make(map[common.Address]Signer)}
	for _, s := range signers {
		k.Add(s)
	}
	return k
}

func (k *Keyring) Add(s Signer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.signers[s.Address()] = s
}

// Signer returns the signer whose address matches identity.
func (k *Keyring) Signer(identity string) (Signer, error) {
	if !common.IsHexAddress(identity) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, identity)
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.signers[common.HexToAddress(identity)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
	}
	return s, nil
}

// Addresses lists the identities the keyring can sign for.
func (k *Keyring) Addresses() []common.Address {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]common.Address, 0, len(k.signers))
	for addr := range k.signers {
		out = append(out, addr)
	}
	return out
}

// Writer submits contract writes on behalf of one signer. Writes from the
// same Writer are serialized so nonces do not collide.
type Writer struct {
	rpc    Caller
	cfg    Config
	signer Signer

	mu sync.Mutex
}

func NewWriter(caller Caller, cfg Config, signer Signer) *Writer {
	return &Writer{rpc: caller, cfg: cfg, signer: signer}
}

func (w *Writer) Address() common.Address {
	return w.signer.Address()
}

func (w *Writer) Close() {
	w.rpc.Close()
}

// WriteContract sends a write call to the analyzer contract and returns the
// transaction hash used as the submission handle.
func (w *Writer) WriteContract(ctx context.Context, method string, args ...any) (string, error) {
	done := metrics.LedgerTimer("write:" + method)
	handle, err := w.writeContract(ctx, method, args...)
	done(err)
	return handle, err
}

func (w *Writer) writeContract(ctx context.Context, method string, args ...any) (string, error) {
	data, err := w.txData(method, args...)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	from := w.signer.Address()
	to := w.cfg.ConsensusMainAddress

	var nonce hexutil.Uint64
	if err := w.rpc.CallContext(ctx, &nonce, "eth_getTransactionCount", from, "pending"); err != nil {
		return "", fmt.Errorf("failed to fetch nonce for %s: %w", from.Hex(), err)
	}

	var gasPrice hexutil.Big
	if err := w.rpc.CallContext(ctx, &gasPrice, "eth_gasPrice"); err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	gas := uint64(fallbackGasLimit)
	var estimate hexutil.Uint64
	callMsg := map[string]any{
		"from": from,
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	if err := w.rpc.CallContext(ctx, &estimate, "eth_estimateGas", callMsg); err != nil {
		slog.Debug("Gas estimation failed, using fallback limit", "method", method, "err", err)
	} else if estimate > 0 {
		gas = uint64(estimate)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    uint64(nonce),
		GasPrice: gasPrice.ToInt(),
		Gas:      gas,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := w.signer.SignTx(tx, big.NewInt(w.cfg.ChainID))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", method, err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode %s transaction: %w", method, err)
	}

	var hash common.Hash
	if err := w.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return "", fmt.Errorf("failed to send %s: %w", method, err)
	}

	slog.Info("Submitted contract write", "method", method, "from", from.Hex(), "handle", hash.Hex(), "nonce", uint64(nonce))
	return hash.Hex(), nil
}

// txData builds the addTransaction input wrapping the contract call.
func (w *Writer) txData(method string, args ...any) ([]byte, error) {
	call, err := calldata.Encode(calldata.MethodCall(method, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", method, err)
	}
	// [calldata, leader_only]
	wrapped, err := rlp.EncodeToBytes([]any{call, false})
	if err != nil {
		return nil, fmt.Errorf("failed to wrap %s call: %w", method, err)
	}
	data, err := consensusABI.Pack("addTransaction",
		w.signer.Address(),
		w.cfg.ContractAddress,
		big.NewInt(w.cfg.NumInitialValidators),
		big.NewInt(w.cfg.MaxRotations),
		wrapped,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s transaction: %w", method, err)
	}
	return data, nil
}
