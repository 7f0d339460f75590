package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Dialer opens a connection to the ledger.
type Dialer func(ctx context.Context, cfg Config) (Caller, error)

// DialRPC is the default Dialer.
func DialRPC(ctx context.Context, cfg Config) (Caller, error) {
	client, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// SignerSource resolves an identity to its signer.
type SignerSource interface {
	Signer(identity string) (Signer, error)
}

// Cache holds the ledger client handles for the life of the process: one
// read client and one writer per identity, created on first use. Handles
// are dropped by InvalidateAll, which callers use after a network switch.
type Cache struct {
	cfg     Config
	dial    Dialer
	signers SignerSource

	mu      sync.Mutex
	reader  *Client
	writers map[common.Address]*Writer
}

func NewCache(cfg Config, dial Dialer, signers SignerSource) *Cache {
	if dial == nil {
		dial = DialRPC
	}
	return &Cache{
		cfg:     cfg,
		dial:    dial,
		signers: signers,
		writers: make(map[common.Address]*Writer),
	}
}

func (c *Cache) Config() Config {
	return c.cfg
}

// Reader returns the shared read client, dialing it if needed.
func (c *Cache) Reader(ctx context.Context) (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reader != nil {
		return c.reader, nil
	}
	caller, err := c.dial(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	c.reader = NewClient(caller, c.cfg)
	return c.reader, nil
}

// Writer returns the writer bound to identity, creating it if needed.
func (c *Cache) Writer(ctx context.Context, identity string) (*Writer, error) {
	if c.signers == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
	}
	signer, err := c.signers.Signer(identity)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if w, ok := c.writers[signer.Address()]; ok {
		return w, nil
	}
	caller, err := c.dial(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	w := NewWriter(caller, c.cfg, signer)
	c.writers[signer.Address()] = w
	return w, nil
}

// InvalidateAll closes and forgets every cached handle.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	reader := c.reader
	writers := c.writers
	c.reader = nil
	c.writers = make(map[common.Address]*Writer)
	c.mu.Unlock()

	if reader != nil {
		reader.Close()
	}
	for _, w := range writers {
		w.Close()
	}
}

// Close releases every handle.
func (c *Cache) Close() {
	c.InvalidateAll()
}

// WriteContract writes through the identity's cached writer.
func (c *Cache) WriteContract(ctx context.Context, identity, method string, args ...any) (string, error) {
	w, err := c.Writer(ctx, identity)
	if err != nil {
		return "", err
	}
	return w.WriteContract(ctx, method, args...)
}

// TransactionStatus looks up a transaction through the shared reader.
func (c *Cache) TransactionStatus(ctx context.Context, handle string) (Receipt, error) {
	r, err := c.Reader(ctx)
	if err != nil {
		return Receipt{}, err
	}
	return r.TransactionStatus(ctx, handle)
}
