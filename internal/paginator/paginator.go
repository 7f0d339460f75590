// Package paginator tracks "load more" cursors over a paged remote listing.
//
// A Paginator owns the cursor for one query key at a time. Fetches for a key
// are strictly sequential: a call made while a fetch is in flight is dropped
// with ErrBusy instead of being queued.
package paginator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/proofofsteak/steakboard/internal/metrics"
	"github.com/proofofsteak/steakboard/internal/records"
)

const DefaultPageSize = 10

var (
	ErrBusy      = errors.New("paginator: fetch already in flight")
	ErrNoMore    = errors.New("paginator: no more records")
	ErrNoKey     = errors.New("paginator: no query key")
	ErrClosed    = errors.New("paginator: closed")
	ErrDiscarded = errors.New("paginator: result discarded after key change")
)

// Scope selects how a Paginator reacts to failures.
type Scope int

const (
	// ScopeCategory keeps the last good state when a fetch fails.
	ScopeCategory Scope = iota
	// ScopeWallet clears its state when a fetch fails.
	ScopeWallet
)

func (s Scope) String() string {
	switch s {
	case ScopeWallet:
		return "wallet"
	default:
		return "category"
	}
}

// Page is one server response. Counts and HasMore are taken as declared by
// the server, never inferred from len(Records).
type Page struct {
	Records       []records.Display `json:"records"`
	ReturnedCount int               `json:"returned_count"`
	HasMore       bool              `json:"has_more"`
	TotalCount    int               `json:"total_count"`
}

// Fetcher reads one page for key starting at start.
type Fetcher interface {
	FetchPage(ctx context.Context, key string, start, count int) (Page, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key string, start, count int) (Page, error)

func (f FetcherFunc) FetchPage(ctx context.Context, key string, start, count int) (Page, error) {
	return f(ctx, key, start, count)
}

// Cursor is a snapshot of a Paginator's state.
type Cursor struct {
	Key        string            `json:"key"`
	StartIndex int               `json:"start_index"`
	HasMore    bool              `json:"has_more"`
	TotalCount int               `json:"total_count"`
	Records    []records.Display `json:"records"`
	Loading    bool              `json:"loading"`
	LastError  string            `json:"last_error,omitempty"`
}

type Paginator struct {
	fetcher  Fetcher
	scope    Scope
	pageSize int

	mu         sync.Mutex
	key        string
	generation uint64
	loading    bool
	closed     bool
	startIndex int
	hasMore    bool
	totalCount int
	records    []records.Display
	lastErr    error
}

func New(fetcher Fetcher, scope Scope, pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{
		fetcher:  fetcher,
		scope:    scope,
		pageSize: pageSize,
	}
}

// SetKey switches the paginator to key and refreshes. An empty key clears
// the state without fetching. Setting the current key again is a no-op.
func (p *Paginator) SetKey(ctx context.Context, key string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if key == p.key {
		p.mu.Unlock()
		return nil
	}
	p.key = key
	p.generation++
	// an in-flight fetch belongs to the old key; its result will be discarded
	p.loading = false
	p.reset()
	p.hasMore = key != ""
	p.mu.Unlock()

	if key == "" {
		return nil
	}
	return p.Refresh(ctx)
}

// Refresh fetches the first page and replaces the accumulated records.
func (p *Paginator) Refresh(ctx context.Context) error {
	return p.load(ctx, false)
}

// LoadMore fetches the next page and appends it. It issues no request when a
// fetch is already in flight or the server declared there is nothing more.
func (p *Paginator) LoadMore(ctx context.Context) error {
	return p.load(ctx, true)
}

func (p *Paginator) load(ctx context.Context, appendMode bool) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.key == "" {
		p.mu.Unlock()
		return ErrNoKey
	}
	if p.loading {
		p.mu.Unlock()
		return ErrBusy
	}
	if appendMode && !p.hasMore {
		p.mu.Unlock()
		return ErrNoMore
	}

	start := 0
	if appendMode {
		start = p.startIndex
	}
	key := p.key
	generation := p.generation
	p.loading = true
	p.mu.Unlock()

	page, err := p.fetcher.FetchPage(ctx, key, start, p.pageSize)
	metrics.PageFetch(p.scope.String(), err)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || generation != p.generation {
		slog.Debug("Discarding page for stale paginator", "key", key, "scope", p.scope.String())
		return ErrDiscarded
	}
	p.loading = false

	if err != nil {
		p.lastErr = err
		slog.Error("Failed to load records", "scope", p.scope.String(), "key", key, "start", start, "err", err)
		if p.scope == ScopeWallet {
			p.reset()
		}
		return err
	}

	p.lastErr = nil
	if appendMode {
		p.records = append(p.records, page.Records...)
	} else {
		p.records = append([]records.Display(nil), page.Records...)
	}
	p.startIndex = start + page.ReturnedCount
	p.hasMore = page.HasMore
	p.totalCount = page.TotalCount
	if page.HasMore && page.ReturnedCount <= 0 {
		// the cursor cannot advance, so the next LoadMore would repeat this fetch
		slog.Warn("Server reported more records but returned none", "scope", p.scope.String(), "key", key, "start", start)
		p.hasMore = false
	}
	return nil
}

// reset clears the cursor. Callers hold p.mu.
func (p *Paginator) reset() {
	p.records = nil
	p.startIndex = 0
	p.hasMore = false
	p.totalCount = 0
}

// State returns a copy of the current cursor.
func (p *Paginator) State() Cursor {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := Cursor{
		Key:        p.key,
		StartIndex: p.startIndex,
		HasMore:    p.hasMore,
		TotalCount: p.totalCount,
		Records:    append([]records.Display(nil), p.records...),
		Loading:    p.loading,
	}
	if p.lastErr != nil {
		c.LastError = p.lastErr.Error()
	}
	return c
}

// Close marks the paginator as abandoned. Results of fetches still in flight
// are dropped and later calls return ErrClosed.
func (p *Paginator) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.generation++
	p.reset()
}

// Registry keeps one Paginator per query key.
type Registry struct {
	fetcher  Fetcher
	scope    Scope
	pageSize int

	mu         sync.Mutex
	paginators map[string]*Paginator
}

func NewRegistry(fetcher Fetcher, scope Scope, pageSize int) *Registry {
	return &Registry{
		fetcher:    fetcher,
		scope:      scope,
		pageSize:   pageSize,
		paginators: make(map[string]*Paginator),
	}
}

// Get returns the paginator for key, creating it unfetched if needed. The
// boolean reports whether it was created by this call.
func (r *Registry) Get(key string) (*Paginator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.paginators[key]; ok {
		return p, false
	}
	p := New(r.fetcher, r.scope, r.pageSize)
	p.key = key
	p.hasMore = key != ""
	r.paginators[key] = p
	return p, true
}

// Drop closes and forgets the paginator for key.
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	p, ok := r.paginators[key]
	delete(r.paginators, key)
	r.mu.Unlock()
	if ok {
		p.Close()
	}
}
