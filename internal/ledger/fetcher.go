package ledger

import (
	"context"

	"github.com/proofofsteak/steakboard/internal/paginator"
	"github.com/proofofsteak/steakboard/internal/records"
)

// PageFetcher serves paginator pages from the ledger. Category scope reads
// leaderboards; wallet scope reads a wallet's submissions.
type PageFetcher struct {
	Cache       *Cache
	Transformer *records.Transformer
	Scope       paginator.Scope
}

func NewPageFetcher(cache *Cache, transformer *records.Transformer, scope paginator.Scope) *PageFetcher {
	if transformer == nil {
		transformer = records.NewTransformer()
	}
	return &PageFetcher{Cache: cache, Transformer: transformer, Scope: scope}
}

func (f *PageFetcher) FetchPage(ctx context.Context, key string, start, count int) (paginator.Page, error) {
	reader, err := f.Cache.Reader(ctx)
	if err != nil {
		return paginator.Page{}, err
	}

	var raw RawPage
	if f.Scope == paginator.ScopeWallet {
		raw, err = reader.AnalysesByWallet(ctx, key, start, count)
	} else {
		raw, err = reader.AnalysisByCategory(ctx, key, start, count)
	}
	if err != nil {
		return paginator.Page{}, err
	}

	return paginator.Page{
		Records:       f.Transformer.TransformAll(raw.Records),
		ReturnedCount: raw.ReturnedCount,
		HasMore:       raw.HasMore,
		TotalCount:    raw.TotalCount,
	}, nil
}
