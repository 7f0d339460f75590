package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/proofofsteak/steakboard/internal/paginator"
	"github.com/proofofsteak/steakboard/internal/records"
)

func TestFormatScore(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{score: 87, expected: "87"},
		{score: 0, expected: "0"},
		{score: 92.55, expected: "92.5"},
		{score: -3, expected: "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatScore(tt.score); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func pagedFetcher(total int, failAt int) paginator.FetcherFunc {
	return func(ctx context.Context, key string, start, count int) (paginator.Page, error) {
		if failAt >= 0 && start >= failAt {
			return paginator.Page{}, errors.New("ledger unavailable")
		}
		end := start + count
		if end > total {
			end = total
		}
		var recs []records.Display
		for i := start; i < end; i++ {
			recs = append(recs, records.Display{ID: i, Name: key})
		}
		return paginator.Page{Records: recs, ReturnedCount: len(recs), HasMore: end < total, TotalCount: total}, nil
	}
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name            string
		all             bool
		failAt          int
		expectedRecords int
		expectedHasMore bool
	}{
		{name: "first page only", expectedRecords: 10, expectedHasMore: true, failAt: -1},
		{name: "all pages", all: true, expectedRecords: 23, failAt: -1},
		{name: "failure keeps loaded pages", all: true, failAt: 20, expectedRecords: 20, expectedHasMore: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, state, err := collect(context.Background(), pagedFetcher(23, tt.failAt), paginator.ScopeCategory, "steak", 10, tt.all)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if len(recs) != tt.expectedRecords {
				t.Errorf("Expected %d records, got %d", tt.expectedRecords, len(recs))
			}
			if state.HasMore != tt.expectedHasMore {
				t.Errorf("Expected has_more %v, got %v", tt.expectedHasMore, state.HasMore)
			}
		})
	}
}

func TestCollectStopsWhenPagesAreEmpty(t *testing.T) {
	var calls int
	fetcher := paginator.FetcherFunc(func(ctx context.Context, key string, start, count int) (paginator.Page, error) {
		calls++
		if calls > 5 {
			t.Fatalf("Expected collect to stop, still fetching at start %d", start)
		}
		return paginator.Page{HasMore: true, TotalCount: 100}, nil
	})

	recs, state, err := collect(context.Background(), fetcher, paginator.ScopeCategory, "steak", 10, true)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(recs) != 0 || state.HasMore {
		t.Errorf("Expected no records and no more pages, got %d records has_more=%v", len(recs), state.HasMore)
	}
	if calls != 1 {
		t.Errorf("Expected a single fetch, got %d", calls)
	}
}

func TestRenderRecords(t *testing.T) {
	var buf bytes.Buffer
	renderRecords(&buf, []records.Display{
		{ID: 7, Name: "Ojo de bife", Location: "Palermo", Score: 91, SubmittedBy: "0x1234...abcd"},
		{ID: 3, Name: "Vacio", Location: "San Telmo", Score: 80.5, SubmittedBy: "0x5678...ef01"},
	}, true)

	out := buf.String()
	for _, want := range []string{"Ojo de bife", "80.5", "0x5678...ef01", "#"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in table, got:\n%s", want, out)
		}
	}

	buf.Reset()
	renderRecords(&buf, nil, false)
	if !strings.Contains(strings.ToLower(buf.String()), "no entries yet") {
		t.Errorf("Expected empty marker, got:\n%s", buf.String())
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, 10, paginator.Cursor{HasMore: true, TotalCount: 23})
	if !strings.Contains(buf.String(), "10 of 23") {
		t.Errorf("Expected partial summary, got %q", buf.String())
	}
}
