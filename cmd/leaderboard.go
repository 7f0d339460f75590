package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/proofofsteak/steakboard/internal/categories"
	"github.com/proofofsteak/steakboard/internal/export"
	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/paginator"
	"github.com/proofofsteak/steakboard/internal/records"
)

// listOptions are the flags shared by the paged listing commands.
type listOptions struct {
	all        bool
	pageSize   int
	exportPath string
	format     string
}

func (o *listOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.all, "all", false, "Keep loading pages until the ledger has no more")
	cmd.Flags().IntVar(&o.pageSize, "page-size", 0, "Records per page, at most 10 (defaults to $PAGE_SIZE)")
	cmd.Flags().StringVarP(&o.exportPath, "export", "o", "", "Also write the records to this file (.yaml, .parquet or .jsonl)")
	cmd.Flags().StringVar(&o.format, "format", "", "Export format when the file extension is ambiguous (yaml, parquet, jsonl)")
}

func newLeaderboardCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "leaderboard [category]",
		Short: "Show a category leaderboard",
		Long: `Shows the ranked entries of a category leaderboard.

Without a category the default leaderboard is shown. Use 'steakboard categories'
to list the categories.`,
		Example: `  # Top ten steaks
  steakboard leaderboard

  # Every mate entry, saved for later
  steakboard leaderboard mate --all --export mate.parquet`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := categories.Default()
			if len(args) == 1 {
				category = args[0]
			}
			if !categories.Valid(category) {
				return fmt.Errorf("unknown category %q", category)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			fetcher := ledger.NewPageFetcher(a.cache, a.transformer, paginator.ScopeCategory)
			recs, state, err := collect(cmd.Context(), fetcher, paginator.ScopeCategory, category, opts.size(a.cfg.PageSize), opts.all)
			if err != nil {
				return err
			}

			cat := categories.Lookup(category)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s leaderboard\n", cat.Emoji, cat.Title)
			renderRecords(out, recs, true)
			printSummary(out, len(recs), state)

			return opts.export(category, recs)
		},
	}
	opts.bind(cmd)

	return cmd
}

func newContributionsCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "contributions <wallet>",
		Short: "Show the entries submitted by a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			wallet := args[0]
			fetcher := ledger.NewPageFetcher(a.cache, a.transformer, paginator.ScopeWallet)
			recs, state, err := collect(cmd.Context(), fetcher, paginator.ScopeWallet, wallet, opts.size(a.cfg.PageSize), opts.all)
			if errors.Is(err, ledger.ErrInvalidAddress) {
				return fmt.Errorf("%q is not a wallet address", wallet)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Contributions from %s\n", records.TruncateAddress(wallet))
			renderRecords(out, recs, false)
			printSummary(out, len(recs), state)

			return opts.export("", recs)
		},
	}
	opts.bind(cmd)

	return cmd
}

func (o *listOptions) size(fallback int) int {
	if o.pageSize > 0 {
		return o.pageSize
	}
	return fallback
}

func (o *listOptions) export(category string, recs []records.Display) error {
	if o.exportPath == "" {
		return nil
	}
	return export.WriteFile(o.exportPath, o.format, category, recs)
}

// collect loads the first page for key and, with all set, every page after it.
func collect(ctx context.Context, fetcher paginator.Fetcher, scope paginator.Scope, key string, pageSize int, all bool) ([]records.Display, paginator.Cursor, error) {
	p := paginator.New(fetcher, scope, pageSize)
	defer p.Close()

	if err := p.SetKey(ctx, key); err != nil {
		return nil, paginator.Cursor{}, err
	}
	for all {
		err := p.LoadMore(ctx)
		if errors.Is(err, paginator.ErrNoMore) {
			break
		}
		if err != nil {
			// keep what was loaded so far
			slog.Warn("Stopped loading pages", "key", key, "err", err)
			break
		}
	}

	state := p.State()
	return state.Records, state, nil
}

func printSummary(w io.Writer, shown int, state paginator.Cursor) {
	if state.HasMore {
		fmt.Fprintf(w, "Showing %d of %d entries (use --all for the rest)\n", shown, state.TotalCount)
		return
	}
	fmt.Fprintf(w, "%d entries\n", shown)
}
