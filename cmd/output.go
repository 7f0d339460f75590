package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/proofofsteak/steakboard/internal/categories"
	"github.com/proofofsteak/steakboard/internal/records"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderRecords(w io.Writer, recs []records.Display, showRank bool) {
	t := newTable(w)
	header := table.Row{"ID", "Name", "Location", "Score", "Submitted By"}
	if showRank {
		header = append(table.Row{"#"}, header...)
	}
	t.AppendHeader(header)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Score", Align: text.AlignRight},
		{Name: "Name", WidthMax: 32},
		{Name: "Location", WidthMax: 24},
	})

	for i, r := range recs {
		row := table.Row{r.ID, r.Name, r.Location, formatScore(r.Score), r.SubmittedBy}
		if showRank {
			rank := r.Rank
			if rank == 0 {
				rank = i + 1
			}
			row = append(table.Row{rank}, row...)
		}
		t.AppendRow(row)
	}
	if len(recs) == 0 {
		t.AppendFooter(table.Row{"no entries yet"})
	}
	t.Render()
}

func renderRecord(w io.Writer, r records.Display) {
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"ID", r.ID},
		{"Category", categories.Lookup(r.Category).Title},
		{"Name", r.Name},
		{"Location", r.Location},
		{"Score", formatScore(r.Score)},
		{"Submitted By", r.Raw.CallerAddress},
		{"Image", r.Image},
		{"Original", r.OriginalImage},
	})
	if r.Raw.Defense != "" {
		t.AppendRow(table.Row{"Defense", r.Raw.Defense})
	}
	t.AppendRow(table.Row{"Verdict", r.Description})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 80},
	})
	t.Render()
}

func renderCategories(w io.Writer, cats []categories.Category) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "", "Title", "Accepts"})
	for _, c := range cats {
		t.AppendRow(table.Row{c.ID, c.Emoji, c.Title, c.Description})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 60},
	})
	t.Render()
}

func formatScore(score float64) string {
	if score == float64(int64(score)) {
		return strconv.FormatInt(int64(score), 10)
	}
	return fmt.Sprintf("%.1f", score)
}
