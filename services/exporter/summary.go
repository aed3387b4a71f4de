package exporter

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"sjsage522/gloomfloor/internal/crawler"
)

// Summary renders the first limit records as a table for the end-of-run log.
// A limit of zero or less renders every record.
func Summary(records []crawler.Item, limit int) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Number", "Price", "Rank", "URL"})

	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	for i, record := range records[:limit] {
		rank := record.Rank
		if !record.Enriched() {
			rank = "-"
		}
		t.AppendRow(table.Row{i + 1, record.Number, record.Price, rank, record.URL})
	}
	if limit < len(records) {
		t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d more", len(records)-limit)})
	}

	t.SetStyle(table.StyleRounded)
	return t.Render()
}
