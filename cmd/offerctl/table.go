package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderOffers prints offers sorted by monthly price.
func renderOffers(out io.Writer, offers []domain.Offer) {
	sorted := make([]domain.Offer, len(offers))
	copy(sorted, offers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PricePerMonth < sorted[j].PricePerMonth
	})

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Provider", "Product", "Speed", "Price / month", "Months", "Type", "Extras"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Speed", Align: text.AlignRight},
		{Name: "Price / month", Align: text.AlignRight},
		{Name: "Months", Align: text.AlignRight},
	})

	for _, o := range sorted {
		t.AppendRow(table.Row{
			o.Provider,
			o.Title,
			fmt.Sprintf("%d Mbit/s", o.SpeedMbps),
			fmt.Sprintf("%.2f €", o.PricePerMonth),
			o.DurationMonths,
			string(o.ConnectionType),
			strings.Join(o.Extras, "; "),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d offers", len(sorted))})

	t.Render()
}

func renderStats(out io.Writer, stats service.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Provider", "Status", "Offers", "Duration"})
	for _, p := range stats.Providers {
		t.AppendRow(table.Row{p.Provider, p.Status, p.Offers, fmt.Sprintf("%d ms", p.ElapsedMs)})
	}
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d ok / %d failed / %d pending", stats.Succeeded, stats.Failed, stats.Pending),
		"",
		fmt.Sprintf("%d ms", stats.DurationMs),
	})
	t.Render()
}
