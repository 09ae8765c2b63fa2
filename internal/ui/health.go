package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// HealthSummary is what `status` shows about a relay.
type HealthSummary struct {
	Server      string
	Status      string
	Environment string
	Version     string
	Rooms       int
	Connections int
	Users       int
	Timestamp   time.Time
	Latency     time.Duration
}

// HealthView renders the summary as a go-pretty table.
func HealthView(h HealthSummary) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s %s", IconHealth, h.Server))
	t.AppendHeader(table.Row{"Metric", "Value"})

	status := h.Status
	if status == "OK" {
		status = text.FgGreen.Sprint(status)
	} else {
		status = text.FgRed.Sprint(status)
	}

	t.AppendRows([]table.Row{
		{"Status", status},
		{"Environment", h.Environment},
		{"Version", h.Version},
		{"Rooms", h.Rooms},
		{"Connections", h.Connections},
		{"In rooms", h.Users},
		{"Server time", h.Timestamp.Local().Format(time.RFC3339)},
		{"Latency", h.Latency.Round(time.Millisecond).String()},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)

	return t.Render()
}
