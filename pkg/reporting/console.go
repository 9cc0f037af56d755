package reporting

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ConsoleReporter renders a report as terminal tables
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to out
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

func (r *ConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// Render prints every section of the report
func (r *ConsoleReporter) Render(rep Report) {
	r.PrintSummary(rep)
	r.PrintDecisions(rep)
	r.PrintStops(rep)
	r.PrintExposure(rep)
}

// PrintSummary prints the replay performance and risk state
func (r *ConsoleReporter) PrintSummary(rep Report) {
	t := r.newTable(fmt.Sprintf("REPLAY %s %s", rep.Symbol, rep.Timeframe))
	res := rep.Results

	t.AppendRows([]table.Row{
		{"Start Equity", fmt.Sprintf("$%.2f", res.StartEquity)},
		{"End Equity", fmt.Sprintf("$%.2f", res.EndEquity)},
		{"Total Return", fmt.Sprintf("%.2f%%", res.TotalReturn())},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", res.MaxDrawdown())},
		{"Sharpe Ratio", fmt.Sprintf("%.2f", res.SharpeRatio())},
		{"Profit Factor", formatRatio(res.ProfitFactor())},
		{"Trades", len(res.Trades)},
		{"Win Rate", fmt.Sprintf("%.1f%%", res.WinRate())},
	})
	t.AppendSeparator()

	blocks := rep.BlockCounts()
	codes := make([]string, 0, len(blocks))
	for code := range blocks {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	blocked := make([]string, 0, len(codes))
	for _, code := range codes {
		blocked = append(blocked, fmt.Sprintf("%s=%d", code, blocks[code]))
	}
	t.AppendRows([]table.Row{
		{"Signals", len(rep.Decisions)},
		{"Admitted", rep.Admitted()},
		{"Blocked", strings.Join(blocked, " ")},
	})
	t.AppendSeparator()

	breaker := "CLOSED"
	if rep.Risk.CircuitBreakerTriggered {
		breaker = "OPEN: " + rep.Risk.CircuitBreakerReason
	}
	t.AppendRows([]table.Row{
		{"Daily P&L", fmt.Sprintf("$%.2f (%.2f%%)", rep.Risk.DailyPnl, rep.Risk.DailyPnlPercent)},
		{"Loss Streak", rep.Risk.ConsecutiveLosses},
		{"Circuit Breaker", breaker},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()
}

// PrintDecisions prints one row per evaluated signal
func (r *ConsoleReporter) PrintDecisions(rep Report) {
	if len(rep.Decisions) == 0 {
		return
	}
	t := r.newTable("SIGNALS")
	t.AppendHeader(table.Row{"Time", "Source", "Dir", "Strength", "Entry", "Stop", "Regime", "Decision", "Qty", "Reason"})
	for _, d := range rep.Decisions {
		s := d.Signal
		qty := ""
		if d.Evaluation.PositionSize != nil {
			qty = fmt.Sprintf("%g", d.Evaluation.PositionSize.Quantity)
		}
		t.AppendRow(table.Row{
			s.Timestamp.Format("2006-01-02 15:04"),
			s.Source,
			string(s.Direction),
			fmt.Sprintf("%.3f", s.Strength),
			fmt.Sprintf("%.2f", s.EntryPrice),
			fmt.Sprintf("%.2f", s.StopLoss),
			s.Regime,
			string(d.Evaluation.Decision),
			qty,
			d.Evaluation.Reason,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 10, WidthMax: 50},
	})
	t.Render()
}

// PrintStops prints the trailing stops still tracked
func (r *ConsoleReporter) PrintStops(rep Report) {
	if len(rep.Stops) == 0 {
		return
	}
	t := r.newTable("TRAILING STOPS")
	t.AppendHeader(table.Row{"Position", "Symbol", "Side", "Entry", "Initial", "Current", "State"})
	for _, s := range rep.Stops {
		t.AppendRow(table.Row{
			s.PositionID, s.Symbol, string(s.Side),
			fmt.Sprintf("%.2f", s.EntryPrice),
			fmt.Sprintf("%.2f", s.InitialStop),
			fmt.Sprintf("%.2f", s.CurrentStop),
			string(s.State),
		})
	}
	t.Render()
}

// PrintExposure prints the exposure metrics and any violations
func (r *ConsoleReporter) PrintExposure(rep Report) {
	m := rep.Analysis.Metrics
	t := r.newTable("EXPOSURE")
	t.AppendRows([]table.Row{
		{"Within Limits", rep.Analysis.WithinLimits},
		{"Total", fmt.Sprintf("$%.2f (%.1f%%)", m.TotalExposure, m.TotalExposurePercent)},
		{"Gross", fmt.Sprintf("$%.2f (%.1f%%)", m.GrossExposure, m.GrossExposurePercent)},
		{"Net", fmt.Sprintf("$%.2f (%.1f%%)", m.NetExposure, m.NetExposurePercent)},
	})
	if len(m.Sectors) > 0 {
		t.AppendSeparator()
		for _, s := range m.Sectors {
			t.AppendRow(table.Row{"Sector " + s.Sector, fmt.Sprintf("%.1f%%", s.Concentration)})
		}
	}
	if len(rep.Analysis.Violations) > 0 {
		t.AppendSeparator()
		for _, v := range rep.Analysis.Violations {
			t.AppendRow(table.Row{string(v.Severity), v.Message})
		}
	}
	t.Render()
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
