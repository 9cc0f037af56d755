package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	tradesSheet    = "Trades"
	decisionsSheet = "Signals"
)

type excelStyles struct {
	header   int
	currency int
	percent  int
}

// WriteWorkbook saves the report as an xlsx workbook with summary, trades and
// signal sheets
func WriteWorkbook(path string, rep Report) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	for _, name := range []string{tradesSheet, decisionsSheet} {
		if _, err := fx.NewSheet(name); err != nil {
			return err
		}
	}

	styles, err := createStyles(fx)
	if err != nil {
		return err
	}

	writers := []func(*excelize.File, Report, excelStyles) error{
		writeSummarySheet,
		writeTradesSheet,
		writeDecisionsSheet,
	}
	for _, write := range writers {
		if err := write(fx, rep, styles); err != nil {
			return err
		}
	}
	return fx.SaveAs(path)
}

func createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return styles, err
	}

	styles.currency, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.percent, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	return styles, err
}

func writeHeader(fx *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(fx *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return fx.SetSheetRow(sheet, cell, &values)
}

func writeSummarySheet(fx *excelize.File, rep Report, styles excelStyles) error {
	res := rep.Results
	if err := writeHeader(fx, summarySheet, []string{"Metric", "Value"}, styles.header); err != nil {
		return err
	}
	fx.SetColWidth(summarySheet, "A", "A", 20)
	fx.SetColWidth(summarySheet, "B", "B", 18)

	rows := []struct {
		label string
		value any
		style int
	}{
		{"Symbol", rep.Symbol, 0},
		{"Timeframe", rep.Timeframe, 0},
		{"Start Equity", res.StartEquity, styles.currency},
		{"End Equity", res.EndEquity, styles.currency},
		{"Total Return", res.TotalReturn() / 100, styles.percent},
		{"Max Drawdown", res.MaxDrawdown() / 100, styles.percent},
		{"Win Rate", res.WinRate() / 100, styles.percent},
		{"Profit Factor", formatRatio(res.ProfitFactor()), 0},
		{"Sharpe Ratio", res.SharpeRatio(), 0},
		{"Trades", len(res.Trades), 0},
		{"Signals", len(rep.Decisions), 0},
		{"Admitted", rep.Admitted(), 0},
		{"Circuit Breaker", rep.Risk.CircuitBreakerTriggered, 0},
	}
	for i, r := range rows {
		row := i + 2
		if err := writeRow(fx, summarySheet, row, r.label, r.value); err != nil {
			return err
		}
		if r.style != 0 {
			cell, _ := excelize.CoordinatesToCellName(2, row)
			if err := fx.SetCellStyle(summarySheet, cell, cell, r.style); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeTradesSheet(fx *excelize.File, rep Report, styles excelStyles) error {
	headers := []string{"Position", "Symbol", "Side", "Source", "Entry Time", "Exit Time", "Quantity", "Entry", "Exit", "PnL", "Return"}
	if err := writeHeader(fx, tradesSheet, headers, styles.header); err != nil {
		return err
	}
	fx.SetColWidth(tradesSheet, "A", "A", 22)
	fx.SetColWidth(tradesSheet, "E", "F", 18)

	for i, t := range rep.Results.Trades {
		row := i + 2
		err := writeRow(fx, tradesSheet, row,
			t.PositionID, t.Symbol, string(t.Side), t.Source,
			t.EntryTime.Format("2006-01-02 15:04"), t.ExitTime.Format("2006-01-02 15:04"),
			t.Quantity, t.EntryPrice, t.ExitPrice, t.PnL, t.Return())
		if err != nil {
			return err
		}
		pnlCell, _ := excelize.CoordinatesToCellName(10, row)
		retCell, _ := excelize.CoordinatesToCellName(11, row)
		if err := fx.SetCellStyle(tradesSheet, pnlCell, pnlCell, styles.currency); err != nil {
			return err
		}
		if err := fx.SetCellStyle(tradesSheet, retCell, retCell, styles.percent); err != nil {
			return err
		}
	}
	return nil
}

func writeDecisionsSheet(fx *excelize.File, rep Report, styles excelStyles) error {
	headers := []string{"Signal ID", "Time", "Source", "Direction", "Strength", "Entry", "Stop", "Regime", "Decision", "Code", "Quantity", "Value", "Reason"}
	if err := writeHeader(fx, decisionsSheet, headers, styles.header); err != nil {
		return err
	}
	fx.SetColWidth(decisionsSheet, "A", "A", 38)
	fx.SetColWidth(decisionsSheet, "M", "M", 50)

	for i, d := range rep.Decisions {
		s := d.Signal
		var qty, value float64
		if d.Evaluation.PositionSize != nil {
			qty, value = d.Evaluation.PositionSize.Quantity, d.Evaluation.PositionSize.Value
		}
		err := writeRow(fx, decisionsSheet, i+2,
			s.ID, s.Timestamp.Format("2006-01-02 15:04"), s.Source, string(s.Direction),
			s.Strength, s.EntryPrice, s.StopLoss, s.Regime,
			string(d.Evaluation.Decision), string(d.Evaluation.Code), qty, value, d.Evaluation.Reason)
		if err != nil {
			return err
		}
	}
	return nil
}
