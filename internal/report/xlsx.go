package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetDetail  = "Daily Donations"
	sheetSummary = "Summary"

	currencyNumFmt = "$#,##0.00"
	xlsxMIME       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// XLSXRenderer produces the two-sheet workbook: "Daily Donations" holds the
// styled row-level table (frozen header, zebra shading, highlighted subtotal
// and grand-total rows, autosized columns, landscape print layout) and
// "Summary" holds the per-source totals plus the whole-day statistics.
type XLSXRenderer struct{}

// NewXLSX returns the spreadsheet Renderer.
func NewXLSX() XLSXRenderer { return XLSXRenderer{} }

// xlsxStyles holds the style IDs registered against one workbook.
type xlsxStyles struct {
	title      int
	header     int
	zebra      int
	zebraMoney int
	money      int
	subtotal   int
	subMoney   int
	grand      int
	grandMoney int
}

func (XLSXRenderer) Render(agg Aggregate, reportDate time.Time) (Output, error) {
	if err := agg.validate(); err != nil {
		return Output{}, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetDetail); err != nil {
		return Output{}, fmt.Errorf("report: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return Output{}, fmt.Errorf("report: add summary sheet: %w", err)
	}

	styles, err := registerStyles(f)
	if err != nil {
		return Output{}, fmt.Errorf("report: register styles: %w", err)
	}

	if err := writeDetailSheet(f, styles, agg, reportDate); err != nil {
		return Output{}, err
	}
	if err := writeSummarySheet(f, styles, agg, reportDate); err != nil {
		return Output{}, err
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Output{}, fmt.Errorf("report: serialize workbook: %w", err)
	}

	return Output{
		Payload:  buf.Bytes(),
		Filename: reportFilename("xlsx", "xlsx", reportDate),
		MIMEType: xlsxMIME,
	}, nil
}

func registerStyles(f *excelize.File) (xlsxStyles, error) {
	var s xlsxStyles
	var err error

	numFmt := currencyNumFmt

	if s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	}); err != nil {
		return s, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"305496"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return s, err
	}
	if s.zebra, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"EDF2F9"}},
	}); err != nil {
		return s, err
	}
	if s.zebraMoney, err = f.NewStyle(&excelize.Style{
		Fill:         excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"EDF2F9"}},
		CustomNumFmt: &numFmt,
	}); err != nil {
		return s, err
	}
	if s.money, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &numFmt,
	}); err != nil {
		return s, err
	}
	if s.subtotal, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFF2CC"}},
	}); err != nil {
		return s, err
	}
	if s.subMoney, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true},
		Fill:         excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFF2CC"}},
		CustomNumFmt: &numFmt,
	}); err != nil {
		return s, err
	}
	if s.grand, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"548235"}},
	}); err != nil {
		return s, err
	}
	if s.grandMoney, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:         excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"548235"}},
		CustomNumFmt: &numFmt,
	}); err != nil {
		return s, err
	}
	return s, nil
}

func writeDetailSheet(f *excelize.File, styles xlsxStyles, agg Aggregate, reportDate time.Time) error {
	lastCol, _ := excelize.ColumnNumberToName(colCount)

	// Title row, then the frozen header row beneath it.
	if err := f.SetCellValue(sheetDetail, "A1", reportTitle+" for "+formatDate(reportDate)); err != nil {
		return fmt.Errorf("report: write title: %w", err)
	}
	if err := f.SetCellStyle(sheetDetail, "A1", "A1", styles.title); err != nil {
		return fmt.Errorf("report: style title: %w", err)
	}

	const headerRow = 2
	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := f.SetCellValue(sheetDetail, cell, name); err != nil {
			return fmt.Errorf("report: write header: %w", err)
		}
	}
	if err := f.SetCellStyle(sheetDetail,
		"A"+itoaRow(headerRow), lastCol+itoaRow(headerRow), styles.header); err != nil {
		return fmt.Errorf("report: style header: %w", err)
	}

	// Track the widest content per column for the autosize pass.
	widths := make([]int, colCount)
	for i, name := range columns {
		widths[i] = len(name)
	}

	row := headerRow
	for _, g := range agg.Groups {
		row++
		if err := f.SetCellValue(sheetDetail, "A"+itoaRow(row), g.Source); err != nil {
			return fmt.Errorf("report: write group header: %w", err)
		}
		if err := f.SetCellStyle(sheetDetail, "A"+itoaRow(row), lastCol+itoaRow(row), styles.subtotal); err != nil {
			return fmt.Errorf("report: style group header: %w", err)
		}
		trackWidth(widths, colSource, g.Source)

		for n, r := range g.Records {
			row++
			cells := detailRow(r, false)
			for i, v := range cells {
				if i == colAmount || v == "" {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				if err := f.SetCellValue(sheetDetail, cell, v); err != nil {
					return fmt.Errorf("report: write detail cell: %w", err)
				}
				trackWidth(widths, i, v)
			}
			// Amount goes in as a number with a currency format so the
			// spreadsheet can still sum it.
			amountCell, _ := excelize.CoordinatesToCellName(colAmount+1, row)
			if err := f.SetCellValue(sheetDetail, amountCell, r.Amount.InexactFloat64()); err != nil {
				return fmt.Errorf("report: write amount: %w", err)
			}
			trackWidth(widths, colAmount, formatCurrency(r.Amount))

			moneyStyle := styles.money
			if n%2 == 1 {
				if err := f.SetCellStyle(sheetDetail, "A"+itoaRow(row), lastCol+itoaRow(row), styles.zebra); err != nil {
					return fmt.Errorf("report: style zebra row: %w", err)
				}
				moneyStyle = styles.zebraMoney
			}
			if err := f.SetCellStyle(sheetDetail, amountCell, amountCell, moneyStyle); err != nil {
				return fmt.Errorf("report: style amount: %w", err)
			}
		}

		row++
		if err := writeAmountRow(f, sheetDetail, row, "Subtotal", g.Subtotal,
			styles.subtotal, styles.subMoney, lastCol); err != nil {
			return err
		}
	}

	row++
	if err := writeAmountRow(f, sheetDetail, row, "Grand Total", agg.GrandTotal,
		styles.grand, styles.grandMoney, lastCol); err != nil {
		return err
	}

	row += 2
	if err := f.SetCellValue(sheetDetail, "A"+itoaRow(row), fmt.Sprintf("Records: %d", agg.Count)); err != nil {
		return fmt.Errorf("report: write record count: %w", err)
	}
	row++
	if err := f.SetCellValue(sheetDetail, "A"+itoaRow(row), fmt.Sprintf("Sources: %d", len(agg.Groups))); err != nil {
		return fmt.Errorf("report: write source count: %w", err)
	}

	// Freeze everything above the first data row.
	if err := f.SetPanes(sheetDetail, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: "A" + itoaRow(headerRow+1),
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("report: freeze header: %w", err)
	}

	for i, w := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetDetail, name, name, autosize(w)); err != nil {
			return fmt.Errorf("report: set column width: %w", err)
		}
	}

	orientation := "landscape"
	fitToWidth := 1
	if err := f.SetPageLayout(sheetDetail, &excelize.PageLayoutOptions{
		Orientation: &orientation,
		FitToWidth:  &fitToWidth,
	}); err != nil {
		return fmt.Errorf("report: set print layout: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, styles xlsxStyles, agg Aggregate, reportDate time.Time) error {
	if err := f.SetCellValue(sheetSummary, "A1", "Summary for "+formatDate(reportDate)); err != nil {
		return fmt.Errorf("report: write summary title: %w", err)
	}
	if err := f.SetCellStyle(sheetSummary, "A1", "A1", styles.title); err != nil {
		return fmt.Errorf("report: style summary title: %w", err)
	}

	header := []string{"Source", "Gifts", "Total", "Average"}
	for i, name := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheetSummary, cell, name); err != nil {
			return fmt.Errorf("report: write summary header: %w", err)
		}
	}
	if err := f.SetCellStyle(sheetSummary, "A2", "D2", styles.header); err != nil {
		return fmt.Errorf("report: style summary header: %w", err)
	}

	row := 2
	for _, s := range agg.SourceSummaries() {
		row++
		if err := f.SetCellValue(sheetSummary, "A"+itoaRow(row), s.Source); err != nil {
			return fmt.Errorf("report: write summary source: %w", err)
		}
		if err := f.SetCellValue(sheetSummary, "B"+itoaRow(row), s.Count); err != nil {
			return fmt.Errorf("report: write summary count: %w", err)
		}
		if err := setMoney(f, styles, "C"+itoaRow(row), s.Total); err != nil {
			return err
		}
		if err := setMoney(f, styles, "D"+itoaRow(row), s.Average); err != nil {
			return err
		}
	}

	row++
	if err := f.SetCellValue(sheetSummary, "A"+itoaRow(row), "Grand Total"); err != nil {
		return fmt.Errorf("report: write summary grand total label: %w", err)
	}
	if err := f.SetCellValue(sheetSummary, "B"+itoaRow(row), agg.Count); err != nil {
		return fmt.Errorf("report: write summary grand count: %w", err)
	}
	if err := setMoney(f, styles, "C"+itoaRow(row), agg.GrandTotal); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetSummary, "A"+itoaRow(row), "D"+itoaRow(row), styles.grand); err != nil {
		return fmt.Errorf("report: style summary grand total: %w", err)
	}
	grandMoneyCell := "C" + itoaRow(row)
	if err := f.SetCellStyle(sheetSummary, grandMoneyCell, grandMoneyCell, styles.grandMoney); err != nil {
		return fmt.Errorf("report: style summary grand money: %w", err)
	}

	stats := agg.Stats()
	row += 2
	for _, line := range []struct {
		label string
		value decimal.Decimal
	}{
		{"Largest Gift", stats.Largest},
		{"Smallest Gift", stats.Smallest},
		{"Mean Gift", stats.Mean},
		{"Median Gift", stats.Median},
	} {
		if err := f.SetCellValue(sheetSummary, "A"+itoaRow(row), line.label); err != nil {
			return fmt.Errorf("report: write stat label: %w", err)
		}
		if err := setMoney(f, styles, "B"+itoaRow(row), line.value); err != nil {
			return err
		}
		row++
	}

	if err := f.SetColWidth(sheetSummary, "A", "A", 28); err != nil {
		return fmt.Errorf("report: set summary width: %w", err)
	}
	if err := f.SetColWidth(sheetSummary, "B", "D", 14); err != nil {
		return fmt.Errorf("report: set summary width: %w", err)
	}
	return nil
}

// writeAmountRow styles a whole subtotal/grand-total row and writes its label
// and numeric amount.
func writeAmountRow(f *excelize.File, sheet string, row int, label string, amount decimal.Decimal, rowStyle, moneyStyle int, lastCol string) error {
	if err := f.SetCellValue(sheet, "A"+itoaRow(row), label); err != nil {
		return fmt.Errorf("report: write %s label: %w", label, err)
	}
	amountCell, _ := excelize.CoordinatesToCellName(colAmount+1, row)
	if err := f.SetCellValue(sheet, amountCell, amount.InexactFloat64()); err != nil {
		return fmt.Errorf("report: write %s amount: %w", label, err)
	}
	if err := f.SetCellStyle(sheet, "A"+itoaRow(row), lastCol+itoaRow(row), rowStyle); err != nil {
		return fmt.Errorf("report: style %s row: %w", label, err)
	}
	if err := f.SetCellStyle(sheet, amountCell, amountCell, moneyStyle); err != nil {
		return fmt.Errorf("report: style %s amount: %w", label, err)
	}
	return nil
}

func setMoney(f *excelize.File, styles xlsxStyles, cell string, d decimal.Decimal) error {
	if err := f.SetCellValue(sheetSummary, cell, d.InexactFloat64()); err != nil {
		return fmt.Errorf("report: write money cell %s: %w", cell, err)
	}
	if err := f.SetCellStyle(sheetSummary, cell, cell, styles.money); err != nil {
		return fmt.Errorf("report: style money cell %s: %w", cell, err)
	}
	return nil
}

func trackWidth(widths []int, col int, v string) {
	if n := len([]rune(v)); n > widths[col] {
		widths[col] = n
	}
}

// autosize converts a rune count into a column width, padded and clamped so
// one long address does not produce an unprintable sheet.
func autosize(runes int) float64 {
	w := float64(runes) + 2
	if w < 10 {
		w = 10
	}
	if w > 42 {
		w = 42
	}
	return w
}

func itoaRow(n int) string { return strconv.Itoa(n) }
