package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// CSVRenderer produces an RFC-4180 file: a `#`-prefixed comment block with
// the report title and totals, then the header row and the data. CSV has no
// nested sections, so group boundaries are marked with a sentinel row
// ("=== <source> ===") and the source is repeated on every detail row so the
// rows survive filtering in a spreadsheet tool.
type CSVRenderer struct{}

// NewCSV returns the CSV Renderer.
func NewCSV() CSVRenderer { return CSVRenderer{} }

func (CSVRenderer) Render(agg Aggregate, reportDate time.Time) (Output, error) {
	if err := agg.validate(); err != nil {
		return Output{}, err
	}

	var buf bytes.Buffer

	// Comment block. Written raw, before the csv.Writer starts, so a reader
	// configured with Comment = '#' skips it cleanly.
	fmt.Fprintf(&buf, "# %s\n", reportTitle)
	fmt.Fprintf(&buf, "# Report Date: %s\n", formatDate(reportDate))
	fmt.Fprintf(&buf, "# Records: %d\n", agg.Count)
	fmt.Fprintf(&buf, "# Sources: %d\n", len(agg.Groups))
	fmt.Fprintf(&buf, "# Grand Total: %s\n", formatCurrency(agg.GrandTotal))

	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return Output{}, fmt.Errorf("report: write csv header: %w", err)
	}

	for _, g := range agg.Groups {
		sentinel := make([]string, colCount)
		sentinel[colSource] = "=== " + g.Source + " ==="
		if err := w.Write(sentinel); err != nil {
			return Output{}, fmt.Errorf("report: write csv group row: %w", err)
		}
		for _, r := range g.Records {
			if err := w.Write(detailRow(r, true)); err != nil {
				return Output{}, fmt.Errorf("report: write csv row: %w", err)
			}
		}
		sub := labeledAmountRow("Subtotal", formatCurrency(g.Subtotal))
		sub[colFirstName] = strconv.Itoa(len(g.Records)) + " gifts"
		if err := w.Write(sub); err != nil {
			return Output{}, fmt.Errorf("report: write csv subtotal: %w", err)
		}
	}

	if err := w.Write(labeledAmountRow("Grand Total", formatCurrency(agg.GrandTotal))); err != nil {
		return Output{}, fmt.Errorf("report: write csv grand total: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return Output{}, fmt.Errorf("report: flush csv: %w", err)
	}

	return Output{
		Payload:  buf.Bytes(),
		Filename: reportFilename("csv", "csv", reportDate),
		MIMEType: "text/csv",
	}, nil
}
