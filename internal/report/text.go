package report

import (
	"strconv"
	"strings"
	"time"
)

// colWidths are the fixed text-format column widths, index-aligned with
// columns. The amount column is right-aligned; everything else left-aligned.
var colWidths = []int{20, 14, 16, 28, 16, 6, 10, 28, 10, 14, 14}

// TextRenderer produces the fixed-width plain-text report: `=` rules frame
// the report, `-` rules separate source groups.
type TextRenderer struct{}

// NewText returns the plain-text Renderer.
func NewText() TextRenderer { return TextRenderer{} }

func (TextRenderer) Render(agg Aggregate, reportDate time.Time) (Output, error) {
	if err := agg.validate(); err != nil {
		return Output{}, err
	}

	width := 0
	for _, w := range colWidths {
		width += w + 1
	}
	outerRule := strings.Repeat("=", width)
	groupRule := strings.Repeat("-", width)

	var b strings.Builder
	b.WriteString(outerRule + "\n")
	b.WriteString(reportTitle + " for " + formatDate(reportDate) + "\n")
	b.WriteString(outerRule + "\n\n")

	b.WriteString(padRow(columns) + "\n")
	b.WriteString(groupRule + "\n")

	for _, g := range agg.Groups {
		b.WriteString(g.Source + "\n")
		for _, r := range g.Records {
			b.WriteString(padRow(detailRow(r, false)) + "\n")
		}
		b.WriteString(padRow(labeledAmountRow("Subtotal", formatCurrency(g.Subtotal))) + "\n")
		b.WriteString(groupRule + "\n")
	}

	b.WriteString(outerRule + "\n")
	b.WriteString(padRow(labeledAmountRow("Grand Total", formatCurrency(agg.GrandTotal))) + "\n")
	b.WriteString(outerRule + "\n\n")

	b.WriteString("Records: " + strconv.Itoa(agg.Count) + "\n")
	b.WriteString("Sources: " + strconv.Itoa(len(agg.Groups)) + "\n")

	return Output{
		Payload:  []byte(b.String()),
		Filename: reportFilename("text", "txt", reportDate),
		MIMEType: "text/plain",
	}, nil
}

// padRow pads each cell to its column width, right-aligning the amount cell.
// Cells that overflow their column are emitted unpadded rather than chopped —
// field cleaning already caps their length.
func padRow(cells []string) string {
	var b strings.Builder
	for i, cell := range cells {
		w := colWidths[i]
		n := len([]rune(cell))
		pad := w - n
		if pad < 0 {
			pad = 0
		}
		if i == colAmount {
			b.WriteString(strings.Repeat(" ", pad))
			b.WriteString(cell)
		} else {
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", pad))
		}
		b.WriteByte(' ')
	}
	return strings.TrimRight(b.String(), " ")
}

// labeledAmountRow builds a mostly-empty row carrying a label in the source
// column and an amount in the gift-amount column, used for subtotal and
// grand-total lines.
func labeledAmountRow(label, amount string) []string {
	row := make([]string, colCount)
	row[colSource] = label
	row[colAmount] = amount
	return row
}

