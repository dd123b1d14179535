package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goodsteward/donation-reporter/internal/donation"
)

// ErrRender wraps any structural failure while rendering. Given aggregates
// built by BuildAggregate this should never fire; callers check it with
// errors.Is.
var ErrRender = errors.New("report: malformed aggregate")

func errMalformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRender, fmt.Sprintf(format, args...))
}

// Output is one rendered report: the payload bytes plus the filename and MIME
// type the dispatcher uses when persisting and attaching it.
type Output struct {
	Payload  []byte
	Filename string
	MIMEType string
}

// Renderer is implemented once per output format. Every implementation
// consumes the same immutable Aggregate, so the dispatcher can render all
// formats from a single aggregation pass.
type Renderer interface {
	Render(agg Aggregate, reportDate time.Time) (Output, error)
}

// columns is the shared column order. Every format renders these columns in
// this order — the constant exists so the formats cannot drift apart.
var columns = []string{
	"Source", "First Name", "Last Name", "Address", "City", "State",
	"Zip", "Email", "Date", "Gift Amount", "Payment Method",
}

// Column indexes into a rendered row. Kept next to columns so a reorder
// cannot silently desynchronize them.
const (
	colSource = iota
	colFirstName
	colLastName
	colAddress
	colCity
	colState
	colZip
	colEmail
	colDate
	colAmount
	colMethod
	colCount
)

const reportTitle = "Daily Donation Report"

// ─── SHARED FORMATTING ────────────────────────────────────────────────────────

// formatCurrency renders an exact decimal as "$#,##0.00" — two fixed decimal
// places with comma-grouped thousands. Negative values get a leading minus.
func formatCurrency(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// formatDate renders a report or donation date as MM/DD/YYYY.
func formatDate(t time.Time) string {
	return t.Format("01/02/2006")
}

// reportFilename builds the deterministic per-run filename, e.g.
// "Donations_csv_20260828.csv".
func reportFilename(format, ext string, reportDate time.Time) string {
	return fmt.Sprintf("Donations_%s_%s.%s", format, reportDate.Format("20060102"), ext)
}

// detailRow renders one record into the shared column order. CSV repeats the
// source on every row because its rows must stand alone when filtered;
// vertical formats (text, xlsx) blank it because the group header already
// states it.
func detailRow(r donation.Record, repeatSource bool) []string {
	row := make([]string, colCount)
	if repeatSource {
		row[colSource] = r.Source
	}
	row[colFirstName] = r.FirstName
	row[colLastName] = r.LastName
	row[colAddress] = r.Address
	row[colCity] = r.City
	row[colState] = r.State
	row[colZip] = r.ZipCode
	row[colEmail] = r.Email
	row[colDate] = formatDate(r.DonationDate)
	row[colAmount] = formatCurrency(r.Amount)
	row[colMethod] = r.PaymentMethod
	return row
}
