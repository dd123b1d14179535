// Package donation defines the canonical donation record and the field
// cleaning applied to raw warehouse rows before anything downstream sees
// them. Every string field on a Record has already been trimmed, stripped of
// control characters, and length-capped — renderers rely on this and never
// re-sanitize.
package donation

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DefaultSource is the campaign label assigned to rows with no appeal code.
const DefaultSource = "000-No Solicitation"

// MaxFieldLen caps the length (in runes) of any cleaned string field. Longer
// values are truncated with an ellipsis so a single pathological cell cannot
// blow out the fixed-width layout or a spreadsheet cell limit.
const MaxFieldLen = 120

// Payment method codes as they appear in the warehouse.
const (
	methodCreditCard = 0
	methodACH        = 1
	methodCheck      = 2
	methodCash       = 3
)

// Record is one donation line after field cleaning. Records are immutable
// once built and are discarded after the run that produced them.
type Record struct {
	Source        string
	FirstName     string
	LastName      string
	Address       string
	City          string
	State         string
	ZipCode       string
	Email         string
	DonationDate  time.Time
	Amount        decimal.Decimal
	PaymentMethod string
}

// RawRow is the uncleaned shape produced by the warehouse row scan (or the
// sample-data fabricator). New is the only way a RawRow becomes a Record.
type RawRow struct {
	Source     string
	FirstName  string
	LastName   string
	Address    string
	City       string
	State      string
	PostCode   string
	Email      string
	TheDate    time.Time
	Amount     decimal.Decimal
	MethodCode int
}

// New builds a cleaned Record from a raw warehouse row. An empty or
// whitespace-only source falls back to DefaultSource.
func New(raw RawRow) Record {
	source := CleanField(raw.Source)
	if source == "" {
		source = DefaultSource
	}
	return Record{
		Source:        source,
		FirstName:     CleanField(raw.FirstName),
		LastName:      CleanField(raw.LastName),
		Address:       CleanField(raw.Address),
		City:          CleanField(raw.City),
		State:         CleanField(raw.State),
		ZipCode:       CleanField(raw.PostCode),
		Email:         CleanField(raw.Email),
		DonationDate:  raw.TheDate,
		Amount:        raw.Amount,
		PaymentMethod: PaymentMethodLabel(raw.MethodCode),
	}
}

// CleanField normalizes one raw string field: embedded line breaks and tabs
// collapse to a single space, all other control characters are stripped, the
// result is trimmed, and anything over MaxFieldLen runes is truncated with a
// trailing ellipsis.
func CleanField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = r == ' '
		}
	}
	out := strings.TrimSpace(b.String())
	runes := []rune(out)
	if len(runes) > MaxFieldLen {
		out = string(runes[:MaxFieldLen-1]) + "…"
	}
	return out
}

// PaymentMethodLabel maps the warehouse's small integer payment code to its
// display label. Unknown codes map to "Unknown" rather than failing the row.
func PaymentMethodLabel(code int) string {
	switch code {
	case methodCreditCard:
		return "Credit Card"
	case methodACH:
		return "ACH-EFT"
	case methodCheck:
		return "Check"
	case methodCash:
		return "Cash"
	default:
		return "Unknown"
	}
}
