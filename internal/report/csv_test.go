package report_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/goodsteward/donation-reporter/internal/donation"
	"github.com/goodsteward/donation-reporter/internal/report"
)

// parseCSV reads rendered output back through a standards-compliant reader,
// skipping the #-comment block the way a consumer would.
func parseCSV(t *testing.T, payload []byte) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(payload))
	r.Comment = '#'
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("re-parse csv: %v", err)
	}
	return rows
}

func TestCSVRenderer_RoundTripsQuotedFields(t *testing.T) {
	address := `12 "The Oaks", Unit 3`
	agg := report.BuildAggregate([]donation.Record{
		{
			Source: "907-July Appeal", FirstName: "Carl", LastName: "Brandt",
			Address: address, City: "Waunakee", State: "WI", ZipCode: "53597",
			Email: "c@example.com", DonationDate: reportDate,
			Amount: decimal.RequireFromString("125.50"), PaymentMethod: "Check",
		},
	})

	out, err := report.NewCSV().Render(agg, reportDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Filename != "Donations_csv_20260715.csv" {
		t.Errorf("filename = %q", out.Filename)
	}
	if out.MIMEType != "text/csv" {
		t.Errorf("mime = %q", out.MIMEType)
	}

	rows := parseCSV(t, out.Payload)

	var detail []string
	for _, row := range rows {
		if row[2] == "Brandt" {
			detail = row
			break
		}
	}
	if detail == nil {
		t.Fatal("detail row for Brandt not found")
	}
	if detail[3] != address {
		t.Errorf("address round-trip: got %q, want %q", detail[3], address)
	}
	// CSV rows must stand alone, so the source repeats on every detail row.
	if detail[0] != "907-July Appeal" {
		t.Errorf("detail row source = %q, want 907-July Appeal", detail[0])
	}
}

func TestCSVRenderer_Structure(t *testing.T) {
	out, err := report.NewCSV().Render(sampleAggregate(), reportDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := string(out.Payload)
	// The comment block is raw text above the CSV rows.
	for _, want := range []string{
		"# Daily Donation Report\n",
		"# Report Date: 07/15/2026\n",
		"# Records: 2\n",
		"# Grand Total: $5,050.00\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("csv output missing comment line %q", want)
		}
	}

	rows := parseCSV(t, out.Payload)

	header := rows[0]
	if header[0] != "Source" || header[9] != "Gift Amount" || header[10] != "Payment Method" {
		t.Errorf("unexpected header row: %v", header)
	}

	var sentinels, subtotals int
	for _, row := range rows {
		if strings.HasPrefix(row[0], "=== ") && strings.HasSuffix(row[0], " ===") {
			sentinels++
		}
		if row[0] == "Subtotal" {
			subtotals++
		}
	}
	if sentinels != 2 {
		t.Errorf("got %d group sentinel rows, want 2", sentinels)
	}
	if subtotals != 2 {
		t.Errorf("got %d subtotal rows, want 2", subtotals)
	}

	last := rows[len(rows)-1]
	if last[0] != "Grand Total" || last[9] != "$5,050.00" {
		t.Errorf("last row = %v, want grand total with $5,050.00", last)
	}
}

func TestCSVRenderer_EmptyAggregate(t *testing.T) {
	out, err := report.NewCSV().Render(report.BuildAggregate(nil), reportDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := parseCSV(t, out.Payload)
	// Header plus the grand-total row and nothing else.
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (header + grand total)", len(rows))
	}
	if rows[1][0] != "Grand Total" || rows[1][9] != "$0.00" {
		t.Errorf("grand total row = %v", rows[1])
	}
	if !strings.Contains(string(out.Payload), "# Records: 0") {
		t.Error("comment block missing zero record count")
	}
}
