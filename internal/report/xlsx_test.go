package report_test

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/goodsteward/donation-reporter/internal/report"
)

func openWorkbook(t *testing.T, payload []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("open rendered workbook: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestXLSXRenderer_Workbook(t *testing.T) {
	out, err := report.NewXLSX().Render(sampleAggregate(), reportDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Filename != "Donations_xlsx_20260715.xlsx" {
		t.Errorf("filename = %q", out.Filename)
	}
	if out.MIMEType != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("mime = %q", out.MIMEType)
	}

	f := openWorkbook(t, out.Payload)

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Daily Donations" || sheets[1] != "Summary" {
		t.Fatalf("sheets = %v, want [Daily Donations Summary]", sheets)
	}

	rows, err := f.GetRows("Daily Donations")
	if err != nil {
		t.Fatalf("read detail sheet: %v", err)
	}

	// Row 1 title, row 2 header, then the first group.
	if rows[1][0] != "Source" || rows[1][9] != "Gift Amount" {
		t.Errorf("header row = %v", rows[1])
	}
	if rows[2][0] != "000-No Solicitation" {
		t.Errorf("first group header = %q", rows[2][0])
	}

	var sawGrand, sawSubtotal, sawDonor bool
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		switch row[0] {
		case "Grand Total":
			sawGrand = true
		case "Subtotal":
			sawSubtotal = true
		}
		if len(row) > 2 && row[2] == "Schoenwetter" {
			sawDonor = true
			// Detail rows leave the source cell blank.
			if row[0] != "" {
				t.Errorf("detail row repeats source: %v", row)
			}
		}
	}
	if !sawGrand || !sawSubtotal || !sawDonor {
		t.Errorf("detail sheet missing rows: grand=%v subtotal=%v donor=%v",
			sawGrand, sawSubtotal, sawDonor)
	}
}

func TestXLSXRenderer_SummarySheet(t *testing.T) {
	out, err := report.NewXLSX().Render(sampleAggregate(), reportDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := openWorkbook(t, out.Payload)

	rows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("read summary sheet: %v", err)
	}

	if rows[1][0] != "Source" || rows[1][3] != "Average" {
		t.Errorf("summary header = %v", rows[1])
	}
	if rows[2][0] != "000-No Solicitation" || rows[2][1] != "1" {
		t.Errorf("first summary row = %v", rows[2])
	}

	var labels []string
	for _, row := range rows {
		if len(row) > 0 {
			labels = append(labels, row[0])
		}
	}
	for _, want := range []string{"Grand Total", "Largest Gift", "Smallest Gift", "Mean Gift", "Median Gift"} {
		found := false
		for _, l := range labels {
			if l == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("summary sheet missing %q", want)
		}
	}
}

func TestXLSXRenderer_FrozenHeader(t *testing.T) {
	out, err := report.NewXLSX().Render(sampleAggregate(), reportDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := openWorkbook(t, out.Payload)

	panes, err := f.GetPanes("Daily Donations")
	if err != nil {
		t.Fatalf("get panes: %v", err)
	}
	if !panes.Freeze || panes.YSplit != 2 {
		t.Errorf("panes = %+v, want frozen with YSplit 2", panes)
	}
}

func TestXLSXRenderer_EmptyAggregate(t *testing.T) {
	out, err := report.NewXLSX().Render(report.BuildAggregate(nil), reportDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := openWorkbook(t, out.Payload)

	rows, err := f.GetRows("Daily Donations")
	if err != nil {
		t.Fatalf("read detail sheet: %v", err)
	}
	// Title, header, grand total — and no group rows in between.
	if rows[1][0] != "Source" {
		t.Errorf("header row = %v", rows[1])
	}
	if rows[2][0] != "Grand Total" {
		t.Errorf("row after header = %v, want the grand total", rows[2])
	}
}
