package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// HTMLRenderer produces the summary-only email body: the per-source table
// mirroring the workbook's Summary sheet plus the statistics block. It never
// includes row-level donor detail — that lives in the attachment. The output
// is used as an email body, so the dispatcher neither persists nor attaches
// it; the Renderer contract is still satisfied for uniformity.
type HTMLRenderer struct{}

// NewHTML returns the email-body Renderer.
func NewHTML() HTMLRenderer { return HTMLRenderer{} }

// htmlView is the pre-formatted view model handed to the template. Currency
// and dates are formatted here so the template stays layout-only;
// html/template escapes every field on output.
type htmlView struct {
	Title      string
	ReportDate string
	Count      int
	GroupCount int
	GrandTotal string
	Rows       []htmlSummaryRow
	Largest    string
	Smallest   string
	Mean       string
	Median     string
}

type htmlSummaryRow struct {
	Source  string
	Count   int
	Total   string
	Average string
}

var htmlTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 640px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 4px;">{{.Title}}</h2>
  <p style="margin-top: 0; color: #6b7280;">{{.ReportDate}} &middot; {{.Count}} gifts across {{.GroupCount}} sources</p>
  <table style="border-collapse: collapse; width: 100%;">
    <tr style="background: #305496; color: #ffffff;">
      <th style="padding: 6px 10px; text-align: left;">Source</th>
      <th style="padding: 6px 10px; text-align: right;">Gifts</th>
      <th style="padding: 6px 10px; text-align: right;">Total</th>
      <th style="padding: 6px 10px; text-align: right;">Average</th>
    </tr>
{{- range .Rows}}
    <tr>
      <td style="padding: 6px 10px; border-bottom: 1px solid #e5e7eb;">{{.Source}}</td>
      <td style="padding: 6px 10px; border-bottom: 1px solid #e5e7eb; text-align: right;">{{.Count}}</td>
      <td style="padding: 6px 10px; border-bottom: 1px solid #e5e7eb; text-align: right;">{{.Total}}</td>
      <td style="padding: 6px 10px; border-bottom: 1px solid #e5e7eb; text-align: right;">{{.Average}}</td>
    </tr>
{{- end}}
    <tr style="background: #548235; color: #ffffff; font-weight: 600;">
      <td style="padding: 6px 10px;">Grand Total</td>
      <td style="padding: 6px 10px; text-align: right;">{{.Count}}</td>
      <td style="padding: 6px 10px; text-align: right;">{{.GrandTotal}}</td>
      <td style="padding: 6px 10px;"></td>
    </tr>
  </table>
  <h3 style="margin-bottom: 4px;">Statistics</h3>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 2px 16px 2px 0;">Largest gift</td><td style="text-align: right;">{{.Largest}}</td></tr>
    <tr><td style="padding: 2px 16px 2px 0;">Smallest gift</td><td style="text-align: right;">{{.Smallest}}</td></tr>
    <tr><td style="padding: 2px 16px 2px 0;">Mean gift</td><td style="text-align: right;">{{.Mean}}</td></tr>
    <tr><td style="padding: 2px 16px 2px 0;">Median gift</td><td style="text-align: right;">{{.Median}}</td></tr>
  </table>
  <p style="color: #9ca3af; font-size: 12px;">The full row-level report is attached as a spreadsheet.</p>
</body>
</html>`))

func (HTMLRenderer) Render(agg Aggregate, reportDate time.Time) (Output, error) {
	if err := agg.validate(); err != nil {
		return Output{}, err
	}

	stats := agg.Stats()
	view := htmlView{
		Title:      reportTitle,
		ReportDate: formatDate(reportDate),
		Count:      agg.Count,
		GroupCount: len(agg.Groups),
		GrandTotal: formatCurrency(agg.GrandTotal),
		Largest:    formatCurrency(stats.Largest),
		Smallest:   formatCurrency(stats.Smallest),
		Mean:       formatCurrency(stats.Mean),
		Median:     formatCurrency(stats.Median),
	}
	for _, s := range agg.SourceSummaries() {
		view.Rows = append(view.Rows, htmlSummaryRow{
			Source:  s.Source,
			Count:   s.Count,
			Total:   formatCurrency(s.Total),
			Average: formatCurrency(s.Average),
		})
	}

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, view); err != nil {
		return Output{}, fmt.Errorf("report: execute html template: %w", err)
	}

	return Output{
		Payload:  buf.Bytes(),
		Filename: reportFilename("html", "html", reportDate),
		MIMEType: "text/html",
	}, nil
}
