// Package dispatch orchestrates one full report run: fetch the rows,
// aggregate them, render every format, persist to disk, email the result.
// Stages run strictly sequentially; any stage failure is caught here,
// converted into a failed Result, and answered with a best-effort failure
// alert. Retries never cross stage boundaries — the only internal retry is
// the warehouse warm-up loop.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/goodsteward/donation-reporter/internal/email"
	"github.com/goodsteward/donation-reporter/internal/report"
	"github.com/goodsteward/donation-reporter/internal/warehouse"
)

// Config holds the dispatcher's already-resolved settings.
type Config struct {
	// OutputDir receives one file per format per run.
	OutputDir string

	// Recipients is the report email's real recipient list. Test-mode
	// redirection happens inside the email client, not here.
	Recipients []string

	// RetentionDays bounds how long persisted reports are kept. Default: 30.
	RetentionDays int

	// Now is the clock; nil means time.Now. Injected by tests.
	Now func() time.Time
}

// Result is the outcome of one run.
type Result struct {
	RunID       uuid.UUID
	Success     bool
	RecordCount int
	FilePaths   []string
	Message     string
	FinishedAt  time.Time
}

// Dispatcher wires the pipeline's collaborators together.
type Dispatcher struct {
	fetcher warehouse.Fetcher
	mailer  email.Sender
	cfg     Config
	logger  *slog.Logger
}

// New constructs a Dispatcher.
func New(fetcher warehouse.Fetcher, mailer email.Sender, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{fetcher: fetcher, mailer: mailer, cfg: cfg, logger: logger}
}

// Run executes the full pipeline once. It never panics and never returns an
// error: every failure is folded into the Result so the caller (cron entry or
// --now invocation) has a single shape to report.
func (d *Dispatcher) Run(ctx context.Context) Result {
	runID := uuid.New()
	log := d.logger.With("run_id", runID)
	reportDate := d.cfg.Now().AddDate(0, 0, -1) // the report covers yesterday

	log.Info("run: starting", "report_date", reportDate.Format("2006-01-02"))

	// Retention sweep first — non-critical, never fails the run.
	d.cleanupOldReports(log)

	// ── Fetch ─────────────────────────────────────────────────────────────────
	records, err := d.fetcher.FetchDonations(ctx)
	if err != nil {
		return d.fail(ctx, log, runID, "fetch", err)
	}
	log.Info("run: fetched records", "count", len(records))

	// ── Aggregate ─────────────────────────────────────────────────────────────
	agg := report.BuildAggregate(records)
	log.Info("run: aggregated", "groups", len(agg.Groups), "grand_total", agg.GrandTotal)

	// ── Render ────────────────────────────────────────────────────────────────
	// File formats first, then the HTML email body from the same immutable
	// aggregate.
	var outputs []report.Output
	for _, r := range []report.Renderer{report.NewText(), report.NewCSV(), report.NewXLSX()} {
		out, err := r.Render(agg, reportDate)
		if err != nil {
			return d.fail(ctx, log, runID, "render", err)
		}
		outputs = append(outputs, out)
	}
	body, err := report.NewHTML().Render(agg, reportDate)
	if err != nil {
		return d.fail(ctx, log, runID, "render", err)
	}

	// ── Persist ───────────────────────────────────────────────────────────────
	paths := make([]string, 0, len(outputs))
	for _, out := range outputs {
		path := filepath.Join(d.cfg.OutputDir, out.Filename)
		if err := os.WriteFile(path, out.Payload, 0o644); err != nil {
			return d.fail(ctx, log, runID, "persist", fmt.Errorf("write %s: %w", path, err))
		}
		log.Info("run: wrote report file", "path", path, "bytes", len(out.Payload))
		paths = append(paths, path)
	}

	// ── Notify ────────────────────────────────────────────────────────────────
	// The spreadsheet rides along as the attachment; the HTML summary is the
	// body. A rejected send fails the run but the persisted files stay put.
	var attachment *email.Attachment
	for _, out := range outputs {
		if out.MIMEType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
			attachment = &email.Attachment{
				Filename: out.Filename,
				MIMEType: out.MIMEType,
				Content:  out.Payload,
			}
		}
	}
	sendErr := d.mailer.SendReport(ctx, email.ReportParams{
		To:         d.cfg.Recipients,
		Subject:    fmt.Sprintf("Daily Donation Report for %s", reportDate.Format("01/02/2006")),
		HTMLBody:   string(body.Payload),
		Attachment: attachment,
	})
	if sendErr != nil {
		res := d.fail(ctx, log, runID, "notify", sendErr)
		res.RecordCount = agg.Count
		res.FilePaths = paths
		return res
	}

	log.Info("run: complete", "records", agg.Count, "files", len(paths))
	return Result{
		RunID:       runID,
		Success:     true,
		RecordCount: agg.Count,
		FilePaths:   paths,
		Message:     fmt.Sprintf("%d records, %d sources, grand total %s", agg.Count, len(agg.Groups), agg.GrandTotal.StringFixed(2)),
		FinishedAt:  d.cfg.Now(),
	}
}

// fail logs the stage failure, attempts a best-effort alert, and builds the
// failed Result. The alert's own failure is logged and otherwise ignored —
// it must never change the run's already-determined outcome.
func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, runID uuid.UUID, stage string, err error) Result {
	log.Error("run: stage failed", "stage", stage, "error", err)

	if alertErr := d.mailer.SendFailureAlert(ctx, email.AlertParams{
		Subject: "Daily donation report FAILED",
		Summary: fmt.Sprintf("The daily donation report failed during the %s stage.", stage),
		Detail:  err.Error(),
	}); alertErr != nil {
		log.Error("run: failure alert could not be delivered", "error", alertErr)
	}

	return Result{
		RunID:      runID,
		Success:    false,
		Message:    fmt.Sprintf("%s: %v", stage, err),
		FinishedAt: d.cfg.Now(),
	}
}

// cleanupOldReports deletes persisted report files older than the retention
// window. Failures here are logged only — losing a sweep is not worth
// failing a run over.
func (d *Dispatcher) cleanupOldReports(log *slog.Logger) {
	cutoff := d.cfg.Now().AddDate(0, 0, -d.cfg.RetentionDays)

	matches, err := filepath.Glob(filepath.Join(d.cfg.OutputDir, "Donations_*"))
	if err != nil {
		log.Warn("cleanup: glob failed", "error", err)
		return
	}
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			log.Warn("cleanup: stat failed", "path", path, "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Warn("cleanup: remove failed", "path", path, "error", err)
			continue
		}
		log.Info("cleanup: removed old report", "path", path)
	}
}
