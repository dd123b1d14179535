// Package warehouse executes the donations stored procedure against the
// Azure SQL data warehouse. The instance is serverless and auto-pauses, so
// every fetch goes through a two-step warm-up before the real query and a
// bounded retry loop when the backend reports itself paused or resuming.
//
// Dependency rule: warehouse imports donation only. It never imports report,
// dispatch, or email.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"

	"github.com/goodsteward/donation-reporter/internal/donation"
)

// ─── ERRORS ───────────────────────────────────────────────────────────────────

var (
	// ErrUnavailable means the database was paused or resuming and stayed
	// that way through every warm-up attempt. Transient in principle, but
	// the run has already burned its retry budget — the caller reports it.
	ErrUnavailable = errors.New("warehouse: database unavailable")

	// ErrQuery is any non-transient query or connection fault. Never retried.
	ErrQuery = errors.New("warehouse: query failed")
)

// ─── FETCHER INTERFACE ────────────────────────────────────────────────────────

// Fetcher is the narrow interface the dispatcher depends on. The concrete
// implementations are *Client (live warehouse) and SampleFetcher (fabricated
// rows for --test runs). Tests inject stubs the same way.
type Fetcher interface {
	FetchDonations(ctx context.Context) ([]donation.Record, error)
}

// ─── CONFIG ───────────────────────────────────────────────────────────────────

// Config holds the tuning parameters for the warm-up/retry policy. All
// zero values are replaced with production defaults.
type Config struct {
	// ProcName is the stored procedure that returns yesterday's donations.
	ProcName string

	// WarmUpDelay separates the two warm-up probes, giving the serverless
	// instance time to finish resuming. Default: 60s.
	WarmUpDelay time.Duration

	// CoolDown is the wait before re-running the warm-up after the primary
	// call came back "paused". Default: 2m.
	CoolDown time.Duration

	// MaxAttempts bounds the warm-up-and-query cycles. Default: 3.
	MaxAttempts int

	// QueryTimeout is the deadline for the primary call. The procedure scans
	// large tables, so this is generous. Default: 18m.
	QueryTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ProcName == "" {
		c.ProcName = "GetDonationsYesterday"
	}
	if c.WarmUpDelay <= 0 {
		c.WarmUpDelay = time.Minute
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 18 * time.Minute
	}
}

// ─── CLIENT ───────────────────────────────────────────────────────────────────

// procRunner is the seam between the retry policy and the SQL driver. The
// production implementation is sqlRunner; tests substitute a stub to exercise
// the policy without a live database.
type procRunner interface {
	// WarmUp runs warm-up probe 1 (trivial select) or 2 (count tables).
	WarmUp(ctx context.Context, step int) error

	// RunProc executes the stored procedure and scans the rows.
	RunProc(ctx context.Context) ([]donation.Record, error)
}

// Client fetches donation rows with warm-up and bounded retry.
type Client struct {
	runner procRunner
	cfg    Config
	logger *slog.Logger
}

// NewClient wraps an open connection pool. The pool is not pinged here: the
// instance may be paused at startup and is woken per run by the warm-up.
func NewClient(db *sql.DB, cfg Config, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		runner: &sqlRunner{db: db, proc: cfg.ProcName, queryTimeout: cfg.QueryTimeout},
		cfg:    cfg,
		logger: logger,
	}
}

func newClient(runner procRunner, cfg Config, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{runner: runner, cfg: cfg, logger: logger}
}

// FetchDonations warms the instance up and executes the stored procedure.
// A failure classified as "paused/resuming" triggers a cool-down and another
// full warm-up cycle, up to MaxAttempts; any other failure surfaces
// immediately as ErrQuery.
func (c *Client) FetchDonations(ctx context.Context) ([]donation.Record, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Info("warehouse: cooling down before retry",
				"attempt", attempt, "cool_down", c.cfg.CoolDown)
			if err := sleepCtx(ctx, c.cfg.CoolDown); err != nil {
				return nil, fmt.Errorf("warehouse: cancelled during cool-down: %w", err)
			}
		}

		records, err := c.attempt(ctx, attempt)
		if err == nil {
			c.logger.Info("warehouse: fetch succeeded", "attempt", attempt, "records", len(records))
			return records, nil
		}
		if !unavailable(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrQuery, c.cfg.ProcName, err)
		}

		c.logger.Warn("warehouse: database paused or resuming",
			"attempt", attempt, "max", c.cfg.MaxAttempts, "error", err)
		lastErr = err
	}

	return nil, fmt.Errorf("%w: gave up after %d attempts: %v",
		ErrUnavailable, c.cfg.MaxAttempts, lastErr)
}

// attempt is one full warm-up-then-query cycle.
func (c *Client) attempt(ctx context.Context, attempt int) ([]donation.Record, error) {
	log := c.logger.With("attempt", attempt)

	// Probe 1 wakes the instance; probe 2 confirms it is fully resumed.
	// Skipping this risks a cold-start timeout on the real query.
	log.Debug("warehouse: warm-up probe 1")
	if err := c.runner.WarmUp(ctx, 1); err != nil {
		return nil, err
	}
	if err := sleepCtx(ctx, c.cfg.WarmUpDelay); err != nil {
		return nil, err
	}
	log.Debug("warehouse: warm-up probe 2")
	if err := c.runner.WarmUp(ctx, 2); err != nil {
		return nil, err
	}

	log.Debug("warehouse: executing procedure", "proc", c.cfg.ProcName)
	return c.runner.RunProc(ctx)
}

// sleepCtx sleeps d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ─── CLASSIFICATION ───────────────────────────────────────────────────────────

// Azure SQL error numbers that mean the serverless instance is paused,
// resuming, or too busy to accept the request right now.
var unavailableNumbers = map[int32]bool{
	4060:  true, // cannot open database
	40501: true, // service is busy
	40613: true, // database not currently available
	49918: true, // not enough resources to process request
	49919: true, // too many create/update operations in progress
	49920: true, // too many operations in progress
}

var unavailableSubstrings = []string{
	"not currently available",
	"is paused",
	"resuming",
}

// unavailable reports whether err indicates a transient paused/resuming
// condition worth retrying.
func unavailable(err error) bool {
	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) && unavailableNumbers[sqlErr.Number] {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range unavailableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// ─── SQL RUNNER ───────────────────────────────────────────────────────────────

// Column names of the stored procedure's result set. Treated as a fixed
// schema; a missing column degrades each affected field to its documented
// default rather than failing the row.
const (
	colSource   = "Source"
	colFirst    = "FirstName"
	colLast     = "LastName"
	colAddress  = "Address"
	colCity     = "City"
	colState    = "State"
	colPostCode = "PostCode"
	colEmail    = "Email"
	colDate     = "theDate"
	colAmount   = "Amount"
	colMethod   = "Donation Method"
)

// sqlRunner is the production procRunner backed by database/sql.
type sqlRunner struct {
	db           *sql.DB
	proc         string
	queryTimeout time.Duration
}

func (r *sqlRunner) WarmUp(ctx context.Context, step int) error {
	// Warm-up probes get a short deadline of their own: if the instance is
	// paused even SELECT 1 can hang until the driver gives up.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	query := "SELECT 1"
	if step == 2 {
		query = "SELECT COUNT(*) FROM sys.tables"
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return fmt.Errorf("warm-up step %d: %w", step, err)
	}
	return nil
}

func (r *sqlRunner) RunProc(ctx context.Context) ([]donation.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, "EXEC "+r.proc)
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w", r.proc, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", r.proc, err)
	}
	return records, nil
}

// scanRecords maps the result set onto donation records by column name, so
// the procedure may return extra columns (ignored) or omit expected ones
// (defaulted) without breaking the scan.
func scanRecords(rows *sql.Rows) ([]donation.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	idx := make(map[string]int, len(cols))
	for i, name := range cols {
		idx[name] = i
	}

	var records []donation.Record
	for rows.Next() {
		holders := make([]any, len(cols))
		strs := make([]sql.NullString, len(cols))
		for i := range holders {
			holders[i] = &strs[i]
		}
		var date sql.NullTime
		if i, ok := idx[colDate]; ok {
			holders[i] = &date
		}
		var method sql.NullInt64
		if i, ok := idx[colMethod]; ok {
			holders[i] = &method
		}

		if err := rows.Scan(holders...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		str := func(col string) string {
			if i, ok := idx[col]; ok {
				return strs[i].String
			}
			return ""
		}

		amount := decimal.Zero
		if s := str(colAmount); s != "" {
			amount, err = decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("parse amount %q: %w", s, err)
			}
		}

		methodCode := -1 // maps to "Unknown"
		if method.Valid {
			methodCode = int(method.Int64)
		}

		records = append(records, donation.New(donation.RawRow{
			Source:     str(colSource),
			FirstName:  str(colFirst),
			LastName:   str(colLast),
			Address:    str(colAddress),
			City:       str(colCity),
			State:      str(colState),
			PostCode:   str(colPostCode),
			Email:      str(colEmail),
			TheDate:    date.Time,
			Amount:     amount,
			MethodCode: methodCode,
		}))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}
