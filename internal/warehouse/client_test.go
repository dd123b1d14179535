package warehouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"

	"github.com/goodsteward/donation-reporter/internal/donation"
)

// Tests live in the package so they can drive the retry policy through the
// procRunner seam without a live database.

var testCfg = Config{
	ProcName:    "GetDonationsYesterday",
	WarmUpDelay: time.Microsecond,
	CoolDown:    time.Microsecond,
	MaxAttempts: 3,
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner scripts RunProc results per attempt and counts calls.
type fakeRunner struct {
	warmUpErr   error
	procResults []error // error per attempt; nil means success
	rows        []donation.Record

	warmUps  int
	procRuns int
}

func (f *fakeRunner) WarmUp(_ context.Context, _ int) error {
	f.warmUps++
	return f.warmUpErr
}

func (f *fakeRunner) RunProc(_ context.Context) ([]donation.Record, error) {
	i := f.procRuns
	f.procRuns++
	if i < len(f.procResults) && f.procResults[i] != nil {
		return nil, f.procResults[i]
	}
	return f.rows, nil
}

func pausedErr() error {
	return mssql.Error{Number: 40613, Message: "Database 'dw' on server 'x' is not currently available."}
}

// ─── Retry policy ─────────────────────────────────────────────────────────────

func TestFetchDonations_SucceedsOnThirdAttempt(t *testing.T) {
	want := []donation.Record{{Source: "907-July Appeal", Amount: decimal.RequireFromString("50.00")}}
	runner := &fakeRunner{
		procResults: []error{pausedErr(), pausedErr(), nil},
		rows:        want,
	}
	c := newClient(runner, testCfg, testLogger())

	got, err := c.FetchDonations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Source != want[0].Source {
		t.Errorf("got %v, want %v", got, want)
	}
	if runner.procRuns != 3 {
		t.Errorf("procedure ran %d times, want 3", runner.procRuns)
	}
	// Each attempt performs the full two-probe warm-up.
	if runner.warmUps != 6 {
		t.Errorf("warm-up probes = %d, want 6", runner.warmUps)
	}
}

func TestFetchDonations_ExhaustsRetries(t *testing.T) {
	runner := &fakeRunner{
		procResults: []error{pausedErr(), pausedErr(), pausedErr(), pausedErr()},
	}
	c := newClient(runner, testCfg, testLogger())

	_, err := c.FetchDonations(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if runner.procRuns != 3 {
		t.Errorf("procedure ran %d times, want exactly MaxAttempts=3", runner.procRuns)
	}
}

func TestFetchDonations_NonTransientFailsImmediately(t *testing.T) {
	runner := &fakeRunner{
		procResults: []error{errors.New("incorrect syntax near 'EXEC'")},
	}
	c := newClient(runner, testCfg, testLogger())

	_, err := c.FetchDonations(context.Background())
	if !errors.Is(err, ErrQuery) {
		t.Fatalf("got %v, want ErrQuery", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("non-transient error must not classify as unavailable")
	}
	if runner.procRuns != 1 {
		t.Errorf("procedure ran %d times, want 1 (no retry)", runner.procRuns)
	}
}

func TestFetchDonations_WarmUpFailureIsClassifiedToo(t *testing.T) {
	// A paused instance can reject the warm-up probe itself; that still
	// counts as unavailable and burns attempts.
	runner := &fakeRunner{warmUpErr: pausedErr()}
	c := newClient(runner, testCfg, testLogger())

	_, err := c.FetchDonations(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if runner.procRuns != 0 {
		t.Errorf("procedure ran %d times, want 0", runner.procRuns)
	}
}

func TestFetchDonations_CancelledDuringCoolDown(t *testing.T) {
	cfg := testCfg
	cfg.CoolDown = time.Hour

	runner := &fakeRunner{procResults: []error{pausedErr()}}
	c := newClient(runner, cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.FetchDonations(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

// ─── Classification ───────────────────────────────────────────────────────────

func TestUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"azure 40613", mssql.Error{Number: 40613}, true},
		{"azure 40501 busy", mssql.Error{Number: 40501}, true},
		{"azure 49918 resources", mssql.Error{Number: 49918}, true},
		{"azure 4060 cannot open", mssql.Error{Number: 4060}, true},
		{"wrapped driver error", fmt.Errorf("exec: %w", mssql.Error{Number: 40613}), true},
		{"paused substring", errors.New("the database is paused"), true},
		{"resuming substring", errors.New("server is Resuming"), true},
		{"not available substring", errors.New("database 'dw' is not currently available"), true},
		{"syntax error", mssql.Error{Number: 102, Message: "incorrect syntax"}, false},
		{"login failure", errors.New("login error: mssql: login failed"), false},
		{"plain error", errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unavailable(tt.err); got != tt.want {
				t.Errorf("unavailable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
