// Package email defines the interface for outbound notifications — the daily
// report delivery and the operational failure alert — and provides a
// Resend-backed implementation.
//
// The test-mode recipient override lives inside the implementation, not in
// the callers, so no code path can accidentally bypass it.
package email

import (
	"context"
	"errors"
)

// ErrSendRejected wraps any transport-level rejection: a non-2xx response or
// an API-level error object. Callers check it with errors.Is and decide
// whether a failed send is fatal to their run.
var ErrSendRejected = errors.New("email: send rejected")

// Attachment is one file attached to a report email.
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// ReportParams holds the data for the daily report delivery email.
type ReportParams struct {
	To         []string // real recipient list; replaced wholesale in test mode
	Subject    string
	HTMLBody   string
	Attachment *Attachment // usually the spreadsheet; nil for body-only sends
}

// AlertParams holds the data for an operational failure alert. Alerts always
// go to the single configured operations contact.
type AlertParams struct {
	Subject string
	Summary string // one-line description, shown first in the body
	Detail  string // full error text; HTML-escaped into the body
}

// Sender is the interface the dispatcher uses for all outbound mail. Tests
// inject a stub that records calls without hitting the network.
type Sender interface {
	// SendReport delivers the daily report email with its attachment.
	SendReport(ctx context.Context, p ReportParams) error

	// SendFailureAlert notifies the operations contact that a run failed.
	// A failure to deliver the alert is the caller's to log, never to act on.
	SendFailureAlert(ctx context.Context, p AlertParams) error
}
