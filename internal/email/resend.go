package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.resend.com/emails"

// testTag prefixes every subject sent while test mode is on, so a redirected
// message can never be mistaken for a production one.
const testTag = "[TEST] "

// ClientConfig holds the values the Resend client needs at construction.
type ClientConfig struct {
	APIKey   string
	FromAddr string // e.g. "reports@goodsteward.org"
	FromName string // e.g. "Donation Reports"

	// AlertRecipient is the single operations contact for failure alerts.
	AlertRecipient string

	// TestMode redirects every send — reports and alerts alike — to
	// TestRecipient and tags the subject.
	TestMode      bool
	TestRecipient string

	// APIURL overrides the Resend endpoint. Empty means production.
	APIURL string
}

// resendClient is the concrete Sender backed by the Resend API.
type resendClient struct {
	cfg        ClientConfig
	apiURL     string
	httpClient *http.Client
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(cfg ClientConfig) Sender {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &resendClient{
		cfg:    cfg,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // attachments make these requests heavier
		},
	}
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"` // base64
	ContentType string `json:"content_type,omitempty"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

// SendReport delivers the daily report email.
func (c *resendClient) SendReport(ctx context.Context, p ReportParams) error {
	req := resendRequest{
		To:      p.To,
		Subject: p.Subject,
		HTML:    p.HTMLBody,
	}
	if p.Attachment != nil {
		req.Attachments = []resendAttachment{{
			Filename:    p.Attachment.Filename,
			Content:     base64.StdEncoding.EncodeToString(p.Attachment.Content),
			ContentType: p.Attachment.MIMEType,
		}}
	}
	return c.send(ctx, req)
}

// SendFailureAlert notifies the operations contact with the full error text.
func (c *resendClient) SendFailureAlert(ctx context.Context, p AlertParams) error {
	return c.send(ctx, resendRequest{
		To:      []string{c.cfg.AlertRecipient},
		Subject: p.Subject,
		HTML:    alertHTML(p.Summary, p.Detail),
	})
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

// send applies the test-mode override and posts the message. Because every
// Sender method funnels through here, the override is uniform across report
// and alert sends.
func (c *resendClient) send(ctx context.Context, msg resendRequest) error {
	if c.cfg.TestMode {
		msg.To = []string{c.cfg.TestRecipient}
		msg.Subject = testTag + msg.Subject
	}
	msg.From = fmt.Sprintf("%s <%s>", c.cfg.FromName, c.cfg.FromAddr)

	bodyBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL,
		bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	var parsed resendResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return fmt.Errorf("email: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.Error != nil {
		return fmt.Errorf("%w: %s: %s", ErrSendRejected, parsed.Error.Name, parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d: %.200s", ErrSendRejected, resp.StatusCode, string(respBytes))
	}
	return nil
}

// ─── HTML BODY ────────────────────────────────────────────────────────────────

func alertHTML(summary, detail string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 640px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px; color: #b91c1c;">Donation Report Failure</h2>
  <p>%s</p>
  <pre style="background: #f3f4f6; padding: 12px; border-radius: 6px; white-space: pre-wrap; font-size: 13px;">%s</pre>
  <p style="color: #9ca3af; font-size: 12px;">
    Sent automatically by the donation reporter. Check the service log for stage-level detail.
  </p>
</body>
</html>`, html.EscapeString(summary), html.EscapeString(detail))
}
