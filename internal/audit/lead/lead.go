// Package lead validates lead-capture submissions and forwards them to the
// transactional email provider.
package lead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	resendEndpoint = "https://api.resend.com/emails"
	requestTimeout = 10 * time.Second
)

// Submission is the /lead request payload.
type Submission struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email"`
	Website string `json:"website"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message,omitempty"`
}

// Validate returns the list of problems with a submission; empty means valid.
func (s *Submission) Validate() []string {
	var errs []string
	if !strings.Contains(s.Email, "@") || !strings.Contains(s.Email, ".") {
		errs = append(errs, "a valid email is required")
	}
	if strings.TrimSpace(s.Website) == "" {
		errs = append(errs, "website is required")
	}
	return errs
}

// Forwarder dispatches leads as transactional emails.
type Forwarder struct {
	endpoint string
	apiKey   string
	from     string
	to       string
	client   *http.Client
	logger   *zap.Logger
}

// NewForwarder creates a Forwarder. Returns nil when no API key is
// configured; the endpoint then reports itself unavailable.
func NewForwarder(apiKey, from, to string, logger *zap.Logger) *Forwarder {
	if apiKey == "" {
		return nil
	}
	return &Forwarder{
		endpoint: resendEndpoint,
		apiKey:   apiKey,
		from:     from,
		to:       to,
		client:   &http.Client{},
		logger:   logger,
	}
}

// NewForwarderWithEndpoint creates a Forwarder against a custom endpoint.
// Used by tests.
func NewForwarderWithEndpoint(endpoint, apiKey, from, to string, logger *zap.Logger) *Forwarder {
	f := NewForwarder(apiKey, from, to, logger)
	if f != nil && endpoint != "" {
		f.endpoint = endpoint
	}
	return f
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// Send forwards the lead and returns the provider message id.
func (f *Forwarder) Send(ctx context.Context, s *Submission) (string, error) {
	body := resendRequest{
		From:    f.from,
		To:      []string{f.to},
		Subject: fmt.Sprintf("New audit lead: %s", s.Website),
		HTML:    renderLeadHTML(s),
		ReplyTo: s.Email,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal lead email: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build lead request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send lead email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("email provider returned %d", resp.StatusCode)
	}

	var parsed resendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&parsed); err != nil {
		// The lead was accepted; a missing id is not an error.
		f.logger.Debug("Lead response not parseable", zap.Error(err))
	}
	return parsed.ID, nil
}

func renderLeadHTML(s *Submission) string {
	var b strings.Builder
	b.WriteString("<h2>New audit lead</h2><ul>")
	writeField := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>", label, html.EscapeString(value))
	}
	writeField("Name", s.Name)
	writeField("Email", s.Email)
	writeField("Website", s.Website)
	writeField("Source", s.Source)
	writeField("Message", s.Message)
	b.WriteString("</ul>")
	return b.String()
}
