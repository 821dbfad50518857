// Package notification delivers restoration codes to users out-of-band.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultTimeout = 15 * time.Second

// CodeSender delivers a restoration code to an email address. Failures must be
// reported to the caller, not swallowed; the recovery flow surfaces them.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// CountingSender wraps a CodeSender and counts deliveries that actually
// succeeded. Failed sends are not counted.
type CountingSender struct {
	Inner CodeSender
	Sent  prometheus.Counter
}

func (s *CountingSender) SendCode(ctx context.Context, email, code string) error {
	if err := s.Inner.SendCode(ctx, email, code); err != nil {
		return err
	}
	s.Sent.Inc()
	return nil
}

// MailerClient sends restoration code emails through a JSON mail delivery API.
type MailerClient struct {
	APIKey     string
	BaseURL    string
	From       string
	HTTPClient *http.Client
}

// NewMailerClient returns a client for the given mail API endpoint and key.
func NewMailerClient(apiKey, baseURL, from string) *MailerClient {
	return &MailerClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		From:       from,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendCode sends the restoration code to the given address. Does not log the code.
func (c *MailerClient) SendCode(ctx context.Context, email, code string) error {
	if c.APIKey == "" || c.BaseURL == "" {
		return fmt.Errorf("mailer: not configured")
	}
	body := map[string]interface{}{
		"from":    c.From,
		"to":      email,
		"subject": "Your password restoration code",
		"text":    fmt.Sprintf("Your restoration code is %s. It expires shortly; ignore this email if you did not request it.", code),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mailer: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
