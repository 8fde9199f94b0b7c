package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

// ErrNotConfigured is returned by Send when no server token is set.
var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at a different Postmark endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

// NewClient builds a Postmark client. baseURL is the public address of the
// web app and is used to build links in message bodies.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Send delivers msg through the Postmark API.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(postmarkEmail{
		From:     c.fromEmail,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}

// OrderPlaced builds the confirmation mail for a new redemption.
func (c *Client) OrderPlaced(to string, orderID int64, title string, cost, balance int64) Message {
	link := fmt.Sprintf("%s/orders/%d", c.baseURL, orderID)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Order #%d confirmed: %s", orderID, title),
		TextBody: fmt.Sprintf(
			"Your order for %s has been placed for %d points.\nRemaining balance: %d points.\n\nView your order: %s",
			title, cost, balance, link,
		),
		HTMLBody: fmt.Sprintf(
			`<p>Your order for <strong>%s</strong> has been placed for %d points.</p><p>Remaining balance: %d points.</p><p><a href="%s">View your order</a></p>`,
			title, cost, balance, link,
		),
	}
}

// OrderCancelled builds the mail sent after a cancellation refund.
func (c *Client) OrderCancelled(to string, orderID int64, title string, refund, balance int64) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Order #%d cancelled", orderID),
		TextBody: fmt.Sprintf(
			"Your order for %s was cancelled and %d points were returned.\nNew balance: %d points.",
			title, refund, balance,
		),
		HTMLBody: fmt.Sprintf(
			`<p>Your order for <strong>%s</strong> was cancelled and %d points were returned.</p><p>New balance: %d points.</p>`,
			title, refund, balance,
		),
	}
}
