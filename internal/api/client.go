package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppbot/internal/model"
	"go.uber.org/zap"
)

const maxErrorBody = 512

// Client talks to the bot backend over HTTP/JSON.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger attaches a logger for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("api base url is empty")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Status fetches the connection status for a user.
func (c *Client) Status(ctx context.Context, userID string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.get(ctx, "status", "/status", url.Values{"userId": {userID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QR fetches the current pairing state: either connected or a QR payload.
func (c *Client) QR(ctx context.Context, userID string) (*QRResponse, error) {
	var out QRResponse
	if err := c.get(ctx, "qr", "/qr", url.Values{"userId": {userID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Connect asks the backend to start a WhatsApp session (and pairing).
func (c *Client) Connect(ctx context.Context, userID string) error {
	return c.command(ctx, "connect", "/connect", userRequest{UserID: userID}, true)
}

// Disconnect tears down the WhatsApp session.
func (c *Client) Disconnect(ctx context.Context, userID string) error {
	return c.command(ctx, "disconnect", "/disconnect", userRequest{UserID: userID}, true)
}

// ToggleBot enables or disables automatic replies.
func (c *Client) ToggleBot(ctx context.Context, userID string, enabled bool) error {
	return c.command(ctx, "bot toggle", "/bot/toggle", toggleRequest{UserID: userID, Enabled: enabled}, true)
}

// Contacts lists everyone who has messaged the bot.
func (c *Client) Contacts(ctx context.Context, userID string) ([]model.Contact, error) {
	var out contactsResponse
	if err := c.get(ctx, "contacts", "/contacts", url.Values{"userId": {userID}}, &out); err != nil {
		return nil, err
	}
	return out.Contacts, nil
}

// Messages lists messages exchanged with one contact.
func (c *Client) Messages(ctx context.Context, userID, from string) ([]model.Message, error) {
	var out messagesResponse
	q := url.Values{"userId": {userID}, "from": {from}}
	if err := c.get(ctx, "messages", "/messages", q, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Orders lists the user's orders.
func (c *Client) Orders(ctx context.Context, userID string) ([]model.Order, error) {
	var out ordersResponse
	if err := c.get(ctx, "orders", "/orders", url.Values{"userId": {userID}}, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// UpdateOrderStatus moves an order to a new status. Success is an HTTP 2xx
// whose body, if any, does not carry success:false.
func (c *Client) UpdateOrderStatus(ctx context.Context, userID, orderID string, status model.OrderStatus) error {
	req := orderStatusRequest{UserID: userID, OrderID: orderID, Status: status}
	return c.command(ctx, "update order status", "/orders/update-status", req, false)
}

// ApprovePix confirms a PIX payment. The body must carry success:true.
func (c *Client) ApprovePix(ctx context.Context, userID, orderID string) error {
	return c.command(ctx, "approve pix", "/orders/approve-pix", orderRequest{UserID: userID, OrderID: orderID}, true)
}

// HelpRequests lists contacts waiting for a human.
func (c *Client) HelpRequests(ctx context.Context, userID string) ([]model.HelpRequest, error) {
	var out helpResponse
	if err := c.get(ctx, "human help", "/human-help", url.Values{"userId": {userID}}, &out); err != nil {
		return nil, err
	}
	return out.Requests, nil
}

// ResolveHelpRequest marks a help request as handled.
func (c *Client) ResolveHelpRequest(ctx context.Context, userID, requestID string) error {
	req := resolveRequest{UserID: userID, RequestID: requestID}
	return c.command(ctx, "resolve help request", "/human-help/resolve", req, false)
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	u := c.endpoint(path)
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	body, err := c.do(op, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// command POSTs a JSON body and interprets the success envelope. When
// requireSuccess is set the body must carry success:true; otherwise only an
// explicit success:false is treated as failure.
func (c *Client) command(ctx context.Context, op, path string, in any, requireSuccess bool) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path).String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(op, req)
	if err != nil {
		return err
	}

	var res Result
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &res); err != nil {
			if requireSuccess {
				return fmt.Errorf("%s: decode response: %w", op, err)
			}
			// Plain-text ok bodies are accepted where only the status code counts.
			return nil
		}
	}
	if res.ExplicitFailure() || (requireSuccess && !res.OK()) {
		return &AppError{Op: op, Message: res.Reason()}
	}
	return nil
}

func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	c.logger.Debug("backend request",
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
		zap.String("request_id", reqID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var res Result
		if json.Unmarshal(body, &res) == nil && res.Reason() != "" {
			return nil, &AppError{Op: op, Message: res.Reason()}
		}
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: text}
	}
	return body, nil
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return &u
}
