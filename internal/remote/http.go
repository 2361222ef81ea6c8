package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"

	"github.com/docshare/docsync/internal/record"
)

// Client talks to the document service over HTTP+JSON, with realtime
// subscriptions carried on a WebSocket per (domain, filter).
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *log.Logger
}

// NewClient creates a remote client for the given base URL, e.g.
// "https://api.example.com". If logger is nil, a default logger writing
// to stderr is used.
func NewClient(baseURL string, logger *log.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base URL %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote base URL must be http(s), got %q", baseURL)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	return &Client{
		base:   base,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}, nil
}

// FetchAll implements Store.FetchAll.
func (c *Client) FetchAll(ctx context.Context, domain record.Domain, f Filter) ([]Record, error) {
	u := c.endpoint(string(domain))
	if f.Owner != "" {
		q := u.Query()
		q.Set("owner", f.Owner)
		u.RawQuery = q.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s fetch response: %w", domain, err)
	}
	return records, nil
}

// Write implements Store.Write.
func (c *Client) Write(ctx context.Context, domain record.Domain, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("write to %s: empty record id", domain)
	}
	_, err := c.do(ctx, http.MethodPut, c.endpoint(string(domain), rec.ID), rec.Fields)
	return err
}

// UpdateFields implements Store.UpdateFields.
func (c *Client) UpdateFields(ctx context.Context, domain record.Domain, id string, fields map[string]any) error {
	if id == "" {
		return fmt.Errorf("update in %s: empty record id", domain)
	}
	_, err := c.do(ctx, http.MethodPatch, c.endpoint(string(domain), id), fields)
	return err
}

// Delete implements Store.Delete.
func (c *Client) Delete(ctx context.Context, domain record.Domain, id string) error {
	if id == "" {
		return fmt.Errorf("delete from %s: empty record id", domain)
	}
	_, err := c.do(ctx, http.MethodDelete, c.endpoint(string(domain), id), nil)
	return err
}

// BatchWrite implements Store.BatchWrite.
//
// The service applies ops best-effort. A failure response carrying an
// applied count, or a transport error after the request was sent, both
// map to *PartialBatchError: the batch may have half landed.
func (c *Client) BatchWrite(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}

	payload, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("batch").String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The request may have reached the service before the
		// connection died; outcome unknown.
		return &PartialBatchError{Applied: -1, Total: len(ops), Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var result struct {
		Applied int    `json:"applied"`
		Error   string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &result); err != nil {
		result.Applied = -1
	}

	return &PartialBatchError{
		Applied: result.Applied,
		Total:   len(ops),
		Err:     &ServiceError{Code: resp.StatusCode, Message: result.Error},
	}
}

// Subscribe implements Store.Subscribe.
//
// Each push frame carries the current full matching set as a JSON array
// of records. The read loop runs until the handle is cancelled or the
// channel fails; a failed channel leaves the handle safe to cancel.
func (c *Client) Subscribe(ctx context.Context, domain record.Domain, f Filter, h SnapshotHandler) (*Subscription, error) {
	u := c.endpoint(string(domain), "watch")
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if f.Owner != "" {
		q := u.Query()
		q.Set("owner", f.Owner)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w: %v", domain, ErrNetwork, err)
	}

	// The subscription outlives the handshake ctx; its lifetime is
	// owned by the returned handle.
	subCtx, cancel := context.WithCancel(context.Background())

	go func() {
		defer cancel()
		for {
			_, data, err := conn.Read(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					c.logger.Printf("subscription %s closed: %v", domain, err)
				}
				return
			}

			var records []Record
			if err := json.Unmarshal(data, &records); err != nil {
				c.logger.Printf("subscription %s: dropping malformed push: %v", domain, err)
				continue
			}
			h(records)
		}
	}()

	return NewSubscription(func() {
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	}), nil
}

// endpoint joins path elements under /api/v1.
func (c *Client) endpoint(parts ...string) *url.URL {
	u := *c.base
	u = *u.JoinPath(append([]string{"api", "v1"}, parts...)...)
	return &u
}

// do runs one JSON request and maps failures onto the error taxonomy.
func (c *Client) do(ctx context.Context, method string, u *url.URL, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", method, u.Path, ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", method, u.Path, ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &msg)
		return nil, &ServiceError{Code: resp.StatusCode, Message: msg.Error}
	}

	return raw, nil
}
