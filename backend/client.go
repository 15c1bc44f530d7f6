package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"printedge/config"
	"printedge/orders"
)

// FailureKind classifies backend failures so the engine can decide
// between retrying and surfacing a remote error.
type FailureKind int

const (
	// Unavailable means the backend could not be reached at all
	// (connection refused, DNS, timeout).
	Unavailable FailureKind = iota + 1
	// RemoteRejected means the backend answered with a non-2xx status
	// or an unreadable body.
	RemoteRejected
)

func (k FailureKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case RemoteRejected:
		return "remote_rejected"
	default:
		return "unknown"
	}
}

// Failure is a typed backend error.
type Failure struct {
	Kind   FailureKind
	Op     string
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("backend %s: %s (status %d): %v", f.Op, f.Kind, f.Status, f.Err)
	}
	return fmt.Sprintf("backend %s: %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Client talks to the remote order store over its PostgREST API.
type Client struct {
	baseURL      string
	apiKey       string
	restaurantID string
	http         *http.Client
	logf         func(format string, args ...interface{})
}

// NewClient creates a backend client from config. Validation of the
// config happens at startup; NewClient assumes sane values.
func NewClient(cfg *config.BackendConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		restaurantID: cfg.RestaurantID,
		http:         &http.Client{Timeout: timeout},
		logf:         log.Printf,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// FetchPending returns all orders awaiting printing for this
// restaurant, oldest first. Individual records that fail to decode are
// skipped and logged; they never fail the whole batch.
func (c *Client) FetchPending(ctx context.Context) ([]orders.Order, error) {
	q := url.Values{}
	q.Set("select", "*,order_items(*)")
	q.Set("restaurant_id", "eq."+c.restaurantID)
	q.Set("print_status", "eq.pending")
	q.Set("order", "created_at.asc")

	raw, err := c.get(ctx, "/rest/v1/orders", q, "fetch_pending")
	if err != nil {
		return nil, err
	}
	return c.decodeOrders(raw)
}

// FetchOrder returns one order by ID, used for manual reprints.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (orders.Order, error) {
	q := url.Values{}
	q.Set("select", "*,order_items(*)")
	q.Set("id", "eq."+orderID)

	raw, err := c.get(ctx, "/rest/v1/orders", q, "fetch_order")
	if err != nil {
		return orders.Order{}, err
	}
	batch, err := c.decodeOrders(raw)
	if err != nil {
		return orders.Order{}, err
	}
	if len(batch) == 0 {
		return orders.Order{}, &Failure{Kind: RemoteRejected, Op: "fetch_order", Err: fmt.Errorf("order %s not found", orderID)}
	}
	return batch[0], nil
}

// MarkPrinted flags an order as printed. The PATCH overwrites
// print_status and printed_at, so repeating it after an uncertain
// outcome is harmless.
func (c *Client) MarkPrinted(ctx context.Context, orderID string) error {
	body, _ := json.Marshal(map[string]string{
		"print_status": "printed",
		"printed_at":   time.Now().UTC().Format(time.RFC3339),
	})

	u := c.baseURL + "/rest/v1/orders?id=eq." + url.QueryEscape(orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return &Failure{Kind: RemoteRejected, Op: "mark_printed", Err: err}
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Failure{Kind: Unavailable, Op: "mark_printed", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Failure{Kind: RemoteRejected, Op: "mark_printed", Status: resp.StatusCode, Err: fmt.Errorf("%s", snippet(resp.Body))}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// LogPrintEvent records a print event in the backend audit table.
// Best-effort: failures are logged locally and never propagate.
func (c *Client) LogPrintEvent(ctx context.Context, orderID, eventType, status, detail string) {
	body, _ := json.Marshal(map[string]string{
		"restaurant_id": c.restaurantID,
		"order_id":      orderID,
		"event_type":    eventType,
		"status":        status,
		"detail":        detail,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v1/print_logs", bytes.NewReader(body))
	if err != nil {
		c.logf("print event audit: %v", err)
		return
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logf("print event audit: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logf("print event audit: status %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, op string) ([]byte, error) {
	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &Failure{Kind: RemoteRejected, Op: op, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Failure{Kind: Unavailable, Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Failure{Kind: RemoteRejected, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s", snippet(resp.Body))}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Failure{Kind: Unavailable, Op: op, Err: err}
	}
	return data, nil
}

// decodeOrders unmarshals a PostgREST result set record by record so
// one malformed row cannot poison the batch.
func (c *Client) decodeOrders(data []byte) ([]orders.Order, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &Failure{Kind: RemoteRejected, Op: "decode", Err: err}
	}
	batch := make([]orders.Order, 0, len(rows))
	for i, row := range rows {
		var o orders.Order
		if err := json.Unmarshal(row, &o); err != nil {
			c.logf("skipping malformed order record %d: %v", i, err)
			continue
		}
		if o.ID == "" {
			c.logf("skipping order record %d without id", i)
			continue
		}
		batch = append(batch, o)
	}
	return batch, nil
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 200))
	return strings.TrimSpace(string(b))
}
