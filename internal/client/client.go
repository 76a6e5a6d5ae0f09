// Package client is a thin HTTP client for Burrow's wire protocol, used by
// cmd/burrow. It re-encodes the same account/queue/message operations the
// server exposes onto plain net/http requests against the configured base
// URL, leaving all domain semantics (defaulting, detail rendering, wait
// loops) to the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/emonty/burrow/internal/queue"
)

// Client talks to a running burrowd over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client against baseURL (e.g. "http://localhost:8080").
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Options carries the filter/attribute query parameters common to every
// client operation; zero-value fields are simply omitted from the request.
type Options struct {
	Marker      string
	HasMarker   bool
	Limit       int
	HasLimit    bool
	MatchHidden bool
	Detail      string
	Wait        time.Duration
	TTL         *int64
	Hide        *int64
}

func (o Options) values() url.Values {
	v := url.Values{}
	if o.HasMarker {
		v.Set("marker", o.Marker)
	}
	if o.HasLimit {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.MatchHidden {
		v.Set("match_hidden", "true")
	}
	if o.Detail != "" {
		v.Set("detail", o.Detail)
	}
	if o.Wait > 0 {
		v.Set("wait", strconv.Itoa(int(o.Wait/time.Second)))
	}
	if o.TTL != nil {
		v.Set("ttl", strconv.FormatInt(*o.TTL, 10))
	}
	if o.Hide != nil {
		v.Set("hide", strconv.FormatInt(*o.Hide, 10))
	}
	return v
}

// Versions fetches the supported API version list from GET /.
func (c *Client) Versions(ctx context.Context) ([]string, error) {
	var out []string
	_, err := c.do(ctx, http.MethodGet, "/", nil, nil, &out)
	return out, err
}

// GetAccounts lists accounts (GET /v1.0).
func (c *Client) GetAccounts(ctx context.Context, opts Options) ([]queue.AccountEntry, error) {
	var out []queue.AccountEntry
	_, err := c.do(ctx, http.MethodGet, "/v1.0", opts.values(), nil, &out)
	return out, err
}

// DeleteAccounts removes accounts (DELETE /v1.0).
func (c *Client) DeleteAccounts(ctx context.Context, opts Options) ([]queue.AccountEntry, error) {
	var out []queue.AccountEntry
	_, err := c.do(ctx, http.MethodDelete, "/v1.0", opts.values(), nil, &out)
	return out, err
}

// GetQueues lists queues under account (GET /v1.0/{account}).
func (c *Client) GetQueues(ctx context.Context, account string, opts Options) ([]queue.QueueEntry, error) {
	var out []queue.QueueEntry
	_, err := c.do(ctx, http.MethodGet, path(account), opts.values(), nil, &out)
	return out, err
}

// DeleteQueues removes queues under account (DELETE /v1.0/{account}).
func (c *Client) DeleteQueues(ctx context.Context, account string, opts Options) ([]queue.QueueEntry, error) {
	var out []queue.QueueEntry
	_, err := c.do(ctx, http.MethodDelete, path(account), opts.values(), nil, &out)
	return out, err
}

// GetMessages lists messages in account/queue (GET /v1.0/{account}/{queue}),
// blocking up to opts.Wait if the queue has nothing visible yet.
func (c *Client) GetMessages(ctx context.Context, account, q string, opts Options) ([]queue.MessageView, error) {
	var out []queue.MessageView
	_, err := c.do(ctx, http.MethodGet, path(account, q), opts.values(), nil, &out)
	return out, err
}

// DeleteMessages removes messages in account/queue (DELETE /v1.0/{account}/{queue}).
func (c *Client) DeleteMessages(ctx context.Context, account, q string, opts Options) ([]queue.MessageView, error) {
	var out []queue.MessageView
	_, err := c.do(ctx, http.MethodDelete, path(account, q), opts.values(), nil, &out)
	return out, err
}

// UpdateMessages updates messages in account/queue (POST /v1.0/{account}/{queue}).
func (c *Client) UpdateMessages(ctx context.Context, account, q string, opts Options) ([]queue.MessageView, error) {
	var out []queue.MessageView
	_, err := c.do(ctx, http.MethodPost, path(account, q), opts.values(), nil, &out)
	return out, err
}

// CreateMessage creates or overwrites a single message
// (PUT /v1.0/{account}/{queue}/{message}). Returns true if the server
// reported a new creation (201) rather than an overwrite (204).
func (c *Client) CreateMessage(ctx context.Context, account, q, id string, body []byte, opts Options) (bool, error) {
	status, err := c.do(ctx, http.MethodPut, path(account, q, id), opts.values(), bytes.NewReader(body), nil)
	return status == http.StatusCreated, err
}

// GetMessage reads a single message (GET /v1.0/{account}/{queue}/{message}).
func (c *Client) GetMessage(ctx context.Context, account, q, id string, opts Options) (queue.MessageView, error) {
	var out queue.MessageView
	_, err := c.do(ctx, http.MethodGet, path(account, q, id), opts.values(), nil, &out)
	return out, err
}

// DeleteMessage removes a single message (DELETE /v1.0/{account}/{queue}/{message}).
func (c *Client) DeleteMessage(ctx context.Context, account, q, id string, opts Options) (queue.MessageView, error) {
	var out queue.MessageView
	_, err := c.do(ctx, http.MethodDelete, path(account, q, id), opts.values(), nil, &out)
	return out, err
}

// UpdateMessage updates a single message's attributes
// (POST /v1.0/{account}/{queue}/{message}).
func (c *Client) UpdateMessage(ctx context.Context, account, q, id string, opts Options) (queue.MessageView, error) {
	var out queue.MessageView
	_, err := c.do(ctx, http.MethodPost, path(account, q, id), opts.values(), nil, &out)
	return out, err
}

func path(segments ...string) string {
	b := strings.Builder{}
	b.WriteString("/v1.0")
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// do issues a request and, for a 200 response with a non-nil out, decodes
// the JSON body into it. A 204 leaves out untouched (the server's
// empty-body convention); any 4xx/5xx becomes an *APIError.
func (c *Client) do(ctx context.Context, method, p string, query url.Values, body io.Reader, out any) (int, error) {
	u := c.baseURL + p
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	if resp.StatusCode == http.StatusNoContent || out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

// APIError wraps a non-2xx response from burrowd.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("burrow: %d: %s", e.Status, strings.TrimSpace(e.Message))
}
