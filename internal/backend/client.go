// ABOUTME: HTTP client for the backend's PostgREST-style row API
// ABOUTME: Query building with filters/ordering plus Select/Insert/Update/Delete operations

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	restPath       = "/rest/v1/"
	requestTimeout = 15 * time.Second
)

// Client talks to the hosted backend. It is created once at startup and
// shared by every component in the process.
type Client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	logger    *slog.Logger
	heartbeat time.Duration

	mu          sync.RWMutex
	accessToken string
}

// New creates a backend client for the given project URL and API key.
// Pass nil logger for the default.
func New(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		http:      &http.Client{Timeout: requestTimeout},
		logger:    logger.With("component", "backend"),
		heartbeat: heartbeatInterval,
	}
}

// SetHeartbeatInterval overrides the realtime heartbeat cadence. Call
// before opening subscriptions; zero or negative values are ignored.
func (c *Client) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		c.heartbeat = d
	}
}

// SetAccessToken installs the signed-in user's access token. Requests fall
// back to the API key when no token is set.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// AccessToken returns the currently installed access token, empty if the
// client is anonymous.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// Filter is a single column condition on a query.
type Filter struct {
	Column string
	Op     string // "eq", "neq", "in"
	Value  string

	// empty marks an "in" filter built from a zero-length set. Queries
	// carrying one resolve to an empty result without touching the network.
	empty bool
}

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: "eq", Value: value}
}

// Neq builds an inequality filter.
func Neq(column, value string) Filter {
	return Filter{Column: column, Op: "neq", Value: value}
}

// In builds a set-membership filter. An empty set is legal: the query
// short-circuits to an empty result instead of issuing an invalid request.
func In(column string, values []string) Filter {
	if len(values) == 0 {
		return Filter{Column: column, Op: "in", empty: true}
	}
	return Filter{Column: column, Op: "in", Value: "(" + strings.Join(values, ",") + ")"}
}

// Query describes a row selection: projected columns (PostgREST syntax,
// including embedded joins), filters, and ordering.
type Query struct {
	Columns    string // defaults to "*"
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// encode renders the query as URL parameters.
func (q Query) encode() url.Values {
	params := url.Values{}
	cols := q.Columns
	if cols == "" {
		cols = "*"
	}
	params.Set("select", strings.ReplaceAll(cols, " ", ""))
	for _, f := range q.Filters {
		params.Add(f.Column, f.Op+"."+f.Value)
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params
}

// hasEmptySet reports whether any filter is a membership test over an
// empty set.
func (q Query) hasEmptySet() bool {
	for _, f := range q.Filters {
		if f.empty {
			return true
		}
	}
	return false
}

// Select fetches rows from table into dest, which must be a pointer to a
// slice. A query with an empty-set membership filter returns no rows and
// never reaches the network.
func (c *Client) Select(ctx context.Context, table string, q Query, dest any) error {
	if q.hasEmptySet() {
		c.logger.Debug("select skipped for empty id set", "table", table)
		return json.Unmarshal([]byte("[]"), dest)
	}

	reqURL := c.baseURL + restPath + table + "?" + q.encode().Encode()
	body, err := c.do(ctx, http.MethodGet, reqURL, nil, "")
	if err != nil {
		return c.queryErr("select", table, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &QueryError{Op: "select", Table: table, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	return nil
}

// Insert writes row (a struct or slice of structs) into table. When dest
// is non-nil the inserted representation is decoded into it.
func (c *Client) Insert(ctx context.Context, table string, row, dest any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return &QueryError{Op: "insert", Table: table, Message: fmt.Sprintf("encoding row: %v", err)}
	}

	reqURL := c.baseURL + restPath + table
	prefer := "return=representation"
	if dest == nil {
		prefer = "return=minimal"
	}
	body, err := c.do(ctx, http.MethodPost, reqURL, payload, prefer)
	if err != nil {
		return c.queryErr("insert", table, err)
	}
	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return &QueryError{Op: "insert", Table: table, Message: fmt.Sprintf("decoding response: %v", err)}
		}
	}
	return nil
}

// Update patches the rows matched by filters and decodes the affected
// representations into dest when non-nil. An empty-set membership filter
// matches nothing and skips the request.
func (c *Client) Update(ctx context.Context, table string, patch any, filters []Filter, dest any) error {
	q := Query{Filters: filters}
	if q.hasEmptySet() {
		c.logger.Debug("update skipped for empty id set", "table", table)
		return nil
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return &QueryError{Op: "update", Table: table, Message: fmt.Sprintf("encoding patch: %v", err)}
	}

	params := url.Values{}
	for _, f := range filters {
		params.Add(f.Column, f.Op+"."+f.Value)
	}
	reqURL := c.baseURL + restPath + table + "?" + params.Encode()
	prefer := "return=representation"
	if dest == nil {
		prefer = "return=minimal"
	}
	body, err := c.do(ctx, http.MethodPatch, reqURL, payload, prefer)
	if err != nil {
		return c.queryErr("update", table, err)
	}
	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return &QueryError{Op: "update", Table: table, Message: fmt.Sprintf("decoding response: %v", err)}
		}
	}
	return nil
}

// Delete removes the rows matched by filters.
func (c *Client) Delete(ctx context.Context, table string, filters ...Filter) error {
	q := Query{Filters: filters}
	if q.hasEmptySet() {
		return nil
	}

	params := url.Values{}
	for _, f := range filters {
		params.Add(f.Column, f.Op+"."+f.Value)
	}
	reqURL := c.baseURL + restPath + table + "?" + params.Encode()
	if _, err := c.do(ctx, http.MethodDelete, reqURL, nil, ""); err != nil {
		return c.queryErr("delete", table, err)
	}
	return nil
}

// restError is the error document the row API returns on failure.
type restError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// httpError carries the status and backend message of a failed request so
// queryErr can shape it into a QueryError.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.message)
}

// do executes one request with auth headers applied and returns the body.
func (c *Client) do(ctx context.Context, method, reqURL string, payload []byte, prefer string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var re restError
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &re) == nil && re.Message != "" {
			msg = re.Message
		}
		return nil, &httpError{status: resp.StatusCode, message: msg}
	}
	return data, nil
}

// applyHeaders sets the API key and bearer token on a request. Anonymous
// clients authenticate with the API key alone.
func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	token := c.AccessToken()
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// queryErr shapes a transport-level failure into a QueryError.
func (c *Client) queryErr(op, table string, err error) error {
	if he, ok := err.(*httpError); ok {
		return &QueryError{Op: op, Table: table, Status: he.status, Message: he.message}
	}
	return &QueryError{Op: op, Table: table, Message: err.Error()}
}
