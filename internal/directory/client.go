package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TotalCountHeader carries the size of the whole (filtered) collection.
const TotalCountHeader = "X-Total-Count"

// Client wraps interactions with the remote user-listing endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client. A zero timeout falls back to 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWithHTTP lets callers supply their own transport.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Ping checks that the listing endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users?_limit=1", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w %d", ErrUpstream, resp.StatusCode)
	}
	return nil
}

// List requests one window of users. The total is read from the count
// header; when it is missing or malformed the total is zero and TotalKnown
// is false.
func (c *Client) List(ctx context.Context, q Query) (Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(q), nil)
	if err != nil {
		return Listing{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Listing{}, fmt.Errorf("directory: list users: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Listing{}, fmt.Errorf("%w %d", ErrUpstream, resp.StatusCode)
	}

	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return Listing{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if users == nil {
		users = []User{}
	}
	total, known := parseTotal(resp.Header.Get(TotalCountHeader))
	return Listing{Users: users, Total: total, TotalKnown: known}, nil
}

func (c *Client) listURL(q Query) string {
	params := url.Values{}
	params.Set("_start", strconv.Itoa(q.Start))
	params.Set("_limit", strconv.Itoa(q.Limit))
	if q.NameLike != "" {
		params.Set("name_like", q.NameLike)
	}
	return c.baseURL + "/users?" + params.Encode()
}

func parseTotal(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
