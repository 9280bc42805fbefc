package backend

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

	"signaltap/logging"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response is read.
const maxBodySize = 16 << 20

// Client talks to the scan/read API. It holds no session state and never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL (e.g. "http://localhost:8000/api").
// A non-positive timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API base the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type readRequest struct {
	IP   string   `json:"ip"`
	Tags []string `json:"tags"`
}

// decodeList accepts the plain JSON array the API returns, and also an
// object wrapping the array under key (older deployments).
func decodeList[T any](body []byte, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	out := []T{}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		raw, ok := wrapped[key]
		if !ok {
			return nil, fmt.Errorf("missing %q in response", key)
		}
		trimmed = raw
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// ScanTags discovers all tags on the PLC at address/slot.
func (c *Client) ScanTags(ctx context.Context, address string, slot int) ([]Tag, error) {
	q := url.Values{}
	q.Set("ip", address)
	q.Set("slot", strconv.Itoa(slot))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/scan-simple?"+q.Encode(), nil)
	if err != nil {
		return nil, &ScanError{Message: ScanFallbackMessage, Err: err}
	}

	start := time.Now()
	status, body, err := c.do(req)
	if err != nil {
		logging.DebugError("backend", "scan-simple", err)
		return nil, &ScanError{Message: ScanFallbackMessage, Err: err}
	}
	logging.DebugLog("backend", "GET scan-simple ip=%s slot=%d -> %d (%s)", address, slot, status, time.Since(start).Round(time.Millisecond))

	if status < 200 || status > 299 {
		msg := detailMessage(body)
		if msg == "" {
			msg = ScanFallbackMessage
		}
		return nil, &ScanError{Message: msg, StatusCode: status, Err: fmt.Errorf("scan-simple: HTTP %d", status)}
	}

	tags, err := decodeList[Tag](body, "tags")
	if err != nil {
		return nil, &ScanError{Message: ScanFallbackMessage, StatusCode: status, Err: fmt.Errorf("decode scan response: %w", err)}
	}
	return tags, nil
}

// ReadTags reads the current values of names from the PLC at address.
func (c *Client) ReadTags(ctx context.Context, address string, names []string) ([]TagValue, error) {
	if names == nil {
		names = []string{}
	}
	payload, err := json.Marshal(readRequest{IP: address, Tags: names})
	if err != nil {
		return nil, &ReadError{Message: ReadFallbackMessage, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/read-tags", bytes.NewReader(payload))
	if err != nil {
		return nil, &ReadError{Message: ReadFallbackMessage, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	status, body, err := c.do(req)
	if err != nil {
		logging.DebugError("backend", "read-tags", err)
		return nil, &ReadError{Message: ReadFallbackMessage, Err: err}
	}
	logging.DebugLog("backend", "POST read-tags ip=%s tags=%d -> %d (%s)", address, len(names), status, time.Since(start).Round(time.Millisecond))

	if status < 200 || status > 299 {
		msg := detailMessage(body)
		if msg == "" {
			msg = ReadFallbackMessage
		}
		return nil, &ReadError{Message: msg, StatusCode: status, Err: fmt.Errorf("read-tags: HTTP %d", status)}
	}

	values, err := decodeList[TagValue](body, "results")
	if err != nil {
		return nil, &ReadError{Message: ReadFallbackMessage, StatusCode: status, Err: fmt.Errorf("decode read response: %w", err)}
	}
	return values, nil
}

// Health checks the backend root health endpoint. baseURL's trailing "/api"
// segment is stripped to find the root.
func (c *Client) Health(ctx context.Context) error {
	root := strings.TrimSuffix(c.baseURL, "/api")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/health", nil)
	if err != nil {
		return err
	}
	status, _, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("health: HTTP %d", status)
	}
	return nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}
