// Package tonapi is a small client for the parts of the tonapi.io v2 API the
// wallet needs: TON Connect proof registration and account event history.
package tonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("tonapi")

var (
	ErrNetworkFailure = errors.New("network failure")
	ErrNotFound       = errors.New("not found")
)

const defaultTimeout = 15 * time.Second

// Client talks to one tonapi deployment.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient returns a client for baseURL. A nil httpClient gets a default
// with a 15s timeout. An empty token sends unauthenticated requests.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// EventsQuery pages through account events.
type EventsQuery struct {
	Limit       int
	BeforeLt    int64
	SubjectOnly bool
}

func (q EventsQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.BeforeLt > 0 {
		v.Set("before_lt", strconv.FormatInt(q.BeforeLt, 10))
	}
	if q.SubjectOnly {
		v.Set("subject_only", "true")
	}
	return v
}

// GetTonConnectPayload fetches a fresh server challenge.
func (c *Client) GetTonConnectPayload(ctx context.Context) (string, error) {
	var out tonConnectPayload
	if err := c.do(ctx, http.MethodGet, "/v2/tonconnect/payload", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Payload, nil
}

// TonConnectProof submits a signed proof and returns the bearer token.
func (c *Client) TonConnectProof(ctx context.Context, proof SignedProof) (string, error) {
	var out authToken
	if err := c.do(ctx, http.MethodPost, "/v2/wallet/auth/proof", nil, proof, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: empty token in proof response", ErrNetworkFailure)
	}
	return out.Token, nil
}

// GetAccountEvents returns one page of events for accountID.
func (c *Client) GetAccountEvents(ctx context.Context, accountID string, q EventsQuery) (*AccountEvents, error) {
	var out AccountEvents
	path := "/v2/accounts/" + url.PathEscape(accountID) + "/events"
	if err := c.do(ctx, http.MethodGet, path, q.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEvent returns a single event by id.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	var out Event
	if err := c.do(ctx, http.MethodGet, "/v2/events/"+url.PathEscape(eventID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log.Trace("tonapi request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetworkFailure, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrNetworkFailure, path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrNetworkFailure, method, path, resp.StatusCode, errorMessage(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrNetworkFailure, path, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var e apiError
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
