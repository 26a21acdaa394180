package fyers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api-t1.fyers.in"

const historyDateFormat = "2006-01-02"

// ErrInvalidCredentials marks an authentication rejection. Callers match
// it with errors.Is; the engine treats it as fatal at startup rather than
// a retriable transport failure.
var ErrInvalidCredentials = errors.New("fyers: invalid credentials")

// Credentials is the opaque pair handed to the engine by its caller. The
// provider expects both on every request, joined as "clientID:token".
type Credentials struct {
	ClientID    string
	AccessToken string
}

func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.AccessToken) != ""
}

func (c Credentials) authHeader() string {
	return c.ClientID + ":" + c.AccessToken
}

// APIError is a request the provider answered but refused. Status holds
// the HTTP status, or the provider's envelope code when the transport
// succeeded and the payload carried the rejection.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fyers API error (%d): %s", e.Status, e.Body)
}

// credentialStatus reports whether a status/code means the token itself
// was rejected rather than a transient failure.
func credentialStatus(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, -15, -16, -17:
		return true
	}
	return false
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
}

func NewClient(httpClient *http.Client, baseURL string, creds Credentials) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		creds:      creds,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.creds.authHeader())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Profile fetches the account profile. Its only caller uses it to verify
// the credential pair before the feed workers start; a rejected token
// surfaces as ErrInvalidCredentials.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	body, err := c.doRequest(ctx, "/api/v3/profile", nil)
	if err != nil {
		return nil, wrapCredentialErr("fetch profile", err)
	}
	var resp profileResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse profile response: %w", err)
	}
	if !resp.ok() {
		return nil, wrapCredentialErr("fetch profile", &APIError{Status: resp.Code, Body: resp.Message})
	}
	return &resp.Data, nil
}

// Quotes fetches the bulk quote table for all symbols in one request,
// comma-joined as the provider expects. Entries come back as-is; callers
// decide what to do with per-entry error statuses.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]QuoteEntry, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols are required")
	}
	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))
	body, err := c.doRequest(ctx, "/data/quotes", query)
	if err != nil {
		return nil, wrapCredentialErr("fetch quotes", err)
	}
	var resp quotesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse quotes response: %w", err)
	}
	if !resp.ok() {
		return nil, wrapCredentialErr("fetch quotes", &APIError{Status: resp.Code, Body: resp.Message})
	}
	return resp.D, nil
}

// History fetches candles for one symbol between from and to inclusive.
// An empty resolution means daily bars.
func (c *Client) History(ctx context.Context, symbol, resolution string, from, to time.Time) ([]Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if resolution == "" {
		resolution = "D"
	}
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("resolution", resolution)
	query.Set("date_format", "1")
	query.Set("range_from", from.Format(historyDateFormat))
	query.Set("range_to", to.Format(historyDateFormat))
	query.Set("cont_flag", "1")
	body, err := c.doRequest(ctx, "/data/history", query)
	if err != nil {
		return nil, wrapCredentialErr("fetch history", err)
	}
	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse history response: %w", err)
	}
	if !resp.ok() {
		return nil, wrapCredentialErr("fetch history", &APIError{Status: resp.Code, Body: resp.Message})
	}
	return resp.Candles, nil
}

// Credentials exposes the configured pair for the data socket, which
// authenticates with the same joined form.
func (c *Client) Credentials() Credentials { return c.creds }

// wrapCredentialErr rewrites auth rejections onto the sentinel so callers
// can distinguish a bad token from a flaky provider.
func wrapCredentialErr(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && credentialStatus(apiErr.Status) {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidCredentials, apiErr.Body)
	}
	return fmt.Errorf("%s: %w", op, err)
}
