// Package upstream is the client for the rate-limited market data API. It
// builds query URLs, fetches raw payloads, and classifies responses. The API
// reports most failures as HTTP 200 with a sentinel JSON body, so
// classification inspects content, not status codes.
package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/fetcher"
	"github.com/halcyon-research/market-cli/internal/fingerprint"
	"github.com/halcyon-research/market-cli/internal/landing"
)

// Client fetches from the market data API.
type Client struct {
	fetcher fetcher.Fetcher
	baseURL string
	apiKey  string
}

// New creates a client. baseURL is the query endpoint, e.g.
// https://www.alphavantage.co/query.
func New(f fetcher.Fetcher, baseURL, apiKey string) *Client {
	return &Client{fetcher: f, baseURL: baseURL, apiKey: apiKey}
}

// QueryURL builds the request URL for an API function with extra params.
func (c *Client) QueryURL(function string, params map[string]string) string {
	q := url.Values{}
	q.Set("function", function)
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("apikey", c.apiKey)
	return c.baseURL + "?" + q.Encode()
}

// Fetch retrieves the raw response body for an API function. The bytes are
// returned untouched so they can be landed verbatim.
func (c *Client) Fetch(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	body, err := c.fetcher.Download(ctx, c.QueryURL(function, params))
	if err != nil {
		return nil, eris.Wrapf(err, "upstream: fetch %s", function)
	}
	defer body.Close() //nolint:errcheck

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "upstream: read %s body", function)
	}
	return raw, nil
}

// FetchListing retrieves the listing-status CSV covering the active universe.
func (c *Client) FetchListing(ctx context.Context) (io.ReadCloser, error) {
	body, err := c.fetcher.Download(ctx, c.QueryURL("LISTING_STATUS", nil))
	if err != nil {
		return nil, eris.Wrap(err, "upstream: fetch listing")
	}
	return body, nil
}

// Sentinel keys the API uses to report failure inside a 200 response.
const (
	keyError       = "Error Message"
	keyNote        = "Note"
	keyInformation = "Information"
)

// Classify determines the landing status of a raw JSON payload. A "Note" or
// "Information" body signals throttling; an "Error Message" body signals a
// bad request (usually an unknown symbol); a structurally empty body means
// the symbol exists but has no data for this function.
func Classify(raw []byte) landing.Status {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return landing.StatusError
	}
	if msg, ok := payload[keyError]; ok && msg != nil {
		return landing.StatusError
	}
	for _, k := range []string{keyNote, keyInformation} {
		if v, ok := payload[k].(string); ok && looksThrottled(v) {
			return landing.StatusRateLimited
		}
	}
	if fingerprint.Empty(payload) {
		return landing.StatusEmpty
	}
	return landing.StatusSuccess
}

func looksThrottled(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "call frequency") ||
		strings.Contains(m, "rate limit") ||
		strings.Contains(m, "premium") ||
		strings.Contains(m, "per minute") ||
		strings.Contains(m, "per day")
}

// Decode parses a raw payload into a generic map for transformation.
func Decode(raw []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, eris.Wrap(err, "upstream: decode payload")
	}
	return payload, nil
}
