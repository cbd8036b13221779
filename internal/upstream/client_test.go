package upstream

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-research/market-cli/internal/landing"
)

type stubFetcher struct {
	gotURL string
	body   string
}

func (s *stubFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	s.gotURL = rawURL
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestQueryURL(t *testing.T) {
	c := New(nil, "https://www.alphavantage.co/query", "secret")

	raw := c.QueryURL("BALANCE_SHEET", map[string]string{"symbol": "BRK-B"})
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "BALANCE_SHEET", q.Get("function"))
	assert.Equal(t, "BRK-B", q.Get("symbol"))
	assert.Equal(t, "secret", q.Get("apikey"))
	assert.Equal(t, "/query", u.Path)
}

func TestFetch(t *testing.T) {
	f := &stubFetcher{body: `{"Symbol":"IBM"}`}
	c := New(f, "https://www.alphavantage.co/query", "secret")

	raw, err := c.Fetch(context.Background(), "OVERVIEW", map[string]string{"symbol": "IBM"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Symbol":"IBM"}`, string(raw))
	assert.Contains(t, f.gotURL, "function=OVERVIEW")
	assert.Contains(t, f.gotURL, "symbol=IBM")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want landing.Status
	}{
		{
			name: "success",
			raw:  `{"symbol":"IBM","annualReports":[{"fiscalDateEnding":"2025-12-31"}]}`,
			want: landing.StatusSuccess,
		},
		{
			name: "error message",
			raw:  `{"Error Message": "Invalid API call."}`,
			want: landing.StatusError,
		},
		{
			name: "note throttle",
			raw:  `{"Note": "Our standard API call frequency is 25 requests per day."}`,
			want: landing.StatusRateLimited,
		},
		{
			name: "information premium",
			raw:  `{"Information": "This is a premium endpoint."}`,
			want: landing.StatusRateLimited,
		},
		{
			name: "information non-throttle",
			raw:  `{"Information": "Maintenance window tonight."}`,
			want: landing.StatusSuccess,
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: landing.StatusEmpty,
		},
		{
			name: "blank scalars and empty arrays",
			raw:  `{"symbol":"","annualReports":[],"quarterlyReports":[]}`,
			want: landing.StatusEmpty,
		},
		{
			name: "not json",
			raw:  `<html>gateway timeout</html>`,
			want: landing.StatusError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify([]byte(tc.raw)))
		})
	}
}

func TestLooksThrottled(t *testing.T) {
	assert.True(t, looksThrottled("Our standard API rate limit is 5 calls per minute"))
	assert.True(t, looksThrottled("Please subscribe to a PREMIUM plan"))
	assert.False(t, looksThrottled("Scheduled maintenance at 02:00 UTC"))
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("nope"))
	assert.Error(t, err)
}
