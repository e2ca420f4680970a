package ethrates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// symbol is the Yahoo Finance chart symbol for Ether in US dollars.
const symbol = "ETH-USD"

// userAgent is sent on every request. Yahoo rejects non-browser agents.
const userAgent = "Mozilla/5.0"

// Client fetches historical ETH-USD daily opening prices from the Yahoo
// Finance chart API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Yahoo Finance chart client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// DailyOpen returns the ETH-USD opening price per UTC day from from through
// to inclusive, keyed by YYYY-MM-DD date. Days the chart has no opening
// price for are absent from the map.
func (c *Client) DailyOpen(ctx context.Context, from, to time.Time) (map[string]float64, error) {
	period1 := midnightUTC(from).Unix()
	period2 := midnightUTC(to).Add(24 * time.Hour).Unix()

	params := url.Values{
		"period1":  {strconv.FormatInt(period1, 10)},
		"period2":  {strconv.FormatInt(period2, 10)},
		"interval": {"1d"},
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, symbol, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("yahoo chart API error: status %d: %s", resp.StatusCode, body)
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if body.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart API error: %s: %s", body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result for %s", symbol)
	}
	result := body.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote series for %s", symbol)
	}
	opens := result.Indicators.Quote[0].Open

	prices := make(map[string]float64, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(opens) || opens[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC().Format("2006-01-02")
		prices[day] = *opens[i]
	}

	c.logger.Debug("fetched ETH opening prices", "days", len(prices),
		"from", midnightUTC(from).Format("2006-01-02"), "to", midnightUTC(to).Format("2006-01-02"))
	return prices, nil
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Yahoo Finance chart API response types. Opens are pointers because the
// chart reports null for days without a price.

type chartResponse struct {
	Chart chart `json:"chart"`
}

type chart struct {
	Result []chartResult `json:"result"`
	Error  *chartError   `json:"error"`
}

type chartResult struct {
	Timestamp  []int64         `json:"timestamp"`
	Indicators chartIndicators `json:"indicators"`
}

type chartIndicators struct {
	Quote []chartQuote `json:"quote"`
}

type chartQuote struct {
	Open []*float64 `json:"open"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
