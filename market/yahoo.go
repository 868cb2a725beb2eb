package market

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

// YahooURL is the public chart API host.
const YahooURL = "https://query1.finance.yahoo.com"

// YahooClient reads daily bars from the Yahoo Finance chart endpoint.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewYahooClient creates a client against baseURL (YahooURL when empty).
func NewYahooClient(baseURL string, timeout time.Duration) *YahooClient {
	if baseURL == "" {
		baseURL = YahooURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches daily candles for the last days calendar days. Bars with a
// missing close are dropped.
func (c *YahooClient) History(ctx context.Context, symbol string, days int) ([]Candle, error) {
	res, err := c.chart(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	return res.candles(), nil
}

// LatestClose prefers the live market price and falls back to the last bar.
func (c *YahooClient) LatestClose(ctx context.Context, symbol string) (float64, error) {
	res, err := c.chart(ctx, symbol, 5)
	if err != nil {
		return 0, err
	}
	if res.Meta.RegularMarketPrice > 0 {
		return res.Meta.RegularMarketPrice, nil
	}
	last, ok := Last(res.candles())
	if !ok {
		return 0, fmt.Errorf("%w: no bars for %s", ErrDataUnavailable, symbol)
	}
	return last.Close, nil
}

func (c *YahooClient) chart(ctx context.Context, symbol string, days int) (*chartResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if days <= 0 {
		days = 1
	}

	end := c.now().UTC()
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", strconv.FormatInt(end.AddDate(0, 0, -days).Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))

	apiURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(strings.ToUpper(symbol)), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: execute request: %w", ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrDataUnavailable, resp.StatusCode, string(body))
	}

	var apiResp chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrDataUnavailable, apiResp.Chart.Error.Code, apiResp.Chart.Error.Description)
	}
	if len(apiResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty result for %s", ErrDataUnavailable, symbol)
	}
	return &apiResp.Chart.Result[0], nil
}

func (r *chartResult) candles() []Candle {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]

	out := make([]Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closeV := at(q.Close, i)
		if closeV == nil {
			continue
		}
		cd := Candle{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *closeV,
		}
		cd.Open = orDefault(at(q.Open, i), cd.Close)
		cd.High = orDefault(at(q.High, i), cd.Close)
		cd.Low = orDefault(at(q.Low, i), cd.Close)
		cd.Volume = orDefault(at(q.Volume, i), 0)
		out = append(out, cd)
	}
	return out
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
