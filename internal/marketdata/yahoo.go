package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"stockperf/internal/domain"
	"stockperf/internal/util"
)

// DefaultYahooBaseURL is the public Yahoo Finance chart endpoint host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// errNoData marks a chart response that carries no bars.
var errNoData = errors.New("no data")

// YahooSource implements Source using the Yahoo Finance v8 chart API.
type YahooSource struct {
	client      *resty.Client
	maxAttempts int
	baseDelay   time.Duration
}

// NewYahooSource creates a Yahoo source. Transient failures (HTTP 429 and
// 5xx, transport errors) are retried up to maxAttempts times.
func NewYahooSource(baseURL string, timeout time.Duration, maxAttempts int) *YahooSource {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; stockperf/1.0)")

	return &YahooSource{client: client, maxAttempts: maxAttempts, baseDelay: 2 * time.Second}
}

// Name returns the provider identifier.
func (y *YahooSource) Name() string { return "yahoo" }

// yahooChart is the response structure from the Yahoo Finance chart API.
// Price arrays hold nulls for sessions without trades, hence the pointers.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDaily requests daily bars for [start, end).
func (y *YahooSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyBar, error) {
	var bars []domain.DailyBar
	err := util.Retry(ctx, y.maxAttempts, y.baseDelay, func() error {
		var err error
		bars, err = y.fetchChart(ctx, symbol, start, end)
		return err
	})
	if errors.Is(err, errNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bars, nil
}

func (y *YahooSource) fetchChart(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyBar, error) {
	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"period1":              strconv.FormatInt(start.Unix(), 10),
			"period2":              strconv.FormatInt(end.Unix(), 10),
			"interval":             "1d",
			"events":               "div,splits",
			"includeAdjustedClose": "true",
		}).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return nil, fmt.Errorf("yahoo %s: status %d", symbol, status)
	case status == http.StatusNotFound:
		// Unknown or delisted symbols come back as 404 with a chart error.
		return nil, util.Permanent(errNoData)
	case status != http.StatusOK:
		return nil, util.Permanent(fmt.Errorf("yahoo %s: status %d, body: %s", symbol, status, resp.String()))
	}

	var chart yahooChart
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, util.Permanent(fmt.Errorf("yahoo decode %s: %w", symbol, err))
	}
	if chart.Chart.Error != nil {
		return nil, util.Permanent(fmt.Errorf("yahoo api error for %s: %s", symbol, chart.Chart.Error.Description))
	}
	bars := parseChart(&chart, start, end)
	if len(bars) == 0 {
		return nil, util.Permanent(errNoData)
	}
	return bars, nil
}

// parseChart converts the chart payload to bars, dropping null sessions and
// anything outside [start, end). Timestamps are shifted by the exchange's GMT
// offset before taking the calendar date.
func parseChart(chart *yahooChart, start, end time.Time) []domain.DailyBar {
	if len(chart.Chart.Result) == 0 {
		return nil
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]domain.DailyBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePx := at(quote.Close, i)
		if closePx == nil {
			continue // no trades that session
		}
		date := domain.Date(time.Unix(ts+result.Meta.GMTOffset, 0).UTC())
		if date.Before(domain.Date(start)) || !date.Before(domain.Date(end)) {
			continue
		}

		b := domain.DailyBar{
			Date:          date,
			Open:          dec(at(quote.Open, i)),
			High:          dec(at(quote.High, i)),
			Low:           dec(at(quote.Low, i)),
			Close:         decimal.NewFromFloat(*closePx),
			AdjustedClose: decimal.NewFromFloat(*closePx),
		}
		if a := at(adj, i); a != nil {
			b.AdjustedClose = decimal.NewFromFloat(*a)
		}
		if v := at(quote.Volume, i); v != nil {
			b.Volume = *v
		}
		bars = append(bars, b)
	}
	return bars
}

func at[T any](xs []*T, i int) *T {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func dec(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}
