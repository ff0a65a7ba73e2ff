package marketdata

import (
	"context"
	"fmt"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"stockperf/internal/domain"
)

// AlpacaSource implements Source on the Alpaca market-data API. Alpaca covers
// US listings only; it serves universes of US tickers with an empty symbol
// suffix.
type AlpacaSource struct {
	client *alpacamd.Client
	feed   string
	loc    *time.Location
}

// NewAlpacaSource creates an AlpacaSource configured with the given Alpaca
// credentials. An empty dataURL selects the SDK default.
func NewAlpacaSource(apiKey, apiSecret, dataURL string) (*AlpacaSource, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, err
	}
	opts := alpacamd.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaSource{
		client: alpacamd.NewClient(opts),
		feed:   "iex",
		loc:    loc,
	}, nil
}

// Name returns the provider identifier.
func (a *AlpacaSource) Name() string { return "alpaca" }

// FetchDaily fetches split-adjusted and raw daily bars for [start, end).
func (a *AlpacaSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyBar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	raw, err := a.client.GetBars(symbol, alpacamd.GetBarsRequest{
		TimeFrame:  alpacamd.OneDay,
		Adjustment: alpacamd.Raw,
		Start:      start,
		End:        end,
		Feed:       a.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetBars %s: %w", symbol, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	adjusted, err := a.client.GetBars(symbol, alpacamd.GetBarsRequest{
		TimeFrame:  alpacamd.OneDay,
		Adjustment: alpacamd.All,
		Start:      start,
		End:        end,
		Feed:       a.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetBars adjusted %s: %w", symbol, err)
	}
	adjByDate := make(map[time.Time]float64, len(adjusted))
	for _, ab := range adjusted {
		adjByDate[domain.Date(ab.Timestamp.In(a.loc))] = ab.Close
	}

	bars := make([]domain.DailyBar, 0, len(raw))
	for _, ab := range raw {
		date := domain.Date(ab.Timestamp.In(a.loc))
		if date.Before(domain.Date(start)) || !date.Before(domain.Date(end)) {
			continue
		}
		adjClose, ok := adjByDate[date]
		if !ok {
			adjClose = ab.Close
		}
		bars = append(bars, domain.DailyBar{
			Date:          date,
			Open:          decimal.NewFromFloat(ab.Open),
			High:          decimal.NewFromFloat(ab.High),
			Low:           decimal.NewFromFloat(ab.Low),
			Close:         decimal.NewFromFloat(ab.Close),
			AdjustedClose: decimal.NewFromFloat(adjClose),
			Volume:        int64(ab.Volume),
		})
	}
	return bars, nil
}
