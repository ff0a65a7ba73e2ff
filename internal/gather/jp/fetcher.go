package jp

import (
	"context"
	"log/slog"
	"sort"

	"stockperf/internal/domain"
	"stockperf/internal/gather"
	"stockperf/internal/marketdata"
	"stockperf/internal/util"
)

// FetchResult is the outcome of one ticker fetch.
type FetchResult struct {
	Ticker  domain.TickerRecord
	Symbol  string
	Outcome domain.Outcome
	Bars    []domain.DailyBar
	Err     error // set when Outcome is OutcomeFailed
}

// PriceFetcher requests daily bars one ticker at a time, spaced by a pacer
// to stay under the upstream rate limit.
type PriceFetcher struct {
	source marketdata.Source
	pacer  *util.Pacer
	suffix string
	log    *slog.Logger
}

// NewPriceFetcher creates a fetcher. suffix is appended to each code to form
// the market-data symbol (".T" for the Tokyo exchange).
func NewPriceFetcher(src marketdata.Source, pacer *util.Pacer, suffix string) *PriceFetcher {
	return &PriceFetcher{
		source: src,
		pacer:  pacer,
		suffix: suffix,
		log:    slog.Default().With("component", "fetcher", "source", src.Name()),
	}
}

// Symbol maps a security code to its market-data symbol.
func (f *PriceFetcher) Symbol(code string) string { return code + f.suffix }

// Fetch requests the bars of one ticker within the half-open window. Empty
// and failed fetches are reported through the result, never as an error;
// the only error is a cancelled context.
func (f *PriceFetcher) Fetch(ctx context.Context, ticker domain.TickerRecord, window gather.DateRange) (FetchResult, error) {
	res := FetchResult{Ticker: ticker, Symbol: f.Symbol(ticker.Code)}

	if err := f.pacer.Wait(ctx); err != nil {
		return res, err
	}
	defer f.pacer.Done()

	bars, err := f.source.FetchDaily(ctx, res.Symbol, window.Start, window.End)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Outcome = domain.OutcomeFailed
		res.Err = err
		f.log.Warn("fetch failed, skipping ticker", "code", ticker.Code, "symbol", res.Symbol, "error", err)
		return res, nil
	}

	res.Bars = normalizeBars(ticker.Code, bars, window)
	if len(res.Bars) == 0 {
		res.Outcome = domain.OutcomeEmpty
		f.log.Warn("no data, skipping ticker", "code", ticker.Code, "symbol", res.Symbol, "window", window.String())
		return res, nil
	}

	res.Outcome = domain.OutcomeOK
	f.log.Debug("fetched", "code", ticker.Code, "bars", len(res.Bars))
	return res, nil
}

// normalizeBars stamps the stock code, truncates dates, drops bars outside
// the window and keeps one bar per date.
func normalizeBars(code string, bars []domain.DailyBar, window gather.DateRange) []domain.DailyBar {
	out := make([]domain.DailyBar, 0, len(bars))
	for _, b := range bars {
		b.Date = domain.Date(b.Date)
		if b.Date.Before(window.Start) || !b.Date.Before(window.End) {
			continue
		}
		b.StockCode = code
		b.Seq = 0
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for i, b := range out {
		if i > 0 && b.Date.Equal(deduped[len(deduped)-1].Date) {
			continue
		}
		deduped = append(deduped, b)
	}
	return deduped
}
