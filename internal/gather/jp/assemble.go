package jp

import (
	"stockperf/internal/domain"
)

// DatasetAssembler accumulates per-ticker bar sets into one dataset.
type DatasetAssembler struct {
	bars    []domain.DailyBar
	tickers int
}

// Add appends the bars of a successful fetch. Other outcomes are ignored.
func (a *DatasetAssembler) Add(res FetchResult) {
	if res.Outcome != domain.OutcomeOK || len(res.Bars) == 0 {
		return
	}
	a.bars = append(a.bars, res.Bars...)
	a.tickers++
}

// Empty reports whether no bars were accumulated.
func (a *DatasetAssembler) Empty() bool { return len(a.bars) == 0 }

// Rows returns the number of accumulated bars.
func (a *DatasetAssembler) Rows() int { return len(a.bars) }

// Tickers returns the number of tickers that contributed bars.
func (a *DatasetAssembler) Tickers() int { return a.tickers }

// Dataset returns the concatenated bars in fetch order.
func (a *DatasetAssembler) Dataset() []domain.DailyBar { return a.bars }
