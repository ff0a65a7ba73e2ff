package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"stockperf/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Series is the base-100 price series of one ticker.
type Series struct {
	Code    string                   `json:"code"`
	Name    string                   `json:"name"`
	Points  []domain.NormalizedPoint `json:"points"`
	Summary Summary                  `json:"summary"`
}

// NameFunc looks up the display name of a code.
type NameFunc func(code string) (string, bool)

// Normalize rescales the bars of each requested code so the close of its
// earliest row is 100. Rows are ordered by date, then by warehouse load order,
// so the base of a duplicated first date is the first-loaded row.
//
// Codes without rows are skipped and reported in the warnings. Codes without
// a name mapping are labelled with the code itself and reported as well.
func Normalize(bars []domain.DailyBar, codes []string, names NameFunc) ([]Series, []string) {
	grouped := make(map[string][]domain.DailyBar, len(codes))
	for _, b := range bars {
		grouped[b.StockCode] = append(grouped[b.StockCode], b)
	}

	var (
		series   []Series
		warnings []string
		unmapped []string
	)
	for _, code := range codes {
		rows := grouped[code]
		if len(rows) == 0 {
			warnings = append(warnings, fmt.Sprintf("no data for %s in the selected window", code))
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if !rows[i].Date.Equal(rows[j].Date) {
				return rows[i].Date.Before(rows[j].Date)
			}
			return rows[i].Seq < rows[j].Seq
		})

		base := rows[0].Close
		if !base.IsPositive() {
			warnings = append(warnings, fmt.Sprintf("cannot normalize %s: base close on %s is %s",
				code, domain.FormatDate(rows[0].Date), base))
			continue
		}

		name, ok := names(code)
		if !ok {
			name = code
			unmapped = append(unmapped, code)
		}

		points := make([]domain.NormalizedPoint, len(rows))
		for i, r := range rows {
			points[i] = domain.NormalizedPoint{
				Date:            r.Date,
				Close:           r.Close.InexactFloat64(),
				NormalizedClose: r.Close.Div(base).Mul(hundred).InexactFloat64(),
			}
		}
		series = append(series, Series{Code: code, Name: name, Points: points, Summary: Summarize(points)})
	}

	if len(unmapped) > 0 {
		warnings = append(warnings, "no name mapping for codes: "+strings.Join(unmapped, ", "))
	}
	return series, warnings
}

// Rows flattens series into export rows, ordered by date and then by the
// order of the series.
func Rows(series []Series) []domain.NormalizedRow {
	var rows []domain.NormalizedRow
	for _, s := range series {
		for _, p := range s.Points {
			rows = append(rows, domain.NormalizedRow{
				Date:            p.Date,
				StockCode:       s.Code,
				StockName:       s.Name,
				NormalizedClose: p.NormalizedClose,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}
