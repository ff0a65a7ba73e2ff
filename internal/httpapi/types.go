package httpapi

import (
	"stockperf/internal/compare"
	"stockperf/internal/domain"
)

// TickersResponse is the JSON body of GET /api/tickers.
type TickersResponse struct {
	Total   int                   `json:"total"`
	Tickers []domain.TickerRecord `json:"tickers"`
}

// PointJSON is one normalized observation.
type PointJSON struct {
	Date            string  `json:"date"`
	Close           float64 `json:"close"`
	NormalizedClose float64 `json:"normalizedClose"`
}

// SeriesJSON is one ticker's normalized series.
type SeriesJSON struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Points  []PointJSON     `json:"points"`
	Summary compare.Summary `json:"summary"`
}

// CompareResponse is the JSON body of GET /api/compare.
type CompareResponse struct {
	Start    string       `json:"start"`
	End      string       `json:"end"`
	Series   []SeriesJSON `json:"series"`
	Warnings []string     `json:"warnings"`
}

// WatermarkResponse is the JSON body of GET /api/watermark.
type WatermarkResponse struct {
	Table  string `json:"table"`
	Latest string `json:"latest,omitempty"`
	Empty  bool   `json:"empty"`
}

func convertResult(res *compare.Result) CompareResponse {
	out := CompareResponse{
		Start:    domain.FormatDate(res.Start),
		End:      domain.FormatDate(res.End),
		Series:   make([]SeriesJSON, 0, len(res.Series)),
		Warnings: res.Warnings,
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	for _, s := range res.Series {
		sj := SeriesJSON{
			Code:    s.Code,
			Name:    s.Name,
			Points:  make([]PointJSON, len(s.Points)),
			Summary: s.Summary,
		}
		for i, p := range s.Points {
			sj.Points[i] = PointJSON{
				Date:            domain.FormatDate(p.Date),
				Close:           p.Close,
				NormalizedClose: p.NormalizedClose,
			}
		}
		out.Series = append(out.Series, sj)
	}
	return out
}
