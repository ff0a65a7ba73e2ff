package compare

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"stockperf/internal/domain"
)

// tradingDaysPerYear annualizes daily volatility.
const tradingDaysPerYear = 252

// Summary holds headline figures of a normalized series, in percent.
type Summary struct {
	Last         float64 `json:"last"`
	TotalReturn  float64 `json:"totalReturnPct"`
	MaxDrawdown  float64 `json:"maxDrawdownPct"`
	Volatility   float64 `json:"volatilityPct"` // annualized stddev of daily returns
	Observations int     `json:"observations"`
}

// Summarize computes the summary of a base-100 series.
func Summarize(points []domain.NormalizedPoint) Summary {
	if len(points) == 0 {
		return Summary{}
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.NormalizedClose
	}

	last := values[len(values)-1]
	s := Summary{
		Last:         last,
		TotalReturn:  last - values[0],
		MaxDrawdown:  maxDrawdown(values),
		Observations: len(values),
	}
	if returns := dailyReturns(values); len(returns) > 1 {
		s.Volatility = stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear) * 100
	}
	return s
}

// maxDrawdown is the largest peak-to-trough decline, as a positive percent.
func maxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		peak = math.Max(peak, v)
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

func dailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns = append(returns, values[i]/values[i-1]-1)
		}
	}
	return returns
}
