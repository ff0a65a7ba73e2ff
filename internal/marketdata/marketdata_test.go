package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockperf/internal/domain"
)

// tokyoSession returns the Unix timestamp Yahoo uses for a Tokyo session
// (09:00 JST).
func tokyoSession(d int) int64 {
	return time.Date(2024, time.June, d, 0, 0, 0, 0, time.UTC).Unix()
}

const chartTemplate = `{"chart":{"result":[{"meta":{"symbol":"7203.T","gmtoffset":32400},
"timestamp":[%d,%d,%d],
"indicators":{"quote":[{"open":[2800,2810,null],"high":[2860,2870,null],"low":[2790,2800,null],
"close":[2850,2865,null],"volume":[1000,2000,null]}],
"adjclose":[{"adjclose":[2840,2855,null]}]}}],"error":null}}`

func TestYahooFetchDaily(t *testing.T) {
	var gotPath, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		fmt.Fprintf(w, chartTemplate, tokyoSession(10), tokyoSession(11), tokyoSession(12))
	}))
	defer srv.Close()

	src := NewYahooSource(srv.URL, 5*time.Second, 1)
	bars, err := src.FetchDaily(context.Background(), "7203.T",
		domain.NewDate(2024, time.June, 10), domain.NewDate(2024, time.June, 13))
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/7203.T", gotPath)
	assert.Equal(t, "1d", gotInterval)
	require.Len(t, bars, 2, "null session must be dropped")
	assert.Equal(t, domain.NewDate(2024, time.June, 10), bars[0].Date)
	assert.True(t, bars[0].Close.Equal(decimal.NewFromInt(2850)))
	assert.True(t, bars[0].AdjustedClose.Equal(decimal.NewFromInt(2840)))
	assert.Equal(t, int64(2000), bars[1].Volume)
}

func TestYahooFetchDailyExcludesEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, chartTemplate, tokyoSession(10), tokyoSession(11), tokyoSession(12))
	}))
	defer srv.Close()

	src := NewYahooSource(srv.URL, 5*time.Second, 1)
	bars, err := src.FetchDaily(context.Background(), "7203.T",
		domain.NewDate(2024, time.June, 10), domain.NewDate(2024, time.June, 11))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, domain.NewDate(2024, time.June, 10), bars[0].Date)
}

func TestYahooNotFoundIsEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer srv.Close()

	src := NewYahooSource(srv.URL, 5*time.Second, 3)
	bars, err := src.FetchDaily(context.Background(), "0000.T",
		domain.NewDate(2024, time.June, 10), domain.NewDate(2024, time.June, 11))
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Equal(t, int32(1), calls.Load(), "404 must not be retried")
}

func TestYahooRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, chartTemplate, tokyoSession(10), tokyoSession(11), tokyoSession(12))
	}))
	defer srv.Close()

	src := NewYahooSource(srv.URL, 5*time.Second, 3)
	src.baseDelay = time.Millisecond
	bars, err := src.FetchDaily(context.Background(), "7203.T",
		domain.NewDate(2024, time.June, 1), domain.NewDate(2024, time.June, 30))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestYahooBadRequestFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	src := NewYahooSource(srv.URL, 5*time.Second, 3)
	_, err := src.FetchDaily(context.Background(), "7203.T",
		domain.NewDate(2024, time.June, 1), domain.NewDate(2024, time.June, 30))
	assert.Error(t, err)
}

type alpacaBar struct {
	T  string  `json:"t"`
	O  float64 `json:"o"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	C  float64 `json:"c"`
	V  uint64  `json:"v"`
	N  uint64  `json:"n"`
	VW float64 `json:"vw"`
}

func TestAlpacaFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		closePx := 190.0
		if r.URL.Query().Get("adjustment") == "all" {
			closePx = 189.0
		}
		bars := []alpacaBar{
			{T: "2024-06-10T04:00:00Z", O: 188, H: 191, L: 187, C: closePx, V: 5000, N: 10, VW: 189.5},
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/v2/stocks/bars") {
			json.NewEncoder(w).Encode(map[string]any{"bars": map[string]any{"AAPL": bars}, "next_page_token": nil})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"symbol": "AAPL", "bars": bars, "next_page_token": nil})
	}))
	defer srv.Close()

	src, err := NewAlpacaSource("key", "secret", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "alpaca", src.Name())

	bars, err := src.FetchDaily(context.Background(), "AAPL",
		domain.NewDate(2024, time.June, 10), domain.NewDate(2024, time.June, 11))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, domain.NewDate(2024, time.June, 10), bars[0].Date)
	assert.True(t, bars[0].Close.Equal(decimal.NewFromInt(190)))
	assert.True(t, bars[0].AdjustedClose.Equal(decimal.NewFromInt(189)))
	assert.Equal(t, int64(5000), bars[0].Volume)
}
