package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockperf/internal/compare"
	"stockperf/internal/domain"
	"stockperf/internal/store"
	"stockperf/internal/util"
)

const testTable = "stock_data"

func day(d int) time.Time { return domain.NewDate(2024, time.June, d) }

func closeBar(code string, d time.Time, closePx float64) domain.DailyBar {
	c := decimal.NewFromFloat(closePx)
	return domain.DailyBar{Date: d, StockCode: code, Open: c, High: c, Low: c, Close: c, AdjustedClose: c, Volume: 10}
}

func newTestServer(t *testing.T, seed bool) *Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	objects, err := store.NewLocalStore(filepath.Join(dir, "objects"), "")
	require.NoError(t, err)
	wh, err := store.NewSQLiteWarehouse(filepath.Join(dir, "warehouse.db"), objects)
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })

	if seed {
		bars := []domain.DailyBar{
			closeBar("7203", day(3), 100), closeBar("6758", day(3), 50),
			closeBar("7203", day(4), 110), closeBar("6758", day(4), 55),
			closeBar("7203", day(5), 120), closeBar("6758", day(5), 45),
		}
		local := filepath.Join(dir, "seed.parquet")
		require.NoError(t, store.WriteArtifactFile(local, bars))
		require.NoError(t, objects.Upload(ctx, local, "seed.parquet"))
		job, err := wh.LoadAppend(ctx, objects.URI("seed.parquet"), testTable)
		require.NoError(t, err)
		_, err = job.Wait(ctx)
		require.NoError(t, err)
	}

	directory := compare.NewDirectory([]domain.TickerRecord{
		{Code: "7203", Name: "トヨタ自動車"},
		{Code: "6758", Name: "ソニーグループ"},
		{Code: "9984", Name: "ソフトバンクグループ"},
	})
	cal := util.FixedCalendar(time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC))
	c := compare.NewComparer(wh, testTable, directory, cal, compare.Options{
		DefaultStart: domain.NewDate(2024, time.January, 1),
		MinStart:     domain.NewDate(2023, time.January, 1),
		DefaultName:  "トヨタ自動車",
	})
	return NewServer(":0", c, wh, testTable)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(t, false), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTickers(t *testing.T) {
	s := newTestServer(t, false)

	rec := get(t, s, "/api/tickers?q=%E3%82%BD") // "ソ"
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TickersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Tickers, 2)
	assert.Equal(t, "6758", resp.Tickers[0].Code)

	rec = get(t, s, "/api/tickers?limit=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, s, "/api/tickers/7203")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "トヨタ自動車")

	rec = get(t, s, "/api/tickers/0000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTickerWithoutName(t *testing.T) {
	dir := t.TempDir()
	objects, err := store.NewLocalStore(filepath.Join(dir, "objects"), "")
	require.NoError(t, err)
	wh, err := store.NewSQLiteWarehouse(filepath.Join(dir, "warehouse.db"), objects)
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })

	directory := compare.NewDirectory([]domain.TickerRecord{{Code: "1301", Market: "プライム（内国株式）"}})
	cal := util.FixedCalendar(time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC))
	s := NewServer(":0", compare.NewComparer(wh, testTable, directory, cal, compare.Options{}), wh, testTable)

	rec := get(t, s, "/api/tickers/1301")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got domain.TickerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "1301", got.Code)
	assert.Empty(t, got.Name)
	assert.Equal(t, "プライム（内国株式）", got.Market)

	rec = get(t, s, "/api/tickers/0000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompareJSON(t *testing.T) {
	s := newTestServer(t, true)

	rec := get(t, s, "/api/compare?codes=7203,6758&start=2024-06-01&end=2024-06-30")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-06-01", resp.Start)
	assert.Equal(t, "2024-06-28", resp.End)
	assert.Empty(t, resp.Warnings)
	require.Len(t, resp.Series, 2)
	assert.Equal(t, "トヨタ自動車", resp.Series[0].Name)
	assert.Equal(t, "2024-06-03", resp.Series[0].Points[0].Date)
	assert.Equal(t, 100.0, resp.Series[0].Points[0].NormalizedClose)
	assert.Equal(t, 90.0, resp.Series[1].Points[2].NormalizedClose)
	assert.Equal(t, 120.0, resp.Series[0].Summary.Last)
}

func TestCompareByNameWithWarnings(t *testing.T) {
	s := newTestServer(t, true)

	rec := get(t, s, "/api/compare?names=%E3%82%BD%E3%83%95%E3%83%88%E3%83%90%E3%83%B3%E3%82%AF%E3%82%B0%E3%83%AB%E3%83%BC%E3%83%97&codes=1111")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Series)
	assert.Len(t, resp.Warnings, 2)
}

func TestCompareCSV(t *testing.T) {
	s := newTestServer(t, true)

	rec := get(t, s, "/api/compare?codes=7203&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Equal(t, "date,stock_code,stock_name,normalized_close\n"+
		"2024-06-03,7203,トヨタ自動車,100\n"+
		"2024-06-04,7203,トヨタ自動車,110\n"+
		"2024-06-05,7203,トヨタ自動車,120\n", rec.Body.String())
}

func TestCompareBadRequests(t *testing.T) {
	s := newTestServer(t, true)

	for _, target := range []string{
		"/api/compare?start=yesterday",
		"/api/compare?codes=7203&start=2024-06-20&end=2024-06-10",
		"/api/compare?names=unknown",
	} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"error"`, target)
	}
}

func TestWatermark(t *testing.T) {
	rec := get(t, newTestServer(t, true), "/api/watermark")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"table":"stock_data","latest":"2024-06-05","empty":false}`, rec.Body.String())

	rec = get(t, newTestServer(t, false), "/api/watermark")
	assert.JSONEq(t, `{"table":"stock_data","empty":true}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/compare", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
