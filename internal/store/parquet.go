package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"stockperf/internal/domain"
)

// ---------------------------------------------------------------------------
// Parquet record types (artifact schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema of the combined daily bar artifact. Dates
// are ISO strings so the warehouse never has to guess a time zone.
type BarRecord struct {
	Date      string  `parquet:"date"`
	StockCode string  `parquet:"stock_code"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	AdjClose  float64 `parquet:"adj_close"`
	Volume    int64   `parquet:"volume"`
}

// TickerRow is the Parquet schema of a stock list held in the object store.
type TickerRow struct {
	Code   string `parquet:"code"`
	Name   string `parquet:"name"`
	Market string `parquet:"market"`
}

// ---------------------------------------------------------------------------
// Bars
// ---------------------------------------------------------------------------

// WriteArtifactFile writes bars as a Parquet file at path, creating parent
// directories as needed.
func WriteArtifactFile(path string, bars []domain.DailyBar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, toBarRecords(bars))
}

// WriteArtifact writes bars in Parquet format to w.
func WriteArtifact(w io.Writer, bars []domain.DailyBar) error {
	return parquet.Write(w, toBarRecords(bars))
}

// ReadArtifact decodes a Parquet bar artifact from r.
func ReadArtifact(r io.Reader) ([]domain.DailyBar, error) {
	records, err := readAll[BarRecord](r)
	if err != nil {
		return nil, err
	}

	bars := make([]domain.DailyBar, 0, len(records))
	for i, rec := range records {
		d, err := domain.ParseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		bars = append(bars, domain.DailyBar{
			Date:          d,
			StockCode:     rec.StockCode,
			Open:          decimal.NewFromFloat(rec.Open),
			High:          decimal.NewFromFloat(rec.High),
			Low:           decimal.NewFromFloat(rec.Low),
			Close:         decimal.NewFromFloat(rec.Close),
			AdjustedClose: decimal.NewFromFloat(rec.AdjClose),
			Volume:        rec.Volume,
		})
	}
	return bars, nil
}

func toBarRecords(bars []domain.DailyBar) []BarRecord {
	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = BarRecord{
			Date:      domain.FormatDate(b.Date),
			StockCode: b.StockCode,
			Open:      b.Open.InexactFloat64(),
			High:      b.High.InexactFloat64(),
			Low:       b.Low.InexactFloat64(),
			Close:     b.Close.InexactFloat64(),
			AdjClose:  b.AdjustedClose.InexactFloat64(),
			Volume:    b.Volume,
		}
	}
	return records
}

// ---------------------------------------------------------------------------
// Ticker lists
// ---------------------------------------------------------------------------

// WriteTickerList writes a stock list in Parquet format to w.
func WriteTickerList(w io.Writer, tickers []domain.TickerRecord) error {
	rows := make([]TickerRow, len(tickers))
	for i, t := range tickers {
		rows[i] = TickerRow{Code: t.Code, Name: t.Name, Market: t.Market}
	}
	return parquet.Write(w, rows)
}

// ReadTickerList decodes a Parquet stock list from r.
func ReadTickerList(r io.Reader) ([]domain.TickerRecord, error) {
	rows, err := readAll[TickerRow](r)
	if err != nil {
		return nil, err
	}
	tickers := make([]domain.TickerRecord, len(rows))
	for i, row := range rows {
		tickers[i] = domain.TickerRecord{Code: row.Code, Name: row.Name, Market: row.Market}
	}
	return tickers, nil
}

// ---------------------------------------------------------------------------
// Parquet helpers
// ---------------------------------------------------------------------------

// readAll buffers r so parquet can seek to the footer.
func readAll[T any](r io.Reader) ([]T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parquet.Read[T](bytes.NewReader(data), int64(len(data)))
}
