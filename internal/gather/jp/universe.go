package jp

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/xuri/excelize/v2"

	"stockperf/internal/domain"
	"stockperf/internal/store"
)

// UniverseSource yields the raw ticker reference rows of one source.
type UniverseSource interface {
	Name() string
	Records(ctx context.Context) ([]domain.TickerRecord, error)
}

// Compile-time interface checks.
var (
	_ UniverseSource = (*CSVUniverse)(nil)
	_ UniverseSource = (*SpreadsheetUniverse)(nil)
	_ UniverseSource = (*ParquetUniverse)(nil)
)

// Header aliases accepted for each column, English and the JPX listing's
// Japanese labels.
var (
	codeHeaders   = []string{"code", "stock_code", "ticker", "コード"}
	nameHeaders   = []string{"name", "stock_name", "company_name", "銘柄名"}
	marketHeaders = []string{"market", "segment", "market_segment", "市場・商品区分"}
)

// ---------------------------------------------------------------------------
// UniverseLoader
// ---------------------------------------------------------------------------

// UniverseLoader loads the ticker universe from a source, applies the market
// segment allow-list and enforces code uniqueness.
type UniverseLoader struct {
	source   UniverseSource
	segments []string
	log      *slog.Logger
}

// NewUniverseLoader creates a loader. An empty segments list keeps every row.
func NewUniverseLoader(src UniverseSource, segments []string) *UniverseLoader {
	return &UniverseLoader{
		source:   src,
		segments: segments,
		log:      slog.Default().With("component", "universe", "source", src.Name()),
	}
}

// Load returns the filtered universe. It fails with domain.ErrUniverseLoad
// when the source cannot be read or nothing survives filtering.
func (l *UniverseLoader) Load(ctx context.Context) ([]domain.TickerRecord, error) {
	raw, err := l.source.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrUniverseLoad, l.source.Name(), err)
	}

	filtered := l.filterSegments(raw)
	tickers, dups := dedupe(filtered)
	if len(dups) > 0 {
		l.log.Warn("duplicate codes in universe, keeping first", "codes", dups)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: %s: no tickers after filtering (%d rows read)",
			domain.ErrUniverseLoad, l.source.Name(), len(raw))
	}

	l.log.Info("loaded universe", "rows", len(raw), "tickers", len(tickers), "segments", l.segments)
	return tickers, nil
}

func (l *UniverseLoader) filterSegments(records []domain.TickerRecord) []domain.TickerRecord {
	if len(l.segments) == 0 {
		return records
	}
	hasMarket := false
	for _, r := range records {
		if r.Market != "" {
			hasMarket = true
			break
		}
	}
	if !hasMarket {
		l.log.Warn("segment filter ignored, source has no market column")
		return records
	}

	var out []domain.TickerRecord
	for _, r := range records {
		for _, seg := range l.segments {
			if seg != "" && strings.Contains(r.Market, seg) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func dedupe(records []domain.TickerRecord) ([]domain.TickerRecord, []string) {
	seen := make(map[string]bool, len(records))
	out := make([]domain.TickerRecord, 0, len(records))
	var dups []string
	for _, r := range records {
		if seen[r.Code] {
			dups = append(dups, r.Code)
			continue
		}
		seen[r.Code] = true
		out = append(out, r)
	}
	return out, dups
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

// CSVUniverse reads a code/name mapping file with an optional market column.
type CSVUniverse struct {
	Path string
}

// Name returns the source identifier.
func (c *CSVUniverse) Name() string { return "csv" }

// Records reads every row of the mapping file.
func (c *CSVUniverse) Records(_ context.Context) ([]domain.TickerRecord, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.Path, err)
	}
	return parseTable(rows)
}

// SpreadsheetUniverse reads a listing workbook (.xlsx), either from a local
// path or downloaded from URL when Path is empty.
type SpreadsheetUniverse struct {
	Path   string
	URL    string
	client *resty.Client
}

// NewSpreadsheetUniverse creates a spreadsheet source.
func NewSpreadsheetUniverse(path, url string, timeout time.Duration) *SpreadsheetUniverse {
	return &SpreadsheetUniverse{
		Path:   path,
		URL:    url,
		client: resty.New().SetTimeout(timeout),
	}
}

// Name returns the source identifier.
func (s *SpreadsheetUniverse) Name() string { return "spreadsheet" }

// Records reads the first sheet of the workbook.
func (s *SpreadsheetUniverse) Records(ctx context.Context) ([]domain.TickerRecord, error) {
	var (
		f   *excelize.File
		err error
	)
	if s.Path != "" {
		f, err = excelize.OpenFile(s.Path)
	} else {
		var body []byte
		body, err = s.download(ctx)
		if err != nil {
			return nil, err
		}
		f, err = excelize.OpenReader(bytes.NewReader(body))
	}
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return parseTable(rows)
}

func (s *SpreadsheetUniverse) download(ctx context.Context) ([]byte, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("spreadsheet source needs a path or url")
	}
	resp, err := s.client.R().SetContext(ctx).Get(s.URL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", s.URL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("downloading %s: status %d", s.URL, resp.StatusCode())
	}
	return resp.Body(), nil
}

// ParquetUniverse reads a stock list kept in the object store.
type ParquetUniverse struct {
	Objects store.ObjectStore
	Key     string
}

// Name returns the source identifier.
func (p *ParquetUniverse) Name() string { return "parquet" }

// Records decodes the stock list object.
func (p *ParquetUniverse) Records(ctx context.Context) ([]domain.TickerRecord, error) {
	rc, err := p.Objects.Open(ctx, p.Key)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p.Objects.URI(p.Key), err)
	}
	defer rc.Close()

	records, err := store.ReadTickerList(rc)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.Objects.URI(p.Key), err)
	}
	for i := range records {
		records[i].Code = cleanCode(records[i].Code)
		records[i].Name = strings.TrimSpace(records[i].Name)
		records[i].Market = strings.TrimSpace(records[i].Market)
	}
	return dropBlankCodes(records), nil
}

// ---------------------------------------------------------------------------
// Table parsing
// ---------------------------------------------------------------------------

// parseTable locates the header row (the first row naming a code column)
// and maps the rows below it.
func parseTable(rows [][]string) ([]domain.TickerRecord, error) {
	for i, row := range rows {
		codeIdx := columnIndex(row, codeHeaders)
		if codeIdx < 0 {
			continue
		}
		nameIdx := columnIndex(row, nameHeaders)
		if nameIdx < 0 {
			return nil, fmt.Errorf("header row %d has no name column", i+1)
		}
		marketIdx := columnIndex(row, marketHeaders)

		records := make([]domain.TickerRecord, 0, len(rows)-i-1)
		for _, r := range rows[i+1:] {
			records = append(records, domain.TickerRecord{
				Code:   cleanCode(cell(r, codeIdx)),
				Name:   strings.TrimSpace(cell(r, nameIdx)),
				Market: strings.TrimSpace(cell(r, marketIdx)),
			})
		}
		return dropBlankCodes(records), nil
	}
	if len(rows) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("no header row with a code column")
}

func columnIndex(header []string, aliases []string) int {
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		for _, a := range aliases {
			if col == a {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// cleanCode trims a security code; numeric cells read back as "7203.0" lose
// the fractional part.
func cleanCode(code string) string {
	code = strings.TrimSpace(code)
	return strings.TrimSuffix(code, ".0")
}

func dropBlankCodes(records []domain.TickerRecord) []domain.TickerRecord {
	out := records[:0]
	for _, r := range records {
		if r.Code != "" {
			out = append(out, r)
		}
	}
	return out
}
