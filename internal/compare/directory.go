// Package compare runs the comparison pipeline: selection, warehouse query,
// base-100 normalization and export of the resulting series.
package compare

import (
	"strings"

	"stockperf/internal/domain"
)

// Directory maps codes to display names and back. It is built once from the
// ticker universe and is read-only afterwards.
type Directory struct {
	tickers []domain.TickerRecord
	byCode  map[string]domain.TickerRecord
	byName  map[string]string
}

// NewDirectory indexes records. The first record wins for a repeated code
// or name.
func NewDirectory(records []domain.TickerRecord) *Directory {
	d := &Directory{
		byCode: make(map[string]domain.TickerRecord, len(records)),
		byName: make(map[string]string, len(records)),
	}
	for _, r := range records {
		if _, ok := d.byCode[r.Code]; ok {
			continue
		}
		d.byCode[r.Code] = r
		d.tickers = append(d.tickers, r)
		if r.Name != "" {
			if _, ok := d.byName[r.Name]; !ok {
				d.byName[r.Name] = r.Code
			}
		}
	}
	return d
}

// Tickers returns every record in load order.
func (d *Directory) Tickers() []domain.TickerRecord { return d.tickers }

// Len returns the number of distinct codes.
func (d *Directory) Len() int { return len(d.tickers) }

// Lookup returns the record of code, whether or not it carries a name.
func (d *Directory) Lookup(code string) (domain.TickerRecord, bool) {
	r, ok := d.byCode[code]
	return r, ok
}

// Name returns the display name of code. A blank name counts as unmapped.
func (d *Directory) Name(code string) (string, bool) {
	r, ok := d.byCode[code]
	if !ok || r.Name == "" {
		return "", false
	}
	return r.Name, true
}

// Code resolves a display name to its code.
func (d *Directory) Code(name string) (string, bool) {
	code, ok := d.byName[strings.TrimSpace(name)]
	return code, ok
}

// Search returns up to limit records whose code or name contains q.
func (d *Directory) Search(q string, limit int) []domain.TickerRecord {
	q = strings.TrimSpace(q)
	var out []domain.TickerRecord
	for _, r := range d.tickers {
		if limit > 0 && len(out) >= limit {
			break
		}
		if q == "" || strings.Contains(r.Code, q) || strings.Contains(r.Name, q) {
			out = append(out, r)
		}
	}
	return out
}
