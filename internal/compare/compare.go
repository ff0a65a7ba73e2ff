package compare

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stockperf/internal/domain"
	"stockperf/internal/store"
	"stockperf/internal/util"
)

// Request selects tickers and an inclusive date window. Codes and Names are
// combined; a zero Start or End takes the configured default.
type Request struct {
	Codes []string
	Names []string
	Start time.Time
	End   time.Time
}

// Result is the outcome of one comparison. It lives for a single request.
type Result struct {
	Start    time.Time `json:"-"`
	End      time.Time `json:"-"`
	Series   []Series  `json:"series"`
	Warnings []string  `json:"warnings"`
}

// Rows flattens the result for export.
func (r *Result) Rows() []domain.NormalizedRow { return Rows(r.Series) }

// Options configures selection defaults.
type Options struct {
	DefaultStart time.Time
	MinStart     time.Time
	DefaultName  string
}

// Comparer answers comparison requests from the warehouse.
type Comparer struct {
	warehouse store.Warehouse
	table     string
	dir       *Directory
	calendar  *util.TradingCalendar
	opts      Options
	log       *slog.Logger
}

// NewComparer creates a Comparer reading bars from table.
func NewComparer(wh store.Warehouse, table string, dir *Directory, cal *util.TradingCalendar, opts Options) *Comparer {
	opts.DefaultStart = domain.Date(opts.DefaultStart)
	opts.MinStart = domain.Date(opts.MinStart)
	return &Comparer{
		warehouse: wh,
		table:     table,
		dir:       dir,
		calendar:  cal,
		opts:      opts,
		log:       slog.Default().With("component", "compare"),
	}
}

// Directory returns the name directory used for selection and labels.
func (c *Comparer) Directory() *Directory { return c.dir }

// Compare resolves the selection, queries the warehouse and normalizes each
// ticker. Invalid selections fail with domain.ErrInvalidRequest; tickers
// without data only produce warnings.
func (c *Comparer) Compare(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}

	codes, warnings, err := c.resolveCodes(req)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, warnings...)

	res.Start, res.End, warnings, err = c.resolveWindow(req)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, warnings...)

	bars, err := c.warehouse.QueryBars(ctx, c.table, codes, res.Start, res.End)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", c.table, err)
	}

	var normWarnings []string
	res.Series, normWarnings = Normalize(bars, codes, c.dir.Name)
	res.Warnings = append(res.Warnings, normWarnings...)
	if res.Series == nil {
		res.Series = []Series{}
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}

	c.log.Info("comparison",
		"codes", codes,
		"start", domain.FormatDate(res.Start),
		"end", domain.FormatDate(res.End),
		"rows", len(bars),
		"series", len(res.Series),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// resolveCodes merges explicit codes with codes looked up by name, keeping
// first-seen order. With nothing selected it falls back to the default name,
// then to the first ticker of the directory.
func (c *Comparer) resolveCodes(req Request) ([]string, []string, error) {
	var (
		codes    []string
		warnings []string
		unknown  []string
	)
	seen := make(map[string]bool)
	add := func(code string) {
		if code != "" && !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}

	for _, code := range req.Codes {
		add(strings.TrimSpace(code))
	}
	for _, name := range req.Names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		code, ok := c.dir.Code(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		add(code)
	}
	if len(unknown) > 0 {
		warnings = append(warnings, "unknown names: "+strings.Join(unknown, ", "))
	}

	if len(codes) == 0 {
		if len(req.Codes) > 0 || len(unknown) > 0 {
			return nil, warnings, fmt.Errorf("%w: none of the selected tickers are known", domain.ErrInvalidRequest)
		}
		if code, ok := c.dir.Code(c.opts.DefaultName); ok {
			add(code)
		} else if c.dir.Len() > 0 {
			add(c.dir.Tickers()[0].Code)
		} else {
			return nil, warnings, fmt.Errorf("%w: no tickers selected and the universe is empty", domain.ErrInvalidRequest)
		}
	}
	return codes, warnings, nil
}

// resolveWindow applies defaults and clamps the window to [MinStart, today].
func (c *Comparer) resolveWindow(req Request) (time.Time, time.Time, []string, error) {
	today := c.calendar.Today()
	start, end := domain.Date(req.Start), domain.Date(req.End)
	if req.Start.IsZero() {
		start = c.opts.DefaultStart
	}
	if req.End.IsZero() {
		end = today
	}

	var warnings []string
	if !c.opts.MinStart.IsZero() && start.Before(c.opts.MinStart) {
		warnings = append(warnings, fmt.Sprintf("start %s is before %s, clamped",
			domain.FormatDate(start), domain.FormatDate(c.opts.MinStart)))
		start = c.opts.MinStart
	}
	if end.After(today) {
		end = today
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, warnings, fmt.Errorf("%w: start %s is after end %s",
			domain.ErrInvalidRequest, domain.FormatDate(start), domain.FormatDate(end))
	}
	return start, end, warnings, nil
}
