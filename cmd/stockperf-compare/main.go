// One-shot comparison: normalizes the selected tickers to base 100 and writes
// the series as CSV.
//
// Usage:
//
//	go run cmd/stockperf-compare/main.go -codes 7203,6758 [-names トヨタ自動車] [-start 2024-01-01] [-end 2024-06-30] [-o out.csv]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stockperf/internal/app"
	"stockperf/internal/compare"
	"stockperf/internal/config"
	"stockperf/internal/domain"
	"stockperf/internal/util"
)

func main() {
	codes := flag.String("codes", "", "comma-separated stock codes")
	names := flag.String("names", "", "comma-separated display names")
	start := flag.String("start", "", "window start YYYY-MM-DD (default compare.default_start_date)")
	end := flag.String("end", "", "window end YYYY-MM-DD, inclusive (default today)")
	out := flag.String("o", "", "output CSV path (default stdout)")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// Logs go to stderr so stdout carries only the CSV.
	util.SetDefault(util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text"))

	req := compare.Request{Codes: split(*codes), Names: split(*names)}
	if req.Start, err = optionalDate(*start); err != nil {
		log.Fatalf("-start: %v", err)
	}
	if req.End, err = optionalDate(*end); err != nil {
		log.Fatalf("-end: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open: %v", err)
	}
	defer a.Close()

	comparer, err := a.Comparer(ctx)
	if err != nil {
		log.Fatalf("failed to load ticker universe: %v", err)
	}
	res, err := comparer.Compare(ctx, req)
	if err != nil {
		log.Fatalf("comparison failed: %v", err)
	}
	for _, w := range res.Warnings {
		slog.Warn(w)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}
	if err := compare.WriteCSV(w, res.Rows()); err != nil {
		log.Fatalf("writing CSV: %v", err)
	}

	for _, s := range res.Series {
		fmt.Fprintf(os.Stderr, "%s %-20s last=%7.2f return=%+7.2f%% maxDD=%6.2f%% vol=%6.2f%%\n",
			s.Code, s.Name, s.Summary.Last, s.Summary.TotalReturn, s.Summary.MaxDrawdown, s.Summary.Volatility)
	}
}

func split(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(s)
}
