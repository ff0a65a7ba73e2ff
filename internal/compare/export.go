package compare

import (
	"encoding/csv"
	"io"
	"strconv"

	"stockperf/internal/domain"
)

var csvHeader = []string{"date", "stock_code", "stock_name", "normalized_close"}

// WriteCSV exports normalized rows with a header line.
func WriteCSV(w io.Writer, rows []domain.NormalizedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			domain.FormatDate(r.Date),
			r.StockCode,
			r.StockName,
			strconv.FormatFloat(r.NormalizedClose, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
