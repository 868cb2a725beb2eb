package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"id", "trade_id", "symbol", "entry_date", "exit_date",
	"entry_price", "exit_price", "exit_qty", "r_multiple", "partial", "outcome",
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		err := cw.Write([]string{
			r.ID,
			r.TradeID,
			r.Symbol,
			r.EntryDate,
			r.ExitDate,
			f(r.EntryPrice),
			f(r.ExitPrice),
			strconv.Itoa(r.ExitQty),
			f(r.RMultiple),
			strconv.FormatBool(r.Partial),
			string(r.Outcome),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses rows written by WriteCSV. Columns are matched by header
// name; symbol, exit_date, entry_price and exit_price are required, other
// columns may be missing.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{"symbol", "exit_date", "entry_price", "exit_price"} {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("missing column %q", req)
		}
	}

	var out []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		row := Row{
			ID:        get("id"),
			TradeID:   get("trade_id"),
			Symbol:    strings.ToUpper(get("symbol")),
			EntryDate: get("entry_date"),
			ExitDate:  get("exit_date"),
			Outcome:   Outcome(get("outcome")),
			ExitQty:   1,
		}
		if row.EntryPrice, err = strconv.ParseFloat(get("entry_price"), 64); err != nil {
			return nil, fmt.Errorf("line %d: entry_price: %w", line, err)
		}
		if row.ExitPrice, err = strconv.ParseFloat(get("exit_price"), 64); err != nil {
			return nil, fmt.Errorf("line %d: exit_price: %w", line, err)
		}
		if v := get("exit_qty"); v != "" {
			if row.ExitQty, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("line %d: exit_qty: %w", line, err)
			}
		}
		if v := get("r_multiple"); v != "" {
			if row.RMultiple, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("line %d: r_multiple: %w", line, err)
			}
		}
		if v := get("partial"); v != "" {
			if row.Partial, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("line %d: partial: %w", line, err)
			}
		}
		if row.Outcome == "" {
			row.Outcome = OutcomeOK
		}
		out = append(out, row)
	}
	return out, nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
