package fetcher

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/datadojo/partrank/internal/model"
)

// columnAliases maps the header spellings seen in supplier exports to the
// canonical part record columns. Headers are matched after normalization
// (lowercase, spaces and dashes folded to underscores).
var columnAliases = map[string]string{
	"pn":              "pn",
	"part_number":     "pn",
	"mpn":             "pn",
	"desc":            "desc",
	"description":     "desc",
	"category":        "category",
	"manuf":           "manuf",
	"manufacturer":    "manuf",
	"inventory":       "inventory",
	"qty":             "inventory",
	"quantity":        "inventory",
	"stock":           "inventory",
	"leadtime_weeks":  "leadtime_weeks",
	"lead_time_weeks": "leadtime_weeks",
	"leadtime":        "leadtime_weeks",
	"moq":             "moq",
	"min_order_qty":   "moq",
	"first_price":     "first_price",
	"price":           "first_price",
	"unit_price":      "first_price",
	"demand_all_time": "demand_all_time",
	"demand":          "demand_all_time",
	"source_type":     "source_type",
	"source":          "source_type",
	"datasheet":       "datasheet",
	"datasheet_url":   "datasheet",
}

// ReadPartsCSV parses part records from CSV. The column order is taken from
// the header row; unrecognized columns are ignored. Numeric cells tolerate
// currency symbols, thousands separators, and blank or NA placeholders.
func ReadPartsCSV(ctx context.Context, r io.Reader) ([]model.PartRecord, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	// The header always arrives before the first data row.
	var cols map[int]string
	select {
	case header := <-headerCh:
		m, err := mapHeader(header)
		if err != nil {
			return nil, err
		}
		cols = m
	case <-rowCh:
		if err := <-errCh; err != nil {
			return nil, err
		}
		return nil, eris.New("fetcher: csv input is empty")
	}

	var parts []model.PartRecord
	for rec := range rowCh {
		parts = append(parts, recordFromRow(rec, cols))
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return parts, nil
}

// ReadPartsXLSX parses part records from the first sheet of an XLSX workbook.
// The first row is the header.
func ReadPartsXLSX(path string) ([]model.PartRecord, error) {
	rows, err := ReadXLSX(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("fetcher: xlsx %s has no rows", path)
	}

	cols, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	parts := make([]model.PartRecord, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		parts = append(parts, recordFromRow(rec, cols))
	}
	return parts, nil
}

// mapHeader resolves each header cell to a canonical column, keyed by index.
func mapHeader(header []string) (map[int]string, error) {
	cols := make(map[int]string, len(header))
	hasPN := false
	for i, h := range header {
		norm := normalizeHeader(h)
		canon, ok := columnAliases[norm]
		if !ok {
			continue
		}
		cols[i] = canon
		if canon == "pn" {
			hasPN = true
		}
	}
	if !hasPN {
		return nil, eris.Errorf("fetcher: no part number column in header %v", header)
	}
	return cols, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

// recordFromRow assembles a PartRecord from one row. Blank, NA, and garbled
// numeric cells leave the column absent rather than failing the row; the
// scoring stages substitute documented defaults for absent columns.
func recordFromRow(rec []string, cols map[int]string) model.PartRecord {
	var p model.PartRecord
	for i, canon := range cols {
		if i >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[i])
		if cell == "" || isNA(cell) {
			continue
		}

		switch canon {
		case "pn":
			p.PN = cell
		case "desc":
			p.Description = cell
		case "category":
			p.Category = cell
		case "manuf":
			p.Manufacturer = cell
		case "inventory":
			if v, ok := parseNumeric(cell); ok {
				p.Inventory = int64(v)
			}
		case "leadtime_weeks":
			if v, ok := parseNumeric(cell); ok {
				p.LeadtimeWeeks = model.IntPtr(int(v))
			}
		case "moq":
			if v, ok := parseNumeric(cell); ok {
				p.MOQ = model.Float64Ptr(v)
			}
		case "first_price":
			if v, ok := parseNumeric(cell); ok {
				p.FirstPrice = model.Float64Ptr(v)
			}
		case "demand_all_time":
			if v, ok := parseNumeric(cell); ok {
				p.DemandAllTime = int64(v)
			}
		case "source_type":
			if strings.EqualFold(cell, string(model.SourceAuthorized)) {
				p.SourceType = model.SourceAuthorized
			} else {
				p.SourceType = model.SourceOther
			}
		case "datasheet":
			p.Datasheet = cell
		}
	}
	return p
}

func isNA(cell string) bool {
	switch strings.ToLower(cell) {
	case "na", "n/a", "null", "none", "-":
		return true
	}
	return false
}

// parseNumeric tolerates "1,000", "$12.50", and trailing units like "12 wks".
func parseNumeric(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
