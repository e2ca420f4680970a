package drive

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
)

// marketColumns are the headers a market spreadsheet must carry.
var marketColumns = []string{"sale_number", "product", "unit_price", "quantity", "sold_at"}

// decodeWorkbook reads the first sheet of a market spreadsheet into raw
// records tagged with the location, date, and employee from the file name.
// Categorical, date, and time cells pass through unvalidated; repair happens
// during transform.
func decodeWorkbook(content []byte, parts filenameParts) ([]domain.RawMarketRecord, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, errors.New("missing header row")
	}

	cols, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	var records []domain.RawMarketRecord
	for i, row := range rows[1:] {
		if emptyRow(row) {
			continue
		}
		rec, err := decodeRow(row, cols, parts)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRow(row []string, cols map[string]int, parts filenameParts) (domain.RawMarketRecord, error) {
	saleNumber, err := strconv.ParseInt(cell(row, cols["sale_number"]), 10, 64)
	if err != nil {
		return domain.RawMarketRecord{}, fmt.Errorf("parse sale_number: %w", err)
	}
	unitPrice, err := strconv.ParseFloat(cell(row, cols["unit_price"]), 64)
	if err != nil {
		return domain.RawMarketRecord{}, fmt.Errorf("parse unit_price: %w", err)
	}
	quantity, err := strconv.ParseInt(cell(row, cols["quantity"]), 10, 64)
	if err != nil {
		return domain.RawMarketRecord{}, fmt.Errorf("parse quantity: %w", err)
	}

	return domain.RawMarketRecord{
		SourceFile: parts.Stem,
		Location:   parts.Location,
		Date:       parts.Date,
		Employee:   parts.Employee,
		SaleNumber: saleNumber,
		Product:    cell(row, cols["product"]),
		UnitPrice:  unitPrice,
		Quantity:   quantity,
		SoldAt:     cell(row, cols["sold_at"]),
	}, nil
}

// headerIndex maps column names to their positions in the header row,
// requiring every market column to be present.
func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range marketColumns {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return idx, nil
}

// cell returns the trimmed value at i, tolerating rows shortened by trailing
// empty cells.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
