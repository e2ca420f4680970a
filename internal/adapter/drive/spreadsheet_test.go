package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
)

var testParts = filenameParts{
	Stem:     "Bangor, ME__2023-01-15__james",
	Location: "Bangor, ME",
	Date:     "2023-01-15",
	Employee: "james",
}

var marketHeader = []any{"sale_number", "product", "unit_price", "quantity", "sold_at"}

func marketWorkbook(t *testing.T, header []any, rows [][]any) []byte {
	t.Helper()

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cellRef, &row))
	}

	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecodeWorkbook(t *testing.T) {
	content := marketWorkbook(t, marketHeader, [][]any{
		{1, "strawberries", 6.99, 3, "09:34"},
		{2, "blueberries", 8.99, 1, "12:05"},
	})

	records, err := decodeWorkbook(content, testParts)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, domain.RawMarketRecord{
		SourceFile: "Bangor, ME__2023-01-15__james",
		Location:   "Bangor, ME",
		Date:       "2023-01-15",
		Employee:   "james",
		SaleNumber: 1,
		Product:    "strawberries",
		UnitPrice:  6.99,
		Quantity:   3,
		SoldAt:     "09:34",
	}, records[0])
	assert.Equal(t, int64(2), records[1].SaleNumber)
	assert.Equal(t, "blueberries", records[1].Product)
}

func TestDecodeWorkbook_ShortRowMeansMissingTime(t *testing.T) {
	// A trailing empty sold_at cell comes back as a short row; the record
	// carries the empty value so transform can reject that one sale.
	content := marketWorkbook(t, marketHeader, [][]any{
		{1, "strawberries", 6.99, 3},
	})

	records, err := decodeWorkbook(content, testParts)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].SoldAt)
}

func TestDecodeWorkbook_MissingColumn(t *testing.T) {
	content := marketWorkbook(t, []any{"sale_number", "product", "unit_price", "quantity"}, [][]any{
		{1, "strawberries", 6.99, 3},
	})

	_, err := decodeWorkbook(content, testParts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "sold_at"`)
}

func TestDecodeWorkbook_BadNumericCell(t *testing.T) {
	content := marketWorkbook(t, marketHeader, [][]any{
		{1, "strawberries", 6.99, "many", "09:34"},
	})

	_, err := decodeWorkbook(content, testParts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "parse quantity")
}

func TestDecodeWorkbook_SkipsEmptyRows(t *testing.T) {
	content := marketWorkbook(t, marketHeader, [][]any{
		{1, "strawberries", 6.99, 3, "09:34"},
		{"", "", "", "", ""},
		{2, "raspberries", 10.49, 2, "15:12"},
	})

	records, err := decodeWorkbook(content, testParts)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].SaleNumber)
	assert.Equal(t, int64(2), records[1].SaleNumber)
}

func TestDecodeWorkbook_NotASpreadsheet(t *testing.T) {
	_, err := decodeWorkbook([]byte("csv,not,xlsx"), testParts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open workbook")
}
