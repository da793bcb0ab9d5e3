package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

func sample() ([]domain.Order, []domain.Product) {
	orders := []domain.Order{
		{OrderID: "1", CustomerID: "C1", ProductID: "P1", Quantity: 2, TotalPrice: 59.9, OrderDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{OrderID: "2", CustomerID: "C2", ProductID: "P9", Quantity: 1, TotalPrice: 10, OrderDate: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)},
	}
	products := []domain.Product{{ProductID: "P1", ProductName: "Wireless Mouse"}}
	return orders, products
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("pdf")
	assert.True(t, domain.IsValidation(err))

	assert.Equal(t, "text/csv", FormatCSV.ContentType())
	assert.Equal(t, "sales-20240305-101500.xlsx", FormatXLSX.Filename(time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC)))
}

func TestWriteCSV(t *testing.T) {
	orders, products := sample()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, orders, products))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{"1", "C1", "P1", "Wireless Mouse", "2", "59.90", "2024-03-05"}, rows[1])
	assert.Equal(t, "", rows[2][3])
}

func TestWriteExcel(t *testing.T) {
	orders, products := sample()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, orders, products))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Order ID", rows[0][0])
	assert.Equal(t, "Wireless Mouse", rows[1][3])
	assert.Equal(t, "2024-03-06", rows[2][6])
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("pdf"), nil, nil)
	assert.True(t, domain.IsValidation(err))
}
