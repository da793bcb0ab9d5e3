// Package export renders filtered orders as downloadable CSV or Excel files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Sales"

var headers = []string{
	"Order ID", "Customer ID", "Product ID", "Product Name",
	"Quantity", "Total Price", "Order Date",
}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX:
		return Format(s), nil
	case "":
		return FormatCSV, nil
	}
	return "", domain.NewValidationError("invalid format: must be csv or xlsx")
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Filename builds a timestamped download name
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("sales-%s.%s", now.Format("20060102-150405"), f)
}

// Write renders orders in the given format. Product names are resolved from
// products; unknown ids leave the name blank.
func Write(w io.Writer, f Format, orders []domain.Order, products []domain.Product) error {
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ProductID] = p.ProductName
	}

	switch f {
	case FormatCSV:
		return writeCSV(w, orders, names)
	case FormatXLSX:
		return writeExcel(w, orders, names)
	default:
		return domain.NewValidationError(fmt.Sprintf("unsupported export format %q", f))
	}
}

func writeCSV(w io.Writer, orders []domain.Order, names map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, o := range orders {
		row := []string{
			o.OrderID,
			o.CustomerID,
			o.ProductID,
			names[o.ProductID],
			strconv.Itoa(o.Quantity),
			strconv.FormatFloat(o.TotalPrice, 'f', 2, 64),
			domain.FormatDate(o.OrderDate),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeExcel(w io.Writer, orders []domain.Order, names map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, o := range orders {
		row := rowIdx + 2
		values := []any{
			o.OrderID,
			o.CustomerID,
			o.ProductID,
			names[o.ProductID],
			o.Quantity,
			o.TotalPrice,
			domain.FormatDate(o.OrderDate),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 15)
	}

	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
