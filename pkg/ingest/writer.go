package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// RawFiles maps each table to its raw extract file name
var RawFiles = map[string]string{
	TableOrders:    "sales.csv",
	TableCustomers: "customers.csv",
	TableProducts:  "products.csv",
	TableCampaigns: "marketing.csv",
}

// CleanedFiles maps each table to its cleaned file name
var CleanedFiles = map[string]string{
	TableOrders:    "sales_cleaned.csv",
	TableCustomers: "customers_cleaned.csv",
	TableProducts:  "products_cleaned.csv",
	TableCampaigns: "marketing_cleaned.csv",
}

// Open opens a table file from dir, reporting a missing file as a missing-source error
func Open(dir string, files map[string]string, table string) (*os.File, error) {
	name, ok := files[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewMissingSourceError(name, err)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// WriteOrders writes cleaned orders including the derived month and year columns
func WriteOrders(w io.Writer, orders []domain.Order) error {
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []string{
			o.OrderID,
			o.CustomerID,
			o.ProductID,
			strconv.Itoa(o.Quantity),
			formatFloat(o.TotalPrice),
			domain.FormatDate(o.OrderDate),
			strconv.Itoa(o.Month()),
			strconv.Itoa(o.Year()),
		})
	}
	return writeAll(w, []string{"order_id", "customer_id", "product_id", "quantity", "total_price", "order_date", "month", "year"}, rows)
}

// WriteCustomers writes cleaned customers
func WriteCustomers(w io.Writer, customers []domain.Customer) error {
	rows := make([][]string, 0, len(customers))
	for _, c := range customers {
		lastOrder := ""
		if c.LastOrderDate != nil {
			lastOrder = domain.FormatDate(*c.LastOrderDate)
		}
		rows = append(rows, []string{
			c.CustomerID,
			c.Name,
			c.Email,
			domain.FormatDate(c.SignupDate),
			lastOrder,
			strconv.Itoa(c.NumOrders),
			formatFloat(c.CLV),
			strconv.Itoa(c.Age),
			string(c.Segment),
		})
	}
	return writeAll(w, []string{"customer_id", "name", "email", "signup_date", "last_order_date", "num_orders", "clv", "age", "segment"}, rows)
}

// WriteProducts writes cleaned products
func WriteProducts(w io.Writer, products []domain.Product) error {
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{
			p.ProductID,
			p.ProductName,
			p.Category,
			formatFloat(p.Price),
			strconv.Itoa(p.Stock),
		})
	}
	return writeAll(w, []string{"product_id", "product_name", "category", "price", "stock"}, rows)
}

// WriteCampaigns writes cleaned campaigns
func WriteCampaigns(w io.Writer, campaigns []domain.Campaign) error {
	rows := make([][]string, 0, len(campaigns))
	for _, c := range campaigns {
		rows = append(rows, []string{
			c.CampaignID,
			c.CampaignName,
			formatFloat(c.Spend),
			strconv.Itoa(c.Clicks),
			strconv.Itoa(c.Conversions),
			strconv.Itoa(c.Impressions),
			domain.FormatDate(c.StartDate),
			domain.FormatDate(c.EndDate),
		})
	}
	return writeAll(w, []string{"campaign_id", "campaign_name", "spend", "clicks", "conversions", "impressions", "start_date", "end_date"}, rows)
}
