package ingest

import (
	"fmt"
	"io"
	"time"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// Table names used across files, the store and warnings
const (
	TableOrders    = "orders"
	TableCustomers = "customers"
	TableProducts  = "products"
	TableCampaigns = "campaigns"
)

// Required columns per table. A missing column fails the whole table;
// an empty value in one of these columns drops the row. segment is not
// required when segments are recomputed.
var (
	OrderRequiredFields    = []string{"order_id", "customer_id", "product_id", "quantity", "total_price", "order_date"}
	CustomerRequiredFields = []string{"customer_id", "segment", "signup_date", "email"}
	ProductRequiredFields  = []string{"product_id", "product_name", "price"}
	CampaignRequiredFields = []string{"campaign_id", "campaign_name", "spend", "conversions", "impressions", "start_date", "end_date"}
)

// Options tunes the cleaning stage
type Options struct {
	// RecomputeSegments replaces each customer's segment with the tier derived
	// from its own CLV and order count.
	RecomputeSegments bool
}

// rowFailure builds a RowError from a field-level parse failure
func rowFailure(row int, field, value string, err error) RowError {
	msg := err.Error()
	if err == errMissingValue {
		msg = fmt.Sprintf("missing value for %s", field)
	}
	return RowError{Row: row, Field: field, Value: value, Message: msg}
}

func withoutField(fields []string, name string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != name {
			out = append(out, f)
		}
	}
	return out
}

// CleanOrders reads a raw sales extract
func CleanOrders(r io.Reader) (*Result[domain.Order], error) {
	res := &Result[domain.Order]{Table: TableOrders}

	err := readTable(TableOrders, r, OrderRequiredFields, func(row int, rec record) {
		res.Total++

		var o domain.Order
		var err error
		if o.OrderID, err = rec.required("order_id"); err != nil {
			res.drop(rowFailure(row, "order_id", "", err))
			return
		}
		if o.CustomerID, err = rec.required("customer_id"); err != nil {
			res.drop(rowFailure(row, "customer_id", "", err))
			return
		}
		if o.ProductID, err = rec.required("product_id"); err != nil {
			res.drop(rowFailure(row, "product_id", "", err))
			return
		}
		if o.Quantity, err = rec.integer("quantity"); err != nil {
			res.drop(rowFailure(row, "quantity", rec.get("quantity"), err))
			return
		}
		if o.Quantity <= 0 {
			res.drop(RowError{Row: row, Field: "quantity", Value: rec.get("quantity"), Message: "quantity must be positive"})
			return
		}
		if o.TotalPrice, err = rec.float("total_price"); err != nil {
			res.drop(rowFailure(row, "total_price", rec.get("total_price"), err))
			return
		}
		if o.TotalPrice < 0 {
			res.drop(RowError{Row: row, Field: "total_price", Value: rec.get("total_price"), Message: "total_price must not be negative"})
			return
		}
		if o.OrderDate, err = rec.date("order_date"); err != nil {
			res.drop(rowFailure(row, "order_date", rec.get("order_date"), err))
			return
		}

		res.keep(row, "order_id", o.OrderID, o)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CleanCustomers reads a raw customer extract
func CleanCustomers(r io.Reader, opts Options) (*Result[domain.Customer], error) {
	res := &Result[domain.Customer]{Table: TableCustomers}

	required := CustomerRequiredFields
	if opts.RecomputeSegments {
		required = withoutField(required, "segment")
	}

	err := readTable(TableCustomers, r, required, func(row int, rec record) {
		res.Total++

		var c domain.Customer
		var err error
		if c.CustomerID, err = rec.required("customer_id"); err != nil {
			res.drop(rowFailure(row, "customer_id", "", err))
			return
		}
		if c.Email, err = rec.required("email"); err != nil {
			res.drop(rowFailure(row, "email", "", err))
			return
		}
		if c.SignupDate, err = rec.date("signup_date"); err != nil {
			res.drop(rowFailure(row, "signup_date", rec.get("signup_date"), err))
			return
		}
		if v := rec.get("last_order_date"); v != "" {
			d, err := ParseDate(v)
			if err != nil {
				res.drop(rowFailure(row, "last_order_date", v, err))
				return
			}
			c.LastOrderDate = &d
		}
		if v := rec.get("clv"); v != "" {
			if c.CLV, err = rec.float("clv"); err != nil {
				res.drop(rowFailure(row, "clv", v, err))
				return
			}
		}
		if c.NumOrders, err = rec.optionalInt("num_orders"); err != nil {
			res.drop(rowFailure(row, "num_orders", rec.get("num_orders"), err))
			return
		}
		if c.Age, err = rec.optionalInt("age"); err != nil {
			res.drop(rowFailure(row, "age", rec.get("age"), err))
			return
		}
		c.Name = rec.text("name")

		if opts.RecomputeSegments {
			c.Segment = domain.AssignSegment(c.CLV, c.NumOrders)
		} else {
			seg, err := rec.required("segment")
			if err != nil {
				res.drop(rowFailure(row, "segment", "", err))
				return
			}
			c.Segment = domain.Segment(seg)
		}

		res.keep(row, "customer_id", c.CustomerID, c)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CleanProducts reads a raw product catalog
func CleanProducts(r io.Reader) (*Result[domain.Product], error) {
	res := &Result[domain.Product]{Table: TableProducts}

	err := readTable(TableProducts, r, ProductRequiredFields, func(row int, rec record) {
		res.Total++

		var p domain.Product
		var err error
		if p.ProductID, err = rec.required("product_id"); err != nil {
			res.drop(rowFailure(row, "product_id", "", err))
			return
		}
		if p.ProductName, err = rec.required("product_name"); err != nil {
			res.drop(rowFailure(row, "product_name", "", err))
			return
		}
		if p.Price, err = rec.float("price"); err != nil {
			res.drop(rowFailure(row, "price", rec.get("price"), err))
			return
		}
		if p.Price < 0 {
			res.drop(RowError{Row: row, Field: "price", Value: rec.get("price"), Message: "price must not be negative"})
			return
		}
		if p.Stock, err = rec.optionalInt("stock"); err != nil {
			res.drop(rowFailure(row, "stock", rec.get("stock"), err))
			return
		}
		p.Category = rec.text("category")

		res.keep(row, "product_id", p.ProductID, p)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CleanCampaigns reads a raw marketing extract. The clicks column is optional.
func CleanCampaigns(r io.Reader) (*Result[domain.Campaign], error) {
	res := &Result[domain.Campaign]{Table: TableCampaigns}

	err := readTable(TableCampaigns, r, CampaignRequiredFields, func(row int, rec record) {
		res.Total++

		var c domain.Campaign
		var err error
		if c.CampaignID, err = rec.required("campaign_id"); err != nil {
			res.drop(rowFailure(row, "campaign_id", "", err))
			return
		}
		if c.CampaignName, err = rec.required("campaign_name"); err != nil {
			res.drop(rowFailure(row, "campaign_name", "", err))
			return
		}
		if c.Spend, err = rec.float("spend"); err != nil {
			res.drop(rowFailure(row, "spend", rec.get("spend"), err))
			return
		}
		if c.Conversions, err = rec.integer("conversions"); err != nil {
			res.drop(rowFailure(row, "conversions", rec.get("conversions"), err))
			return
		}
		if c.Impressions, err = rec.integer("impressions"); err != nil {
			res.drop(rowFailure(row, "impressions", rec.get("impressions"), err))
			return
		}
		if rec.has("clicks") {
			if c.Clicks, err = rec.optionalInt("clicks"); err != nil {
				res.drop(rowFailure(row, "clicks", rec.get("clicks"), err))
				return
			}
		}
		if c.Spend < 0 || c.Conversions < 0 || c.Impressions < 0 || c.Clicks < 0 {
			res.drop(RowError{Row: row, Message: "campaign counters must not be negative"})
			return
		}
		if c.StartDate, err = rec.date("start_date"); err != nil {
			res.drop(rowFailure(row, "start_date", rec.get("start_date"), err))
			return
		}
		if c.EndDate, err = rec.date("end_date"); err != nil {
			res.drop(rowFailure(row, "end_date", rec.get("end_date"), err))
			return
		}
		if c.StartDate.After(c.EndDate) {
			res.drop(RowError{
				Row:     row,
				Field:   "end_date",
				Value:   c.EndDate.Format(time.DateOnly),
				Message: "start_date is after end_date",
			})
			return
		}

		res.keep(row, "campaign_id", c.CampaignID, c)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
