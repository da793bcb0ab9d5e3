package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// replace deletes every row of table and inserts n new rows in one transaction
func (c *Client) replace(ctx context.Context, table string, columns []string, n int, row func(i int) []any) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	if n > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
		query := c.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders))

		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
		}
		defer stmt.Close()

		for i := 0; i < n; i++ {
			if _, err = stmt.ExecContext(ctx, row(i)...); err != nil {
				return fmt.Errorf("failed to insert row %d into %s: %w", i+1, table, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return nil
}

func dateArg(t time.Time) string {
	return domain.FormatDate(t)
}

func nullDateArg(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return domain.FormatDate(*t)
}

// ReplaceOrders overwrites the orders table
func (c *Client) ReplaceOrders(ctx context.Context, orders []domain.Order) error {
	cols := []string{"order_id", "customer_id", "product_id", "quantity", "total_price", "order_date"}
	return c.replace(ctx, TableOrders, cols, len(orders), func(i int) []any {
		o := orders[i]
		return []any{o.OrderID, o.CustomerID, o.ProductID, o.Quantity, o.TotalPrice, dateArg(o.OrderDate)}
	})
}

// ReplaceCustomers overwrites the customers table
func (c *Client) ReplaceCustomers(ctx context.Context, customers []domain.Customer) error {
	cols := []string{"customer_id", "name", "email", "segment", "signup_date", "last_order_date", "clv", "num_orders", "age"}
	return c.replace(ctx, TableCustomers, cols, len(customers), func(i int) []any {
		cu := customers[i]
		return []any{cu.CustomerID, cu.Name, cu.Email, string(cu.Segment), dateArg(cu.SignupDate),
			nullDateArg(cu.LastOrderDate), cu.CLV, cu.NumOrders, cu.Age}
	})
}

// ReplaceProducts overwrites the products table
func (c *Client) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	cols := []string{"product_id", "product_name", "category", "price", "stock"}
	return c.replace(ctx, TableProducts, cols, len(products), func(i int) []any {
		p := products[i]
		return []any{p.ProductID, p.ProductName, p.Category, p.Price, p.Stock}
	})
}

// ReplaceCampaigns overwrites the campaigns table
func (c *Client) ReplaceCampaigns(ctx context.Context, campaigns []domain.Campaign) error {
	cols := []string{"campaign_id", "campaign_name", "spend", "clicks", "conversions", "impressions", "start_date", "end_date"}
	return c.replace(ctx, TableCampaigns, cols, len(campaigns), func(i int) []any {
		m := campaigns[i]
		return []any{m.CampaignID, m.CampaignName, m.Spend, m.Clicks, m.Conversions, m.Impressions,
			dateArg(m.StartDate), dateArg(m.EndDate)}
	})
}

// ReplaceAttribution overwrites the sales_campaigns table
func (c *Client) ReplaceAttribution(ctx context.Context, records []domain.AttributionRecord) error {
	cols := []string{"order_id", "campaign_name"}
	return c.replace(ctx, TableSalesCampaigns, cols, len(records), func(i int) []any {
		return []any{records[i].OrderID, records[i].CampaignName}
	})
}

// ListOrders returns all orders sorted by date then id
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT order_id, customer_id, product_id, quantity, total_price, order_date
		 FROM orders ORDER BY order_date, order_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.OrderID, &o.CustomerID, &o.ProductID, &o.Quantity, &o.TotalPrice, &o.OrderDate); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.OrderDate = domain.DateOnly(o.OrderDate)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListCustomers returns all customers sorted by id
func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT customer_id, name, email, segment, signup_date, last_order_date, clv, num_orders, age
		 FROM customers ORDER BY customer_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []domain.Customer{}
	for rows.Next() {
		var cu domain.Customer
		var segment string
		var lastOrder sql.NullTime
		if err := rows.Scan(&cu.CustomerID, &cu.Name, &cu.Email, &segment, &cu.SignupDate, &lastOrder,
			&cu.CLV, &cu.NumOrders, &cu.Age); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		cu.Segment = domain.Segment(segment)
		cu.SignupDate = domain.DateOnly(cu.SignupDate)
		if lastOrder.Valid {
			d := domain.DateOnly(lastOrder.Time)
			cu.LastOrderDate = &d
		}
		customers = append(customers, cu)
	}
	return customers, rows.Err()
}

// ListProducts returns all products sorted by id
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT product_id, product_name, category, price, stock FROM products ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.Category, &p.Price, &p.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListCampaigns returns all campaigns sorted by start date then id
func (c *Client) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT campaign_id, campaign_name, spend, clicks, conversions, impressions, start_date, end_date
		 FROM campaigns ORDER BY start_date, campaign_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []domain.Campaign{}
	for rows.Next() {
		var m domain.Campaign
		if err := rows.Scan(&m.CampaignID, &m.CampaignName, &m.Spend, &m.Clicks, &m.Conversions, &m.Impressions,
			&m.StartDate, &m.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		m.StartDate = domain.DateOnly(m.StartDate)
		m.EndDate = domain.DateOnly(m.EndDate)
		campaigns = append(campaigns, m)
	}
	return campaigns, rows.Err()
}

// ListAttribution returns the attribution table, or nil when it has never been populated
func (c *Client) ListAttribution(ctx context.Context) ([]domain.AttributionRecord, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT order_id, campaign_name FROM sales_campaigns ORDER BY order_id, campaign_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales_campaigns: %w", err)
	}
	defer rows.Close()

	var records []domain.AttributionRecord
	for rows.Next() {
		var rec domain.AttributionRecord
		if err := rows.Scan(&rec.OrderID, &rec.CampaignName); err != nil {
			return nil, fmt.Errorf("failed to scan attribution record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadSnapshot reads every table into memory.
// Attribution is nil when the sales_campaigns table is empty.
func (c *Client) LoadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	var (
		snap domain.Snapshot
		err  error
	)
	if snap.Orders, err = c.ListOrders(ctx); err != nil {
		return nil, err
	}
	if snap.Customers, err = c.ListCustomers(ctx); err != nil {
		return nil, err
	}
	if snap.Products, err = c.ListProducts(ctx); err != nil {
		return nil, err
	}
	if snap.Campaigns, err = c.ListCampaigns(ctx); err != nil {
		return nil, err
	}
	if snap.Attribution, err = c.ListAttribution(ctx); err != nil {
		return nil, err
	}
	return &snap, nil
}
