package kpi

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

const (
	queryTotalSpend = `SELECT COALESCE(SUM(spend), 0) FROM campaigns`

	queryNewCustomers = `SELECT COUNT(*) FROM customers WHERE signup_date >= ?`

	queryOrderValue = `SELECT COUNT(*), COALESCE(AVG(total_price), 0) FROM orders`

	queryOrdersPerCustomer = `
		SELECT COALESCE(AVG(order_count), 0)
		FROM (
			SELECT COUNT(*) AS order_count
			FROM orders
			GROUP BY customer_id
		) AS per_customer`

	queryConversions = `SELECT COALESCE(SUM(conversions), 0), COALESCE(SUM(clicks), 0) FROM campaigns`

	querySalesBetween = `
		SELECT COALESCE(SUM(total_price), 0)
		FROM orders
		WHERE order_date >= ? AND order_date < ?`
)

func (s *Service) scalar(ctx context.Context, query string, args []any, dest ...any) error {
	if err := s.db.DB.QueryRowContext(ctx, s.db.Rebind(query), args...).Scan(dest...); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return nil
}

// cac is total campaign spend per customer who signed up on or after the cutoff
func (s *Service) cac(ctx context.Context, p Params) (float64, bool, error) {
	var spend float64
	if err := s.scalar(ctx, queryTotalSpend, nil, &spend); err != nil {
		return 0, false, err
	}
	var newCustomers int64
	if err := s.scalar(ctx, queryNewCustomers, []any{domain.FormatDate(p.CACCutoff)}, &newCustomers); err != nil {
		return 0, false, err
	}
	if newCustomers == 0 {
		return 0, true, nil
	}
	return spend / float64(newCustomers), false, nil
}

// clv is average order value times average orders per ordering customer
func (s *Service) clv(ctx context.Context, _ Params) (float64, bool, error) {
	var count int64
	var avgOrder float64
	if err := s.scalar(ctx, queryOrderValue, nil, &count, &avgOrder); err != nil {
		return 0, false, err
	}
	if count == 0 {
		return 0, true, nil
	}
	var avgOrders float64
	if err := s.scalar(ctx, queryOrdersPerCustomer, nil, &avgOrders); err != nil {
		return 0, false, err
	}
	return avgOrder * avgOrders, false, nil
}

func (s *Service) conversionRate(ctx context.Context, _ Params) (float64, bool, error) {
	var conversions, clicks float64
	if err := s.scalar(ctx, queryConversions, nil, &conversions, &clicks); err != nil {
		return 0, false, err
	}
	if clicks == 0 {
		return 0, true, nil
	}
	return conversions / clicks * 100, false, nil
}

func (s *Service) salesGrowth(ctx context.Context, p Params) (float64, bool, error) {
	current, err := s.salesInYear(ctx, p.GrowthYear)
	if err != nil {
		return 0, false, err
	}
	previous, err := s.salesInYear(ctx, p.GrowthYear-1)
	if err != nil {
		return 0, false, err
	}
	if previous == 0 {
		return 0, true, nil
	}
	return (current - previous) / previous * 100, false, nil
}

func (s *Service) salesInYear(ctx context.Context, year int) (float64, error) {
	from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	var total float64
	err := s.scalar(ctx, querySalesBetween, []any{domain.FormatDate(from), domain.FormatDate(to)}, &total)
	return total, err
}

func (s *Service) aov(ctx context.Context, _ Params) (float64, bool, error) {
	var count int64
	var avg float64
	if err := s.scalar(ctx, queryOrderValue, nil, &count, &avg); err != nil {
		return 0, false, err
	}
	if count == 0 {
		return 0, true, nil
	}
	return avg, false, nil
}
