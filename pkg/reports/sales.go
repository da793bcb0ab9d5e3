// Package reports builds chart-ready aggregates over a snapshot and a filtered
// order list.
package reports

import (
	"math"
	"sort"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// Summary holds the headline numbers of a filtered order set
type Summary struct {
	TotalSales   float64 `json:"total_sales"`
	TotalOrders  int     `json:"total_orders"`
	AverageOrder float64 `json:"average_order_value"`
	// AOVUndefined is set when there are no orders to average
	AOVUndefined bool `json:"aov_undefined"`
}

// Summarize totals sales, counts distinct orders and averages order value.
// The average is taken over order rows, matching the KPI definition.
func Summarize(orders []domain.Order) Summary {
	var s Summary
	distinct := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		s.TotalSales += o.TotalPrice
		distinct[o.OrderID] = struct{}{}
	}
	s.TotalOrders = len(distinct)
	if len(orders) == 0 {
		s.AOVUndefined = true
	} else {
		s.AverageOrder = round2(s.TotalSales / float64(len(orders)))
	}
	s.TotalSales = round2(s.TotalSales)
	return s
}

// MonthlyPoint is the sales total of one YYYY-MM period
type MonthlyPoint struct {
	Month string  `json:"month"`
	Sales float64 `json:"sales"`
}

// MonthlyTrend sums sales per calendar month, sorted chronologically
func MonthlyTrend(orders []domain.Order) []MonthlyPoint {
	byMonth := make(map[string]float64)
	for _, o := range orders {
		byMonth[o.YearMonth()] += o.TotalPrice
	}

	points := make([]MonthlyPoint, 0, len(byMonth))
	for month, sales := range byMonth {
		points = append(points, MonthlyPoint{Month: month, Sales: round2(sales)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Month < points[j].Month })
	return points
}

// ProductStat is revenue and quantity sold for one product
type ProductStat struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Revenue     float64 `json:"revenue"`
	Quantity    int     `json:"quantity"`
}

// ProductPerformance aggregates orders per product, highest revenue first.
// Orders for products missing from the catalog are left out.
func ProductPerformance(orders []domain.Order, products []domain.Product) []ProductStat {
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ProductID] = p.ProductName
	}

	byID := make(map[string]*ProductStat)
	for _, o := range orders {
		name, ok := names[o.ProductID]
		if !ok {
			continue
		}
		st, ok := byID[o.ProductID]
		if !ok {
			st = &ProductStat{ProductID: o.ProductID, ProductName: name}
			byID[o.ProductID] = st
		}
		st.Revenue += o.TotalPrice
		st.Quantity += o.Quantity
	}

	stats := make([]ProductStat, 0, len(byID))
	for _, st := range byID {
		st.Revenue = round2(st.Revenue)
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Revenue != stats[j].Revenue {
			return stats[i].Revenue > stats[j].Revenue
		}
		return stats[i].ProductName < stats[j].ProductName
	})
	return stats
}

// SegmentCount is the number of customers in a segment
type SegmentCount struct {
	Segment string `json:"segment"`
	Count   int    `json:"count"`
}

// SegmentDistribution counts customers per segment. Known tiers come first in
// Premium, Standard, Basic order; unknown labels follow alphabetically.
func SegmentDistribution(customers []domain.Customer) []SegmentCount {
	counts := make(map[string]int)
	for _, c := range customers {
		counts[string(c.Segment)]++
	}

	out := make([]SegmentCount, 0, len(counts))
	for _, seg := range domain.Segments {
		if n, ok := counts[string(seg)]; ok {
			out = append(out, SegmentCount{Segment: string(seg), Count: n})
			delete(counts, string(seg))
		}
	}
	var rest []string
	for seg := range counts {
		rest = append(rest, seg)
	}
	sort.Strings(rest)
	for _, seg := range rest {
		out = append(out, SegmentCount{Segment: seg, Count: counts[seg]})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
