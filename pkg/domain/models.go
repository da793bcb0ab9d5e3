package domain

import (
	"time"
)

// DateLayout is the calendar-date format used in files, queries and API parameters
const DateLayout = "2006-01-02"

// NoCampaign is the attribution sentinel for orders placed outside every campaign window
const NoCampaign = "No Campaign"

// FilterAll is the filter value meaning "no restriction on this dimension"
const FilterAll = "All"

// Segment is a customer tier label
type Segment string

const (
	SegmentPremium  Segment = "Premium"
	SegmentStandard Segment = "Standard"
	SegmentBasic    Segment = "Basic"
)

// Segments lists the known tiers from highest to lowest
var Segments = []Segment{SegmentPremium, SegmentStandard, SegmentBasic}

// AssignSegment applies the fixed CLV / order-count thresholds
func AssignSegment(clv float64, numOrders int) Segment {
	switch {
	case clv >= 300 && numOrders >= 10:
		return SegmentPremium
	case clv >= 150 && clv < 300 && numOrders >= 5 && numOrders < 10:
		return SegmentStandard
	default:
		return SegmentBasic
	}
}

// Order is one purchase event
type Order struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	OrderDate  time.Time `json:"order_date"`
}

// Month returns the order's calendar month (1-12)
func (o Order) Month() int {
	return int(o.OrderDate.Month())
}

// Year returns the order's calendar year
func (o Order) Year() int {
	return o.OrderDate.Year()
}

// YearMonth returns the order's period key in YYYY-MM form
func (o Order) YearMonth() string {
	return o.OrderDate.Format("2006-01")
}

// Customer is a buyer with a precomputed segment
type Customer struct {
	CustomerID    string     `json:"customer_id"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	Segment       Segment    `json:"segment"`
	SignupDate    time.Time  `json:"signup_date"`
	LastOrderDate *time.Time `json:"last_order_date,omitempty"`
	CLV           float64    `json:"clv"`
	NumOrders     int        `json:"num_orders"`
	Age           int        `json:"age,omitempty"`
}

// Product is a catalog item
type Product struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// Campaign is a marketing campaign active on [StartDate, EndDate], both inclusive
type Campaign struct {
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	Spend        float64   `json:"spend"`
	Clicks       int       `json:"clicks"`
	Conversions  int       `json:"conversions"`
	Impressions  int       `json:"impressions"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// Active reports whether the campaign window covers the given calendar date
func (c Campaign) Active(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(c.StartDate)) && !d.After(DateOnly(c.EndDate))
}

// ROI returns conversions per unit of spend as a percentage; 0 when spend is 0
func (c Campaign) ROI() float64 {
	if c.Spend == 0 {
		return 0
	}
	return float64(c.Conversions) / c.Spend * 100
}

// AttributionRecord links an order to one campaign it is attributed to
type AttributionRecord struct {
	OrderID      string `json:"order_id"`
	CampaignName string `json:"campaign_name"`
}

// Snapshot is an immutable view of all loaded tables.
// Attribution is nil when the attribution table is unavailable.
type Snapshot struct {
	Orders      []Order
	Customers   []Customer
	Products    []Product
	Campaigns   []Campaign
	Attribution []AttributionRecord
}

// DateOnly truncates a time to midnight UTC of its calendar date
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date as YYYY-MM-DD, or "" for the zero time
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
