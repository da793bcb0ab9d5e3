// Package filter narrows the order table by date range, product, customer
// segment and campaign.
package filter

import (
	"sort"
	"time"

	"github.com/jordanlanch/commercebi/pkg/attribution"
	"github.com/jordanlanch/commercebi/pkg/domain"
)

// WarningCampaignFilterSkipped is attached to results when a campaign filter
// could not be applied because no attribution table is available.
const WarningCampaignFilterSkipped = "campaign filter skipped: attribution table unavailable"

// DateRange is an inclusive calendar-date range. A zero bound is unset.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Active reports whether the range restricts anything. Only a range with
// both bounds set applies; a half-open range is ignored.
func (r DateRange) Active() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// Validate rejects a range whose start is after its end
func (r DateRange) Validate() error {
	if r.Active() && domain.DateOnly(r.Start).After(domain.DateOnly(r.End)) {
		return domain.NewInvalidRangeError(domain.FormatDate(r.Start), domain.FormatDate(r.End))
	}
	return nil
}

func (r DateRange) contains(t time.Time) bool {
	d := domain.DateOnly(t)
	return !d.Before(domain.DateOnly(r.Start)) && !d.After(domain.DateOnly(r.End))
}

// Criteria selects orders. Every active criterion must match.
// Products are matched on product name; an empty set or one containing "All" is unrestricted.
type Criteria struct {
	DateRange DateRange
	Products  []string
	Segments  []string
	Campaigns []string
}

// Validate checks the criteria before any filtering happens
func (c Criteria) Validate() error {
	return c.DateRange.Validate()
}

// Result is the filtered order list plus any degradations that occurred
type Result struct {
	Orders   []domain.Order `json:"orders"`
	Warnings []string       `json:"warnings"`
}

// restricted reports whether a selection set narrows its dimension
func restricted(values []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if v == domain.FilterAll {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

// Apply returns the orders of snap matching c, preserving input order.
func Apply(snap *domain.Snapshot, c Criteria) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Orders: []domain.Order{}, Warnings: []string{}}

	var productIDs, customerIDs, orderIDs map[string]struct{}

	if restricted(c.Products) {
		names := toSet(c.Products)
		productIDs = make(map[string]struct{})
		for _, p := range snap.Products {
			if _, ok := names[p.ProductName]; ok {
				productIDs[p.ProductID] = struct{}{}
			}
		}
	}

	if restricted(c.Segments) {
		segments := toSet(c.Segments)
		customerIDs = make(map[string]struct{})
		for _, cu := range snap.Customers {
			if _, ok := segments[string(cu.Segment)]; ok {
				customerIDs[cu.CustomerID] = struct{}{}
			}
		}
	}

	if restricted(c.Campaigns) {
		if snap.Attribution == nil {
			res.Warnings = append(res.Warnings, WarningCampaignFilterSkipped)
		} else {
			orderIDs = attribution.OrdersForCampaigns(snap.Attribution, c.Campaigns)
		}
	}

	for _, o := range snap.Orders {
		if c.DateRange.Active() && !c.DateRange.contains(o.OrderDate) {
			continue
		}
		if productIDs != nil {
			if _, ok := productIDs[o.ProductID]; !ok {
				continue
			}
		}
		if customerIDs != nil {
			if _, ok := customerIDs[o.CustomerID]; !ok {
				continue
			}
		}
		if orderIDs != nil {
			if _, ok := orderIDs[o.OrderID]; !ok {
				continue
			}
		}
		res.Orders = append(res.Orders, o)
	}

	return res, nil
}

// Options lists the selectable values of each filter dimension, each prefixed with "All"
type Options struct {
	Products  []string `json:"products"`
	Segments  []string `json:"segments"`
	Campaigns []string `json:"campaigns"`
	MinDate   string   `json:"min_date,omitempty"`
	MaxDate   string   `json:"max_date,omitempty"`
}

func withAll(set map[string]struct{}) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		if v != "" {
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return append([]string{domain.FilterAll}, values...)
}

// BuildOptions collects the filter values available in snap
func BuildOptions(snap *domain.Snapshot) Options {
	products := make(map[string]struct{}, len(snap.Products))
	for _, p := range snap.Products {
		products[p.ProductName] = struct{}{}
	}
	segments := make(map[string]struct{}, len(domain.Segments))
	for _, cu := range snap.Customers {
		segments[string(cu.Segment)] = struct{}{}
	}
	campaigns := make(map[string]struct{}, len(snap.Campaigns))
	for _, m := range snap.Campaigns {
		campaigns[m.CampaignName] = struct{}{}
	}

	opts := Options{
		Products:  withAll(products),
		Segments:  withAll(segments),
		Campaigns: withAll(campaigns),
	}

	var minDate, maxDate time.Time
	for _, o := range snap.Orders {
		if minDate.IsZero() || o.OrderDate.Before(minDate) {
			minDate = o.OrderDate
		}
		if o.OrderDate.After(maxDate) {
			maxDate = o.OrderDate
		}
	}
	opts.MinDate = domain.FormatDate(minDate)
	opts.MaxDate = domain.FormatDate(maxDate)
	return opts
}
