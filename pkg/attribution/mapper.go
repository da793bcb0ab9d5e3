// Package attribution links orders to the marketing campaigns that were running
// on the order date.
package attribution

import (
	"container/heap"
	"sort"
	"time"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// Map attributes every order to all campaigns whose window contains the order date.
//
// Windows are inclusive on both ends and compared on calendar dates. An order with
// several active campaigns fans out to one record per campaign; an order with none
// gets a single record with the NoCampaign sentinel. The result is deduplicated on
// (order_id, campaign_name) and sorted by those two fields.
func Map(orders []domain.Order, campaigns []domain.Campaign) []domain.AttributionRecord {
	if len(orders) == 0 {
		return []domain.AttributionRecord{}
	}

	byStart := make([]domain.Campaign, len(campaigns))
	copy(byStart, campaigns)
	sort.SliceStable(byStart, func(i, j int) bool {
		return domain.DateOnly(byStart[i].StartDate).Before(domain.DateOnly(byStart[j].StartDate))
	})

	idx := make([]int, len(orders))
	for i := range idx {
		idx[i] = i
	}
	// sort on the same calendar date the sweep compares against
	sort.SliceStable(idx, func(a, b int) bool {
		return domain.DateOnly(orders[idx[a]].OrderDate).Before(domain.DateOnly(orders[idx[b]].OrderDate))
	})

	seen := make(map[domain.AttributionRecord]struct{}, len(orders))
	records := make([]domain.AttributionRecord, 0, len(orders))
	add := func(rec domain.AttributionRecord) {
		if _, ok := seen[rec]; ok {
			return
		}
		seen[rec] = struct{}{}
		records = append(records, rec)
	}

	active := &endHeap{}
	next := 0
	for _, i := range idx {
		order := orders[i]
		date := domain.DateOnly(order.OrderDate)

		for next < len(byStart) && !domain.DateOnly(byStart[next].StartDate).After(date) {
			heap.Push(active, byStart[next])
			next++
		}
		for active.Len() > 0 && domain.DateOnly((*active)[0].EndDate).Before(date) {
			heap.Pop(active)
		}

		if active.Len() == 0 {
			add(domain.AttributionRecord{OrderID: order.OrderID, CampaignName: domain.NoCampaign})
			continue
		}
		for _, c := range *active {
			add(domain.AttributionRecord{OrderID: order.OrderID, CampaignName: c.CampaignName})
		}
	}

	Sort(records)
	return records
}

// Sort orders records by order id, then campaign name
func Sort(records []domain.AttributionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].OrderID != records[j].OrderID {
			return records[i].OrderID < records[j].OrderID
		}
		return records[i].CampaignName < records[j].CampaignName
	})
}

// endHeap is a min-heap of active campaigns keyed on end date
type endHeap []domain.Campaign

func (h endHeap) Len() int { return len(h) }

func (h endHeap) Less(i, j int) bool {
	return endOf(h[i]).Before(endOf(h[j]))
}

func (h endHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *endHeap) Push(x any) {
	*h = append(*h, x.(domain.Campaign))
}

func (h *endHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

func endOf(c domain.Campaign) time.Time {
	return domain.DateOnly(c.EndDate)
}
