package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

func d(s string) time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return t
}

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Orders: []domain.Order{
			{OrderID: "1", CustomerID: "C1", ProductID: "P1", Quantity: 1, TotalPrice: 24.99, OrderDate: d("2024-01-05")},
			{OrderID: "2", CustomerID: "C2", ProductID: "P2", Quantity: 2, TotalPrice: 39.98, OrderDate: d("2024-02-10")},
			{OrderID: "3", CustomerID: "C1", ProductID: "P2", Quantity: 1, TotalPrice: 19.99, OrderDate: d("2024-03-15")},
			{OrderID: "4", CustomerID: "C3", ProductID: "P1", Quantity: 3, TotalPrice: 74.97, OrderDate: d("2024-03-31")},
		},
		Customers: []domain.Customer{
			{CustomerID: "C1", Segment: domain.SegmentPremium},
			{CustomerID: "C2", Segment: domain.SegmentBasic},
			{CustomerID: "C3", Segment: domain.SegmentStandard},
		},
		Products: []domain.Product{
			{ProductID: "P1", ProductName: "Wireless Mouse"},
			{ProductID: "P2", ProductName: "Gaming Keyboard"},
		},
		Campaigns: []domain.Campaign{
			{CampaignID: "M1", CampaignName: "Spring Sale", StartDate: d("2024-03-01"), EndDate: d("2024-03-31")},
			{CampaignID: "M2", CampaignName: "New Year Blast", StartDate: d("2024-01-01"), EndDate: d("2024-01-10")},
		},
		Attribution: []domain.AttributionRecord{
			{OrderID: "1", CampaignName: "New Year Blast"},
			{OrderID: "2", CampaignName: domain.NoCampaign},
			{OrderID: "3", CampaignName: "Spring Sale"},
			{OrderID: "4", CampaignName: "Spring Sale"},
		},
	}
}

func ids(orders []domain.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.OrderID)
	}
	return out
}

func TestApply(t *testing.T) {
	snap := testSnapshot()

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{
			name:     "No criteria keeps everything in order",
			criteria: Criteria{},
			want:     []string{"1", "2", "3", "4"},
		},
		{
			name:     "All sentinel is unrestricted",
			criteria: Criteria{Products: []string{"All"}, Segments: []string{"Premium", "All"}, Campaigns: []string{"All"}},
			want:     []string{"1", "2", "3", "4"},
		},
		{
			name:     "Date range is inclusive on both ends",
			criteria: Criteria{DateRange: DateRange{Start: d("2024-02-10"), End: d("2024-03-31")}},
			want:     []string{"2", "3", "4"},
		},
		{
			name:     "Half-open range applies no date restriction",
			criteria: Criteria{DateRange: DateRange{Start: d("2024-03-01")}},
			want:     []string{"1", "2", "3", "4"},
		},
		{
			name:     "Product names resolve to product ids",
			criteria: Criteria{Products: []string{"Wireless Mouse"}},
			want:     []string{"1", "4"},
		},
		{
			name:     "Segments resolve to customer ids",
			criteria: Criteria{Segments: []string{"Premium"}},
			want:     []string{"1", "3"},
		},
		{
			name:     "Campaigns resolve through attribution",
			criteria: Criteria{Campaigns: []string{"Spring Sale"}},
			want:     []string{"3", "4"},
		},
		{
			name:     "No Campaign is selectable",
			criteria: Criteria{Campaigns: []string{domain.NoCampaign}},
			want:     []string{"2"},
		},
		{
			name: "Filters combine as a conjunction",
			criteria: Criteria{
				DateRange: DateRange{Start: d("2024-03-01"), End: d("2024-03-31")},
				Products:  []string{"Gaming Keyboard"},
				Segments:  []string{"Premium"},
				Campaigns: []string{"Spring Sale"},
			},
			want: []string{"3"},
		},
		{
			name:     "Unknown product matches nothing",
			criteria: Criteria{Products: []string{"Flux Capacitor"}},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Apply(snap, tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res.Orders))
			assert.Empty(t, res.Warnings)
		})
	}
}

func TestApply_InvalidRange(t *testing.T) {
	_, err := Apply(testSnapshot(), Criteria{DateRange: DateRange{Start: d("2024-03-01"), End: d("2024-01-01")}})
	require.Error(t, err)
	assert.True(t, domain.IsInvalidRange(err))
}

func TestApply_MissingAttributionDegrades(t *testing.T) {
	snap := testSnapshot()
	snap.Attribution = nil

	res, err := Apply(snap, Criteria{Campaigns: []string{"Spring Sale"}, Segments: []string{"Premium"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "3"}, ids(res.Orders))
	assert.Equal(t, []string{WarningCampaignFilterSkipped}, res.Warnings)
}

func TestApply_EmptyAttributionIsNotMissing(t *testing.T) {
	snap := testSnapshot()
	snap.Attribution = []domain.AttributionRecord{}

	res, err := Apply(snap, Criteria{Campaigns: []string{"Spring Sale"}})
	require.NoError(t, err)
	assert.Empty(t, res.Orders)
	assert.Empty(t, res.Warnings)
}

func TestBuildOptions(t *testing.T) {
	opts := BuildOptions(testSnapshot())

	assert.Equal(t, []string{"All", "Gaming Keyboard", "Wireless Mouse"}, opts.Products)
	assert.Equal(t, []string{"All", "Basic", "Premium", "Standard"}, opts.Segments)
	assert.Equal(t, []string{"All", "New Year Blast", "Spring Sale"}, opts.Campaigns)
	assert.Equal(t, "2024-01-05", opts.MinDate)
	assert.Equal(t, "2024-03-31", opts.MaxDate)
}

func TestBuildOptions_EmptySnapshot(t *testing.T) {
	opts := BuildOptions(&domain.Snapshot{})

	assert.Equal(t, []string{"All"}, opts.Products)
	assert.Empty(t, opts.MinDate)
}
