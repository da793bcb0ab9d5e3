package reports

import (
	"sort"

	"github.com/jordanlanch/commercebi/pkg/attribution"
	"github.com/jordanlanch/commercebi/pkg/domain"
)

// WarningDrillDownDisabled is attached when drill-down has no attribution table to read
const WarningDrillDownDisabled = "attribution table unavailable: campaign drill-down disabled"

// CampaignStat is one campaign row with its ROI
type CampaignStat struct {
	CampaignID   string  `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	Spend        float64 `json:"spend"`
	Clicks       int     `json:"clicks"`
	Conversions  int     `json:"conversions"`
	Impressions  int     `json:"impressions"`
	ROI          float64 `json:"roi"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
}

func campaignStat(c domain.Campaign) CampaignStat {
	return CampaignStat{
		CampaignID:   c.CampaignID,
		CampaignName: c.CampaignName,
		Spend:        c.Spend,
		Clicks:       c.Clicks,
		Conversions:  c.Conversions,
		Impressions:  c.Impressions,
		ROI:          round2(c.ROI()),
		StartDate:    domain.FormatDate(c.StartDate),
		EndDate:      domain.FormatDate(c.EndDate),
	}
}

// CampaignPerformance lists spend, conversions and ROI for every campaign by start date
func CampaignPerformance(campaigns []domain.Campaign) []CampaignStat {
	sorted := make([]domain.Campaign, len(campaigns))
	copy(sorted, campaigns)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].StartDate.Equal(sorted[j].StartDate) {
			return sorted[i].StartDate.Before(sorted[j].StartDate)
		}
		return sorted[i].CampaignID < sorted[j].CampaignID
	})

	out := make([]CampaignStat, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, campaignStat(c))
	}
	return out
}

// DrillDown is one campaign name's rows and the filtered orders attributed to it
type DrillDown struct {
	CampaignName string         `json:"campaign_name"`
	Campaigns    []CampaignStat `json:"campaigns"`
	Orders       []domain.Order `json:"orders"`
	Summary      Summary        `json:"summary"`
	Warnings     []string       `json:"warnings"`
}

// CampaignDrillDown returns every campaign row sharing name and the orders from
// filtered attributed to it. Without an attribution table no orders are returned
// and a warning explains why. An unknown name that never appears in attribution
// is a not-found error.
func CampaignDrillDown(snap *domain.Snapshot, filtered []domain.Order, name string) (*DrillDown, error) {
	dd := &DrillDown{
		CampaignName: name,
		Campaigns:    []CampaignStat{},
		Orders:       []domain.Order{},
		Warnings:     []string{},
	}
	for _, c := range CampaignPerformance(snap.Campaigns) {
		if c.CampaignName == name {
			dd.Campaigns = append(dd.Campaigns, c)
		}
	}

	if snap.Attribution == nil {
		if len(dd.Campaigns) == 0 {
			return nil, domain.NewNotFoundError("campaign " + name)
		}
		dd.Warnings = append(dd.Warnings, WarningDrillDownDisabled)
		dd.Summary = Summarize(nil)
		return dd, nil
	}

	orderIDs := attribution.OrdersForCampaigns(snap.Attribution, []string{name})
	if len(dd.Campaigns) == 0 && len(orderIDs) == 0 {
		return nil, domain.NewNotFoundError("campaign " + name)
	}
	for _, o := range filtered {
		if _, ok := orderIDs[o.OrderID]; ok {
			dd.Orders = append(dd.Orders, o)
		}
	}
	dd.Summary = Summarize(dd.Orders)
	return dd, nil
}
