package attribution

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// TableName is the stable file name the attribution table is published under
const TableName = "sales_marketing.csv"

var header = []string{"order_id", "campaign_name"}

// WriteTable writes records as a two-column CSV
func WriteTable(w io.Writer, records []domain.AttributionRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write attribution header: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write([]string{rec.OrderID, rec.CampaignName}); err != nil {
			return fmt.Errorf("failed to write attribution row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadTable reads an attribution CSV. Rows with an empty field are skipped.
func ReadTable(r io.Reader) ([]domain.AttributionRecord, error) {
	csvReader := csv.NewReader(r)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, domain.NewSchemaViolationError("sales_campaigns", header[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attribution header: %w", err)
	}

	cols := make(map[string]int, len(headers))
	for i, h := range headers {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, field := range header {
		if _, ok := cols[field]; !ok {
			return nil, domain.NewSchemaViolationError("sales_campaigns", field)
		}
	}
	orderIdx, nameIdx := cols["order_id"], cols["campaign_name"]

	records := []domain.AttributionRecord{}
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read attribution row: %w", err)
		}
		if orderIdx >= len(row) || nameIdx >= len(row) {
			continue
		}
		rec := domain.AttributionRecord{
			OrderID:      strings.TrimSpace(row[orderIdx]),
			CampaignName: strings.TrimSpace(row[nameIdx]),
		}
		if rec.OrderID == "" || rec.CampaignName == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// OrdersForCampaigns returns the set of order ids attributed to any of the named campaigns
func OrdersForCampaigns(records []domain.AttributionRecord, names []string) map[string]struct{} {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	out := make(map[string]struct{})
	for _, rec := range records {
		if _, ok := wanted[rec.CampaignName]; ok {
			out[rec.OrderID] = struct{}{}
		}
	}
	return out
}

// CampaignStat counts attributed orders for one campaign name
type CampaignStat struct {
	CampaignName string `json:"campaign_name"`
	Orders       int    `json:"orders"`
}

// Summary describes an attribution table
type Summary struct {
	Records      int            `json:"records"`
	Orders       int            `json:"orders"`
	Attributed   int            `json:"attributed_orders"`
	Unattributed int            `json:"unattributed_orders"`
	Campaigns    []CampaignStat `json:"campaigns"`
}

// Stats counts attributed and unattributed orders and orders per campaign.
// Campaigns are listed by descending order count, then name.
func Stats(records []domain.AttributionRecord) Summary {
	perCampaign := make(map[string]int)
	orders := make(map[string]bool)
	for _, rec := range records {
		perCampaign[rec.CampaignName]++
		if rec.CampaignName != domain.NoCampaign {
			orders[rec.OrderID] = true
		} else if _, ok := orders[rec.OrderID]; !ok {
			orders[rec.OrderID] = false
		}
	}

	s := Summary{Records: len(records), Orders: len(orders)}
	for _, attributed := range orders {
		if attributed {
			s.Attributed++
		} else {
			s.Unattributed++
		}
	}

	for name, n := range perCampaign {
		if name == domain.NoCampaign {
			continue
		}
		s.Campaigns = append(s.Campaigns, CampaignStat{CampaignName: name, Orders: n})
	}
	sort.Slice(s.Campaigns, func(i, j int) bool {
		if s.Campaigns[i].Orders != s.Campaigns[j].Orders {
			return s.Campaigns[i].Orders > s.Campaigns[j].Orders
		}
		return s.Campaigns[i].CampaignName < s.Campaigns[j].CampaignName
	})
	return s
}
