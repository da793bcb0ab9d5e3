// Package testdata generates realistic raw extracts for local runs and tests.
package testdata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/jordanlanch/commercebi/pkg/domain"
	"github.com/jordanlanch/commercebi/pkg/ingest"
)

// GeneratorConfig configures dataset generation
type GeneratorConfig struct {
	Seed      int64
	Customers int
	Orders    int
	Campaigns int
	// Reference is the "today" of the generated data
	Reference time.Time
	// LastOrderCutoff bounds order dates
	LastOrderCutoff time.Time
	// CampaignCutoff bounds campaign end dates
	CampaignCutoff time.Time
}

// DefaultConfig mirrors the sizes of the demo dataset
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:            42,
		Customers:       200,
		Orders:          200,
		Campaigns:       20,
		Reference:       time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		LastOrderCutoff: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		CampaignCutoff:  time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Products is the fixed catalogue
var Products = []domain.Product{
	{ProductID: "P001", ProductName: "Wireless Mouse", Category: "Electronics", Price: 24.99, Stock: 150},
	{ProductID: "P002", ProductName: "Gaming Keyboard", Category: "Electronics", Price: 19.99, Stock: 80},
	{ProductID: "P003", ProductName: "Noise-Cancelling Headphones", Category: "Audio", Price: 39.99, Stock: 60},
	{ProductID: "P004", ProductName: "USB-C Charger", Category: "Accessories", Price: 19.99, Stock: 200},
	{ProductID: "P005", ProductName: "Portable SSD 1TB", Category: "Storage", Price: 59.99, Stock: 100},
}

var campaignNames = []string{
	"Spring Sale", "Summer Promotion", "Black Friday", "Holiday Discounts",
	"New Year Blast", "Cyber Monday", "Back to School", "Winter Clearance",
	"Flash Sale", "Exclusive Offer",
}

// Dataset is one generated set of raw tables
type Dataset struct {
	Orders    []domain.Order
	Customers []domain.Customer
	Products  []domain.Product
	Campaigns []domain.Campaign
}

// Generator produces deterministic datasets for a given seed
type Generator struct {
	cfg   GeneratorConfig
	faker *gofakeit.Faker
}

// NewGenerator creates a generator
func NewGenerator(cfg GeneratorConfig) *Generator {
	return &Generator{cfg: cfg, faker: gofakeit.New(cfg.Seed)}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// Generate builds customers, orders, products and campaigns
func (g *Generator) Generate() *Dataset {
	customers := g.customers()
	return &Dataset{
		Customers: customers,
		Orders:    g.orders(customers),
		Products:  append([]domain.Product(nil), Products...),
		Campaigns: g.campaigns(),
	}
}

func (g *Generator) customers() []domain.Customer {
	f := g.faker
	ref := g.cfg.Reference
	out := make([]domain.Customer, 0, g.cfg.Customers)

	for i := 1; i <= g.cfg.Customers; i++ {
		signup := domain.DateOnly(f.DateRange(ref.AddDate(-2, 0, 0), ref))
		lastOrder := domain.DateOnly(f.DateRange(signup, ref))
		numOrders := f.Number(1, 20)
		clv := round2(f.Float64Range(20, 500))

		out = append(out, domain.Customer{
			CustomerID:    fmt.Sprintf("C%03d", i),
			Name:          f.Name(),
			Email:         f.Email(),
			SignupDate:    signup,
			LastOrderDate: &lastOrder,
			NumOrders:     numOrders,
			CLV:           clv,
			Age:           f.Number(18, 65),
			Segment:       domain.AssignSegment(clv, numOrders),
		})
	}
	return out
}

func (g *Generator) orders(customers []domain.Customer) []domain.Order {
	f := g.faker
	out := make([]domain.Order, 0, g.cfg.Orders)
	if len(customers) == 0 {
		return out
	}

	for i := 1; i <= g.cfg.Orders; i++ {
		customer := customers[f.Number(0, len(customers)-1)]
		product := Products[f.Number(0, len(Products)-1)]
		quantity := f.Number(1, 5)

		start := customer.SignupDate
		if start.After(g.cfg.LastOrderCutoff) {
			start = g.cfg.LastOrderCutoff
		}

		out = append(out, domain.Order{
			OrderID:    fmt.Sprintf("%d", 1000+i),
			CustomerID: customer.CustomerID,
			ProductID:  product.ProductID,
			Quantity:   quantity,
			TotalPrice: round2(float64(quantity) * product.Price),
			OrderDate:  domain.DateOnly(f.DateRange(start, g.cfg.LastOrderCutoff)),
		})
	}
	return out
}

func (g *Generator) campaigns() []domain.Campaign {
	f := g.faker
	ref := g.cfg.Reference
	out := make([]domain.Campaign, 0, g.cfg.Campaigns)

	for i := 1; i <= g.cfg.Campaigns; i++ {
		spend := round2(f.Float64Range(1000, 20000))
		conversions := int(spend / f.Float64Range(20, 50))
		start := domain.DateOnly(f.DateRange(ref.AddDate(-1, 0, 0), ref))
		end := start.AddDate(0, 0, f.Number(7, 30))
		if end.After(g.cfg.CampaignCutoff) {
			end = g.cfg.CampaignCutoff
		}

		out = append(out, domain.Campaign{
			CampaignID:   fmt.Sprintf("M%03d", i),
			CampaignName: f.RandomString(campaignNames),
			Spend:        spend,
			Clicks:       conversions * f.Number(5, 15),
			Conversions:  conversions,
			Impressions:  f.Number(10000, 100000),
			StartDate:    start,
			EndDate:      end,
		})
	}
	return out
}

// WriteRaw writes the dataset as raw extract files into dir
func (d *Dataset) WriteRaw(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	writers := map[string]func(f *os.File) error{
		ingest.TableOrders:    func(f *os.File) error { return ingest.WriteOrders(f, d.Orders) },
		ingest.TableCustomers: func(f *os.File) error { return ingest.WriteCustomers(f, d.Customers) },
		ingest.TableProducts:  func(f *os.File) error { return ingest.WriteProducts(f, d.Products) },
		ingest.TableCampaigns: func(f *os.File) error { return ingest.WriteCampaigns(f, d.Campaigns) },
	}

	for table, write := range writers {
		path := filepath.Join(dir, ingest.RawFiles[table])
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := write(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", path, err)
		}
	}
	return nil
}
