// Package pipeline runs the batch flow: clean raw extracts, load the store,
// attribute orders to campaigns, publish the attribution table and refresh KPIs.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jordanlanch/commercebi/pkg/attribution"
	"github.com/jordanlanch/commercebi/pkg/cache"
	"github.com/jordanlanch/commercebi/pkg/database"
	"github.com/jordanlanch/commercebi/pkg/domain"
	"github.com/jordanlanch/commercebi/pkg/ingest"
	"github.com/jordanlanch/commercebi/pkg/kpi"
	"github.com/jordanlanch/commercebi/pkg/logger"
	"github.com/jordanlanch/commercebi/pkg/metrics"
	"github.com/jordanlanch/commercebi/pkg/storage"
)

// ErrAlreadyRunning is returned by TryRun while another run holds the lock
var ErrAlreadyRunning = errors.New("pipeline run already in progress")

// WarningAttributionDisabled is reported when orders or campaigns did not load
const WarningAttributionDisabled = "attribution disabled: orders and campaigns are both required"

// Config holds pipeline settings
type Config struct {
	RawDir     string
	CleanedDir string
	Clean      ingest.Options
	KPIParams  kpi.Params
}

// KPIComputer recomputes the KPI report from the store
type KPIComputer interface {
	Compute(ctx context.Context, p kpi.Params) *kpi.Report
}

// CacheInvalidator drops cached entries by pattern
type CacheInvalidator interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// TableReport summarizes one table's cleaning and load
type TableReport struct {
	Table   string            `json:"table"`
	Loaded  bool              `json:"loaded"`
	Total   int               `json:"total_rows"`
	Kept    int               `json:"kept_rows"`
	Dropped int               `json:"dropped_rows"`
	Errors  []ingest.RowError `json:"errors,omitempty"`
	Warning string            `json:"warning,omitempty"`
}

// Report is the outcome of one pipeline run
type Report struct {
	RunID               string        `json:"run_id"`
	Status              string        `json:"status"`
	StartedAt           time.Time     `json:"started_at"`
	FinishedAt          time.Time     `json:"finished_at"`
	Tables              []TableReport `json:"tables"`
	AttributionRecords  int           `json:"attribution_records"`
	AttributionLocation string        `json:"attribution_location,omitempty"`
	KPIs                *kpi.Report   `json:"kpis,omitempty"`
	Warnings            []string      `json:"warnings"`
}

// Table returns the report for one table
func (r *Report) Table(name string) (TableReport, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableReport{}, false
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Service runs the pipeline. Runs are serialized.
type Service struct {
	cfg     Config
	db      *database.Client
	sink    storage.Sink
	kpis    KPIComputer
	cache   CacheInvalidator
	metrics *metrics.Metrics
	log     logger.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewService creates a pipeline service. kpis, c and m may be nil.
func NewService(cfg Config, db *database.Client, sink storage.Sink, kpis KPIComputer, c CacheInvalidator, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{
		cfg:     cfg,
		db:      db,
		sink:    sink,
		kpis:    kpis,
		cache:   c,
		metrics: m,
		log:     log.With("component", "pipeline"),
		now:     time.Now,
	}
}

// TryRun runs the pipeline unless a run is already in progress
func (s *Service) TryRun(ctx context.Context) (*Report, error) {
	if !s.mu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.mu.Unlock()
	return s.run(ctx)
}

// Run waits for any in-flight run and then runs the pipeline
func (s *Service) Run(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     database.NewRunID(),
		StartedAt: s.now().UTC(),
		Warnings:  []string{},
	}
	log := s.log.With("run_id", report.RunID)
	log.Info("pipeline run started", "raw_dir", s.cfg.RawDir)

	err := s.execute(ctx, report, log)

	report.FinishedAt = s.now().UTC()
	switch {
	case err != nil:
		report.Status = database.RunStatusFailed
		report.warn(err.Error())
	case len(report.Warnings) > 0:
		report.Status = database.RunStatusPartial
	default:
		report.Status = database.RunStatusSuccess
	}

	if recErr := s.db.RecordRun(ctx, s.toRun(report)); recErr != nil {
		log.Error("failed to record pipeline run", "error", recErr)
	}
	if s.metrics != nil {
		s.metrics.RecordPipelineRun(report.Status, report.FinishedAt.Sub(report.StartedAt))
	}

	if err != nil {
		log.Error("pipeline run failed", "error", err)
		return report, err
	}
	log.Info("pipeline run finished",
		"status", report.Status,
		"attribution_records", report.AttributionRecords,
		"warnings", len(report.Warnings))
	return report, nil
}

func (s *Service) execute(ctx context.Context, report *Report, log logger.Logger) error {
	if err := os.MkdirAll(s.cfg.CleanedDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cleaned directory: %w", err)
	}

	orders, err := stage(ctx, s, report, ingest.TableOrders, ingest.CleanOrders, ingest.WriteOrders, s.db.ReplaceOrders)
	if err != nil {
		return err
	}
	cleanCustomers := func(r io.Reader) (*ingest.Result[domain.Customer], error) {
		return ingest.CleanCustomers(r, s.cfg.Clean)
	}
	if _, err := stage(ctx, s, report, ingest.TableCustomers, cleanCustomers, ingest.WriteCustomers, s.db.ReplaceCustomers); err != nil {
		return err
	}
	if _, err := stage(ctx, s, report, ingest.TableProducts, ingest.CleanProducts, ingest.WriteProducts, s.db.ReplaceProducts); err != nil {
		return err
	}
	campaigns, err := stage(ctx, s, report, ingest.TableCampaigns, ingest.CleanCampaigns, ingest.WriteCampaigns, s.db.ReplaceCampaigns)
	if err != nil {
		return err
	}

	if orders != nil && campaigns != nil {
		if err := s.attribute(ctx, report, orders.Rows, campaigns.Rows, log); err != nil {
			return err
		}
	} else {
		report.warn(WarningAttributionDisabled)
		log.Warn(WarningAttributionDisabled)
	}

	if s.kpis != nil {
		report.KPIs = s.kpis.Compute(ctx, s.cfg.KPIParams)
		for _, m := range report.KPIs.Metrics {
			if m.Error != "" {
				report.warn(fmt.Sprintf("kpi %s failed: %s", m.Name, m.Error))
			}
		}
	}

	if s.cache != nil {
		n, err := s.cache.DeletePattern(ctx, cache.KPIPattern)
		if err != nil {
			log.Warn("failed to invalidate kpi cache", "error", err)
		} else {
			log.Debug("kpi cache invalidated", "keys", n)
		}
	}
	return nil
}

// stage cleans one raw table, replaces the table in the store and then writes the cleaned file.
// Missing files, schema violations and failed loads become warnings and leave the stored
// table and the cleaned file untouched; a nil result with nil error means the table was skipped.
func stage[T any](
	ctx context.Context,
	s *Service,
	report *Report,
	table string,
	clean func(io.Reader) (*ingest.Result[T], error),
	write func(io.Writer, []T) error,
	replace func(context.Context, []T) error,
) (*ingest.Result[T], error) {
	tr := TableReport{Table: table}
	defer func() { report.Tables = append(report.Tables, tr) }()

	res, err := cleanFile(s.cfg.RawDir, table, clean)
	if err != nil {
		if domain.IsMissingSource(err) || domain.IsSchemaViolation(err) {
			tr.Warning = err.Error()
			report.warn(fmt.Sprintf("%s not loaded: %s", table, err.Error()))
			s.log.Warn("table skipped", "table", table, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to clean %s: %w", table, err)
	}

	tr.Total, tr.Kept, tr.Dropped, tr.Errors = res.Total, res.Kept(), res.Dropped, res.Errors
	if res.Dropped > 0 {
		s.log.Info("rows dropped during cleaning", "table", table, "dropped", res.Dropped, "total", res.Total)
	}

	var buf bytes.Buffer
	if err := write(&buf, res.Rows); err != nil {
		return nil, fmt.Errorf("failed to encode cleaned %s: %w", table, err)
	}

	// the replace runs in one transaction, so a failure leaves the stored table as it was
	if err := replace(ctx, res.Rows); err != nil {
		tr.Warning = err.Error()
		report.warn(fmt.Sprintf("%s not loaded: %s", table, err.Error()))
		s.log.Error("table load failed", "table", table, "error", err)
		return nil, nil
	}
	tr.Loaded = true

	cleanedPath := filepath.Join(s.cfg.CleanedDir, ingest.CleanedFiles[table])
	if err := os.WriteFile(cleanedPath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", cleanedPath, err)
	}

	if s.metrics != nil {
		s.metrics.RecordTableLoad(table, res.Kept(), res.Dropped)
	}
	return res, nil
}

func cleanFile[T any](dir, table string, clean func(io.Reader) (*ingest.Result[T], error)) (*ingest.Result[T], error) {
	f, err := ingest.Open(dir, ingest.RawFiles, table)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return clean(f)
}

func (s *Service) attribute(ctx context.Context, report *Report, orders []domain.Order, campaigns []domain.Campaign, log logger.Logger) error {
	records := attribution.Map(orders, campaigns)

	var buf bytes.Buffer
	if err := attribution.WriteTable(&buf, records); err != nil {
		return fmt.Errorf("failed to encode attribution table: %w", err)
	}

	if s.sink != nil {
		if err := s.sink.Put(ctx, attribution.TableName, buf.Bytes(), "text/csv"); err != nil {
			report.warn(fmt.Sprintf("attribution publish failed: %s", err.Error()))
			log.Error("failed to publish attribution table", "error", err)
		} else {
			report.AttributionLocation = s.sink.Location(attribution.TableName)
		}
	}

	if err := s.db.ReplaceAttribution(ctx, records); err != nil {
		return fmt.Errorf("failed to load attribution: %w", err)
	}
	report.AttributionRecords = len(records)

	stats := attribution.Stats(records)
	log.Info("attribution complete",
		"records", stats.Records,
		"orders", stats.Orders,
		"attributed", stats.Attributed,
		"unattributed", stats.Unattributed)
	if s.metrics != nil {
		s.metrics.RecordAttribution(len(records))
	}
	return nil
}

func (s *Service) toRun(r *Report) *database.Run {
	run := &database.Run{
		ID:                 r.RunID,
		StartedAt:          r.StartedAt,
		FinishedAt:         r.FinishedAt,
		Status:             r.Status,
		AttributionRecords: r.AttributionRecords,
		Warnings:           r.Warnings,
	}
	for _, t := range r.Tables {
		if !t.Loaded {
			continue
		}
		switch t.Table {
		case ingest.TableOrders:
			run.OrdersLoaded = t.Kept
		case ingest.TableCustomers:
			run.CustomersLoaded = t.Kept
		case ingest.TableProducts:
			run.ProductsLoaded = t.Kept
		case ingest.TableCampaigns:
			run.CampaignsLoaded = t.Kept
		}
	}
	return run
}
