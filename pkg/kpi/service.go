// Package kpi computes the five headline business KPIs from the relational store.
package kpi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jordanlanch/commercebi/pkg/cache"
	"github.com/jordanlanch/commercebi/pkg/database"
	"github.com/jordanlanch/commercebi/pkg/domain"
	"github.com/jordanlanch/commercebi/pkg/logger"
	"github.com/jordanlanch/commercebi/pkg/metrics"
)

// KPI keys, in report order
const (
	KeyCAC            = "Customer Acquisition Cost (CAC)"
	KeyCLV            = "Customer Lifetime Value (CLV)"
	KeyConversionRate = "Conversion Rate (%)"
	KeySalesGrowth    = "Sales Growth Rate (%)"
	KeyAOV            = "Average Order Value (AOV)"
)

// Keys lists every KPI in report order
var Keys = []string{KeyCAC, KeyCLV, KeyConversionRate, KeySalesGrowth, KeyAOV}

// Params selects the reference points of the date-dependent KPIs
type Params struct {
	// CACCutoff is the signup date from which customers count as newly acquired
	CACCutoff time.Time
	// GrowthYear is compared against the year before it
	GrowthYear int
}

// DefaultParams returns a CAC cutoff of 2024-01-01 and growth year 2024
func DefaultParams() Params {
	return Params{
		CACCutoff:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		GrowthYear: 2024,
	}
}

// ParseParams builds Params from the configured cutoff string and year
func ParseParams(cutoff string, growthYear int) (Params, error) {
	d, err := time.Parse(domain.DateLayout, cutoff)
	if err != nil {
		return Params{}, domain.NewValidationError(fmt.Sprintf("invalid CAC cutoff %q: expected YYYY-MM-DD", cutoff))
	}
	if growthYear < 1 {
		return Params{}, domain.NewValidationError(fmt.Sprintf("invalid growth year %d", growthYear))
	}
	return Params{CACCutoff: d, GrowthYear: growthYear}, nil
}

// CacheKey returns the cache key for a report computed with p
func (p Params) CacheKey() string {
	return cache.KPIKey(domain.FormatDate(p.CACCutoff), p.GrowthYear)
}

// Value is one KPI result. A zero divisor yields Value 0 with Undefined set;
// a failed query additionally carries Error.
type Value struct {
	Value     float64 `json:"value"`
	Undefined bool    `json:"undefined"`
	Error     string  `json:"error,omitempty"`
}

// Metric is a named KPI value
type Metric struct {
	Name string `json:"name"`
	Value
}

// Report holds the five KPIs in fixed order
type Report struct {
	Metrics    []Metric  `json:"metrics"`
	ComputedAt time.Time `json:"computed_at"`
}

// Get returns the value for a KPI key
func (r *Report) Get(name string) (Value, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Failed reports whether any KPI carries an error
func (r *Report) Failed() bool {
	for _, m := range r.Metrics {
		if m.Error != "" {
			return true
		}
	}
	return false
}

// JSONCache is the subset of the Redis client the service needs
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Service computes KPIs
type Service struct {
	db      *database.Client
	cache   JSONCache
	ttl     time.Duration
	metrics *metrics.Metrics
	log     logger.Logger
	now     func() time.Time
	funcs   map[string]computeFunc
}

// NewService creates a KPI service. cache and m may be nil.
func NewService(db *database.Client, c JSONCache, ttl time.Duration, m *metrics.Metrics, log logger.Logger) *Service {
	s := &Service{
		db:      db,
		cache:   c,
		ttl:     ttl,
		metrics: m,
		log:     log.With("component", "kpi"),
		now:     time.Now,
	}
	s.funcs = map[string]computeFunc{
		KeyCAC:            s.cac,
		KeyCLV:            s.clv,
		KeyConversionRate: s.conversionRate,
		KeySalesGrowth:    s.salesGrowth,
		KeyAOV:            s.aov,
	}
	return s
}

type computeFunc func(ctx context.Context, p Params) (value float64, undefined bool, err error)

// safeCompute runs fn and reports a panic as that KPI's error
func safeCompute(ctx context.Context, fn computeFunc, p Params) (v float64, undefined bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, undefined, err = 0, true, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, p)
}

// Compute runs every KPI query. A failing or panicking query only affects its own KPI.
func (s *Service) Compute(ctx context.Context, p Params) *Report {
	report := &Report{Metrics: make([]Metric, 0, len(Keys)), ComputedAt: s.now().UTC()}
	for _, key := range Keys {
		v, undefined, err := safeCompute(ctx, s.funcs[key], p)
		m := Metric{Name: key}
		switch {
		case err != nil:
			s.log.Error("kpi computation failed", "kpi", key, "error", err)
			if s.metrics != nil {
				s.metrics.RecordKPIFailure(key)
			}
			m.Value = Value{Undefined: true, Error: err.Error()}
		case undefined:
			m.Value = Value{Undefined: true}
		default:
			m.Value = Value{Value: round2(v)}
		}
		report.Metrics = append(report.Metrics, m)
	}
	return report
}

// Get returns a cached report when available, computing and caching it otherwise.
// Cache failures fall back to computing. Reports with failed KPIs are not cached.
func (s *Service) Get(ctx context.Context, p Params) *Report {
	key := p.CacheKey()
	if s.cache != nil {
		var cached Report
		err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err == nil:
			s.recordCache(true)
			return &cached
		case errors.Is(err, cache.ErrMiss):
			s.recordCache(false)
		default:
			s.recordCache(false)
			s.log.Warn("kpi cache read failed", "key", key, "error", err)
		}
	}

	report := s.Compute(ctx, p)

	if s.cache != nil && !report.Failed() {
		if err := s.cache.SetJSON(ctx, key, report, s.ttl); err != nil {
			s.log.Warn("kpi cache write failed", "key", key, "error", err)
		}
	}
	return report
}

func (s *Service) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit("redis")
	} else {
		s.metrics.RecordCacheMiss("redis")
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
