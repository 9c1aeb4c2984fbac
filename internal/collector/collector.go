// Package collector walks the registry city by city and builds the snapshot
// of registrations that were not emitted by an earlier run.
package collector

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"kvksnapshot/internal/components/assert"
	"kvksnapshot/internal/components/chrono"
	"kvksnapshot/internal/components/telemetry"
	"kvksnapshot/internal/ledger"
	"kvksnapshot/internal/openkvk"
	"kvksnapshot/internal/record"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const (
	report_collector_run    = "collector.run"
	report_collector_ledger = "collector.ledger"
	report_collector_export = "collector.export"
)

// Registry is the part of the openkvk client the collector needs.
type Registry interface {
	Walk(ctx context.Context, city string, pageSize int) iter.Seq[openkvk.Listing]
	Profile(ctx context.Context, listing openkvk.Listing) (openkvk.Profile, bool)
}

// LedgerStore loads and persists the cross-run set of emitted registry numbers.
type LedgerStore interface {
	Load() (ledger.Set, error)
	Persist(set ledger.Set) error
}

// Translator translates free text, returning the input when it cannot.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

type Options struct {
	// queried in this order, which is also the order of the output
	Cities   []string
	PageSize int
	// 0 means unbounded
	MaxRecords int
	// minimum spacing between profile lookups, 0 disables it
	ItemDelay time.Duration
	MapsLinks bool
}

type CityStats struct {
	City     string
	Listings int
	Emitted  int
	// emitted without a registry number, never added to the ledger
	Untracked        int
	SkippedLedger    int
	SkippedRun       int
	SkippedSecondary int
}

type Result struct {
	// in city, page, item order
	Records []record.Record
	Cities  []CityStats
	// the persisted ledger, previous keys plus the ones emitted by this run
	Ledger  ledger.Set
	NewKeys int
	// true when MaxRecords stopped the run early
	Capped bool
}

type metrics struct {
	listings metric.Int64Counter
	skipped  metric.Int64Counter
	emitted  metric.Int64Counter
}

func newMetrics() metrics {
	meter := otel.Meter("kvksnapshot.collector")
	listings, _ := meter.Int64Counter("listings_seen")
	skipped, _ := meter.Int64Counter("listings_skipped")
	emitted, _ := meter.Int64Counter("records_emitted")
	return metrics{listings: listings, skipped: skipped, emitted: emitted}
}

type Collector struct {
	registry   Registry
	ledger     LedgerStore
	translator Translator
	time       chrono.TimeAPI
	tel        telemetry.API
	opts       Options
	metrics    metrics
}

// NewCollector creates a Collector, translator may be nil.
func NewCollector(
	registry Registry,
	ledgerStore LedgerStore,
	translator Translator,
	time chrono.TimeAPI,
	tel telemetry.API,
	opts Options,
) Collector {
	assert.NotNil(registry)
	assert.NotNil(ledgerStore)
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.Positive(opts.PageSize)

	tel = telemetry.NewScopedAPI("collector", tel)

	return Collector{
		registry:   registry,
		ledger:     ledgerStore,
		translator: translator,
		time:       time,
		tel:        tel,
		opts:       opts,
		metrics:    newMetrics(),
	}
}

type secondaryKey struct {
	name string
	city string
}

func newSecondaryKey(listing openkvk.Listing) secondaryKey {
	return secondaryKey{
		name: strings.ToLower(strings.TrimSpace(string(listing.Name))),
		city: strings.ToLower(strings.TrimSpace(listing.City())),
	}
}

type run struct {
	c         Collector
	seen      ledger.Set
	primary   ledger.Set
	secondary map[secondaryKey]struct{}
	throttle  *rate.Limiter
	records   []record.Record
	capped    bool
}

// ExportFunc writes the result of a run somewhere durable.
type ExportFunc func(result Result) error

// Run performs one full pass over every city and persists the ledger once
// at the end. Cancelling ctx aborts the run without touching the ledger.
func (c Collector) Run(ctx context.Context) (Result, error) {
	return c.RunWith(ctx, nil)
}

// RunWith is Run with an export step between the pass and the ledger
// persist. When export fails the ledger is left as it was, so the same
// registrations are collected again next time.
func (c Collector) RunWith(ctx context.Context, export ExportFunc) (Result, error) {
	seen, err := c.ledger.Load()
	if err != nil {
		c.tel.ReportBroken(report_collector_ledger, fmt.Errorf("load: %w", err))
		return Result{}, err
	}
	c.tel.ReportCount("ledger.loaded", int64(seen.Len()))

	r := &run{
		c:         c,
		seen:      seen,
		primary:   ledger.Set{},
		secondary: map[secondaryKey]struct{}{},
	}
	if c.opts.ItemDelay > 0 {
		r.throttle = rate.NewLimiter(rate.Every(c.opts.ItemDelay), 1)
		// drain the initial burst so the first wait already pauses
		r.throttle.Allow()
	}

	var stats []CityStats
	for _, city := range c.opts.Cities {
		if r.capped {
			break
		}
		cityStats, err := r.walkCity(ctx, city)
		stats = append(stats, cityStats)
		if err != nil {
			c.tel.ReportWarning(report_collector_run, fmt.Errorf("aborted in %s: %w", city, err))
			return Result{}, err
		}
		c.tel.ReportCount(fmt.Sprintf("emitted.%s", strings.ToLower(city)), int64(cityStats.Emitted))
	}

	result := Result{
		Records: r.records,
		Cities:  stats,
		Ledger:  seen.Union(r.primary),
		NewKeys: r.primary.Len(),
		Capped:  r.capped,
	}

	if export != nil {
		err = export(result)
		if err != nil {
			c.tel.ReportBroken(report_collector_export, err)
			return Result{}, fmt.Errorf("export: %w", err)
		}
	}

	err = c.ledger.Persist(result.Ledger)
	if err != nil {
		c.tel.ReportBroken(report_collector_ledger, fmt.Errorf("persist: %w", err))
		return Result{}, err
	}
	return result, nil
}

func (r *run) skip(ctx context.Context, city, reason string) {
	r.c.metrics.skipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("city", city),
		attribute.String("reason", reason),
	))
}

func (r *run) walkCity(ctx context.Context, city string) (CityStats, error) {
	stats := CityStats{City: city}
	cityAttr := metric.WithAttributes(attribute.String("city", city))

	for listing := range r.c.registry.Walk(ctx, city, r.c.opts.PageSize) {
		stats.Listings++
		r.c.metrics.listings.Add(ctx, 1, cityAttr)

		// listings without a registry number cannot be tracked across runs,
		// only the secondary key guards them
		key := strings.TrimSpace(string(listing.RegistryNumber))
		if key != "" && r.seen.Contains(key) {
			stats.SkippedLedger++
			r.skip(ctx, city, "ledger")
			continue
		}
		if key != "" && r.primary.Contains(key) {
			stats.SkippedRun++
			r.skip(ctx, city, "run")
			continue
		}
		secKey := newSecondaryKey(listing)
		if _, dup := r.secondary[secKey]; dup {
			stats.SkippedSecondary++
			r.skip(ctx, city, "secondary")
			continue
		}

		profile, ok := r.c.registry.Profile(ctx, listing)
		if ok && r.c.translator != nil {
			profile.ActivityDescription = openkvk.Text(
				r.c.translator.Translate(ctx, string(profile.ActivityDescription)),
			)
		}

		rec := record.Normalize(listing, profile, ok, record.NormalizeOptions{
			CaptureDate: chrono.Date(r.c.time.Now()),
			MapsLinks:   r.c.opts.MapsLinks,
		})
		r.records = append(r.records, rec)
		r.primary.Add(key)
		r.secondary[secKey] = struct{}{}
		stats.Emitted++
		if key == "" {
			stats.Untracked++
		}
		r.c.metrics.emitted.Add(ctx, 1, cityAttr)
		r.c.tel.ReportDebug("emitted", rec.RegistryNumber, rec.Name, rec.City)

		if r.c.opts.MaxRecords > 0 && len(r.records) >= r.c.opts.MaxRecords {
			r.capped = true
			break
		}

		if r.throttle != nil {
			if err := r.throttle.Wait(ctx); err != nil {
				return stats, err
			}
		}
	}

	return stats, ctx.Err()
}
