// Package dataset owns the in-memory dataset snapshot.
//
// A Cache starts Empty and loads lazily on first read, or eagerly via Reload.
// Loads are serialized by a mutex. The published *Snapshot is swapped with a
// single atomic store after it has been validated and its statistics computed,
// so readers never lock and keep seeing the previous snapshot while a reload
// runs. A failed reload leaves the previous snapshot in place.
package dataset

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "irisapi/internal/errors"
	"irisapi/internal/logging"
	"irisapi/internal/metrics"
	"irisapi/internal/model"
	"irisapi/internal/stats"
)

// DefaultLabelPrefix is stripped from labels such as "Iris-setosa".
const DefaultLabelPrefix = "iris-"

// Snapshot is an immutable, fully validated view of the dataset.
// Callers must not modify Records.
type Snapshot struct {
	Records  []model.Record
	Stats    *stats.Bundle
	LoadedAt time.Time
	Source   string

	byCategory map[string][]model.Record
	categories []string
}

// Categories returns the sorted distinct categories present in the snapshot.
func (s *Snapshot) Categories() []string {
	return slices.Clone(s.categories)
}

func newSnapshot(records []model.Record, source string, loadedAt time.Time) *Snapshot {
	byCategory := make(map[string][]model.Record)
	for _, r := range records {
		byCategory[r.Species] = append(byCategory[r.Species], r)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return &Snapshot{
		Records:    records,
		Stats:      stats.Compute(records),
		LoadedAt:   loadedAt,
		Source:     source,
		byCategory: byCategory,
		categories: categories,
	}
}

// Options configures a Cache.
type Options struct {
	// Categories is the fixed category enumeration. Defaults to model.DefaultCategories.
	Categories []string
	// LabelPrefix is stripped from labels after lower-casing. Defaults to DefaultLabelPrefix;
	// set NoLabelPrefix to disable.
	LabelPrefix   string
	NoLabelPrefix bool
	// Fallback is used when the source reports ErrSourceNotFound. Defaults to SampleSource.
	Fallback Source
	Now      func() time.Time
}

// Cache holds the process's dataset snapshot. The zero value is not usable;
// construct with New.
type Cache struct {
	source   Source
	fallback Source
	known    []string
	lookup   map[string]string
	prefix   string
	now      func() time.Time

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// New creates an Empty cache reading from source.
func New(source Source, opts Options) *Cache {
	categories := opts.Categories
	if len(categories) == 0 {
		categories = model.DefaultCategories
	}
	lookup := make(map[string]string, len(categories))
	known := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := lookup[strings.ToLower(c)]; dup {
			continue
		}
		lookup[strings.ToLower(c)] = c
		known = append(known, c)
	}
	sort.Strings(known)

	prefix := opts.LabelPrefix
	if opts.NoLabelPrefix {
		prefix = ""
	} else if prefix == "" {
		prefix = DefaultLabelPrefix
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = SampleSource()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Cache{
		source:   source,
		fallback: fallback,
		known:    known,
		lookup:   lookup,
		prefix:   strings.ToLower(prefix),
		now:      now,
	}
}

// Known returns the sorted category enumeration.
func (c *Cache) Known() []string {
	return slices.Clone(c.known)
}

// GetAll returns the current snapshot, loading it if the cache is Empty.
func (c *Cache) GetAll(ctx context.Context) (*Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have finished loading while we waited.
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	return c.loadLocked(ctx)
}

// Canonical resolves name against the category enumeration, ignoring case
// and surrounding space.
func (c *Cache) Canonical(name string) (string, bool) {
	canonical, ok := c.lookup[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// GetByCategory returns the records of one category. It fails with a
// DataNotFound error if name is outside the enumeration or has no records.
func (c *Cache) GetByCategory(ctx context.Context, name string) ([]model.Record, error) {
	records, _, err := c.GetByCategoryWithSnapshot(ctx, name)
	return records, err
}

// GetByCategoryWithSnapshot is GetByCategory that also returns the snapshot
// the records were read from.
func (c *Cache) GetByCategoryWithSnapshot(ctx context.Context, name string) ([]model.Record, *Snapshot, error) {
	name = strings.TrimSpace(name)
	canonical, ok := c.Canonical(name)
	if !ok {
		return nil, nil, apperrors.Newf(apperrors.KindDataNotFound, "invalid species: %s", name)
	}

	snap, err := c.GetAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	records := snap.byCategory[name]
	if len(records) == 0 {
		records = snap.byCategory[canonical]
	}
	if len(records) == 0 {
		return nil, nil, apperrors.Newf(apperrors.KindDataNotFound, "no data found for species: %s", name)
	}
	return slices.Clone(records), snap, nil
}

// ListCategories returns the sorted distinct categories present in the data.
func (c *Cache) ListCategories(ctx context.Context) ([]string, error) {
	snap, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Categories(), nil
}

// Stats returns the statistics computed with the current snapshot.
func (c *Cache) Stats(ctx context.Context) (*stats.Bundle, error) {
	snap, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Stats, nil
}

// Reload forces a load from the source. On failure the previous snapshot, if
// any, stays published and the error is returned to the caller only.
func (c *Cache) Reload(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

// Clear drops the published snapshot; the next read loads again.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(nil)
	metrics.DatasetRecords.Set(0)
	logging.Info().Msg("dataset cache cleared")
}

// IsLoaded reports whether a snapshot is published.
func (c *Cache) IsLoaded() bool {
	return c.current.Load() != nil
}

// LastLoaded returns the load time of the published snapshot.
func (c *Cache) LastLoaded() (time.Time, bool) {
	s := c.current.Load()
	if s == nil {
		return time.Time{}, false
	}
	return s.LoadedAt, true
}

func (c *Cache) loadLocked(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	snap, err := c.build(ctx)
	metrics.DatasetLoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DatasetLoads.WithLabelValues("error").Inc()
		logging.Error().Err(err).Str("source", c.source.String()).Bool("kept_previous", c.IsLoaded()).Msg("dataset load failed")
		return nil, err
	}

	c.current.Store(snap)
	metrics.DatasetLoads.WithLabelValues("success").Inc()
	metrics.DatasetRecords.Set(float64(len(snap.Records)))
	logging.Info().
		Str("source", snap.Source).
		Int("records", len(snap.Records)).
		Strs("categories", snap.categories).
		Dur("took", time.Since(start)).
		Msg("dataset loaded")
	return snap, nil
}

func (c *Cache) build(ctx context.Context) (*Snapshot, error) {
	source := c.source
	rc, err := source.Open(ctx)
	if errors.Is(err, ErrSourceNotFound) {
		logging.Warn().Str("source", source.String()).Str("fallback", c.fallback.String()).Msg("data source not found, using sample data")
		source = c.fallback
		rc, err = source.Open(ctx)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDataLoad, err)
	}
	defer rc.Close()

	records, report, err := parseRecords(rc, c.lookup, c.prefix)
	if report.unknownCategory > 0 {
		metrics.DatasetDroppedRows.WithLabelValues("unknown_category").Add(float64(report.unknownCategory))
		logging.Warn().Int("rows", report.unknownCategory).Msg("dropped rows with unknown category")
	}
	if report.invalidValue > 0 {
		metrics.DatasetDroppedRows.WithLabelValues("invalid_value").Add(float64(report.invalidValue))
		logging.Warn().Int("rows", report.invalidValue).Msg("dropped rows with missing or invalid values")
	}
	if err != nil {
		return nil, err
	}

	return newSnapshot(records, source.String(), c.now().UTC()), nil
}
