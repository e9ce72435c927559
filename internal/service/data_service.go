package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"irisapi/internal/access"
	"irisapi/internal/auth"
	"irisapi/internal/dataset"
	apperrors "irisapi/internal/errors"
	"irisapi/internal/logging"
	"irisapi/internal/metrics"
	"irisapi/internal/model"
	"irisapi/internal/stats"
)

const (
	// MaxPageSize bounds the limit query parameter.
	MaxPageSize = 1000

	aggregatedCacheTTL = 5 * time.Minute
)

// ResponseCache stores serialized responses. *cache.Client satisfies it.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SpeciesQuery holds the optional transforms of a species read.
type SpeciesQuery struct {
	Normalize      bool
	Method         stats.Method
	RemoveOutliers bool
	Limit          *int
	Offset         int
}

// SpeciesMetadata describes the records behind a species response.
type SpeciesMetadata struct {
	Count           int                       `json:"count"`
	Returned        int                       `json:"returned"`
	Offset          int                       `json:"offset"`
	Limit           *int                      `json:"limit,omitempty"`
	OutliersRemoved int                       `json:"outliers_removed"`
	Normalization   stats.Method              `json:"normalization,omitempty"`
	MinValues       map[model.Feature]float64 `json:"min_values"`
	MaxValues       map[model.Feature]float64 `json:"max_values"`
}

// SpeciesData is the response of a species read.
type SpeciesData struct {
	Species  string                   `json:"species"`
	Data     []stats.NormalizedRecord `json:"data"`
	Metadata SpeciesMetadata          `json:"metadata"`
}

// SpeciesStatistics is the per-species entry of a summary.
type SpeciesStatistics struct {
	Species  string                          `json:"species"`
	Count    int                             `json:"count"`
	Features map[model.Feature]stats.MeanStd `json:"features"`
}

// DataSummary is restricted to the categories the caller may read.
type DataSummary struct {
	TotalRecords      int                 `json:"total_records"`
	AccessibleSpecies []string            `json:"accessible_species"`
	SpeciesCount      map[string]int      `json:"species_count"`
	Statistics        []SpeciesStatistics `json:"statistics"`
	LastUpdated       *time.Time          `json:"last_updated,omitempty"`
	UserAccessLevel   string              `json:"user_access_level"`
}

// AggregatedData holds the full statistics of one species.
type AggregatedData struct {
	Species    string                               `json:"species"`
	Statistics map[model.Feature]stats.FeatureStats `json:"statistics"`
}

// ReloadResult reports a successful reload.
type ReloadResult struct {
	Message      string    `json:"message"`
	RowsLoaded   int       `json:"rows_loaded"`
	SpeciesFound []string  `json:"species_found"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// DatasetStatus is reported by the detailed health check.
type DatasetStatus struct {
	Loaded           bool       `json:"loaded"`
	LastLoaded       *time.Time `json:"last_loaded"`
	SpeciesAvailable []string   `json:"species_available"`
}

// DataService serves dataset reads gated by the caller's access level.
type DataService interface {
	Summary(ctx context.Context, identity *auth.Identity, includeStats bool) (*DataSummary, error)
	ListSpecies(ctx context.Context, identity *auth.Identity) ([]string, error)
	GetSpecies(ctx context.Context, identity *auth.Identity, species string, q SpeciesQuery) (*SpeciesData, error)
	Aggregated(ctx context.Context, identity *auth.Identity, species string) (*AggregatedData, error)
	Reload(ctx context.Context) (*ReloadResult, error)
	Clear(ctx context.Context)
	Status() DatasetStatus
}

type dataService struct {
	cache     *dataset.Cache
	responses ResponseCache
}

// NewDataService builds a DataService over cache. responses may be nil.
func NewDataService(cache *dataset.Cache, responses ResponseCache) DataService {
	return &dataService{cache: cache, responses: responses}
}

func (s *dataService) authorize(identity *auth.Identity, species string) error {
	if identity == nil {
		return apperrors.ErrInvalidToken
	}
	if !access.CanAccess(identity.AccessLevel, species) {
		metrics.AccessDenials.WithLabelValues(s.denialLabel(species)).Inc()
		logging.Warn().Uint("user_id", identity.UserID).Str("access_level", identity.AccessLevel).Str("species", species).Msg("access denied")
		return apperrors.Newf(apperrors.KindAuthorization, "access denied to species %s", species)
	}
	return nil
}

// denialLabel keeps the metric's label set bounded by the enumeration.
func (s *dataService) denialLabel(species string) string {
	if canonical, ok := s.cache.Canonical(species); ok {
		return canonical
	}
	return "unknown"
}

func (s *dataService) Summary(ctx context.Context, identity *auth.Identity, includeStats bool) (*DataSummary, error) {
	if identity == nil {
		return nil, apperrors.ErrInvalidToken
	}
	snap, err := s.cache.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	visible := access.Filter(identity.AccessLevel, snap.Categories())
	allowed := make(map[string]bool, len(visible))
	for _, c := range visible {
		allowed[c] = true
	}
	records := make([]model.Record, 0, len(snap.Records))
	for _, r := range snap.Records {
		if allowed[r.Species] {
			records = append(records, r)
		}
	}

	summary := stats.Summarize(records)
	loadedAt := snap.LoadedAt
	out := &DataSummary{
		TotalRecords:      len(records),
		AccessibleSpecies: visible,
		SpeciesCount:      summary.Counts,
		Statistics:        []SpeciesStatistics{},
		LastUpdated:       &loadedAt,
		UserAccessLevel:   identity.AccessLevel,
	}
	if includeStats {
		for _, species := range visible {
			out.Statistics = append(out.Statistics, SpeciesStatistics{
				Species:  species,
				Count:    summary.Counts[species],
				Features: summary.Statistics[species],
			})
		}
	}
	return out, nil
}

func (s *dataService) ListSpecies(ctx context.Context, identity *auth.Identity) ([]string, error) {
	if identity == nil {
		return nil, apperrors.ErrInvalidToken
	}
	present, err := s.cache.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return access.AccessibleCategories(identity.AccessLevel, present), nil
}

func (s *dataService) GetSpecies(ctx context.Context, identity *auth.Identity, species string, q SpeciesQuery) (*SpeciesData, error) {
	if err := validateQuery(&q); err != nil {
		return nil, err
	}
	if err := s.authorize(identity, species); err != nil {
		return nil, err
	}

	records, err := s.cache.GetByCategory(ctx, species)
	if err != nil {
		return nil, err
	}

	total := len(records)
	if q.RemoveOutliers {
		records = stats.FilterOutliers(records, model.Features(), stats.DefaultOutlierStd)
	}

	var rows []stats.NormalizedRecord
	if q.Normalize {
		rows, err = stats.Normalize(records, model.Features(), q.Method)
		if err != nil {
			return nil, err
		}
	} else {
		rows = make([]stats.NormalizedRecord, len(records))
		for i, r := range records {
			rows[i] = stats.NormalizedRecord{Record: r}
		}
	}

	meta := SpeciesMetadata{
		Count:           len(records),
		Offset:          q.Offset,
		Limit:           q.Limit,
		OutliersRemoved: total - len(records),
		MinValues:       make(map[model.Feature]float64, 4),
		MaxValues:       make(map[model.Feature]float64, 4),
	}
	if q.Normalize {
		meta.Normalization = q.Method
	}
	for _, f := range model.Features() {
		d := stats.Describe(column(records, f))
		meta.MinValues[f] = d.Min
		meta.MaxValues[f] = d.Max
	}

	rows = paginate(rows, q.Offset, q.Limit)
	meta.Returned = len(rows)

	return &SpeciesData{Species: species, Data: rows, Metadata: meta}, nil
}

func (s *dataService) Aggregated(ctx context.Context, identity *auth.Identity, species string) (*AggregatedData, error) {
	if err := s.authorize(identity, species); err != nil {
		return nil, err
	}

	records, snap, err := s.cache.GetByCategoryWithSnapshot(ctx, species)
	if err != nil {
		return nil, err
	}

	// Keys carry the snapshot identity so a response computed from one
	// snapshot is never served for another.
	key := aggregatedCacheKey(records[0].Species, snap.LoadedAt)
	if s.responses != nil {
		if data, _ := s.responses.Get(ctx, key); data != nil {
			var cached AggregatedData
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	all := stats.Aggregate(records)
	featureStats, ok := all[records[0].Species]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindDataNotFound, "no aggregated data for species: %s", species)
	}

	out := &AggregatedData{Species: records[0].Species, Statistics: featureStats}
	if s.responses != nil {
		if payload, err := json.Marshal(out); err == nil {
			_ = s.responses.Set(ctx, key, payload, aggregatedCacheTTL)
		}
	}
	return out, nil
}

func (s *dataService) Reload(ctx context.Context) (*ReloadResult, error) {
	previous, hadPrevious := s.cache.LastLoaded()
	snap, err := s.cache.Reload(ctx)
	if err != nil {
		return nil, err
	}
	if hadPrevious {
		s.invalidate(ctx, previous)
	}
	return &ReloadResult{
		Message:      "Data reloaded successfully",
		RowsLoaded:   len(snap.Records),
		SpeciesFound: snap.Categories(),
		LoadedAt:     snap.LoadedAt,
	}, nil
}

func (s *dataService) Clear(ctx context.Context) {
	previous, hadPrevious := s.cache.LastLoaded()
	s.cache.Clear()
	if hadPrevious {
		s.invalidate(ctx, previous)
	}
}

func (s *dataService) Status() DatasetStatus {
	status := DatasetStatus{SpeciesAvailable: []string{}}
	if at, ok := s.cache.LastLoaded(); ok {
		status.Loaded = true
		status.LastLoaded = &at
		if categories, err := s.cache.ListCategories(context.Background()); err == nil {
			status.SpeciesAvailable = categories
		}
	}
	return status
}

// invalidate drops the aggregated responses of the snapshot loaded at loadedAt.
func (s *dataService) invalidate(ctx context.Context, loadedAt time.Time) {
	if s.responses == nil {
		return
	}
	known := s.cache.Known()
	keys := make([]string, len(known))
	for i, c := range known {
		keys[i] = aggregatedCacheKey(c, loadedAt)
	}
	_ = s.responses.Delete(ctx, keys...)
}

func aggregatedCacheKey(species string, loadedAt time.Time) string {
	return fmt.Sprintf("iris:aggregated:%s:%d", strings.ToLower(strings.TrimSpace(species)), loadedAt.UnixNano())
}

func validateQuery(q *SpeciesQuery) error {
	if q.Limit != nil && (*q.Limit < 1 || *q.Limit > MaxPageSize) {
		return apperrors.Newf(apperrors.KindValidation, "limit must be between 1 and %d", MaxPageSize)
	}
	if q.Offset < 0 {
		return apperrors.New(apperrors.KindValidation, "offset must be non-negative")
	}
	if q.Normalize && q.Method == "" {
		q.Method = stats.MinMax
	}
	return nil
}

func paginate(rows []stats.NormalizedRecord, offset int, limit *int) []stats.NormalizedRecord {
	if offset >= len(rows) {
		return []stats.NormalizedRecord{}
	}
	rows = rows[offset:]
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}

func column(records []model.Record, f model.Feature) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Value(f)
	}
	return out
}
