// Package stats computes descriptive statistics over dataset records.
//
// All functions are pure and operate only on the records passed in, so a
// filtered subset is described (or normalized) within its own range.
//
// Conventions:
//   - Std is the sample standard deviation (n-1 denominator); a single value has Std 0.
//   - Median and quartiles interpolate linearly at rank (n-1)*p of the sorted values.
//   - A zero-variance feature (Std 0, or Max == Min) never flags outliers and
//     normalizes to 0 for every record.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "irisapi/internal/errors"
	"irisapi/internal/logging"
	"irisapi/internal/model"
)

// DefaultOutlierStd is the z-score threshold used when none is given.
const DefaultOutlierStd = 3.0

// FeatureStats describes the distribution of one feature.
type FeatureStats struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// MeanStd is the reduced per-feature view used by summaries.
type MeanStd struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// CategoryStats holds the statistics of a single category.
type CategoryStats struct {
	Count    int                            `json:"count"`
	Features map[model.Feature]FeatureStats `json:"features"`
}

// Bundle is the precomputed statistics of one dataset snapshot.
type Bundle struct {
	Count      int                            `json:"count"`
	Global     map[model.Feature]FeatureStats `json:"global"`
	Categories map[string]CategoryStats       `json:"categories"`
}

// Summary holds per-category counts and mean/std.
type Summary struct {
	Counts     map[string]int                       `json:"species_count"`
	Statistics map[string]map[model.Feature]MeanStd `json:"statistics"`
}

// Describe computes the statistics of values. An empty input yields zeros.
func Describe(values []float64) FeatureStats {
	if len(values) == 0 {
		return FeatureStats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := meanStd(sorted)
	return FeatureStats{
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: quantile(sorted, 0.5),
		Q25:    quantile(sorted, 0.25),
		Q75:    quantile(sorted, 0.75),
	}
}

// Compute builds the bundle for records: global statistics plus one entry per
// category present.
func Compute(records []model.Record) *Bundle {
	bundle := &Bundle{
		Count:      len(records),
		Global:     describeFeatures(records),
		Categories: make(map[string]CategoryStats),
	}
	for category, group := range groupByCategory(records) {
		bundle.Categories[category] = CategoryStats{
			Count:    len(group),
			Features: describeFeatures(group),
		}
	}
	return bundle
}

// Summarize returns per-category counts and per-feature mean/std.
func Summarize(records []model.Record) Summary {
	summary := Summary{
		Counts:     make(map[string]int),
		Statistics: make(map[string]map[model.Feature]MeanStd),
	}
	for category, group := range groupByCategory(records) {
		summary.Counts[category] = len(group)
		features := make(map[model.Feature]MeanStd, 4)
		for _, f := range model.Features() {
			mean, std := meanStd(values(group, f))
			features[f] = MeanStd{Mean: mean, Std: std}
		}
		summary.Statistics[category] = features
	}
	return summary
}

// Aggregate returns the full per-feature statistics of every category present.
func Aggregate(records []model.Record) map[string]map[model.Feature]FeatureStats {
	out := make(map[string]map[model.Feature]FeatureStats)
	for category, group := range groupByCategory(records) {
		out[category] = describeFeatures(group)
	}
	return out
}

// FilterOutliers drops every record whose z-score exceeds nStd on any of the
// listed features. Mean and std come from the input set. A non-positive nStd
// falls back to DefaultOutlierStd.
func FilterOutliers(records []model.Record, features []model.Feature, nStd float64) []model.Record {
	if nStd <= 0 {
		nStd = DefaultOutlierStd
	}

	type bounds struct {
		feature   model.Feature
		mean, std float64
	}
	var checks []bounds
	for _, f := range features {
		mean, std := meanStd(values(records, f))
		if std == 0 || math.IsNaN(std) {
			continue
		}
		checks = append(checks, bounds{feature: f, mean: mean, std: std})
	}

	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		keep := true
		for _, b := range checks {
			if math.Abs((r.Value(b.feature)-b.mean)/b.std) > nStd {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}

	if removed := len(records) - len(out); removed > 0 {
		logging.Debug().Int("removed", removed).Float64("n_std", nStd).Msg("filtered outliers")
	}
	return out
}

// Method selects a normalization strategy.
type Method string

const (
	MinMax Method = "minmax"
	ZScore Method = "zscore"
)

// NormalizedRecord carries a record with its normalized feature values.
type NormalizedRecord struct {
	model.Record
	Normalized map[model.Feature]float64 `json:"normalized,omitempty"`
}

// Normalize rescales the listed features over the input set: minmax maps the
// observed range onto [0,1], zscore subtracts the mean and divides by std.
func Normalize(records []model.Record, features []model.Feature, method Method) ([]NormalizedRecord, error) {
	if method != MinMax && method != ZScore {
		return nil, apperrors.Newf(apperrors.KindValidation, "unknown normalization method %q", method)
	}

	out := make([]NormalizedRecord, len(records))
	for i, r := range records {
		out[i] = NormalizedRecord{Record: r, Normalized: make(map[model.Feature]float64, len(features))}
	}
	if len(records) == 0 {
		return out, nil
	}

	for _, f := range features {
		column := values(records, f)
		var offset, scale float64
		switch method {
		case MinMax:
			offset = floats.Min(column)
			scale = floats.Max(column) - offset
		case ZScore:
			offset, scale = meanStd(column)
		}
		for i, v := range column {
			if scale == 0 || math.IsNaN(scale) {
				out[i].Normalized[f] = 0
				continue
			}
			out[i].Normalized[f] = (v - offset) / scale
		}
	}
	return out, nil
}

func describeFeatures(records []model.Record) map[model.Feature]FeatureStats {
	out := make(map[model.Feature]FeatureStats, 4)
	for _, f := range model.Features() {
		out[f] = Describe(values(records, f))
	}
	return out
}

func groupByCategory(records []model.Record) map[string][]model.Record {
	groups := make(map[string][]model.Record)
	for _, r := range records {
		groups[r.Species] = append(groups[r.Species], r)
	}
	return groups
}

func values(records []model.Record, f model.Feature) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Value(f)
	}
	return out
}

func meanStd(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

// quantile expects sorted input.
func quantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
