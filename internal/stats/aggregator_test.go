package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "irisapi/internal/errors"
	"irisapi/internal/model"
)

func rec(species string, sl, sw, pl, pw float64) model.Record {
	return model.Record{SepalLength: sl, SepalWidth: sw, PetalLength: pl, PetalWidth: pw, Species: species}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   FeatureStats
	}{
		{
			name:   "empty input",
			values: nil,
			want:   FeatureStats{},
		},
		{
			name:   "single value has zero std",
			values: []float64{4.2},
			want:   FeatureStats{Mean: 4.2, Std: 0, Min: 4.2, Max: 4.2, Median: 4.2, Q25: 4.2, Q75: 4.2},
		},
		{
			name:   "interpolated quartiles",
			values: []float64{4, 1, 3, 2},
			want: FeatureStats{
				Mean:   2.5,
				Std:    math.Sqrt(5.0 / 3.0),
				Min:    1,
				Max:    4,
				Median: 2.5,
				Q25:    1.75,
				Q75:    3.25,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.values)
			assert.InDelta(t, tt.want.Mean, got.Mean, 1e-9)
			assert.InDelta(t, tt.want.Std, got.Std, 1e-9)
			assert.InDelta(t, tt.want.Min, got.Min, 1e-9)
			assert.InDelta(t, tt.want.Max, got.Max, 1e-9)
			assert.InDelta(t, tt.want.Median, got.Median, 1e-9)
			assert.InDelta(t, tt.want.Q25, got.Q25, 1e-9)
			assert.InDelta(t, tt.want.Q75, got.Q75, 1e-9)
		})
	}
}

func TestDescribeDoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Describe(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestCompute(t *testing.T) {
	records := []model.Record{
		rec("setosa", 5.0, 3.0, 1.0, 0.2),
		rec("setosa", 5.2, 3.4, 1.4, 0.2),
		rec("virginica", 6.5, 3.0, 5.5, 2.0),
	}

	bundle := Compute(records)

	assert.Equal(t, 3, bundle.Count)
	require.Len(t, bundle.Categories, 2)
	assert.Equal(t, 2, bundle.Categories["setosa"].Count)
	assert.Equal(t, 1, bundle.Categories["virginica"].Count)
	assert.InDelta(t, 5.1, bundle.Categories["setosa"].Features[model.SepalLength].Mean, 1e-9)
	assert.InDelta(t, 0, bundle.Categories["virginica"].Features[model.PetalWidth].Std, 1e-9)
	assert.InDelta(t, 6.5, bundle.Global[model.SepalLength].Max, 1e-9)
	assert.InDelta(t, 1.0, bundle.Global[model.PetalLength].Min, 1e-9)
}

func TestComputeEmpty(t *testing.T) {
	bundle := Compute(nil)
	assert.Equal(t, 0, bundle.Count)
	assert.Empty(t, bundle.Categories)
	assert.Equal(t, FeatureStats{}, bundle.Global[model.SepalLength])
}

func TestSummarize(t *testing.T) {
	records := []model.Record{
		rec("setosa", 5.0, 3.0, 1.0, 0.2),
		rec("setosa", 5.2, 3.4, 1.4, 0.2),
		rec("versicolor", 6.0, 2.8, 4.5, 1.3),
	}

	summary := Summarize(records)

	assert.Equal(t, map[string]int{"setosa": 2, "versicolor": 1}, summary.Counts)
	assert.InDelta(t, 3.2, summary.Statistics["setosa"][model.SepalWidth].Mean, 1e-9)
	assert.InDelta(t, 0, summary.Statistics["versicolor"][model.SepalWidth].Std, 1e-9)
}

func TestAggregate(t *testing.T) {
	records := []model.Record{
		rec("X", 1, 1, 1, 1),
		rec("X", 3, 1, 1, 1),
		rec("Y", 10, 1, 1, 1),
	}

	got := Aggregate(records)

	require.Len(t, got, 2)
	assert.InDelta(t, 2, got["X"][model.SepalLength].Median, 1e-9)
	assert.InDelta(t, 10, got["Y"][model.SepalLength].Mean, 1e-9)
}

func TestFilterOutliers(t *testing.T) {
	base := make([]model.Record, 0, 21)
	for i := 0; i < 20; i++ {
		base = append(base, rec("setosa", 5.0+float64(i%3)*0.1, 3.0, 1.4, 0.2))
	}
	withOutlier := append(append([]model.Record(nil), base...), rec("setosa", 50.0, 3.0, 1.4, 0.2))

	tests := []struct {
		name     string
		records  []model.Record
		features []model.Feature
		nStd     float64
		wantLen  int
	}{
		{
			name:     "extreme value removed",
			records:  withOutlier,
			features: model.Features(),
			nStd:     3,
			wantLen:  20,
		},
		{
			name:     "feature not listed is ignored",
			records:  withOutlier,
			features: []model.Feature{model.PetalLength},
			nStd:     3,
			wantLen:  21,
		},
		{
			name:     "zero variance feature flags nothing",
			records:  base,
			features: []model.Feature{model.SepalWidth},
			nStd:     0.01,
			wantLen:  20,
		},
		{
			name:     "non positive threshold uses default",
			records:  withOutlier,
			features: []model.Feature{model.SepalLength},
			nStd:     0,
			wantLen:  20,
		},
		{
			name:     "empty input",
			records:  nil,
			features: model.Features(),
			nStd:     3,
			wantLen:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterOutliers(tt.records, tt.features, tt.nStd)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestNormalizeMinMax(t *testing.T) {
	records := []model.Record{
		rec("setosa", 4.0, 3.0, 1.0, 0.2),
		rec("setosa", 5.0, 3.0, 1.5, 0.2),
		rec("setosa", 6.0, 3.0, 2.0, 0.2),
	}

	got, err := Normalize(records, model.Features(), MinMax)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 0, got[0].Normalized[model.SepalLength], 1e-9)
	assert.InDelta(t, 0.5, got[1].Normalized[model.SepalLength], 1e-9)
	assert.InDelta(t, 1, got[2].Normalized[model.PetalLength], 1e-9)
	assert.Equal(t, records[1], got[1].Record)
}

func TestNormalizeConstantFeatureIsDefined(t *testing.T) {
	records := []model.Record{
		rec("X", 4.0, 3.0, 1.0, 0.2),
		rec("X", 5.0, 3.0, 1.5, 0.2),
		rec("X", 6.0, 3.0, 2.0, 0.2),
	}

	for _, method := range []Method{MinMax, ZScore} {
		t.Run(string(method), func(t *testing.T) {
			got, err := Normalize(records, []model.Feature{model.SepalWidth}, method)
			require.NoError(t, err)
			for _, r := range got {
				v, ok := r.Normalized[model.SepalWidth]
				require.True(t, ok)
				assert.False(t, math.IsNaN(v))
				assert.False(t, math.IsInf(v, 0))
				assert.Equal(t, 0.0, v)
			}
		})
	}
}

func TestNormalizeZScore(t *testing.T) {
	records := []model.Record{
		rec("X", 1, 0, 0, 0),
		rec("X", 2, 0, 0, 0),
		rec("X", 3, 0, 0, 0),
	}

	got, err := Normalize(records, []model.Feature{model.SepalLength}, ZScore)

	require.NoError(t, err)
	assert.InDelta(t, -1, got[0].Normalized[model.SepalLength], 1e-9)
	assert.InDelta(t, 0, got[1].Normalized[model.SepalLength], 1e-9)
	assert.InDelta(t, 1, got[2].Normalized[model.SepalLength], 1e-9)
}

func TestNormalizeUnknownMethod(t *testing.T) {
	_, err := Normalize([]model.Record{rec("X", 1, 1, 1, 1)}, model.Features(), Method("robust"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNormalizeEmpty(t *testing.T) {
	got, err := Normalize(nil, model.Features(), MinMax)
	require.NoError(t, err)
	assert.Empty(t, got)
}
