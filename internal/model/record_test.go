package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFeature(t *testing.T) {
	tests := []struct {
		in     string
		want   Feature
		wantOK bool
	}{
		{in: "sepal_length", want: SepalLength, wantOK: true},
		{in: " Petal_Width ", want: PetalWidth, wantOK: true},
		{in: "petal length"},
		{in: ""},
	}
	for _, tt := range tests {
		got, ok := ParseFeature(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRecordValue(t *testing.T) {
	r := Record{SepalLength: 5.1, SepalWidth: 3.5, PetalLength: 1.4, PetalWidth: 0.2, Species: "setosa"}

	got := make([]float64, 0, 4)
	for _, f := range Features() {
		got = append(got, r.Value(f))
	}
	assert.Equal(t, []float64{5.1, 3.5, 1.4, 0.2}, got)
	assert.Zero(t, r.Value(Feature("stamen")))
}
