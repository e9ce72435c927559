package model

import "strings"

// Feature names one of the four numeric measurements of a record.
type Feature string

const (
	SepalLength Feature = "sepal_length"
	SepalWidth  Feature = "sepal_width"
	PetalLength Feature = "petal_length"
	PetalWidth  Feature = "petal_width"
)

// LabelColumn is the name of the category column in the source table.
const LabelColumn = "species"

// DefaultCategories is the species enumeration of the Iris dataset.
var DefaultCategories = []string{"setosa", "versicolor", "virginica"}

// Features returns the four features in column order.
func Features() []Feature {
	return []Feature{SepalLength, SepalWidth, PetalLength, PetalWidth}
}

// ParseFeature resolves a feature by name, ignoring case and surrounding space.
func ParseFeature(name string) (Feature, bool) {
	f := Feature(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Features() {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// Record is one row of the dataset.
type Record struct {
	SepalLength float64 `json:"sepal_length"`
	SepalWidth  float64 `json:"sepal_width"`
	PetalLength float64 `json:"petal_length"`
	PetalWidth  float64 `json:"petal_width"`
	Species     string  `json:"species"`
}

// Value returns the value of feature f.
func (r Record) Value(f Feature) float64 {
	switch f {
	case SepalLength:
		return r.SepalLength
	case SepalWidth:
		return r.SepalWidth
	case PetalLength:
		return r.PetalLength
	case PetalWidth:
		return r.PetalWidth
	default:
		return 0
	}
}
