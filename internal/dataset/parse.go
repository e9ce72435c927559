package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	apperrors "irisapi/internal/errors"
	"irisapi/internal/model"
)

type dropReport struct {
	unknownCategory int
	invalidValue    int
}

// parseRecords reads CSV from r and returns the cleaned records. lookup maps a
// lower-cased category to its canonical spelling.
func parseRecords(r io.Reader, lookup map[string]string, prefix string) ([]model.Record, dropReport, error) {
	var report dropReport

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, report, apperrors.New(apperrors.KindDataLoad, "dataset is empty")
	}
	if err != nil {
		return nil, report, apperrors.Wrap(apperrors.KindDataLoad, fmt.Errorf("read header: %w", err))
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if f, ok := model.ParseFeature(name); ok {
			columns[string(f)] = i
			continue
		}
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	required := append(featureNames(), model.LabelColumn)
	var missing []string
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, report, apperrors.Newf(apperrors.KindDataLoad, "missing required columns: %s", strings.Join(missing, ", "))
	}

	type row struct {
		record  model.Record
		invalid bool
	}
	var rows []row
	features := model.Features()
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, report, apperrors.Wrap(apperrors.KindDataLoad, fmt.Errorf("read line %d: %w", line, err))
		}

		var values [4]float64
		invalid := false
		for i, f := range features {
			cell := cellAt(fields, columns[string(f)])
			if cell == "" {
				invalid = true
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, report, apperrors.Newf(apperrors.KindDataLoad, "line %d: column %s is not numeric: %q", line, f, cell)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				invalid = true
			}
			values[i] = v
		}

		rows = append(rows, row{
			record: model.Record{
				SepalLength: values[0],
				SepalWidth:  values[1],
				PetalLength: values[2],
				PetalWidth:  values[3],
				Species:     cellAt(fields, columns[model.LabelColumn]),
			},
			invalid: invalid,
		})
	}

	known := rows[:0]
	for _, r := range rows {
		canonical, ok := lookup[normalizeLabel(r.record.Species, prefix)]
		if !ok {
			report.unknownCategory++
			continue
		}
		r.record.Species = canonical
		known = append(known, r)
	}
	if len(known) == 0 {
		return nil, report, apperrors.New(apperrors.KindDataLoad, "no rows with a known category")
	}

	records := make([]model.Record, 0, len(known))
	for _, r := range known {
		if r.invalid {
			report.invalidValue++
			continue
		}
		records = append(records, r.record)
	}
	if len(records) == 0 {
		return nil, report, apperrors.New(apperrors.KindDataLoad, "no valid rows after cleaning")
	}
	return records, report, nil
}

func normalizeLabel(label, prefix string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if prefix != "" {
		label = strings.TrimPrefix(label, prefix)
	}
	return label
}

func cellAt(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func featureNames() []string {
	features := model.Features()
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	return names
}
