package reporting

import (
	"fmt"
	"sort"

	"rrdexport/internal/rrdtool"
)

// AggregateFunc folds the present values of one row; values is never empty.
type AggregateFunc func(values []float64) float64

var aggregations = map[string]AggregateFunc{
	"min":  minOf,
	"mean": meanOf,
	"max":  maxOf,
}

// AggregationNames returns supported aggregation kinds in sorted order.
func AggregationNames() []string {
	names := make([]string, 0, len(aggregations))
	for name := range aggregations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupAggregation resolves an aggregation by name.
// Params: name aggregation kind.
// Returns: fold function or error naming the invalid kind.
func lookupAggregation(name string) (AggregateFunc, error) {
	fn, ok := aggregations[name]
	if !ok {
		return nil, fmt.Errorf("aggregation %q is invalid", name)
	}
	return fn, nil
}

// Aggregate computes per-row statistics across all columns, skipping absent cells.
// Params: rows row-major sample matrix; kinds aggregation names.
// Returns: kind -> one value per row (absent for rows without values), or ConfigurationError for an unknown kind.
func Aggregate(rows [][]rrdtool.Sample, kinds []string) (map[string][]rrdtool.Sample, error) {
	funcs := make([]AggregateFunc, len(kinds))
	for idx, kind := range kinds {
		fn, err := lookupAggregation(kind)
		if err != nil {
			return nil, &ConfigurationError{Reason: err.Error()}
		}
		funcs[idx] = fn
	}

	out := make(map[string][]rrdtool.Sample, len(kinds))
	for _, kind := range kinds {
		out[kind] = make([]rrdtool.Sample, len(rows))
	}

	present := make([]float64, 0, 16)
	for r, row := range rows {
		present = present[:0]
		for _, cell := range row {
			if cell.Valid {
				present = append(present, cell.Value)
			}
		}
		if len(present) == 0 {
			continue
		}
		for idx, kind := range kinds {
			out[kind][r] = rrdtool.Value(funcs[idx](present))
		}
	}
	return out, nil
}

func minOf(values []float64) float64 {
	result := values[0]
	for _, v := range values[1:] {
		if v < result {
			result = v
		}
	}
	return result
}

func maxOf(values []float64) float64 {
	result := values[0]
	for _, v := range values[1:] {
		if v > result {
			result = v
		}
	}
	return result
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
