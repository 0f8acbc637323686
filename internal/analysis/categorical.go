package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// OtherCategory replaces values collapsed by MapToOther.
const OtherCategory = "Others"

// ValueCounts returns the counts of every distinct present value of a
// column, most frequent first.
func (r *Report) ValueCounts(column string) ([]CategoryCount, error) {
	cats, ok := r.counts[column]
	if !ok {
		return nil, fmt.Errorf("column %q not found", column)
	}
	return topValues(cats, 0), nil
}

// FrequentCategories returns the values seen more than min times.
func FrequentCategories(counts []CategoryCount, min int) []string {
	var out []string
	for _, c := range counts {
		if c.Count > min {
			out = append(out, c.Value)
		}
	}
	return out
}

// MapToOther keeps the values listed in keep and replaces all others with
// OtherCategory.
func MapToOther(values, keep []string) []string {
	set := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		set[k] = struct{}{}
	}
	out := make([]string, len(values))
	for i, v := range values {
		if _, ok := set[v]; ok {
			out[i] = v
		} else {
			out[i] = OtherCategory
		}
	}
	return out
}

// CollapseCounts maps the counted values through MapToOther and merges
// every value mapped to OtherCategory into one entry placed last.
func CollapseCounts(counts []CategoryCount, keep []string) []CategoryCount {
	values := make([]string, len(counts))
	for i, c := range counts {
		values[i] = c.Value
	}
	var out []CategoryCount
	other := 0
	for i, v := range MapToOther(values, keep) {
		if v == OtherCategory {
			other += counts[i].Count
			continue
		}
		out = append(out, CategoryCount{Value: v, Count: counts[i].Count})
	}
	if other > 0 {
		out = append(out, CategoryCount{Value: OtherCategory, Count: other})
	}
	return out
}

// Distribution is the value counts of one column.
type Distribution struct {
	Column string
	Counts []CategoryCount
}

// WriteDistributionsCSV writes one column,value,count line per category.
func WriteDistributionsCSV(w io.Writer, dists []Distribution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"column", "value", "count"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, d := range dists {
		for _, c := range d.Counts {
			if err := cw.Write([]string{d.Column, c.Value, strconv.Itoa(c.Count)}); err != nil {
				return fmt.Errorf("write %s: %w", d.Column, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
