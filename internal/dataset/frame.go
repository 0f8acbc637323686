// Package dataset loads, samples, splits and writes the tabular survey data
// the tuning pipeline trains on.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Sampling and split defaults of the study pipeline.
const (
	DefaultSampleFrac = 0.3
	DefaultTestSize   = 0.3
	DefaultSeed       = 123
)

var (
	ErrNoHeader     = errors.New("dataset: missing header row")
	ErrUnknownCol   = errors.New("dataset: unknown column")
	ErrBadFraction  = errors.New("dataset: fraction must be in (0, 1]")
	ErrEmptyFrame   = errors.New("dataset: no rows")
	ErrNotNumeric   = errors.New("dataset: value is not numeric")
	ErrAllMissing   = errors.New("dataset: column has no values to impute from")
	ErrDupFeature   = errors.New("dataset: duplicate feature")
	ErrTargetAsFeat = errors.New("dataset: target listed as feature")
)

// Frame is a CSV table held as strings. Cells are parsed on demand.
type Frame struct {
	Header  []string
	Records [][]string
	// Skipped counts malformed rows dropped while reading.
	Skipped int
}

// ReadCSV reads a comma separated table. Rows with more fields than the
// header, or that fail to parse, are skipped. Short rows are padded with
// blank (missing) cells.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	f := &Frame{Header: header}
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				f.Skipped++
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", len(f.Records)+f.Skipped+1, err)
		}
		if len(rec) > len(header) {
			f.Skipped++
			continue
		}
		if len(rec) < len(header) {
			full := make([]string, len(header))
			copy(full, rec)
			rec = full
		}
		f.Records = append(f.Records, rec)
	}
	return f, nil
}

// ReadCSVFile reads the table at path.
func ReadCSVFile(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer fh.Close()
	f, err := ReadCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Records) }

// ColumnIndex returns the position of a column.
func (f *Frame) ColumnIndex(name string) (int, bool) {
	for i, h := range f.Header {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

func (f *Frame) subset(idx []int) *Frame {
	out := &Frame{Header: append([]string(nil), f.Header...), Records: make([][]string, len(idx))}
	for i, j := range idx {
		out.Records[i] = f.Records[j]
	}
	return out
}

// Sample draws round(frac * Len) rows without replacement in random order.
func (f *Frame) Sample(frac float64, seed int64) (*Frame, error) {
	if frac <= 0 || frac > 1 || math.IsNaN(frac) {
		return nil, fmt.Errorf("%w: got %v", ErrBadFraction, frac)
	}
	n := int(math.Round(frac * float64(f.Len())))
	perm := rand.New(rand.NewSource(seed)).Perm(f.Len())
	return f.subset(perm[:n]), nil
}

// TrainTestSplit shuffles the rows and puts ceil(testSize * Len) of them in
// the test frame and the rest in the train frame.
func (f *Frame) TrainTestSplit(testSize float64, seed int64) (train, test *Frame, err error) {
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, nil, fmt.Errorf("%w: test size %v", ErrBadFraction, testSize)
	}
	n := f.Len()
	nTest := int(math.Ceil(testSize*float64(n) - 1e-9))
	if n < 2 || nTest >= n {
		return nil, nil, fmt.Errorf("%w: cannot split %d rows with test size %v", ErrEmptyFrame, n, testSize)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return f.subset(perm[nTest:]), f.subset(perm[:nTest]), nil
}

// NumericColumns lists the columns whose present cells all parse as numbers,
// skipping the names in exclude.
func (f *Frame) NumericColumns(exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}
	var out []string
	for j, h := range f.Header {
		if _, ok := skip[h]; ok {
			continue
		}
		seen, numeric := false, true
		for _, rec := range f.Records {
			v := strings.TrimSpace(rec[j])
			if isMissing(v) {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric = false
				break
			}
		}
		if seen && numeric {
			out = append(out, h)
		}
	}
	return out
}

// XY builds the feature matrix and target vector. Missing feature cells are
// filled with the median of the column's present values; a missing or
// non-numeric target, or a non-numeric feature cell, is an error.
func (f *Frame) XY(target string, features []string) (*mat.Dense, []float64, error) {
	fill, err := f.Medians(features)
	if err != nil {
		return nil, nil, err
	}
	return f.XYFill(target, features, fill)
}

// Medians returns the median of the present values of each feature column.
func (f *Frame) Medians(features []string) ([]float64, error) {
	idx, err := f.featureIndex(features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for k, j := range idx {
		var present []float64
		for i, rec := range f.Records {
			v, err := parseCell(rec[j])
			if err != nil {
				return nil, fmt.Errorf("feature %q row %d: %w", features[k], i+1, err)
			}
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		if len(present) == 0 {
			return nil, fmt.Errorf("feature %q: %w", features[k], ErrAllMissing)
		}
		out[k] = median(present)
	}
	return out, nil
}

// FillValues returns one fill value per feature: 0 for the features listed
// in zero, the column median for the rest.
func (f *Frame) FillValues(features, zero []string) ([]float64, error) {
	zeroSet := make(map[string]struct{}, len(zero))
	for _, z := range zero {
		zeroSet[z] = struct{}{}
	}
	var byMedian []string
	for _, name := range features {
		if _, ok := zeroSet[name]; !ok {
			byMedian = append(byMedian, name)
		}
	}
	if _, err := f.featureIndex(features); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	if len(byMedian) == 0 {
		return out, nil
	}
	meds, err := f.Medians(byMedian)
	if err != nil {
		return nil, err
	}
	k := 0
	for i, name := range features {
		if _, ok := zeroSet[name]; ok {
			continue
		}
		out[i] = meds[k]
		k++
	}
	return out, nil
}

// XYFill is XY with caller-provided fill values, one per feature, such as
// the training medians stored with a fitted model.
func (f *Frame) XYFill(target string, features []string, fill []float64) (*mat.Dense, []float64, error) {
	if f.Len() == 0 {
		return nil, nil, ErrEmptyFrame
	}
	if len(fill) != len(features) {
		return nil, nil, fmt.Errorf("dataset: %d fill values for %d features", len(fill), len(features))
	}
	ti, ok := f.ColumnIndex(target)
	if !ok {
		return nil, nil, fmt.Errorf("%w: target %q", ErrUnknownCol, target)
	}
	for _, name := range features {
		if name == target {
			return nil, nil, fmt.Errorf("%w: %q", ErrTargetAsFeat, name)
		}
	}
	idx, err := f.featureIndex(features)
	if err != nil {
		return nil, nil, err
	}

	rows := f.Len()
	y := make([]float64, rows)
	for i, rec := range f.Records {
		v, err := parseCell(rec[ti])
		if err != nil || math.IsNaN(v) {
			return nil, nil, fmt.Errorf("target %q row %d: %w", target, i+1, ErrNotNumeric)
		}
		y[i] = v
	}

	X := mat.NewDense(rows, len(features), nil)
	for k, j := range idx {
		for i, rec := range f.Records {
			v, err := parseCell(rec[j])
			if err != nil {
				return nil, nil, fmt.Errorf("feature %q row %d: %w", features[k], i+1, err)
			}
			if math.IsNaN(v) {
				v = fill[k]
			}
			X.Set(i, k, v)
		}
	}
	return X, y, nil
}

func (f *Frame) featureIndex(features []string) ([]int, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no features selected", ErrUnknownCol)
	}
	idx := make([]int, len(features))
	seen := make(map[string]struct{}, len(features))
	for k, name := range features {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDupFeature, name)
		}
		seen[name] = struct{}{}
		j, ok := f.ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: feature %q", ErrUnknownCol, name)
		}
		idx[k] = j
	}
	return idx, nil
}

// WriteCSV writes the header and rows.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(f.Records); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// parseCell returns NaN for a missing cell.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return v, nil
}

func isMissing(s string) bool {
	switch s {
	case "", "NA", "N/A", "NaN", "nan", "null", "NULL":
		return true
	}
	return false
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}
