package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column kinds inferred by AnalyzeCSV.
const (
	KindNumeric     = "numeric"
	KindDatetime    = "datetime"
	KindCategorical = "categorical"
	KindText        = "text"
	KindEmpty       = "empty"
)

// maxCategories bounds the distinct values tracked per column.
const maxCategories = 10000

// Options controls analysis behavior for tabular data.
type Options struct {
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// Delimiter for CSV. If 0, ',' is used unless the file ends in .tsv.
	Delimiter rune
	// Correlations computes a Pearson matrix after the scan.
	Correlations bool
	// CorrColumns restricts the matrix. Empty means CorrelationColumns(report).
	CorrColumns []string
}

// DefaultOptions returns reasonable defaults for dataset analysis.
func DefaultOptions() Options {
	return Options{
		MaxRows:      200000,
		SampleRows:   5,
		Correlations: true,
	}
}

// Report is a markdown-friendly analysis of a tabular dataset.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Samples   [][]string
	Warnings  []string
	Corr      *CorrMatrix

	// series holds one value per processed row for numeric columns, NaN
	// where the cell was blank.
	series map[string][]float64
	counts map[string]map[string]int
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Categorical top values
	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// AnalyzeCSV analyzes a CSV file and returns a Report.
func AnalyzeCSV(path string, opt Options) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	return AnalyzeReader(f, filepath.Base(path), opt)
}

// AnalyzeReader analyzes CSV data from r under the given report name. A zero
// opt.Delimiter means a comma.
func AnalyzeReader(r io.Reader, name string, opt Options) (*Report, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = ','
	}
	return analyze(r, name, delim, opt)
}

type colAcc struct {
	name   string
	nonNil int
	miss   int

	// numeric stats via Welford
	n      int
	mean   float64
	m2     float64
	min    float64
	max    float64
	numCnt int
	dtCnt  int
	txtCnt int
	cats   map[string]int
	exText []string
	values []float64
}

func analyze(src io.Reader, name string, delim rune, opt Options) (*Report, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	rep := &Report{Name: name, series: map[string][]float64{}, counts: map[string]map[string]int{}}
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	ncol := len(header)
	if ncol == 0 {
		return rep, nil
	}

	cols := make([]*colAcc, ncol)
	for i := range header {
		cols[i] = &colAcc{
			name: strings.TrimSpace(header[i]),
			min:  math.Inf(1),
			max:  math.Inf(-1),
			cats: make(map[string]int),
		}
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}

	skipped := 0
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", rep.Rows+skipped+1, err)
		}
		// rows longer than the header are malformed, as in dataset.ReadCSV
		if len(rec) > ncol {
			skipped++
			continue
		}
		rep.Rows++
		if len(rec) < ncol {
			tmp := make([]string, ncol)
			copy(tmp, rec)
			rec = tmp
		}
		if rep.Processed >= maxRows {
			continue
		}
		rep.Processed++

		if len(rep.Samples) < sampleRows {
			rowCopy := make([]string, ncol)
			copy(rowCopy, rec[:ncol])
			rep.Samples = append(rep.Samples, rowCopy)
		}
		for j := 0; j < ncol; j++ {
			c := cols[j]
			v := strings.TrimSpace(rec[j])
			if isNA(v) {
				c.miss++
				c.values = append(c.values, math.NaN())
				continue
			}
			c.nonNil++
			if len(c.cats) < maxCategories || c.cats[v] > 0 {
				c.cats[v]++
			}
			if x, err := strconv.ParseFloat(v, 64); err == nil {
				c.numCnt++
				c.n++
				if x < c.min {
					c.min = x
				}
				if x > c.max {
					c.max = x
				}
				delta := x - c.mean
				c.mean += delta / float64(c.n)
				c.m2 += delta * (x - c.mean)
				c.values = append(c.values, x)
				continue
			}
			c.values = append(c.values, math.NaN())
			if _, ok := parseTimeMaybe(v); ok {
				c.dtCnt++
				continue
			}
			c.txtCnt++
			if len(c.exText) < 3 {
				c.exText = append(c.exText, v)
			}
		}
	}

	rep.Cols = make([]ColumnSummary, 0, ncol)
	for _, c := range cols {
		s := ColumnSummary{Name: c.name, NonNull: c.nonNil, Missing: c.miss, Unique: len(c.cats)}
		switch {
		case c.nonNil == 0:
			s.Kind = KindEmpty
		case c.numCnt == c.nonNil:
			// every present cell parsed as a number
			s.Kind = KindNumeric
			s.Min = c.min
			s.Max = c.max
			s.Mean = c.mean
			if c.n > 1 {
				s.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			if _, dup := rep.series[c.name]; !dup {
				rep.series[c.name] = c.values
			}
		case c.dtCnt >= c.txtCnt && c.dtCnt > 0 && c.numCnt == 0:
			s.Kind = KindDatetime
		case len(c.cats) > 0 && len(c.cats) <= maxCategories/10:
			s.Kind = KindCategorical
			s.TopValues = topValues(c.cats, 8)
		default:
			s.Kind = KindText
			s.ExampleTexts = c.exText
		}
		if _, dup := rep.counts[c.name]; !dup {
			rep.counts[c.name] = c.cats
		}
		rep.Cols = append(rep.Cols, s)
	}

	if skipped > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("skipped %d malformed rows", skipped))
	}
	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}

	if opt.Correlations {
		sel := opt.CorrColumns
		if len(sel) == 0 {
			sel = CorrelationColumns(rep)
		}
		cm, err := rep.Correlation(sel)
		if err != nil {
			return nil, err
		}
		rep.Corr = cm
	}
	return rep, nil
}

// Column returns the summary of the named column.
func (r *Report) Column(name string) (ColumnSummary, bool) {
	for _, c := range r.Cols {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSummary{}, false
}

// Values returns the per-row values of a numeric column, NaN where blank.
func (r *Report) Values(column string) ([]float64, error) {
	v, ok := r.series[column]
	if !ok {
		return nil, fmt.Errorf("column %q is not numeric", column)
	}
	return v, nil
}

func topValues(cats map[string]int, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if limit > 0 && len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

// isNA reports whether a cell counts as missing.
func isNA(v string) bool {
	switch v {
	case "", "NA", "N/A", "NaN", "nan", "null", "NULL":
		return true
	}
	return false
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
		"15:04:05", "15:04",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Markdown renders a compact summary for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	if r.Rows > 0 {
		if r.Processed > 0 && r.Processed < r.Rows {
			b.WriteString(fmt.Sprintf("Rows: ~%d (processed %d)\n", r.Rows, r.Processed))
		} else {
			b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
		}
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case KindNumeric:
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		case KindCategorical:
			if len(c.TopValues) > 0 {
				b.WriteString(": top ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		case KindText:
			if len(c.ExampleTexts) > 0 {
				b.WriteString(": e.g. ")
				for i, ex := range c.ExampleTexts {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(safeVal(ex))
				}
			}
		}
		b.WriteString("\n")
	}
	if r.Corr != nil && len(r.Corr.Columns) >= 2 {
		b.WriteString("\n[CORRELATIONS]\n")
		pairs := r.Corr.TopPairs(10)
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n| ")
		for i := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
