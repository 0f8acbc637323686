package analysis

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var surveyRows = []string{
	"id,date,age,Eng_start,education,q1,q2,constant,correct",
	"1,2014-05-01,25,5,Graduate Degree,1,0,7,0.9",
	"2,2014-05-01,31,10,Some Graduate School,0,1,7,0.8",
	"3,2014-05-02,,3,Graduate Degree,1,1,7,0.95",
	"4,2014-05-02,45,20,High School Degree (12-13 years),0,0,7,0.6",
	"5,2014-05-03,19,7,Graduate Degree,1,0,7,0.85",
	"6,2014-05-03,52,,Undergraduate Degree (3-5 years higher ed),NA,1,7,0.7",
}

func writeCSV(t *testing.T, rows []string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "train_data.csv")
	if err := os.WriteFile(p, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return p
}

func TestAnalyzeCSVAndMarkdown(t *testing.T) {
	p := writeCSV(t, surveyRows)
	rep, err := AnalyzeCSV(p, DefaultOptions())
	if err != nil {
		t.Fatalf("AnalyzeCSV: %v", err)
	}
	if rep.Name != "train_data.csv" || rep.Rows != 6 || rep.Processed != 6 {
		t.Fatalf("unexpected header info: %+v", rep)
	}
	kinds := map[string]string{
		"id": KindNumeric, "date": KindDatetime, "age": KindNumeric,
		"education": KindCategorical, "q1": KindNumeric, "correct": KindNumeric,
	}
	for name, want := range kinds {
		c, ok := rep.Column(name)
		if !ok {
			t.Fatalf("column %s missing", name)
		}
		if c.Kind != want {
			t.Errorf("%s kind = %s, want %s", name, c.Kind, want)
		}
	}

	age, _ := rep.Column("age")
	checkStats(t, age, []float64{25, 31, 45, 19, 52})
	if age.Missing != 1 {
		t.Errorf("age missing = %d, want 1", age.Missing)
	}
	q1, _ := rep.Column("q1")
	if q1.Missing != 1 {
		t.Errorf("NA should count as missing, got %d", q1.Missing)
	}

	edu, _ := rep.Column("education")
	if len(edu.TopValues) == 0 || edu.TopValues[0].Value != "Graduate Degree" || edu.TopValues[0].Count != 3 {
		t.Errorf("unexpected top values: %+v", edu.TopValues)
	}

	md := rep.Markdown()
	for _, want := range []string{"[DATASET SUMMARY]", "Rows: 6", "- age: numeric", "[CORRELATIONS]", "[HEAD AND SAMPLE ROWS]"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMaxRowsWarning(t *testing.T) {
	p := writeCSV(t, surveyRows)
	rep, err := AnalyzeCSV(p, Options{MaxRows: 2})
	if err != nil {
		t.Fatalf("AnalyzeCSV: %v", err)
	}
	if rep.Processed != 2 || rep.Rows != 6 {
		t.Fatalf("processed %d of %d", rep.Processed, rep.Rows)
	}
	if len(rep.Warnings) != 1 {
		t.Fatalf("expected warning, got %v", rep.Warnings)
	}
	if rep.Corr != nil {
		t.Fatalf("correlations were not requested")
	}
}

func TestEmptyFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	rep, err := AnalyzeCSV(p, DefaultOptions())
	if err != nil {
		t.Fatalf("AnalyzeCSV: %v", err)
	}
	if len(rep.Cols) != 0 || len(CorrelationColumns(rep)) != 0 {
		t.Fatalf("expected empty report, got %+v", rep)
	}
}

func TestCorrelationColumnsDropConstant(t *testing.T) {
	rows := []string{
		"A,B,C,D,E",
		"1,5,1,2,1",
		"2,6,1,2,2",
		"3,7,1,2,1",
		"4,8,1,2,2",
		"5,9,1,2,",
	}
	rep, err := AnalyzeReader(strings.NewReader(strings.Join(rows, "\n")), "sample", DefaultOptions())
	if err != nil {
		t.Fatalf("AnalyzeReader: %v", err)
	}
	got := CorrelationColumns(rep)
	if !equalStrings(got, []string{"A", "B", "E"}) {
		t.Fatalf("correlation columns = %v", got)
	}
	if !equalStrings(rep.Corr.Columns, got) {
		t.Fatalf("matrix columns = %v", rep.Corr.Columns)
	}
	if !almostEqual(rep.Corr.Values[0][1], 1, 1e-12) || rep.Corr.Values[1][1] != 1 {
		t.Errorf("A~B should be perfectly correlated: %v", rep.Corr.Values)
	}
	// E is compared on the four rows where it is present
	want := correlation([]float64{1, 2, 3, 4}, []float64{1, 2, 1, 2})
	if !almostEqual(rep.Corr.Values[0][2], want, 1e-12) {
		t.Errorf("A~E = %v, want %v", rep.Corr.Values[0][2], want)
	}

	allConst, err := AnalyzeReader(strings.NewReader("A,B\n1,2\n1,2\n1,2\n"), "const", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(CorrelationColumns(allConst)) != 0 {
		t.Errorf("constant columns must be excluded")
	}
}

func TestCorrMatrixWriteCSV(t *testing.T) {
	m := &CorrMatrix{Columns: []string{"a", "b"}, Values: [][]float64{{1, 0.5}, {0.5, 1}}}
	var buf bytes.Buffer
	if err := m.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != ",a,b\na,1,0.5\nb,0.5,1\n" {
		t.Fatalf("csv = %q", got)
	}
}

func TestHistogramColumnsIgnoreUnknownExclusions(t *testing.T) {
	rep, err := AnalyzeReader(strings.NewReader("Numeric,Text,Other\n1,x,4\n2,y,5\n3,z,6\n"), "mixed", Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := HistogramColumns(rep, []string{"Other", "does_not_exist"})
	if !equalStrings(got, []string{"Numeric"}) {
		t.Fatalf("histogram columns = %v", got)
	}
	if got := HistogramColumns(rep, nil); !equalStrings(got, []string{"Numeric", "Other"}) {
		t.Fatalf("no exclusions = %v", got)
	}
}

func TestHistogramCounts(t *testing.T) {
	rep, err := AnalyzeReader(strings.NewReader("x,k\n0,1\n1,1\n2,1\n3,1\n4,1\n,1\n"), "h", Options{})
	if err != nil {
		t.Fatal(err)
	}
	h, err := rep.Histogram("x", 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Edges) != 5 || h.Edges[0] != 0 || h.Edges[4] != 4 {
		t.Fatalf("edges = %v", h.Edges)
	}
	// the max lands in the last bin
	want := []float64{1, 1, 1, 2}
	for i := range want {
		if h.Counts[i] != want[i] {
			t.Fatalf("counts = %v, want %v", h.Counts, want)
		}
	}

	flat, err := rep.Histogram("k", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat.Counts) != DefaultBins {
		t.Fatalf("default bins = %d", len(flat.Counts))
	}
	var total float64
	for _, c := range flat.Counts {
		total += c
	}
	if total != 6 {
		t.Fatalf("constant column total = %v", total)
	}

	if _, err := rep.Histogram("missing", 10); err == nil {
		t.Fatal("expected error for unknown column")
	}

	var buf bytes.Buffer
	if err := WriteHistogramsCSV(&buf, []*Histogram{h}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 || lines[0] != "column,bin_start,bin_end,count" || lines[4] != "x,3,4,2" {
		t.Fatalf("histogram csv = %v", lines)
	}
}

func TestCategoricalHelpers(t *testing.T) {
	p := writeCSV(t, surveyRows)
	rep, err := AnalyzeCSV(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	counts, err := rep.ValueCounts("education")
	if err != nil {
		t.Fatal(err)
	}
	frequent := FrequentCategories(counts, 1)
	if !equalStrings(frequent, []string{"Graduate Degree"}) {
		t.Fatalf("frequent = %v", frequent)
	}
	mapped := MapToOther([]string{"Graduate Degree", "PhD", "Graduate Degree"}, frequent)
	if !equalStrings(mapped, []string{"Graduate Degree", OtherCategory, "Graduate Degree"}) {
		t.Fatalf("mapped = %v", mapped)
	}
	collapsed := CollapseCounts(counts, frequent)
	if len(collapsed) != 2 || collapsed[1].Value != OtherCategory || collapsed[1].Count != 3 {
		t.Fatalf("collapsed = %+v", collapsed)
	}

	var buf bytes.Buffer
	if err := WriteDistributionsCSV(&buf, []Distribution{{Column: "education", Counts: collapsed}}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "education,Others,3") {
		t.Fatalf("distribution csv = %s", buf.String())
	}
	if _, err := rep.ValueCounts("nope"); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestCollapseCountsMatchesMapToOther(t *testing.T) {
	values := []string{"PhD", "Graduate Degree", "PhD", "Some College", "Graduate Degree", "PhD", "Others"}
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	ranked := topValues(counts, 0)
	keep := FrequentCategories(ranked, 1)
	if !equalStrings(keep, []string{"PhD", "Graduate Degree"}) {
		t.Fatalf("keep = %v", keep)
	}

	mapped := make(map[string]int)
	for _, v := range MapToOther(values, keep) {
		mapped[v]++
	}
	collapsed := CollapseCounts(ranked, keep)
	if len(collapsed) != len(mapped) {
		t.Fatalf("collapsed %+v, mapped %v", collapsed, mapped)
	}
	for _, c := range collapsed {
		if mapped[c.Value] != c.Count {
			t.Errorf("%s: collapsed %d, mapped %d", c.Value, c.Count, mapped[c.Value])
		}
	}
	// a literal Others value merges with the collapsed ones
	if last := collapsed[len(collapsed)-1]; last.Value != OtherCategory || last.Count != 2 {
		t.Fatalf("last = %+v", last)
	}
}

func TestAnalyzeSkipsLongRows(t *testing.T) {
	rep, err := AnalyzeReader(strings.NewReader("a,b\n1,2\n3,4,5\n6,7\n8\n"), "long", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Rows != 3 || rep.Processed != 3 {
		t.Fatalf("rows=%d processed=%d, want 3", rep.Rows, rep.Processed)
	}
	a, _ := rep.Column("a")
	if a.Max != 8 || a.NonNull != 3 {
		t.Fatalf("a = %+v", a)
	}
	b, _ := rep.Column("b")
	if b.Missing != 1 || b.Max != 7 {
		t.Fatalf("short row should leave b missing: %+v", b)
	}
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], "skipped 1 malformed rows") {
		t.Fatalf("warnings = %v", rep.Warnings)
	}
}

func TestPrefixHelpers(t *testing.T) {
	p := writeCSV(t, surveyRows)
	rep, err := AnalyzeCSV(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := Prefixed(rep, "q"); !equalStrings(got, []string{"q1", "q2"}) {
		t.Fatalf("prefixed = %v", got)
	}
	cols := ExcludePrefixed(NumericColumns(rep), "q")
	if !equalStrings(cols, []string{"id", "age", "Eng_start", "constant", "correct"}) {
		t.Fatalf("exclude prefixed = %v", cols)
	}
}

func checkStats(t *testing.T, col ColumnSummary, vals []float64) {
	t.Helper()
	if col.NonNull != len(vals) {
		t.Fatalf("%s non-null = %d, want %d", col.Name, col.NonNull, len(vals))
	}
	if !almostEqual(col.Mean, mean(vals), 1e-9) {
		t.Errorf("%s mean = %v, want %v", col.Name, col.Mean, mean(vals))
	}
	if !almostEqual(col.Std, sampleStd(vals), 1e-9) {
		t.Errorf("%s std = %v, want %v", col.Name, col.Std, sampleStd(vals))
	}
}

func mean(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func sampleStd(vals []float64) float64 {
	m := mean(vals)
	var s float64
	for _, v := range vals {
		s += (v - m) * (v - m)
	}
	return math.Sqrt(s / float64(len(vals)-1))
}

func correlation(a, b []float64) float64 {
	ma, mb := mean(a), mean(b)
	var num, da, db float64
	for i := range a {
		num += (a[i] - ma) * (b[i] - mb)
		da += (a[i] - ma) * (a[i] - ma)
		db += (b[i] - mb) * (b[i] - mb)
	}
	return num / math.Sqrt(da*db)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }
