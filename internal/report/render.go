package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteCSV writes the report with the rank column as header row and one
// line per attribute.
func (t *TopModels) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(t.Ranks)+1)
	header = append(header, t.RankColumn)
	for _, r := range t.Ranks {
		header = append(header, strconv.Itoa(r))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range t.Rows {
		rec := make([]string, 0, len(row.Values)+1)
		rec = append(rec, row.Name)
		for _, v := range row.Values {
			rec = append(rec, formatValue(v))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", row.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Markdown renders the report as a table for terminals and docs.
func (t *TopModels) Markdown() string {
	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(t.RankColumn)
	for _, r := range t.Ranks {
		fmt.Fprintf(&b, " | %d", r)
	}
	b.WriteString(" |\n|---")
	for range t.Ranks {
		b.WriteString("|---")
	}
	b.WriteString("|\n")
	for _, row := range t.Rows {
		b.WriteString("| ")
		b.WriteString(row.Name)
		for _, v := range row.Values {
			b.WriteString(" | ")
			b.WriteString(strings.ReplaceAll(formatValue(v), "|", "/"))
		}
		b.WriteString(" |\n")
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
