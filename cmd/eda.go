package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/scoretune/internal/analysis"
	"github.com/KaramelBytes/scoretune/internal/logger"
	"github.com/KaramelBytes/scoretune/internal/study"
	"github.com/KaramelBytes/scoretune/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	edaTrainPath   string
	edaTablesTo    string
	edaDrop        []string
	edaPrefix      string
	edaBins        int
	edaCategorical []string
	edaCollapse    []string
	edaMinCount    int
	edaMaxRows     int
)

// edaIdentifierColumns never enter the correlation matrix.
var edaIdentifierColumns = []string{"Unnamed: 0", "date", "time", "id"}

var edaCmd = &cobra.Command{
	Use:   "eda",
	Short: "Summarize the training data: schema, histograms, correlations and category counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		f := cmd.Flags()
		trainPath := c.TrainPath
		if f.Changed("training-data") {
			trainPath = edaTrainPath
		}
		tablesTo := filepath.Join(c.OutputDir, "tables")
		if f.Changed("tables-to") {
			tablesTo = edaTablesTo
		}
		drop := c.DropFeatures
		if f.Changed("drop") {
			drop = edaDrop
		}
		prefix := c.QuestionPrefix
		if f.Changed("question-prefix") {
			prefix = edaPrefix
		}
		bins := c.HistBins
		if f.Changed("bins") {
			bins = edaBins
		}
		log := logger.FromContext(cmd.Context())

		opt := analysis.DefaultOptions()
		opt.Correlations = false
		opt.MaxRows = edaMaxRows
		rep, err := analysis.AnalyzeCSV(trainPath, opt)
		if err != nil {
			return err
		}
		log.Info("loaded training dataset", zap.String("path", trainPath), zap.Int("rows", rep.Rows))

		log.Info("binning numeric features")
		exclude := append(append([]string(nil), drop...), analysis.Prefixed(rep, prefix)...)
		hists, err := rep.Histograms(analysis.HistogramColumns(rep, exclude), bins)
		if err != nil {
			return err
		}

		log.Info("computing correlation matrix")
		corrCols := without(analysis.ExcludePrefixed(analysis.CorrelationColumns(rep), prefix), edaIdentifierColumns)
		rep.Corr, err = rep.Correlation(corrCols)
		if err != nil {
			return err
		}
		log.Debug("correlation columns", zap.Strings("columns", corrCols))

		log.Info("counting categorical features")
		collapse := toSet(edaCollapse)
		var dists []analysis.Distribution
		for _, col := range edaCategorical {
			counts, err := rep.ValueCounts(col)
			if err != nil {
				log.Warn("skipping categorical column", zap.String("column", col), zap.Error(err))
				continue
			}
			if _, ok := collapse[col]; ok {
				counts = analysis.CollapseCounts(counts, analysis.FrequentCategories(counts, edaMinCount))
			}
			dists = append(dists, analysis.Distribution{Column: col, Counts: counts})
		}

		outputs := []struct {
			name, desc string
			write      func(*bytes.Buffer) error
		}{
			{"eda-summary.md", "dataset summary", func(b *bytes.Buffer) error {
				_, err := b.WriteString(rep.Markdown())
				return err
			}},
			{"histograms.csv", "numeric feature histograms", func(b *bytes.Buffer) error {
				return analysis.WriteHistogramsCSV(b, hists)
			}},
			{"correlation-matrix.csv", "Pearson correlation matrix", func(b *bytes.Buffer) error {
				return rep.Corr.WriteCSV(b)
			}},
			{"categorical-distributions.csv", "categorical value counts", func(b *bytes.Buffer) error {
				return analysis.WriteDistributionsCSV(b, dists)
			}},
		}
		var written []artifactFile
		for _, o := range outputs {
			var buf bytes.Buffer
			if err := o.write(&buf); err != nil {
				return fmt.Errorf("render %s: %w", o.name, err)
			}
			path := filepath.Join(tablesTo, o.name)
			if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
				return fmt.Errorf("write %s: %w", o.name, err)
			}
			kind := study.KindTable
			if o.name == "eda-summary.md" {
				kind = study.KindSummary
			}
			written = append(written, artifactFile{path, kind, o.desc})
		}
		if err := recordArtifacts(cmd, c, written); err != nil {
			return err
		}
		fmt.Printf("✓ EDA of %d rows: %d histograms, %dx%d correlation matrix, %d categorical tables in %s\n",
			rep.Rows, len(hists), len(corrCols), len(corrCols), len(dists), tablesTo)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(edaCmd)
	edaCmd.Flags().StringVar(&edaTrainPath, "training-data", "", "training CSV (default train_path from config)")
	edaCmd.Flags().StringVar(&edaTablesTo, "tables-to", "", "directory for EDA tables (default <output_dir>/tables)")
	edaCmd.Flags().StringSliceVar(&edaDrop, "drop", nil, "columns left out of the histograms (default drop_features from config)")
	edaCmd.Flags().StringVar(&edaPrefix, "question-prefix", "", "prefix of question columns excluded from histograms and correlations")
	edaCmd.Flags().IntVar(&edaBins, "bins", analysis.DefaultBins, "histogram bins")
	edaCmd.Flags().StringSliceVar(&edaCategorical, "categorical", []string{"education", "Eng_little", "speaker_cat"}, "columns to count categories for")
	edaCmd.Flags().StringSliceVar(&edaCollapse, "collapse", []string{"education"}, "categorical columns whose rare values merge into Others")
	edaCmd.Flags().IntVar(&edaMinCount, "min-count", 100, "values seen at most this often are rare")
	edaCmd.Flags().IntVar(&edaMaxRows, "max-rows", 0, "maximum rows to process (0 = unlimited)")
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func without(items, drop []string) []string {
	skip := toSet(drop)
	var out []string
	for _, it := range items {
		if _, ok := skip[it]; !ok {
			out = append(out, it)
		}
	}
	return out
}
