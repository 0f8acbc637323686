package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/scoretune/internal/dataset"
	"github.com/KaramelBytes/scoretune/internal/logger"
	"github.com/KaramelBytes/scoretune/internal/metrics"
	"github.com/KaramelBytes/scoretune/internal/model"
	"github.com/KaramelBytes/scoretune/internal/report"
	"github.com/KaramelBytes/scoretune/internal/study"
	"github.com/KaramelBytes/scoretune/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	resModelPath string
	resTestPath  string
	resTablesTo  string
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Report a saved model's coefficients and its prediction error on the test data",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		f := cmd.Flags()
		modelPath := filepath.Join(c.OutputDir, "models", string(model.KindRidge)+"_best_model.json")
		if f.Changed("model") {
			modelPath = resModelPath
		}
		testPath := c.TestPath
		if f.Changed("test") {
			testPath = resTestPath
		}
		tablesTo := filepath.Join(c.OutputDir, "tables")
		if f.Changed("tables-to") {
			tablesTo = resTablesTo
		}
		log := logger.FromContext(cmd.Context())

		m, err := model.Load(modelPath)
		if err != nil {
			return err
		}
		if len(m.Features) != len(m.Coef) {
			return fmt.Errorf("model %s lists %d features for %d coefficients", modelPath, len(m.Features), len(m.Coef))
		}
		log.Info("loaded model", zap.String("kind", string(m.Kind)), zap.Float64("alpha", m.Alpha))

		coefs, err := report.Coefficients(m.Features, m.Coef)
		if err != nil {
			return err
		}
		var coefBuf bytes.Buffer
		if err := report.WriteCoefficientsCSV(&coefBuf, coefs); err != nil {
			return err
		}
		coefPath := filepath.Join(tablesTo, "feat-coefs.csv")
		if err := utils.SafeWriteFile(coefPath, coefBuf.Bytes()); err != nil {
			return fmt.Errorf("write coefficients: %w", err)
		}

		log.Info("scoring test data", zap.String("path", testPath))
		frame, err := dataset.ReadCSVFile(testPath)
		if err != nil {
			return err
		}
		target := m.Target
		if target == "" {
			target = c.Target
		}
		fill := m.Fill
		if len(fill) != len(m.Features) {
			// models saved without fill values impute from the test data
			if fill, err = frame.FillValues(m.Features, c.ZeroFill); err != nil {
				return err
			}
		}
		X, y, err := frame.XYFill(target, m.Features, fill)
		if err != nil {
			return err
		}
		pred, err := m.Predict(X)
		if err != nil {
			return err
		}
		pe, err := metrics.NewPredictionError(y, pred)
		if err != nil {
			return err
		}
		var peBuf bytes.Buffer
		if err := pe.WriteCSV(&peBuf); err != nil {
			return err
		}
		pePath := filepath.Join(tablesTo, "pred-error.csv")
		if err := utils.SafeWriteFile(pePath, peBuf.Bytes()); err != nil {
			return fmt.Errorf("write prediction error: %w", err)
		}

		if err := recordArtifacts(cmd, c, []artifactFile{
			{coefPath, study.KindTable, string(m.Kind) + " feature coefficients"},
			{pePath, study.KindTable, string(m.Kind) + " actual vs predicted on test data"},
		}); err != nil {
			return err
		}
		fmt.Printf("✓ %s (alpha=%.4g) on %s: %s\n", m.Kind, m.Alpha, filepath.Base(testPath), pe.Summary())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.Flags().StringVar(&resModelPath, "model", "", "saved model JSON (default <output_dir>/models/ridge_best_model.json)")
	resultsCmd.Flags().StringVar(&resTestPath, "test", "", "test CSV (default test_path from config)")
	resultsCmd.Flags().StringVar(&resTablesTo, "tables-to", "", "directory for result tables (default <output_dir>/tables)")
}
