package cmd

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	cfgpkg "github.com/KaramelBytes/scoretune/internal/config"
	"github.com/KaramelBytes/scoretune/internal/dataset"
	"github.com/KaramelBytes/scoretune/internal/logger"
	"github.com/KaramelBytes/scoretune/internal/model"
	"github.com/KaramelBytes/scoretune/internal/report"
	"github.com/KaramelBytes/scoretune/internal/search"
	"github.com/KaramelBytes/scoretune/internal/study"
	"github.com/KaramelBytes/scoretune/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// tuneScoring names each reported metric after the scorer it uses.
var tuneScoring = map[string]string{
	"RMSE":      "neg_root_mean_squared_error",
	"R squared": "r2",
}

var (
	tuneTrainPath string
	tuneOutputDir string
	tuneTarget    string
	tuneFeatures  []string
	tuneModels    []string
	tuneTopN      int
	tuneNIter     int
	tuneFolds     int
	tuneJobs      int
	tuneSeed      int64
	tunePrint     bool
)

type tuneSettings struct {
	trainPath string
	outputDir string
	target    string
	features  []string
	topN      int
	nIter     int
	folds     int
	jobs      int
	seed      int64
	alphaLow  float64
	alphaHigh float64
	refit     string
	zeroFill  []string
}

func resolveTuneSettings(cmd *cobra.Command, c *cfgpkg.Global) tuneSettings {
	s := tuneSettings{
		trainPath: c.TrainPath,
		outputDir: c.OutputDir,
		target:    c.Target,
		features:  c.Features,
		topN:      c.TopN,
		nIter:     c.NIter,
		folds:     c.CVFolds,
		jobs:      c.NJobs,
		seed:      c.Seed,
		alphaLow:  c.AlphaLow,
		alphaHigh: c.AlphaHigh,
		refit:     c.Refit,
		zeroFill:  c.ZeroFill,
	}
	f := cmd.Flags()
	if f.Changed("train") {
		s.trainPath = tuneTrainPath
	}
	if f.Changed("output-dir") {
		s.outputDir = tuneOutputDir
	}
	if f.Changed("target") {
		s.target = tuneTarget
	}
	if f.Changed("features") {
		s.features = tuneFeatures
	}
	if f.Changed("top-n") {
		s.topN = tuneTopN
	}
	if f.Changed("n-iter") {
		s.nIter = tuneNIter
	}
	if f.Changed("cv") {
		s.folds = tuneFolds
	}
	if f.Changed("n-jobs") {
		s.jobs = tuneJobs
	}
	if f.Changed("seed") {
		s.seed = tuneSeed
	}
	return s
}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Run randomized alpha searches for Ridge and Lasso and save the top models",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		s := resolveTuneSettings(cmd, c)
		ctx := cmd.Context()
		log := logger.FromContext(ctx)

		log.Info("reading training data", zap.String("path", s.trainPath))
		frame, err := dataset.ReadCSVFile(s.trainPath)
		if err != nil {
			return err
		}
		fill, err := frame.FillValues(s.features, s.zeroFill)
		if err != nil {
			return err
		}
		X, y, err := frame.XYFill(s.target, s.features, fill)
		if err != nil {
			return err
		}
		log.Info("training matrix ready", zap.Int("rows", len(y)), zap.Int("features", len(s.features)))

		var written []artifactFile
		for _, name := range tuneModels {
			kind := model.Kind(name)
			files, err := tuneOne(ctx, kind, s, X, y, fill)
			if err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			written = append(written, files...)
		}
		return recordArtifacts(cmd, c, written)
	},
}

func tuneOne(ctx context.Context, kind model.Kind, s tuneSettings, X mat.Matrix, y, fill []float64) ([]artifactFile, error) {
	log := logger.FromContext(ctx).With(zap.String("model", string(kind)))
	if _, err := model.New(kind, 1); err != nil {
		return nil, err
	}
	factory := func(p search.Params) (search.Estimator, error) {
		return model.FromParams(kind, p)
	}
	cv := search.NewRandomizedSearch(factory,
		map[string]search.Distribution{"alpha": search.LogUniform{Low: s.alphaLow, High: s.alphaHigh}},
		s.nIter, s.seed,
		search.Options{Folds: s.folds, NJobs: s.jobs, Scoring: tuneScoring, Refit: s.refit})

	log.Info("running search", zap.Int("n_iter", s.nIter), zap.Int("folds", s.folds))
	top, err := report.BuildTopModels(ctx, cv, s.topN, X, y, report.Options{
		AdditionalColumns: []string{"param_alpha", "mean_train_R squared", "mean_test_R squared"},
		ReturnTrainScore:  true,
		ScoringKey:        s.refit,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := top.WriteCSV(&buf); err != nil {
		return nil, err
	}
	tablePath := filepath.Join(s.outputDir, "tables", string(kind)+"_top_models.csv")
	log.Info("saving top models", zap.String("path", tablePath))
	if err := utils.SafeWriteFile(tablePath, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write top models: %w", err)
	}

	est, err := cv.BestEstimator()
	if err != nil {
		return nil, err
	}
	best, ok := est.(*model.Linear)
	if !ok {
		return nil, fmt.Errorf("unexpected estimator type %T", est)
	}
	best.Features = append([]string(nil), s.features...)
	best.Fill = append([]float64(nil), fill...)
	best.Target = s.target
	modelPath := filepath.Join(s.outputDir, "models", string(kind)+"_best_model.json")
	log.Info("saving best model", zap.String("path", modelPath))
	if err := best.Save(modelPath); err != nil {
		return nil, err
	}

	if tunePrint {
		fmt.Println(top.Markdown())
	}
	fmt.Printf("✓ %s: best alpha=%.4g, mean_test_%s=%.4g (%d configurations)\n",
		kind, best.Alpha, s.refit, cv.BestScore(), len(cv.CVResults()["params"]))
	return []artifactFile{
		{tablePath, study.KindTable, string(kind) + " top models"},
		{modelPath, study.KindModel, string(kind) + " best model"},
	}, nil
}

func init() {
	rootCmd.AddCommand(tuneCmd)
	tuneCmd.Flags().StringVar(&tuneTrainPath, "train", "", "training CSV (default train_path from config)")
	tuneCmd.Flags().StringVarP(&tuneOutputDir, "output-dir", "o", "", "results directory (default output_dir from config)")
	tuneCmd.Flags().StringVar(&tuneTarget, "target", "", "target column (default target from config)")
	tuneCmd.Flags().StringSliceVar(&tuneFeatures, "features", nil, "feature columns (default features from config)")
	tuneCmd.Flags().StringSliceVar(&tuneModels, "models", []string{string(model.KindRidge), string(model.KindLasso)}, "models to tune: ridge, lasso")
	tuneCmd.Flags().IntVar(&tuneTopN, "top-n", 5, "configurations per top-models table")
	tuneCmd.Flags().IntVar(&tuneNIter, "n-iter", 30, "alpha values sampled per model")
	tuneCmd.Flags().IntVar(&tuneFolds, "cv", 10, "cross-validation folds")
	tuneCmd.Flags().IntVar(&tuneJobs, "n-jobs", 0, "parallel fold fits (0 = all CPUs)")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", dataset.DefaultSeed, "random seed")
	tuneCmd.Flags().BoolVar(&tunePrint, "print", false, "print each top-models table as Markdown")
}
