package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/scoretune/internal/config"
	"github.com/KaramelBytes/scoretune/internal/logger"
	"github.com/KaramelBytes/scoretune/internal/study"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile     string
	verbose     bool
	debug       bool
	manifestDir string

	// Loaded configuration
	cfg    *cfgpkg.Global
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "scoretune",
	Short: "scoretune: tune and report penalized regression models on survey data",
	Long: `scoretune prepares a tabular dataset, explores it, runs cross-validated
hyperparameter searches for Ridge and Lasso models and writes compact tables
of the best configurations, coefficients and prediction errors.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := ""
		if cfg != nil {
			level = cfg.LogLevel
		}
		if debug {
			level = "debug"
		}
		l, err := logger.New(verbose, level)
		if err != nil {
			return err
		}
		cmd.SetContext(logger.WithLogger(cmd.Context(), l))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.FromContext(cmd.Context()).Sync()
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.scoretune/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print progress messages")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&manifestDir, "manifest-dir", "", "directory holding manifest.json (default is output_dir)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config and help still work
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg, cfgErr = nil, err
		return
	}
	cfg, cfgErr = c, nil
}

// requireConfig returns the loaded configuration or the reason it is missing.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("configuration unavailable: %w", cfgErr)
		}
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	return cfg, nil
}

// recordArtifacts adds written files to the study manifest and saves it.
func recordArtifacts(cmd *cobra.Command, c *cfgpkg.Global, files []artifactFile) error {
	st, err := study.Open("scoretune", studyDir(c))
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := st.AddArtifact(f.path, f.kind, f.desc); err != nil {
			return err
		}
	}
	if err := st.Save(); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	logger.FromContext(cmd.Context()).Debug("manifest updated",
		zap.String("dir", st.RootDir()), zap.Int("artifacts", len(st.Artifacts)))
	return nil
}

// studyDir is the directory holding manifest.json.
func studyDir(c *cfgpkg.Global) string {
	if manifestDir != "" {
		return manifestDir
	}
	return c.OutputDir
}

type artifactFile struct {
	path, kind, desc string
}
