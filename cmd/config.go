package cmd

import (
	"fmt"
	"strings"

	cfgpkg "github.com/KaramelBytes/scoretune/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set scoretune configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "train_path: %s\n", c.TrainPath)
		fmt.Fprintf(out, "test_path: %s\n", c.TestPath)
		fmt.Fprintf(out, "target: %s\n", c.Target)
		fmt.Fprintf(out, "output_dir: %s\n", c.OutputDir)
		fmt.Fprintf(out, "cv_folds: %d\n", c.CVFolds)
		fmt.Fprintf(out, "n_iter: %d\n", c.NIter)
		if c.NJobs > 0 {
			fmt.Fprintf(out, "n_jobs: %d\n", c.NJobs)
		} else {
			fmt.Fprintln(out, "n_jobs: all CPUs")
		}
		fmt.Fprintf(out, "seed: %d\n", c.Seed)
		fmt.Fprintf(out, "top_n: %d\n", c.TopN)
		fmt.Fprintf(out, "alpha: loguniform(%g, %g)\n", c.AlphaLow, c.AlphaHigh)
		fmt.Fprintf(out, "refit: %s\n", c.Refit)
		fmt.Fprintf(out, "features: %s\n", strings.Join(c.Features, ","))
		fmt.Fprintf(out, "drop_features: %s\n", strings.Join(c.DropFeatures, ","))
		fmt.Fprintf(out, "zero_fill: %s\n", strings.Join(c.ZeroFill, ","))
		fmt.Fprintf(out, "question_prefix: %s\n", c.QuestionPrefix)
		fmt.Fprintf(out, "hist_bins: %d\n", c.HistBins)
		if c.LogLevel != "" {
			fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := requireConfig()
		if err != nil {
			return err
		}
		next := *c
		if err := next.Set(key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		cfg = &next
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
