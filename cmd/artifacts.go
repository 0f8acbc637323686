package cmd

import (
	"fmt"

	"github.com/KaramelBytes/scoretune/internal/study"
	"github.com/spf13/cobra"
)

var artKind string

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List the files recorded in the study manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch artKind {
		case "", study.KindDataset, study.KindTable, study.KindModel, study.KindSummary:
		default:
			return fmt.Errorf("unknown artifact kind %q (use dataset, table, model or summary)", artKind)
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		st, err := study.Load(studyDir(c))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		items := st.List(artKind)
		if len(items) == 0 {
			fmt.Fprintln(out, "(no artifacts)")
			return nil
		}
		for _, a := range items {
			fmt.Fprintf(out, "- %s [%s] %s (%d bytes)\n", a.Path, a.Kind, a.Description, a.Bytes)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(artifactsCmd)
	artifactsCmd.Flags().StringVar(&artKind, "kind", "", "only list artifacts of this kind: dataset, table, model, summary")
}
