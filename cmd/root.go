package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "classrag",
	Short: "Role-scoped document Q&A over a shared corpus",
	Long: `classrag answers natural-language questions from a shared document
corpus while enforcing per-role access control at retrieval time.
Teachers see everything; students only see documents their access
policy grants them, enforced by partitioned indexing plus an
in-process residual filter.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".classrag.yml", "config file path")
}
