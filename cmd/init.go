package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/classrag/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a classrag configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgFile); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", cfgFile)
			}
		}

		if _, err := config.RunWizard(cfgFile); err != nil {
			return err
		}

		fmt.Println("Next steps:")
		fmt.Println("  classrag users add --email you@example.com --role admin --password ...")
		fmt.Println("  classrag ingest --access-level public")
		fmt.Println("  classrag serve")
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
