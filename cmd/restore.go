package cmd

import (
	"fmt"

	"zendex/pkg/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the configuration from its most recent backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.RestoreLastBackup(cfgPath); err != nil {
			return fmt.Errorf("restoring %s: %w", cfgPath, err)
		}
		color.Green("Restored %s from backup", cfgPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
