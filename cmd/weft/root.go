package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Task orchestration engine",
	Long: `Weft turns a natural-language request into a plan of small tasks,
infers the dependencies between them, and executes independent tasks
concurrently with automatic failure recovery.

Core capabilities:
- Classifies request complexity and decomposes work into tasks
- Infers task ordering and resolves dependency cycles
- Runs independent tasks in parallel under an adaptive resource pool
- Recovers from failures via retry, decomposition, and substitution
- Records every run for later inspection with 'weft status'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
