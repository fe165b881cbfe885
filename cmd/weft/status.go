package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/weft/internal/config"
	"github.com/ShayCichocki/weft/internal/history"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show recent runs",
	Long: `Display recent runs from the history database.

Without arguments, lists the most recent runs with their outcomes.
With a run ID, shows the per-task breakdown for that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of runs to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No run history yet. Run 'weft run <request>' to start.")
		return nil
	}

	db, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer db.Close()

	if len(args) == 1 {
		return displayRunTasks(db, args[0])
	}
	return displayRecentRuns(db)
}

func displayRecentRuns(db *history.DB) error {
	runs, err := db.RecentRuns(statusLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No run history yet. Run 'weft run <request>' to start.")
		return nil
	}

	for _, run := range runs {
		outcome := color.YellowString("incomplete")
		if run.FinishedAt != nil {
			if run.FailCount == 0 {
				outcome = color.GreenString("ok")
			} else {
				outcome = color.RedString("failed")
			}
		}

		fmt.Printf("%s  %s  %s\n", run.ID, run.StartedAt.Local().Format("2006-01-02 15:04"), outcome)
		fmt.Printf("    %s\n", truncateRequest(run.Request, 70))
		fmt.Printf("    %d tasks: %d ok, %d failed, %d skipped",
			run.TaskCount, run.SuccessCount, run.FailCount, run.SkippedCount)
		if run.FinishedAt != nil {
			fmt.Printf(" in %s", run.Duration)
		}
		fmt.Println()
	}

	return nil
}

func displayRunTasks(db *history.DB, runID string) error {
	tasks, err := db.RunTasks(runID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Printf("No tasks recorded for run %s\n", runID)
		return nil
	}

	for _, task := range tasks {
		status := task.Status
		switch status {
		case "completed":
			status = color.GreenString(status)
		case "failed":
			status = color.RedString(status)
		case "skipped":
			status = color.YellowString(status)
		}

		fmt.Printf("%s  %-18s %s\n", task.TaskID, status, task.Description)
		if len(task.DependsOn) > 0 {
			fmt.Printf("    depends on: %v\n", task.DependsOn)
		}
		if task.Attempts > 1 {
			fmt.Printf("    attempts: %d\n", task.Attempts)
		}
		if task.Error != "" {
			fmt.Printf("    error: %s\n", task.Error)
		}
	}

	return nil
}

func truncateRequest(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
