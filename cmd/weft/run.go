package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/weft/internal/config"
	"github.com/ShayCichocki/weft/internal/history"
	"github.com/ShayCichocki/weft/internal/llm"
	"github.com/ShayCichocki/weft/internal/orchestrator"
	"github.com/ShayCichocki/weft/internal/pool"
	"github.com/ShayCichocki/weft/internal/tool"
)

var (
	runPlain        bool
	runLLMDecompose bool
	runPriority     int
	runNoHistory    bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Plan and execute a request",
	Long: `Plan and execute a natural-language request.

The request is classified by complexity, decomposed into tasks,
ordered by inferred dependencies, and executed. Independent tasks run
concurrently; failed tasks are retried, decomposed, or substituted
before giving up, and dependents of a permanent failure are skipped.

By default progress is shown in a TUI. Use --plain for line-oriented
output suitable for scripts and CI.

Decomposition is rule-based by default. With --llm-decompose the plan
is produced by a Claude model instead (requires ANTHROPIC_API_KEY or
Bedrock credentials).

Project-specific decomposition rules are read from .weft/rules.yaml
when present.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "Line-oriented output instead of the TUI")
	runCmd.Flags().BoolVar(&runLLMDecompose, "llm-decompose", false, "Decompose the request with a Claude model")
	runCmd.Flags().IntVar(&runPriority, "priority", 0, "Admission priority for this run in the resource pool")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Skip recording this run in the history database")
}

func runRequest(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in run: %v", r)
		}
	}()

	request := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resource pool with config hot-reload of the concurrency cap.
	mgr := pool.NewManager(pool.Config{
		MaxConcurrent:   cfg.Pool.MaxConcurrent,
		MinConcurrent:   cfg.Pool.MinConcurrent,
		MaxCeiling:      cfg.Pool.MaxCeiling,
		MemoryFraction:  cfg.Pool.MemoryFraction,
		MonitorInterval: cfg.Pool.MonitorEvery,
	})
	defer mgr.GracefulShutdown(5 * time.Second)

	if watcher, err := config.NewWatcher(); err == nil {
		watcher.OnChange(func(c *config.Config) {
			mgr.SetMaxConcurrent(c.Pool.MaxConcurrent)
		})
		defer watcher.Close()
	}

	// Admission happens before the orchestrator exists; the lease spans
	// the whole run.
	lease, err := acquireRunSlot(ctx, mgr, runPriority)
	if err != nil {
		return err
	}
	defer lease.Release()

	decomposer, err := buildDecomposer(cfg, cwd, runLLMDecompose)
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Config{
		Invoker:    tool.DefaultRegistry(cwd),
		Decomposer: decomposer,
		Logger:     orchestrator.NewDebugLoggerForRepo(cwd),
	})
	defer orch.Close()

	var db *history.DB
	if !runNoHistory {
		db = openHistory(cfg)
		if db != nil {
			defer db.Close()
		}
	}

	plan, err := orch.CreatePlan(ctx, request)
	if err != nil {
		return fmt.Errorf("plan request: %w", err)
	}
	if db != nil {
		if err := db.RecordPlan(plan); err != nil {
			fmt.Fprintf(os.Stderr, "warning: record plan: %v\n", err)
		}
	}

	summary, runErr := executeWithDisplay(ctx, orch, plan, request)

	if db != nil && summary != nil {
		if err := db.RecordOutcome(plan, summary); err != nil {
			fmt.Fprintf(os.Stderr, "warning: record outcome: %v\n", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if summary == nil || !summary.Succeeded() {
		os.Exit(1)
	}
	return nil
}

// buildDecomposer returns the model-backed decomposer when requested,
// otherwise the rule-based one extended with project rules.
func buildDecomposer(cfg *config.Config, cwd string, useLLM bool) (orchestrator.TaskDecomposer, error) {
	if useLLM {
		client, err := llm.NewClient(llm.ClientConfig{
			Model:         anthropic.Model(cfg.Anthropic.Model),
			APIKey:        cfg.Anthropic.APIKey,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
		})
		if err != nil {
			return nil, fmt.Errorf("create API client: %w", err)
		}
		return llm.NewDecomposer(client), nil
	}

	rules, err := orchestrator.LoadProjectRules(cwd)
	if err != nil {
		return nil, fmt.Errorf("load project rules: %w", err)
	}
	return orchestrator.NewDecomposerWithRules(rules), nil
}

// openHistory opens the run-history database, returning nil when it is
// unavailable. History is best-effort; a broken database never blocks a run.
func openHistory(cfg *config.Config) *history.DB {
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	db, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: open history database: %v\n", err)
		return nil
	}
	return db
}
