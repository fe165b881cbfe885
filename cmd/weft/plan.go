package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/weft/internal/config"
	"github.com/ShayCichocki/weft/internal/orchestrator"
	"github.com/ShayCichocki/weft/internal/tool"
)

var (
	planFormat       string
	planLLMDecompose bool
)

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Build and print a plan without executing it",
	Long: `Build the execution plan for a request and print it without
running anything.

Shows each task with its dependencies, tool call, and timeout, plus the
plan's complexity classification and total time estimate. Useful for
inspecting what 'weft run' would do.`,
	Args: cobra.MinimumNArgs(1),
	RunE: planRequest,
}

func init() {
	planCmd.Flags().StringVar(&planFormat, "format", "yaml", "Output format: yaml or json")
	planCmd.Flags().BoolVar(&planLLMDecompose, "llm-decompose", false, "Decompose the request with a Claude model")
}

func planRequest(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	decomposer, err := buildDecomposer(cfg, cwd, planLLMDecompose)
	if err != nil {
		return err
	}

	// Planning never invokes tools; the registry only anchors the invoker.
	orch := orchestrator.New(orchestrator.Config{
		Invoker:    tool.DefaultRegistry(cwd),
		Decomposer: decomposer,
	})
	defer orch.Close()

	plan, err := orch.CreatePlan(context.Background(), request)
	if err != nil {
		return fmt.Errorf("plan request: %w", err)
	}

	switch planFormat {
	case "yaml":
		out, err := yaml.Marshal(plan)
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		fmt.Print(string(out))
	case "json":
		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		fmt.Println(string(out))
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", planFormat)
	}

	return nil
}
