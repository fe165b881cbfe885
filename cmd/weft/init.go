package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Weft project",
	Long: `Initialize a directory for use with Weft.

Creates the .weft directory with an example rules.yaml where
project-specific decomposition rules live. The directory argument is
optional and defaults to the current directory.

Examples:
  weft init              # Initialize current directory
  weft init ./myproject  # Initialize specific directory
  weft init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

const exampleRules = `# Project-specific decomposition rules.
# Each rule adds a pattern matched against incoming requests; matched
# spans become tasks. Project rules take precedence over built-ins.
#
# rules:
#   - pattern: 'migrate (.+)'
#     description: 'Run database migration for %s'
#     tool: shell
#     timeout: 2m
rules: []
`

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Weft in %s...\n\n", absPath)

	weftDir := filepath.Join(absPath, ".weft")
	if _, err := os.Stat(weftDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (only needed for --llm-decompose)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	for _, dir := range []string{weftDir, filepath.Join(weftDir, "logs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .weft directory", color.FgGreen)

	rulesPath := filepath.Join(weftDir, "rules.yaml")
	if _, err := os.Stat(rulesPath); os.IsNotExist(err) || initForce {
		if err := os.WriteFile(rulesPath, []byte(exampleRules), 0644); err != nil {
			return fmt.Errorf("writing rules.yaml: %w", err)
		}
		printStatus("✓", "Created example .weft/rules.yaml", color.FgGreen)
	}

	fmt.Println("\nDone. Try: weft run \"create hello.txt then read hello.txt\"")
	return nil
}

// printStatus prints a colored status marker followed by a message.
func printStatus(marker, message string, c color.Attribute) {
	color.New(c).Printf("%s ", marker)
	fmt.Println(message)
}
