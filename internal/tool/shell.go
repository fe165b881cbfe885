package tool

import (
	"context"
	"fmt"
	"os/exec"
)

// ShellTool runs a shell command through "sh -c" in its working
// directory. The command comes from the "target" argument.
type ShellTool struct {
	workDir string
}

// NewShellTool creates a ShellTool rooted at workDir.
func NewShellTool(workDir string) *ShellTool {
	return &ShellTool{workDir: workDir}
}

// Name returns the registry key for the shell tool.
func (t *ShellTool) Name() string { return "shell" }

// Run executes the command and returns combined stdout/stderr output.
// Context cancellation kills the process via exec.CommandContext.
func (t *ShellTool) Run(ctx context.Context, args map[string]string) (string, error) {
	command := args["target"]
	if command == "" {
		command = args["command"]
	}
	if command == "" {
		return "", fmt.Errorf("shell: missing command argument")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if t.workDir != "" {
		cmd.Dir = t.workDir
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		// Context errors take precedence so timeouts and cancellations
		// surface as such rather than as a generic exit failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return string(output), ctxErr
		}
		return string(output), fmt.Errorf("shell: %w: %s", err, output)
	}
	return string(output), nil
}

// Verify ShellTool implements Tool at compile time.
var _ Tool = (*ShellTool)(nil)
