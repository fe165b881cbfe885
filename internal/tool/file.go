package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileReadTool reads a file relative to its working directory.
type FileReadTool struct {
	workDir string
}

// NewFileReadTool creates a FileReadTool rooted at workDir.
func NewFileReadTool(workDir string) *FileReadTool {
	return &FileReadTool{workDir: workDir}
}

// Name returns the registry key for the file read tool.
func (t *FileReadTool) Name() string { return "file_read" }

// Run reads the file named by the "target" argument.
func (t *FileReadTool) Run(ctx context.Context, args map[string]string) (string, error) {
	path, err := resolvePath(t.workDir, args["target"])
	if err != nil {
		return "", fmt.Errorf("file_read: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("file_read: %w", err)
	}
	return string(data), nil
}

// FileWriteTool writes content to a file relative to its working
// directory, creating parent directories as needed.
type FileWriteTool struct {
	workDir string
}

// NewFileWriteTool creates a FileWriteTool rooted at workDir.
func NewFileWriteTool(workDir string) *FileWriteTool {
	return &FileWriteTool{workDir: workDir}
}

// Name returns the registry key for the file write tool.
func (t *FileWriteTool) Name() string { return "file_write" }

// Run writes the "content" argument to the file named by "target".
// Missing content writes an empty file, which is what the
// missing-resource recovery wants when it creates a placeholder.
func (t *FileWriteTool) Run(ctx context.Context, args map[string]string) (string, error) {
	path, err := resolvePath(t.workDir, args["target"])
	if err != nil {
		return "", fmt.Errorf("file_write: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("file_write: %w", err)
	}
	if err := os.WriteFile(path, []byte(args["content"]), 0644); err != nil {
		return "", fmt.Errorf("file_write: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(args["content"]), args["target"]), nil
}

// resolvePath joins a target with the working directory and rejects
// escapes above it.
func resolvePath(workDir, target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("missing target argument")
	}
	if workDir == "" {
		return target, nil
	}

	path := filepath.Join(workDir, target)
	rel, err := filepath.Rel(workDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("target %q escapes working directory", target)
	}
	return path, nil
}

// Verify the file tools implement Tool at compile time.
var (
	_ Tool = (*FileReadTool)(nil)
	_ Tool = (*FileWriteTool)(nil)
)
