// Package tool is the tool-invocation boundary of the engine. The
// executor talks to tools exclusively through the Invoker interface; the
// concrete shell, file, and search tools live here but the engine never
// depends on them directly.
package tool

import (
	"context"
	"fmt"
	"sync"
)

// Invoker dispatches a named tool invocation. It is the only interface
// the executor consumes.
type Invoker interface {
	// Invoke runs the named tool with the given arguments. The context
	// carries cancellation and the per-task timeout.
	Invoke(ctx context.Context, name string, args map[string]string) (string, error)
}

// Tool is one registered tool implementation.
type Tool interface {
	// Name is the registry key for the tool.
	Name() string
	// Run executes the tool with the given arguments.
	Run(ctx context.Context, args map[string]string) (string, error)
}

// Registry is an Invoker backed by a name-to-tool map.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// DefaultRegistry creates a Registry with the standard tool set:
// shell, file_read, file_write, and search, all rooted at workDir.
func DefaultRegistry(workDir string) *Registry {
	r := NewRegistry()
	r.Register(NewShellTool(workDir))
	r.Register(NewFileReadTool(workDir))
	r.Register(NewFileWriteTool(workDir))
	r.Register(NewSearchTool(workDir))
	return r
}

// Register adds a tool to the registry, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Invoke dispatches to the named tool. Unknown tool names are an error,
// not a panic: decomposition rules and registered tools can drift.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]string) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return t.Run(ctx, args)
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Verify Registry implements Invoker at compile time.
var _ Invoker = (*Registry)(nil)
