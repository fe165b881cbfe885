package tool

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// searchMaxResults bounds search output so one broad query cannot flood
// a task result.
const searchMaxResults = 100

// SearchTool greps the working directory for a substring. The query
// comes from the "target" argument.
type SearchTool struct {
	workDir string
}

// NewSearchTool creates a SearchTool rooted at workDir.
func NewSearchTool(workDir string) *SearchTool {
	return &SearchTool{workDir: workDir}
}

// Name returns the registry key for the search tool.
func (t *SearchTool) Name() string { return "search" }

// Run walks the working directory and returns path:line matches for the
// query, case-insensitively. Hidden directories are skipped.
func (t *SearchTool) Run(ctx context.Context, args map[string]string) (string, error) {
	query := args["target"]
	if query == "" {
		query = args["query"]
	}
	if query == "" {
		return "", fmt.Errorf("search: missing query argument")
	}

	root := t.workDir
	if root == "" {
		root = "."
	}

	lowerQuery := strings.ToLower(query)
	var results []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if len(results) >= searchMaxResults {
			return filepath.SkipAll
		}

		matches, err := searchFile(path, lowerQuery, searchMaxResults-len(results))
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		for _, m := range matches {
			results = append(results, rel+":"+m)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		return fmt.Sprintf("no matches for %q", query), nil
	}
	return strings.Join(results, "\n"), nil
}

// searchFile scans one file line by line for the lowercased query.
func searchFile(path, lowerQuery string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []string
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() && len(matches) < limit {
		line++
		text := scanner.Text()
		if strings.Contains(strings.ToLower(text), lowerQuery) {
			matches = append(matches, fmt.Sprintf("%d:%s", line, strings.TrimSpace(text)))
		}
	}
	return matches, scanner.Err()
}

// Verify SearchTool implements Tool at compile time.
var _ Tool = (*SearchTool)(nil)
