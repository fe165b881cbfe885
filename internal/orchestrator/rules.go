package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Rule is one decomposition rule: a pattern matched against the request,
// a description template (first capture group substituted for %s), the
// timeout appropriate to the verb, and the tool the task will invoke.
type Rule struct {
	Pattern  *regexp.Regexp
	Template string
	Timeout  time.Duration
	Tool     string
}

// defaultRules returns the built-in ordered rule table. Order is
// significant: earlier rules claim their spans first.
func defaultRules() []Rule {
	return []Rule{
		{
			Pattern:  regexp.MustCompile(`(?i)\b(?:search|find|look up|grep)\s+(?:for\s+)?([^,.;]+)`),
			Template: "Search for %s",
			Timeout:  15 * time.Second,
			Tool:     "search",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\bread\s+(?:the\s+)?(?:file\s+)?([\w./-]+\.\w{1,5})`),
			Template: "Read file %s",
			Timeout:  5 * time.Second,
			Tool:     "file_read",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\bwrite\s+(?:to\s+)?(?:the\s+)?(?:file\s+)?([\w./-]+\.\w{1,5})`),
			Template: "Write file %s",
			Timeout:  5 * time.Second,
			Tool:     "file_write",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\b(?:create|implement|add)\s+([^,.;]+)`),
			Template: "Create %s",
			Timeout:  10 * time.Second,
			Tool:     "shell",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\b(?:edit|update|modify|change)\s+([^,.;]+)`),
			Template: "Edit %s",
			Timeout:  10 * time.Second,
			Tool:     "shell",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\binstall\s+([^,.;]+)`),
			Template: "Install %s",
			Timeout:  30 * time.Second,
			Tool:     "shell",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\b(?:test|run\s+(?:the\s+)?tests?|verify)\b\s*([^,.;]*)`),
			Template: "Test %s",
			Timeout:  30 * time.Second,
			Tool:     "shell",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\b(?:deploy|release|publish)\b\s*([^,.;]*)`),
			Template: "Deploy %s",
			Timeout:  60 * time.Second,
			Tool:     "shell",
		},
	}
}

// ruleFile is the YAML shape of a project rule override file.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

// ruleEntry is one rule in .weft/rules.yaml.
type ruleEntry struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`
	Timeout     string `yaml:"timeout"`
	Tool        string `yaml:"tool"`
}

// LoadProjectRules reads .weft/rules.yaml under repoPath and returns the
// built-in table with the project rules prepended, so project rules take
// precedence. A missing file returns the built-in table; a malformed file
// or rule is an error rather than a silent skip.
func LoadProjectRules(repoPath string) ([]Rule, error) {
	path := filepath.Join(repoPath, ".weft", "rules.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultRules(), nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	custom := make([]Rule, 0, len(rf.Rules))
	for i, entry := range rf.Rules {
		re, err := regexp.Compile("(?i)" + entry.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid pattern %q: %w", i, entry.Pattern, err)
		}
		timeout := defaultTaskTimeout
		if entry.Timeout != "" {
			timeout, err = time.ParseDuration(entry.Timeout)
			if err != nil {
				return nil, fmt.Errorf("rule %d: invalid timeout %q: %w", i, entry.Timeout, err)
			}
		}
		tool := entry.Tool
		if tool == "" {
			tool = "shell"
		}
		custom = append(custom, Rule{
			Pattern:  re,
			Template: entry.Description,
			Timeout:  timeout,
			Tool:     tool,
		})
	}

	return append(custom, defaultRules()...), nil
}
