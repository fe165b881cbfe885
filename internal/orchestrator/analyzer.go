package orchestrator

import (
	"regexp"
	"strings"

	"github.com/ShayCichocki/weft/pkg/models"
)

// Score thresholds for complexity classification.
const (
	complexThreshold  = 4
	moderateThreshold = 2
)

// ComplexityAnalyzer classifies a request string as simple, moderate, or
// complex from lexical signals. It is a deterministic pure function over
// the request text: no I/O, no state beyond the compiled pattern tables.
type ComplexityAnalyzer struct {
	sequencingPatterns []*regexp.Regexp
	technicalPatterns  []*regexp.Regexp
	filePatterns       []*regexp.Regexp
}

// NewComplexityAnalyzer creates a ComplexityAnalyzer with the default
// signal patterns.
func NewComplexityAnalyzer() *ComplexityAnalyzer {
	return &ComplexityAnalyzer{
		sequencingPatterns: compilePatterns([]string{
			`\b(first|second|third|then|next|after|finally|lastly)\b`,
			`\b(step\s+\d+|\d+\.\s)\b`,
			`\b(before|afterwards|subsequently)\b`,
		}),
		technicalPatterns: compilePatterns([]string{
			`\b(install|deploy|build|compile|test|run|execute)\b`,
			`\b(refactor|implement|configure|migrate|integrate)\b`,
			`\b(api|endpoint|database|server|package|dependency)\b`,
		}),
		filePatterns: compilePatterns([]string{
			`\b(file|directory|folder|path)\b`,
			`\b(read|write|create|edit|delete|move|copy|rename)\b`,
			`\b[\w./-]+\.\w{1,5}\b`,
		}),
	}
}

// compilePatterns compiles a slice of pattern strings into case-insensitive regexps.
func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if r, err := regexp.Compile("(?i)" + p); err == nil {
			compiled = append(compiled, r)
		}
	}
	return compiled
}

// Analyze scores the request and returns its complexity class.
// Signals: word count (>100 words +2, >50 +1), multi-step sequencing
// language +1, technical-operation vocabulary +1, file-operation
// vocabulary +1. Score >= 4 is complex, >= 2 moderate, else simple.
func (a *ComplexityAnalyzer) Analyze(request string) models.Complexity {
	score := a.Score(request)
	switch {
	case score >= complexThreshold:
		return models.ComplexityComplex
	case score >= moderateThreshold:
		return models.ComplexityModerate
	default:
		return models.ComplexitySimple
	}
}

// Score returns the raw complexity score for a request. Exposed so the
// planner can report why a request was classified the way it was.
func (a *ComplexityAnalyzer) Score(request string) int {
	lower := strings.ToLower(request)
	score := 0

	words := len(strings.Fields(lower))
	switch {
	case words > 100:
		score += 2
	case words > 50:
		score++
	}

	if anyMatch(lower, a.sequencingPatterns) {
		score++
	}
	if anyMatch(lower, a.technicalPatterns) {
		score++
	}
	if anyMatch(lower, a.filePatterns) {
		score++
	}

	return score
}

// anyMatch returns true if any pattern matches the input.
func anyMatch(input string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}
