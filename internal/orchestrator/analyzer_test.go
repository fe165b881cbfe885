package orchestrator

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/weft/pkg/models"
)

func TestAnalyzeComplexity(t *testing.T) {
	a := NewComplexityAnalyzer()

	tests := []struct {
		name    string
		request string
		want    models.Complexity
	}{
		{
			name:    "short plain request",
			request: "hello there",
			want:    models.ComplexitySimple,
		},
		{
			name:    "single technical verb",
			request: "run it",
			want:    models.ComplexitySimple,
		},
		{
			name:    "technical plus file signals",
			request: "install the package and create a config file",
			want:    models.ComplexityModerate,
		},
		{
			name:    "sequencing plus file signals",
			request: "first read notes.txt, then delete it",
			want:    models.ComplexityModerate,
		},
		{
			name: "long request with all signal classes",
			request: "first install the dependencies, then create the database schema file, " +
				"after that run the tests and deploy the server " +
				strings.Repeat("with extra detail about every step ", 15),
			want: models.ComplexityComplex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.request)
			if got != tt.want {
				t.Errorf("Analyze(%q) = %s (score %d), want %s", tt.request, got, a.Score(tt.request), tt.want)
			}
		})
	}
}

func TestScoreWordCount(t *testing.T) {
	a := NewComplexityAnalyzer()

	// Neutral words only, so the score isolates the length signal.
	short := strings.Repeat("lorem ipsum dolor ", 5)     // 15 words
	medium := strings.Repeat("lorem ipsum dolor ", 20)   // 60 words
	long := strings.Repeat("lorem ipsum dolor ", 40)     // 120 words

	if got := a.Score(short); got != 0 {
		t.Errorf("Score(15 words) = %d, want 0", got)
	}
	if got := a.Score(medium); got != 1 {
		t.Errorf("Score(60 words) = %d, want 1", got)
	}
	if got := a.Score(long); got != 2 {
		t.Errorf("Score(120 words) = %d, want 2", got)
	}
}

func TestAnalyzeCaseInsensitive(t *testing.T) {
	a := NewComplexityAnalyzer()

	lower := a.Score("install the package and create a config file")
	upper := a.Score("INSTALL THE PACKAGE AND CREATE A CONFIG FILE")
	if lower != upper {
		t.Errorf("score differs by case: %d vs %d", lower, upper)
	}
}
