package drafting

import (
	"regexp"
	"strings"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
)

var (
	thinkingRe     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	markupRe       = regexp.MustCompile(`[*#]`)
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
	conclusionMark = []string{"綜上所陳", "綜上所述"}
)

// stripThinking drops <think>...</think> blocks emitted by reasoning models.
func stripThinking(s string) string {
	return thinkingRe.ReplaceAllString(s, "")
}

// CleanFacts keeps the generated fact section from its 一、 marker on.
func CleanFacts(reply string) string {
	s := strings.TrimSpace(stripThinking(reply))
	if i := strings.Index(s, "一、"); i > 0 {
		s = s[i:]
	}
	return strings.TrimSpace(s)
}

// CleanCompensation keeps the itemised damages and drops any conclusion the
// generator appended; the conclusion has its own stage.
func CleanCompensation(reply string) string {
	s := strings.TrimSpace(stripThinking(reply))
	cut := len(s)
	for _, m := range conclusionMark {
		if i := strings.Index(s, m); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(s[:cut])
}

// CleanConclusion keeps the reply from its conclusion marker on, or the
// whole reply when the marker is missing.
func CleanConclusion(reply string) string {
	s := strings.TrimSpace(stripThinking(reply))
	if section := document.ConclusionSection(s); section != "" {
		return strings.TrimSpace(section)
	}
	return s
}

// RemoveMarkup strips markdown emphasis and heading characters and squeezes
// runs of blank lines.
func RemoveMarkup(s string) string {
	s = markupRe.ReplaceAllString(s, "")
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

// Assemble joins the four parts of the draft with blank lines.
func Assemble(facts, lawSection, compensation, conclusion string) string {
	return RemoveMarkup(strings.Join([]string{facts, lawSection, compensation, conclusion}, "\n\n"))
}
