package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultDelimiters are the clause-ending marks sentences are split on.
const DefaultDelimiters = "，。"

// Splitter splits text into trimmed, non-empty sentences. It holds no state
// between calls.
type Splitter struct {
	delimiters string
}

// NewSplitter returns a Splitter for the given delimiter set. An empty set
// falls back to DefaultDelimiters.
func NewSplitter(delimiters string) *Splitter {
	if delimiters == "" {
		delimiters = DefaultDelimiters
	}
	return &Splitter{delimiters: delimiters}
}

// Each calls fn for every sentence in order until fn returns false.
func (s *Splitter) Each(text string, fn func(Sentence) bool) {
	pos := 0
	start := 0
	emit := func(end int) bool {
		part := strings.TrimSpace(text[start:end])
		if part == "" {
			return true
		}
		ok := fn(Sentence{Text: part, Position: pos})
		pos++
		return ok
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if strings.ContainsRune(s.delimiters, r) {
			if !emit(i) {
				return
			}
			start = i + size
		}
		i += size
	}
	emit(len(text))
}

// Split returns all sentences of text.
func (s *Splitter) Split(text string) []Sentence {
	var out []Sentence
	s.Each(text, func(st Sentence) bool {
		out = append(out, st)
		return true
	})
	return out
}

// Texts projects sentences onto their text.
func Texts(sentences []Sentence) []string {
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = s.Text
	}
	return out
}
