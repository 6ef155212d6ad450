// Package chunk turns raw accident narratives into typed semantic chunks:
// sentence splitting, embedding-driven boundary detection and category
// classification.
package chunk

import (
	"fmt"
	"strings"
)

// Type is the category of a chunk.
type Type string

const (
	TypeFact         Type = "fact"
	TypeLaw          Type = "law"
	TypeCompensation Type = "compensation"
	TypeInjury       Type = "injury"
	// TypeFull marks the whole, unchunked narrative of a case.
	TypeFull Type = "full"
)

// ParseType maps a label onto a Type. "injuries" is accepted as an alias of
// injury since stored data from older ingestion runs uses it.
func ParseType(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fact":
		return TypeFact, true
	case "law":
		return TypeLaw, true
	case "compensation":
		return TypeCompensation, true
	case "injury", "injuries":
		return TypeInjury, true
	case "full":
		return TypeFull, true
	}
	return "", false
}

// Sentence is one clause-level unit of the source text.
type Sentence struct {
	Text     string
	Position int
}

// EmbeddedSentence pairs a Sentence with its embedding.
type EmbeddedSentence struct {
	Sentence
	Embedding []float32
}

// AdjacentSimilarity is the cosine similarity between sentence Index and
// sentence Index+1.
type AdjacentSimilarity struct {
	Index int
	Score float64
}

// Chunk is a persisted span of sentences.
type Chunk struct {
	Text     string
	CaseID   int64
	Sequence int
	Type     Type
}

// ID returns the composite identifier "<case_id>-<type>-<seq>", or
// "<case_id>-full" for the full-text chunk.
func (c Chunk) ID() string {
	if c.Type == TypeFull {
		return FullID(c.CaseID)
	}
	return fmt.Sprintf("%d-%s-%d", c.CaseID, c.Type, c.Sequence)
}

// FullID is the identifier of a case's full-text chunk.
func FullID(caseID int64) string {
	return fmt.Sprintf("%d-full", caseID)
}
