package casefile

import (
	"context"
	"strings"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Generator is the text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classification is the outcome of TypeClassifier.Classify.
type Classification struct {
	CaseType       string  `json:"case_type"`
	Parties        Parties `json:"parties"`
	PlaintiffsLine string  `json:"plaintiffs_line"`
	// Info is the raw combined extraction reply.
	Info string `json:"info"`
}

// TypeClassifier asks the generator four narrow questions about the
// accident facts and derives the case type from the answers.
type TypeClassifier struct {
	gen    Generator
	logger logging.Logger
}

func NewTypeClassifier(gen Generator, logger logging.Logger) *TypeClassifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TypeClassifier{gen: gen, logger: logger}
}

// Classify runs the party, minor, employee and animal prompts in sequence.
// Any generation failure aborts the classification.
func (c *TypeClassifier) Classify(ctx context.Context, accidentFacts string) (*Classification, error) {
	prompts := []struct {
		name   string
		prompt string
	}{
		{"parties", PartiesPrompt(accidentFacts)},
		{"minor_defendant", MinorDefendantPrompt(accidentFacts)},
		{"employee_defendant", EmployeeDefendantPrompt(accidentFacts)},
		{"animal_caused", AnimalCausedPrompt(accidentFacts)},
	}

	replies := make([]string, 0, len(prompts))
	for _, p := range prompts {
		reply, err := c.gen.Generate(ctx, p.prompt)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.ErrCodeLLMUnavailable, "case type extraction %s failed", p.name)
		}
		replies = append(replies, strings.TrimSpace(reply))
	}

	info := strings.Join(replies, "\n") + "\n"
	parties := ParseParties(info)
	result := &Classification{
		CaseType:       parties.CaseType(),
		Parties:        parties,
		PlaintiffsLine: PlaintiffsLine(replies[0]),
		Info:           info,
	}
	c.logger.Info("case type classified",
		logging.String("case_type", result.CaseType),
		logging.Int("plaintiffs", len(parties.Plaintiffs)),
		logging.Int("defendants", len(parties.Defendants)))
	return result, nil
}
