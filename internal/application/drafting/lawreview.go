package drafting

import (
	"context"
	"strings"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/law"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// lawKeywords maps accident keywords to the articles they usually invoke.
var lawKeywords = []struct {
	keywords []string
	numbers  []string
}{
	{[]string{"車", "駕駛", "機車", "汽車"}, []string{"184", "191-2"}},
	{[]string{"傷", "醫療", "看護", "工作損失"}, []string{"193"}},
	{[]string{"慰撫", "精神"}, []string{"195"}},
	{[]string{"未成年"}, []string{"187"}},
	{[]string{"僱用", "受僱", "雇主"}, []string{"188"}},
	{[]string{"動物", "狗", "犬"}, []string{"190"}},
	{[]string{"車損", "修繕", "修理費"}, []string{"196"}},
}

// SuggestLaws returns the articles the facts and injuries point at, in
// article order.
func SuggestLaws(accidentFacts, injuries string) []string {
	text := accidentFacts + "\n" + injuries
	seen := map[string]bool{}
	var out []string
	for _, entry := range lawKeywords {
		for _, kw := range entry.keywords {
			if !strings.Contains(text, kw) {
				continue
			}
			for _, n := range entry.numbers {
				if !seen[n] {
					seen[n] = true
					out = append(out, n)
				}
			}
			break
		}
	}
	law.SortNumbers(out)
	return out
}

// LawReview is the outcome of LawReviewer.Review.
type LawReview struct {
	Citations []law.Citation `json:"citations"`
	Added     []string       `json:"added,omitempty"`
	Removed   []string       `json:"removed,omitempty"`
}

// LawReviewer cross-checks the laws voted in by similar cases against the
// keyword suggestions for the query. Every disagreement is settled by one
// applicability question to the generator.
type LawReviewer struct {
	gen    Generator
	laws   law.Repository
	logger logging.Logger
}

func NewLawReviewer(gen Generator, laws law.Repository, logger logging.Logger) *LawReviewer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LawReviewer{gen: gen, laws: laws, logger: logger.Named("law_review")}
}

// Review keeps agreed citations, adds suggested articles that pass the
// applicability check and drops voted articles that fail it.
func (r *LawReviewer) Review(ctx context.Context, accidentFacts, injuries string, voted []law.Citation) (*LawReview, error) {
	suggested := SuggestLaws(accidentFacts, injuries)
	votedSet := make(map[string]bool, len(voted))
	for _, c := range voted {
		votedSet[c.Number] = true
	}
	var missing []string
	for _, n := range suggested {
		if !votedSet[n] {
			missing = append(missing, n)
		}
	}
	suggestedSet := make(map[string]bool, len(suggested))
	for _, n := range suggested {
		suggestedSet[n] = true
	}

	review := &LawReview{}
	for _, c := range voted {
		if suggestedSet[c.Number] {
			review.Citations = append(review.Citations, c)
			continue
		}
		ok, err := r.applies(ctx, accidentFacts, injuries, c)
		if err != nil {
			return nil, err
		}
		if ok {
			review.Citations = append(review.Citations, c)
		} else {
			review.Removed = append(review.Removed, c.Number)
		}
	}

	if len(missing) > 0 {
		candidates, err := r.laws.GetCitations(ctx, missing)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeGraphStoreError, "load suggested law citations")
		}
		for _, c := range candidates {
			ok, err := r.applies(ctx, accidentFacts, injuries, c)
			if err != nil {
				return nil, err
			}
			if ok {
				review.Citations = append(review.Citations, c)
				review.Added = append(review.Added, c.Number)
			}
		}
	}

	law.SortCitations(review.Citations)
	if len(review.Added) > 0 || len(review.Removed) > 0 {
		r.logger.Info("Law citations revised",
			logging.Strings("added", review.Added), logging.Strings("removed", review.Removed))
	}
	return review, nil
}

func (r *LawReviewer) applies(ctx context.Context, accidentFacts, injuries string, c law.Citation) (bool, error) {
	reply, err := r.gen.Generate(ctx, LawApplicabilityPrompt(accidentFacts, injuries, c.Number, c.Body()))
	if err != nil {
		return false, pkgerrors.Wrapf(err, pkgerrors.ErrCodeLLMUnavailable, "applicability check for article %s", c.Number)
	}
	v := ParseVerdict(reply)
	r.logger.Debug("Applicability checked",
		logging.String("law", c.Number), logging.Bool("applies", v.Passed), logging.String("reason", v.Reason))
	return v.Passed, nil
}
