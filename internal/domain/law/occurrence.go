package law

import (
	"context"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// defaultThresholds maps the number of retrieved cases to the minimum
// citation count a law needs to be kept.
var defaultThresholds = map[int]int{1: 1, 2: 1, 3: 2, 4: 2, 5: 2}

// ThresholdForK returns the occurrence threshold used when the caller does
// not supply one for a top-k retrieval.
func ThresholdForK(k int) int {
	if t, ok := defaultThresholds[k]; ok {
		return t
	}
	return 1
}

// Occurrence is one law number with the count of cases citing it.
type Occurrence struct {
	Number string `json:"number"`
	Count  int    `json:"count"`
}

// OccurrenceAggregator counts citations across a set of cases.
type OccurrenceAggregator struct {
	source CaseLawSource
	logger logging.Logger
}

func NewOccurrenceAggregator(source CaseLawSource, logger logging.Logger) *OccurrenceAggregator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &OccurrenceAggregator{source: source, logger: logger}
}

// Count returns, per law number, how many of the distinct caseIDs cite it,
// sorted by article number.
func (a *OccurrenceAggregator) Count(ctx context.Context, caseIDs []int64) ([]Occurrence, error) {
	ids := uniqueIDs(caseIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	byCase, err := a.source.LawNumbersByCase(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeGraphStoreError, "failed to load case citations")
	}

	counts := make(map[string]int)
	for _, id := range ids {
		seen := make(map[string]struct{})
		for _, n := range byCase[id] {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			counts[n]++
		}
	}

	numbers := make([]string, 0, len(counts))
	for n := range counts {
		numbers = append(numbers, n)
	}
	SortNumbers(numbers)

	out := make([]Occurrence, len(numbers))
	for i, n := range numbers {
		out[i] = Occurrence{Number: n, Count: counts[n]}
	}
	return out, nil
}

// Aggregate returns the law numbers cited by at least threshold of the
// distinct caseIDs, ascending by article number. A threshold below 1 is
// treated as 1.
func (a *OccurrenceAggregator) Aggregate(ctx context.Context, caseIDs []int64, threshold int) ([]string, error) {
	occ, err := a.Count(ctx, caseIDs)
	if err != nil {
		return nil, err
	}
	kept := Filter(occ, threshold)
	a.logger.Debug("law occurrences aggregated",
		logging.Int("cases", len(caseIDs)),
		logging.Int("distinct_laws", len(occ)),
		logging.Int("threshold", threshold),
		logging.Strings("kept", kept))
	return kept, nil
}

// Filter keeps the numbers whose count reaches threshold, preserving order.
func Filter(occ []Occurrence, threshold int) []string {
	if threshold < 1 {
		threshold = 1
	}
	out := make([]string, 0, len(occ))
	for _, o := range occ {
		if o.Count >= threshold {
			out = append(out, o.Number)
		}
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
