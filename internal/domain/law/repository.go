package law

import "context"

// CaseLawSource yields the article numbers cited by each case. Cases with
// no citations may be absent from the result.
type CaseLawSource interface {
	LawNumbersByCase(ctx context.Context, caseIDs []int64) (map[int64][]string, error)
}

// Repository persists the statute corpus and case citations.
type Repository interface {
	CaseLawSource

	UpsertCitations(ctx context.Context, citations []Citation) error
	GetCitations(ctx context.Context, numbers []string) ([]Citation, error)
	LinkCase(ctx context.Context, caseID int64, numbers []string) error
}
