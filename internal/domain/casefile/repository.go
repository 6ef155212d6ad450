package casefile

import (
	"context"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
)

// Repository stores case nodes and the four sections of reference
// indictments.
type Repository interface {
	// MaxCaseID returns the largest stored id; ok is false when no case exists.
	MaxCaseID(ctx context.Context) (id int64, ok bool, err error)
	Save(ctx context.Context, rec *CaseRecord) error
	Get(ctx context.Context, caseID int64) (*CaseRecord, error)
	SaveSections(ctx context.Context, caseID int64, sections *document.Indictment) error
	GetSections(ctx context.Context, caseID int64) (*document.Indictment, error)
	Conclusions(ctx context.Context, caseIDs []int64) (map[int64]string, error)
}

// UserQuery is a drafting request kept for later review.
type UserQuery struct {
	QueryID int64  `json:"query_id"`
	Text    string `json:"query_text"`
}

// QueryRepository stores user queries with increasing ids.
type QueryRepository interface {
	SaveQuery(ctx context.Context, text string) (*UserQuery, error)
}
