// Package retrieval finds historical cases similar to a drafting request
// and gathers what the drafting stages borrow from them: the laws they cite,
// their compensation conclusions and the reference indictment.
package retrieval

import (
	"context"
	"strings"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/casefile"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/compensation"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/law"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

const maxTopK = 50

// Request is one retrieval. Zero fields fall back to the configured values.
type Request struct {
	Query        string
	SearchType   chunk.Type
	TopK         int
	LawThreshold int
	CaseType     string
	// ReferenceCaseID overrides the best hit as the reference case.
	ReferenceCaseID *int64
}

// Result is everything the drafting stages need from similar cases.
type Result struct {
	SearchType      chunk.Type           `json:"search_type"`
	TopK            int                  `json:"top_k"`
	Hits            []chunk.SearchHit    `json:"hits"`
	CaseIDs         []int64              `json:"case_ids"`
	Occurrences     []law.Occurrence     `json:"occurrences"`
	Threshold       int                  `json:"threshold"`
	LawNumbers      []string             `json:"law_numbers"`
	Citations       []law.Citation       `json:"citations"`
	Amounts         map[int64]float64    `json:"amounts,omitempty"`
	AverageAmount   float64              `json:"average_amount"`
	ReferenceCaseID int64                `json:"reference_case_id"`
	Reference       *document.Indictment `json:"-"`
}

// ReferenceFacts is the fact section of the reference indictment, or "".
func (r *Result) ReferenceFacts() string {
	if r == nil || r.Reference == nil {
		return ""
	}
	return r.Reference.Fact
}

// Embedder produces the query vector.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Service runs similar-case retrieval.
type Service struct {
	embedder   Embedder
	index      chunk.Index
	laws       law.Repository
	cases      casefile.Repository
	aggregator *law.OccurrenceAggregator
	cfg        config.RetrievalConfig
	logger     logging.Logger
}

func NewService(embedder Embedder, index chunk.Index, laws law.Repository, cases casefile.Repository, cfg config.RetrievalConfig, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		embedder:   embedder,
		index:      index,
		laws:       laws,
		cases:      cases,
		aggregator: law.NewOccurrenceAggregator(laws, logger),
		cfg:        cfg,
		logger:     logger.Named("retrieval"),
	}
}

// normalize fills zero fields from config and validates the rest.
func (s *Service) normalize(req Request) (Request, error) {
	if strings.TrimSpace(req.Query) == "" {
		return req, pkgerrors.New(pkgerrors.ErrCodeValidation, "retrieval query must not be empty")
	}
	if req.SearchType == "" {
		req.SearchType = chunk.Type(s.cfg.SearchType)
	}
	if req.SearchType == "" {
		req.SearchType = chunk.TypeFull
	}
	if req.SearchType != chunk.TypeFull && req.SearchType != chunk.TypeFact {
		return req, pkgerrors.Newf(pkgerrors.ErrCodeValidation, "search type must be full or fact, got %q", req.SearchType)
	}
	if req.TopK == 0 {
		req.TopK = s.cfg.TopK
	}
	if req.TopK <= 0 || req.TopK > maxTopK {
		return req, pkgerrors.Newf(pkgerrors.ErrCodeValidation, "top_k must be between 1 and %d", maxTopK)
	}
	if req.LawThreshold == 0 {
		req.LawThreshold = s.cfg.LawThreshold
	}
	if req.LawThreshold <= 0 {
		req.LawThreshold = law.ThresholdForK(req.TopK)
	}
	return req, nil
}

// Search embeds the query and returns the raw nearest neighbours.
func (s *Service) Search(ctx context.Context, req Request) ([]chunk.SearchHit, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, req)
}

func (s *Service) search(ctx context.Context, req Request) ([]chunk.SearchHit, error) {
	vecs, err := s.embedder.EmbedBatch(ctx, []string{req.Query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeEmbeddingShape, "expected one query embedding, got %d", len(vecs))
	}
	return s.index.Search(ctx, chunk.SearchQuery{
		Vector:   vecs[0],
		Type:     req.SearchType,
		CaseType: req.CaseType,
		K:        req.TopK,
	})
}

// Retrieve runs the full retrieval: kNN search, law aggregation, citation
// lookup, compensation reference and the reference indictment. It fails
// with ErrCodeNoSimilarCases when the index returns nothing.
func (s *Service) Retrieve(ctx context.Context, req Request) (*Result, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	hits, err := s.search(ctx, req)
	if err != nil {
		return nil, err
	}
	ids := chunk.CaseIDs(hits)
	if len(ids) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeNoSimilarCases, "no %s chunks matched the query", req.SearchType)
	}

	res := &Result{
		SearchType: req.SearchType,
		TopK:       req.TopK,
		Hits:       hits,
		CaseIDs:    ids,
		Threshold:  req.LawThreshold,
	}

	res.Occurrences, err = s.aggregator.Count(ctx, ids)
	if err != nil {
		return nil, err
	}
	res.LawNumbers = law.Filter(res.Occurrences, req.LawThreshold)
	if len(res.LawNumbers) > 0 {
		res.Citations, err = s.laws.GetCitations(ctx, res.LawNumbers)
		if err != nil {
			return nil, err
		}
		law.SortCitations(res.Citations)
	}

	if err := s.compensationReference(ctx, res); err != nil {
		return nil, err
	}

	res.ReferenceCaseID = ids[0]
	if req.ReferenceCaseID != nil {
		if containsID(ids, *req.ReferenceCaseID) {
			res.ReferenceCaseID = *req.ReferenceCaseID
		} else {
			s.logger.Warn("Requested reference case not among hits, using best hit",
				logging.Int64("requested_case_id", *req.ReferenceCaseID),
				logging.CaseID(ids[0]))
		}
	}
	res.Reference = s.reference(ctx, res.ReferenceCaseID)

	s.logger.Info("Retrieved similar cases",
		logging.String("search_type", string(req.SearchType)),
		logging.Int("top_k", req.TopK),
		logging.Any("case_ids", ids),
		logging.Int("threshold", req.LawThreshold),
		logging.Strings("laws", res.LawNumbers),
		logging.Float64("average_amount", res.AverageAmount),
		logging.CaseID(res.ReferenceCaseID))
	return res, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// compensationReference averages the amounts found in the retrieved cases'
// conclusions, in retrieval rank order.
func (s *Service) compensationReference(ctx context.Context, res *Result) error {
	conclusions, err := s.cases.Conclusions(ctx, res.CaseIDs)
	if err != nil {
		return err
	}
	ordered := make([]string, 0, len(conclusions))
	res.Amounts = make(map[int64]float64, len(conclusions))
	for _, id := range res.CaseIDs {
		text, ok := conclusions[id]
		if !ok {
			continue
		}
		ordered = append(ordered, text)
		if amount, found := compensation.ExtractAmount(text); found {
			res.Amounts[id] = amount
		}
	}
	res.AverageAmount = compensation.AverageAmount(ordered)
	return nil
}

// reference loads the stored indictment sections of caseID. Lawyer inputs
// have none, so a missing reference only costs the facts stage its example.
func (s *Service) reference(ctx context.Context, caseID int64) *document.Indictment {
	sections, err := s.cases.GetSections(ctx, caseID)
	if err != nil {
		s.logger.Warn("Reference indictment unavailable", logging.CaseID(caseID), logging.Err(err))
		return nil
	}
	return sections
}
