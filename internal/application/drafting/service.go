package drafting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/retrieval"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/casefile"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/draft"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/storage/minio"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Retriever finds similar cases for a query.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// CaseTypeClassifier derives the case type from the accident facts.
type CaseTypeClassifier interface {
	Classify(ctx context.Context, accidentFacts string) (*casefile.Classification, error)
}

// Archiver stores finished drafts and their traces.
type Archiver interface {
	Put(ctx context.Context, runID, text string, trace any) (*minio.ArchiveRef, error)
}

// ServiceDeps wires the drafting service. Queries, Reviewer, Archive and
// Runs are optional.
type ServiceDeps struct {
	Parser       *document.Parser
	Queries      casefile.QueryRepository
	CaseTypes    CaseTypeClassifier
	Retriever    Retriever
	Orchestrator *Orchestrator
	Reviewer     *LawReviewer
	Archive      Archiver
	Runs         draft.RunRepository
	Logger       logging.Logger
	Metrics      *prometheus.AppMetrics
}

// Request is one drafting request.
type Request struct {
	Query        string
	SearchType   string
	TopK         int
	LawThreshold int
	// ReferenceCaseID overrides the most similar case as the reference.
	ReferenceCaseID *int64
	// FilterByCaseType restricts the search to cases of the same type.
	FilterByCaseType bool
}

// Result is a finished, degraded or failed drafting run.
type Result struct {
	RunID          string                   `json:"run_id"`
	QueryID        *int64                   `json:"query_id,omitempty"`
	Status         draft.Status             `json:"status"`
	Classification *casefile.Classification `json:"classification,omitempty"`
	Retrieval      *retrieval.Result        `json:"retrieval,omitempty"`
	LawReview      *LawReview               `json:"law_review,omitempty"`
	Draft          *Draft                   `json:"draft,omitempty"`
	Archive        *minio.ArchiveRef        `json:"archive,omitempty"`
}

// Service turns a lawyer's query into an indictment draft.
type Service struct {
	d   ServiceDeps
	now func() time.Time
}

func NewService(d ServiceDeps) *Service {
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	d.Logger = d.Logger.Named("draft_service")
	if d.Parser == nil {
		d.Parser = document.NewUserInputParser(document.DefaultUserInputLeadTolerance)
	}
	return &Service{d: d, now: time.Now}
}

// Draft parses the query, classifies it, retrieves similar cases and runs
// the orchestrator. A malformed query returns its *document.FormatError
// before anything is stored. Failures after the run is recorded are also
// written to the run history.
func (s *Service) Draft(ctx context.Context, req Request) (*Result, error) {
	input, err := s.d.Parser.ParseUserInput(req.Query)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString(), Status: draft.StatusRunning}
	log := s.d.Logger.With(logging.RunID(res.RunID))
	started := s.now()

	if s.d.Queries != nil {
		q, err := s.d.Queries.SaveQuery(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		res.QueryID = &q.QueryID
	}

	run := &draft.Run{
		ID:              res.RunID,
		QueryID:         res.QueryID,
		Status:          draft.StatusRunning,
		SearchType:      req.SearchType,
		TopK:            req.TopK,
		ReferenceCaseID: req.ReferenceCaseID,
		StartedAt:       started.UTC(),
	}
	s.record(ctx, log, run, true)

	err = s.draft(ctx, log, req, input, res, run)

	status := draft.StatusCompleted
	switch {
	case err != nil:
		status = draft.StatusFailed
	case res.Draft != nil && len(res.Draft.Degraded) > 0:
		status = draft.StatusDegraded
	}
	res.Status = status
	run.Finish(status, s.now().UTC(), err)
	s.record(ctx, log, run, false)
	s.d.Metrics.RecordDraft(string(status), s.now().Sub(started))

	if err != nil {
		log.Error("Drafting failed", logging.Err(err))
		return res, err
	}
	log.Info("Draft generated",
		logging.String("status", string(status)),
		logging.Strings("degraded", res.Draft.DegradedNames()),
		logging.Duration("elapsed", s.now().Sub(started)))
	return res, nil
}

func (s *Service) draft(ctx context.Context, log logging.Logger, req Request, input document.UserInput, res *Result, run *draft.Run) error {
	cls, err := s.d.CaseTypes.Classify(ctx, input.AccidentFacts)
	if err != nil {
		return err
	}
	res.Classification = cls
	run.CaseType = cls.CaseType
	log.Info("Case type classified", logging.String("case_type", cls.CaseType))

	rreq := retrieval.Request{
		Query:           req.Query,
		SearchType:      chunk.Type(req.SearchType),
		TopK:            req.TopK,
		LawThreshold:    req.LawThreshold,
		ReferenceCaseID: req.ReferenceCaseID,
	}
	if req.FilterByCaseType {
		rreq.CaseType = cls.CaseType
	}
	rr, err := s.d.Retriever.Retrieve(ctx, rreq)
	if err != nil {
		return err
	}
	res.Retrieval = rr
	run.SearchType = string(rr.SearchType)
	run.TopK = rr.TopK
	refID := rr.ReferenceCaseID
	run.ReferenceCaseID = &refID

	citations := rr.Citations
	if s.d.Reviewer != nil {
		review, err := s.d.Reviewer.Review(ctx, input.AccidentFacts, input.Injuries, citations)
		if err != nil {
			return err
		}
		res.LawReview = review
		citations = review.Citations
	}
	run.LawNumbers = make([]string, len(citations))
	for i, c := range citations {
		run.LawNumbers[i] = c.Number
	}

	d, err := s.d.Orchestrator.Run(ctx, Input{
		Query:          input,
		ReferenceFacts: rr.ReferenceFacts(),
		Citations:      citations,
		AverageAmount:  rr.AverageAmount,
		CaseType:       cls.CaseType,
		PlaintiffsLine: cls.PlaintiffsLine,
	})
	res.Draft = d
	if d != nil {
		run.Totals = d.TotalsMap()
		run.DegradedStages = d.DegradedNames()
	}
	if err != nil {
		return err
	}

	if s.d.Archive != nil {
		ref, err := s.d.Archive.Put(ctx, res.RunID, d.Text, d)
		if err != nil {
			return pkgerrors.Wrap(err, pkgerrors.ErrCodeObjectStorageError, "archive draft")
		}
		res.Archive = ref
		run.ArchiveKey = ref.DraftKey
	}
	return nil
}

// record writes run history. History is auxiliary: a failing store is
// logged and the draft proceeds.
func (s *Service) record(ctx context.Context, log logging.Logger, run *draft.Run, create bool) {
	if s.d.Runs == nil {
		return
	}
	var err error
	if create {
		err = s.d.Runs.Create(ctx, run)
	} else {
		err = s.d.Runs.Update(context.WithoutCancel(ctx), run)
	}
	if err != nil {
		log.Warn("Run history not recorded", logging.Bool("create", create), logging.Err(err))
	}
}

// Run returns a recorded run.
func (s *Service) Run(ctx context.Context, id string) (*draft.Run, error) {
	if s.d.Runs == nil {
		return nil, pkgerrors.New(pkgerrors.ErrCodeNotImplemented, "run history is disabled")
	}
	return s.d.Runs.Get(ctx, id)
}

// RecentRuns lists the latest runs, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]*draft.Run, error) {
	if s.d.Runs == nil {
		return nil, pkgerrors.New(pkgerrors.ErrCodeNotImplemented, "run history is disabled")
	}
	if limit <= 0 {
		limit = 20
	}
	return s.d.Runs.ListRecent(ctx, limit)
}
