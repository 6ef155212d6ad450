// Package ingestion loads accident cases into the stores: lawyer inputs go
// into the search index as typed semantic chunks, reference indictments go
// into the graph as case and section nodes linked to the laws they cite,
// and the statute corpus becomes law nodes.
package ingestion

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/casefile"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/law"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

const (
	SourceLawyerInput = "lawyer_input"
	SourceLawCorpus   = "law_corpus"
)

// TextChunker splits a narrative into semantic chunks.
type TextChunker interface {
	ChunkText(ctx context.Context, text string) ([]string, error)
}

// ChunkClassifier labels a chunk. It never fails.
type ChunkClassifier interface {
	Classify(ctx context.Context, text string) chunk.Type
}

// CaseTypeClassifier derives the party-composition case type.
type CaseTypeClassifier interface {
	Classify(ctx context.Context, facts string) (*casefile.Classification, error)
}

// Embedder produces chunk vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Locker serialises case-id allocation across processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Deps are the collaborators of Service. IDLock is optional; without it
// concurrent ingestions may allocate the same case id.
type Deps struct {
	Chunker          TextChunker
	Classifier       ChunkClassifier
	CaseTypes        CaseTypeClassifier
	Embedder         Embedder
	Index            chunk.Index
	Cases            casefile.Repository
	Laws             law.Repository
	IndictmentParser *document.Parser
	IDLock           Locker
	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
}

// Service implements the three ingestion flows.
type Service struct {
	Deps
	now func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	d.Logger = d.Logger.Named("ingestion")
	if d.IndictmentParser == nil {
		d.IndictmentParser = document.NewIndictmentParser(document.DefaultIndictmentLeadTolerance)
	}
	return &Service{Deps: d, now: time.Now}
}

// LawyerInputResult summarises one ingested lawyer input.
type LawyerInputResult struct {
	CaseID   int64          `json:"case_id"`
	CaseType string         `json:"case_type"`
	Chunks   int            `json:"chunks"`
	ByType   map[string]int `json:"by_type"`
}

// IngestLawyerInput indexes text as a new case: the whole text as the full
// chunk, then the part before the compensation facts as classified
// semantic chunks. The case id follows the largest id in the index.
func (s *Service) IngestLawyerInput(ctx context.Context, text string) (res *LawyerInputResult, err error) {
	defer func() { s.Metrics.RecordCaseIngested(SourceLawyerInput, err == nil) }()

	if strings.TrimSpace(text) == "" {
		return nil, pkgerrors.New(pkgerrors.ErrCodeValidation, "lawyer input must not be empty")
	}

	cls, err := s.CaseTypes.Classify(ctx, text)
	if err != nil {
		return nil, err
	}

	caseID, err := s.allocate(ctx, func(ctx context.Context) (int64, error) {
		max, ok, err := s.Index.MaxCaseID(ctx)
		if err != nil {
			return 0, err
		}
		id := casefile.NextCaseID(max, ok)
		return id, s.indexFull(ctx, id, text, cls.CaseType)
	})
	if err != nil {
		return nil, err
	}
	log := s.Logger.With(logging.CaseID(caseID))

	chunks, err := s.Chunker.ChunkText(ctx, document.TruncateBeforeClaims(text))
	if err != nil {
		return nil, err
	}

	res = &LawyerInputResult{CaseID: caseID, CaseType: cls.CaseType, ByType: make(map[string]int)}
	if len(chunks) == 0 {
		log.Warn("Lawyer input produced no chunks")
		return res, nil
	}

	vecs, err := s.Embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(chunks) {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeEmbeddingShape, "got %d embeddings for %d chunks", len(vecs), len(chunks))
	}

	seq := newSequencer(s.Index, caseID)
	indexed := make([]chunk.IndexedChunk, 0, len(chunks))
	for i, body := range chunks {
		t := s.Classifier.Classify(ctx, body)
		n, err := seq.next(ctx, t)
		if err != nil {
			return nil, err
		}
		indexed = append(indexed, chunk.IndexedChunk{
			Chunk:     chunk.Chunk{Text: body, CaseID: caseID, Sequence: n, Type: t},
			Embedding: vecs[i],
			CaseType:  cls.CaseType,
		})
		res.ByType[string(t)]++
	}
	if err := s.Index.Upsert(ctx, indexed); err != nil {
		return nil, err
	}
	for _, c := range indexed {
		s.Metrics.RecordChunk(string(c.Type))
	}
	res.Chunks = len(indexed)

	log.Info("Lawyer input ingested",
		logging.String("case_type", cls.CaseType),
		logging.Int("chunks", res.Chunks),
		logging.Any("by_type", res.ByType))
	return res, nil
}

func (s *Service) indexFull(ctx context.Context, caseID int64, text, caseType string) error {
	vecs, err := s.Embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return err
	}
	if len(vecs) != 1 {
		return pkgerrors.Newf(pkgerrors.ErrCodeEmbeddingShape, "expected one full-text embedding, got %d", len(vecs))
	}
	full := chunk.IndexedChunk{
		Chunk:     chunk.Chunk{Text: text, CaseID: caseID, Type: chunk.TypeFull},
		Embedding: vecs[0],
		CaseType:  caseType,
	}
	if err := s.Index.Upsert(ctx, []chunk.IndexedChunk{full}); err != nil {
		return err
	}
	s.Metrics.RecordChunk(string(chunk.TypeFull))
	return nil
}

// IndictmentRequest is one reference indictment. UsedLaws is the comma
// separated "第N條" list; when empty the numbers are read from the law
// section itself.
type IndictmentRequest struct {
	Text     string `json:"text"`
	UsedLaws string `json:"used_laws,omitempty"`
}

// IndictmentResult summarises one ingested indictment.
type IndictmentResult struct {
	CaseID     int64    `json:"case_id"`
	LawNumbers []string `json:"law_numbers"`
}

// IngestIndictment validates the four-part layout strictly, then stores the
// case node, its sections and its law citations. A malformed indictment is
// rejected with a *document.FormatError before anything is written.
func (s *Service) IngestIndictment(ctx context.Context, req IndictmentRequest) (res *IndictmentResult, err error) {
	defer func() { s.Metrics.RecordCaseIngested(casefile.SourceIndictment, err == nil) }()

	sections, err := s.IndictmentParser.ParseIndictment(req.Text)
	if err != nil {
		return nil, err
	}

	caseID, err := s.allocate(ctx, func(ctx context.Context) (int64, error) {
		max, ok, err := s.Cases.MaxCaseID(ctx)
		if err != nil {
			return 0, err
		}
		id := casefile.NextCaseID(max, ok)
		return id, s.Cases.Save(ctx, &casefile.CaseRecord{
			CaseID:    id,
			RawText:   req.Text,
			CaseType:  casefile.SourceIndictment,
			CreatedAt: s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.Cases.SaveSections(ctx, caseID, &sections); err != nil {
		return nil, err
	}

	numbers := law.ExtractNumbers(req.UsedLaws)
	if strings.TrimSpace(req.UsedLaws) == "" {
		numbers = law.FindNumbers(sections.Law)
	}
	if len(numbers) > 0 {
		if err := s.Laws.LinkCase(ctx, caseID, numbers); err != nil {
			return nil, err
		}
	}

	s.Logger.Info("Indictment ingested", logging.CaseID(caseID), logging.Strings("laws", numbers))
	return &IndictmentResult{CaseID: caseID, LawNumbers: numbers}, nil
}

// BatchItem is the outcome of one indictment in a batch.
type BatchItem struct {
	Index  int               `json:"index"`
	Result *IndictmentResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// IngestIndictments ingests reqs in order. Format errors are reported per
// item and the batch continues; any other error stops the batch and is
// returned together with the items processed so far.
func (s *Service) IngestIndictments(ctx context.Context, reqs []IndictmentRequest) ([]BatchItem, error) {
	items := make([]BatchItem, 0, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		res, err := s.IngestIndictment(ctx, req)
		if err != nil {
			if !pkgerrors.IsFormat(err) {
				return items, err
			}
			s.Logger.Warn("Skipping malformed indictment", logging.Int("index", i), logging.Err(err))
			items = append(items, BatchItem{Index: i, Error: err.Error()})
			continue
		}
		items = append(items, BatchItem{Index: i, Result: res})
	}
	return items, nil
}

// IngestLaws parses the statute corpus and upserts every article.
func (s *Service) IngestLaws(ctx context.Context, corpus string) (n int, err error) {
	defer func() { s.Metrics.RecordCaseIngested(SourceLawCorpus, err == nil) }()

	citations := law.ParseCorpus(corpus)
	if len(citations) == 0 {
		return 0, pkgerrors.New(pkgerrors.ErrCodeLawTextMalformed, "no 第N條 articles found in law corpus")
	}
	if err := s.Laws.UpsertCitations(ctx, citations); err != nil {
		return 0, err
	}
	s.Logger.Info("Law corpus ingested", logging.Int("articles", len(citations)))
	return len(citations), nil
}

// allocate runs fn under the id lock. fn must persist the record that owns
// the id before returning so the next allocation sees it.
func (s *Service) allocate(ctx context.Context, fn func(ctx context.Context) (int64, error)) (int64, error) {
	if s.IDLock == nil {
		return fn(ctx)
	}
	if err := s.IDLock.Lock(ctx); err != nil {
		return 0, err
	}
	defer func() {
		if err := s.IDLock.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Warn("Failed to release case id lock", logging.Err(err))
		}
	}()
	return fn(ctx)
}

// sequencer hands out 1-based chunk sequence numbers per type, continuing
// from what the index already holds for the case.
type sequencer struct {
	index  chunk.Index
	caseID int64
	last   map[chunk.Type]int
}

func newSequencer(index chunk.Index, caseID int64) *sequencer {
	return &sequencer{index: index, caseID: caseID, last: make(map[chunk.Type]int)}
}

func (q *sequencer) next(ctx context.Context, t chunk.Type) (int, error) {
	n, seen := q.last[t]
	if !seen {
		stored, err := q.index.CountChunks(ctx, q.caseID, t)
		if err != nil {
			return 0, err
		}
		n = stored
	}
	n++
	q.last[t] = n
	return n, nil
}
