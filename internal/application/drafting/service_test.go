package drafting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/retrieval"
	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/casefile"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/draft"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/law"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/storage/minio"
	"github.com/turtacn/TrafficLaw-RAG/internal/testutil"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

const userQuery = "一、被告駕車未注意車前狀況，撞傷原告。\n二、原告受有左腿骨折。\n三、醫療費用50,000元，慰撫金30,000元。"

type stubClassifier struct {
	cls *casefile.Classification
	err error
}

func (s stubClassifier) Classify(context.Context, string) (*casefile.Classification, error) {
	return s.cls, s.err
}

type stubRetriever struct {
	got retrieval.Request
	res *retrieval.Result
	err error
}

func (s *stubRetriever) Retrieve(_ context.Context, req retrieval.Request) (*retrieval.Result, error) {
	s.got = req
	return s.res, s.err
}

type memArchive struct {
	runID string
	text  string
	err   error
}

func (a *memArchive) Put(_ context.Context, runID, text string, _ any) (*minio.ArchiveRef, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.runID, a.text = runID, text
	return &minio.ArchiveRef{Bucket: "drafts", DraftKey: minio.DraftKey(runID), TraceKey: minio.TraceKey(runID)}, nil
}

type DraftServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	gen       *scriptedGenerator
	queries   *testutil.MockQueryRepository
	runs      *testutil.MockRunRepository
	retriever *stubRetriever
	archive   *memArchive
	logger    *testutil.MockLogger
	svc       *Service
}

func (s *DraftServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.gen = newScripted()
	s.queries = new(testutil.MockQueryRepository)
	s.runs = new(testutil.MockRunRepository)
	s.retriever = &stubRetriever{res: &retrieval.Result{
		SearchType:      chunk.TypeFull,
		TopK:            3,
		CaseIDs:         []int64{7, 8, 9},
		LawNumbers:      []string{"184"},
		Citations:       []law.Citation{{Number: "184", Content: "第184條：因故意或過失，不法侵害他人之權利者，負損害賠償責任。"}},
		AverageAmount:   90000,
		ReferenceCaseID: 7,
		Reference:       &document.Indictment{Fact: "一、緣被告於民國110年駕車..."},
	}}
	s.archive = &memArchive{}
	s.logger = testutil.NewMockLogger()

	orchestrator, _ := newTestOrchestrator(s.gen)
	s.svc = NewService(ServiceDeps{
		Queries: s.queries,
		CaseTypes: stubClassifier{cls: &casefile.Classification{
			CaseType: casefile.TypeSingleParties,
		}},
		Retriever:    s.retriever,
		Orchestrator: orchestrator,
		Archive:      s.archive,
		Runs:         s.runs,
		Logger:       s.logger,
	})
}

func TestDraftServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DraftServiceTestSuite))
}

func (s *DraftServiceTestSuite) expectHistory() {
	s.queries.On("SaveQuery", s.ctx, userQuery).Return(&casefile.UserQuery{QueryID: 4, Text: userQuery}, nil)
	s.runs.On("Create", s.ctx, mock.AnythingOfType("*draft.Run")).Return(nil)
	s.runs.On("Update", mock.Anything, mock.AnythingOfType("*draft.Run")).Return(nil)
}

func (s *DraftServiceTestSuite) TestDraft_Completed() {
	s.expectHistory()

	res, err := s.svc.Draft(s.ctx, Request{Query: userQuery, SearchType: "fact", TopK: 3, FilterByCaseType: true})
	s.Require().NoError(err)

	s.Equal(draft.StatusCompleted, res.Status)
	s.Require().NotNil(res.QueryID)
	s.Equal(int64(4), *res.QueryID)
	s.Equal(StateDone, res.Draft.State)
	s.Equal(casefile.TypeSingleParties, s.retriever.got.CaseType)
	s.Equal(chunk.TypeFact, s.retriever.got.SearchType)
	s.Equal(userQuery, s.retriever.got.Query)

	s.Equal(res.RunID, s.archive.runID)
	s.Equal(res.Draft.Text, s.archive.text)
	s.Equal(minio.DraftKey(res.RunID), res.Archive.DraftKey)

	run := s.runs.Calls[1].Arguments.Get(1).(*draft.Run)
	s.Equal(res.RunID, run.ID)
	s.Equal(draft.StatusCompleted, run.Status)
	s.Equal([]string{"184"}, run.LawNumbers)
	s.Equal(map[string]float64{"default": 80000}, run.Totals)
	s.Equal(minio.DraftKey(res.RunID), run.ArchiveKey)
	s.Require().NotNil(run.ReferenceCaseID)
	s.Equal(int64(7), *run.ReferenceCaseID)
	s.NotNil(run.FinishedAt)
	s.Empty(run.Error)

	s.Contains(s.gen.prompts["facts"][0], "緣被告於民國110年")
	s.True(s.logger.HasMessage("info", "Draft generated"))
	s.runs.AssertExpectations(s.T())
}

func (s *DraftServiceTestSuite) TestDraft_Degraded() {
	s.expectHistory()
	s.gen.replies["facts_check"] = []string{"[結果]: fail\n[理由]: 不一致"}

	res, err := s.svc.Draft(s.ctx, Request{Query: userQuery})
	s.Require().NoError(err)
	s.Equal(draft.StatusDegraded, res.Status)

	run := s.runs.Calls[1].Arguments.Get(1).(*draft.Run)
	s.Equal([]string{"facts"}, run.DegradedStages)
}

func (s *DraftServiceTestSuite) TestDraft_MalformedQueryStoresNothing() {
	_, err := s.svc.Draft(s.ctx, Request{Query: "一、只有事實"})
	s.Require().Error(err)

	var fe *document.FormatError
	s.Require().ErrorAs(err, &fe)
	s.True(pkgerrors.IsFormat(err))
	s.queries.AssertNotCalled(s.T(), "SaveQuery", mock.Anything, mock.Anything)
	s.runs.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *DraftServiceTestSuite) TestDraft_NoSimilarCasesFailsRun() {
	s.expectHistory()
	s.retriever.res = nil
	s.retriever.err = pkgerrors.New(pkgerrors.ErrCodeNoSimilarCases, "no similar cases")

	res, err := s.svc.Draft(s.ctx, Request{Query: userQuery})
	s.Require().Error(err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeNoSimilarCases))
	s.Equal(draft.StatusFailed, res.Status)
	s.Zero(s.gen.calls["summary"])

	run := s.runs.Calls[1].Arguments.Get(1).(*draft.Run)
	s.Equal(draft.StatusFailed, run.Status)
	s.Equal(err.Error(), run.Error)
}

func (s *DraftServiceTestSuite) TestDraft_ArchiveFailure() {
	s.expectHistory()
	s.archive.err = errors.New("bucket missing")

	res, err := s.svc.Draft(s.ctx, Request{Query: userQuery})
	s.Require().Error(err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeObjectStorageError))
	s.Equal(draft.StatusFailed, res.Status)
	s.NotEmpty(res.Draft.Text)
}

func (s *DraftServiceTestSuite) TestDraft_HistoryFailureIsLogged() {
	s.queries.On("SaveQuery", s.ctx, userQuery).Return(&casefile.UserQuery{QueryID: 5}, nil)
	s.runs.On("Create", s.ctx, mock.Anything).Return(errors.New("postgres down"))
	s.runs.On("Update", mock.Anything, mock.Anything).Return(errors.New("postgres down"))

	res, err := s.svc.Draft(s.ctx, Request{Query: userQuery})
	s.Require().NoError(err)
	s.Equal(draft.StatusCompleted, res.Status)
	s.Equal(2, s.logger.Count("warn"))
}

func TestService_OptionalCollaborators(t *testing.T) {
	gen := newScripted()
	orchestrator, _ := newTestOrchestrator(gen)
	laws := &testutil.MockLawRepository{}
	laws.On("GetCitations", mock.Anything, []string{"191-2", "193"}).Return([]law.Citation{
		{Number: "191-2", Content: "第191-2條：汽車、機車..."},
		{Number: "193", Content: "第193條：不法侵害他人之身體..."},
	}, nil)

	svc := NewService(ServiceDeps{
		CaseTypes:    stubClassifier{cls: &casefile.Classification{CaseType: casefile.TypeSingleParties}},
		Retriever:    &stubRetriever{res: &retrieval.Result{SearchType: chunk.TypeFull, TopK: 5, Citations: []law.Citation{{Number: "184", Content: "第184條：..."}}}},
		Orchestrator: orchestrator,
		Reviewer:     NewLawReviewer(gen, laws, nil),
	})

	res, err := svc.Draft(context.Background(), Request{Query: userQuery})
	require.NoError(t, err)
	assert.Nil(t, res.QueryID)
	assert.Nil(t, res.Archive)
	require.NotNil(t, res.LawReview)
	assert.Equal(t, []string{"191-2", "193"}, res.LawReview.Added)
	assert.Contains(t, res.Draft.LawSection, "民法第184條、第191-2條、第193條")

	_, err = svc.RecentRuns(context.Background(), 10)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeNotImplemented))
}

func TestService_ClassifierFailure(t *testing.T) {
	svc := NewService(ServiceDeps{
		CaseTypes:    stubClassifier{err: pkgerrors.New(pkgerrors.ErrCodeLLMUnavailable, "down")},
		Retriever:    &stubRetriever{},
		Orchestrator: NewOrchestrator(newScripted(), config.GenerationConfig{}, nil, nil),
	})
	res, err := svc.Draft(context.Background(), Request{Query: userQuery})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsExternal(err))
	assert.Equal(t, draft.StatusFailed, res.Status)
	assert.Nil(t, res.Draft)
}

func TestNewService_DefaultParserAllowsShortLead(t *testing.T) {
	svc := NewService(ServiceDeps{})

	_, err := svc.d.Parser.ParseUserInput("案情：" + userQuery)
	assert.NoError(t, err)
	_, err = svc.d.Parser.ParseUserInput("以下為本件車禍之詳細案情說明：" + userQuery)
	assert.True(t, pkgerrors.IsFormat(err))
}
