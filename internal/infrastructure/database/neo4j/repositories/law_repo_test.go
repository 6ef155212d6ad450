package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/law"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
)

type LawRepoTestSuite struct {
	suite.Suite
	mockTx *MockInfraTransaction
	repo   law.Repository
}

func (s *LawRepoTestSuite) SetupTest() {
	d, tx := SetupMockDriver(s.T())
	s.mockTx = tx
	s.repo = NewNeo4jLawRepo(d, logging.NewNopLogger())
}

func (s *LawRepoTestSuite) TestUpsertCitations() {
	s.mockTx.On("Run", mock.Anything, cypherContains("MERGE (l:law_node {number: row.number})"), map[string]any{
		"batch": []map[string]any{{"number": "184", "content": "第184條：內容"}},
	}).Return(results(), nil)

	s.NoError(s.repo.UpsertCitations(context.Background(), []law.Citation{{Number: "184", Content: "第184條：內容"}}))
	s.mockTx.AssertExpectations(s.T())
}

func (s *LawRepoTestSuite) TestUpsertCitations_Empty() {
	s.NoError(s.repo.UpsertCitations(context.Background(), nil))
	s.mockTx.AssertNotCalled(s.T(), "Run", mock.Anything, mock.Anything, mock.Anything)
}

func (s *LawRepoTestSuite) TestGetCitations_KeepsRequestedOrder() {
	s.mockTx.On("Run", mock.Anything, cypherContains("UNWIND $numbers"), mock.Anything).
		Return(results(
			NewRecord("number", "195", "content", "第195條：c195"),
			NewRecord("number", "184", "content", "第184條：c184"),
		), nil)

	got, err := s.repo.GetCitations(context.Background(), []string{"184", "191-2", "195"})
	s.Require().NoError(err)
	s.Equal([]law.Citation{
		{Number: "184", Content: "第184條：c184"},
		{Number: "195", Content: "第195條：c195"},
	}, got)
}

func (s *LawRepoTestSuite) TestLinkCase() {
	params := map[string]any{"case_id": int64(4), "numbers": []string{"184", "999"}}
	s.mockTx.On("Run", mock.Anything, cypherContains("MERGE (c)-[:used_law_relation]->(l)"), params).
		Return(results(NewRecord("linked", []any{"184"})), nil)
	s.mockTx.On("Run", mock.Anything, cypherContains("MERGE (s)-[:used_law_relation]->(l)"), params).
		Return(results(), nil)

	s.NoError(s.repo.LinkCase(context.Background(), 4, []string{"184", "999"}))
	s.mockTx.AssertExpectations(s.T())
}

func (s *LawRepoTestSuite) TestLawNumbersByCase() {
	s.mockTx.On("Run", mock.Anything, cypherContains("collect(DISTINCT l.number)"), map[string]any{"case_ids": []int64{1, 2, 3}}).
		Return(results(
			NewRecord("case_id", int64(1), "numbers", []any{"184", "191-2"}),
			NewRecord("case_id", int64(3), "numbers", []any{"195"}),
		), nil)

	got, err := s.repo.LawNumbersByCase(context.Background(), []int64{1, 2, 3})
	s.Require().NoError(err)
	s.Equal(map[int64][]string{1: {"184", "191-2"}, 3: {"195"}}, got)
}

func (s *LawRepoTestSuite) TestOccurrenceAggregatorOverRepository() {
	s.mockTx.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(results(
			NewRecord("case_id", int64(1), "numbers", []any{"184"}),
			NewRecord("case_id", int64(2), "numbers", []any{"184"}),
			NewRecord("case_id", int64(3), "numbers", []any{"195"}),
		), nil)

	got, err := law.NewOccurrenceAggregator(s.repo, nil).Aggregate(context.Background(), []int64{1, 2, 3}, 2)
	s.Require().NoError(err)
	s.Equal([]string{"184"}, got)
}

func TestLawRepoTestSuite(t *testing.T) {
	suite.Run(t, new(LawRepoTestSuite))
}
