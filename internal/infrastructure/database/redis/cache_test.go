package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

type EmbeddingCacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache *EmbeddingCache
}

func (s *EmbeddingCacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.cache = NewEmbeddingCache(newClient(db, "test:", logging.NewNopLogger()), time.Hour, logging.NewNopLogger())
}

func (s *EmbeddingCacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *EmbeddingCacheTestSuite) TestKeyLayout() {
	k := s.cache.key("bge", "車禍")
	s.True(len(k) > len("test:emb:bge:"))
	s.Equal("test:emb:bge:", k[:len("test:emb:bge:")])
	s.NotEqual(k, s.cache.key("bge", "車禍。"))
	s.NotEqual(k, s.cache.key("other", "車禍"))
}

func (s *EmbeddingCacheTestSuite) TestGetMany_HitsAndMisses() {
	texts := []string{"甲", "乙", "丙"}
	keys := s.cache.keys("m", texts)
	s.mock.ExpectMGet(keys...).SetVal([]interface{}{"[1,0.5]", nil, "not-json"})

	got, err := s.cache.GetMany(context.Background(), "m", texts)
	s.Require().NoError(err)
	s.Equal([][]float32{{1, 0.5}, nil, nil}, got)
}

func (s *EmbeddingCacheTestSuite) TestGetMany_Error() {
	texts := []string{"甲"}
	s.mock.ExpectMGet(s.cache.keys("m", texts)...).SetErr(errors.New("down"))

	_, err := s.cache.GetMany(context.Background(), "m", texts)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *EmbeddingCacheTestSuite) TestGetMany_Empty() {
	got, err := s.cache.GetMany(context.Background(), "m", nil)
	s.NoError(err)
	s.Empty(got)
}

func (s *EmbeddingCacheTestSuite) TestSetMany_Pipelined() {
	texts := []string{"甲", "乙"}
	keys := s.cache.keys("m", texts)
	s.mock.ExpectSet(keys[0], "[1,2]", time.Hour).SetVal("OK")
	s.mock.ExpectSet(keys[1], "[3]", time.Hour).SetVal("OK")

	err := s.cache.SetMany(context.Background(), "m", texts, [][]float32{{1, 2}, {3}})
	s.NoError(err)
}

func (s *EmbeddingCacheTestSuite) TestSetMany_LengthMismatch() {
	err := s.cache.SetMany(context.Background(), "m", []string{"甲"}, nil)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func (s *EmbeddingCacheTestSuite) TestClosedClient() {
	s.Require().NoError(s.cache.client.Close())
	_, err := s.cache.GetMany(context.Background(), "m", []string{"甲"})
	s.ErrorIs(err, ErrClientClosed)
}

func TestEmbeddingCacheSuite(t *testing.T) {
	suite.Run(t, new(EmbeddingCacheTestSuite))
}
