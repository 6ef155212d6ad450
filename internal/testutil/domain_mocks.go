package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/casefile"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/draft"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/law"
)

// MockGenerator is a testify mock of the text-generation collaborator.
type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockEmbedder is a testify mock of the batch embedder.
type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if v := args.Get(0); v != nil {
		return v.([][]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

// ConstantEmbedder returns the same vector for every text.
type ConstantEmbedder []float32

func (c ConstantEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), c...)
	}
	return out, nil
}

// MockIndex mocks chunk.Index.
type MockIndex struct{ mock.Mock }

func (m *MockIndex) Upsert(ctx context.Context, chunks []chunk.IndexedChunk) error {
	return m.Called(ctx, chunks).Error(0)
}

func (m *MockIndex) Search(ctx context.Context, q chunk.SearchQuery) ([]chunk.SearchHit, error) {
	args := m.Called(ctx, q)
	if v := args.Get(0); v != nil {
		return v.([]chunk.SearchHit), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIndex) MaxCaseID(ctx context.Context) (int64, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockIndex) CountChunks(ctx context.Context, caseID int64, t chunk.Type) (int, error) {
	args := m.Called(ctx, caseID, t)
	return args.Int(0), args.Error(1)
}

// MockLawRepository mocks law.Repository.
type MockLawRepository struct{ mock.Mock }

func (m *MockLawRepository) LawNumbersByCase(ctx context.Context, caseIDs []int64) (map[int64][]string, error) {
	args := m.Called(ctx, caseIDs)
	if v := args.Get(0); v != nil {
		return v.(map[int64][]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLawRepository) UpsertCitations(ctx context.Context, citations []law.Citation) error {
	return m.Called(ctx, citations).Error(0)
}

func (m *MockLawRepository) GetCitations(ctx context.Context, numbers []string) ([]law.Citation, error) {
	args := m.Called(ctx, numbers)
	if v := args.Get(0); v != nil {
		return v.([]law.Citation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLawRepository) LinkCase(ctx context.Context, caseID int64, numbers []string) error {
	return m.Called(ctx, caseID, numbers).Error(0)
}

// MockCaseRepository mocks casefile.Repository.
type MockCaseRepository struct{ mock.Mock }

func (m *MockCaseRepository) MaxCaseID(ctx context.Context) (int64, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockCaseRepository) Save(ctx context.Context, rec *casefile.CaseRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockCaseRepository) Get(ctx context.Context, caseID int64) (*casefile.CaseRecord, error) {
	args := m.Called(ctx, caseID)
	if v := args.Get(0); v != nil {
		return v.(*casefile.CaseRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCaseRepository) SaveSections(ctx context.Context, caseID int64, sections *document.Indictment) error {
	return m.Called(ctx, caseID, sections).Error(0)
}

func (m *MockCaseRepository) GetSections(ctx context.Context, caseID int64) (*document.Indictment, error) {
	args := m.Called(ctx, caseID)
	if v := args.Get(0); v != nil {
		return v.(*document.Indictment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCaseRepository) Conclusions(ctx context.Context, caseIDs []int64) (map[int64]string, error) {
	args := m.Called(ctx, caseIDs)
	if v := args.Get(0); v != nil {
		return v.(map[int64]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockQueryRepository mocks casefile.QueryRepository.
type MockQueryRepository struct{ mock.Mock }

func (m *MockQueryRepository) SaveQuery(ctx context.Context, text string) (*casefile.UserQuery, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.(*casefile.UserQuery), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRunRepository mocks draft.RunRepository.
type MockRunRepository struct{ mock.Mock }

func (m *MockRunRepository) Create(ctx context.Context, run *draft.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepository) Update(ctx context.Context, run *draft.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepository) Get(ctx context.Context, id string) (*draft.Run, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*draft.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunRepository) ListRecent(ctx context.Context, limit int) ([]*draft.Run, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*draft.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	_ chunk.Index              = (*MockIndex)(nil)
	_ law.Repository           = (*MockLawRepository)(nil)
	_ casefile.Repository      = (*MockCaseRepository)(nil)
	_ casefile.QueryRepository = (*MockQueryRepository)(nil)
	_ draft.RunRepository      = (*MockRunRepository)(nil)
)
