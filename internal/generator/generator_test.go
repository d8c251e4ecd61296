package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studybuddy/internal/models"
	"studybuddy/internal/providers"
	"studybuddy/internal/util"
)

type fakeMaterials struct {
	mats []models.Material
}

func (f *fakeMaterials) ListMaterialsByIDs(_ context.Context, _ string, ids []string) ([]models.Material, error) {
	out := make([]models.Material, 0, len(ids))
	for _, id := range ids {
		for _, m := range f.mats {
			if m.MaterialID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

type fakeChunks struct {
	byMaterial map[string][]models.Chunk
}

func (f *fakeChunks) ListChunksByMaterial(_ context.Context, materialID string) ([]models.Chunk, error) {
	return f.byMaterial[materialID], nil
}

type fakeSink struct {
	created []models.Test
	err     error
}

func (f *fakeSink) CreateTestWithQuestions(_ context.Context, t models.Test) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, t)
	return nil
}

type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (s *scriptedLLM) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, req.Prompt)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	text := ""
	if i < len(s.responses) {
		text = s.responses[i]
	}
	return providers.GenerateResponse{Text: text}, providers.ProviderInfo{Name: "scripted"}, err
}

func completedMaterial(id, title string) models.Material {
	return models.Material{MaterialID: id, UserID: "u1", Title: title, EmbeddingStatus: models.EmbeddingCompleted}
}

func newTestService(mats *fakeMaterials, chunks *fakeChunks, sink *fakeSink, llm LLM) *Service {
	return NewService(mats, chunks, sink, llm, 15000, 5*time.Second, zap.NewNop().Sugar())
}

func baseRequest() Request {
	return Request{
		UserID:      "u1",
		Title:       "Cell quiz",
		TestType:    models.TestMCQ,
		MaterialIDs: []string{"m1"},
		Settings:    models.TestSettings{NumQuestions: 2, Difficulty: "medium"},
	}
}

func TestGenerateHappyPath(t *testing.T) {
	mats := &fakeMaterials{mats: []models.Material{completedMaterial("m1", "Cells")}}
	chunks := &fakeChunks{byMaterial: map[string][]models.Chunk{
		"m1": {{ChunkID: "c1", MaterialID: "m1", Text: "Mitochondria produce ATP."}},
	}}
	sink := &fakeSink{}
	llm := &scriptedLLM{responses: []string{validMCQPair}}

	test, err := newTestService(mats, chunks, sink, llm).Generate(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Equal(t, 1, llm.calls)
	require.Len(t, sink.created, 1)
	require.Len(t, test.Questions, 2)
	require.Equal(t, 0, test.Questions[0].Position)
	require.Equal(t, 1, test.Questions[1].Position)
	require.Equal(t, models.QuestionMCQ, test.Questions[0].Type)
	require.NotEmpty(t, test.Questions[0].Choices)
	require.Contains(t, llm.prompts[0], "Mitochondria produce ATP.")
}

func TestGenerateRejectsUnindexedMaterialBeforeLLMCall(t *testing.T) {
	mats := &fakeMaterials{mats: []models.Material{
		{MaterialID: "m1", UserID: "u1", Title: "Cells", EmbeddingStatus: models.EmbeddingProcessing},
	}}
	sink := &fakeSink{}
	llm := &scriptedLLM{responses: []string{validMCQPair}}

	_, err := newTestService(mats, &fakeChunks{}, sink, llm).Generate(context.Background(), baseRequest())
	require.ErrorIs(t, err, util.ErrNotIndexed)
	require.Zero(t, llm.calls)
	require.Empty(t, sink.created)
}

func TestGenerateUnknownMaterial(t *testing.T) {
	mats := &fakeMaterials{}
	llm := &scriptedLLM{}

	_, err := newTestService(mats, &fakeChunks{}, &fakeSink{}, llm).Generate(context.Background(), baseRequest())
	require.ErrorIs(t, err, util.ErrMaterialNotFound)
	require.Zero(t, llm.calls)
}

func TestGenerateRetriesOnceOnSchemaViolation(t *testing.T) {
	mats := &fakeMaterials{mats: []models.Material{completedMaterial("m1", "Cells")}}
	chunks := &fakeChunks{byMaterial: map[string][]models.Chunk{
		"m1": {{ChunkID: "c1", MaterialID: "m1", Text: "content"}},
	}}
	sink := &fakeSink{}
	llm := &scriptedLLM{responses: []string{"not json at all", validMCQPair}}

	test, err := newTestService(mats, chunks, sink, llm).Generate(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Equal(t, 2, llm.calls)
	require.Len(t, test.Questions, 2)
	// The corrective prompt names the problem with the first response.
	require.Contains(t, llm.prompts[1], "previous response")
}

func TestGenerateFailsAfterSecondBadResponse(t *testing.T) {
	mats := &fakeMaterials{mats: []models.Material{completedMaterial("m1", "Cells")}}
	chunks := &fakeChunks{byMaterial: map[string][]models.Chunk{
		"m1": {{ChunkID: "c1", MaterialID: "m1", Text: "content"}},
	}}
	sink := &fakeSink{}
	llm := &scriptedLLM{responses: []string{"bad", "still bad"}}

	_, err := newTestService(mats, chunks, sink, llm).Generate(context.Background(), baseRequest())
	require.ErrorIs(t, err, util.ErrGenerationFailed)
	require.Equal(t, 2, llm.calls)
	require.Empty(t, sink.created)
}

func TestGenerateProviderError(t *testing.T) {
	mats := &fakeMaterials{mats: []models.Material{completedMaterial("m1", "Cells")}}
	chunks := &fakeChunks{byMaterial: map[string][]models.Chunk{
		"m1": {{ChunkID: "c1", MaterialID: "m1", Text: "content"}},
	}}
	llm := &scriptedLLM{errs: []error{errors.New("provider down")}}

	_, err := newTestService(mats, chunks, &fakeSink{}, llm).Generate(context.Background(), baseRequest())
	require.ErrorIs(t, err, util.ErrGenerationFailed)
}

func TestGenerateValidatesSettings(t *testing.T) {
	mats := &fakeMaterials{mats: []models.Material{completedMaterial("m1", "Cells")}}
	svc := newTestService(mats, &fakeChunks{}, &fakeSink{}, &scriptedLLM{})

	req := baseRequest()
	req.Title = "  "
	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)

	req = baseRequest()
	req.TestType = "essay"
	_, err = svc.Generate(context.Background(), req)
	require.Error(t, err)

	req = baseRequest()
	req.MaterialIDs = nil
	_, err = svc.Generate(context.Background(), req)
	require.Error(t, err)

	req = baseRequest()
	req.Settings.NumQuestions = 51
	_, err = svc.Generate(context.Background(), req)
	require.Error(t, err)

	req = baseRequest()
	req.Settings.Difficulty = "impossible"
	_, err = svc.Generate(context.Background(), req)
	require.Error(t, err)
}

func TestGenerateRoundRobinSampling(t *testing.T) {
	mats := &fakeMaterials{mats: []models.Material{
		completedMaterial("m1", "Alpha"),
		completedMaterial("m2", "Beta"),
	}}
	chunks := &fakeChunks{byMaterial: map[string][]models.Chunk{
		"m1": {
			{ChunkID: "a0", MaterialID: "m1", ChunkIndex: 0, Text: "alpha zero"},
			{ChunkID: "a1", MaterialID: "m1", ChunkIndex: 1, Text: "alpha one"},
		},
		"m2": {
			{ChunkID: "b0", MaterialID: "m2", ChunkIndex: 0, Text: "beta zero"},
		},
	}}
	llm := &scriptedLLM{responses: []string{validMCQPair}}
	req := baseRequest()
	req.MaterialIDs = []string{"m1", "m2"}

	_, err := newTestService(mats, chunks, &fakeSink{}, llm).Generate(context.Background(), req)
	require.NoError(t, err)

	prompt := llm.prompts[0]
	require.Less(t, indexOf(t, prompt, "alpha zero"), indexOf(t, prompt, "beta zero"))
	require.Less(t, indexOf(t, prompt, "beta zero"), indexOf(t, prompt, "alpha one"))
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	idx := strings.Index(s, sub)
	require.GreaterOrEqual(t, idx, 0, "expected %q in prompt", sub)
	return idx
}

func TestSampleChunksTruncatesOnRuneBoundary(t *testing.T) {
	mats := &fakeMaterials{mats: []models.Material{completedMaterial("m1", "Cells")}}
	chunks := &fakeChunks{byMaterial: map[string][]models.Chunk{
		"m1": {{ChunkID: "c1", MaterialID: "m1", Text: strings.Repeat("ü", 100)}},
	}}
	// An odd byte budget lands mid-rune in the two-byte "ü" sequence.
	svc := NewService(mats, chunks, &fakeSink{}, &scriptedLLM{}, 21, time.Second, zap.NewNop().Sugar())

	sample, err := svc.sampleChunks(context.Background(), mats.mats)
	require.NoError(t, err)
	require.True(t, utf8.ValidString(sample))
	require.Contains(t, sample, "ü")
}
