// Package generator turns indexed study materials into persisted tests by
// prompting a language model and validating its output against a strict
// schema.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"studybuddy/internal/models"
	"studybuddy/internal/providers"
	"studybuddy/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MaterialSource interface {
	ListMaterialsByIDs(ctx context.Context, userID string, materialIDs []string) ([]models.Material, error)
}

type ChunkSource interface {
	ListChunksByMaterial(ctx context.Context, materialID string) ([]models.Chunk, error)
}

type TestSink interface {
	CreateTestWithQuestions(ctx context.Context, t models.Test) error
}

type LLM interface {
	Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error)
}

type Request struct {
	UserID      string
	Title       string
	Description string
	TestType    models.TestType
	MaterialIDs []string
	Settings    models.TestSettings
}

type Service struct {
	materials MaterialSource
	chunks    ChunkSource
	tests     TestSink
	llm       LLM
	maxChars  int
	timeout   time.Duration
	log       *zap.SugaredLogger
}

func NewService(materials MaterialSource, chunks ChunkSource, tests TestSink, llm LLM, maxChars int, timeout time.Duration, log *zap.SugaredLogger) *Service {
	if maxChars <= 0 {
		maxChars = 15000
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{materials: materials, chunks: chunks, tests: tests, llm: llm, maxChars: maxChars, timeout: timeout, log: log}
}

// Generate validates the request, samples chunks, prompts the model (with one
// corrective retry on schema violations), and persists the test atomically.
// Nothing is persisted on failure.
func (s *Service) Generate(ctx context.Context, req Request) (models.Test, error) {
	if err := validateRequest(&req); err != nil {
		return models.Test{}, err
	}

	materials, err := s.materials.ListMaterialsByIDs(ctx, req.UserID, req.MaterialIDs)
	if err != nil {
		return models.Test{}, err
	}
	if len(materials) != len(req.MaterialIDs) {
		return models.Test{}, util.ErrMaterialNotFound
	}
	// All materials must be fully indexed before any model call is made.
	for _, m := range materials {
		if m.EmbeddingStatus != models.EmbeddingCompleted {
			return models.Test{}, fmt.Errorf("%w: material %s has embedding_status %s", util.ErrNotIndexed, m.MaterialID, m.EmbeddingStatus)
		}
	}

	sample, err := s.sampleChunks(ctx, materials)
	if err != nil {
		return models.Test{}, err
	}
	if strings.TrimSpace(sample) == "" {
		return models.Test{}, fmt.Errorf("%w: materials contain no indexed text", util.ErrGenerationFailed)
	}

	parsed, err := s.generateWithRetry(ctx, sample, req)
	if err != nil {
		return models.Test{}, err
	}

	test := buildTest(req, parsed)
	if err := s.tests.CreateTestWithQuestions(ctx, test); err != nil {
		return models.Test{}, err
	}
	return test, nil
}

func validateRequest(req *Request) error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !models.ValidTestType(req.TestType) {
		return fmt.Errorf("invalid test_type %q", req.TestType)
	}
	if len(req.MaterialIDs) == 0 {
		return fmt.Errorf("at least one material_id is required")
	}
	if req.Settings.NumQuestions <= 0 {
		req.Settings.NumQuestions = 5
	}
	if req.Settings.NumQuestions > 50 {
		return fmt.Errorf("num_questions must be at most 50")
	}
	if req.Settings.Difficulty == "" {
		req.Settings.Difficulty = "medium"
	}
	switch req.Settings.Difficulty {
	case "easy", "medium", "hard":
	default:
		return fmt.Errorf("invalid difficulty %q", req.Settings.Difficulty)
	}
	return nil
}

// sampleChunks walks the materials round-robin, taking the next chunk of each
// in turn until the context budget is spent. Round-robin keeps every selected
// material represented in the prompt even when one is much longer.
func (s *Service) sampleChunks(ctx context.Context, materials []models.Material) (string, error) {
	perMaterial := make([][]models.Chunk, 0, len(materials))
	for _, m := range materials {
		chunks, err := s.chunks.ListChunksByMaterial(ctx, m.MaterialID)
		if err != nil {
			return "", err
		}
		perMaterial = append(perMaterial, chunks)
	}

	var b strings.Builder
	for round := 0; b.Len() < s.maxChars; round++ {
		took := false
		for i, chunks := range perMaterial {
			if round >= len(chunks) {
				continue
			}
			took = true
			remaining := s.maxChars - b.Len()
			if remaining <= 0 {
				break
			}
			text := chunks[round].Text
			if len(text) > remaining {
				cut := remaining
				for cut > 0 && !utf8.RuneStart(text[cut]) {
					cut--
				}
				text = text[:cut]
			}
			fmt.Fprintf(&b, "[%s]\n%s\n\n", materials[i].Title, text)
		}
		if !took {
			break
		}
	}
	return b.String(), nil
}

func (s *Service) generateWithRetry(ctx context.Context, sample string, req Request) ([]parsedQuestion, error) {
	prompt := buildPrompt(sample, req.TestType, req.Settings.NumQuestions, req.Settings.Difficulty, req.Settings.Instructions)

	raw, err := s.call(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrGenerationFailed, err)
	}
	parsed, parseErr := ParseQuestions(raw, req.TestType, req.Settings.NumQuestions)
	if parseErr == nil {
		return parsed, nil
	}
	s.log.Warnw("question generation failed validation, retrying with correction",
		"test_type", req.TestType, "error", parseErr)

	raw, err = s.call(ctx, correctivePrompt(prompt, parseErr.Error()))
	if err != nil {
		return nil, fmt.Errorf("%w: retry call: %v", util.ErrGenerationFailed, err)
	}
	parsed, parseErr = ParseQuestions(raw, req.TestType, req.Settings.NumQuestions)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrGenerationFailed, parseErr)
	}
	return parsed, nil
}

func (s *Service) call(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, _, err := s.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "question_generation",
		System:    systemPrompt,
		Prompt:    prompt,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func buildTest(req Request, parsed []parsedQuestion) models.Test {
	now := time.Now().UTC()
	test := models.Test{
		TestID:      uuid.NewString(),
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		TestType:    req.TestType,
		Settings:    req.Settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, pq := range parsed {
		q := models.Question{
			QuestionID:    uuid.NewString(),
			TestID:        test.TestID,
			Position:      i,
			Text:          pq.QuestionText,
			Type:          models.QuestionType(pq.QuestionType),
			Difficulty:    req.Settings.Difficulty,
			Points:        pq.Points,
			Explanation:   pq.Explanation,
			CorrectAnswer: pq.CorrectAnswer,
		}
		for j, pc := range pq.Choices {
			q.Choices = append(q.Choices, models.Choice{
				ChoiceID:   uuid.NewString(),
				QuestionID: q.QuestionID,
				Position:   j,
				Text:       pc.Text,
				IsCorrect:  pc.IsCorrect,
			})
		}
		test.Questions = append(test.Questions, q)
	}
	return test
}
