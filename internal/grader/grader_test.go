package grader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studybuddy/internal/models"
	"studybuddy/internal/providers"
	"studybuddy/internal/util"
)

type fakeAttempts struct {
	attempt   models.Attempt
	finalized int
	upserted  []models.Answer
}

func (f *fakeAttempts) GetAttempt(_ context.Context, _, attemptID string) (models.Attempt, error) {
	if f.attempt.AttemptID != attemptID {
		return models.Attempt{}, util.ErrAttemptNotFound
	}
	return f.attempt, nil
}

func (f *fakeAttempts) UpsertAnswer(_ context.Context, ans models.Answer) error {
	f.upserted = append(f.upserted, ans)
	return nil
}

func (f *fakeAttempts) FinalizeAttempt(_ context.Context, a models.Attempt) error {
	f.finalized++
	if f.attempt.Completed() {
		// Lost the race; keep the stored result.
		return nil
	}
	f.attempt = a
	return nil
}

type fakeTests struct {
	test models.Test
}

func (f *fakeTests) GetTest(_ context.Context, _, testID string) (models.Test, error) {
	if f.test.TestID != testID {
		return models.Test{}, util.ErrTestNotFound
	}
	return f.test, nil
}

type scriptedLLM struct {
	byOperation map[string]string
	err         error
	calls       []string
}

func (s *scriptedLLM) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	s.calls = append(s.calls, req.Operation)
	if s.err != nil {
		return providers.GenerateResponse{}, providers.ProviderInfo{}, s.err
	}
	return providers.GenerateResponse{Text: s.byOperation[req.Operation]}, providers.ProviderInfo{Name: "scripted"}, nil
}

func mcqQuestion(id string, points float64) models.Question {
	return models.Question{
		QuestionID: id,
		TestID:     "t1",
		Type:       models.QuestionMCQ,
		Text:       "Pick one.",
		Points:     points,
		Choices: []models.Choice{
			{ChoiceID: id + "-right", QuestionID: id, Text: "right", IsCorrect: true},
			{ChoiceID: id + "-wrong", QuestionID: id, Text: "wrong", IsCorrect: false},
		},
	}
}

func shortQuestion(id string, points float64) models.Question {
	return models.Question{
		QuestionID:    id,
		TestID:        "t1",
		Type:          models.QuestionShortAnswer,
		Text:          "Explain.",
		Points:        points,
		CorrectAnswer: "The expected answer.",
	}
}

func newFixture(questions []models.Question, answers []models.Answer, llm LLM) (*Grader, *fakeAttempts) {
	attempts := &fakeAttempts{attempt: models.Attempt{
		AttemptID: "a1",
		TestID:    "t1",
		UserID:    "u1",
		StartedAt: time.Now().UTC(),
		Answers:   answers,
	}}
	tests := &fakeTests{test: models.Test{TestID: "t1", UserID: "u1", Title: "Quiz", TestType: models.TestMCQ, Questions: questions}}
	return NewGrader(attempts, tests, llm, time.Second, zap.NewNop().Sugar()), attempts
}

func TestCompleteGradesMCQDeterministically(t *testing.T) {
	questions := []models.Question{mcqQuestion("q1", 1), mcqQuestion("q2", 1)}
	answers := []models.Answer{
		{AttemptID: "a1", QuestionID: "q1", SelectedChoiceID: "q1-right"},
		{AttemptID: "a1", QuestionID: "q2", SelectedChoiceID: "q2-wrong"},
	}
	llm := &scriptedLLM{byOperation: map[string]string{"attempt_feedback": "Keep going."}}
	g, attempts := newFixture(questions, answers, llm)

	result, err := g.Complete(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.True(t, result.Completed())
	require.Equal(t, 1.0, result.Score)
	require.Equal(t, 2.0, result.MaxScore)
	require.Equal(t, 50.0, result.Percentage)
	require.Equal(t, 1, attempts.finalized)

	require.True(t, *result.Answers[0].IsCorrect)
	require.False(t, *result.Answers[1].IsCorrect)
	require.Equal(t, 0.0, result.Answers[1].PointsAwarded)
	// MCQ grading never consults the model.
	require.NotContains(t, llm.calls, "answer_grading")
}

func TestCompleteGradesFreeTextWithRubric(t *testing.T) {
	questions := []models.Question{shortQuestion("q1", 2)}
	answers := []models.Answer{{AttemptID: "a1", QuestionID: "q1", AnswerText: "My answer."}}
	llm := &scriptedLLM{byOperation: map[string]string{
		"answer_grading":   `{"correct":true,"points_awarded":1.5,"feedback":"Mostly right."}`,
		"attempt_feedback": "Solid work.",
	}}
	g, _ := newFixture(questions, answers, llm)

	result, err := g.Complete(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, 1.5, result.Score)
	require.Equal(t, 2.0, result.MaxScore)
	require.True(t, *result.Answers[0].IsCorrect)
	require.Equal(t, "Mostly right.", result.Answers[0].Feedback)
	require.Equal(t, "Solid work.", result.Feedback)
}

func TestCompleteClampsRubricPoints(t *testing.T) {
	questions := []models.Question{shortQuestion("q1", 2)}
	answers := []models.Answer{{AttemptID: "a1", QuestionID: "q1", AnswerText: "My answer."}}
	llm := &scriptedLLM{byOperation: map[string]string{
		"answer_grading": `{"correct":true,"points_awarded":99,"feedback":"Generous model."}`,
	}}
	g, _ := newFixture(questions, answers, llm)

	result, err := g.Complete(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, 2.0, result.Answers[0].PointsAwarded)
}

func TestCompleteDegradesWhenGradingBackendFails(t *testing.T) {
	questions := []models.Question{shortQuestion("q1", 2), mcqQuestion("q2", 1)}
	answers := []models.Answer{
		{AttemptID: "a1", QuestionID: "q1", AnswerText: "My answer."},
		{AttemptID: "a1", QuestionID: "q2", SelectedChoiceID: "q2-right"},
	}
	llm := &scriptedLLM{err: errors.New("provider down")}
	g, _ := newFixture(questions, answers, llm)

	result, err := g.Complete(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.True(t, result.Completed())

	var freeText models.Answer
	for _, a := range result.Answers {
		if a.QuestionID == "q1" {
			freeText = a
		}
	}
	require.Nil(t, freeText.IsCorrect)
	require.Equal(t, 0.0, freeText.PointsAwarded)
	require.Equal(t, "Automatic grading unavailable", freeText.Feedback)

	// MCQ grading still counts, and overall feedback falls back to a band.
	require.Equal(t, 1.0, result.Score)
	require.NotEmpty(t, result.Feedback)
}

func TestCompleteEmptyFreeTextAnswer(t *testing.T) {
	questions := []models.Question{shortQuestion("q1", 2)}
	answers := []models.Answer{{AttemptID: "a1", QuestionID: "q1", AnswerText: "   "}}
	llm := &scriptedLLM{byOperation: map[string]string{}}
	g, _ := newFixture(questions, answers, llm)

	result, err := g.Complete(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.False(t, *result.Answers[0].IsCorrect)
	require.Equal(t, 0.0, result.Answers[0].PointsAwarded)
	require.NotContains(t, llm.calls, "answer_grading")
}

func TestCompleteIsIdempotent(t *testing.T) {
	questions := []models.Question{mcqQuestion("q1", 1)}
	answers := []models.Answer{{AttemptID: "a1", QuestionID: "q1", SelectedChoiceID: "q1-right"}}
	llm := &scriptedLLM{byOperation: map[string]string{"attempt_feedback": "Nice."}}
	g, attempts := newFixture(questions, answers, llm)

	first, err := g.Complete(context.Background(), "u1", "a1")
	require.NoError(t, err)

	second, err := g.Complete(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, first.Score, second.Score)
	require.Equal(t, first.CompletedAt, second.CompletedAt)
	require.Equal(t, 1, attempts.finalized)
}

func TestCompleteZeroMaxScore(t *testing.T) {
	llm := &scriptedLLM{byOperation: map[string]string{}}
	g, _ := newFixture(nil, nil, llm)

	result, err := g.Complete(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, 0.0, result.MaxScore)
	require.Equal(t, 0.0, result.Percentage)
	require.True(t, result.Completed())
}

func TestCompleteUnknownAttempt(t *testing.T) {
	g, _ := newFixture(nil, nil, &scriptedLLM{})
	_, err := g.Complete(context.Background(), "u1", "missing")
	require.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestSubmitAnswerValidation(t *testing.T) {
	questions := []models.Question{mcqQuestion("q1", 1), shortQuestion("q2", 1)}
	g, attempts := newFixture(questions, nil, &scriptedLLM{})

	_, err := g.SubmitAnswer(context.Background(), "u1", "a1", "nope", "", "")
	require.ErrorIs(t, err, util.ErrQuestionNotFound)

	_, err = g.SubmitAnswer(context.Background(), "u1", "a1", "q1", "", "bogus-choice")
	require.ErrorIs(t, err, util.ErrChoiceNotFound)

	_, err = g.SubmitAnswer(context.Background(), "u1", "a1", "q2", "text", "q1-right")
	require.Error(t, err)

	ans, err := g.SubmitAnswer(context.Background(), "u1", "a1", "q1", "", "q1-right")
	require.NoError(t, err)
	require.Equal(t, "q1-right", ans.SelectedChoiceID)
	require.Len(t, attempts.upserted, 1)
}

func TestSubmitAnswerRejectsCompletedAttempt(t *testing.T) {
	questions := []models.Question{mcqQuestion("q1", 1)}
	g, attempts := newFixture(questions, nil, &scriptedLLM{})
	now := time.Now().UTC()
	attempts.attempt.CompletedAt = &now

	_, err := g.SubmitAnswer(context.Background(), "u1", "a1", "q1", "", "q1-right")
	require.Error(t, err)
	require.Contains(t, err.Error(), "already completed")
}

func TestFallbackFeedbackBands(t *testing.T) {
	require.Contains(t, fallbackFeedback(95), "Excellent")
	require.Contains(t, fallbackFeedback(85), "Great job")
	require.Contains(t, fallbackFeedback(75), "Good work")
	require.Contains(t, fallbackFeedback(65), "Satisfactory")
	require.Contains(t, fallbackFeedback(30), "more practice")
}

func TestSubmitAnswerAssignsUniqueIDsAcrossQuestions(t *testing.T) {
	questions := []models.Question{mcqQuestion("q1", 1), shortQuestion("q2", 2)}
	g, attempts := newFixture(questions, nil, nil)

	first, err := g.SubmitAnswer(context.Background(), "u1", "a1", "q1", "", "q1-right")
	require.NoError(t, err)
	second, err := g.SubmitAnswer(context.Background(), "u1", "a1", "q2", "Because mitochondria.", "")
	require.NoError(t, err)

	require.NotEmpty(t, first.AnswerID)
	require.NotEmpty(t, second.AnswerID)
	require.NotEqual(t, first.AnswerID, second.AnswerID)

	require.Len(t, attempts.upserted, 2)
	require.Equal(t, first.AnswerID, attempts.upserted[0].AnswerID)
	require.Equal(t, second.AnswerID, attempts.upserted[1].AnswerID)
}
