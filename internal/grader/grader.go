// Package grader scores test attempts. Multiple choice questions are
// graded deterministically against the stored choices; free text answers
// go through an LLM rubric, falling back to zero points when no grading
// backend responds.
package grader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studybuddy/internal/models"
	"studybuddy/internal/providers"
	"studybuddy/internal/util"
)

const gradingUnavailableFeedback = "Automatic grading unavailable"

// AttemptStore is the slice of the attempt repository the grader needs.
type AttemptStore interface {
	GetAttempt(ctx context.Context, userID, attemptID string) (models.Attempt, error)
	UpsertAnswer(ctx context.Context, ans models.Answer) error
	FinalizeAttempt(ctx context.Context, a models.Attempt) error
}

// TestSource loads a test with its questions and choices.
type TestSource interface {
	GetTest(ctx context.Context, userID, testID string) (models.Test, error)
}

// LLM is the provider surface used for rubric grading and feedback.
type LLM interface {
	Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error)
}

type Grader struct {
	attempts AttemptStore
	tests    TestSource
	llm      LLM
	timeout  time.Duration
	log      *zap.SugaredLogger
}

func NewGrader(attempts AttemptStore, tests TestSource, llm LLM, timeout time.Duration, log *zap.SugaredLogger) *Grader {
	return &Grader{attempts: attempts, tests: tests, llm: llm, timeout: timeout, log: log}
}

// SubmitAnswer records or overwrites the answer to a single question on an
// in-progress attempt. Any earlier grading result for the question is
// discarded.
func (g *Grader) SubmitAnswer(ctx context.Context, userID, attemptID, questionID, answerText, selectedChoiceID string) (models.Answer, error) {
	attempt, err := g.attempts.GetAttempt(ctx, userID, attemptID)
	if err != nil {
		return models.Answer{}, err
	}
	if attempt.Completed() {
		return models.Answer{}, fmt.Errorf("attempt %s is already completed", attemptID)
	}

	test, err := g.tests.GetTest(ctx, userID, attempt.TestID)
	if err != nil {
		return models.Answer{}, err
	}
	question, ok := findQuestion(test, questionID)
	if !ok {
		return models.Answer{}, util.ErrQuestionNotFound
	}
	if selectedChoiceID != "" {
		if question.Type != models.QuestionMCQ {
			return models.Answer{}, fmt.Errorf("question %s does not take a choice selection", questionID)
		}
		if _, ok := findChoice(question, selectedChoiceID); !ok {
			return models.Answer{}, util.ErrChoiceNotFound
		}
	}

	ans := models.Answer{
		AnswerID:         uuid.NewString(),
		AttemptID:        attemptID,
		QuestionID:       questionID,
		AnswerText:       answerText,
		SelectedChoiceID: selectedChoiceID,
	}
	if err := g.attempts.UpsertAnswer(ctx, ans); err != nil {
		return models.Answer{}, err
	}
	return ans, nil
}

// Complete grades every submitted answer, computes the aggregate score and
// finalizes the attempt. Calling it on an attempt that is already completed
// returns the stored result unchanged.
func (g *Grader) Complete(ctx context.Context, userID, attemptID string) (models.Attempt, error) {
	attempt, err := g.attempts.GetAttempt(ctx, userID, attemptID)
	if err != nil {
		return models.Attempt{}, err
	}
	if attempt.Completed() {
		return attempt, nil
	}

	test, err := g.tests.GetTest(ctx, userID, attempt.TestID)
	if err != nil {
		return models.Attempt{}, err
	}

	answered := make(map[string]models.Answer, len(attempt.Answers))
	for _, ans := range attempt.Answers {
		answered[ans.QuestionID] = ans
	}

	var score, maxScore float64
	graded := make([]models.Answer, 0, len(test.Questions))
	for _, q := range test.Questions {
		maxScore += q.Points
		ans, ok := answered[q.QuestionID]
		if !ok {
			continue
		}
		g.gradeAnswer(ctx, q, &ans)
		score += ans.PointsAwarded
		graded = append(graded, ans)
	}

	percentage := 0.0
	if maxScore > 0 {
		percentage = score / maxScore * 100
	}

	now := time.Now().UTC()
	attempt.Score = score
	attempt.MaxScore = maxScore
	attempt.Percentage = percentage
	attempt.Feedback = g.overallFeedback(ctx, test, score, maxScore, percentage)
	attempt.CompletedAt = &now
	attempt.Answers = graded

	if err := g.attempts.FinalizeAttempt(ctx, attempt); err != nil {
		return models.Attempt{}, err
	}
	// Re-read so a concurrently completed attempt returns the winning result.
	return g.attempts.GetAttempt(ctx, userID, attemptID)
}

func (g *Grader) gradeAnswer(ctx context.Context, q models.Question, ans *models.Answer) {
	switch q.Type {
	case models.QuestionMCQ:
		g.gradeChoice(q, ans)
	default:
		g.gradeFreeText(ctx, q, ans)
	}
}

func (g *Grader) gradeChoice(q models.Question, ans *models.Answer) {
	correct := false
	if ans.SelectedChoiceID != "" {
		if c, ok := findChoice(q, ans.SelectedChoiceID); ok {
			correct = c.IsCorrect
		}
	}
	ans.IsCorrect = &correct
	if correct {
		ans.PointsAwarded = q.Points
		ans.Feedback = "Correct!"
	} else {
		ans.PointsAwarded = 0
		ans.Feedback = "Incorrect."
	}
	if q.Explanation != "" {
		ans.Feedback += " " + q.Explanation
	}
}

func (g *Grader) gradeFreeText(ctx context.Context, q models.Question, ans *models.Answer) {
	if strings.TrimSpace(ans.AnswerText) == "" {
		incorrect := false
		ans.IsCorrect = &incorrect
		ans.PointsAwarded = 0
		ans.Feedback = "No answer provided."
		return
	}
	if g.llm == nil {
		g.markUngradable(ans)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	resp, _, err := g.llm.Generate(cctx, providers.GenerateRequest{
		Operation: "answer_grading",
		System:    gradingSystemPrompt,
		Prompt:    buildRubricPrompt(q, ans.AnswerText),
		JSONMode:  true,
	})
	if err != nil {
		g.log.Warnw("rubric grading failed", "question_id", q.QuestionID, "error", err)
		g.markUngradable(ans)
		return
	}

	verdict, err := parseVerdict(resp.Text)
	if err != nil {
		g.log.Warnw("unparseable grading response", "question_id", q.QuestionID, "error", err)
		g.markUngradable(ans)
		return
	}

	points := verdict.PointsAwarded
	if points < 0 {
		points = 0
	}
	if points > q.Points {
		points = q.Points
	}
	ans.IsCorrect = &verdict.Correct
	ans.PointsAwarded = points
	ans.Feedback = verdict.Feedback
}

// markUngradable records the degraded grading result. IsCorrect stays nil
// so the answer is distinguishable from one judged wrong.
func (g *Grader) markUngradable(ans *models.Answer) {
	ans.IsCorrect = nil
	ans.PointsAwarded = 0
	ans.Feedback = gradingUnavailableFeedback
}

func (g *Grader) overallFeedback(ctx context.Context, test models.Test, score, maxScore, percentage float64) string {
	if g.llm != nil {
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		resp, _, err := g.llm.Generate(cctx, providers.GenerateRequest{
			Operation: "attempt_feedback",
			System:    "You are an encouraging tutor.",
			Prompt:    buildSummaryPrompt(test, score, maxScore),
		})
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return strings.TrimSpace(resp.Text)
		}
		if err != nil {
			g.log.Debugw("attempt feedback generation failed", "test_id", test.TestID, "error", err)
		}
	}
	return fallbackFeedback(percentage)
}

type verdict struct {
	Correct       bool    `json:"correct"`
	PointsAwarded float64 `json:"points_awarded"`
	Feedback      string  `json:"feedback"`
}

func parseVerdict(raw string) (verdict, error) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "{"); idx > 0 {
		raw = raw[idx:]
	}
	if idx := strings.LastIndex(raw, "}"); idx >= 0 {
		raw = raw[:idx+1]
	}
	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return verdict{}, errors.Join(errors.New("grading response is not a rubric object"), err)
	}
	return v, nil
}

func findQuestion(test models.Test, questionID string) (models.Question, bool) {
	for _, q := range test.Questions {
		if q.QuestionID == questionID {
			return q, true
		}
	}
	return models.Question{}, false
}

func findChoice(q models.Question, choiceID string) (models.Choice, bool) {
	for _, c := range q.Choices {
		if c.ChoiceID == choiceID {
			return c, true
		}
	}
	return models.Choice{}, false
}
