package storage

import (
	"context"
	"errors"
	"fmt"

	"studybuddy/internal/models"
	"studybuddy/internal/util"

	"github.com/jackc/pgx/v5"
)

type AttemptRepo struct {
	db *DB
}

func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

func (r *AttemptRepo) CreateAttempt(ctx context.Context, a models.Attempt) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO attempts (attempt_id, test_id, user_id, started_at)
VALUES ($1, $2, $3, $4)`, a.AttemptID, a.TestID, a.UserID, a.StartedAt)
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepo) GetAttempt(ctx context.Context, userID, attemptID string) (models.Attempt, error) {
	var a models.Attempt
	err := r.db.Pool.QueryRow(ctx, `
SELECT attempt_id, test_id, user_id, started_at, completed_at, score, max_score, percentage, feedback
FROM attempts WHERE attempt_id=$1 AND user_id=$2`, attemptID, userID).
		Scan(&a.AttemptID, &a.TestID, &a.UserID, &a.StartedAt, &a.CompletedAt, &a.Score, &a.MaxScore, &a.Percentage, &a.Feedback)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Attempt{}, util.ErrAttemptNotFound
	}
	if err != nil {
		return models.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}

	a.Answers, err = r.listAnswers(ctx, attemptID)
	if err != nil {
		return models.Attempt{}, err
	}
	return a, nil
}

func (r *AttemptRepo) listAnswers(ctx context.Context, attemptID string) ([]models.Answer, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT an.answer_id, an.attempt_id, an.question_id, an.answer_text, an.selected_choice_id,
       an.is_correct, an.points_awarded, an.feedback
FROM answers an
JOIN questions q ON q.question_id = an.question_id
WHERE an.attempt_id=$1
ORDER BY q.position ASC`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	out := make([]models.Answer, 0)
	for rows.Next() {
		var an models.Answer
		if err := rows.Scan(&an.AnswerID, &an.AttemptID, &an.QuestionID, &an.AnswerText, &an.SelectedChoiceID,
			&an.IsCorrect, &an.PointsAwarded, &an.Feedback); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, an)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return out, nil
}

// UpsertAnswer records or replaces the answer for one question of an
// in-progress attempt.
func (r *AttemptRepo) UpsertAnswer(ctx context.Context, an models.Answer) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO answers (answer_id, attempt_id, question_id, answer_text, selected_choice_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (attempt_id, question_id)
DO UPDATE SET
  answer_text = EXCLUDED.answer_text,
  selected_choice_id = EXCLUDED.selected_choice_id,
  is_correct = NULL,
  points_awarded = 0,
  feedback = ''`,
		an.AnswerID, an.AttemptID, an.QuestionID, an.AnswerText, an.SelectedChoiceID)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

// FinalizeAttempt writes graded answers and the aggregate result in one
// transaction, guarded so a concurrent completion cannot double-grade.
func (r *AttemptRepo) FinalizeAttempt(ctx context.Context, a models.Attempt) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx finalize attempt: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
UPDATE attempts
SET completed_at=$2, score=$3, max_score=$4, percentage=$5, feedback=$6
WHERE attempt_id=$1 AND completed_at IS NULL`,
		a.AttemptID, a.CompletedAt, a.Score, a.MaxScore, a.Percentage, a.Feedback)
	if err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Someone else completed it first; keep their result.
		return nil
	}
	for _, an := range a.Answers {
		_, err := tx.Exec(ctx, `
UPDATE answers SET is_correct=$3, points_awarded=$4, feedback=$5
WHERE attempt_id=$1 AND question_id=$2`,
			a.AttemptID, an.QuestionID, an.IsCorrect, an.PointsAwarded, an.Feedback)
		if err != nil {
			return fmt.Errorf("finalize answer %s: %w", an.QuestionID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit finalize tx: %w", err)
	}
	return nil
}

// Statistics aggregates a user's completed attempts.
func (r *AttemptRepo) Statistics(ctx context.Context, userID string) (models.Statistics, error) {
	stats := models.Statistics{
		TestsByType:    map[string]int{},
		RecentAttempts: []models.RecentAttempt{},
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT a.attempt_id, a.test_id, t.title, t.test_type, a.score, a.max_score, a.percentage, a.completed_at
FROM attempts a
JOIN tests t ON t.test_id = a.test_id
WHERE a.user_id=$1 AND a.completed_at IS NOT NULL
ORDER BY a.completed_at DESC`, userID)
	if err != nil {
		return stats, fmt.Errorf("query statistics: %w", err)
	}
	defer rows.Close()

	var sum float64
	first := true
	for rows.Next() {
		var (
			ra       models.RecentAttempt
			testType string
		)
		if err := rows.Scan(&ra.AttemptID, &ra.TestID, &ra.TestTitle, &testType, &ra.Score, &ra.MaxScore, &ra.Percentage, &ra.CompletedAt); err != nil {
			return stats, fmt.Errorf("scan statistics row: %w", err)
		}
		stats.TotalAttempts++
		stats.TestsByType[testType]++
		sum += ra.Percentage
		if first || ra.Percentage > stats.HighestScore {
			stats.HighestScore = ra.Percentage
		}
		if first || ra.Percentage < stats.LowestScore {
			stats.LowestScore = ra.Percentage
		}
		first = false
		if len(stats.RecentAttempts) < 5 {
			stats.RecentAttempts = append(stats.RecentAttempts, ra)
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate statistics: %w", err)
	}
	if stats.TotalAttempts > 0 {
		stats.AverageScore = sum / float64(stats.TotalAttempts)
	}
	return stats, nil
}
