package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"studybuddy/internal/models"
	"studybuddy/internal/util"

	"github.com/jackc/pgx/v5"
)

type TestRepo struct {
	db *DB
}

func NewTestRepo(db *DB) *TestRepo {
	return &TestRepo{db: db}
}

// CreateTestWithQuestions persists a test, its questions, and their choices
// in one transaction. Either the whole test exists afterwards or none of it.
func (r *TestRepo) CreateTestWithQuestions(ctx context.Context, t models.Test) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshal test settings: %w", err)
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx create test: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
INSERT INTO tests (test_id, user_id, title, description, test_type, settings)
VALUES ($1, $2, $3, $4, $5, $6)`,
		t.TestID, t.UserID, t.Title, t.Description, string(t.TestType), settings)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}
	for _, q := range t.Questions {
		_, err = tx.Exec(ctx, `
INSERT INTO questions (question_id, test_id, position, question_text, question_type, difficulty, points, explanation, correct_answer)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			q.QuestionID, t.TestID, q.Position, q.Text, string(q.Type), q.Difficulty, q.Points, q.Explanation, q.CorrectAnswer)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.QuestionID, err)
		}
		for _, c := range q.Choices {
			_, err = tx.Exec(ctx, `
INSERT INTO choices (choice_id, question_id, position, text, is_correct)
VALUES ($1, $2, $3, $4, $5)`,
				c.ChoiceID, q.QuestionID, c.Position, c.Text, c.IsCorrect)
			if err != nil {
				return fmt.Errorf("insert choice %s: %w", c.ChoiceID, err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create test tx: %w", err)
	}
	return nil
}

func (r *TestRepo) GetTest(ctx context.Context, userID, testID string) (models.Test, error) {
	var (
		t        models.Test
		testType string
		settings []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
SELECT test_id, user_id, title, description, test_type, settings, created_at, updated_at
FROM tests WHERE test_id=$1 AND user_id=$2`, testID, userID).
		Scan(&t.TestID, &t.UserID, &t.Title, &t.Description, &testType, &settings, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Test{}, util.ErrTestNotFound
	}
	if err != nil {
		return models.Test{}, fmt.Errorf("get test: %w", err)
	}
	t.TestType = models.TestType(testType)
	_ = json.Unmarshal(settings, &t.Settings)

	t.Questions, err = r.listQuestions(ctx, testID)
	if err != nil {
		return models.Test{}, err
	}
	return t, nil
}

func (r *TestRepo) listQuestions(ctx context.Context, testID string) ([]models.Question, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT question_id, test_id, position, question_text, question_type, difficulty, points, explanation, correct_answer
FROM questions WHERE test_id=$1 ORDER BY position ASC`, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	questions := make([]models.Question, 0)
	for rows.Next() {
		var (
			q     models.Question
			qtype string
		)
		if err := rows.Scan(&q.QuestionID, &q.TestID, &q.Position, &q.Text, &qtype, &q.Difficulty, &q.Points, &q.Explanation, &q.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = models.QuestionType(qtype)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	for i := range questions {
		choices, err := r.listChoices(ctx, questions[i].QuestionID)
		if err != nil {
			return nil, err
		}
		questions[i].Choices = choices
	}
	return questions, nil
}

func (r *TestRepo) listChoices(ctx context.Context, questionID string) ([]models.Choice, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT choice_id, question_id, position, text, is_correct
FROM choices WHERE question_id=$1 ORDER BY position ASC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	defer rows.Close()

	choices := make([]models.Choice, 0, 4)
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ChoiceID, &c.QuestionID, &c.Position, &c.Text, &c.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

func (r *TestRepo) ListTests(ctx context.Context, userID string) ([]models.Test, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT t.test_id, t.user_id, t.title, t.description, t.test_type, t.settings, t.created_at, t.updated_at
FROM tests t WHERE t.user_id=$1 ORDER BY t.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()

	out := make([]models.Test, 0)
	for rows.Next() {
		var (
			t        models.Test
			testType string
			settings []byte
		)
		if err := rows.Scan(&t.TestID, &t.UserID, &t.Title, &t.Description, &testType, &settings, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		t.TestType = models.TestType(testType)
		_ = json.Unmarshal(settings, &t.Settings)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return out, nil
}

// DeleteTest removes the test; questions, choices, attempts, and answers
// cascade.
func (r *TestRepo) DeleteTest(ctx context.Context, userID, testID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM tests WHERE test_id=$1 AND user_id=$2`, testID, userID)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return util.ErrTestNotFound
	}
	return nil
}
