package models

import "time"

// EmbeddingStatus is the material ingestion state machine. Transitions are
// monotonic (pending -> processing -> completed|failed) except for explicit
// reprocess requests, which reset to pending. Disabled is set process-wide
// when no embedding backend is configured.
type EmbeddingStatus string

const (
	EmbeddingPending    EmbeddingStatus = "pending"
	EmbeddingProcessing EmbeddingStatus = "processing"
	EmbeddingCompleted  EmbeddingStatus = "completed"
	EmbeddingFailed     EmbeddingStatus = "failed"
	EmbeddingDisabled   EmbeddingStatus = "disabled"
)

type TestType string

const (
	TestMCQ         TestType = "mcq"
	TestShortAnswer TestType = "short_answer"
	TestLongAnswer  TestType = "long_answer"
	TestMixed       TestType = "mixed"
)

func ValidTestType(t TestType) bool {
	switch t {
	case TestMCQ, TestShortAnswer, TestLongAnswer, TestMixed:
		return true
	}
	return false
}

type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionShortAnswer QuestionType = "short_answer"
	QuestionLongAnswer  QuestionType = "long_answer"
)

type Chapter struct {
	Title    string `json:"title"`
	Level    int    `json:"level"`
	Position int    `json:"position"`
}

type MaterialMetadata struct {
	Author    string    `json:"author,omitempty"`
	PageCount int       `json:"page_count,omitempty"`
	WordCount int       `json:"word_count,omitempty"`
	Topics    []string  `json:"topics,omitempty"`
	Chapters  []Chapter `json:"chapters,omitempty"`
}

type Material struct {
	MaterialID      string           `json:"material_id"`
	UserID          string           `json:"user_id"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	MaterialType    string           `json:"material_type,omitempty"`
	FileType        string           `json:"file_type"`
	FilePath        string           `json:"-"`
	ContentText     string           `json:"-"`
	Metadata        MaterialMetadata `json:"metadata"`
	ChunkCount      int              `json:"chunk_count"`
	EmbeddingStatus EmbeddingStatus  `json:"embedding_status"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type Chunk struct {
	ChunkID    string    `json:"chunk_id"`
	MaterialID string    `json:"material_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Chapter    string    `json:"chapter,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ChunkResult struct {
	MaterialID string  `json:"material_id"`
	Title      string  `json:"title"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Chapter    string  `json:"chapter,omitempty"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	ChunkText  string  `json:"chunk_text,omitempty"`
}

type TestSettings struct {
	Difficulty       string `json:"difficulty,omitempty"`
	NumQuestions     int    `json:"num_questions,omitempty"`
	TimeLimitMinutes int    `json:"time_limit_minutes,omitempty"`
	Instructions     string `json:"instructions,omitempty"`
}

type Test struct {
	TestID      string       `json:"test_id"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	TestType    TestType     `json:"test_type"`
	Settings    TestSettings `json:"settings"`
	Questions   []Question   `json:"questions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Question struct {
	QuestionID  string       `json:"question_id"`
	TestID      string       `json:"test_id"`
	Position    int          `json:"position"`
	Text        string       `json:"question_text"`
	Type        QuestionType `json:"question_type"`
	Difficulty  string       `json:"difficulty,omitempty"`
	Points      float64      `json:"points"`
	Explanation string       `json:"explanation,omitempty"`
	// CorrectAnswer holds the expected answer for short/long questions. It is
	// never serialized to the test-taking client.
	CorrectAnswer string   `json:"-"`
	Choices       []Choice `json:"choices,omitempty"`
}

type Choice struct {
	ChoiceID   string `json:"choice_id"`
	QuestionID string `json:"-"`
	Position   int    `json:"-"`
	Text       string `json:"text"`
	// IsCorrect is never serialized to the test-taking client.
	IsCorrect bool `json:"-"`
}

type Attempt struct {
	AttemptID   string     `json:"attempt_id"`
	TestID      string     `json:"test_id"`
	UserID      string     `json:"user_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Score       float64    `json:"score"`
	MaxScore    float64    `json:"max_score"`
	Percentage  float64    `json:"percentage"`
	Feedback    string     `json:"feedback,omitempty"`
	Answers     []Answer   `json:"answers,omitempty"`
}

func (a *Attempt) Completed() bool {
	return a.CompletedAt != nil
}

type Answer struct {
	AnswerID         string  `json:"answer_id"`
	AttemptID        string  `json:"attempt_id"`
	QuestionID       string  `json:"question_id"`
	AnswerText       string  `json:"answer_text,omitempty"`
	SelectedChoiceID string  `json:"selected_choice_id,omitempty"`
	IsCorrect        *bool   `json:"is_correct,omitempty"`
	PointsAwarded    float64 `json:"points_awarded"`
	Feedback         string  `json:"feedback,omitempty"`
}

type Statistics struct {
	TotalAttempts  int             `json:"total_attempts"`
	AverageScore   float64         `json:"average_score"`
	HighestScore   float64         `json:"highest_score"`
	LowestScore    float64         `json:"lowest_score"`
	TestsByType    map[string]int  `json:"tests_by_type"`
	RecentAttempts []RecentAttempt `json:"recent_attempts"`
}

type RecentAttempt struct {
	AttemptID   string    `json:"attempt_id"`
	TestID      string    `json:"test_id"`
	TestTitle   string    `json:"test_title"`
	Score       float64   `json:"score"`
	MaxScore    float64   `json:"max_score"`
	Percentage  float64   `json:"percentage"`
	CompletedAt time.Time `json:"completed_at"`
}
