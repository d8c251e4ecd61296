package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"studybuddy/internal/models"
)

type parsedChoice struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type parsedQuestion struct {
	QuestionText  string         `json:"question_text"`
	QuestionType  string         `json:"question_type"`
	Choices       []parsedChoice `json:"choices,omitempty"`
	CorrectAnswer string         `json:"correct_answer,omitempty"`
	Explanation   string         `json:"explanation,omitempty"`
	Points        float64        `json:"points,omitempty"`
}

// ParseQuestions decodes a model response into the strict question schema.
// Any deviation (malformed JSON, wrong count, missing fields, an MCQ without
// exactly one correct choice) is an error; the caller decides whether to
// retry with a corrective prompt.
func ParseQuestions(raw string, testType models.TestType, want int) ([]parsedQuestion, error) {
	cleaned := extractJSONArray(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("response contains no JSON array")
	}
	var questions []parsedQuestion
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		return nil, fmt.Errorf("decode question array: %w", err)
	}
	if len(questions) != want {
		return nil, fmt.Errorf("expected %d questions, got %d", want, len(questions))
	}
	for i := range questions {
		if err := validateQuestion(&questions[i], testType); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return questions, nil
}

func validateQuestion(q *parsedQuestion, testType models.TestType) error {
	if strings.TrimSpace(q.QuestionText) == "" {
		return fmt.Errorf("missing question_text")
	}
	qt := models.QuestionType(q.QuestionType)
	switch qt {
	case models.QuestionMCQ, models.QuestionShortAnswer, models.QuestionLongAnswer:
	default:
		return fmt.Errorf("invalid question_type %q", q.QuestionType)
	}
	if testType != models.TestMixed && string(qt) != string(testType) {
		return fmt.Errorf("question_type %q does not match requested test type %q", qt, testType)
	}

	switch qt {
	case models.QuestionMCQ:
		if len(q.Choices) < 2 {
			return fmt.Errorf("mcq needs at least 2 choices, got %d", len(q.Choices))
		}
		correct := 0
		for _, c := range q.Choices {
			if strings.TrimSpace(c.Text) == "" {
				return fmt.Errorf("mcq has an empty choice")
			}
			if c.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("mcq needs exactly one correct choice, got %d", correct)
		}
	default:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("%s missing correct_answer", qt)
		}
	}

	if q.Points <= 0 {
		if qt == models.QuestionLongAnswer {
			q.Points = 3
		} else {
			q.Points = 1
		}
	}
	return nil
}

// extractJSONArray recovers the array from responses that wrap it in prose or
// markdown fences, and closes a truncated trailing bracket.
func extractJSONArray(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}
	s = s[start:]
	if end := strings.LastIndex(s, "]"); end >= 0 {
		s = s[:end+1]
	} else {
		s = strings.TrimRight(s, ", \n\t") + "]"
	}
	return strings.TrimSpace(s)
}
