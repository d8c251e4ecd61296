package grader

import (
	"fmt"
	"strings"

	"studybuddy/internal/models"
)

const gradingSystemPrompt = "You are a strict but fair grader. Judge the student answer against the expected answer and respond with valid JSON only."

func buildRubricPrompt(q models.Question, answerText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Grade this %s response.\n\nQuestion: %s\n", q.Type, q.Text)
	if q.CorrectAnswer != "" {
		fmt.Fprintf(&b, "Expected answer / key points: %s\n", q.CorrectAnswer)
	}
	if q.Explanation != "" {
		fmt.Fprintf(&b, "Grading notes: %s\n", q.Explanation)
	}
	fmt.Fprintf(&b, "Maximum points: %g\n\nStudent answer: %s\n", q.Points, answerText)
	fmt.Fprintf(&b, `
Award partial credit where deserved. Respond with a JSON object:
{"correct": true|false, "points_awarded": <number between 0 and %g>, "feedback": "<one or two sentences for the student>"}
`, q.Points)
	return b.String()
}

func buildSummaryPrompt(test models.Test, score, maxScore float64) string {
	return fmt.Sprintf(`A student scored %g out of %g on the test %q (%s).
Write two supportive sentences summarizing their performance and what to review next. Plain text, no JSON.`,
		score, maxScore, test.Title, test.TestType)
}

// fallbackFeedback mirrors the banded messages used when the model is
// unavailable.
func fallbackFeedback(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Excellent! You've demonstrated a thorough understanding of the material."
	case percentage >= 80:
		return "Great job! You have a good grasp of most concepts."
	case percentage >= 70:
		return "Good work! You understand many key concepts, but there's room for improvement."
	case percentage >= 60:
		return "Satisfactory. You've grasped some concepts, but should review the material further."
	default:
		return "You need more practice. Review the material and try again."
	}
}
