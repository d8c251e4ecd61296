package generator

import (
	"fmt"
	"strings"

	"studybuddy/internal/models"
)

const systemPrompt = "You are an expert teacher and test creator. You write rigorous questions grounded strictly in the supplied study material and respond with valid JSON only."

func buildPrompt(material string, testType models.TestType, count int, difficulty, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following study material, create exactly %d %s level questions. Test question type: %s.\n\n", count, difficulty, testType)
	b.WriteString("STUDY MATERIAL:\n---\n")
	b.WriteString(material)
	b.WriteString("\n---\n")
	if instructions != "" {
		b.WriteString("\nADDITIONAL INSTRUCTIONS:\n")
		b.WriteString(instructions)
		b.WriteString("\n")
	}
	b.WriteString(typeInstructions(testType))
	b.WriteString(`
IMPORTANT: Return ONLY a valid JSON array of question objects, no prose, no markdown fences.
Every question object requires "question_text", "question_type", "explanation", and "points".
`)
	return b.String()
}

func typeInstructions(testType models.TestType) string {
	switch testType {
	case models.TestMCQ:
		return `
Each question must be multiple-choice with exactly 4 options and exactly one correct option:
{"question_text": "...", "question_type": "mcq",
 "choices": [{"text": "...", "is_correct": false}, {"text": "...", "is_correct": true},
             {"text": "...", "is_correct": false}, {"text": "...", "is_correct": false}],
 "explanation": "...", "points": 1}
`
	case models.TestShortAnswer:
		return `
Each question must require a brief 1-3 sentence response:
{"question_text": "...", "question_type": "short_answer",
 "correct_answer": "the expected answer", "explanation": "...", "points": 2}
`
	case models.TestLongAnswer:
		return `
Each question must be an essay question requiring a detailed response:
{"question_text": "...", "question_type": "long_answer",
 "correct_answer": "key points a good answer must cover", "explanation": "...", "points": 3}
`
	default: // mixed
		return `
Mix multiple-choice, short-answer, and long-answer questions, at least one of each
type when the requested count allows. Use the mcq shape
{"question_text": "...", "question_type": "mcq", "choices": [{"text": "...", "is_correct": true}, ...],
 "explanation": "...", "points": 1}
for multiple-choice, and
{"question_text": "...", "question_type": "short_answer" | "long_answer",
 "correct_answer": "...", "explanation": "...", "points": 2}
for the rest.
`
	}
}

func correctivePrompt(original, problem string) string {
	return original + fmt.Sprintf(`

Your previous response was invalid: %s
Return the corrected JSON array now. Remember: JSON array only, exact question count, required fields on every object.`, problem)
}
