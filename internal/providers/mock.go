package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MockProvider is a deterministic offline stand-in for both the LLM and the
// embedding backend. It understands the prompt shapes used by the question
// generator and grader well enough to emit schema-valid JSON, which keeps
// the full pipeline runnable without API keys.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

var (
	countPattern = regexp.MustCompile(`[Cc]reate exactly (\d+)`)
	typePattern  = regexp.MustCompile(`question type: (\w+)`)
)

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	op := strings.ToLower(req.Operation)
	switch {
	case strings.Contains(op, "question_generation"):
		return GenerateResponse{Text: m.mockQuestions(req.Prompt)}, info, nil
	case strings.Contains(op, "answer_grading"):
		b, _ := json.Marshal(map[string]any{
			"correct":        true,
			"points_awarded": 1,
			"feedback":       "Deterministic mock grading; replace with a real provider for semantic scoring.",
		})
		return GenerateResponse{Text: string(b)}, info, nil
	case strings.Contains(op, "attempt_feedback"):
		return GenerateResponse{Text: "Mock summary: review the material sections covered by the missed questions."}, info, nil
	}
	return GenerateResponse{Text: "Mock response."}, info, nil
}

func (m *MockProvider) mockQuestions(prompt string) string {
	count := 1
	if mm := countPattern.FindStringSubmatch(prompt); mm != nil {
		if n, err := strconv.Atoi(mm[1]); err == nil && n > 0 {
			count = n
		}
	}
	qtype := "mcq"
	if mm := typePattern.FindStringSubmatch(strings.ToLower(prompt)); mm != nil {
		qtype = mm[1]
	}
	types := []string{qtype}
	if qtype == "mixed" {
		types = []string{"mcq", "short_answer", "long_answer"}
	}
	questions := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		t := types[i%len(types)]
		q := map[string]any{
			"question_text": fmt.Sprintf("Mock question %d about the supplied material?", i+1),
			"question_type": t,
			"explanation":   "Mock explanation.",
			"points":        1,
		}
		switch t {
		case "mcq":
			q["choices"] = []map[string]any{
				{"text": "Correct mock option", "is_correct": true},
				{"text": "Distractor one", "is_correct": false},
				{"text": "Distractor two", "is_correct": false},
				{"text": "Distractor three", "is_correct": false},
			}
		case "short_answer":
			q["correct_answer"] = "The expected mock answer."
		case "long_answer":
			q["correct_answer"] = "Key points: mock point one; mock point two."
			q["points"] = 3
		}
		questions = append(questions, q)
	}
	b, _ := json.Marshal(questions)
	return string(b)
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		v := float32(u%2000)/1000.0 - 1.0
		vec[i] = v
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)+1e-9))
	for i := range v {
		v[i] *= inv
	}
	return v
}
