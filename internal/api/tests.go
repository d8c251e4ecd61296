package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"studybuddy/internal/generator"
	"studybuddy/internal/models"
)

func (s *Server) handleTests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	tests, err := s.tests.ListTests(r.Context(), userID(r))
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tests": tests})
}

func (s *Server) handleTestsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/tests/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	switch parts[0] {
	case "generate":
		if len(parts) != 1 || r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleGenerate(w, r)
		return
	case "statistics":
		if len(parts) != 1 || r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		stats, err := s.attempts.Statistics(r.Context(), userID(r))
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	case "attempts":
		s.handleAttemptsScoped(w, r, parts[1:])
		return
	}

	testID := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			t, err := s.tests.GetTest(r.Context(), userID(r), testID)
			if err != nil {
				writeErr(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, t)
		case http.MethodDelete:
			if err := s.tests.DeleteTest(r.Context(), userID(r), testID); err != nil {
				writeErr(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"test_id": testID, "deleted": true})
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}

	if len(parts) == 2 && parts[1] == "attempt" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleStartAttempt(w, r, testID)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string              `json:"title"`
		Description string              `json:"description"`
		TestType    string              `json:"test_type"`
		MaterialIDs []string            `json:"material_ids"`
		Settings    models.TestSettings `json:"settings"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	test, err := s.generator.Generate(r.Context(), generator.Request{
		UserID:      userID(r),
		Title:       req.Title,
		Description: req.Description,
		TestType:    models.TestType(strings.ToLower(strings.TrimSpace(req.TestType))),
		MaterialIDs: req.MaterialIDs,
		Settings:    req.Settings,
	})
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, test)
}

func (s *Server) handleStartAttempt(w http.ResponseWriter, r *http.Request, testID string) {
	t, err := s.tests.GetTest(r.Context(), userID(r), testID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}

	attempt := models.Attempt{
		AttemptID: uuid.NewString(),
		TestID:    t.TestID,
		UserID:    userID(r),
		StartedAt: time.Now().UTC(),
	}
	if err := s.attempts.CreateAttempt(r.Context(), attempt); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (s *Server) handleAttemptsScoped(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	attemptID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		a, err := s.attempts.GetAttempt(r.Context(), userID(r), attemptID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, a)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "submit":
			if r.Method != http.MethodPost {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			var req struct {
				QuestionID       string `json:"question_id"`
				AnswerText       string `json:"answer_text"`
				SelectedChoiceID string `json:"selected_choice_id"`
			}
			if err := decodeJSON(r, &req); err != nil {
				writeErr(w, http.StatusBadRequest, err)
				return
			}
			if strings.TrimSpace(req.QuestionID) == "" {
				writeErr(w, http.StatusBadRequest, fmt.Errorf("question_id is required"))
				return
			}
			ans, err := s.grader.SubmitAnswer(r.Context(), userID(r), attemptID, req.QuestionID, req.AnswerText, req.SelectedChoiceID)
			if err != nil {
				if strings.Contains(err.Error(), "already completed") {
					writeErr(w, http.StatusConflict, err)
					return
				}
				writeErr(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, ans)
			return
		case "complete":
			if r.Method != http.MethodPost {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			a, err := s.grader.Complete(r.Context(), userID(r), attemptID)
			if err != nil {
				writeErr(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, a)
			return
		}
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}
