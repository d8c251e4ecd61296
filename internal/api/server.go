package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	tclient "go.temporal.io/sdk/client"

	"studybuddy/internal/config"
	"studybuddy/internal/generator"
	"studybuddy/internal/grader"
	"studybuddy/internal/providers"
	"studybuddy/internal/storage"
	"studybuddy/internal/util"
	"studybuddy/internal/vector"
)

type Server struct {
	cfg       config.Config
	db        *storage.DB
	materials *storage.MaterialRepo
	chunks    *storage.ChunkRepo
	tests     *storage.TestRepo
	attempts  *storage.AttemptRepo
	indexer   vector.Indexer
	providers *providers.Manager
	generator *generator.Service
	grader    *grader.Grader
	temporal  tclient.Client
	log       *zap.SugaredLogger
}

func NewServer(cfg config.Config, log *zap.SugaredLogger) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}

	materials := storage.NewMaterialRepo(db)
	chunks := storage.NewChunkRepo(db)
	tests := storage.NewTestRepo(db)
	attempts := storage.NewAttemptRepo(db)

	var idx vector.Indexer
	if pm.EmbeddingEnabled() {
		idx = vector.NewPGIndexer(pm, db, cfg.EmbedDim, cfg.EmbedVersion)
	} else {
		idx = vector.NewDisabledIndexer()
	}

	llm := providers.NewFailoverLLM(pm)
	timeout := time.Duration(cfg.LLMTimeoutSecs) * time.Second

	return &Server{
		cfg:       cfg,
		db:        db,
		materials: materials,
		chunks:    chunks,
		tests:     tests,
		attempts:  attempts,
		indexer:   idx,
		providers: pm,
		generator: generator.NewService(materials, chunks, tests, llm, cfg.GenerationMaxChars, timeout, log),
		grader:    grader.NewGrader(attempts, tests, llm, timeout, log),
		temporal:  tc,
		log:       log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/materials", s.handleMaterials)
	mux.HandleFunc("/materials/", s.handleMaterialsScoped)
	mux.HandleFunc("/tests", s.handleTests)
	mux.HandleFunc("/tests/", s.handleTestsScoped)
	return withCORS(withAuth(s.cfg.JWTSecret, mux))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, util.ErrMaterialNotFound),
		errors.Is(err, util.ErrTestNotFound),
		errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrChoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrNotIndexed):
		return http.StatusConflict
	case errors.Is(err, util.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, util.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "SB-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500 && status != http.StatusBadGateway && status != http.StatusServiceUnavailable:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "SB-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "SB-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "SB-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "SB-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusUnauthorized:
		code = "SB-API-4010"
		msg = "Authentication required."
	case status == http.StatusNotFound:
		code = "SB-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "SB-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "SB-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "SB-LLM-5020"
		msg = "Test generation failed. Retry shortly."
	case status == http.StatusServiceUnavailable:
		code = "SB-VEC-5030"
		msg = "Semantic search is not available. No embedding backend is configured."
	}

	// For 4xx, surface only user-safe validation context.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "not yet indexed"), errors.Is(err, util.ErrNotIndexed):
			msg = "Material is not indexed yet. Wait for processing to finish and retry."
		case errors.Is(err, util.ErrUnsupportedFormat):
			msg = "Unsupported file type. Upload pdf, docx, txt or md."
		case strings.Contains(raw, "required"), strings.Contains(raw, "must "):
			msg = capitalize(err.Error())
		case strings.Contains(raw, "already completed"):
			msg = "Attempt is already completed."
		}
	}

	return apiError{Code: code, Message: msg}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
