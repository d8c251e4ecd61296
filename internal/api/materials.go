package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"

	"studybuddy/internal/extract"
	"studybuddy/internal/models"
	"studybuddy/internal/util"
	"studybuddy/internal/workflows"
)

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		mats, err := s.materials.ListMaterials(r.Context(), userID(r))
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"materials": mats})
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleMaterialsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/materials/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	materialID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			m, err := s.materials.GetMaterial(r.Context(), userID(r), materialID)
			if err != nil {
				writeErr(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, m)
		case http.MethodDelete:
			s.handleDeleteMaterial(w, r, materialID)
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "process":
			if r.Method != http.MethodPost {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleProcess(w, r, materialID)
			return
		case "file":
			if r.Method != http.MethodGet {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleDownloadFile(w, r, materialID)
			return
		case "content":
			if r.Method != http.MethodGet {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			content, err := s.materials.GetContent(r.Context(), userID(r), materialID)
			if err != nil {
				writeErr(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"material_id": materialID, "content_text": content})
			return
		case "progress":
			if r.Method != http.MethodGet {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleProgress(w, r, materialID)
			return
		case "search":
			if r.Method != http.MethodGet && r.Method != http.MethodPost {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleSearch(w, r, materialID)
			return
		}
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("file is required"))
		return
	}
	defer file.Close()

	fileType := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !extract.SupportedType(fileType) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: %s", util.ErrUnsupportedFormat, fileType))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	materialID := uuid.NewString()
	savedPath, checksum, err := s.saveUpload(materialID, fileType, file, header)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Infow("stored upload", "material_id", materialID, "file_type", fileType, "bytes", header.Size, "sha256", checksum)

	m := models.Material{
		MaterialID:      materialID,
		UserID:          userID(r),
		Title:           title,
		Description:     strings.TrimSpace(r.FormValue("description")),
		MaterialType:    strings.TrimSpace(r.FormValue("material_type")),
		FileType:        fileType,
		FilePath:        savedPath,
		EmbeddingStatus: models.EmbeddingPending,
	}
	if err := s.materials.CreateMaterial(r.Context(), m); err != nil {
		_ = os.Remove(savedPath)
		writeErr(w, statusFor(err), err)
		return
	}

	if err := s.startIngest(r, materialID); err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	created, err := s.materials.GetMaterial(r.Context(), userID(r), materialID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) saveUpload(materialID, fileType string, src multipart.File, header *multipart.FileHeader) (string, string, error) {
	if err := util.EnsureDir(s.cfg.UploadRoot); err != nil {
		return "", "", err
	}
	tmp, err := os.CreateTemp(s.cfg.UploadRoot, "upload-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", fmt.Errorf("write upload %s: %w", header.Filename, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", fmt.Errorf("rewind upload: %w", err)
	}
	checksum, err := util.SHA256HexFromReader(tmp)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", fmt.Errorf("checksum upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	finalPath := filepath.Join(s.cfg.UploadRoot, materialID+"."+fileType)
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}
	return finalPath, checksum, nil
}

func (s *Server) startIngest(r *http.Request, materialID string) error {
	_, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                    "ingest-" + materialID,
		TaskQueue:             s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.MaterialIngestWorkflow, workflows.MaterialIngestInput{
		MaterialID: materialID,
		UserID:     userID(r),
	})
	return err
}

// handleProcess re-runs the ingestion pipeline for an existing material,
// replacing its chunks and vectors.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, materialID string) {
	if _, err := s.materials.GetMaterial(r.Context(), userID(r), materialID); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if err := s.materials.UpdateStatus(r.Context(), materialID, models.EmbeddingPending, ""); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if err := s.startIngest(r, materialID); err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"material_id": materialID, "status": string(models.EmbeddingPending)})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, materialID string) {
	m, err := s.materials.GetMaterial(r.Context(), userID(r), materialID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	var prog workflows.MaterialIngestProgress
	resp, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+materialID, "", workflows.QueryGetIngestProgress)
	if err != nil {
		// No live workflow to query; derive progress from the stored status.
		writeJSON(w, http.StatusOK, workflows.MaterialIngestProgress{
			MaterialID: materialID,
			Status:     string(m.EmbeddingStatus),
			ChunkCount: m.ChunkCount,
			FailReason: m.ErrorMessage,
		})
		return
	}
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, materialID string) {
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if r.Method == http.MethodGet {
		req.Query = r.URL.Query().Get("query")
		req.TopK, _ = strconv.Atoi(r.URL.Query().Get("top_k"))
	} else if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.SearchDefaultTopK
	}

	m, err := s.materials.GetMaterial(r.Context(), userID(r), materialID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if !s.indexer.Enabled() || m.EmbeddingStatus == models.EmbeddingDisabled {
		writeErr(w, http.StatusServiceUnavailable, util.ErrBackendUnavailable)
		return
	}
	if m.EmbeddingStatus != models.EmbeddingCompleted {
		err := fmt.Errorf("%w: material status is %s", util.ErrNotIndexed, m.EmbeddingStatus)
		writeErr(w, statusFor(err), err)
		return
	}

	results, err := s.indexer.Search(r.Context(), materialID, req.Query, req.TopK)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"material_id": materialID,
		"query":       req.Query,
		"results":     results,
	})
}

// handleDownloadFile serves the originally uploaded file as an attachment.
func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request, materialID string) {
	m, err := s.materials.GetMaterial(r.Context(), userID(r), materialID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if m.FilePath == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("file not found"))
		return
	}
	if _, err := os.Stat(m.FilePath); err != nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("file not found"))
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(m.FilePath)+`"`)
	http.ServeFile(w, r, m.FilePath)
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request, materialID string) {
	filePath, err := s.materials.DeleteMaterial(r.Context(), userID(r), materialID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if filePath != "" {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			s.log.Warnw("remove upload file", "path", filePath, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"material_id": materialID, "deleted": true})
}
