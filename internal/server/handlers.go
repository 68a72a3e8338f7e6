package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/verichain-labs/verichain/internal/content"
	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/internal/pipeline"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Step    string `json:"step,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, step, msg string) {
	writeJSON(w, code, errorResponse{Error: msg, Step: step})
}

// writePipelineError maps a pipeline failure onto the wire: validation
// failures are the user's to fix (400), everything else is a 500.
func writePipelineError(w http.ResponseWriter, err error) {
	step := ""
	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		step = stepErr.Step
	}

	var valErr *content.ValidationError
	if errors.As(err, &valErr) {
		writeError(w, http.StatusBadRequest, step, valErr.Reason)
		return
	}

	zap.L().Error("server: verification failed", zap.String("step", step), zap.Error(err))
	writeError(w, http.StatusInternalServerError, step, "verification failed")
}

// readUpload extracts the multipart image field, bounded by the configured
// size ceiling plus slack so the pipeline still sees oversize payloads and
// rejects them with a proper validation error.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*model.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxBytes+(1<<20))

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.StepValidation, "multipart field \"image\" is required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, pipeline.StepValidation, "file exceeds maximum upload size")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, pipeline.StepValidation, "unable to read upload")
		return nil, false
	}

	return &model.Upload{
		Filename:     header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		Data:         data,
	}, true
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	upload, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	rec, err := s.deps.Pipeline.Verify(r.Context(), *upload)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	s.metrics.ObserveVerification(string(rec.Status))
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleVerifyHash(w http.ResponseWriter, r *http.Request) {
	var sub model.HashSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.StepValidation, "invalid request body")
		return
	}

	rec, err := s.deps.Pipeline.VerifyHash(r.Context(), sub)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	s.metrics.ObserveVerification(string(rec.Status))
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetVerification(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	rec, err := s.deps.Store.FindByHash(r.Context(), hash)
	if err != nil {
		zap.L().Error("server: lookup failed", zap.String("content_hash", hash), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "", "lookup failed")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "", "no verification found for that hash")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	count, err := s.deps.Store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", "history unavailable")
		return
	}
	recs, err := s.deps.Store.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", "history unavailable")
		return
	}
	if recs == nil {
		recs = []model.VerificationRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":         count,
		"returned":      len(recs),
		"verifications": recs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"services": map[string]any{
			"server": "running",
			"blockchain": map[string]bool{
				"configured": s.deps.Anchorer.Configured(),
				"healthy":    s.deps.Anchorer.Healthy(ctx),
			},
			"ai": map[string]bool{
				"configured": s.deps.Classifier.Configured(),
			},
			"ipfs": map[string]bool{
				"configured": s.deps.Pinner.Configured(),
			},
		},
	})
}

// handleUpload hashes and validates without running the pipeline.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	upload, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	info, err := content.Validate(upload.Data, upload.DeclaredType, s.deps.MaxBytes)
	if err != nil {
		writePipelineError(w, &pipeline.StepError{Step: pipeline.StepValidation, Err: err})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"content_hash":  content.Fingerprint(upload.Data),
		"detected_type": info.DetectedType,
		"size_bytes":    info.SizeBytes,
	})
}

func (s *Server) handleAdminCleanup(w http.ResponseWriter, r *http.Request) {
	removed := 0
	if s.deps.Temp != nil {
		n, err := s.deps.Temp.SweepOnce(0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "", "cleanup failed")
			return
		}
		removed = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
