package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"cropcure/internal/api"
	"cropcure/internal/diagnosis"
	"cropcure/internal/logging"
	"cropcure/internal/upload"
)

// writeJSON encodes an envelope with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorf("Failed to encode response: %v", err)
	}
}

// handleAPIHealth handles GET /api/health
func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	res := s.backend.HealthCheck(r.Context())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

// handleAPIDiagnose handles POST /api/diagnose with a multipart "image" field.
// It runs the same classify-then-solution sequence as the classification page.
func (s *Server) handleAPIDiagnose(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, api.Fail[diagnosis.Result](msgTooLarge))
			return
		}
		writeJSON(w, http.StatusBadRequest, api.Fail[diagnosis.Result]("Expected multipart form with an image field"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var selected *upload.SelectedImage
	widget := upload.NewWidget(func(img *upload.SelectedImage) { selected = img },
		upload.WithMaxBytes(s.config.MaxUploadBytes))

	src := s.sourceFor(upload.KindFile, r.MultipartForm)
	err := widget.Select(r.Context(), src)
	s.countSelection(upload.KindFile, err)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, upload.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, api.Fail[diagnosis.Result](selectionMessage(err)))
		return
	}

	result, err := s.classification.Analyze(r.Context(), selected)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, api.Fail[diagnosis.Result](analysisMessage(err)))
		return
	}
	writeJSON(w, http.StatusOK, api.Ok(result))
}
