package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/evcraddock/visitor-kiosk/internal/config"
	"github.com/evcraddock/visitor-kiosk/internal/revision"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

type saveConfigRequest struct {
	Config            *config.Config `json:"config"`
	VersionType       string         `json:"versionType"`
	ChangeDescription string         `json:"changeDescription"`
}

type versionRequest struct {
	VersionType string `json:"versionType"`
}

type versionResponse struct {
	Success bool   `json:"success"`
	Version string `json:"version"`
	// ReloadError is set when the new document saved but could not be
	// applied to new sessions.
	ReloadError string `json:"reloadError,omitempty"`
}

type historyResponse struct {
	CurrentVersion string                `json:"currentVersion"`
	History        []config.VersionEntry `json:"history"`
}

// handleGetConfig returns the stored document with secrets masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	cfg, err := s.revisions.Current()
	if err != nil {
		apiError(w, "failed to read config", http.StatusInternalServerError)
		s.logger.Error("reading config", "error", err)
		return
	}
	apiJSON(w, cfg.Redacted(), http.StatusOK)
}

// handleSaveConfig stores an edited document under a new version.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}

	var req saveConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Config == nil {
		apiError(w, "config is required", http.StatusBadRequest)
		return
	}

	saved, err := s.revisions.Save(req.Config, req.VersionType, strings.TrimSpace(req.ChangeDescription), revision.SourceWeb)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Info("config saved", "version", saved.Version)
	apiJSON(w, s.reload(saved.Version), http.StatusOK)
}

// handleVersionHistory lists the document's recorded versions.
func (s *Server) handleVersionHistory(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	cfg, err := s.revisions.Current()
	if err != nil {
		apiError(w, "failed to read version history", http.StatusInternalServerError)
		s.logger.Error("reading config", "error", err)
		return
	}
	history := cfg.VersionHistory
	if history == nil {
		history = []config.VersionEntry{}
	}
	apiJSON(w, historyResponse{CurrentVersion: cfg.Version, History: history}, http.StatusOK)
}

// handleIncrementVersion bumps the version with no other change.
func (s *Server) handleIncrementVersion(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}

	var req versionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apiError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	saved, err := s.revisions.Increment(req.VersionType, revision.SourceWeb)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Info("config version incremented", "version", saved.Version)
	apiJSON(w, s.reload(saved.Version), http.StatusOK)
}

func (s *Server) adminAvailable(w http.ResponseWriter) bool {
	if s.revisions == nil {
		apiError(w, "configuration editing not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// reload applies the saved document, with environment overrides and
// defaults, to sessions started from now on.
func (s *Server) reload(version string) versionResponse {
	resp := versionResponse{Success: true, Version: version}
	cfg, err := config.Load(s.revisions.Path())
	if err != nil {
		resp.ReloadError = err.Error()
		s.logger.Error("reloading config", "version", version, "error", err)
		return resp
	}
	s.setConfig(cfg)
	return resp
}
