package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/homeatlas/atlas-core/internal/history"
	"github.com/homeatlas/atlas-core/internal/syncer"
)

// defaultVersionListLimit bounds GET /layout/versions when the client
// gives no limit.
const defaultVersionListLimit = 50

// handleGetLayout returns the current layout and its version.
// This is the HTTP twin of the WebSocket full_sync message, useful for
// clients that only need a one-shot read.
func (s *Server) handleGetLayout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.FullSync())
}

// handleListVersions returns version history metadata, newest first.
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	limit := defaultVersionListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	versions, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("version list failed", "error", err)
		writeInternalError(w, "failed to list versions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"versions": versions,
	})
}

// revertRequest is the request body for POST /layout/revert.
type revertRequest struct {
	Version uint64 `json:"version"`
}

// handleRevert restores the layout of an earlier version as a new
// forward version. History is never rewritten.
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	var req revertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	session := sessionFromContext(r.Context())

	diff, err := s.coordinator.Revert(r.Context(), session.ID, req.Version)
	if err != nil {
		switch {
		case errors.Is(err, history.ErrVersionNotFound):
			writeNotFound(w, "version not found")
		case errors.Is(err, syncer.ErrNoChanges):
			writeBadRequest(w, "layout already matches that version")
		default:
			s.logger.Error("revert failed", "error", err, "target_version", req.Version)
			writeInternalError(w, "failed to revert")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version": diff.ToVersion,
		"diff":    diff,
	})
}
