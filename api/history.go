package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// GetHistory lists past runs for an entity, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entityID := h.entityOrDefault(r.URL.Query().Get("entityId"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.badRequest(w, "limit debe ser un número positivo")
			return
		}
		limit = parsed
	}

	entries, err := h.history.List(r.Context(), entityID, limit)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendData(w, http.StatusOK, entries)
}

func (h *Handler) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.history.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendData(w, http.StatusOK, entry)
}

// DeleteHistoryEntry removes the record and, when one was archived, its
// document.
func (h *Handler) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entry, err := h.history.Get(r.Context(), id)
	if err != nil {
		h.sendError(w, err)
		return
	}

	if entry.DocumentURL != "" && h.archive.Enabled() {
		if err := h.archive.Delete(r.Context(), entry.DocumentURL); err != nil {
			h.log.Warn().Err(err).Str("path", entry.DocumentURL).Msg("failed to delete archived document")
		}
	}

	if err := h.history.Delete(r.Context(), id); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendData(w, http.StatusOK, map[string]string{"deleted": id})
}

// GetHistoryDocument returns a time-limited download URL for the archived
// document of a run.
func (h *Handler) GetHistoryDocument(w http.ResponseWriter, r *http.Request) {
	entry, err := h.history.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, err)
		return
	}
	if entry.DocumentURL == "" || !h.archive.Enabled() {
		h.badRequest(w, "esta entrada no tiene documento archivado")
		return
	}

	url, err := h.archive.PresignedURL(r.Context(), entry.DocumentURL)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendData(w, http.StatusOK, map[string]string{"url": url})
}
