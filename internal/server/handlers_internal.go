package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

// HandleDebugBundle serves GET /internal/runs/{run_id}/bundle: the full
// unredacted export of one run, as a download.
func (h *Handlers) HandleDebugBundle(w http.ResponseWriter, r *http.Request) {
	shop, ok := requireShopParam(w, r)
	if !ok {
		return
	}
	runID := r.PathValue("run_id")

	bundle, err := h.query.ExportDebugBundle(r.Context(), shop, runID)
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "bundle-"+runID+".json"))
	writeJSON(w, r, http.StatusOK, bundle)
}

// HandleArtifactContent serves GET /internal/artifacts/content. The URL
// token is the credential: it was minted by SignedURL and names exactly
// one storage key, so no bearer auth applies here.
func (h *Handlers) HandleArtifactContent(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "missing token")
		return
	}

	key, err := h.signer.Verify(token)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid or expired token")
		return
	}

	data, contentType, err := h.artifacts.Fetch(r.Context(), key)
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "artifact content not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
