package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roomcraft-ai/renderlog/internal/artifact"
	"github.com/roomcraft-ai/renderlog/internal/model"
	"github.com/roomcraft-ai/renderlog/internal/query"
	"github.com/roomcraft-ai/renderlog/internal/signer"
	"github.com/roomcraft-ai/renderlog/internal/storage"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	query     *query.Service
	artifacts *artifact.Store
	signer    *signer.Signer
	logger    *slog.Logger
	version   string
}

// HandlersDeps bundles constructor arguments for NewHandlers.
type HandlersDeps struct {
	Query     *query.Service
	Artifacts *artifact.Store
	Signer    *signer.Signer
	Logger    *slog.Logger
	Version   string
}

// NewHandlers creates the handler set.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		query:     d.Query,
		artifacts: d.Artifacts,
		signer:    d.Signer,
		logger:    d.Logger,
		version:   d.Version,
	}
}

// HandleHealth reports pipeline health. Unhealthy maps to 503 so load
// balancers and uptime checks need no body parsing.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.Health(r.Context())
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "health check failed")
		return
	}

	status := http.StatusOK
	if stats.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, struct {
		model.HealthStats
		Version string `json:"version,omitempty"`
	}{HealthStats: stats, Version: h.version})
}

// HandleListRuns serves GET /runs with cursor pagination and filters.
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	filters, err := parseRunFilters(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, err.Error())
		return
	}

	includeTotal := r.URL.Query().Get("include_total") == "true"
	page, err := h.query.ListRuns(r.Context(), filters,
		r.URL.Query().Get("cursor"), queryLimit(r, 0), includeTotal, ViewFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, query.ErrBadCursor) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid cursor")
			return
		}
		h.respondStoreError(w, r, err)
		return
	}

	writeListJSON(w, r, page)
}

// HandleGetRun serves GET /runs/{run_id}.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	shop, ok := requireShopParam(w, r)
	if !ok {
		return
	}
	detail, err := h.query.GetRunDetail(r.Context(), shop, r.PathValue("run_id"), ViewFromContext(r.Context()))
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

// HandleGetRunEvents serves GET /runs/{run_id}/events.
func (h *Handlers) HandleGetRunEvents(w http.ResponseWriter, r *http.Request) {
	shop, ok := requireShopParam(w, r)
	if !ok {
		return
	}
	runID := r.PathValue("run_id")

	// 404 for a missing run, not an empty list.
	if _, err := h.query.GetRun(r.Context(), shop, runID, ViewFromContext(r.Context())); err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	events, err := h.query.GetRunEvents(r.Context(), shop, runID, ViewFromContext(r.Context()))
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, events)
}

// HandleGetRequestEvents serves events for a request id. Runless flows have
// no run row to anchor a 404 on, so an unknown request id is an empty list.
func (h *Handlers) HandleGetRequestEvents(w http.ResponseWriter, r *http.Request) {
	shop, ok := requireShopParam(w, r)
	if !ok {
		return
	}
	events, err := h.query.GetRequestEvents(r.Context(), shop, r.PathValue("request_id"), ViewFromContext(r.Context()))
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, events)
}

// HandleGetRunArtifacts serves GET /runs/{run_id}/artifacts.
func (h *Handlers) HandleGetRunArtifacts(w http.ResponseWriter, r *http.Request) {
	shop, ok := requireShopParam(w, r)
	if !ok {
		return
	}
	artifacts, err := h.query.GetRunArtifacts(r.Context(), shop, r.PathValue("run_id"), ViewFromContext(r.Context()))
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, artifacts)
}

// HandleGetArtifact serves GET /artifacts/{artifact_id}.
func (h *Handlers) HandleGetArtifact(w http.ResponseWriter, r *http.Request) {
	shop, ok := requireShopParam(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("artifact_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid artifact id")
		return
	}
	view, err := h.query.GetArtifact(r.Context(), shop, id, ViewFromContext(r.Context()))
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// HandleListShops serves GET /shops.
func (h *Handlers) HandleListShops(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.ListShops(r.Context())
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// HandleGetShop serves GET /shops/{shop_domain}.
func (h *Handlers) HandleGetShop(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.GetShop(r.Context(), r.PathValue("shop_domain"))
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (h *Handlers) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "not found")
		return
	}
	h.logger.Error("query failed",
		"error", err,
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()),
	)
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
}

func requireShopParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "shop query parameter is required")
		return "", false
	}
	return shop, true
}

func parseRunFilters(r *http.Request) (model.RunFilters, error) {
	var f model.RunFilters
	q := r.URL.Query()

	if shop := q.Get("shop"); shop != "" {
		f.ShopDomain = &shop
	}
	if status := q.Get("status"); status != "" {
		s := model.RunStatus(status)
		switch s {
		case model.RunStatusRunning, model.RunStatusComplete, model.RunStatusPartial, model.RunStatusFailed:
			f.Status = &s
		default:
			return f, fmt.Errorf("unknown status %q", status)
		}
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, fmt.Errorf("invalid %s timestamp", key)
			}
			*dst = &t
		}
	}
	return f, nil
}

func queryLimit(r *http.Request, defaultVal int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// writeListJSON writes a run page in the paginated list envelope.
func writeListJSON(w http.ResponseWriter, r *http.Request, page query.RunPage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(model.ListResponse{
		Data:       page.Runs,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
		Total:      page.Total,
		Limit:      page.Limit,
		Meta: model.ResponseMeta{
			RequestID: RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}
