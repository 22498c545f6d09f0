package handler

import (
	"net/http"

	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/model"
)

// CacheSummary lists the stored slots
type CacheSummary struct {
	Keys    []cache.Key `json:"keys"`
	Dropped int64       `json:"dropped_events"`
}

// ClearRequest clears one slot, or every slot of a resource when ID is not
// given and All is set.
type ClearRequest struct {
	Resource string       `json:"resource"`
	Method   model.Method `json:"method,omitempty"`
	ID       string       `json:"id,omitempty"`
	All      bool         `json:"all,omitempty"`
}

// ClearResponse reports how many slots were removed
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// ListCache lists every cache slot
// @Summary List cache slots
// @Description List the (resource, method, id) address of every stored slot
// @Tags cache
// @Produce json
// @Success 200 {object} CacheSummary "Cache slots"
// @Router /cache [get]
func (h *Handler) ListCache(w http.ResponseWriter, r *http.Request) {
	c := h.engine.Dispatcher().Cache()
	writeJSON(w, http.StatusOK, CacheSummary{Keys: c.Keys(), Dropped: c.Dropped()})
}

// GetCacheEntry returns one slot
// @Summary Get a cache slot
// @Description Read the loading, error and data state of one slot
// @Tags cache
// @Produce json
// @Param resource query string true "Resource"
// @Param method query string false "Method" default(list)
// @Param id query string false "Slot id" default(0)
// @Success 200 {object} cache.Entry "Slot state"
// @Failure 400 {object} ErrorResponse "Missing resource"
// @Failure 404 {object} ErrorResponse "Slot not found"
// @Router /cache/entry [get]
func (h *Handler) GetCacheEntry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource := q.Get("resource")
	if resource == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "required", Field: "resource"})
		return
	}
	method := model.Method(q.Get("method"))
	if method == "" {
		method = model.MethodList
	}
	entry, ok := h.engine.Dispatcher().Cache().Get(cache.NewKey(resource, method, q.Get("id")))
	if !ok {
		writeError(w, http.StatusNotFound, "slot not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ClearCache removes slots
// @Summary Clear cache slots
// @Description Clear one slot, or every slot of a resource
// @Tags cache
// @Accept json
// @Produce json
// @Param request body ClearRequest true "Slots to clear"
// @Success 200 {object} ClearResponse "Cleared slots"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Router /cache/clear [post]
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	var req ClearRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Resource == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "required", Field: "resource"})
		return
	}
	if req.Method != "" && !req.Method.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown method", Field: "method"})
		return
	}

	c := h.engine.Dispatcher().Cache()
	if req.All {
		writeJSON(w, http.StatusOK, ClearResponse{Cleared: c.ClearResource(req.Resource, req.Method)})
		return
	}
	method := req.Method
	if method == "" {
		method = model.MethodList
	}
	key := cache.NewKey(req.Resource, method, req.ID)
	n := 0
	if _, ok := c.Get(key); ok {
		c.Clear(key)
		n = 1
	}
	writeJSON(w, http.StatusOK, ClearResponse{Cleared: n})
}
