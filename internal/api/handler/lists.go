package handler

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"go-insights-pipeline/internal/backend"
	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/dispatch"
	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/internal/pipeline"
)

// ListRequest is the body of POST /lists. Method "get" fetches a single
// record into the (uri, get, id) slot instead of running the list engine.
type ListRequest struct {
	pipeline.Options
	Params map[string]string `json:"params,omitempty"`
}

// RecordResponse is the result of a get call
type RecordResponse struct {
	Key  cache.Key    `json:"key"`
	Data model.Record `json:"data"`
}

func (r ListRequest) query() url.Values {
	if len(r.Params) == 0 {
		return nil
	}
	q := make(url.Values, len(r.Params))
	for k, v := range r.Params {
		q.Set(k, v)
	}
	return q
}

// List runs a list call through the pagination engine
// @Summary Run a list call
// @Description Fetch a list page into the cache and derive the configured relational fields. Method "get" fetches one record instead.
// @Tags lists
// @Accept json
// @Produce json
// @Param request body ListRequest true "List options"
// @Success 200 {object} pipeline.Result "Published result"
// @Failure 400 {object} ErrorResponse "Invalid options"
// @Failure 502 {object} ErrorResponse "Backend call failed"
// @Router /lists [post]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var req ListRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Query = req.query()

	if req.Method == model.MethodGet {
		h.get(w, r, req)
		return
	}
	res, err := h.engine.Run(r.Context(), req.Options)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, req ListRequest) {
	if req.URI == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "required", Field: "uri"})
		return
	}
	dreq := dispatch.Request{
		URI:              req.URI,
		ID:               req.ID,
		Complete:         req.Complete,
		Query:            req.Query,
		ShowNotification: req.ShowNotification,
	}
	rec, err := h.engine.Dispatcher().Get(r.Context(), dreq)
	if err != nil {
		h.log.Warn("get failed", zap.String("uri", req.URI), zap.String("id", req.ID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: backend.StatusCode(err)})
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse{Key: cache.NewKey(req.URI, model.MethodGet, req.ID), Data: rec})
}

// FieldList pages through an application's fields
// @Summary Fetch an application field list
// @Description Page through the fields of a ticketing application and attach integration names and the custom-field flag.
// @Tags lists
// @Accept json
// @Produce json
// @Param request body pipeline.FieldListOptions true "Field list options"
// @Success 200 {object} pipeline.Result "Published result"
// @Failure 400 {object} ErrorResponse "Invalid options"
// @Failure 502 {object} ErrorResponse "Backend call failed"
// @Router /field-lists [post]
func (h *Handler) FieldList(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.FieldListOptions
	if err := readJSON(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.engine.FieldList(r.Context(), opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ResolveWidget fetches widget data and resolves its labels
// @Summary Resolve widget labels
// @Description Fetch widget data and replace across and stack ids with display names.
// @Tags lists
// @Accept json
// @Produce json
// @Param request body pipeline.WidgetOptions true "Widget options"
// @Success 200 {object} pipeline.Result "Published result"
// @Failure 400 {object} ErrorResponse "Invalid options"
// @Failure 502 {object} ErrorResponse "Backend call failed"
// @Router /widgets/resolve [post]
func (h *Handler) ResolveWidget(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.WidgetOptions
	if err := readJSON(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.engine.ResolveWidget(r.Context(), opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AssigneeTime runs the assignee time report
// @Summary Assignee time report
// @Description Fetch the assignee time report and attach integration details to every record.
// @Tags lists
// @Accept json
// @Produce json
// @Param request body pipeline.Options true "Report options"
// @Success 200 {object} pipeline.Result "Published result"
// @Failure 400 {object} ErrorResponse "Invalid options"
// @Failure 502 {object} ErrorResponse "Backend call failed"
// @Router /assignee-time [post]
func (h *Handler) AssigneeTime(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if err := readJSON(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.engine.AssigneeTimeReport(r.Context(), opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FilterValues fetches the values offered by dashboard filters
// @Summary Fetch filter values
// @Description Run one values call per request, or a single call, and merge the responses.
// @Tags lists
// @Accept json
// @Produce json
// @Param request body pipeline.FilterValuesOptions true "Filter value options"
// @Success 200 {object} pipeline.Result "Published result"
// @Failure 400 {object} ErrorResponse "Invalid options"
// @Failure 502 {object} ErrorResponse "Backend call failed"
// @Router /filter-values [post]
func (h *Handler) FilterValues(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.FilterValuesOptions
	if err := readJSON(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.engine.FilterValues(r.Context(), opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
