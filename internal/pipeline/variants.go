package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/dispatch"
	"go-insights-pipeline/internal/model"
)

// ---------------- Custom filter field list ----------------

type fieldListApp struct {
	uri    string
	prefix string
}

// fieldListApps maps an application to its fields resource and the key
// prefix its custom fields carry
var fieldListApps = map[string]fieldListApp{
	"jira":         {uri: "jira_fields", prefix: "customfield_"},
	"azure_devops": {uri: "issue_management_workitem_fields", prefix: "Custom."},
	"zendesk":      {uri: "zendesk_fields", prefix: ""},
	"testrails":    {uri: "testrails_fields", prefix: "custom_"},
}

// maxFieldPages stops a fields endpoint that never clears has_next
const maxFieldPages = 200

// FieldListOptions asks for the supported custom fields of an application
type FieldListOptions struct {
	Application    string        `json:"application"`
	Filters        model.Filters `json:"filters,omitempty"`
	IntegrationIDs []string      `json:"integration_ids,omitempty"`
	ID             string        `json:"id,omitempty"`
	Complete       string        `json:"complete,omitempty"`
}

// FieldsURI returns the fields resource of app, "" when unknown
func FieldsURI(app string) string {
	return fieldListApps[app].uri
}

// FieldList pages through the application's fields endpoint until has_next
// is false while fetching integration configs, then publishes only the
// fields both allow-listed and carrying the application's prefix.
func (e *Engine) FieldList(ctx context.Context, opts FieldListOptions) (Result, error) {
	if err := validateApp(opts.Application); err != nil {
		return Result{}, err
	}
	app := fieldListApps[opts.Application]
	runID := e.newID()
	key := cache.NewKey(app.uri, model.MethodList, opts.ID)
	res := Result{Key: key}
	t := newTracker(runID)
	cch := e.dispatcher.Cache()
	cch.Begin(key)

	var fields []model.Record
	var configs model.ListResult

	endFetch := t.begin(StageFetch)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		filters := opts.Filters
		if filters == nil {
			filters = model.Filters{}
		}
		if _, ok := filters["page_size"]; !ok {
			filters = filters.WithPageSize(100)
		}
		for page := 0; page < maxFieldPages; page++ {
			list, err := e.scratchList(gctx, t, app.uri, filters.WithPage(page), scratchID(runID, "fields", fmt.Sprint(page)))
			if err != nil {
				return err
			}
			fields = append(fields, list.Records...)
			if !list.Metadata.More() {
				return nil
			}
		}
		e.log.Warn("fields endpoint kept announcing pages", zap.String("uri", app.uri), zap.Int("pages", maxFieldPages))
		return nil
	})
	g.Go(func() error {
		list, err := e.scratchList(gctx, t, "integration_configs",
			lookupFilters("integration_ids", nonNil(opts.IntegrationIDs)), scratchID(runID, "fields", "configs"))
		configs = list
		return err
	})
	if err := g.Wait(); err != nil {
		endFetch(len(fields), "failed")
		cch.Fail(key, 0)
		e.dispatcher.Signals().Emit(opts.Complete)
		res.Stats = t.finish(0)
		return res, fmt.Errorf("%w: %s: %w", ErrPageFailed, key, err)
	}
	endFetch(len(fields), "completed")

	endJoin := t.begin(StageJoin)
	allow := AggCustomFields(configs)
	kept := make([]model.Record, 0, len(fields))
	for _, f := range fields {
		k := fieldKey(f)
		if _, ok := allow[k]; ok && strings.HasPrefix(k, app.prefix) {
			kept = append(kept, f)
		}
	}
	endJoin(len(kept), "completed")

	data := model.ListResult{Records: kept, Metadata: model.Metadata{TotalCount: len(kept)}}
	return e.publish(res, t, data, func() { e.dispatcher.Signals().Emit(opts.Complete) }), nil
}

func fieldKey(f model.Record) string {
	for _, k := range []string{"field_key", "key", "field_id"} {
		if s := f.String(k); s != "" {
			return s
		}
	}
	return ""
}

// scratchList runs one list call in a private slot and clears it
func (e *Engine) scratchList(ctx context.Context, t *tracker, uri string, filters model.Filters, id string) (model.ListResult, error) {
	t.dispatched(1)
	call := e.dispatcher.Dispatch(ctx, dispatch.Request{URI: uri, Method: model.MethodList, Filters: filters, ID: id})
	defer e.cleanup([]*dispatch.Call{call})
	entry, err := call.Wait(ctx)
	if err != nil {
		return model.ListResult{}, err
	}
	t.awaited()
	list, _ := entry.List()
	return list, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ---------------- Levelops widgets ----------------

type widgetLabel struct {
	uri       string
	filterKey string
	attr      string
	ints      bool
}

// widgetLabels is the grouping key dispatch table
var widgetLabels = map[string]widgetLabel{
	"questionnaire_template_id": {uri: "questionnaires", filterKey: "ids", attr: "name"},
	"assignee":                  {uri: "users", filterKey: "ids", attr: "email"},
	"tag":                       {uri: "tags", filterKey: "tag_ids", attr: "name"},
	"state":                     {uri: "states", filterKey: "ids", attr: "name"},
	"product":                   {uri: "products", filterKey: "ids", attr: "name", ints: true},
}

// WidgetOptions asks for a widget report with its grouping keys resolved
type WidgetOptions struct {
	URI      string        `json:"uri"`
	Filters  model.Filters `json:"filters,omitempty"`
	ID       string        `json:"id,omitempty"`
	Complete string        `json:"complete,omitempty"`
	Across   string        `json:"across"`
	Stack    string        `json:"stack,omitempty"`
}

// ResolveWidget fetches a widget report and sets name on every record from
// its across key, and on every stacks entry from its stack key.
func (e *Engine) ResolveWidget(ctx context.Context, opts WidgetOptions) (Result, error) {
	var table []Rule
	if lbl, ok := widgetLabels[opts.Across]; ok {
		table = append(table, widgetRule("across", lbl, e.log, false))
	}
	if lbl, ok := widgetLabels[opts.Stack]; ok && opts.Stack != "" {
		table = append(table, widgetRule("stacks", lbl, e.log, true))
	}
	return e.run(ctx, Options{
		URI:      opts.URI,
		Filters:  opts.Filters,
		ID:       opts.ID,
		Complete: opts.Complete,
		Derive:   true,
		IsWidget: true,
	}, table)
}

func widgetRule(name string, lbl widgetLabel, log *zap.Logger, stacks bool) Rule {
	keysOf := func(records []model.Record) []model.Record {
		if !stacks {
			return records
		}
		var out []model.Record
		for _, rec := range records {
			for _, s := range values(rec["stacks"]) {
				if m, ok := s.(map[string]interface{}); ok {
					out = append(out, model.Record(m))
				}
			}
		}
		return out
	}
	setName := func(rec model.Record, table map[string]model.Record) model.Record {
		if m, ok := table[rec.String("key")]; ok && m.Has(lbl.attr) {
			return rec.With("name", m[lbl.attr])
		}
		return rec.Clone()
	}
	return Rule{
		Name:    name,
		Fields:  []string{name},
		Trigger: func(model.Record) bool { return true },
		Lookups: func(records []model.Record) []Lookup {
			var ids interface{}
			if lbl.ints {
				n, dropped := CollectInts(keysOf(records), "key")
				if len(dropped) > 0 {
					log.Warn("non-numeric ids dropped", zap.String("rule", name), zap.Strings("ids", dropped))
				}
				ids = n
			} else {
				ids = CollectIDs(keysOf(records), "key")
			}
			return []Lookup{{Name: name, URI: lbl.uri, Filters: lookupFilters(lbl.filterKey, ids)}}
		},
		Join: func(records []model.Record, found Lookups) []model.Record {
			table := index(found[name], "id")
			out := make([]model.Record, len(records))
			for i, rec := range records {
				if !stacks {
					out[i] = setName(rec, table)
					continue
				}
				next := rec.Clone()
				if items := values(rec["stacks"]); items != nil {
					resolved := make([]interface{}, len(items))
					for j, s := range items {
						if m, ok := s.(map[string]interface{}); ok {
							resolved[j] = map[string]interface{}(setName(model.Record(m), table))
						} else {
							resolved[j] = s
						}
					}
					next["stacks"] = resolved
				}
				out[i] = next
			}
			return out
		},
	}
}

// ---------------- Assignee time report ----------------

// AssigneeTimeReport fetches the report page and attaches the name, url and
// application of each record's integration from one bulk lookup.
func (e *Engine) AssigneeTimeReport(ctx context.Context, opts Options) (Result, error) {
	opts.Derive = true
	opts.DeriveOnly = nil
	return e.run(ctx, opts, []Rule{assigneeIntegrationRule()})
}

func assigneeIntegrationRule() Rule {
	return Rule{
		Name:   "integration",
		Fields: []string{"integration_id"},
		Lookups: func(records []model.Record) []Lookup {
			return []Lookup{{Name: "integrations", URI: "integrations",
				Filters: lookupFilters("integration_ids", CollectIDs(records, "integration_id"))}}
		},
		Join: func(records []model.Record, found Lookups) []model.Record {
			table := index(found["integrations"], "id")
			out := make([]model.Record, len(records))
			for i, rec := range records {
				next := rec.Clone()
				if integ, ok := table[rec.String("integration_id")]; ok {
					next["integration_name"] = integ["name"]
					next["integration_url"] = integ["url"]
					next["integration_application"] = integ["application"]
				}
				out[i] = next
			}
			return out
		},
	}
}

// ---------------- Generic filter values ----------------

// FilterValueRequest asks one resource for the distinct values of fields
type FilterValueRequest struct {
	URI    string                 `json:"uri"`
	Values []string               `json:"values"`
	Type   string                 `json:"type"`
	Filter map[string]interface{} `json:"filter,omitempty"`
}

// FilterValuesOptions is either the array form (Requests, sharing Filter)
// or the single form (Single, using its own filter only).
type FilterValuesOptions struct {
	URI               string                 `json:"uri,omitempty"`
	ID                string                 `json:"id,omitempty"`
	Complete          string                 `json:"complete,omitempty"`
	Requests          []FilterValueRequest   `json:"requests,omitempty"`
	Single            *FilterValueRequest    `json:"single,omitempty"`
	Filter            map[string]interface{} `json:"filter,omitempty"`
	RemoveIntegration bool                   `json:"remove_integration,omitempty"`
}

// DefaultFilterValuesURI is where filter values are published by default
const DefaultFilterValuesURI = "filter_values"

// FilterValueFilters builds the list body of one filter value request
func FilterValueFilters(opts FilterValuesOptions, req FilterValueRequest, single bool) model.Filters {
	filter := make(map[string]interface{})
	if !single {
		for k, v := range opts.Filter {
			filter[k] = v
		}
	}
	for k, v := range req.Filter {
		filter[k] = v
	}
	if opts.RemoveIntegration {
		delete(filter, "integration_ids")
	}
	body := model.Filters{"fields": nonNil(req.Values), "filter": filter}
	if !single {
		if ids, ok := filter["integration_ids"]; ok {
			body["integration_ids"] = ids
		}
	}
	return body
}

// FilterValues fans out every filter value request, waits for all of them
// and publishes one {type, uri, records} row per request.
func (e *Engine) FilterValues(ctx context.Context, opts FilterValuesOptions) (Result, error) {
	uri := opts.URI
	if uri == "" {
		uri = DefaultFilterValuesURI
	}
	reqs := opts.Requests
	single := opts.Single != nil
	if single {
		reqs = []FilterValueRequest{*opts.Single}
	}
	if len(reqs) == 0 {
		return Result{}, &ValidationError{Field: "requests", Reason: "at least one filter value request is required"}
	}
	for i, r := range reqs {
		if strings.TrimSpace(r.URI) == "" {
			return Result{}, &ValidationError{Field: fmt.Sprintf("requests[%d].uri", i), Reason: "required"}
		}
	}

	runID := e.newID()
	key := cache.NewKey(uri, model.MethodList, opts.ID)
	res := Result{Key: key}
	t := newTracker(runID)
	e.dispatcher.Cache().Begin(key)

	endFanout := t.begin(StageFanout)
	calls := make([]*dispatch.Call, len(reqs))
	for i, r := range reqs {
		calls[i] = e.dispatcher.Dispatch(ctx, dispatch.Request{
			URI:     r.URI,
			Method:  model.MethodList,
			Filters: FilterValueFilters(opts, r, single),
			ID:      scratchID(runID, "filter_values", fmt.Sprint(i)),
		})
	}
	t.dispatched(len(calls))
	defer e.cleanup(calls)

	outcomes := make([]outcome, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			entry, err := call.Wait(ctx)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			t.awaited()
			outcomes[i] = outcome{entry: entry, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		endFanout(len(calls), "failed")
		res.Stats = t.finish(0)
		return res, err
	}
	endFanout(len(calls), "completed")

	endJoin := t.begin(StageJoin)
	rows := make([]model.Record, len(reqs))
	for i, r := range reqs {
		var records []model.Record
		if o := outcomes[i]; o.err != nil || o.entry.Error {
			res.Unresolved = append(res.Unresolved, r.Type)
			e.log.Warn("filter values lookup failed", zap.String("uri", r.URI), zap.Error(o.err))
		} else {
			list, _ := o.entry.List()
			records = list.Records
		}
		if records == nil {
			records = []model.Record{}
		}
		rows[i] = model.Record{"type": r.Type, "uri": r.URI, "records": records}
	}
	endJoin(len(rows), "completed")

	data := model.ListResult{Records: rows, Metadata: model.Metadata{TotalCount: len(rows)}}
	return e.publish(res, t, data, func() { e.dispatcher.Signals().Emit(opts.Complete) }), nil
}
