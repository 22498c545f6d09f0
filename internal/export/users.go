package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-insights-pipeline/internal/dispatch"
	"go-insights-pipeline/internal/model"
)

const (
	// DefaultUsersURI is the org users list resource
	DefaultUsersURI = "org_users"
	// DefaultUsersSchemaURI lists the org's extra user fields
	DefaultUsersSchemaURI = "org_users_schema"
	// UsersFileName is the default users export file
	UsersFileName = "users.csv"
)

// fixedUserColumns lead every users export
var fixedUserColumns = []model.ColumnSpec{
	{Title: "Name", Key: "full_name"},
	{Title: "Email", Key: "email"},
}

// UsersJob exports org users with the org's schema fields and one column per
// integration the users are mapped in.
type UsersJob struct {
	URI       string
	SchemaURI string
	Filters   model.Filters
	RowCap    int
	FileName  string
}

// SchemaColumns reads extra user columns from a schema list. Records either
// carry a "fields" array of {key, display_name} or are fields themselves.
func SchemaColumns(schema model.ListResult) []model.ColumnSpec {
	fixed := make(map[string]struct{}, len(fixedUserColumns))
	for _, c := range fixedUserColumns {
		fixed[c.Key] = struct{}{}
	}
	seen := make(map[string]struct{})
	var cols []model.ColumnSpec
	add := func(f model.Record) {
		key := f.String("key")
		if key == "" {
			return
		}
		if _, ok := fixed[key]; ok {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		title := f.String("display_name")
		if title == "" {
			title = TitleFromKey(key)
		}
		cols = append(cols, model.ColumnSpec{Title: title, Key: key})
	}
	for _, rec := range schema.Records {
		fields, ok := rec["fields"].([]interface{})
		if !ok {
			add(rec)
			continue
		}
		for _, item := range fields {
			if f, ok := item.(map[string]interface{}); ok {
				add(model.Record(f))
			}
		}
	}
	return cols
}

// userIntegrations maps integration id to the user's ids in it, from
// integration_user_ids: [{integration_id, user_id}]
func userIntegrations(rec model.Record) map[string][]string {
	out := make(map[string][]string)
	items, _ := rec["integration_user_ids"].([]interface{})
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		ref := model.Record(m)
		id := ref.String("integration_id")
		if id == "" {
			continue
		}
		out[id] = append(out[id], ref.String("user_id"))
	}
	return out
}

// userField reads a schema field from additional_fields, then the record itself
func userField(rec model.Record, key string) interface{} {
	if extra, ok := rec["additional_fields"].(map[string]interface{}); ok {
		if v, ok := extra[key]; ok {
			return v
		}
	}
	return rec[key]
}

// Users exports org users. The org schema supplies extra columns and one
// integrations lookup names a column per integration the users belong to.
func (x *Exporter) Users(ctx context.Context, job UsersJob) (File, error) {
	uri := job.URI
	if uri == "" {
		uri = DefaultUsersURI
	}
	schemaURI := job.SchemaURI
	if schemaURI == "" {
		schemaURI = DefaultUsersSchemaURI
	}

	schema, err := x.scratch(ctx, schemaURI, model.Filters{})
	if err != nil {
		return File{}, fmt.Errorf("%w: %s: %w", ErrExportAborted, schemaURI, err)
	}
	extra := SchemaColumns(schema)

	w, err := x.walk(ctx, pageWalk{uri: uri, filters: job.Filters, rowCap: job.RowCap})
	if err != nil {
		return File{}, err
	}

	var integrationIDs []string
	seen := make(map[string]struct{})
	for _, rec := range w.records {
		for id := range userIntegrations(rec) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				integrationIDs = append(integrationIDs, id)
			}
		}
	}
	sort.Strings(integrationIDs)

	names := make(map[string]string, len(integrationIDs))
	if len(integrationIDs) > 0 {
		integrations, err := x.scratch(ctx, "integrations", model.Filters{
			"filter":    map[string]interface{}{"integration_ids": integrationIDs},
			"page":      0,
			"page_size": PageSize,
		})
		if err != nil {
			return File{}, fmt.Errorf("%w: integrations: %w", ErrExportAborted, err)
		}
		for _, rec := range integrations.Records {
			names[rec.String("id")] = rec.String("name")
		}
	}

	header := make([]model.ColumnSpec, 0, len(fixedUserColumns)+len(extra)+len(integrationIDs))
	header = append(header, fixedUserColumns...)
	header = append(header, extra...)
	for _, id := range integrationIDs {
		title := names[id]
		if title == "" {
			title = "Integration " + id
		}
		header = append(header, model.ColumnSpec{Title: title, Key: id})
	}

	var b strings.Builder
	b.WriteString(HeaderLine(header))
	b.WriteString("\n")
	for _, rec := range w.records {
		cells := make([]string, 0, len(header))
		for _, c := range fixedUserColumns {
			cells = append(cells, Quote(Cell(rec[c.Key])))
		}
		for _, c := range extra {
			cells = append(cells, Quote(Cell(userField(rec, c.Key))))
		}
		mapped := userIntegrations(rec)
		for _, id := range integrationIDs {
			cells = append(cells, Quote(strings.Join(mapped[id], ", ")))
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}

	name := job.FileName
	if name == "" {
		name = UsersFileName
	}
	f := File{Name: name, Content: []byte(b.String()), Rows: len(w.records), Pages: w.pages, Capped: w.capped}
	x.log.Info("users export complete",
		zap.Int("rows", f.Rows),
		zap.Int("schema_columns", len(extra)),
		zap.Int("integrations", len(integrationIDs)))
	return f, nil
}

// scratch runs one list call in a private slot and clears the slot once the
// call has landed
func (x *Exporter) scratch(ctx context.Context, uri string, filters model.Filters) (model.ListResult, error) {
	cch := x.dispatcher().Cache()
	call := x.dispatcher().Dispatch(ctx, dispatch.Request{
		URI:     uri,
		Method:  model.MethodList,
		Filters: filters,
		ID:      "export:" + uuid.NewString(),
	})
	entry, err := call.Wait(ctx)
	if err != nil {
		go func() {
			<-call.Done()
			cch.Clear(call.Key)
		}()
		return model.ListResult{}, err
	}
	cch.Clear(call.Key)
	res, _ := entry.List()
	return res, nil
}
