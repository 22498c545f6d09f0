// Package export produces CSV files by driving the pagination engine page
// by page up to a row cap.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/dispatch"
	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/internal/pipeline"
)

const (
	// MaxRowsAllowedInCSV is the default row cap of an export
	MaxRowsAllowedInCSV = 10000
	// PageSize is forced on every export page unless the job sets its own
	PageSize = 1000
)

// ErrExportAborted means a page failed and no file was produced
var ErrExportAborted = errors.New("export aborted")

// Job is one CSV export
type Job struct {
	URI         string
	Method      model.Method
	Filters     model.Filters
	Columns     []model.ColumnSpec
	Transformer Transformer
	RowCap      int
	PageSize    int
	FileName    string
	Derive      bool
	DeriveOnly  []string
	// ReportDashboardID uploads the file to dashboard_reports when set
	ReportDashboardID string
}

// File is a produced CSV
type File struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
	Rows    int    `json:"rows"`
	Pages   int    `json:"pages"`
	Capped  bool   `json:"capped"`
}

// DefaultFileName is "<uri>-drilldown.csv"
func DefaultFileName(uri string) string {
	return strings.ReplaceAll(uri, "/", "_") + "-drilldown.csv"
}

// Exporter runs exports through a pagination engine
type Exporter struct {
	engine *pipeline.Engine
	log    *zap.Logger
}

// NewExporter creates an exporter
func NewExporter(e *pipeline.Engine, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{engine: e, log: log.Named("export")}
}

func (x *Exporter) dispatcher() *dispatch.Dispatcher { return x.engine.Dispatcher() }

// pages is the number of pages needed for total records under cap
func pages(total, rowCap, pageSize int) int {
	n := total
	if n > rowCap {
		n = rowCap
	}
	if n <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

type pageWalk struct {
	uri        string
	method     model.Method
	filters    model.Filters
	rowCap     int
	pageSize   int
	derive     bool
	deriveOnly []string
}

func (j Job) walk() pageWalk {
	return pageWalk{
		uri:        j.URI,
		method:     j.Method,
		filters:    j.Filters,
		rowCap:     j.RowCap,
		pageSize:   j.PageSize,
		derive:     j.Derive,
		deriveOnly: j.DeriveOnly,
	}
}

type walked struct {
	records []model.Record
	pages   int
	capped  bool
}

// walk reads pages of pageSize records until ceil(min(total, cap)/pageSize)
// pages are read. Any page error aborts the walk. The cache slot used is
// private to the walk and cleared before returning.
func (x *Exporter) walk(ctx context.Context, w pageWalk) (walked, error) {
	var out walked
	rowCap := w.rowCap
	if rowCap <= 0 {
		rowCap = MaxRowsAllowedInCSV
	}
	pageSize := w.pageSize
	if pageSize <= 0 {
		pageSize = PageSize
	}
	filters := w.filters
	if filters == nil {
		filters = model.Filters{}
	}
	filters = filters.WithPageSize(pageSize)

	id := "export:" + uuid.NewString()
	defer x.dispatcher().Cache().Clear(cache.NewKey(w.uri, model.MethodList, id))

	want := 1
	for page := 0; page < want; page++ {
		res, err := x.engine.Run(ctx, pipeline.Options{
			URI:        w.uri,
			Method:     w.method,
			Filters:    filters.WithPage(page),
			ID:         id,
			Derive:     w.derive,
			DeriveOnly: w.deriveOnly,
		})
		if err != nil {
			x.log.Warn("export page failed", zap.String("uri", w.uri), zap.Int("page", page), zap.Error(err))
			return walked{}, fmt.Errorf("%w: %s page %d: %w", ErrExportAborted, w.uri, page, err)
		}
		out.pages++
		if page == 0 {
			total := res.Data.Metadata.TotalCount
			want = pages(total, rowCap, pageSize)
			if total > rowCap {
				out.capped = true
				x.dispatcher().Notify(dispatch.Notice{
					Level:   dispatch.LevelInfo,
					Message: fmt.Sprintf("Only the first %d of %d rows will be exported", rowCap, total),
					URI:     w.uri,
				})
			}
		}
		for _, rec := range res.Data.Records {
			if len(out.records) >= rowCap {
				break
			}
			out.records = append(out.records, rec)
		}
		if len(res.Data.Records) == 0 {
			break
		}
	}
	return out, nil
}

// CSV exports job as comma separated text: a header line of column titles,
// then one transformer line per record.
func (x *Exporter) CSV(ctx context.Context, job Job) (File, error) {
	if job.URI == "" {
		return File{}, &pipeline.ValidationError{Field: "uri", Reason: "required"}
	}
	w, err := x.walk(ctx, job.walk())
	if err != nil {
		return File{}, err
	}

	columns := job.Columns
	if len(columns) == 0 && len(w.records) > 0 {
		columns = ColumnsFromRecord(w.records[0])
	}
	transform := job.Transformer
	if transform == nil {
		transform = DefaultTransformer
	}

	var b strings.Builder
	b.WriteString(HeaderLine(columns))
	b.WriteString("\n")
	for _, rec := range w.records {
		b.WriteString(transform(rec, columns))
		b.WriteString("\n")
	}

	name := job.FileName
	if name == "" {
		name = DefaultFileName(job.URI)
	}
	f := File{Name: name, Content: []byte(b.String()), Rows: len(w.records), Pages: w.pages, Capped: w.capped}
	x.log.Info("csv export complete",
		zap.String("uri", job.URI),
		zap.Int("rows", f.Rows),
		zap.Int("pages", f.Pages),
		zap.Bool("capped", f.Capped))

	if job.ReportDashboardID != "" {
		if err := x.upload(ctx, job.ReportDashboardID, f); err != nil {
			return f, err
		}
	}
	return f, nil
}

// upload posts the file to dashboard_reports
func (x *Exporter) upload(ctx context.Context, dashboardID string, f File) error {
	req := dispatch.Request{
		URI:              "dashboard_reports",
		Method:           model.MethodCreate,
		ID:               "report:" + uuid.NewString(),
		ShowNotification: true,
		Payload: map[string]interface{}{
			"dashboard_id": dashboardID,
			"name":         f.Name,
			"content_type": "text/csv",
			"content":      string(f.Content),
		},
	}
	defer x.dispatcher().Cache().Clear(req.Key())
	if _, err := x.dispatcher().Create(ctx, req); err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}
	return nil
}
