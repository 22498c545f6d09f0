package export

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/internal/pipeline"
)

// TriageStatuses are the sub-columns written under every day
var TriageStatuses = []string{"Success", "Failure", "Aborted"}

// DefaultTriageColumns are the fixed columns before the day columns
var DefaultTriageColumns = []model.ColumnSpec{
	{Title: "Name", Key: "name"},
	{Title: "Job", Key: "job_name"},
	{Title: "Project", Key: "project_name"},
}

// dayTotals are the build counts of one record on one day
type dayTotals struct {
	success, failure, aborted int
}

// TriageDays discovers the day keys over every record's aggs, newest first
func TriageDays(records []model.Record) []string {
	seen := make(map[string]struct{})
	var days []string
	for _, rec := range records {
		for day := range triageAggs(rec) {
			if _, ok := seen[day]; !ok {
				seen[day] = struct{}{}
				days = append(days, day)
			}
		}
	}
	sort.Slice(days, func(i, j int) bool {
		ti, tj := dayTime(days[i]), dayTime(days[j])
		if ti.Equal(tj) {
			return days[i] > days[j]
		}
		return ti.After(tj)
	})
	return days
}

// triageAggs reads rec["aggs"]: [{key: day, totals: {SUCCESS, FAILURE, ABORTED}}]
func triageAggs(rec model.Record) map[string]dayTotals {
	out := make(map[string]dayTotals)
	items, _ := rec["aggs"].([]interface{})
	for _, item := range items {
		agg, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		day := model.Record(agg).String("key")
		if day == "" {
			continue
		}
		totals, _ := agg["totals"].(map[string]interface{})
		t := out[day]
		t.success += int(model.Numeric(totals["SUCCESS"]))
		t.failure += int(model.Numeric(totals["FAILURE"]))
		t.aborted += int(model.Numeric(totals["ABORTED"]))
		out[day] = t
	}
	return out
}

// dayTime parses a day key: epoch seconds or YYYY-MM-DD
func dayTime(day string) time.Time {
	if secs, err := strconv.ParseInt(day, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	if t, err := time.Parse("2006-01-02", day); err == nil {
		return t
	}
	return time.Time{}
}

// DayLabel renders a day key for the header
func DayLabel(day string) string {
	t := dayTime(day)
	if t.IsZero() {
		return day
	}
	return t.Format("2006-01-02")
}

// PivotTriage renders the triage grid: a day label row, a status row, then
// one row per record with a success,failure,aborted triple per day.
func PivotTriage(records []model.Record, columns []model.ColumnSpec) string {
	days := TriageDays(records)

	var b strings.Builder
	top := make([]string, 0, len(columns)+3*len(days))
	sub := make([]string, 0, cap(top))
	for _, c := range columns {
		top = append(top, Quote(c.Title))
		sub = append(sub, "")
	}
	for _, d := range days {
		top = append(top, Quote(DayLabel(d)), "", "")
		sub = append(sub, TriageStatuses...)
	}
	b.WriteString(strings.Join(top, ","))
	b.WriteString("\n")
	b.WriteString(strings.Join(sub, ","))
	b.WriteString("\n")

	for _, rec := range records {
		aggs := triageAggs(rec)
		row := make([]string, 0, cap(top))
		for _, c := range columns {
			row = append(row, Quote(Cell(rec[c.Key])))
		}
		for _, d := range days {
			t := aggs[d]
			row = append(row, strconv.Itoa(t.success), strconv.Itoa(t.failure), strconv.Itoa(t.aborted))
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteString("\n")
	}
	return b.String()
}

// TriageGrid accumulates raw records over the pages of job, then pivots
// their per-day build totals into columns.
func (x *Exporter) TriageGrid(ctx context.Context, job Job) (File, error) {
	if job.URI == "" {
		return File{}, &pipeline.ValidationError{Field: "uri", Reason: "required"}
	}
	w, err := x.walk(ctx, job.walk())
	if err != nil {
		return File{}, err
	}
	columns := job.Columns
	if len(columns) == 0 {
		columns = DefaultTriageColumns
	}
	name := job.FileName
	if name == "" {
		name = "triage-grid-view.csv"
	}
	f := File{
		Name:    name,
		Content: []byte(PivotTriage(w.records, columns)),
		Rows:    len(w.records),
		Pages:   w.pages,
		Capped:  w.capped,
	}
	x.log.Info("triage export complete", zap.String("uri", job.URI), zap.Int("rows", f.Rows))
	return f, nil
}
