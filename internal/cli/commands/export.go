package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"go-insights-pipeline/internal/cli/ui"
	"go-insights-pipeline/internal/export"
	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/pkg/utils"
)

var exportOpts struct {
	kind       string
	filters    []string
	columns    []string
	columnSet  string
	rowCap     int
	output     string
	derive     bool
	deriveOnly []string
	schemaURI  string
	dashboard  string
	timeout    string
	sample     bool
}

var exportCmd = &cobra.Command{
	Use:   "export [uri]",
	Short: "export a list to CSV",
	Long: `Export every page of a list to a CSV file.

Kinds:
  csv     one row per record (default)
  triage  job runs pivoted into per-day result counts
  users   organization users with schema and integration columns

Pages are fetched in turn up to the row cap. A failed page aborts the export
and no file is written.`,
	Example: `  $ insights export jira_tickets -f status=open --columns Key:key,Summary:summary
  $ insights export jenkins_job_runs --kind triage -o triage.csv
  $ insights export --kind users
  $ insights export --sample -o sample_user.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportOpts.kind, "kind", "k", export.KindCSV, "csv, triage or users")
	f.StringArrayVarP(&exportOpts.filters, "filter", "f", nil, "filter as key=value; comma separated values become a list")
	f.StringSliceVar(&exportOpts.columns, "columns", nil, "columns as Title:key or key")
	f.StringVar(&exportOpts.columnSet, "column-set", "", "named column set from the columns file")
	f.IntVar(&exportOpts.rowCap, "row-cap", 0, "maximum rows (default from config)")
	f.StringVarP(&exportOpts.output, "output", "o", "", "write the file here instead of the output directory")
	f.BoolVar(&exportOpts.derive, "derive", false, "resolve relational fields on every page")
	f.StringSliceVar(&exportOpts.deriveOnly, "only", nil, "derive only these fields")
	f.StringVar(&exportOpts.schemaURI, "schema-uri", "", "schema resource for user exports")
	f.StringVar(&exportOpts.dashboard, "report-dashboard", "", "also upload the file as a report of this dashboard")
	f.StringVar(&exportOpts.timeout, "timeout", "", "give up after this long (default 5m)")
	f.BoolVar(&exportOpts.sample, "sample", false, "write the sample users template and exit")
}

// ParseColumnFlags reads Title:key pairs; a bare key gets a title derived
// from it.
func ParseColumnFlags(specs []string) ([]model.ColumnSpec, error) {
	var cols []model.ColumnSpec
	for _, s := range specs {
		title, key, ok := strings.Cut(s, ":")
		if !ok {
			key, title = title, export.TitleFromKey(title)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid column %q, want Title:key", s)
		}
		cols = append(cols, model.ColumnSpec{Title: strings.TrimSpace(title), Key: key})
	}
	return cols, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportOpts.sample {
		return writeFile(export.SampleUsersCSV())
	}

	spec := model.ExportJobSpec{
		Kind:              exportOpts.kind,
		ColumnSet:         exportOpts.columnSet,
		RowCap:            exportOpts.rowCap,
		Derive:            exportOpts.derive || len(exportOpts.deriveOnly) > 0,
		DeriveOnly:        exportOpts.deriveOnly,
		SchemaURI:         exportOpts.schemaURI,
		ReportDashboardID: exportOpts.dashboard,
		Timeout:           exportOpts.timeout,
	}
	if len(args) == 1 {
		spec.URI = args[0]
	}
	if exportOpts.output != "" {
		spec.FileName = filepath.Base(exportOpts.output)
	}
	filters, err := utils.ParseKeyValues(exportOpts.filters)
	if err != nil {
		return err
	}
	if len(filters) > 0 {
		spec.Filters = model.Filters(filters)
	}
	if spec.Columns, err = ParseColumnFlags(exportOpts.columns); err != nil {
		return err
	}

	sets, err := columnSets(app.cfg)
	if err != nil {
		return err
	}
	c, err := newCore(app.cfg, app.log)
	if err != nil {
		return err
	}
	defer c.dispatcher.Drain()

	svc := export.NewService(c.exporter, nopJobs{}, utils.NewOutputManager(app.cfg.Export.OutputDir),
		export.WithColumnSets(sets),
		export.WithDefaultRowCap(app.cfg.Export.RowCap),
		export.WithServiceLogger(app.log))
	if err := svc.Validate(spec); err != nil {
		return err
	}

	jobID := "cli-" + strings.ReplaceAll(spec.Kind+"-"+filepath.Base(spec.URI), "/", "_")
	res, err := svc.Run(cmd.Context(), jobID, spec)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	path := res.Path
	if exportOpts.output != "" {
		if err := os.Rename(res.Path, exportOpts.output); err != nil {
			return fmt.Errorf("failed to move %s: %w", res.Path, err)
		}
		path = exportOpts.output
	}
	body := fmt.Sprintf("%s\n%d rows", path, res.RecordCount)
	if res.Capped {
		body += ui.Styles.Muted.Render(" (row cap reached)")
	}
	ui.PrintSuccessBox("Export complete", body)
	return nil
}

func writeFile(f export.File) error {
	path := exportOpts.output
	if path == "" {
		path = f.Name
	}
	if err := os.WriteFile(path, f.Content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	ui.PrintSuccess("wrote %s (%d rows)", path, f.Rows)
	return nil
}

// nopJobs discards job bookkeeping; CLI exports are not tracked
type nopJobs struct{}

func (nopJobs) SaveJob(string, model.ExportJobSpec) error { return nil }
func (nopJobs) UpdateJobStatus(string, string) error { return nil }
func (nopJobs) CompleteJob(string, model.ExportResult) error { return nil }
func (nopJobs) SaveJobError(string, error) error { return nil }
func (nopJobs) SavePipelineLog(string, string, string, string, map[string]interface{}) error { return nil }
