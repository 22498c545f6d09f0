// Package commands implements the insights CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-insights-pipeline/internal/cli/ui"
	"go-insights-pipeline/internal/config"
	"go-insights-pipeline/pkg/logger"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// app is the state shared by the subcommands once the root has run
var app struct {
	cfg   *config.Config
	log   *zap.Logger
	level zap.AtomicLevel
}

var rootCmd = &cobra.Command{
	Use:     "insights",
	Short:   "Dashboard data orchestration service",
	Version: version,
	Long: `Fetches paginated lists from the insights backend into a normalized cache,
derives relational fields with bulk lookups, resolves widget labels and
produces CSV exports.`,
	Example: `  # Run the HTTP API
  $ insights serve -c configs/config.yaml

  # Fetch a page of tickets with derived fields
  $ insights fetch jira_tickets -f page_size=50 --derive

  # Export a drilldown to CSV
  $ insights export jira_tickets -f status=open -o tickets.csv`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	rootCmd.SetVersionTemplate(fmt.Sprintf("insights version %s\n", version))
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (default ./config.yaml or ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(exportCmd)

	rootCmd.SetUsageTemplate(usageTemplate())
	rootCmd.SetHelpTemplate(usageTemplate())
}

// setup loads the configuration and builds the logger
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, level, err := logger.Build(cfg.Log)
	if err != nil {
		return err
	}
	app.cfg, app.log, app.level = cfg, log, level
	cobra.OnFinalize(func() { _ = log.Sync() })
	return nil
}

func usageTemplate() string {
	return `{{if .Long}}{{.Long}}

{{end}}` + ui.Styles.Bold.Render("USAGE") + `
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasExample}}` + ui.Styles.Bold.Render("EXAMPLES") + `
{{.Example}}

{{end}}{{if .HasAvailableSubCommands}}` + ui.Styles.Bold.Render("COMMANDS") + `{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableLocalFlags}}` + ui.Styles.Bold.Render("OPTIONS") + `
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}` + ui.Styles.Bold.Render("GLOBAL OPTIONS") + `
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
}
