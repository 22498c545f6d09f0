package main

import (
	"os"

	"go-insights-pipeline/internal/cli/commands"
	"go-insights-pipeline/internal/cli/ui"
)

//	@title			Insights Pipeline API
//	@version		1.0
//	@description	Dashboard data orchestration: cached list calls, relational derivation, widget and field-list variants, CSV exports.

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	if err := commands.Execute(); err != nil {
		ui.PrintError("%v", err)
		os.Exit(1)
	}
}
