// Package ui renders CLI output.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// Out is where the print helpers write
var Out io.Writer = os.Stdout

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	successColor.Fprintf(Out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	errorColor.Fprintf(Out, "✗ %s\n", fmt.Sprintf(format, args...))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	warningColor.Fprintf(Out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	infoColor.Fprintf(Out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// PrintSuccessBox prints a success message in a box
func PrintSuccessBox(title, content string) {
	fmt.Fprintln(Out, Styles.SuccessBox.Render(fmt.Sprintf("%s\n\n%s", successColor.Sprint(title), content)))
}
