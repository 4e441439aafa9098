// Package tui provides styled terminal output for the locusflow CLI.
// Simple, streaming, no complex TUI - just clean prompts and output.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

// Header prints the application banner.
func Header(version string) {
	fmt.Println()
	fmt.Println(titleStyle.Render("  LOCUSFLOW") + mutedStyle.Render(" "+version))
	fmt.Println(mutedStyle.Render("  Alert filter execution engine"))
	fmt.Println()
}

// Section prints an accented section heading.
func Section(name string) {
	fmt.Println()
	fmt.Println(accentStyle.Render("▸ " + name))
}

// Field prints an aligned key/value line.
func Field(key, value string) {
	fmt.Printf("  %s %s\n", mutedStyle.Render(key+":"), titleStyle.Render(value))
}

// Code renders a value styled as inline code.
func Code(value string) string {
	return codeStyle.Render(value)
}

// Muted prints a dimmed informational line.
func Muted(line string) {
	fmt.Println(mutedStyle.Render("  " + line))
}

// Success prints a completion line.
func Success(line string) {
	fmt.Println(successStyle.Render("  ✓ " + line))
}

// Failure prints an error line.
func Failure(line string) {
	fmt.Println(accentStyle.Render("  ✗ " + line))
}

// Rule prints a horizontal separator.
func Rule() {
	fmt.Println(mutedStyle.Render("  ─────────────────────────────────────"))
}

// Progress returns a minimal progress bar for n units of work.
func Progress(n int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription(mutedStyle.Render("  "+description)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      " ",
			BarEnd:        " ",
		}),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// Elapsed formats a duration for summary lines.
func Elapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
