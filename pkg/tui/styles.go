// Package tui implements the terminal front-end for the wizard: a Bubble
// Tea app with a step sidebar and a one-question-at-a-time form. It plugs
// into the session orchestrator as its live UI.
package tui

import "github.com/charmbracelet/lipgloss"

// Step glyphs — convey state without relying on color alone.
const (
	glyphDone    = "✓"
	glyphCurrent = "▸"
	glyphPending = "○"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(colorDim).
			Padding(0, 1)

	stepDone = lipgloss.NewStyle().
			Foreground(colorGreen)

	stepCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	stepPending = lipgloss.NewStyle().
			Foreground(colorDim)

	questionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	choiceCursor = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)
