package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// renderMarkdown renders a flow description for the header pane, wrapped to
// the given width. Falls back to the raw text when rendering fails.
func renderMarkdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
