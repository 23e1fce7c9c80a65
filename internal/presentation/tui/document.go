package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#cdd6f4"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#fab387"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
)

// DocumentMarkdown describes a document as markdown for the glamour renderer.
func DocumentMarkdown(summary string, stores map[string]string, actions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", summary)

	b.WriteString("## Stores\n\n")
	if len(stores) == 0 {
		b.WriteString("_none_\n\n")
	} else {
		b.WriteString("| Key | Model |\n|---|---|\n")
		for _, key := range sortedKeys(stores) {
			fmt.Fprintf(&b, "| `%s` | %s |\n", key, strings.ReplaceAll(stores[key], "|", `\|`))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Actions\n\n")
	if len(actions) == 0 {
		b.WriteString("_none_\n")
	}
	for _, a := range actions {
		fmt.Fprintf(&b, "- `%s`\n", a)
	}
	return b.String()
}

// Table renders two columns aligned with lipgloss. Rows are sorted by key.
func Table(keyHeader, valueHeader string, rows map[string]string) string {
	keys := sortedKeys(rows)
	width := lipgloss.Width(keyHeader)
	for _, k := range keys {
		if w := lipgloss.Width(k); w > width {
			width = w
		}
	}
	col := lipgloss.NewStyle().Width(width + 2)

	var b strings.Builder
	b.WriteString(col.Render(headerStyle.Render(keyHeader)) + headerStyle.Render(valueHeader) + "\n")
	if len(keys) == 0 {
		b.WriteString(dimStyle.Render("(empty)") + "\n")
	}
	for _, k := range keys {
		b.WriteString(col.Render(keyStyle.Render(k)) + rows[k] + "\n")
	}
	return b.String()
}

// List renders one item per line, or a dim placeholder.
func List(items []string) string {
	if len(items) == 0 {
		return dimStyle.Render("(none)") + "\n"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString(keyStyle.Render(item) + "\n")
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
