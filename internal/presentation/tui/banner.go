package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the docket banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"      _            _        _   ", "#818cf8"},
		{"   __| | ___   ___| | _____| |_ ", "#a78bfa"},
		{"  / _` |/ _ \\ / __| |/ / _ \\ __|", "#c084fc"},
		{" | (_| | (_) | (__|   <  __/ |_ ", "#e879f9"},
		{"  \\__,_|\\___/ \\___|_|\\_\\___|\\__|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
